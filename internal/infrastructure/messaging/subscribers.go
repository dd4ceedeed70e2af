package messaging

import (
	"context"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ViewInvalidator drops a cached unlock view.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, user shared.UserID, course shared.CourseID) error
}

// invalidatingEvents change the inputs of an unlock view.
var invalidatingEvents = []shared.EventType{
	shared.EventEnrolled,
	shared.EventModuleCompleted,
	shared.EventBonusPurchased,
}

// SubscribeViewInvalidation drops the cached view of the event's subject
// whenever enrollment, completion or bonus ownership changes.
func SubscribeViewInvalidation(bus shared.EventSubscriber, views ViewInvalidator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	handler := func(event shared.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		user, course := event.Subject()
		return views.Invalidate(ctx, user, course)
	}
	for _, t := range invalidatingEvents {
		if err := bus.Subscribe(t, handler); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeAuditLog writes every event to log at Info.
func SubscribeAuditLog(bus shared.EventSubscriber, log *logger.Logger) error {
	audit := log.With(logger.Component("audit"))
	return bus.SubscribeAll(func(event shared.Event) error {
		user, course := event.Subject()
		audit.Info(string(event.EventType()),
			logger.UserID(int64(user)),
			logger.CourseID(int64(course)),
			logger.Any("payload", event.Payload()),
		)
		return nil
	})
}
