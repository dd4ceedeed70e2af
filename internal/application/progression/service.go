// Package progression orchestrates enrollment, study time, module completion
// and rewards. It owns no state of its own beyond live timer sessions: every
// decision reads the record store, and every monetary side effect goes
// through the reward ledger's transactional grant or purchase.
package progression

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/domain/wallet"
	"github.com/alem-hub/progress-ledger/pkg/logger"
	"github.com/alem-hub/progress-ledger/pkg/retry"
	"github.com/alem-hub/progress-ledger/pkg/timeutil"
)

const tracerName = "github.com/alem-hub/progress-ledger/internal/application/progression"

// ViewCache is a read-through cache of unlock views. It is only consulted by
// GetUnlockView; mutations always build views from the store. A miss reports
// the generation of (user, course), and Set stores a view only while that
// generation is current, so a view built across an invalidation is dropped.
type ViewCache interface {
	Get(ctx context.Context, user shared.UserID, course shared.CourseID) (v progress.View, gen int64, ok bool, err error)
	Set(ctx context.Context, user shared.UserID, v progress.View, gen int64) error
}

// Dependencies are the collaborators of the service. Views, Events, Logger,
// Tracer and Clock are optional.
type Dependencies struct {
	Catalog     course.Catalog
	Enrollments progress.EnrollmentRepository
	Progress    progress.ProgressRepository
	Timers      progress.TimerRepository
	Wallet      wallet.Store
	Claims      reward.Store

	Views  ViewCache
	Events shared.EventPublisher
	Logger *logger.Logger
	Tracer trace.Tracer
	Clock  timeutil.Clock
}

// Config is the reward policy and retry behaviour.
type Config struct {
	Rewards          course.RewardDefaults
	DailyLoginAmount shared.Coins

	// Location decides where a calendar day starts for daily login.
	Location *time.Location

	// Retrier wraps idempotent reads. Writes are never retried here.
	Retrier *retry.Retrier
}

// DefaultConfig returns the stock reward policy.
func DefaultConfig() Config {
	return Config{
		Rewards:          course.RewardDefaults{Completion: 50, Timed: 300},
		DailyLoginAmount: 10,
		Location:         time.UTC,
	}
}

// Service is the progression orchestrator.
type Service struct {
	catalog     course.Catalog
	enrollments progress.EnrollmentRepository
	progress    progress.ProgressRepository
	timers      progress.TimerRepository
	account     *wallet.Account
	ledger      *reward.Ledger

	views    ViewCache
	events   shared.EventPublisher
	log      *logger.Logger
	tracer   trace.Tracer
	now      timeutil.Clock
	cfg      Config
	sessions *sessions
}

// NewService wires the service.
func NewService(deps Dependencies, cfg Config) *Service {
	if deps.Events == nil {
		deps.Events = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log := deps.Logger.With(logger.Component("progression"))
	if cfg.Retrier == nil {
		cfg.Retrier = retry.New(retry.WithRetryIf(shared.IsRetryable), retry.WithOnRetry(RetryLogger(log)))
	}
	return &Service{
		catalog:     deps.Catalog,
		enrollments: deps.Enrollments,
		progress:    deps.Progress,
		timers:      deps.Timers,
		account:     wallet.NewAccount(deps.Wallet),
		ledger:      reward.NewLedger(deps.Claims, deps.Clock),
		views:       deps.Views,
		events:      deps.Events,
		log:         log,
		tracer:      deps.Tracer,
		now:         deps.Clock,
		cfg:         cfg,
		sessions:    newSessions(deps.Timers),
	}
}

// RetryLogger returns a retry hook that logs each retried read at Warn.
func RetryLogger(log *logger.Logger) func(attempt int, err error, delay time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("retrying read",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// startSpan opens a span named after op with the user attribute set.
func (s *Service) startSpan(ctx context.Context, op string, user shared.UserID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int64("user.id", int64(user)))
	return s.tracer.Start(ctx, "progression."+op, trace.WithAttributes(attrs...))
}

// finish records err and the outcome on span, logs infrastructure failures
// and ends the span.
func (s *Service) finish(span trace.Span, op string, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("operation failed", logger.Operation(op), logger.Err(err))
	}
	span.End()
}

// read runs an idempotent store read under the retrier.
func read[T any](ctx context.Context, s *Service, op func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoValue(ctx, s.cfg.Retrier, op)
}

func (s *Service) publish(e shared.Event) {
	if err := s.events.Publish(e); err != nil {
		s.log.Warn("event not published", logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
}

func (s *Service) isEnrolled(ctx context.Context, user shared.UserID, c shared.CourseID) (bool, error) {
	return read(ctx, s, func(ctx context.Context) (bool, error) {
		return s.enrollments.IsEnrolled(ctx, user, c)
	})
}

func (s *Service) getCourse(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	return read(ctx, s, func(ctx context.Context) (*course.Course, error) {
		return s.catalog.GetCourse(ctx, id)
	})
}

func (s *Service) getModule(ctx context.Context, id shared.ModuleID) (*course.Module, error) {
	return read(ctx, s, func(ctx context.Context) (*course.Module, error) {
		return s.catalog.GetModule(ctx, id)
	})
}

// liveElapsed is the session total if a session is live, else the durable total.
func (s *Service) liveElapsed(ctx context.Context, user shared.UserID, c shared.CourseID) (int64, error) {
	if t, ok := s.sessions.peek(user, c); ok {
		return t.Elapsed(), nil
	}
	rec, err := read(ctx, s, func(ctx context.Context) (progress.TimerRecord, error) {
		return s.timers.GetTimer(ctx, user, c)
	})
	if err != nil {
		return 0, err
	}
	return rec.ElapsedSeconds, nil
}
