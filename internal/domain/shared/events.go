package shared

import (
	"time"
)

// EventType names a domain event.
type EventType string

const (
	EventEnrolled        EventType = "course.enrolled"
	EventModuleCompleted EventType = "progress.module_completed"
	EventRewardGranted   EventType = "reward.granted"
	EventBonusPurchased  EventType = "reward.bonus_purchased"
	EventTimerPaused     EventType = "timer.paused"
)

// Event is published after the state change it describes has been committed.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time

	// Subject returns the (user, course) pair the event belongs to.
	// User-wide events report GlobalScope as the course.
	Subject() (UserID, CourseID)

	Payload() map[string]interface{}
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	User      UserID    `json:"user_id"`
	Course    CourseID  `json:"course_id"`
}

func (e BaseEvent) EventType() EventType        { return e.Type }
func (e BaseEvent) OccurredAt() time.Time       { return e.Timestamp }
func (e BaseEvent) Subject() (UserID, CourseID) { return e.User, e.Course }

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent(t EventType, user UserID, course CourseID) BaseEvent {
	return BaseEvent{Type: t, Timestamp: time.Now().UTC(), User: user, Course: course}
}

// EnrolledEvent: a first enrollment was recorded.
type EnrolledEvent struct {
	BaseEvent
}

func (e EnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"user_id": e.User, "course_id": e.Course}
}

func NewEnrolledEvent(user UserID, course CourseID) EnrolledEvent {
	return EnrolledEvent{BaseEvent: NewBaseEvent(EventEnrolled, user, course)}
}

// ModuleCompletedEvent: a progress record moved to completed.
type ModuleCompletedEvent struct {
	BaseEvent
	Module         ModuleID `json:"module_id"`
	CourseComplete bool     `json:"course_complete"`
}

func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.User,
		"course_id":       e.Course,
		"module_id":       e.Module,
		"course_complete": e.CourseComplete,
	}
}

func NewModuleCompletedEvent(user UserID, course CourseID, module ModuleID, courseComplete bool) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent:      NewBaseEvent(EventModuleCompleted, user, course),
		Module:         module,
		CourseComplete: courseComplete,
	}
}

// RewardGrantedEvent: a reward claim was inserted and its credit applied.
type RewardGrantedEvent struct {
	BaseEvent
	Kind       string `json:"kind"`
	Amount     Coins  `json:"amount"`
	NewBalance Coins  `json:"new_balance"`
}

func (e RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.User,
		"course_id":   e.Course,
		"kind":        e.Kind,
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
	}
}

func NewRewardGrantedEvent(user UserID, course CourseID, kind string, amount, newBalance Coins) RewardGrantedEvent {
	return RewardGrantedEvent{
		BaseEvent:  NewBaseEvent(EventRewardGranted, user, course),
		Kind:       kind,
		Amount:     amount,
		NewBalance: newBalance,
	}
}

// BonusPurchasedEvent: a bonus module was bought.
type BonusPurchasedEvent struct {
	BaseEvent
	Module     ModuleID `json:"module_id"`
	Cost       Coins    `json:"cost"`
	NewBalance Coins    `json:"new_balance"`
}

func (e BonusPurchasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.User,
		"course_id":   e.Course,
		"module_id":   e.Module,
		"cost":        e.Cost,
		"new_balance": e.NewBalance,
	}
}

func NewBonusPurchasedEvent(user UserID, course CourseID, module ModuleID, cost, newBalance Coins) BonusPurchasedEvent {
	return BonusPurchasedEvent{
		BaseEvent:  NewBaseEvent(EventBonusPurchased, user, course),
		Module:     module,
		Cost:       cost,
		NewBalance: newBalance,
	}
}

// TimerPausedEvent: a session stopped and its unsaved delta was persisted.
type TimerPausedEvent struct {
	BaseEvent
	SavedDelta int64 `json:"saved_delta"`
	Elapsed    int64 `json:"elapsed"`
}

func (e TimerPausedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.User,
		"course_id":   e.Course,
		"saved_delta": e.SavedDelta,
		"elapsed":     e.Elapsed,
	}
}

func NewTimerPausedEvent(user UserID, course CourseID, delta, elapsed int64) TimerPausedEvent {
	return TimerPausedEvent{
		BaseEvent:  NewBaseEvent(EventTimerPaused, user, course),
		SavedDelta: delta,
		Elapsed:    elapsed,
	}
}

// EventHandler handles one event.
type EventHandler func(event Event) error

// EventPublisher publishes events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
