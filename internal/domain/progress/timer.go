package progress

import (
	"context"
	"sync"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// TimerState is the session state of a study timer.
type TimerState int

const (
	TimerStopped TimerState = iota
	TimerRunning
)

func (s TimerState) String() string {
	if s == TimerRunning {
		return "running"
	}
	return "stopped"
}

// Timer accrues study seconds for one (user, course) session.
// Invariant: 0 <= saved <= elapsed.
type Timer struct {
	user   shared.UserID
	course shared.CourseID

	mu      sync.Mutex
	elapsed int64
	saved   int64
	state   TimerState

	// saveMu serialises delta writes so two savers never persist the same delta.
	saveMu sync.Mutex
}

// NewTimer resumes a session from the durable total: elapsed and saved both
// start at durable.
func NewTimer(user shared.UserID, course shared.CourseID, durable int64) *Timer {
	if durable < 0 {
		durable = 0
	}
	return &Timer{user: user, course: course, elapsed: durable, saved: durable}
}

// Start moves Stopped to Running. It reports false when already running.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		return false
	}
	t.state = TimerRunning
	return true
}

// Tick adds seconds while running. Ticks on a stopped timer, or with a
// non-positive count, are ignored and report false.
func (t *Timer) Tick(seconds int64) bool {
	if seconds <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerRunning {
		return false
	}
	t.elapsed += seconds
	return true
}

// Elapsed is the current total, durable plus unsaved.
func (t *Timer) Elapsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Saved is the total last durably written.
func (t *Timer) Saved() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saved
}

// Unsaved is elapsed minus saved.
func (t *Timer) Unsaved() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed - t.saved
}

// State returns the session state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Running reports whether the timer accrues ticks.
func (t *Timer) Running() bool {
	return t.State() == TimerRunning
}

// User returns the owning user.
func (t *Timer) User() shared.UserID { return t.user }

// Course returns the course being timed.
func (t *Timer) Course() shared.CourseID { return t.course }

// TimeRemaining is max(0, limit - elapsed) for the current total.
func (t *Timer) TimeRemaining(limit int64) int64 {
	return TimeRemaining(limit, t.Elapsed())
}

// Save persists the unsaved delta through store. Nothing is written when the
// delta is zero. On success saved advances to the elapsed value the delta was
// taken from; ticks that arrive during the write stay unsaved.
func (t *Timer) Save(ctx context.Context, store TimerRepository) (int64, error) {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	upTo := t.elapsed
	delta := upTo - t.saved
	t.mu.Unlock()

	if delta <= 0 {
		return 0, nil
	}
	if _, err := store.AddElapsed(ctx, t.user, t.course, delta); err != nil {
		return 0, err
	}

	t.mu.Lock()
	if upTo > t.saved {
		t.saved = upTo
	}
	t.mu.Unlock()
	return delta, nil
}

// Pause stops accrual and saves the delta. It saves even when the timer was
// already stopped, which writes nothing if the delta is zero.
func (t *Timer) Pause(ctx context.Context, store TimerRepository) (int64, error) {
	t.mu.Lock()
	t.state = TimerStopped
	t.mu.Unlock()
	return t.Save(ctx, store)
}

// TimeRemaining is max(0, limit - elapsed).
func TimeRemaining(limit, elapsed int64) int64 {
	if r := limit - elapsed; r > 0 {
		return r
	}
	return 0
}
