package progression

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

type sessionKey struct {
	user   shared.UserID
	course shared.CourseID
}

// sessions holds the live timer of every (user, course) seen by this process.
// The durable total is loaded once per key; concurrent loads are collapsed.
type sessions struct {
	mu     sync.Mutex
	timers map[sessionKey]*progress.Timer
	loads  singleflight.Group
	repo   progress.TimerRepository
}

func newSessions(repo progress.TimerRepository) *sessions {
	return &sessions{timers: make(map[sessionKey]*progress.Timer), repo: repo}
}

// peek returns the live timer without loading it.
func (s *sessions) peek(user shared.UserID, course shared.CourseID) (*progress.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[sessionKey{user, course}]
	return t, ok
}

// get returns the live timer, resuming it from the durable total if needed.
func (s *sessions) get(ctx context.Context, user shared.UserID, course shared.CourseID) (*progress.Timer, error) {
	if t, ok := s.peek(user, course); ok {
		return t, nil
	}
	key := sessionKey{user, course}
	v, err, _ := s.loads.Do(fmt.Sprintf("%d/%d", user, course), func() (any, error) {
		if t, ok := s.peek(user, course); ok {
			return t, nil
		}
		rec, err := s.repo.GetTimer(ctx, user, course)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.timers[key]
		if !ok {
			t = progress.NewTimer(user, course, rec.ElapsedSeconds)
			s.timers[key] = t
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*progress.Timer), nil
}

// start returns the live timer in the running state, resuming it from the
// durable total if needed. started is false when it was already running.
// The timer is started while still registered, so evictStopped cannot drop
// it between lookup and start.
func (s *sessions) start(ctx context.Context, user shared.UserID, course shared.CourseID) (t *progress.Timer, started bool, err error) {
	key := sessionKey{user, course}
	for {
		if _, err := s.get(ctx, user, course); err != nil {
			return nil, false, err
		}
		s.mu.Lock()
		if t, ok := s.timers[key]; ok {
			started = t.Start()
			s.mu.Unlock()
			return t, started, nil
		}
		s.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
	}
}

// restart installs a fresh running timer at durable, discarding any old one.
func (s *sessions) restart(user shared.UserID, course shared.CourseID, durable int64) *progress.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := progress.NewTimer(user, course, durable)
	t.Start()
	s.timers[sessionKey{user, course}] = t
	return t
}

// snapshot lists the live timers, optionally only running ones.
func (s *sessions) snapshot(runningOnly bool) []*progress.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*progress.Timer, 0, len(s.timers))
	for _, t := range s.timers {
		if !runningOnly || t.Running() {
			out = append(out, t)
		}
	}
	return out
}

// evictStopped forgets stopped timers with nothing left to save.
func (s *sessions) evictStopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, t := range s.timers {
		if !t.Running() && t.Unsaved() == 0 {
			delete(s.timers, k)
			n++
		}
	}
	return n
}
