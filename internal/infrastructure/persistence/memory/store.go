// Package memory is an in-process implementation of every repository. It is
// used by tests and by the ledger binary when no DATABASE_URL is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

type userCourse struct {
	user   shared.UserID
	course shared.CourseID
}

type userModule struct {
	user   shared.UserID
	module shared.ModuleID
}

type claimKey struct {
	user   shared.UserID
	course shared.CourseID
	kind   string
}

// Store holds all state behind one mutex. Transactions hold the mutex for
// their whole duration and undo their writes on rollback.
type Store struct {
	mu sync.Mutex

	courses map[shared.CourseID]*course.Course
	modules map[shared.ModuleID]course.Module

	enrollments map[userCourse]progress.Enrollment
	progress    map[userModule]progress.Record
	timers      map[userCourse]progress.TimerRecord
	balances    map[shared.UserID]shared.Coins
	claims      map[claimKey]reward.Claim

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		courses:     make(map[shared.CourseID]*course.Course),
		modules:     make(map[shared.ModuleID]course.Module),
		enrollments: make(map[userCourse]progress.Enrollment),
		progress:    make(map[userModule]progress.Record),
		timers:      make(map[userCourse]progress.TimerRecord),
		balances:    make(map[shared.UserID]shared.Coins),
		claims:      make(map[claimKey]reward.Claim),
		now:         time.Now,
	}
}

// PutCourse adds or replaces a catalog course.
func (s *Store) PutCourse(c *course.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.courses[c.ID]; ok {
		for _, m := range old.Modules {
			delete(s.modules, m.ID)
		}
		if old.Bonus != nil {
			delete(s.modules, old.Bonus.ID)
		}
	}
	s.courses[c.ID] = c
	for _, m := range c.Modules {
		s.modules[m.ID] = m
	}
	if c.Bonus != nil {
		s.modules[c.Bonus.ID] = *c.Bonus
	}
}

// SaveCourse is PutCourse with the signature of the postgres catalog.
func (s *Store) SaveCourse(_ context.Context, c *course.Course) error {
	s.PutCourse(c)
	return nil
}

// ---- course.Catalog ----

func (s *Store) GetCourse(_ context.Context, id shared.CourseID) (*course.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return c, nil
}

func (s *Store) GetModule(_ context.Context, id shared.ModuleID) (*course.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[id]
	if !ok {
		return nil, shared.ErrModuleNotFound
	}
	return &m, nil
}

// ---- progress.EnrollmentRepository ----

func (s *Store) IsEnrolled(_ context.Context, user shared.UserID, c shared.CourseID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enrollments[userCourse{user, c}]
	return ok, nil
}

func (s *Store) EnrollIfAbsent(_ context.Context, e progress.Enrollment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userCourse{e.User, e.Course}
	if _, ok := s.enrollments[k]; ok {
		return false, nil
	}
	s.enrollments[k] = e
	return true, nil
}

func (s *Store) ListEnrolledCourses(_ context.Context, user shared.UserID) ([]shared.CourseID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shared.CourseID
	for k := range s.enrollments {
		if k.user == user {
			out = append(out, k.course)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- progress.ProgressRepository ----

func (s *Store) MarkCompleted(_ context.Context, r progress.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userModule{r.User, r.Module}
	prev, ok := s.progress[k]
	r.Status = progress.StatusCompleted
	s.progress[k] = r
	return !ok || prev.Status != progress.StatusCompleted, nil
}

func (s *Store) CompletedModules(_ context.Context, user shared.UserID, c shared.CourseID) ([]shared.ModuleID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shared.ModuleID
	for k, r := range s.progress {
		if k.user == user && r.Course == c && r.Status == progress.StatusCompleted {
			out = append(out, k.module)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- progress.TimerRepository ----

func (s *Store) GetTimer(_ context.Context, user shared.UserID, c shared.CourseID) (progress.TimerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.timers[userCourse{user, c}]; ok {
		return r, nil
	}
	return progress.TimerRecord{User: user, Course: c}, nil
}

func (s *Store) ResetTimer(_ context.Context, user shared.UserID, c shared.CourseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[userCourse{user, c}] = progress.TimerRecord{User: user, Course: c, UpdatedAt: s.now()}
	return nil
}

func (s *Store) AddElapsed(_ context.Context, user shared.UserID, c shared.CourseID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userCourse{user, c}
	r := s.timers[k]
	r.User, r.Course = user, c
	r.ElapsedSeconds += delta
	r.UpdatedAt = s.now()
	s.timers[k] = r
	return r.ElapsedSeconds, nil
}

// ---- wallet.Store ----

func (s *Store) Balance(_ context.Context, user shared.UserID) (shared.Coins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[user], nil
}

func (s *Store) AdjustBalance(_ context.Context, user shared.UserID, delta shared.Coins) (shared.Coins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjust(user, delta, nil)
}

func (s *Store) adjust(user shared.UserID, delta shared.Coins, undo *[]func()) (shared.Coins, error) {
	cur, existed := s.balances[user]
	next := cur + delta
	if next < 0 {
		return 0, shared.ErrNoFunds
	}
	if undo != nil {
		*undo = append(*undo, func() {
			if existed {
				s.balances[user] = cur
			} else {
				delete(s.balances, user)
			}
		})
	}
	s.balances[user] = next
	return next, nil
}

// ---- reward.Store ----

// WithinTx runs fn while holding the store lock. fn must only use tx; calling
// the store itself from fn deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx reward.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *Store) HasClaim(_ context.Context, user shared.UserID, c shared.CourseID, kind reward.Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claims[claimKey{user, c, kind.Key()}]
	return ok, nil
}

func (s *Store) ListClaims(_ context.Context, user shared.UserID, c shared.CourseID) ([]reward.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reward.Claim
	for k, cl := range s.claims {
		if k.user == user && k.course == c {
			out = append(out, cl)
		}
	}
	sortClaims(out)
	return out, nil
}

func (s *Store) LatestClaim(_ context.Context, user shared.UserID, c shared.CourseID, typ reward.KindType) (*reward.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *reward.Claim
	for k, cl := range s.claims {
		if k.user != user || k.course != c || cl.Kind.Type != typ {
			continue
		}
		if latest == nil || cl.ClaimedAt.After(latest.ClaimedAt) ||
			(cl.ClaimedAt.Equal(latest.ClaimedAt) && strings.Compare(cl.Kind.Key(), latest.Kind.Key()) > 0) {
			cl := cl
			latest = &cl
		}
	}
	return latest, nil
}

func sortClaims(cs []reward.Claim) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].ClaimedAt.Equal(cs[j].ClaimedAt) {
			return cs[i].ClaimedAt.Before(cs[j].ClaimedAt)
		}
		return cs[i].Kind.Key() < cs[j].Kind.Key()
	})
}

// memTx runs with Store.mu already held.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) Balance(_ context.Context, user shared.UserID) (shared.Coins, error) {
	return t.s.balances[user], nil
}

func (t *memTx) AdjustBalance(_ context.Context, user shared.UserID, delta shared.Coins) (shared.Coins, error) {
	return t.s.adjust(user, delta, &t.undo)
}

func (t *memTx) InsertClaimIfAbsent(_ context.Context, c reward.Claim) (bool, error) {
	k := claimKey{c.User, c.Course, c.Kind.Key()}
	if _, ok := t.s.claims[k]; ok {
		return false, nil
	}
	t.s.claims[k] = c
	t.undo = append(t.undo, func() { delete(t.s.claims, k) })
	return true, nil
}

// Compile-time interface checks.
var (
	_ course.Catalog                = (*Store)(nil)
	_ progress.EnrollmentRepository = (*Store)(nil)
	_ progress.ProgressRepository   = (*Store)(nil)
	_ progress.TimerRepository      = (*Store)(nil)
	_ reward.Store                  = (*Store)(nil)
	_ reward.Tx                     = (*memTx)(nil)
)
