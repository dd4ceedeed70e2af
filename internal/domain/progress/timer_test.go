package progress

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

type recordingTimerRepo struct {
	mu     sync.Mutex
	total  int64
	writes []int64
	fail   error
}

func (r *recordingTimerRepo) GetTimer(_ context.Context, u shared.UserID, c shared.CourseID) (TimerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return TimerRecord{User: u, Course: c, ElapsedSeconds: r.total}, nil
}

func (r *recordingTimerRepo) ResetTimer(context.Context, shared.UserID, shared.CourseID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = 0
	return nil
}

func (r *recordingTimerRepo) AddElapsed(_ context.Context, _ shared.UserID, _ shared.CourseID, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	r.total += delta
	r.writes = append(r.writes, delta)
	return r.total, nil
}

func TestTimer_StartIsIdempotent(t *testing.T) {
	tm := NewTimer(1, 1, 0)

	assert.True(t, tm.Start())
	assert.False(t, tm.Start())
	assert.Equal(t, TimerRunning, tm.State())
}

func TestTimer_TickOnlyWhileRunning(t *testing.T) {
	tm := NewTimer(1, 1, 0)

	assert.False(t, tm.Tick(1))
	tm.Start()
	assert.True(t, tm.Tick(1))
	assert.True(t, tm.Tick(4))
	assert.False(t, tm.Tick(0))
	assert.False(t, tm.Tick(-3))
	assert.Equal(t, int64(5), tm.Elapsed())
}

func TestTimer_PausePersistsOnlyDelta(t *testing.T) {
	repo := &recordingTimerRepo{total: 100}
	tm := NewTimer(1, 1, 100)
	tm.Start()
	tm.Tick(30)

	delta, err := tm.Pause(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, int64(30), delta)
	assert.Equal(t, int64(130), tm.Saved())
	assert.Equal(t, int64(130), repo.total)

	delta, err = tm.Pause(context.Background(), repo)
	require.NoError(t, err)
	assert.Zero(t, delta)
	assert.Equal(t, []int64{30}, repo.writes)
	assert.False(t, tm.Running())
}

func TestTimer_ResumeFromDurableTotalDoesNotRecount(t *testing.T) {
	repo := &recordingTimerRepo{}
	tm := NewTimer(1, 1, 0)
	tm.Start()
	tm.Tick(45)
	_, err := tm.Save(context.Background(), repo)
	require.NoError(t, err)

	// Process restarts: the session is rebuilt from the store.
	rec, err := repo.GetTimer(context.Background(), 1, 1)
	require.NoError(t, err)
	resumed := NewTimer(1, 1, rec.ElapsedSeconds)
	resumed.Start()
	resumed.Tick(5)

	_, err = resumed.Pause(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, int64(50), repo.total)
	assert.Equal(t, []int64{45, 5}, repo.writes)
}

func TestTimer_FailedSaveKeepsDelta(t *testing.T) {
	repo := &recordingTimerRepo{fail: errors.New("store down")}
	tm := NewTimer(1, 1, 10)
	tm.Start()
	tm.Tick(7)

	_, err := tm.Save(context.Background(), repo)
	require.Error(t, err)
	assert.Equal(t, int64(7), tm.Unsaved())

	repo.fail = nil
	delta, err := tm.Save(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, int64(7), delta)
	assert.Zero(t, tm.Unsaved())
}

func TestTimer_ConcurrentSavesWriteEachSecondOnce(t *testing.T) {
	repo := &recordingTimerRepo{}
	tm := NewTimer(1, 1, 0)
	tm.Start()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); tm.Tick(1) }()
		go func() { defer wg.Done(); _, _ = tm.Save(context.Background(), repo) }()
	}
	wg.Wait()
	_, err := tm.Pause(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, int64(50), repo.total)
	assert.Equal(t, tm.Elapsed(), tm.Saved())
}

func TestTimeRemaining(t *testing.T) {
	assert.Equal(t, int64(400), TimeRemaining(600, 200))
	assert.Zero(t, TimeRemaining(600, 600))
	assert.Zero(t, TimeRemaining(600, 900))
	assert.Zero(t, TimeRemaining(0, 10))
}
