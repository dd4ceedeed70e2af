package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

func TestNew_SortsChainAndSeparatesBonus(t *testing.T) {
	c, err := New(1, "Go basics", 600, 50, 300, []Module{
		{ID: 12, Position: 2},
		{ID: 99, IsBonus: true, UnlockCost: 40},
		{ID: 10, Position: 0},
		{ID: 11, Position: 1},
	})
	require.NoError(t, err)

	require.Len(t, c.Modules, 3)
	assert.Equal(t, shared.ModuleID(10), c.Modules[0].ID)
	assert.Equal(t, shared.ModuleID(12), c.Modules[2].ID)
	require.NotNil(t, c.Bonus)
	assert.Equal(t, shared.ModuleID(99), c.Bonus.ID)
	assert.Equal(t, shared.CourseID(1), c.Bonus.CourseID)
	assert.Equal(t, 3, c.RequiredModules())
	assert.Equal(t, 1, c.IndexOf(11))
	assert.Equal(t, -1, c.IndexOf(99))
}

func TestNew_RejectsInvalidCatalog(t *testing.T) {
	_, err := New(1, "dup", 0, 0, 0, []Module{{ID: 1, Position: 0}, {ID: 2, Position: 0}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = New(1, "two bonus", 0, 0, 0, []Module{{ID: 1, IsBonus: true}, {ID: 2, IsBonus: true}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = New(1, "negative", -5, 0, 0, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFindModule(t *testing.T) {
	c, err := New(3, "c", 0, 0, 0, []Module{{ID: 1, Position: 0}, {ID: 7, IsBonus: true}})
	require.NoError(t, err)

	m, ok := c.FindModule(7)
	assert.True(t, ok)
	assert.True(t, m.IsBonus)

	_, ok = c.FindModule(8)
	assert.False(t, ok)
	assert.False(t, c.HasTimeLimit())
}

func TestRewards_AppliesDefaults(t *testing.T) {
	d := RewardDefaults{Completion: 50, Timed: 300}

	configured := &Course{CompletionReward: 80, TimedReward: 120}
	completion, timed := configured.Rewards(d)
	assert.Equal(t, shared.Coins(80), completion)
	assert.Equal(t, shared.Coins(120), timed)

	blank := &Course{}
	completion, timed = blank.Rewards(d)
	assert.Equal(t, shared.Coins(50), completion)
	assert.Equal(t, shared.Coins(300), timed)

	// Zero is not an override: only a zero default pays nothing.
	noTimed := &Course{CompletionReward: 80}
	_, timed = noTimed.Rewards(d)
	assert.Equal(t, shared.Coins(300), timed)
	_, timed = noTimed.Rewards(RewardDefaults{Completion: 50})
	assert.Zero(t, timed)
}
