package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

func threeModuleCourse(t *testing.T, withBonus bool, bonusCost shared.Coins) *course.Course {
	t.Helper()
	modules := []course.Module{{ID: 1, Position: 0}, {ID: 2, Position: 1}, {ID: 3, Position: 2}}
	if withBonus {
		modules = append(modules, course.Module{ID: 9, IsBonus: true, UnlockCost: bonusCost})
	}
	c, err := course.New(1, "c", 600, 50, 300, modules)
	require.NoError(t, err)
	return c
}

func unlockedIDs(v View) []shared.ModuleID {
	var out []shared.ModuleID
	for _, m := range v.Modules {
		if m.Unlocked {
			out = append(out, m.Module.ID)
		}
	}
	return out
}

func TestComputeView_NotEnrolledLocksEverything(t *testing.T) {
	v := ComputeView(UnlockInput{Course: threeModuleCourse(t, true, 0), Enrolled: false, BonusOwned: true})

	assert.Empty(t, unlockedIDs(v))
	assert.Len(t, v.Modules, 4)
}

func TestComputeView_ChainFollowsPredecessor(t *testing.T) {
	c := threeModuleCourse(t, false, 0)

	tests := []struct {
		name      string
		completed []shared.ModuleID
		unlocked  []shared.ModuleID
		count     int
	}{
		{"fresh enrollment", nil, []shared.ModuleID{1}, 0},
		{"first done", []shared.ModuleID{1}, []shared.ModuleID{1, 2}, 1},
		{"first two done", []shared.ModuleID{1, 2}, []shared.ModuleID{1, 2, 3}, 2},
		{"gap halts the chain", []shared.ModuleID{2}, []shared.ModuleID{1, 3}, 1},
		{"all done", []shared.ModuleID{1, 2, 3}, []shared.ModuleID{1, 2, 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ComputeView(UnlockInput{Course: c, Enrolled: true, IsCompleted: CompletionSet(tt.completed)})
			assert.Equal(t, tt.unlocked, unlockedIDs(v))
			assert.Equal(t, tt.count, v.CompletedCount)
		})
	}
}

// For every completion subset, module i is unlocked iff i == 0 or module i-1
// is completed.
func TestComputeView_UnlockRuleHoldsForAllSubsets(t *testing.T) {
	c := threeModuleCourse(t, false, 0)
	ids := []shared.ModuleID{1, 2, 3}

	for mask := 0; mask < 1<<len(ids); mask++ {
		var completed []shared.ModuleID
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				completed = append(completed, id)
			}
		}
		isDone := CompletionSet(completed)
		v := ComputeView(UnlockInput{Course: c, Enrolled: true, IsCompleted: isDone})
		for i, st := range v.Modules {
			want := i == 0 || isDone(ids[i-1])
			assert.Equal(t, want, st.Unlocked, "mask=%03b module=%d", mask, i)
		}
	}
}

func TestComputeView_BonusGatedByPurchaseOnly(t *testing.T) {
	c := threeModuleCourse(t, true, 40)

	v := ComputeView(UnlockInput{Course: c, Enrolled: true})
	bonus, ok := v.Find(9)
	require.True(t, ok)
	assert.True(t, bonus.IsBonus)
	assert.False(t, bonus.Unlocked)

	v = ComputeView(UnlockInput{Course: c, Enrolled: true, BonusOwned: true})
	bonus, _ = v.Find(9)
	assert.True(t, bonus.Unlocked)
	assert.True(t, bonus.Purchased)
	assert.Equal(t, shared.ModuleID(9), v.Modules[len(v.Modules)-1].Module.ID)

	free := threeModuleCourse(t, true, 0)
	v = ComputeView(UnlockInput{Course: free, Enrolled: true})
	bonus, _ = v.Find(9)
	assert.True(t, bonus.Unlocked)
	assert.False(t, bonus.Purchased)
}

func TestComputeView_EmptyChainHasOnlyBonus(t *testing.T) {
	c, err := course.New(2, "bonus only", 0, 0, 0, []course.Module{{ID: 5, IsBonus: true, UnlockCost: 10}})
	require.NoError(t, err)

	v := ComputeView(UnlockInput{Course: c, Enrolled: true, BonusOwned: true})
	require.Len(t, v.Modules, 1)
	assert.True(t, v.Modules[0].Unlocked)
	assert.False(t, v.CourseComplete())
}

func TestComputeView_IsIdempotent(t *testing.T) {
	in := UnlockInput{Course: threeModuleCourse(t, true, 5), Enrolled: true, IsCompleted: CompletionSet([]shared.ModuleID{1})}
	assert.Equal(t, ComputeView(in), ComputeView(in))
}

func TestView_CourseComplete(t *testing.T) {
	c := threeModuleCourse(t, true, 5)
	v := ComputeView(UnlockInput{Course: c, Enrolled: true, IsCompleted: CompletionSet([]shared.ModuleID{1, 2, 3})})
	assert.True(t, v.CourseComplete())

	// Completing the bonus module does not count toward the chain.
	v = ComputeView(UnlockInput{Course: c, Enrolled: true, BonusOwned: true, IsCompleted: CompletionSet([]shared.ModuleID{1, 2, 9})})
	assert.False(t, v.CourseComplete())
	assert.Equal(t, 2, v.CompletedCount)
}
