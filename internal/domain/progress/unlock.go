package progress

import (
	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// ModuleState is one row of the unlock view.
type ModuleState struct {
	Module    course.Module `json:"module"`
	Unlocked  bool          `json:"unlocked"`
	Completed bool          `json:"completed"`
	IsBonus   bool          `json:"is_bonus"`

	// Purchased is set on the bonus row once the learner owns it.
	Purchased bool `json:"purchased,omitempty"`
}

// View is the ordered unlock view of a course; the bonus module, if any, is last.
type View struct {
	CourseID       shared.CourseID `json:"course_id"`
	Enrolled       bool            `json:"enrolled"`
	Modules        []ModuleState   `json:"modules"`
	CompletedCount int             `json:"completed_count"`
	Required       int             `json:"required"`
}

// CourseComplete reports whether every ordinary module is completed. A course
// without ordinary modules is never complete.
func (v View) CourseComplete() bool {
	return v.Required > 0 && v.CompletedCount >= v.Required
}

// Find returns the state of one module.
func (v View) Find(id shared.ModuleID) (ModuleState, bool) {
	for _, m := range v.Modules {
		if m.Module.ID == id {
			return m, true
		}
	}
	return ModuleState{}, false
}

// UnlockInput is everything ComputeView needs.
type UnlockInput struct {
	Course   *course.Course
	Enrolled bool

	// IsCompleted looks up the completion record of a module. A missing
	// record means not completed.
	IsCompleted func(shared.ModuleID) bool

	// BonusOwned is true once a BonusModuleUnlock claim exists.
	BonusOwned bool
}

// ComputeView evaluates the unlock rule. It is pure: the same input always
// yields the same view.
func ComputeView(in UnlockInput) View {
	isCompleted := in.IsCompleted
	if isCompleted == nil {
		isCompleted = func(shared.ModuleID) bool { return false }
	}

	v := View{CourseID: in.Course.ID, Enrolled: in.Enrolled, Required: in.Course.RequiredModules()}
	v.Modules = make([]ModuleState, 0, len(in.Course.Modules)+1)

	prevCompleted := false
	for i, m := range in.Course.Modules {
		completed := isCompleted(m.ID)
		unlocked := in.Enrolled && (i == 0 || prevCompleted)
		v.Modules = append(v.Modules, ModuleState{Module: m, Unlocked: unlocked, Completed: completed})
		if completed {
			v.CompletedCount++
		}
		prevCompleted = completed
	}

	if b := in.Course.Bonus; b != nil {
		owned := in.BonusOwned || b.UnlockCost == 0
		v.Modules = append(v.Modules, ModuleState{
			Module:    *b,
			Unlocked:  in.Enrolled && owned,
			Completed: isCompleted(b.ID),
			IsBonus:   true,
			Purchased: in.BonusOwned,
		})
	}
	return v
}

// CompletionSet adapts a set of completed module ids to UnlockInput.IsCompleted.
func CompletionSet(ids []shared.ModuleID) func(shared.ModuleID) bool {
	set := make(map[shared.ModuleID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id shared.ModuleID) bool {
		_, ok := set[id]
		return ok
	}
}
