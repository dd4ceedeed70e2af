// Package course models the authored course catalog: an ordered chain of
// ordinary modules plus at most one bonus module bought with coins.
// Courses are immutable once authored.
package course

import (
	"fmt"
	"sort"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// Module is one unit of a course.
type Module struct {
	ID       shared.ModuleID `json:"id"`
	CourseID shared.CourseID `json:"course_id"`
	Title    string          `json:"title"`

	// Position orders ordinary modules; it is ignored for the bonus module.
	Position int `json:"position"`

	IsBonus    bool         `json:"is_bonus"`
	UnlockCost shared.Coins `json:"unlock_cost"`
}

// Course is the catalog entry a learner enrolls in.
type Course struct {
	ID    shared.CourseID `json:"id"`
	Title string          `json:"title"`

	// Modules holds the ordinary modules sorted by Position.
	Modules []Module `json:"modules"`

	// Bonus is the optional purchasable module outside the chain.
	Bonus *Module `json:"bonus,omitempty"`

	// TimeLimitSeconds is the window for the timed reward. Zero means unlimited.
	TimeLimitSeconds int64 `json:"time_limit_seconds"`

	// CompletionReward and TimedReward override the policy defaults. Zero
	// means "use the default", so a single course cannot opt out of a reward
	// by setting zero; a zero default turns the reward off for every course
	// that does not override it.
	CompletionReward shared.Coins `json:"completion_reward"`
	TimedReward      shared.Coins `json:"timed_reward"`
}

// New assembles a course from its modules, separating the bonus module and
// sorting the chain by position.
func New(id shared.CourseID, title string, limitSeconds int64, completion, timed shared.Coins, modules []Module) (*Course, error) {
	c := &Course{
		ID:               id,
		Title:            title,
		TimeLimitSeconds: limitSeconds,
		CompletionReward: completion,
		TimedReward:      timed,
	}
	for _, m := range modules {
		m.CourseID = id
		if m.IsBonus {
			if c.Bonus != nil {
				return nil, shared.NewDomainError("course", "New", shared.ErrInvalidInput,
					fmt.Sprintf("course %d has more than one bonus module", id))
			}
			bonus := m
			c.Bonus = &bonus
			continue
		}
		c.Modules = append(c.Modules, m)
	}
	sort.SliceStable(c.Modules, func(i, j int) bool { return c.Modules[i].Position < c.Modules[j].Position })
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks catalog invariants.
func (c *Course) Validate() error {
	if !c.ID.IsValid() {
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput, "course id must be positive")
	}
	if c.TimeLimitSeconds < 0 {
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput, "time limit cannot be negative")
	}
	if c.CompletionReward < 0 || c.TimedReward < 0 {
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput, "reward amounts cannot be negative")
	}
	seen := make(map[int]struct{}, len(c.Modules))
	for _, m := range c.Modules {
		if m.IsBonus {
			return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput, "bonus module inside the chain")
		}
		if _, dup := seen[m.Position]; dup {
			return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput,
				fmt.Sprintf("duplicate module position %d", m.Position))
		}
		seen[m.Position] = struct{}{}
	}
	if c.Bonus != nil && c.Bonus.UnlockCost < 0 {
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidInput, "unlock cost cannot be negative")
	}
	return nil
}

// RequiredModules is the number of ordinary modules that must be completed.
func (c *Course) RequiredModules() int {
	return len(c.Modules)
}

// HasTimeLimit reports whether the timed reward is on offer.
func (c *Course) HasTimeLimit() bool {
	return c.TimeLimitSeconds > 0
}

// FindModule looks a module up among the chain and the bonus module.
func (c *Course) FindModule(id shared.ModuleID) (Module, bool) {
	for _, m := range c.Modules {
		if m.ID == id {
			return m, true
		}
	}
	if c.Bonus != nil && c.Bonus.ID == id {
		return *c.Bonus, true
	}
	return Module{}, false
}

// IndexOf returns the chain index of an ordinary module, or -1.
func (c *Course) IndexOf(id shared.ModuleID) int {
	for i, m := range c.Modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// RewardDefaults fill in reward amounts a course leaves at zero.
type RewardDefaults struct {
	Completion shared.Coins
	Timed      shared.Coins
}

// Rewards returns the completion and timed amounts after applying defaults.
// An amount left at zero takes the default, so the result is zero only when
// the default is zero too.
func (c *Course) Rewards(d RewardDefaults) (completion, timed shared.Coins) {
	completion, timed = c.CompletionReward, c.TimedReward
	if completion == 0 {
		completion = d.Completion
	}
	if timed == 0 {
		timed = d.Timed
	}
	return completion, timed
}
