package progression

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOMES
// ══════════════════════════════════════════════════════════════════════════════

// Outcome is the business result of an operation. Expected conditions are
// outcomes; only store failures are returned as errors.
type Outcome int

const (
	OK Outcome = iota
	AlreadyDone
	InsufficientFunds
	NotFound
	NotEnrolled
	ModuleLocked
	InvalidInput
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case AlreadyDone:
		return "already_done"
	case InsufficientFunds:
		return "insufficient_funds"
	case NotFound:
		return "not_found"
	case NotEnrolled:
		return "not_enrolled"
	case ModuleLocked:
		return "module_locked"
	case InvalidInput:
		return "invalid_input"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// outcomeOf maps an expected domain error to its outcome. ok is false for
// errors that must propagate.
func outcomeOf(err error) (Outcome, bool) {
	switch {
	case shared.IsNotFound(err):
		return NotFound, true
	case errors.Is(err, shared.ErrNotEnrolled):
		return NotEnrolled, true
	case errors.Is(err, shared.ErrInvalidInput):
		return InvalidInput, true
	case shared.IsInsufficientFunds(err):
		return InsufficientFunds, true
	}
	return OK, false
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

var validate = validator.New()

// EnrollCommand enrolls a user in a course and starts the study session.
type EnrollCommand struct {
	UserID   shared.UserID   `validate:"gt=0"`
	CourseID shared.CourseID `validate:"gt=0"`
}

// TimerCommand addresses the study session of (user, course).
type TimerCommand struct {
	UserID   shared.UserID   `validate:"gt=0"`
	CourseID shared.CourseID `validate:"gt=0"`
}

// TickCommand adds Seconds of study time to a running session.
type TickCommand struct {
	UserID   shared.UserID   `validate:"gt=0"`
	CourseID shared.CourseID `validate:"gt=0"`
	Seconds  int64           `validate:"gt=0,lte=3600"`
}

// CompleteModuleCommand marks a module completed.
type CompleteModuleCommand struct {
	UserID   shared.UserID   `validate:"gt=0"`
	ModuleID shared.ModuleID `validate:"gt=0"`
}

// ClaimImageCommand rewards the first interaction with a picture.
type ClaimImageCommand struct {
	UserID    shared.UserID    `validate:"gt=0"`
	PictureID shared.PictureID `validate:"gt=0"`
	Amount    shared.Coins     `validate:"gt=0"`
}

// PurchaseBonusCommand buys the bonus module of a course.
type PurchaseBonusCommand struct {
	UserID   shared.UserID   `validate:"gt=0"`
	ModuleID shared.ModuleID `validate:"gt=0"`
}

func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return shared.WrapError("progression", "Validate", shared.ErrInvalidInput, "invalid command", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollResult reports an enrollment. Outcome is AlreadyDone on re-enrollment.
type EnrollResult struct {
	Outcome Outcome
	View    progress.View
	Elapsed int64
}

// TimerResult reports the session after a timer operation.
type TimerResult struct {
	Outcome Outcome
	Running bool

	// Accepted is false for a tick that hit a stopped session.
	Accepted bool

	Elapsed   int64
	Remaining int64

	// Persisted is the delta written by a pause.
	Persisted int64
}

// RewardResult reports a single grant attempt.
type RewardResult struct {
	Outcome Outcome
	Kind    reward.Kind
	Amount  shared.Coins
	Balance shared.Coins
}

func rewardResult(g reward.GrantResult) RewardResult {
	o := OK
	if g.Outcome == reward.AlreadyGranted {
		o = AlreadyDone
	}
	return RewardResult{Outcome: o, Kind: g.Kind, Amount: g.Amount, Balance: g.Balance}
}

// CompleteModuleResult reports a completion and the rewards it triggered.
type CompleteModuleResult struct {
	Outcome        Outcome
	View           progress.View
	CourseComplete bool

	// Completion and Timed are nil when the grant was not attempted.
	Completion *RewardResult
	Timed      *RewardResult

	Balance shared.Coins
}

// PurchaseResult reports a bonus module purchase.
type PurchaseResult struct {
	Outcome Outcome
	Cost    shared.Coins
	Balance shared.Coins
	View    progress.View
}

// ViewResult reports an unlock view query.
type ViewResult struct {
	Outcome Outcome
	View    progress.View
}

// BalanceResult reports a balance query.
type BalanceResult struct {
	Outcome Outcome
	Balance shared.Coins
}

// EnrollmentsResult lists the courses a user is enrolled in.
type EnrollmentsResult struct {
	Outcome Outcome
	Courses []shared.CourseID
}

// TimeResult reports the time left for the timed reward.
type TimeResult struct {
	Outcome   Outcome
	Limit     int64
	Elapsed   int64
	Remaining int64
}
