package progression

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
	"github.com/alem-hub/progress-ledger/pkg/timeutil"
)

// ClaimImageInteraction pays for the first interaction with a picture.
func (s *Service) ClaimImageInteraction(ctx context.Context, cmd ClaimImageCommand) (res RewardResult, err error) {
	ctx, span := s.startSpan(ctx, "ClaimImageInteraction", cmd.UserID, attribute.Int64("picture.id", int64(cmd.PictureID)))
	defer func() { s.finish(span, "ClaimImageInteraction", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return RewardResult{Outcome: InvalidInput}, nil
	}
	res, err = s.grant(ctx, cmd.UserID, shared.GlobalScope, reward.ImageInteraction(cmd.PictureID), cmd.Amount)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return RewardResult{Outcome: o}, nil
		}
		return RewardResult{}, shared.Infrastructure("progression", "ClaimImageInteraction", err)
	}
	return res, nil
}

// ClaimDailyLogin pays the daily bonus once per calendar day in the
// configured location.
func (s *Service) ClaimDailyLogin(ctx context.Context, user shared.UserID) (res RewardResult, err error) {
	ctx, span := s.startSpan(ctx, "ClaimDailyLogin", user)
	defer func() { s.finish(span, "ClaimDailyLogin", res.Outcome, err) }()

	if !user.IsValid() {
		return RewardResult{Outcome: InvalidInput}, nil
	}
	day := timeutil.DayKey(s.now(), s.cfg.Location)
	span.SetAttributes(attribute.String("day", day))

	res, err = s.grant(ctx, user, shared.GlobalScope, reward.DailyLogin(day), s.cfg.DailyLoginAmount)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return RewardResult{Outcome: o}, nil
		}
		return RewardResult{}, shared.Infrastructure("progression", "ClaimDailyLogin", err)
	}
	return res, nil
}

// PurchaseBonusModule buys the bonus module of a course the user is enrolled
// in. The debit and the ownership claim commit together.
func (s *Service) PurchaseBonusModule(ctx context.Context, cmd PurchaseBonusCommand) (res PurchaseResult, err error) {
	ctx, span := s.startSpan(ctx, "PurchaseBonusModule", cmd.UserID, attribute.Int64("module.id", int64(cmd.ModuleID)))
	defer func() { s.finish(span, "PurchaseBonusModule", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return PurchaseResult{Outcome: InvalidInput}, nil
	}
	m, err := s.getModule(ctx, cmd.ModuleID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return PurchaseResult{Outcome: o}, nil
		}
		return PurchaseResult{}, shared.Infrastructure("progression", "PurchaseBonusModule", err)
	}
	if !m.IsBonus {
		return PurchaseResult{Outcome: NotFound}, nil
	}
	c, err := s.getCourse(ctx, m.CourseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return PurchaseResult{Outcome: o}, nil
		}
		return PurchaseResult{}, shared.Infrastructure("progression", "PurchaseBonusModule", err)
	}
	enrolled, err := s.isEnrolled(ctx, cmd.UserID, c.ID)
	if err != nil {
		return PurchaseResult{}, shared.Infrastructure("progression", "PurchaseBonusModule", err)
	}
	if !enrolled {
		return PurchaseResult{Outcome: NotEnrolled}, nil
	}

	p, err := s.ledger.Purchase(ctx, cmd.UserID, c.ID, m.ID, m.UnlockCost)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return PurchaseResult{Outcome: o}, nil
		}
		return PurchaseResult{}, shared.Infrastructure("progression", "PurchaseBonusModule", err)
	}
	res = PurchaseResult{Cost: p.Cost, Balance: p.Balance}
	switch p.Outcome {
	case reward.AlreadyOwned:
		res.Outcome = AlreadyDone
	case reward.InsufficientFunds:
		res.Outcome = InsufficientFunds
		return res, nil
	default:
		res.Outcome = OK
		s.publish(shared.NewBonusPurchasedEvent(cmd.UserID, c.ID, m.ID, p.Cost, p.Balance))
		s.log.Info("bonus module purchased",
			logger.UserID(int64(cmd.UserID)),
			logger.CourseID(int64(c.ID)),
			logger.ModuleID(int64(m.ID)),
			logger.Amount(int64(p.Cost)),
			logger.Balance(int64(p.Balance)),
		)
	}

	v, err := s.buildView(ctx, cmd.UserID, c)
	if err != nil {
		return res, shared.Infrastructure("progression", "PurchaseBonusModule", err)
	}
	res.View = v
	return res, nil
}

// GetBalance reads the coin balance; a user without an account has 0.
func (s *Service) GetBalance(ctx context.Context, user shared.UserID) (BalanceResult, error) {
	if !user.IsValid() {
		return BalanceResult{Outcome: InvalidInput}, nil
	}
	bal, err := read(ctx, s, func(ctx context.Context) (shared.Coins, error) {
		return s.account.Balance(ctx, user)
	})
	if err != nil {
		return BalanceResult{}, shared.Infrastructure("progression", "GetBalance", err)
	}
	return BalanceResult{Outcome: OK, Balance: bal}, nil
}

// LastDailyLogin returns the start of the most recent day the user claimed
// the daily bonus. ok is false if they never did.
func (s *Service) LastDailyLogin(ctx context.Context, user shared.UserID) (day time.Time, ok bool, err error) {
	c, err := read(ctx, s, func(ctx context.Context) (*reward.Claim, error) {
		return s.ledger.Latest(ctx, user, shared.GlobalScope, reward.KindDailyLogin)
	})
	if err != nil {
		return time.Time{}, false, shared.Infrastructure("progression", "LastDailyLogin", err)
	}
	if c == nil {
		return time.Time{}, false, nil
	}
	day, err = timeutil.ParseDayKey(c.Kind.Day, s.cfg.Location)
	if err != nil {
		return time.Time{}, false, shared.Infrastructure("progression", "LastDailyLogin", err)
	}
	return day, true, nil
}

// ListClaims returns the claims of a user in one scope. Pass
// shared.GlobalScope for user-wide claims.
func (s *Service) ListClaims(ctx context.Context, user shared.UserID, courseID shared.CourseID) ([]reward.Claim, error) {
	claims, err := read(ctx, s, func(ctx context.Context) ([]reward.Claim, error) {
		return s.ledger.Claims(ctx, user, courseID)
	})
	if err != nil {
		return nil, shared.Infrastructure("progression", "ListClaims", err)
	}
	return claims, nil
}
