// Package reward implements the reward ledger: one append-only claim per
// (user, course, kind), inserted in the same transaction as the coin
// movement it pays for. The claim row is the only record of "already granted".
package reward

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/timeutil"
)

// KindType is the category of a reward.
type KindType string

const (
	KindCompletion       KindType = "completion"
	KindTimed            KindType = "timed"
	KindDailyLogin       KindType = "daily_login"
	KindImageInteraction KindType = "image"
	KindBonusUnlock      KindType = "bonus_unlock"
)

// Kind identifies a one-time reward. Parameterised kinds carry the value that
// makes them distinct: the calendar day, the picture or the bonus module.
type Kind struct {
	Type    KindType
	Day     string
	Picture shared.PictureID
	Module  shared.ModuleID
}

func CompletionReward() Kind { return Kind{Type: KindCompletion} }
func TimedReward() Kind      { return Kind{Type: KindTimed} }

// DailyLogin is keyed by a timeutil.DayKey day such as "2026-10-17".
func DailyLogin(day string) Kind { return Kind{Type: KindDailyLogin, Day: day} }

func ImageInteraction(p shared.PictureID) Kind { return Kind{Type: KindImageInteraction, Picture: p} }
func BonusModuleUnlock(m shared.ModuleID) Kind { return Kind{Type: KindBonusUnlock, Module: m} }

// Key is the stable string stored with the claim, e.g. "image:42".
func (k Kind) Key() string {
	switch k.Type {
	case KindDailyLogin:
		return string(k.Type) + ":" + k.Day
	case KindImageInteraction:
		return string(k.Type) + ":" + k.Picture.String()
	case KindBonusUnlock:
		return string(k.Type) + ":" + k.Module.String()
	default:
		return string(k.Type)
	}
}

func (k Kind) String() string { return k.Key() }

// Validate checks that parameterised kinds carry their parameter.
func (k Kind) Validate() error {
	bad := func(msg string) error {
		return shared.NewDomainError("reward", "ValidateKind", shared.ErrInvalidInput, msg)
	}
	switch k.Type {
	case KindCompletion, KindTimed:
		return nil
	case KindDailyLogin:
		if _, err := timeutil.ParseDayKey(k.Day, nil); err != nil {
			return bad("daily login kind needs a YYYY-MM-DD day")
		}
	case KindImageInteraction:
		if !k.Picture.IsValid() {
			return bad("image kind needs a picture id")
		}
	case KindBonusUnlock:
		if !k.Module.IsValid() {
			return bad("bonus unlock kind needs a module id")
		}
	default:
		return bad(fmt.Sprintf("unknown reward kind %q", k.Type))
	}
	return nil
}

// ParseKind is the inverse of Key.
func ParseKind(key string) (Kind, error) {
	typ, param, _ := strings.Cut(key, ":")
	k := Kind{Type: KindType(typ)}
	switch k.Type {
	case KindDailyLogin:
		k.Day = param
	case KindImageInteraction, KindBonusUnlock:
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return Kind{}, shared.WrapError("reward", "ParseKind", shared.ErrInvalidInput, "bad kind parameter", err)
		}
		if k.Type == KindImageInteraction {
			k.Picture = shared.PictureID(id)
		} else {
			k.Module = shared.ModuleID(id)
		}
	}
	if err := k.Validate(); err != nil {
		return Kind{}, err
	}
	return k, nil
}
