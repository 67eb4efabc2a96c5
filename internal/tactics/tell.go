package tactics

import (
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/model"
)

// TellLevel buckets a bidder's budget usage for display purposes.
type TellLevel string

const (
	TellLow  TellLevel = "low"
	TellMid  TellLevel = "mid"
	TellHigh TellLevel = "high"
)

// Tell is the advisory read on a bidder: a fixed, non-random display cue
// derived from personality and budget usage. It never feeds back into
// auction state.
type Tell struct {
	BidderID string    `json:"bidder_id"`
	Level    TellLevel `json:"level"`
	Cue      string    `json:"cue"`
}

// bucket thresholds for budget-used ratio.
const (
	tellMidFloor  = 0.40
	tellHighFloor = 0.75
)

// ReadTell maps a bidder's personality and current budget-used ratio into a
// tell. Returns false if the bidder has dropped out (nothing left to read).
func ReadTell(b model.Bidder, currentBid decimal.Decimal) (Tell, bool) {
	if b.DroppedOut {
		return Tell{}, false
	}

	used := 0.0
	if b.MaxBid.IsPositive() {
		used = currentBid.Div(b.MaxBid).InexactFloat64()
	}

	level := TellLow
	switch {
	case used >= tellHighFloor:
		level = TellHigh
	case used >= tellMidFloor:
		level = TellMid
	}

	return Tell{BidderID: b.ID, Level: level, Cue: cue(b.Personality, level)}, true
}

// cue returns the fixed display line for a personality at a usage level.
// Exhaustive over the closed personality set.
func cue(p model.Personality, level TellLevel) string {
	switch p {
	case model.PersonalityNewbie:
		switch level {
		case TellLow:
			return "bounces on their heels, eager"
		case TellMid:
			return "recounts the cash in their pocket"
		default:
			return "keeps glancing at the exit"
		}
	case model.PersonalityCautious:
		switch level {
		case TellLow:
			return "takes careful notes"
		case TellMid:
			return "checks a written budget twice"
		default:
			return "caps their pen and folds the notebook"
		}
	case model.PersonalityAggressive:
		switch level {
		case TellLow:
			return "stares down the competition"
		case TellMid:
			return "jaw set, arms crossed"
		default:
			return "knuckles white around the paddle"
		}
	case model.PersonalityVeteran:
		switch level {
		case TellLow:
			return "leans on the fence, unreadable"
		case TellMid:
			return "tilts their hat back slightly"
		default:
			return "slowly shakes their head"
		}
	case model.PersonalityWildcard:
		switch level {
		case TellLow:
			return "grins at nothing in particular"
		case TellMid:
			return "flips a coin between bids"
		default:
			return "laughs once, too loudly"
		}
	}
	return "gives nothing away"
}
