// Package bidder implements the NPC decision model: a pure function mapping
// one bidder's personality, budget state, and the auction's current public bid
// into a bid-or-withdraw decision for the round.
//
// Randomness is independent per bidder per round; no bidder sees another's
// roll before committing. The state machine collects every proposal for the
// round before resolving a winner.
package bidder

import (
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

// Decision is one bidder's round outcome.
type Decision struct {
	// Withdraw means no proposal this round.
	Withdraw bool
	// Permanent marks the withdrawal as a dropout (one-way for the auction).
	Permanent bool
	// Amount is the proposed bid when Withdraw is false.
	Amount decimal.Decimal
}

// Input is the public state a bidder decides against.
type Input struct {
	CurrentBid decimal.Decimal
	Increment  decimal.Decimal
	Minimum    decimal.Decimal // venue minimum; first bid floor when nobody holds
	HasHolder  bool            // false while CurrentBidder is unset
	Round      int
	// Aggression multiplies jump sizes; 1.0 is neutral. Lot events can
	// raise it mid-auction.
	Aggression float64
}

// nextMinBid is the lowest legal proposal for this input.
func nextMinBid(in Input) decimal.Decimal {
	if !in.HasHolder {
		return in.Minimum
	}
	return in.CurrentBid.Add(in.Increment)
}

// Decide resolves one bidder's round. The decision order is fixed:
// patience wait, hard ceiling check, threshold dropout, soft dropout,
// then bid sizing.
func Decide(b model.Bidder, in Input, globals balance.Globals, src rng.Source) Decision {
	if b.DroppedOut {
		return Decision{Withdraw: true, Permanent: true}
	}
	cfg := balance.Config(b.Personality)

	// (a) Patience window: the bidder is waiting, not gone.
	if in.Round <= cfg.PatienceRounds && rng.Chance(src, cfg.WaitChance) {
		return Decision{Withdraw: true}
	}

	next := nextMinBid(in)

	// (b) Hard ceiling: cannot afford the next minimum bid.
	if next.GreaterThan(b.MaxBid) {
		return Decision{Withdraw: true, Permanent: true}
	}

	// (c) Threshold dropout: budget pressure, high but not absolute.
	budgetUsed := 0.0
	if b.MaxBid.IsPositive() {
		budgetUsed = in.CurrentBid.Div(b.MaxBid).InexactFloat64()
	}
	if budgetUsed > cfg.DropoutThreshold && rng.Chance(src, cfg.ThresholdDropoutChance) {
		return Decision{Withdraw: true, Permanent: true}
	}

	// (d) Soft dropout grows with elapsed rounds, dampened globally.
	soft := cfg.BaseDropoutRate +
		float64(in.Round)*globals.RoundDropoutGrowth*globals.DropoutDampener
	if rng.Chance(src, soft) {
		return Decision{Withdraw: true, Permanent: true}
	}

	// (e) Bid: minimum next bid plus a personality-shaped random multiple of
	// the increment, capped at the ceiling.
	jump := rng.Between(src, cfg.BidJumpMin, cfg.BidJumpMax) * in.Aggression
	amount := next.Add(in.Increment.Mul(decimal.NewFromFloat(jump))).Round(2)
	if amount.GreaterThan(b.MaxBid) {
		amount = b.MaxBid
	}
	return Decision{Amount: amount}
}
