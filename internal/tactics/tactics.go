// Package tactics resolves the player's limited-use interventions against the
// current bidder roster: intimidate, bluff, and the timed sniper bid. Each
// resolution is pure — it reports reactions and counter-bids for the state
// machine to fold into the round; availability enforcement lives in the engine.
package tactics

import (
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

// Outcome is one bidder's reaction to a tactic.
type Outcome string

const (
	// OutcomeDropout removes the bidder for the rest of the auction.
	OutcomeDropout Outcome = "dropout"
	// OutcomeCounterBid is an immediate counter-bid against the player.
	OutcomeCounterBid Outcome = "counter_bid"
	// OutcomeUnmoved is "shaken but stays" / "unaffected": no state change.
	OutcomeUnmoved Outcome = "unmoved"
)

// Reaction pairs one bidder with its rolled outcome.
type Reaction struct {
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Outcome    Outcome         `json:"outcome"`
	CounterBid decimal.Decimal `json:"counter_bid,omitempty"`
}

// Intimidate rolls one of three outcomes per active bidder from the
// personality's intimidate table: forced dropout, counter-bid, or shaken.
func Intimidate(a *model.Auction, globals balance.Globals, src rng.Source) []Reaction {
	return rollReactions(a, src, func(cfg balance.PersonalityConfig) (dropout, counter float64) {
		return cfg.IntimidateDropout, cfg.IntimidateCounter
	})
}

// Bluff is structurally identical to intimidate with its own effect table:
// fooled (dropout), calls the bluff (counter-bid), or unaffected.
func Bluff(a *model.Auction, globals balance.Globals, src rng.Source) []Reaction {
	return rollReactions(a, src, func(cfg balance.PersonalityConfig) (dropout, counter float64) {
		return cfg.BluffFooled, cfg.BluffCalls
	})
}

func rollReactions(a *model.Auction, src rng.Source, table func(balance.PersonalityConfig) (float64, float64)) []Reaction {
	var reactions []Reaction
	for _, b := range a.ActiveBidders() {
		cfg := balance.Config(b.Personality)
		dropout, counter := table(cfg)

		roll := src.Float64()
		switch {
		case roll < dropout:
			reactions = append(reactions, Reaction{
				BidderID: b.ID, BidderName: b.Name, Outcome: OutcomeDropout,
			})
		case roll < dropout+counter:
			amount := counterBid(a, b, cfg)
			reactions = append(reactions, Reaction{
				BidderID: b.ID, BidderName: b.Name,
				Outcome: OutcomeCounterBid, CounterBid: amount,
			})
		default:
			reactions = append(reactions, Reaction{
				BidderID: b.ID, BidderName: b.Name, Outcome: OutcomeUnmoved,
			})
		}
	}
	return reactions
}

// counterBid sizes a tactic counter: current bid + increment × personality
// multiplier, capped at the bidder's ceiling.
func counterBid(a *model.Auction, b *model.Bidder, cfg balance.PersonalityConfig) decimal.Decimal {
	amount := a.CurrentBid.Add(
		a.BidIncrement.Mul(decimal.NewFromFloat(cfg.CounterMultiplier)),
	).Round(2)
	if amount.GreaterThan(b.MaxBid) {
		amount = b.MaxBid
	}
	return amount
}

// SniperAmount computes the player's sniper bid: (current bid + increment)
// times the configured premium, floored at the minimum next bid so a snipe
// into an unheld countdown still clears the venue minimum.
func SniperAmount(a *model.Auction, globals balance.Globals) decimal.Decimal {
	amount := a.CurrentBid.Add(a.BidIncrement).
		Mul(decimal.NewFromFloat(globals.SniperPremium)).Round(2)
	if next := a.NextMinBid(); amount.LessThan(next) {
		return next
	}
	return amount
}
