package lot

import (
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

// EventDef is one entry of the closed lot-event table.
type EventDef struct {
	Kind     string
	Timing   model.EventTiming
	Weight   int
	MinTier  int // venues below this tier never roll the event
	MinRound int // on_bid only: earliest trigger round
	Effects  []model.Effect
}

// EventDefs returns the full event table. Applying effects is the state
// machine's job; this table only describes them.
func EventDefs() []EventDef {
	return []EventDef{
		// --- on_reveal: fire when the auction is entered ---
		{
			Kind: "no_show", Timing: model.TimingOnReveal, Weight: 14,
			Effects: []model.Effect{{Kind: model.EffectBidderDropout, Count: 1}},
		},
		{
			Kind: "rumored_valuables", Timing: model.TimingOnReveal, Weight: 10,
			Effects: []model.Effect{{Kind: model.EffectAggressionBoost, Factor: 1.3}},
		},
		{
			Kind: "fast_auctioneer", Timing: model.TimingOnReveal, Weight: 8,
			Effects: []model.Effect{{Kind: model.EffectIncrementBoost, Factor: 2.0}},
		},
		{
			Kind: "overheard_budget", Timing: model.TimingOnReveal, Weight: 8, MinTier: 2,
			Effects: []model.Effect{{Kind: model.EffectRevealCeiling, Count: 1}},
		},

		// --- on_bid: fire mid-auction at a rolled trigger round ---
		{
			Kind: "phone_call_exit", Timing: model.TimingOnBid, Weight: 12, MinRound: 2,
			Effects: []model.Effect{{Kind: model.EffectBidderDropout, Count: 1}},
		},
		{
			Kind: "bidding_frenzy", Timing: model.TimingOnBid, Weight: 9, MinRound: 3,
			Effects: []model.Effect{{Kind: model.EffectAggressionBoost, Factor: 1.5}},
		},
		{
			Kind: "late_arrival", Timing: model.TimingOnBid, Weight: 8, MinRound: 2,
			Effects: []model.Effect{{Kind: model.EffectLateBidder, Count: 1}},
		},
		{
			Kind: "auctioneer_pressure", Timing: model.TimingOnBid, Weight: 7, MinRound: 4,
			Effects: []model.Effect{{Kind: model.EffectIncrementBoost, Factor: 1.5}},
		},

		// --- on_win: fire once the player takes the lot ---
		{
			Kind: "hidden_compartment", Timing: model.TimingOnWin, Weight: 9, MinTier: 2,
			Effects: []model.Effect{{Kind: model.EffectExtraItem, Count: 1}},
		},
		{
			Kind: "water_damage", Timing: model.TimingOnWin, Weight: 10,
			Effects: []model.Effect{{Kind: model.EffectQualityDowngrade, Factor: 0.6}},
		},
		{
			Kind: "pristine_find", Timing: model.TimingOnWin, Weight: 7,
			Effects: []model.Effect{{Kind: model.EffectQualityUpgrade, Factor: 1.4}},
		},
		{
			Kind: "fee_waived", Timing: model.TimingOnWin, Weight: 6,
			Effects: []model.Effect{{Kind: model.EffectFeeRefund, Amount: decimal.NewFromInt(100)}},
		},
		{
			Kind: "insurance_payout", Timing: model.TimingOnWin, Weight: 5, MinTier: 3,
			Effects: []model.Effect{{Kind: model.EffectBonusReward, Amount: decimal.NewFromInt(500)}},
		},
		{
			Kind: "lucky_streak", Timing: model.TimingOnWin, Weight: 5,
			Effects: []model.Effect{{Kind: model.EffectBonusOdds, Factor: 1.25}},
		},
	}
}

// RollEvents attaches zero, one, or two events to a freshly generated lot.
// The second event rolls independently at a lower probability and never
// duplicates the first kind. Pure with respect to the auction.
func RollEvents(venue balance.Venue, luck float64, globals balance.Globals, src rng.Source) []model.LotEvent {
	chance := globals.EventBaseChance +
		globals.EventTierBonus*float64(venue.Tier) +
		globals.EventLuckBonus*luck
	if !rng.Chance(src, chance) {
		return nil
	}

	eligible := eligibleDefs(venue, nil)
	first, ok := pickEvent(eligible, globals, src)
	if !ok {
		return nil
	}
	events := []model.LotEvent{first}

	if rng.Chance(src, globals.SecondEventChance) {
		eligible = eligibleDefs(venue, []string{first.Kind})
		if second, ok := pickEvent(eligible, globals, src); ok {
			events = append(events, second)
		}
	}
	return events
}

func eligibleDefs(venue balance.Venue, exclude []string) []EventDef {
	denied := make(map[string]bool, len(venue.DeniedEvents)+len(exclude))
	for _, k := range venue.DeniedEvents {
		denied[k] = true
	}
	for _, k := range exclude {
		denied[k] = true
	}

	var defs []EventDef
	for _, d := range EventDefs() {
		if denied[d.Kind] || venue.Tier < d.MinTier {
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

func pickEvent(defs []EventDef, globals balance.Globals, src rng.Source) (model.LotEvent, bool) {
	cands := make([]rng.Weighted[EventDef], len(defs))
	for i, d := range defs {
		cands[i] = rng.Weighted[EventDef]{Item: d, Weight: d.Weight}
	}
	def, ok := rng.Choose(src, cands)
	if !ok {
		return model.LotEvent{}, false
	}

	ev := model.LotEvent{
		Kind:    def.Kind,
		Timing:  def.Timing,
		Effects: make([]model.Effect, len(def.Effects)),
	}
	copy(ev.Effects, def.Effects)

	if def.Timing == model.TimingOnBid {
		delay := 0
		if globals.OnBidDelayMax > 0 {
			delay = src.Intn(globals.OnBidDelayMax + 1)
		}
		ev.TriggerRound = def.MinRound + delay
	}
	return ev, true
}
