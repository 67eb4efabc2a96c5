// Package balance holds the tuning surface of the auction engine: the NPC
// personality configuration table, global constants, and venue configuration
// with defensive validation.
//
// The numbers here target a 40–50% player loss rate across venues; change
// them together with the cmd/simulate harness, not in isolation.
package balance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/model"
)

var (
	// ErrEmptyNamePool is returned when a venue has no bidder names to draw from.
	ErrEmptyNamePool = errors.New("balance: bidder name pool is empty")

	// ErrInvalidMinimumBid is returned when a venue's minimum bid is not positive.
	ErrInvalidMinimumBid = errors.New("balance: minimum bid must be positive")

	// ErrNoLotTiers is returned when a venue carries no lot-quality tier weights.
	ErrNoLotTiers = errors.New("balance: venue has no lot-quality tiers")
)

// PersonalityConfig is the per-archetype tuning block. Probabilities are
// float64 tuning scalars; anything monetary stays decimal at the call site.
type PersonalityConfig struct {
	// MaxBidMin/MaxBidMax bound the willingness-to-pay fraction of the lot's
	// hidden total value before the global aggression constant applies.
	MaxBidMin float64
	MaxBidMax float64

	// DropoutThreshold is the budget-used ratio past which the bidder bails
	// with ThresholdDropoutChance (high, not absolute).
	DropoutThreshold       float64
	ThresholdDropoutChance float64

	// BaseDropoutRate is the per-round soft dropout probability before round
	// growth and the global dampener.
	BaseDropoutRate float64

	// BidJumpMin/BidJumpMax bound the random multiple of the increment added
	// on top of the minimum next bid.
	BidJumpMin float64
	BidJumpMax float64

	// PatienceRounds is the window during which the bidder mostly waits;
	// WaitChance is the per-round probability of sitting out inside it.
	PatienceRounds int
	WaitChance     float64

	// Intimidate outcome probabilities; the remainder is "shaken but stays".
	IntimidateDropout float64
	IntimidateCounter float64

	// Bluff outcome probabilities; the remainder is "unaffected".
	BluffFooled float64
	BluffCalls  float64

	// CounterMultiplier scales the increment on tactic counter-bids.
	CounterMultiplier float64
}

// Config returns the tuning block for a personality. The switch is exhaustive
// over the closed archetype set; an unknown tag is a programming error.
func Config(p model.Personality) PersonalityConfig {
	switch p {
	case model.PersonalityNewbie:
		return PersonalityConfig{
			MaxBidMin: 0.35, MaxBidMax: 0.65,
			DropoutThreshold: 0.55, ThresholdDropoutChance: 0.85,
			BaseDropoutRate: 0.18,
			BidJumpMin:      0.0, BidJumpMax: 1.0,
			PatienceRounds: 0, WaitChance: 0,
			IntimidateDropout: 0.55, IntimidateCounter: 0.15,
			BluffFooled: 0.50, BluffCalls: 0.10,
			CounterMultiplier: 1.0,
		}
	case model.PersonalityCautious:
		return PersonalityConfig{
			MaxBidMin: 0.40, MaxBidMax: 0.70,
			DropoutThreshold: 0.60, ThresholdDropoutChance: 0.80,
			BaseDropoutRate: 0.12,
			BidJumpMin:      0.5, BidJumpMax: 1.0,
			PatienceRounds: 2, WaitChance: 0.70,
			IntimidateDropout: 0.40, IntimidateCounter: 0.20,
			BluffFooled: 0.35, BluffCalls: 0.20,
			CounterMultiplier: 1.0,
		}
	case model.PersonalityAggressive:
		return PersonalityConfig{
			MaxBidMin: 0.60, MaxBidMax: 1.00,
			DropoutThreshold: 0.85, ThresholdDropoutChance: 0.60,
			BaseDropoutRate: 0.05,
			BidJumpMin:      1.0, BidJumpMax: 3.0,
			PatienceRounds: 0, WaitChance: 0,
			IntimidateDropout: 0.10, IntimidateCounter: 0.60,
			BluffFooled: 0.10, BluffCalls: 0.50,
			CounterMultiplier: 2.0,
		}
	case model.PersonalityVeteran:
		return PersonalityConfig{
			MaxBidMin: 0.55, MaxBidMax: 0.90,
			DropoutThreshold: 0.75, ThresholdDropoutChance: 0.70,
			BaseDropoutRate: 0.07,
			BidJumpMin:      0.8, BidJumpMax: 2.0,
			PatienceRounds: 3, WaitChance: 0.80,
			IntimidateDropout: 0.15, IntimidateCounter: 0.35,
			BluffFooled: 0.10, BluffCalls: 0.40,
			CounterMultiplier: 1.5,
		}
	case model.PersonalityWildcard:
		return PersonalityConfig{
			MaxBidMin: 0.30, MaxBidMax: 1.10,
			DropoutThreshold: 0.70, ThresholdDropoutChance: 0.50,
			BaseDropoutRate: 0.10,
			BidJumpMin:      0.2, BidJumpMax: 4.0,
			PatienceRounds: 1, WaitChance: 0.40,
			IntimidateDropout: 0.30, IntimidateCounter: 0.30,
			BluffFooled: 0.30, BluffCalls: 0.30,
			CounterMultiplier: 1.8,
		}
	}
	panic(fmt.Sprintf("balance: unknown personality %q", p))
}

// Globals groups the auction-wide tuning constants. Grouped into one value
// passed once at engine construction rather than threaded through every call.
type Globals struct {
	// NPCAggression scales every bidder ceiling (global aggression constant).
	NPCAggression float64

	// MinCeilingFraction guarantees the strongest bidder's ceiling reaches
	// this fraction of the hidden total value (the zero-bid-deadlock guard).
	MinCeilingFraction float64

	// MaxBidFloorFraction floors every ceiling at this multiple of the
	// venue's minimum bid.
	MaxBidFloorFraction float64

	// CeilingVarianceMin/Max bound the per-bidder random variance.
	CeilingVarianceMin float64
	CeilingVarianceMax float64

	// DropoutDampener shrinks the round-growth term of the soft dropout roll.
	DropoutDampener float64

	// RoundDropoutGrowth is the per-elapsed-round increment of the soft
	// dropout probability before dampening.
	RoundDropoutGrowth float64

	// MaxRounds is the bidding-phase round budget before going_once starts.
	MaxRounds int

	// ClosingPhaseRounds is the (shorter) timer of each closing phase.
	ClosingPhaseRounds int

	// ReopenRounds is the bidding timer restored when a closing phase is
	// interrupted by a new high bid.
	ReopenRounds int

	// ClosingBidChance gates whether an active bidder even attempts a
	// proposal during a closing phase.
	ClosingBidChance float64

	// Tactic allowances and pacing.
	TacticUses         int
	TacticCooldown     int // rounds since last tactic use
	IntimidateMinRound int

	// Sniper tuning: premium over the minimum next bid, and the fraction of
	// the normal response window NPCs get to answer in.
	SniperPremium        float64
	SniperWindowFraction float64

	// Lot downward-bias mechanisms preserving loss risk.
	DudLotChance   float64
	JunkItemChance float64

	// Lot event odds.
	EventBaseChance   float64
	EventTierBonus    float64 // added per venue tier
	EventLuckBonus    float64 // added per luck point
	SecondEventChance float64
	OnBidDelayMax     int // random delay added to an on_bid event's min round
}

// DefaultGlobals returns the shipped tuning. The simulate harness verifies
// these land in the 40–50% loss band.
func DefaultGlobals() Globals {
	return Globals{
		NPCAggression:        0.90,
		MinCeilingFraction:   0.45,
		MaxBidFloorFraction:  1.50,
		CeilingVarianceMin:   0.90,
		CeilingVarianceMax:   1.10,
		DropoutDampener:      0.50,
		RoundDropoutGrowth:   0.03,
		MaxRounds:            12,
		ClosingPhaseRounds:   1,
		ReopenRounds:         2,
		ClosingBidChance:     0.30,
		TacticUses:           1,
		TacticCooldown:       1,
		IntimidateMinRound:   2,
		SniperPremium:        1.15,
		SniperWindowFraction: 0.35,
		DudLotChance:         0.06,
		JunkItemChance:       0.12,
		EventBaseChance:      0.30,
		EventTierBonus:       0.04,
		EventLuckBonus:       0.02,
		SecondEventChance:    0.12,
		OnBidDelayMax:        3,
	}
}

// LotTier is one entry of a venue's lot-quality weighting table. RarityShift
// moves item rarity rolls up or down the tier ladder; ItemBonus adds items.
type LotTier struct {
	Name        string
	Weight      int
	RarityShift int
	ItemBonus   int
}

// Venue is the per-location configuration consumed by the lot generator.
type Venue struct {
	Name            string
	Tier            int
	MinItems        int
	MaxItems        int
	ValueMultiplier decimal.Decimal
	RareChance      float64
	MaxBidders      int
	MinimumBid      decimal.Decimal
	BidIncrement    decimal.Decimal
	LotTiers        []LotTier
	DeniedEvents    []string // event kinds this venue never rolls
}

// Validate clamps repairable misconfiguration and fails loudly on the rest.
// A venue that cannot be repaired must never produce a partially-built lot.
func (v Venue) Validate() (Venue, error) {
	if v.MinItems < 1 {
		v.MinItems = 1
	}
	if v.MaxItems < v.MinItems {
		v.MaxItems = v.MinItems + 1
	}
	if v.MaxBidders < 0 {
		v.MaxBidders = 0
	}
	if v.MinimumBid.LessThanOrEqual(decimal.Zero) {
		return v, fmt.Errorf("%w: venue %q", ErrInvalidMinimumBid, v.Name)
	}
	if v.BidIncrement.LessThanOrEqual(decimal.Zero) {
		// Default increment: 10% of the minimum bid.
		v.BidIncrement = v.MinimumBid.Div(decimal.NewFromInt(10))
	}
	if v.ValueMultiplier.LessThanOrEqual(decimal.Zero) {
		v.ValueMultiplier = decimal.NewFromInt(1)
	}
	if len(v.LotTiers) == 0 {
		return v, fmt.Errorf("%w: venue %q", ErrNoLotTiers, v.Name)
	}
	return v, nil
}

// DefaultLotTiers is the standard lot-quality weighting table shared by the
// stock venues.
func DefaultLotTiers() []LotTier {
	return []LotTier{
		{Name: "cluttered", Weight: 30, RarityShift: -1, ItemBonus: 0},
		{Name: "standard", Weight: 40, RarityShift: 0, ItemBonus: 0},
		{Name: "curated", Weight: 18, RarityShift: 1, ItemBonus: 1},
		{Name: "premium", Weight: 9, RarityShift: 1, ItemBonus: 2},
		{Name: "estate", Weight: 3, RarityShift: 2, ItemBonus: 3},
	}
}

// StockVenues returns the built-in venue roster, lowest stakes first.
func StockVenues() []Venue {
	return []Venue{
		{
			Name: "roadside-lockup", Tier: 1,
			MinItems: 2, MaxItems: 5,
			ValueMultiplier: decimal.NewFromInt(1),
			RareChance:      0.04,
			MaxBidders:      3,
			MinimumBid:      decimal.NewFromInt(50),
			BidIncrement:    decimal.NewFromInt(10),
			LotTiers:        DefaultLotTiers(),
		},
		{
			Name: "suburban-storage", Tier: 2,
			MinItems: 3, MaxItems: 7,
			ValueMultiplier: decimal.NewFromInt(3),
			RareChance:      0.07,
			MaxBidders:      4,
			MinimumBid:      decimal.NewFromInt(200),
			BidIncrement:    decimal.NewFromInt(25),
			LotTiers:        DefaultLotTiers(),
		},
		{
			Name: "downtown-depot", Tier: 3,
			MinItems: 4, MaxItems: 9,
			ValueMultiplier: decimal.NewFromInt(8),
			RareChance:      0.10,
			MaxBidders:      5,
			MinimumBid:      decimal.NewFromInt(1000),
			BidIncrement:    decimal.NewFromInt(100),
			LotTiers:        DefaultLotTiers(),
		},
		{
			Name: "harbor-freeport", Tier: 4,
			MinItems: 5, MaxItems: 12,
			ValueMultiplier: decimal.NewFromInt(25),
			RareChance:      0.14,
			MaxBidders:      6,
			MinimumBid:      decimal.NewFromInt(5000),
			BidIncrement:    decimal.NewFromInt(500),
			LotTiers:        DefaultLotTiers(),
		},
	}
}

// VenueByName looks a stock venue up by name.
func VenueByName(name string) (Venue, bool) {
	for _, v := range StockVenues() {
		if v.Name == name {
			return v, true
		}
	}
	return Venue{}, false
}
