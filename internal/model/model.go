// Package model defines the core domain types shared across the auction engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlayerBidder is the reserved identity for the controlling player in
// CurrentBidder. NPC bidders always carry a UUID instead.
const PlayerBidder = "player"

// Rarity is the closed set of item rarity tiers, lowest to highest.
type Rarity string

const (
	RarityJunk      Rarity = "junk"
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Rarities lists all tiers in ascending value order. Index positions are
// used for rarity-shift arithmetic, so the order is load-bearing.
var Rarities = []Rarity{
	RarityJunk, RarityCommon, RarityUncommon,
	RarityRare, RarityEpic, RarityLegendary,
}

// Personality is the closed set of NPC bidder archetypes.
type Personality string

const (
	PersonalityNewbie     Personality = "newbie"
	PersonalityCautious   Personality = "cautious"
	PersonalityAggressive Personality = "aggressive"
	PersonalityVeteran    Personality = "veteran"
	PersonalityWildcard   Personality = "wildcard"
)

// Personalities lists every archetype. Roster assignment rolls uniformly
// over this slice.
var Personalities = []Personality{
	PersonalityNewbie, PersonalityCautious, PersonalityAggressive,
	PersonalityVeteran, PersonalityWildcard,
}

// Status is the auction lifecycle state.
type Status string

const (
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusWon, StatusLost, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Phase subdivides an active auction's closing sequence.
type Phase string

const (
	PhaseBidding    Phase = "bidding"
	PhaseGoingOnce  Phase = "going_once"
	PhaseGoingTwice Phase = "going_twice"
	PhaseFinalCall  Phase = "final_call"
)

// Closing reports whether the phase is part of the going_once → final_call
// countdown (the window in which a sniper bid is legal).
func (p Phase) Closing() bool {
	switch p {
	case PhaseGoingOnce, PhaseGoingTwice, PhaseFinalCall:
		return true
	}
	return false
}

// TacticKind identifies one of the player's limited-use interventions.
type TacticKind string

const (
	TacticIntimidate TacticKind = "intimidate"
	TacticBluff      TacticKind = "bluff"
	TacticSniper     TacticKind = "sniper"
)

// EventTiming is when an attached lot event fires.
type EventTiming string

const (
	TimingOnReveal EventTiming = "on_reveal"
	TimingOnBid    EventTiming = "on_bid"
	TimingOnWin    EventTiming = "on_win"
)

// EffectKind is the closed set of lot-event effect types.
type EffectKind string

const (
	EffectBidderDropout    EffectKind = "bidder_dropout"
	EffectAggressionBoost  EffectKind = "aggression_boost"
	EffectIncrementBoost   EffectKind = "increment_boost"
	EffectExtraItem        EffectKind = "extra_item"
	EffectQualityUpgrade   EffectKind = "quality_upgrade"
	EffectQualityDowngrade EffectKind = "quality_downgrade"
	EffectFeeRefund        EffectKind = "fee_refund"
	EffectBonusReward      EffectKind = "bonus_reward"
	EffectLateBidder       EffectKind = "late_bidder"
	EffectRevealCeiling    EffectKind = "reveal_ceiling"
	EffectBonusOdds        EffectKind = "bonus_odds"
)

// LotItem is one valued item inside a lot. Value is condition-adjusted at
// generation time.
type LotItem struct {
	Rarity   Rarity          `json:"rarity"`
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
}

// Lot is the hidden contents of one auction: an ordered collection of valued
// items plus the derived total. Immutable once generated; visible to the
// player only after the auction is won.
type Lot struct {
	Items            []LotItem       `json:"items"`
	HiddenTotalValue decimal.Decimal `json:"hidden_total_value"`
}

// Bidder is a non-player auction participant.
type Bidder struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Personality     Personality     `json:"personality"`
	MaxBid          decimal.Decimal `json:"max_bid"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	DroppedOut      bool            `json:"dropped_out"` // one-way within an auction
	BidsPlaced      int             `json:"bids_placed"`
	CeilingRevealed bool            `json:"ceiling_revealed"` // set by a reveal-ceiling event
}

// LotEvent is a probabilistic modifier attached to a specific auction at
// generation time. Applied flips false → true exactly once, at the round or
// phase matching Timing.
type LotEvent struct {
	Kind         string      `json:"kind"`
	Timing       EventTiming `json:"timing"`
	TriggerRound int         `json:"trigger_round,omitempty"` // on_bid only
	Applied      bool        `json:"applied"`
	Effects      []Effect    `json:"effects"`
}

// Effect is one typed consequence of a lot event. Amount carries monetary
// effects; Factor carries multiplicative effects; Count carries item counts.
type Effect struct {
	Kind   EffectKind      `json:"kind"`
	Amount decimal.Decimal `json:"amount,omitempty"`
	Factor float64         `json:"factor,omitempty"`
	Count  int             `json:"count,omitempty"`
}

// TacticBudget tracks per-auction tactic allowances. Consumed monotonically,
// never replenished mid-auction. Allowance records the per-tactic starting
// uses so spent counts stay derivable after the auction closes.
type TacticBudget struct {
	Allowance       int `json:"allowance"`
	IntimidateLeft  int `json:"intimidate_left"`
	BluffLeft       int `json:"bluff_left"`
	SniperLeft      int `json:"sniper_left"`
	LastTacticRound int `json:"last_tactic_round"` // -1 = never used
}

// Auction is the aggregate root for one storage-unit auction.
type Auction struct {
	ID            string          `json:"id"`
	Venue         string          `json:"venue"`
	VenueTier     int             `json:"venue_tier"`
	Lot           Lot             `json:"-"` // hidden; exposed via RevealedLot once won
	Bidders       []Bidder        `json:"bidders"`
	CurrentBid    decimal.Decimal `json:"current_bid"`
	CurrentBidder string          `json:"current_bidder"` // "", PlayerBidder, or a bidder ID
	BidIncrement  decimal.Decimal `json:"bid_increment"`
	MinimumBid    decimal.Decimal `json:"minimum_bid"`
	Round         int             `json:"round"`
	PhaseTimer    int             `json:"phase_timer"` // rounds remaining in current phase
	Phase         Phase           `json:"phase"`
	Status        Status          `json:"status"`
	Events        []LotEvent      `json:"events"`
	Budget        TacticBudget    `json:"budget"`

	// Event-driven modifiers accumulated during the auction.
	AggressionBoost float64         `json:"aggression_boost"` // 1.0 = neutral
	FeeRefund       decimal.Decimal `json:"fee_refund"`
	BonusReward     decimal.Decimal `json:"bonus_reward"`
	BonusOdds       float64         `json:"bonus_odds"` // post-win bonus roll modifier

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Clone returns a deep copy. Round resolution is a pure transformation from
// one snapshot to the next, so every mutation path starts here.
func (a *Auction) Clone() *Auction {
	c := *a
	c.Bidders = make([]Bidder, len(a.Bidders))
	copy(c.Bidders, a.Bidders)
	c.Events = make([]LotEvent, len(a.Events))
	for i, ev := range a.Events {
		c.Events[i] = ev
		c.Events[i].Effects = make([]Effect, len(ev.Effects))
		copy(c.Events[i].Effects, ev.Effects)
	}
	c.Lot.Items = make([]LotItem, len(a.Lot.Items))
	copy(c.Lot.Items, a.Lot.Items)
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// ActiveBidders returns the bidders still in the auction, in roster order.
func (a *Auction) ActiveBidders() []*Bidder {
	var active []*Bidder
	for i := range a.Bidders {
		if !a.Bidders[i].DroppedOut {
			active = append(active, &a.Bidders[i])
		}
	}
	return active
}

// BidderByID returns the bidder with the given ID, or nil.
func (a *Auction) BidderByID(id string) *Bidder {
	for i := range a.Bidders {
		if a.Bidders[i].ID == id {
			return &a.Bidders[i]
		}
	}
	return nil
}

// NextMinBid is the lowest amount any new proposal must reach.
func (a *Auction) NextMinBid() decimal.Decimal {
	if a.CurrentBidder == "" {
		return a.MinimumBid
	}
	return a.CurrentBid.Add(a.BidIncrement)
}

// RevealedLot returns the lot contents, but only once the auction is won.
// Before that the hidden ground truth stays hidden.
func (a *Auction) RevealedLot() (Lot, bool) {
	if a.Status != StatusWon {
		return Lot{}, false
	}
	return a.Lot, true
}
