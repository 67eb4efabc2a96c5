// Package engine owns the per-auction state machine: it advances an auction
// one round or phase at a time by invoking the bidder decision model and the
// tactics resolver and merging their outputs into a new immutable snapshot.
//
// Every operation is a finite, synchronous computation over one auction.
// The engine performs no internal locking; hosts must invoke rounds and
// tactics for the same auction in strict serial order.
package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/bidder"
	"github.com/lockerloot/auction-engine/internal/catalog"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
	"github.com/lockerloot/auction-engine/internal/tactics"
)

var (
	// ErrNotActive is returned for player actions on auctions outside the
	// active state (including terminal ones).
	ErrNotActive = errors.New("engine: auction is not active")

	// ErrBidTooLow is returned when a player bid misses the minimum next bid.
	ErrBidTooLow = errors.New("engine: bid below minimum next bid")

	// ErrTacticUnavailable is the base rejection for tactic requests; the
	// specific reasons below wrap it. Callers check availability, they do
	// not rely on failure propagation.
	ErrTacticUnavailable = errors.New("engine: tactic not available")

	// ErrTacticExhausted is returned when the tactic's budget is spent.
	ErrTacticExhausted = errors.New("engine: tactic budget exhausted")

	// ErrTacticCooldown is returned inside the cooldown window.
	ErrTacticCooldown = errors.New("engine: tactic on cooldown")

	// ErrTacticTooEarly is returned before intimidate's minimum round.
	ErrTacticTooEarly = errors.New("engine: too early for this tactic")

	// ErrSniperPhase is returned when a sniper bid is requested outside a
	// going phase.
	ErrSniperPhase = errors.New("engine: sniper bid requires a going phase")
)

// Engine advances auctions. It is stateless apart from configuration and the
// randomness source; all auction state lives in the snapshots it returns.
type Engine struct {
	globals balance.Globals
	valuer  catalog.Valuer
	src     rng.Source
}

// New creates an engine. A nil valuer falls back to the catalog table valuer.
func New(globals balance.Globals, valuer catalog.Valuer, src rng.Source) *Engine {
	if valuer == nil {
		valuer = catalog.NewTableValuer()
	}
	return &Engine{globals: globals, valuer: valuer, src: src}
}

// Globals exposes the engine's tuning block (read-only by convention).
func (e *Engine) Globals() balance.Globals { return e.globals }

// Enter transitions available → active, fires on_reveal events, and resolves
// the zero-bidder edge: an auction with nobody to bid against is won on entry
// without a single round elapsing. No-op on any other status.
func (e *Engine) Enter(a *model.Auction) *model.Auction {
	if a.Status != model.StatusAvailable {
		return a
	}
	c := a.Clone()
	c.Status = model.StatusActive
	c.Phase = model.PhaseBidding
	c.PhaseTimer = e.globals.MaxRounds

	e.applyEvents(c, model.TimingOnReveal)

	if len(c.ActiveBidders()) == 0 {
		return e.close(c, model.StatusWon)
	}
	return c
}

// proposal is one bid offer collected during a round, in roster order.
type proposal struct {
	bidderID string
	amount   decimal.Decimal
}

// AdvanceRound resolves one atomic round: collect every eligible bidder's
// decision, resolve the single highest proposal, fire due on_bid events, and
// advance phase timers. Idempotent no-op on terminal or not-yet-entered
// auctions.
func (e *Engine) AdvanceRound(a *model.Auction) *model.Auction {
	if a.Status != model.StatusActive {
		return a
	}
	c := a.Clone()
	c.Round++

	proposals := e.collectProposals(c, 1.0)
	holderChanged := e.resolveProposals(c, proposals)

	e.applyDueOnBidEvents(c)

	if done := e.checkExhaustion(c); done != nil {
		return done
	}

	// A new leader during a closing phase reopens bidding; otherwise the
	// phase timer ticks down — a round with zero proposals still re-ticks.
	if holderChanged && c.Phase.Closing() {
		c.Phase = model.PhaseBidding
		c.PhaseTimer = e.globals.ReopenRounds
		return c
	}

	c.PhaseTimer--
	if c.PhaseTimer <= 0 {
		return e.advancePhase(c)
	}
	return c
}

// PlaceBid records the player's own bid. The amount must reach the minimum
// next bid; a legal bid during a closing phase reopens bidding.
func (e *Engine) PlaceBid(a *model.Auction, amount decimal.Decimal) (*model.Auction, error) {
	if a.Status != model.StatusActive {
		return a, ErrNotActive
	}
	if amount.LessThan(a.NextMinBid()) {
		return a, ErrBidTooLow
	}
	c := a.Clone()
	c.CurrentBid = amount
	c.CurrentBidder = model.PlayerBidder
	if c.Phase.Closing() {
		c.Phase = model.PhaseBidding
		c.PhaseTimer = e.globals.ReopenRounds
	}
	return c, nil
}

// ApplyTactic resolves a player intervention. On rejection the auction is
// returned unchanged alongside a reason wrapping ErrTacticUnavailable.
func (e *Engine) ApplyTactic(a *model.Auction, kind model.TacticKind) (*model.Auction, []tactics.Reaction, error) {
	if a.Status != model.StatusActive {
		return a, nil, ErrNotActive
	}
	if err := e.tacticAllowed(a, kind); err != nil {
		return a, nil, err
	}

	c := a.Clone()
	switch kind {
	case model.TacticIntimidate:
		c.Budget.IntimidateLeft--
	case model.TacticBluff:
		c.Budget.BluffLeft--
	case model.TacticSniper:
		c.Budget.SniperLeft--
	}
	c.Budget.LastTacticRound = c.Round

	var reactions []tactics.Reaction
	switch kind {
	case model.TacticIntimidate:
		reactions = tactics.Intimidate(c, e.globals, e.src)
		e.mergeReactions(c, reactions)
	case model.TacticBluff:
		reactions = tactics.Bluff(c, e.globals, e.src)
		e.mergeReactions(c, reactions)
	case model.TacticSniper:
		reactions = e.resolveSniper(c)
	}

	if done := e.checkExhaustion(c); done != nil {
		return done, reactions, nil
	}
	return c, reactions, nil
}

// Tell reads a bidder's observable behavior. Advisory only.
func (e *Engine) Tell(a *model.Auction, bidderID string) (tactics.Tell, bool) {
	b := a.BidderByID(bidderID)
	if b == nil {
		return tactics.Tell{}, false
	}
	return tactics.ReadTell(*b, a.CurrentBid)
}

// Cancel transitions an auction to the cancelled terminal state. No-op once
// terminal.
func (e *Engine) Cancel(a *model.Auction) *model.Auction {
	if a.Status.Terminal() {
		return a
	}
	return e.close(a.Clone(), model.StatusCancelled)
}

// Expire transitions an auction to the expired terminal state, for hosts
// whose scheduler withdraws unentered or stalled auctions. No-op once
// terminal.
func (e *Engine) Expire(a *model.Auction) *model.Auction {
	if a.Status.Terminal() {
		return a
	}
	return e.close(a.Clone(), model.StatusExpired)
}

// --- round internals ---

// collectProposals gathers one decision per eligible bidder in roster order.
// The current holder never bids against itself. windowFraction < 1 models a
// compressed response window (sniper): each bidder only gets to answer with
// that probability.
func (e *Engine) collectProposals(c *model.Auction, windowFraction float64) []proposal {
	in := bidder.Input{
		CurrentBid: c.CurrentBid,
		Increment:  c.BidIncrement,
		Minimum:    c.MinimumBid,
		HasHolder:  c.CurrentBidder != "",
		Round:      c.Round,
		Aggression: c.AggressionBoost,
	}

	var proposals []proposal
	for i := range c.Bidders {
		b := &c.Bidders[i]
		if b.DroppedOut || b.ID == c.CurrentBidder {
			continue
		}
		if windowFraction < 1 && !rng.Chance(e.src, windowFraction) {
			continue
		}
		if c.Phase.Closing() && !rng.Chance(e.src, e.globals.ClosingBidChance) {
			continue
		}

		dec := bidder.Decide(*b, in, e.globals, e.src)
		if dec.Withdraw {
			if dec.Permanent {
				b.DroppedOut = true
			}
			continue
		}
		proposals = append(proposals, proposal{bidderID: b.ID, amount: dec.Amount})
	}
	return proposals
}

// resolveProposals installs the single highest proposal as the new public
// bid. Numeric ties go to the earlier proposal. Reports whether the holder
// changed.
func (e *Engine) resolveProposals(c *model.Auction, proposals []proposal) bool {
	if len(proposals) == 0 {
		return false
	}
	best := proposals[0]
	for _, p := range proposals[1:] {
		if p.amount.GreaterThan(best.amount) {
			best = p
		}
	}
	if best.amount.LessThan(c.NextMinBid()) {
		return false
	}

	b := c.BidderByID(best.bidderID)
	b.CurrentBid = best.amount
	b.BidsPlaced++
	c.CurrentBid = best.amount
	c.CurrentBidder = best.bidderID
	return true
}

// resolveSniper places the player's premium bid and gives NPCs only the
// compressed window to answer. A sniper landing after the window collapsed is
// still honored, so the player's bid goes in unconditionally first.
func (e *Engine) resolveSniper(c *model.Auction) []tactics.Reaction {
	amount := tactics.SniperAmount(c, e.globals)
	c.CurrentBid = amount
	c.CurrentBidder = model.PlayerBidder

	before := snapshotDropouts(c)
	proposals := e.collectProposals(c, e.globals.SniperWindowFraction)
	counterLanded := e.resolveProposals(c, proposals)

	var reactions []tactics.Reaction
	for i := range c.Bidders {
		b := &c.Bidders[i]
		switch {
		case b.DroppedOut && !before[b.ID]:
			reactions = append(reactions, tactics.Reaction{
				BidderID: b.ID, BidderName: b.Name, Outcome: tactics.OutcomeDropout,
			})
		case counterLanded && b.ID == c.CurrentBidder:
			reactions = append(reactions, tactics.Reaction{
				BidderID: b.ID, BidderName: b.Name,
				Outcome: tactics.OutcomeCounterBid, CounterBid: b.CurrentBid,
			})
		}
	}

	// An answered snipe reopens bidding; an unanswered one leaves the
	// countdown where the player wants it.
	if counterLanded && c.Phase.Closing() {
		c.Phase = model.PhaseBidding
		c.PhaseTimer = e.globals.ReopenRounds
	}
	return reactions
}

func snapshotDropouts(c *model.Auction) map[string]bool {
	m := make(map[string]bool, len(c.Bidders))
	for i := range c.Bidders {
		m[c.Bidders[i].ID] = c.Bidders[i].DroppedOut
	}
	return m
}

// mergeReactions folds intimidate/bluff outcomes into the auction: dropouts
// stick, and the highest counter-bid (ties by roster order) becomes the new
// public bid.
func (e *Engine) mergeReactions(c *model.Auction, reactions []tactics.Reaction) {
	var counters []proposal
	for _, r := range reactions {
		switch r.Outcome {
		case tactics.OutcomeDropout:
			if b := c.BidderByID(r.BidderID); b != nil {
				b.DroppedOut = true
			}
		case tactics.OutcomeCounterBid:
			counters = append(counters, proposal{bidderID: r.BidderID, amount: r.CounterBid})
		}
	}
	e.resolveProposals(c, counters)
}

// tacticAllowed enforces budget, cooldown, and phase rules.
func (e *Engine) tacticAllowed(a *model.Auction, kind model.TacticKind) error {
	if a.Budget.LastTacticRound >= 0 &&
		a.Round-a.Budget.LastTacticRound < e.globals.TacticCooldown {
		return errors.Join(ErrTacticUnavailable, ErrTacticCooldown)
	}

	switch kind {
	case model.TacticIntimidate:
		if a.Budget.IntimidateLeft <= 0 {
			return errors.Join(ErrTacticUnavailable, ErrTacticExhausted)
		}
		if a.Round < e.globals.IntimidateMinRound {
			return errors.Join(ErrTacticUnavailable, ErrTacticTooEarly)
		}
	case model.TacticBluff:
		if a.Budget.BluffLeft <= 0 {
			return errors.Join(ErrTacticUnavailable, ErrTacticExhausted)
		}
	case model.TacticSniper:
		if a.Budget.SniperLeft <= 0 {
			return errors.Join(ErrTacticUnavailable, ErrTacticExhausted)
		}
		if !a.Phase.Closing() {
			return errors.Join(ErrTacticUnavailable, ErrSniperPhase)
		}
	default:
		return ErrTacticUnavailable
	}
	return nil
}

// checkExhaustion resolves the mutual-exhaustion rule: once every bidder has
// dropped out and an NPC is not holding, the auction closes in the player's
// favor at the current bid. Returns nil when the auction continues.
func (e *Engine) checkExhaustion(c *model.Auction) *model.Auction {
	if len(c.ActiveBidders()) > 0 {
		return nil
	}
	// No live competitor remains, so the lot falls to the player at the
	// standing price: whether they hold the bid, nobody ever bid, or the
	// holder itself was forced out.
	return e.close(c, model.StatusWon)
}

// advancePhase steps the closing sequence on its fixed shorter timers.
func (e *Engine) advancePhase(c *model.Auction) *model.Auction {
	switch c.Phase {
	case model.PhaseBidding:
		c.Phase = model.PhaseGoingOnce
	case model.PhaseGoingOnce:
		c.Phase = model.PhaseGoingTwice
	case model.PhaseGoingTwice:
		c.Phase = model.PhaseFinalCall
	case model.PhaseFinalCall:
		switch c.CurrentBidder {
		case model.PlayerBidder:
			return e.close(c, model.StatusWon)
		case "":
			return e.close(c, model.StatusExpired)
		default:
			return e.close(c, model.StatusLost)
		}
	}
	c.PhaseTimer = e.globals.ClosingPhaseRounds
	return c
}

// close finalizes the auction. on_win events fire only on a won close; once
// terminal, nothing mutates the auction again.
func (e *Engine) close(c *model.Auction, status model.Status) *model.Auction {
	c.Status = status
	now := time.Now().UTC()
	c.ClosedAt = &now
	if status == model.StatusWon {
		e.applyEvents(c, model.TimingOnWin)
	}
	return c
}

// applyEvents fires every unapplied event of the given timing. Each event's
// applied flag transitions false → true exactly once.
func (e *Engine) applyEvents(c *model.Auction, timing model.EventTiming) {
	for i := range c.Events {
		ev := &c.Events[i]
		if ev.Applied || ev.Timing != timing {
			continue
		}
		for _, eff := range ev.Effects {
			e.applyEffect(c, eff)
		}
		ev.Applied = true
	}
}

// applyDueOnBidEvents fires on_bid events whose trigger round has arrived.
func (e *Engine) applyDueOnBidEvents(c *model.Auction) {
	for i := range c.Events {
		ev := &c.Events[i]
		if ev.Applied || ev.Timing != model.TimingOnBid || ev.TriggerRound > c.Round {
			continue
		}
		for _, eff := range ev.Effects {
			e.applyEffect(c, eff)
		}
		ev.Applied = true
	}
}

// applyEffect interprets one typed effect. Exhaustive over the closed effect
// set.
func (e *Engine) applyEffect(c *model.Auction, eff model.Effect) {
	switch eff.Kind {
	case model.EffectBidderDropout:
		for n := 0; n < max(eff.Count, 1); n++ {
			active := c.ActiveBidders()
			if len(active) == 0 {
				return
			}
			active[e.src.Intn(len(active))].DroppedOut = true
		}
	case model.EffectAggressionBoost:
		c.AggressionBoost *= eff.Factor
	case model.EffectIncrementBoost:
		c.BidIncrement = c.BidIncrement.Mul(decimal.NewFromFloat(eff.Factor)).Round(2)
	case model.EffectLateBidder:
		for n := 0; n < max(eff.Count, 1); n++ {
			c.Bidders = append(c.Bidders,
				lot.NewLateBidder(c.Lot.HiddenTotalValue, c.MinimumBid, e.globals, e.src))
		}
	case model.EffectRevealCeiling:
		active := c.ActiveBidders()
		if len(active) > 0 {
			active[e.src.Intn(len(active))].CeilingRevealed = true
		}
	case model.EffectExtraItem:
		for n := 0; n < max(eff.Count, 1); n++ {
			e.grantExtraItem(c)
		}
	case model.EffectQualityUpgrade, model.EffectQualityDowngrade:
		e.adjustItemQuality(c, eff.Factor)
	case model.EffectFeeRefund:
		c.FeeRefund = c.FeeRefund.Add(eff.Amount)
	case model.EffectBonusReward:
		c.BonusReward = c.BonusReward.Add(eff.Amount)
	case model.EffectBonusOdds:
		if c.BonusOdds == 0 {
			c.BonusOdds = 1
		}
		c.BonusOdds *= eff.Factor
	}
}

// grantExtraItem appends a bonus item to the lot and folds it into the total.
// Extra items skew mid-tier: uncommon or rare.
func (e *Engine) grantExtraItem(c *model.Auction) {
	rarity := model.RarityUncommon
	if rng.Chance(e.src, 0.35) {
		rarity = model.RarityRare
	}
	cat, _ := rng.Pick(e.src, catalog.Categories)
	item := model.LotItem{
		Rarity:   rarity,
		Category: cat,
		Value:    e.valuer.Value(rarity, catalog.RollCondition(e.src), decimal.NewFromInt(1)),
	}
	c.Lot.Items = append(c.Lot.Items, item)
	c.Lot.HiddenTotalValue = c.Lot.HiddenTotalValue.Add(item.Value)
}

// adjustItemQuality rescales one random item's value and the lot total.
func (e *Engine) adjustItemQuality(c *model.Auction, factor float64) {
	if len(c.Lot.Items) == 0 || factor <= 0 {
		return
	}
	i := e.src.Intn(len(c.Lot.Items))
	old := c.Lot.Items[i].Value
	adjusted := old.Mul(decimal.NewFromFloat(factor)).Round(2)
	c.Lot.Items[i].Value = adjusted
	c.Lot.HiddenTotalValue = c.Lot.HiddenTotalValue.Sub(old).Add(adjusted)
}
