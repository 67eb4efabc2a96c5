package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEngine(seed int64) *Engine {
	return New(balance.DefaultGlobals(), nil, rng.New(seed))
}

// testAuction builds a hand-rolled available auction with a known lot and
// roster, bypassing the generator.
func testAuction(bidders ...model.Bidder) *model.Auction {
	return &model.Auction{
		ID:        "a1",
		Venue:     "suburban-storage",
		VenueTier: 2,
		Lot: model.Lot{
			Items: []model.LotItem{
				{Rarity: model.RarityCommon, Category: "tools", Value: d(300)},
				{Rarity: model.RarityRare, Category: "electronics", Value: d(700)},
			},
			HiddenTotalValue: d(1000),
		},
		Bidders:         bidders,
		BidIncrement:    d(25),
		MinimumBid:      d(200),
		Phase:           model.PhaseBidding,
		PhaseTimer:      balance.DefaultGlobals().MaxRounds,
		Status:          model.StatusAvailable,
		AggressionBoost: 1.0,
		Budget: model.TacticBudget{
			Allowance: 1, IntimidateLeft: 1, BluffLeft: 1, SniperLeft: 1, LastTacticRound: -1,
		},
	}
}

func npc(id string, p model.Personality, maxBid float64) model.Bidder {
	return model.Bidder{ID: id, Name: id, Personality: p, MaxBid: d(maxBid)}
}

// playToTerminal advances an entered auction until it closes.
func playToTerminal(t *testing.T, eng *Engine, a *model.Auction) *model.Auction {
	t.Helper()
	for i := 0; i < 500; i++ {
		if a.Status.Terminal() {
			return a
		}
		a = eng.AdvanceRound(a)
	}
	t.Fatal("auction did not reach a terminal state within 500 rounds")
	return nil
}

// --- Entry tests ---

func TestEnter_ActivatesAuction(t *testing.T) {
	eng := newTestEngine(1)
	a := testAuction(npc("b1", model.PersonalityVeteran, 600))

	entered := eng.Enter(a)
	if entered.Status != model.StatusActive {
		t.Errorf("expected active, got %s", entered.Status)
	}
	if a.Status != model.StatusAvailable {
		t.Error("Enter must not mutate the input snapshot")
	}
}

func TestEnter_ZeroBiddersWinsImmediately(t *testing.T) {
	eng := newTestEngine(1)
	a := testAuction() // empty roster

	entered := eng.Enter(a)
	if entered.Status != model.StatusWon {
		t.Errorf("zero-bidder auction should be won on entry, got %s", entered.Status)
	}
	if entered.Round != 0 {
		t.Errorf("no round should elapse, got %d", entered.Round)
	}
	if !entered.CurrentBid.IsZero() {
		t.Errorf("uncontested win should close at the standing (zero) bid, got %s", entered.CurrentBid)
	}
	if entered.ClosedAt == nil {
		t.Error("terminal auction must carry a close timestamp")
	}
}

func TestEnter_NoOpWhenNotAvailable(t *testing.T) {
	eng := newTestEngine(1)
	a := testAuction(npc("b1", model.PersonalityVeteran, 600))
	a.Status = model.StatusActive

	if got := eng.Enter(a); got != a {
		t.Error("Enter on a non-available auction should return the same snapshot")
	}
}

// --- Round resolution properties ---

func TestAdvanceRound_MonotonicBid(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		eng := newTestEngine(seed)
		a := eng.Enter(testAuction(
			npc("b1", model.PersonalityNewbie, 450),
			npc("b2", model.PersonalityAggressive, 800),
			npc("b3", model.PersonalityVeteran, 650),
		))

		prev := a.CurrentBid
		for !a.Status.Terminal() {
			a = eng.AdvanceRound(a)
			if a.CurrentBid.LessThan(prev) {
				t.Fatalf("seed %d: bid regressed from %s to %s", seed, prev, a.CurrentBid)
			}
			prev = a.CurrentBid
		}
	}
}

func TestAdvanceRound_BudgetCeiling(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		eng := newTestEngine(seed)
		a := eng.Enter(testAuction(
			npc("b1", model.PersonalityWildcard, 500),
			npc("b2", model.PersonalityCautious, 600),
		))

		for !a.Status.Terminal() {
			a = eng.AdvanceRound(a)
			for _, b := range a.Bidders {
				if b.CurrentBid.GreaterThan(b.MaxBid) {
					t.Fatalf("seed %d: bidder %s bid %s above ceiling %s",
						seed, b.ID, b.CurrentBid, b.MaxBid)
				}
			}
		}
	}
}

func TestAdvanceRound_OneWayDropout(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		eng := newTestEngine(seed)
		a := eng.Enter(testAuction(
			npc("b1", model.PersonalityNewbie, 400),
			npc("b2", model.PersonalityNewbie, 450),
			npc("b3", model.PersonalityVeteran, 700),
		))

		dropped := map[string]decimal.Decimal{}
		for !a.Status.Terminal() {
			a = eng.AdvanceRound(a)
			for _, b := range a.Bidders {
				if frozen, ok := dropped[b.ID]; ok {
					if !b.DroppedOut {
						t.Fatalf("seed %d: bidder %s came back from dropout", seed, b.ID)
					}
					if !b.CurrentBid.Equal(frozen) {
						t.Fatalf("seed %d: dropped bidder %s changed bid", seed, b.ID)
					}
				} else if b.DroppedOut {
					dropped[b.ID] = b.CurrentBid
				}
			}
		}
	}
}

func TestAdvanceRound_TerminalIdempotent(t *testing.T) {
	eng := newTestEngine(3)
	a := playToTerminal(t, eng, eng.Enter(testAuction(
		npc("b1", model.PersonalityAggressive, 800),
	)))

	if got := eng.AdvanceRound(a); got != a {
		t.Error("AdvanceRound on a terminal auction must return the same snapshot")
	}
	if got := eng.Cancel(a); got != a {
		t.Error("Cancel on a terminal auction must return the same snapshot")
	}
	if got := eng.Expire(a); got != a {
		t.Error("Expire on a terminal auction must return the same snapshot")
	}
	if _, _, err := eng.ApplyTactic(a, model.TacticBluff); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive on terminal tactic, got %v", err)
	}
}

func TestAdvanceRound_ClosesLostWhenNPCHolds(t *testing.T) {
	// A roster the player never bids against ends lost or expired, and the
	// lot stays hidden either way.
	lostSeen := false
	for seed := int64(1); seed <= 30; seed++ {
		eng := newTestEngine(seed)
		a := playToTerminal(t, eng, eng.Enter(testAuction(
			npc("b1", model.PersonalityAggressive, 900),
			npc("b2", model.PersonalityVeteran, 700),
		)))

		switch a.Status {
		case model.StatusLost:
			lostSeen = true
			if a.CurrentBidder == model.PlayerBidder || a.CurrentBidder == "" {
				t.Fatalf("seed %d: lost auction without an NPC holder", seed)
			}
		case model.StatusWon:
			// Legal only when every bidder dropped out before proposing.
			if a.CurrentBidder != "" && a.CurrentBidder != model.PlayerBidder {
				t.Fatalf("seed %d: won while an NPC held the bid", seed)
			}
		case model.StatusExpired:
			if a.CurrentBidder != "" {
				t.Fatalf("seed %d: expired with a standing holder", seed)
			}
		}

		if a.Status != model.StatusWon {
			if _, revealed := a.RevealedLot(); revealed {
				t.Fatalf("seed %d: lot revealed on a %s auction", seed, a.Status)
			}
		}
	}
	if !lostSeen {
		t.Error("no seed produced a lost auction; roster should usually outlast a passive player")
	}
}

func TestAdvanceRound_AllDroppedResolvesForPlayer(t *testing.T) {
	// Ceilings below the minimum bid force immediate permanent dropouts.
	eng := newTestEngine(4)
	a := eng.Enter(testAuction(
		npc("b1", model.PersonalityNewbie, 100),
		npc("b2", model.PersonalityNewbie, 120),
	))

	a = playToTerminal(t, eng, a)
	if a.Status != model.StatusWon {
		t.Errorf("all-dropout auction should resolve for the player, got %s", a.Status)
	}
}

// --- Player bid tests ---

func TestPlaceBid_RejectsBelowMinimum(t *testing.T) {
	eng := newTestEngine(5)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))

	_, err := eng.PlaceBid(a, d(199))
	if !errors.Is(err, ErrBidTooLow) {
		t.Errorf("expected ErrBidTooLow, got %v", err)
	}
}

func TestPlaceBid_TakesHold(t *testing.T) {
	eng := newTestEngine(5)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))

	next, err := eng.PlaceBid(a, d(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.CurrentBidder != model.PlayerBidder {
		t.Errorf("expected player to hold the bid, got %q", next.CurrentBidder)
	}
	if !next.CurrentBid.Equal(d(200)) {
		t.Errorf("expected current bid 200, got %s", next.CurrentBid)
	}
}

func TestPlaceBid_ReopensClosingPhase(t *testing.T) {
	eng := newTestEngine(5)
	globals := eng.Globals()
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	a.Phase = model.PhaseGoingTwice
	a.PhaseTimer = 1
	a.CurrentBid = d(300)
	a.CurrentBidder = "b1"

	next, err := eng.PlaceBid(a, d(325))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Phase != model.PhaseBidding {
		t.Errorf("a closing-phase bid should reopen bidding, got %s", next.Phase)
	}
	if next.PhaseTimer != globals.ReopenRounds {
		t.Errorf("expected reopen timer %d, got %d", globals.ReopenRounds, next.PhaseTimer)
	}
}

func TestPlaceBid_NotActive(t *testing.T) {
	eng := newTestEngine(5)
	a := testAuction(npc("b1", model.PersonalityVeteran, 600))

	_, err := eng.PlaceBid(a, d(200))
	if !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive on an unentered auction, got %v", err)
	}
}

// --- Phase machine tests ---

// scriptedSource replays fixed rolls, pinning every probabilistic branch.
type scriptedSource struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *scriptedSource) Intn(n int) int {
	v := s.ints[s.ii%len(s.ints)]
	s.ii++
	return v % n
}

func TestPhases_PlayerHeldCountdownClosesWon(t *testing.T) {
	// Every closing-gate roll misses, so the active NPC never answers and the
	// countdown runs going_once → going_twice → final_call → won.
	src := &scriptedSource{floats: []float64{0.99}, ints: []int{0}}
	eng := New(balance.DefaultGlobals(), nil, src)

	a := testAuction(npc("b1", model.PersonalityCautious, 600))
	a.Status = model.StatusActive
	a.Phase = model.PhaseGoingOnce
	a.PhaseTimer = 1
	a.CurrentBid = d(300)
	a.CurrentBidder = model.PlayerBidder

	wantPhases := []model.Phase{model.PhaseGoingTwice, model.PhaseFinalCall}
	for _, want := range wantPhases {
		a = eng.AdvanceRound(a)
		if a.Status.Terminal() {
			t.Fatalf("closed early in phase %s", a.Phase)
		}
		if a.Phase != want {
			t.Fatalf("expected phase %s, got %s", want, a.Phase)
		}
		if !a.CurrentBid.Equal(d(300)) {
			t.Fatalf("bid moved during a gated-out countdown: %s", a.CurrentBid)
		}
	}

	a = eng.AdvanceRound(a)
	if a.Status != model.StatusWon {
		t.Errorf("player-held final_call should close won, got %s", a.Status)
	}
}

func TestPhases_NoHolderCountdownExpires(t *testing.T) {
	// An NPC stays in the room but never proposes; with no holder at the end
	// of final_call the auction expires.
	src := &scriptedSource{floats: []float64{0.99}, ints: []int{0}}
	eng := New(balance.DefaultGlobals(), nil, src)

	a := testAuction(npc("b1", model.PersonalityCautious, 600))
	a.Status = model.StatusActive
	a.Phase = model.PhaseFinalCall
	a.PhaseTimer = 1

	got := eng.AdvanceRound(a)
	if got.Status != model.StatusExpired {
		t.Errorf("final_call with no holder should expire, got %s", got.Status)
	}
	if got.ClosedAt == nil {
		t.Error("expired auction must carry a close timestamp")
	}
}

func TestPhases_NPCHeldCountdownClosesLost(t *testing.T) {
	src := &scriptedSource{floats: []float64{0.99}, ints: []int{0}}
	eng := New(balance.DefaultGlobals(), nil, src)

	a := testAuction(
		npc("b1", model.PersonalityCautious, 600),
		npc("b2", model.PersonalityVeteran, 700),
	)
	a.Status = model.StatusActive
	a.Phase = model.PhaseFinalCall
	a.PhaseTimer = 1
	a.CurrentBid = d(400)
	a.CurrentBidder = "b2"

	got := eng.AdvanceRound(a)
	if got.Status != model.StatusLost {
		t.Errorf("NPC-held final_call should close lost, got %s", got.Status)
	}
	if _, revealed := got.RevealedLot(); revealed {
		t.Error("lot must stay hidden on a lost auction")
	}
}

// --- Tactic gating tests ---

func TestApplyTactic_BudgetExhausted(t *testing.T) {
	eng := newTestEngine(8)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	a.Round = 5
	a.Budget.BluffLeft = 0

	_, _, err := eng.ApplyTactic(a, model.TacticBluff)
	if !errors.Is(err, ErrTacticExhausted) {
		t.Errorf("expected ErrTacticExhausted, got %v", err)
	}
	if !errors.Is(err, ErrTacticUnavailable) {
		t.Error("specific rejections must wrap ErrTacticUnavailable")
	}
}

func TestApplyTactic_Cooldown(t *testing.T) {
	eng := newTestEngine(9)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	a.Round = 5

	next, _, err := eng.ApplyTactic(a, model.TacticBluff)
	if err != nil {
		t.Fatalf("first tactic should apply: %v", err)
	}
	if next.Status.Terminal() {
		t.Skip("bluff cleared the roster; cooldown unobservable this seed")
	}

	_, _, err = eng.ApplyTactic(next, model.TacticIntimidate)
	if !errors.Is(err, ErrTacticCooldown) {
		t.Errorf("expected ErrTacticCooldown in the same round, got %v", err)
	}

	// One elapsed round satisfies the cooldown.
	next = next.Clone()
	next.Round++
	if _, _, err := eng.ApplyTactic(next, model.TacticIntimidate); err != nil {
		t.Errorf("tactic after cooldown should apply, got %v", err)
	}
}

func TestApplyTactic_IntimidateMinRound(t *testing.T) {
	eng := newTestEngine(10)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	a.Round = 1 // below IntimidateMinRound (2)

	_, _, err := eng.ApplyTactic(a, model.TacticIntimidate)
	if !errors.Is(err, ErrTacticTooEarly) {
		t.Errorf("expected ErrTacticTooEarly, got %v", err)
	}
}

func TestApplyTactic_SniperRequiresClosingPhase(t *testing.T) {
	eng := newTestEngine(11)
	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	a.Round = 5

	_, _, err := eng.ApplyTactic(a, model.TacticSniper)
	if !errors.Is(err, ErrSniperPhase) {
		t.Errorf("expected ErrSniperPhase during bidding, got %v", err)
	}
}

func TestApplyTactic_SniperTakesHold(t *testing.T) {
	eng := newTestEngine(12)
	globals := eng.Globals()
	a := eng.Enter(testAuction(npc("b1", model.PersonalityNewbie, 100))) // priced out
	a.Round = 5
	a.Phase = model.PhaseGoingTwice
	a.PhaseTimer = 1
	a.CurrentBid = d(300)
	a.CurrentBidder = "b1"
	a.Bidders[0].DroppedOut = true

	next, _, err := eng.ApplyTactic(a, model.TacticSniper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Holder dropped + player snipe resolves the auction for the player.
	if next.Status != model.StatusWon {
		t.Fatalf("expected won after unanswered snipe over a dead roster, got %s", next.Status)
	}
	want := d(300).Add(d(25)).Mul(d(globals.SniperPremium)).Round(2)
	if !next.CurrentBid.Equal(want) {
		t.Errorf("sniper bid %s, want %s", next.CurrentBid, want)
	}
	if next.CurrentBidder != model.PlayerBidder {
		t.Errorf("player should hold after snipe, got %q", next.CurrentBidder)
	}
}

func TestApplyTactic_IntimidateConsumesBudget(t *testing.T) {
	eng := newTestEngine(13)
	a := eng.Enter(testAuction(
		npc("b1", model.PersonalityVeteran, 600),
		npc("b2", model.PersonalityCautious, 500),
	))
	a.Round = 3

	next, reactions, err := eng.ApplyTactic(a, model.TacticIntimidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Budget.IntimidateLeft != 0 {
		t.Errorf("intimidate budget not consumed: %d", next.Budget.IntimidateLeft)
	}
	if next.Budget.LastTacticRound != 3 {
		t.Errorf("LastTacticRound not recorded: %d", next.Budget.LastTacticRound)
	}
	if len(reactions) != 2 {
		t.Errorf("expected a reaction per active bidder, got %d", len(reactions))
	}
	if a.Budget.IntimidateLeft != 1 {
		t.Error("input snapshot mutated by tactic")
	}
}

// --- Mid-auction event tests ---

func TestAdvanceRound_OnBidEventFiresAtTriggerRound(t *testing.T) {
	// Fixed rolls keep the single NPC bidding so the auction survives past the
	// trigger round without closing.
	src := &scriptedSource{floats: []float64{0.99}, ints: []int{0}}
	eng := New(balance.DefaultGlobals(), nil, src)

	a := testAuction(npc("b1", model.PersonalityVeteran, 600))
	a.Status = model.StatusActive
	a.Events = []model.LotEvent{{
		Kind: "auctioneer_pressure", Timing: model.TimingOnBid, TriggerRound: 2,
		Effects: []model.Effect{{Kind: model.EffectIncrementBoost, Factor: 2.0}},
	}}

	a = eng.AdvanceRound(a)
	if a.Events[0].Applied {
		t.Fatal("event fired before its trigger round")
	}
	if !a.BidIncrement.Equal(d(25)) {
		t.Fatalf("increment changed before the trigger round: %s", a.BidIncrement)
	}

	a = eng.AdvanceRound(a)
	if !a.Events[0].Applied {
		t.Fatal("event not applied at its trigger round")
	}
	if !a.BidIncrement.Equal(d(50)) {
		t.Fatalf("increment boost not applied at the trigger round: %s", a.BidIncrement)
	}

	a = eng.AdvanceRound(a)
	if !a.BidIncrement.Equal(d(50)) {
		t.Fatalf("event re-fired after application: %s", a.BidIncrement)
	}
}

// --- On-win event tests ---

func TestClose_OnWinEventsApplyOnce(t *testing.T) {
	eng := newTestEngine(14)
	a := testAuction()
	a.Events = []model.LotEvent{
		{
			Kind: "fee_waived", Timing: model.TimingOnWin,
			Effects: []model.Effect{{Kind: model.EffectFeeRefund, Amount: d(100)}},
		},
		{
			Kind: "insurance_payout", Timing: model.TimingOnWin,
			Effects: []model.Effect{{Kind: model.EffectBonusReward, Amount: d(500)}},
		},
	}

	// Zero-bidder entry closes won and fires on_win events.
	won := eng.Enter(a)
	if won.Status != model.StatusWon {
		t.Fatalf("expected won, got %s", won.Status)
	}
	if !won.FeeRefund.Equal(d(100)) {
		t.Errorf("fee refund %s, want 100", won.FeeRefund)
	}
	if !won.BonusReward.Equal(d(500)) {
		t.Errorf("bonus reward %s, want 500", won.BonusReward)
	}
	for _, ev := range won.Events {
		if !ev.Applied {
			t.Errorf("event %s not marked applied", ev.Kind)
		}
	}
}

func TestClose_QualityEffectsAdjustLot(t *testing.T) {
	eng := newTestEngine(15)
	a := testAuction()
	a.Events = []model.LotEvent{{
		Kind: "water_damage", Timing: model.TimingOnWin,
		Effects: []model.Effect{{Kind: model.EffectQualityDowngrade, Factor: 0.5}},
	}}

	won := eng.Enter(a)
	sum := decimal.Zero
	for _, item := range won.Lot.Items {
		sum = sum.Add(item.Value)
	}
	if !sum.Equal(won.Lot.HiddenTotalValue) {
		t.Errorf("hidden total %s out of sync with items %s after quality effect",
			won.Lot.HiddenTotalValue, sum)
	}
	if !won.Lot.HiddenTotalValue.LessThan(d(1000)) {
		t.Errorf("downgrade should reduce lot value, got %s", won.Lot.HiddenTotalValue)
	}
}

func TestClose_ExtraItemExtendsLot(t *testing.T) {
	eng := newTestEngine(16)
	a := testAuction()
	a.Events = []model.LotEvent{{
		Kind: "hidden_compartment", Timing: model.TimingOnWin,
		Effects: []model.Effect{{Kind: model.EffectExtraItem, Count: 1}},
	}}

	won := eng.Enter(a)
	if len(won.Lot.Items) != 3 {
		t.Fatalf("expected 3 items after extra-item effect, got %d", len(won.Lot.Items))
	}
	if !won.Lot.HiddenTotalValue.GreaterThan(d(1000)) {
		t.Errorf("extra item should raise lot value, got %s", won.Lot.HiddenTotalValue)
	}
}

// --- Cancel / Expire tests ---

func TestCancelAndExpire(t *testing.T) {
	eng := newTestEngine(17)

	a := eng.Enter(testAuction(npc("b1", model.PersonalityVeteran, 600)))
	cancelled := eng.Cancel(a)
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.ClosedAt == nil {
		t.Error("cancelled auction must carry a close timestamp")
	}

	b := testAuction(npc("b1", model.PersonalityVeteran, 600))
	expired := eng.Expire(b)
	if expired.Status != model.StatusExpired {
		t.Errorf("expected expired, got %s", expired.Status)
	}
}

// --- Full-stack generation + playout ---

func TestPlayout_GeneratedAuctionsTerminate(t *testing.T) {
	globals := balance.DefaultGlobals()
	src := rng.New(18)
	gen := lot.NewGenerator(nil, globals, nil)
	eng := New(globals, nil, src)

	venue, _ := balance.VenueByName("roadside-lockup")
	for i := 0; i < 200; i++ {
		a, err := gen.Generate(venue, 0, nil, src)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		a = playToTerminal(t, eng, eng.Enter(a))
		if !a.Status.Terminal() {
			t.Fatal("playout ended non-terminal")
		}
	}
}
