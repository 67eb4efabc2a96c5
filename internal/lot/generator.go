// Package lot assembles the hidden contents of an auction — valued items and
// the initial NPC bidder roster — and rolls the modifier events attached to it.
// The generated snapshot is the auction's immutable ground truth.
package lot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/catalog"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

// CategoryBias steers item category rolls toward a themed lot's category.
type CategoryBias struct {
	Category string
	Boost    int // added weight on top of the uniform base
}

// Generator produces auction snapshots for a venue.
type Generator struct {
	valuer  catalog.Valuer
	globals balance.Globals
	names   []string
}

// NewGenerator wires a generator. A nil valuer falls back to the catalog's
// table valuer; an empty name list falls back to the stock pool.
func NewGenerator(valuer catalog.Valuer, globals balance.Globals, names []string) *Generator {
	if valuer == nil {
		valuer = catalog.NewTableValuer()
	}
	if len(names) == 0 {
		names = BidderNames()
	}
	return &Generator{valuer: valuer, globals: globals, names: names}
}

// Generate rolls a complete auction for the venue: lot contents, bidder
// roster, attached events. Luck is the player's luck scalar (0 = neutral).
func (g *Generator) Generate(venue balance.Venue, luck float64, bias *CategoryBias, src rng.Source) (*model.Auction, error) {
	venue, err := venue.Validate()
	if err != nil {
		return nil, fmt.Errorf("generate auction: %w", err)
	}
	if len(g.names) == 0 {
		return nil, fmt.Errorf("generate auction: %w", balance.ErrEmptyNamePool)
	}

	tier, ok := rng.Choose(src, tierCandidates(venue.LotTiers))
	if !ok {
		return nil, fmt.Errorf("generate auction: %w", balance.ErrNoLotTiers)
	}

	lot := g.rollLot(venue, tier, luck, bias, src)
	bidders := g.rollBidders(venue, lot.HiddenTotalValue, src)

	a := &model.Auction{
		ID:              uuid.New().String(),
		Venue:           venue.Name,
		VenueTier:       venue.Tier,
		Lot:             lot,
		Bidders:         bidders,
		CurrentBid:      decimal.Zero,
		BidIncrement:    venue.BidIncrement,
		MinimumBid:      venue.MinimumBid,
		Phase:           model.PhaseBidding,
		PhaseTimer:      g.globals.MaxRounds,
		Status:          model.StatusAvailable,
		Events:          RollEvents(venue, luck, g.globals, src),
		AggressionBoost: 1.0,
		Budget: model.TacticBudget{
			Allowance:       g.globals.TacticUses,
			IntimidateLeft:  g.globals.TacticUses,
			BluffLeft:       g.globals.TacticUses,
			SniperLeft:      g.globals.TacticUses,
			LastTacticRound: -1,
		},
		CreatedAt: time.Now().UTC(),
	}
	return a, nil
}

func tierCandidates(tiers []balance.LotTier) []rng.Weighted[balance.LotTier] {
	cands := make([]rng.Weighted[balance.LotTier], len(tiers))
	for i, t := range tiers {
		cands[i] = rng.Weighted[balance.LotTier]{Item: t, Weight: t.Weight}
	}
	return cands
}

// baseRarityWeights is the pre-shift rarity distribution of a single item.
var baseRarityWeights = []int{18, 40, 24, 12, 5, 1} // indexed like model.Rarities

// rollLot builds the item list and hidden total.
func (g *Generator) rollLot(venue balance.Venue, tier balance.LotTier, luck float64, bias *CategoryBias, src rng.Source) model.Lot {
	count := rng.IntBetween(src, venue.MinItems, venue.MaxItems) + tier.ItemBonus

	// Dud weighting caps how often a lot can roll entirely high value. Checked
	// once per lot so the player cannot farm high rarities reliably.
	dud := rng.Chance(src, g.globals.DudLotChance)

	items := make([]model.LotItem, 0, count)
	total := decimal.Zero
	for i := 0; i < count; i++ {
		rarity := g.rollRarity(venue, tier, luck, dud, src)
		item := model.LotItem{
			Rarity:   rarity,
			Category: rollCategory(bias, src),
			Value:    g.valuer.Value(rarity, catalog.RollCondition(src), venue.ValueMultiplier),
		}
		items = append(items, item)
		total = total.Add(item.Value)
	}
	return model.Lot{Items: items, HiddenTotalValue: total}
}

// rollRarity draws one item's rarity: weighted base roll, tier shift,
// rare-chance upgrade, then the junk substitution override.
func (g *Generator) rollRarity(venue balance.Venue, tier balance.LotTier, luck float64, dud bool, src rng.Source) model.Rarity {
	if rng.Chance(src, g.globals.JunkItemChance) {
		return model.RarityJunk
	}

	weights := baseRarityWeights
	if dud {
		// Bottom-heavy distribution for dud lots.
		weights = []int{55, 35, 8, 2, 0, 0}
	}

	cands := make([]rng.Weighted[int], len(weights))
	for i, w := range weights {
		cands[i] = rng.Weighted[int]{Item: i, Weight: w}
	}
	idx, _ := rng.Choose(src, cands)

	if !dud {
		idx += tier.RarityShift
		if rng.Chance(src, venue.RareChance+luck*0.01) {
			idx++
		}
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(model.Rarities) {
		idx = len(model.Rarities) - 1
	}
	return model.Rarities[idx]
}

func rollCategory(bias *CategoryBias, src rng.Source) string {
	cands := make([]rng.Weighted[string], 0, len(catalog.Categories))
	for _, c := range catalog.Categories {
		w := 10
		if bias != nil && bias.Category == c {
			w += bias.Boost
		}
		cands = append(cands, rng.Weighted[string]{Item: c, Weight: w})
	}
	cat, _ := rng.Choose(src, cands)
	return cat
}

// rollBidders builds the initial roster: venue-bounded count, unique shuffled
// identities, uniform personalities, personality-shaped ceilings. The
// zero-bid-deadlock guard always runs last.
func (g *Generator) rollBidders(venue balance.Venue, hiddenTotal decimal.Decimal, src rng.Source) []model.Bidder {
	count := 0
	if venue.MaxBidders > 0 {
		count = src.Intn(venue.MaxBidders + 1) // 0..cap inclusive; zero rosters are legal
	}
	if count == 0 {
		return nil
	}

	names := make([]string, len(g.names))
	copy(names, g.names)
	rng.Shuffle(src, names)
	if count > len(names) {
		count = len(names)
	}

	floor := venue.MinimumBid.Mul(decimal.NewFromFloat(g.globals.MaxBidFloorFraction))

	bidders := make([]model.Bidder, 0, count)
	for i := 0; i < count; i++ {
		personality, _ := rng.Pick(src, model.Personalities)
		cfg := balance.Config(personality)

		fraction := rng.Between(src, cfg.MaxBidMin, cfg.MaxBidMax) * g.globals.NPCAggression
		variance := rng.Between(src, g.globals.CeilingVarianceMin, g.globals.CeilingVarianceMax)
		maxBid := hiddenTotal.Mul(decimal.NewFromFloat(fraction * variance)).Round(2)
		if maxBid.LessThan(floor) {
			maxBid = floor
		}

		bidders = append(bidders, model.Bidder{
			ID:          uuid.New().String(),
			Name:        names[i],
			Personality: personality,
			MaxBid:      maxBid,
			CurrentBid:  decimal.Zero,
		})
	}

	applyCeilingGuard(bidders, hiddenTotal, g.globals.MinCeilingFraction)
	return bidders
}

// applyCeilingGuard raises the strongest bidder's ceiling to the guaranteed
// fraction of the hidden total so an auction with bidders can never close at
// zero. Must always run after the main roll.
func applyCeilingGuard(bidders []model.Bidder, hiddenTotal decimal.Decimal, fraction float64) {
	if len(bidders) == 0 {
		return
	}
	required := hiddenTotal.Mul(decimal.NewFromFloat(fraction)).Round(2)

	strongest := 0
	for i := range bidders {
		if bidders[i].MaxBid.GreaterThan(bidders[strongest].MaxBid) {
			strongest = i
		}
	}
	if bidders[strongest].MaxBid.LessThan(required) {
		bidders[strongest].MaxBid = required
	}
}

// NewLateBidder creates a mid-auction arrival (late_bidder lot event). Late
// arrivals skip the ceiling guard: the roster already satisfies it.
func NewLateBidder(hiddenTotal decimal.Decimal, minimumBid decimal.Decimal, globals balance.Globals, src rng.Source) model.Bidder {
	names := BidderNames()
	name, _ := rng.Pick(src, names)
	personality, _ := rng.Pick(src, model.Personalities)
	cfg := balance.Config(personality)

	fraction := rng.Between(src, cfg.MaxBidMin, cfg.MaxBidMax) * globals.NPCAggression
	variance := rng.Between(src, globals.CeilingVarianceMin, globals.CeilingVarianceMax)
	maxBid := hiddenTotal.Mul(decimal.NewFromFloat(fraction * variance)).Round(2)

	floor := minimumBid.Mul(decimal.NewFromFloat(globals.MaxBidFloorFraction))
	if maxBid.LessThan(floor) {
		maxBid = floor
	}

	return model.Bidder{
		ID:          uuid.New().String(),
		Name:        name,
		Personality: personality,
		MaxBid:      maxBid,
		CurrentBid:  decimal.Zero,
	}
}
