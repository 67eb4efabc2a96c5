// Package catalog implements the default valuation provider: it prices an
// item for a requested rarity tier, a quality/condition roll, and a venue
// value multiplier. The engine consumes only the value and rarity tag; names
// and icons belong to the host's content layer.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
)

// Valuer prices one item. Condition is a quality roll in [0, 1]; 0 values the
// item at the bottom of its rarity band, 1 at the top.
type Valuer interface {
	Value(rarity model.Rarity, condition float64, multiplier decimal.Decimal) decimal.Decimal
}

// band is the pre-multiplier value range of one rarity tier.
type band struct {
	lo, hi int64
}

// valueBands maps each rarity tier to its base value band.
var valueBands = map[model.Rarity]band{
	model.RarityJunk:      {5, 30},
	model.RarityCommon:    {20, 120},
	model.RarityUncommon:  {80, 400},
	model.RarityRare:      {300, 1500},
	model.RarityEpic:      {1200, 6000},
	model.RarityLegendary: {5000, 25000},
}

// TableValuer prices items from the static band table.
type TableValuer struct{}

// NewTableValuer returns the default valuation provider.
func NewTableValuer() *TableValuer { return &TableValuer{} }

// Value computes band.lo + condition × (band.hi − band.lo), times the venue
// multiplier, rounded to cents.
func (v *TableValuer) Value(rarity model.Rarity, condition float64, multiplier decimal.Decimal) decimal.Decimal {
	b, ok := valueBands[rarity]
	if !ok {
		b = valueBands[model.RarityJunk]
	}
	if condition < 0 {
		condition = 0
	}
	if condition > 1 {
		condition = 1
	}

	span := decimal.NewFromInt(b.hi - b.lo)
	base := decimal.NewFromInt(b.lo).Add(span.Mul(decimal.NewFromFloat(condition)))
	return base.Mul(multiplier).Round(2)
}

// RollCondition draws the quality/condition roll used for pricing and for
// on-win quality upgrade/downgrade effects.
func RollCondition(src rng.Source) float64 {
	return src.Float64()
}

// Categories is the closed set of item categories a lot can contain. Themed
// lots bias the category roll toward one of these.
var Categories = []string{
	"electronics", "furniture", "tools", "collectibles",
	"media", "appliances", "sports", "antiques",
}
