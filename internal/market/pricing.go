package market

import (
	"math/rand"

	"colony-exchange/internal/config"
	"colony-exchange/internal/models"

	"github.com/shopspring/decimal"
)

// TradePair is one item's trade volume for the day, split by direction.
type TradePair struct {
	Bought int64
	Sold   int64
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fraction returns value × f for a fractional percentage like 0.1.
func fraction(value decimal.Decimal, f float64) decimal.Decimal {
	return value.Mul(decimal.NewFromFloat(f))
}

// UpdateItemPrice drifts one item's trading prices from its base value.
// Demand (units bought from us today) steps the sell price up; supply
// (units sold to us) steps the buy price down. No movement decays each
// price one step toward clearing. Both prices are clamped to the
// configured band around the base value, which also re-anchors them after
// a base value change.
func UpdateItemPrice(cfg config.PriceThreshold, item models.InventoryItem, stats TradePair) models.InventoryItem {
	base := item.BaseValue

	sellStep := fraction(base, cfg.Selling.StepSize)
	if stats.Bought > 0 {
		units := stats.Bought / cfg.Selling.UnitToStockRatio
		steps := clampInt64(units, 0, cfg.Selling.MaxSteps)
		item.SellAt = base.Add(sellStep.Mul(decimal.NewFromInt(steps)))
	} else {
		item.SellAt = base.Sub(sellStep)
	}

	buyStep := fraction(base, cfg.Buying.StepSize)
	if stats.Sold > 0 {
		units := stats.Sold / cfg.Buying.UnitToStockRatio
		steps := clampInt64(units, 0, cfg.Buying.MaxSteps)
		item.BuyAt = base.Sub(buyStep.Mul(decimal.NewFromInt(steps)))
	} else {
		item.BuyAt = base.Add(buyStep)
	}

	item.SellAt = clampDecimal(item.SellAt,
		base.Sub(fraction(base, cfg.Selling.MaxPriceDecreasePct)),
		base.Add(fraction(base, cfg.Selling.MaxPriceIncreasePct)),
	).Round(2)
	item.BuyAt = clampDecimal(item.BuyAt,
		base.Sub(fraction(base, cfg.Buying.MaxPriceDecreasePct)),
		base.Add(fraction(base, cfg.Buying.MaxPriceIncreasePct)),
	).Round(2)
	return item
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// UpdateItemStock drifts one item's stock level: overstocked items shed a
// random fraction, empty items restock with the configured probability,
// and in-range items jiggle by a random fraction of themselves, never by
// less than one unit. The result always lands in [0, max_quantity].
func UpdateItemStock(cfg config.StockThreshold, item models.InventoryItem, rng *rand.Rand) models.InventoryItem {
	switch {
	case item.Quantity > cfg.MaxQuantity:
		randSize := rng.Float64()
		if randSize > cfg.Randomness {
			randSize = cfg.Randomness
		}
		item.Quantity -= int32(float64(item.Quantity) * randSize)

	case item.Quantity == 0:
		if rng.Float64() < cfg.ChanceToRestock {
			item.Quantity = cfg.MinQuantity + rng.Int31n(cfg.MaxRestock-cfg.MinQuantity)
		}

	default:
		randSize := rng.Float64()
		if randSize > cfg.Randomness {
			randSize = cfg.Randomness
		}
		if randSize < 0.01 {
			randSize = 0.01
		}
		delta := int32(float64(item.Quantity) * randSize)
		if rng.Intn(2) == 0 {
			delta = -delta
		}
		if delta == 0 {
			delta = -1 // change it by at least something
		}
		item.Quantity += delta
	}

	if item.Quantity < 0 {
		item.Quantity = 0
	}
	if item.Quantity > cfg.MaxQuantity {
		item.Quantity = cfg.MaxQuantity
	}
	return item
}
