package market

import (
	"math/rand"
	"testing"

	"colony-exchange/internal/config"
	"colony-exchange/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testPriceThreshold() config.PriceThreshold {
	side := config.PriceSide{
		StepSize:            0.1,
		UnitToStockRatio:    1,
		MaxSteps:            2,
		MaxPriceIncreasePct: 0.5,
		MaxPriceDecreasePct: 0.5,
	}
	return config.PriceThreshold{PriceStart: 0, PriceEnd: 100, Buying: side, Selling: side}
}

func testItem(base float64, quantity int32) models.InventoryItem {
	item := models.InventoryItem{
		ThingDef:  "Steel",
		Quantity:  quantity,
		BaseValue: decimal.NewFromFloat(base),
		BuyAt:     decimal.NewFromFloat(base),
		SellAt:    decimal.NewFromFloat(base),
		Weight:    decimal.NewFromFloat(0.5),
	}
	item.PopulateIdentity()
	return item
}

func TestUpdateItemPriceSupplyPushesBuyDown(t *testing.T) {
	// Heavy supply: colonies sold us 1000 units. Buy price steps down by
	// the clamped number of steps, sell price decays one step because
	// nothing was bought.
	item := UpdateItemPrice(testPriceThreshold(), testItem(2.0, 10), TradePair{Sold: 1000})

	assert.Equal(t, "1.6", item.BuyAt.String())
	assert.Equal(t, "1.8", item.SellAt.String())
}

func TestUpdateItemPriceDemandPushesSellUp(t *testing.T) {
	item := UpdateItemPrice(testPriceThreshold(), testItem(2.0, 10), TradePair{Bought: 1000})

	assert.Equal(t, "2.4", item.SellAt.String())
	assert.Equal(t, "2.2", item.BuyAt.String())
}

func TestUpdateItemPriceSingleStep(t *testing.T) {
	item := UpdateItemPrice(testPriceThreshold(), testItem(2.0, 10), TradePair{Bought: 1, Sold: 1})

	assert.Equal(t, "2.2", item.SellAt.String())
	assert.Equal(t, "1.8", item.BuyAt.String())
}

func TestUpdateItemPriceNoTradesDecaysTowardClearing(t *testing.T) {
	item := UpdateItemPrice(testPriceThreshold(), testItem(2.0, 10), TradePair{})

	assert.Equal(t, "1.8", item.SellAt.String())
	assert.Equal(t, "2.2", item.BuyAt.String())
}

func TestUpdateItemPriceClamps(t *testing.T) {
	cfg := testPriceThreshold()
	cfg.Selling.MaxPriceIncreasePct = 0.15
	cfg.Buying.MaxPriceDecreasePct = 0.15

	item := UpdateItemPrice(cfg, testItem(2.0, 10), TradePair{Bought: 1000, Sold: 1000})

	// Two steps of 10% would land outside the 15% band; the clamp wins.
	assert.Equal(t, "2.3", item.SellAt.String())
	assert.Equal(t, "1.7", item.BuyAt.String())
}

func TestUpdateItemPriceBandInvariant(t *testing.T) {
	cfg := testPriceThreshold()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		base := 1 + rng.Float64()*99
		item := UpdateItemPrice(cfg, testItem(base, 10), TradePair{
			Bought: rng.Int63n(5000),
			Sold:   rng.Int63n(5000),
		})
		baseDec := decimal.NewFromFloat(base)
		lo := baseDec.Mul(decimal.NewFromFloat(0.5)).Round(2)
		hi := baseDec.Mul(decimal.NewFromFloat(1.5)).Round(2)
		assert.True(t, item.SellAt.GreaterThanOrEqual(lo) && item.SellAt.LessThanOrEqual(hi),
			"sell_at %s outside [%s, %s] for base %f", item.SellAt, lo, hi, base)
		assert.True(t, item.BuyAt.GreaterThanOrEqual(lo) && item.BuyAt.LessThanOrEqual(hi),
			"buy_at %s outside [%s, %s] for base %f", item.BuyAt, lo, hi, base)
	}
}

func testStockThreshold() config.StockThreshold {
	return config.StockThreshold{
		PriceStart:      0,
		PriceEnd:        100,
		MaxQuantity:     100,
		MinQuantity:     5,
		MaxRestock:      50,
		ChanceToRestock: 0.5,
		Randomness:      0.2,
	}
}

func TestUpdateItemStockBounds(t *testing.T) {
	cfg := testStockThreshold()
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 2000; i++ {
		item := testItem(5, rng.Int31n(300))
		item = UpdateItemStock(cfg, item, rng)
		assert.GreaterOrEqual(t, item.Quantity, int32(0))
		assert.LessOrEqual(t, item.Quantity, cfg.MaxQuantity)
	}
}

func TestUpdateItemStockOverstockedSheds(t *testing.T) {
	cfg := testStockThreshold()
	rng := rand.New(rand.NewSource(3))

	item := UpdateItemStock(cfg, testItem(5, 250), rng)
	assert.Less(t, item.Quantity, int32(250))
	assert.LessOrEqual(t, item.Quantity, cfg.MaxQuantity)
}

func TestUpdateItemStockRestockRange(t *testing.T) {
	cfg := testStockThreshold()
	cfg.ChanceToRestock = 1.0
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 200; i++ {
		item := UpdateItemStock(cfg, testItem(5, 0), rng)
		assert.GreaterOrEqual(t, item.Quantity, cfg.MinQuantity)
		assert.Less(t, item.Quantity, cfg.MaxRestock)
	}
}

func TestUpdateItemStockAlwaysMoves(t *testing.T) {
	cfg := testStockThreshold()
	rng := rand.New(rand.NewSource(9))

	for i := 0; i < 200; i++ {
		item := UpdateItemStock(cfg, testItem(5, 40), rng)
		assert.NotEqual(t, int32(40), item.Quantity)
	}
}
