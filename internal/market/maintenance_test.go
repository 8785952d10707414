package market

import (
	"testing"
	"time"

	"colony-exchange/internal/config"
	"colony-exchange/internal/database"
	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func testRoutine(db *gorm.DB) *Routine {
	return &Routine{
		db:             db,
		nodeName:       "test-node",
		voteThreshold:  1,
		voteMaxAgeDays: 30,
	}
}

func candidate(thingDef string, base float64) models.CandidateItem {
	return models.CandidateItem{
		ThingDef:  thingDef,
		BaseValue: base,
		Weight:    0.5,
	}
}

func TestProcessVotesPromotesAboveThreshold(t *testing.T) {
	db := openTestDB(t)
	inv := inventory.NewService(db)

	// Two distinct clients push "Steel" over the threshold of 1; "Gold"
	// stays at a single vote.
	require.NoError(t, inv.SubmitCandidates("colony-1", "client-1", []models.CandidateItem{candidate("Steel", 2)}))
	require.NoError(t, inv.SubmitCandidates("colony-2", "client-2", []models.CandidateItem{candidate("Steel", 2)}))
	require.NoError(t, inv.SubmitCandidates("colony-1", "client-1", []models.CandidateItem{candidate("Gold", 10)}))

	require.NoError(t, testRoutine(db).ProcessVotes())

	steelCode := candidate("Steel", 2).ItemCode()
	var steel models.InventoryItem
	require.NoError(t, db.First(&steel, "item_code = ?", steelCode).Error)
	assert.Equal(t, "Steel", steel.ThingDef)
	assert.True(t, steel.BaseValue.Equal(decimal.NewFromInt(2)))
	assert.True(t, steel.BuyAt.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int32(0), steel.Quantity)

	goldCode := candidate("Gold", 10).ItemCode()
	var count int64
	require.NoError(t, db.Model(&models.InventoryItem{}).Where("item_code = ?", goldCode).Count(&count).Error)
	assert.Zero(t, count, "single-vote candidate must not be promoted")

	// Consumed candidate and votes are gone, the pending one survives.
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.NewInventoryVoteTracker{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessVotesHighestRankedVersionWins(t *testing.T) {
	db := openTestDB(t)
	inv := inventory.NewService(db)

	// The same item at two base values competes as two versions; both
	// cross the threshold, only one may enter the catalog.
	for _, clientID := range []string{"client-1", "client-2"} {
		require.NoError(t, inv.SubmitCandidates("colony-1", clientID, []models.CandidateItem{candidate("Steel", 5)}))
		require.NoError(t, inv.SubmitCandidates("colony-1", clientID, []models.CandidateItem{candidate("Steel", 7)}))
	}

	require.NoError(t, testRoutine(db).ProcessVotes())

	var steel models.InventoryItem
	require.NoError(t, db.First(&steel, "item_code = ?", candidate("Steel", 5).ItemCode()).Error)
	assert.True(t, steel.BaseValue.Equal(decimal.NewFromInt(7)), "tie broken toward the higher base value, got %s", steel.BaseValue)

	var count int64
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&count).Error)
	assert.Zero(t, count, "both competing versions are consumed")
}

func TestProcessVotesProtectsSilver(t *testing.T) {
	db := openTestDB(t)
	silver := models.SilverItem()

	// A forged candidate targeting the system item, planted directly.
	forged := models.NewInventory{
		Version:   "forged-version",
		ItemCode:  silver.ItemCode,
		ThingDef:  silver.ThingDef,
		BaseValue: decimal.NewFromInt(9999),
		Weight:    decimal.NewFromInt(1),
	}
	require.NoError(t, db.Create(&forged).Error)
	for _, clientID := range []string{"client-1", "client-2", "client-3"} {
		require.NoError(t, db.Create(&models.NewInventoryVoteTracker{
			ClientID: clientID,
			Version:  forged.Version,
			ColonyID: "colony-1",
		}).Error)
	}

	require.NoError(t, testRoutine(db).ProcessVotes())

	var row models.InventoryItem
	require.NoError(t, db.First(&row, "item_code = ?", silver.ItemCode).Error)
	assert.True(t, row.BaseValue.Equal(decimal.NewFromInt(1)), "silver keeps its fixed value, got %s", row.BaseValue)

	var count int64
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.NewInventoryVoteTracker{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessVotesAgesOutStaleCandidates(t *testing.T) {
	db := openTestDB(t)

	stale := candidate("Jade", 3).NewInventory()
	require.NoError(t, db.Create(&stale).Error)
	old := time.Now().UTC().AddDate(0, 0, -90)
	require.NoError(t, db.Model(&models.NewInventory{}).
		Where("version = ?", stale.Version).
		Update("date_added", old).Error)
	require.NoError(t, db.Create(&models.NewInventoryVoteTracker{
		ClientID: "client-1", Version: stale.Version, ColonyID: "colony-1",
	}).Error)

	require.NoError(t, testRoutine(db).ProcessVotes())

	var count int64
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.NewInventoryVoteTracker{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRebalanceMarketKeepsInvariants(t *testing.T) {
	db := openTestDB(t)

	stock := config.StockConfig{
		Pricing: []config.PriceThreshold{{
			PriceEnd: 1000,
			Buying:   config.PriceSide{StepSize: 0.1, UnitToStockRatio: 1, MaxSteps: 2, MaxPriceIncreasePct: 0.2, MaxPriceDecreasePct: 0.2},
			Selling:  config.PriceSide{StepSize: 0.1, UnitToStockRatio: 1, MaxSteps: 2, MaxPriceIncreasePct: 0.2, MaxPriceDecreasePct: 0.2},
		}},
		Restock: []config.StockThreshold{{
			PriceEnd: 1000, MaxQuantity: 50, MinQuantity: 5, MaxRestock: 40, ChanceToRestock: 1, Randomness: 0.2,
		}},
		Threading: config.Threading{Parallelism: 2, BatchSize: 10},
	}
	require.NoError(t, db.Create(&models.MarketConfig{Version: 1, ConfigData: stock}).Error)

	silver := models.SilverItem()
	require.NoError(t, db.Create(&silver).Error)
	items := make([]models.InventoryItem, 0, 25)
	for i := 0; i < 25; i++ {
		item := models.InventoryItem{
			ThingDef:  "Thing",
			Quality:   int32(i + 1),
			Quantity:  int32(i * 4),
			BaseValue: decimal.NewFromInt(int64(i + 1)),
			BuyAt:     decimal.NewFromInt(int64(i + 1)),
			SellAt:    decimal.NewFromInt(int64(i + 1)),
			Weight:    decimal.NewFromFloat(0.5),
		}
		item.PopulateIdentity()
		items = append(items, item)
	}
	require.NoError(t, db.Create(&items).Error)

	require.NoError(t, testRoutine(db).RebalanceMarket())

	var after []models.InventoryItem
	require.NoError(t, db.Where("item_code <> ?", silver.ItemCode).Find(&after).Error)
	require.Len(t, after, 25)
	for _, item := range after {
		lo := item.BaseValue.Mul(decimal.NewFromFloat(0.8)).Round(2)
		hi := item.BaseValue.Mul(decimal.NewFromFloat(1.2)).Round(2)
		assert.True(t, item.BuyAt.GreaterThanOrEqual(lo) && item.BuyAt.LessThanOrEqual(hi),
			"buy_at %s outside band for base %s", item.BuyAt, item.BaseValue)
		assert.True(t, item.SellAt.GreaterThanOrEqual(lo) && item.SellAt.LessThanOrEqual(hi),
			"sell_at %s outside band for base %s", item.SellAt, item.BaseValue)
		assert.GreaterOrEqual(t, item.Quantity, int32(0))
		assert.LessOrEqual(t, item.Quantity, int32(50))
	}

	// The system item never drifts.
	var silverAfter models.InventoryItem
	require.NoError(t, db.First(&silverAfter, "item_code = ?", silver.ItemCode).Error)
	assert.True(t, silverAfter.BuyAt.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int32(0), silverAfter.Quantity)
}

func TestRebalanceMarketSurvivesBadThreshold(t *testing.T) {
	db := openTestDB(t)

	// A zero unit_to_stock_ratio divides by zero as soon as an item has
	// traded. The batch must fail on its own, not take the routine down.
	stock := config.StockConfig{
		Pricing: []config.PriceThreshold{{
			PriceEnd: 1000,
			Buying:   config.PriceSide{StepSize: 0.1, UnitToStockRatio: 0, MaxSteps: 2, MaxPriceIncreasePct: 0.2, MaxPriceDecreasePct: 0.2},
			Selling:  config.PriceSide{StepSize: 0.1, UnitToStockRatio: 0, MaxSteps: 2, MaxPriceIncreasePct: 0.2, MaxPriceDecreasePct: 0.2},
		}},
		Threading: config.Threading{Parallelism: 1, BatchSize: 10},
	}
	require.NoError(t, db.Create(&models.MarketConfig{Version: 1, ConfigData: stock}).Error)

	item := models.InventoryItem{
		ThingDef:  "Thing",
		Quantity:  3,
		BaseValue: decimal.NewFromInt(10),
		BuyAt:     decimal.NewFromInt(10),
		SellAt:    decimal.NewFromInt(10),
		Weight:    decimal.NewFromFloat(0.5),
	}
	item.PopulateIdentity()
	require.NoError(t, db.Create(&item).Error)
	require.NoError(t, db.Create(&models.TradeStatistic{
		ItemCode: item.ItemCode,
		Buy:      true,
		Date:     models.StatDate(time.Now()),
		Quantity: 10,
	}).Error)

	require.NoError(t, testRoutine(db).RebalanceMarket())

	// The failed page is left as it was.
	var after models.InventoryItem
	require.NoError(t, db.First(&after, "item_code = ?", item.ItemCode).Error)
	assert.True(t, after.SellAt.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int32(3), after.Quantity)
}
