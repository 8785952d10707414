package inventory

import (
	"testing"
	"time"

	"colony-exchange/internal/database"
	"colony-exchange/internal/models"
	"colony-exchange/internal/promise"

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

func addItem(t *testing.T, db *gorm.DB, thingDef string, buyAt, sellAt float64, stock int32) models.InventoryItem {
	t.Helper()
	item := models.InventoryItem{
		ThingDef:  thingDef,
		Quantity:  stock,
		BaseValue: decimal.NewFromFloat(buyAt),
		BuyAt:     decimal.NewFromFloat(buyAt),
		SellAt:    decimal.NewFromFloat(sellAt),
		Weight:    decimal.NewFromFloat(0.5),
	}
	item.PopulateIdentity()
	require.NoError(t, db.Create(&item).Error)
	return item
}

func TestTradablesForColony(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	steel := addItem(t, db, "Steel", 2, 2.5, 40)
	cloth := addItem(t, db, "Cloth", 1, 1.5, 0)
	addItem(t, db, "Gold", 10, 12, 5) // not on the list

	require.NoError(t, svc.SetTradables("colony-1", []string{steel.ItemCode, cloth.ItemCode}))

	tradables, err := svc.TradablesForColony("colony-1", "promise-key")
	require.NoError(t, err)
	require.Len(t, tradables, 2)

	// Zero-stock rows are still listed.
	assert.Equal(t, "Steel", tradables[0].ThingDef)
	assert.Equal(t, "Cloth", tradables[1].ThingDef)
	assert.Equal(t, int32(0), tradables[1].Quantity)
	assert.Equal(t, 2.5, tradables[0].WeSellAt)

	// The item code travels signed; it verifies back to the raw code
	// under the same key and under no other.
	code, err := promise.Verify(tradables[0].ItemCode, "promise-key")
	require.NoError(t, err)
	assert.Equal(t, steel.ItemCode, code)
	_, err = promise.Verify(tradables[0].ItemCode, "another-key")
	assert.ErrorIs(t, err, promise.ErrBadSignature)
}

func TestTradablesForColonyNoList(t *testing.T) {
	svc := NewService(openTestDB(t))
	_, err := svc.TradablesForColony("colony-1", "promise-key")
	assert.ErrorIs(t, err, ErrNoTradables)
}

func TestTradablesForColonyStaleList(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	item := addItem(t, db, "Steel", 2, 2.5, 40)
	require.NoError(t, svc.SetTradables("colony-1", []string{item.ItemCode}))
	require.NoError(t, db.Model(&models.ColonyTradableList{}).
		Where("colony_id = ?", "colony-1").
		UpdateColumn("update_date", time.Now().Add(-time.Hour)).Error)

	_, err := svc.TradablesForColony("colony-1", "promise-key")
	assert.ErrorIs(t, err, ErrNoTradables)
}

func TestTradablesFallBackToBaseValue(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	item := models.InventoryItem{
		ThingDef:  "Steel",
		BaseValue: decimal.NewFromInt(4),
		BuyAt:     decimal.Zero,
		SellAt:    decimal.Zero,
		Weight:    decimal.NewFromFloat(0.5),
	}
	item.PopulateIdentity()
	require.NoError(t, db.Create(&item).Error)
	require.NoError(t, svc.SetTradables("colony-1", []string{item.ItemCode}))

	tradables, err := svc.TradablesForColony("colony-1", "promise-key")
	require.NoError(t, err)
	require.Len(t, tradables, 1)
	assert.Equal(t, 4.0, tradables[0].WeBuyAt)
	assert.Equal(t, 4.0, tradables[0].WeSellAt)
}

func TestSubmitCandidates(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	items := []models.CandidateItem{
		{ThingDef: "Steel", BaseValue: 2, Weight: 0.5},
		{ThingDef: "Steel", BaseValue: 2, Weight: 0.5}, // duplicate in one upload
		{ThingDef: "Gold", BaseValue: 10, Weight: 0.008},
	}
	require.NoError(t, svc.SubmitCandidates("colony-1", "client-1", items))

	var candidates int64
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&candidates).Error)
	assert.Equal(t, int64(2), candidates)

	// Resubmission by the same client adds no votes; a second client does.
	require.NoError(t, svc.SubmitCandidates("colony-1", "client-1", items))
	require.NoError(t, svc.SubmitCandidates("colony-2", "client-2", items[:1]))

	var votes int64
	require.NoError(t, db.Model(&models.NewInventoryVoteTracker{}).Count(&votes).Error)
	assert.Equal(t, int64(3), votes)
}

func TestSubmitCandidatesIgnoresSilver(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	silver := models.SilverItem()
	require.NoError(t, svc.SubmitCandidates("colony-1", "client-1", []models.CandidateItem{
		{ThingDef: silver.ThingDef, BaseValue: 9999, Weight: 1},
	}))

	var count int64
	require.NoError(t, db.Model(&models.NewInventory{}).Count(&count).Error)
	assert.Zero(t, count)
}
