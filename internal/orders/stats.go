package orders

import (
	"fmt"
	"time"

	"colony-exchange/internal/models"

	"gorm.io/gorm"
)

// UpdateTradeStats folds a delivered order's volumes into the additive
// daily counters the nightly pricing pass reads. Runs after the order
// transaction commits; a failure here is logged by the caller and never
// fails the trade.
func UpdateTradeStats(db *gorm.DB, orderID string) error {
	var order models.Order
	if err := db.First(&order, "order_id = ?", orderID).Error; err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	date := models.StatDate(time.Now())

	return db.Transaction(func(tx *gorm.DB) error {
		for _, line := range order.Manifest.WTB {
			if err := bumpStat(tx, line.ItemCode, true, date, int64(line.Quantity)); err != nil {
				return err
			}
		}
		for _, line := range order.Manifest.WTS {
			if err := bumpStat(tx, line.ItemCode, false, date, int64(line.Quantity)); err != nil {
				return err
			}
		}
		return nil
	})
}

func bumpStat(tx *gorm.DB, itemCode string, buy bool, date string, quantity int64) error {
	res := tx.Model(&models.TradeStatistic{}).
		Where("item_code = ? AND buy = ? AND date = ?", itemCode, buy, date).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to bump trade stat: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	stat := models.TradeStatistic{ItemCode: itemCode, Buy: buy, Date: date, Quantity: quantity}
	if err := tx.Create(&stat).Error; err != nil {
		return fmt.Errorf("failed to insert trade stat: %w", err)
	}
	return nil
}
