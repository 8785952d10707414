package orders

import (
	"fmt"
	"log"

	"colony-exchange/internal/bank"
	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"

	"gorm.io/gorm"
)

// Timewarp is the anti-cheat rollback: a colony reporting a tick earlier
// than its recorded one has regressed its world state, so every order it
// placed at or after the new tick is reversed. All reversals happen in one
// transaction; if any fails, nothing is persisted and the caller must not
// save the regressed tick either.
func (e *Engine) Timewarp(colony *models.Colony, newTick int32) error {
	var toReverse []models.Order
	err := e.db.
		Where("colony_id = ? AND start_tick >= ?", colony.ColonyID, newTick).
		Where("status NOT IN ?", []models.OrderStatus{models.OrderReversed, models.OrderFailed}).
		Find(&toReverse).Error
	if err != nil {
		return fmt.Errorf("failed to load orders to reverse: %w", err)
	}
	if len(toReverse) == 0 {
		return nil
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		for i := range toReverse {
			log.Printf("Rolling back order %s placed @ %d", toReverse[i].OrderID, toReverse[i].StartTick)
			if err := e.reverseOrder(tx, &toReverse[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// reverseOrder undoes one order at current catalog prices: the manifest is
// replayed with the buy and sell sides swapped, and the recorded balance
// adjustment is subtracted (floored at zero). The stock side is an
// approximation since prices may have drifted since placement.
func (e *Engine) reverseOrder(tx *gorm.DB, order *models.Order) error {
	codes := make([]string, 0, len(order.Manifest.WTS)+len(order.Manifest.WTB))
	seen := make(map[string]bool)
	for _, group := range [][]models.OrderItem{order.Manifest.WTB, order.Manifest.WTS} {
		for _, line := range group {
			if !seen[line.ItemCode] {
				seen[line.ItemCode] = true
				codes = append(codes, line.ItemCode)
			}
		}
	}

	items, err := inventory.Items(tx, codes)
	if err != nil {
		return err
	}
	if _, _, err := applyStock(tx, order.Manifest.WTB, order.Manifest.WTS, items, e.fees()); err != nil {
		return err
	}

	balance, err := bank.GetOrCreate(tx, order.ColonyID, order.Manifest.Currency)
	if err != nil {
		return err
	}
	balance.Balance -= order.Manifest.BalanceAdjustment
	if balance.Balance < 0 {
		balance.Balance = 0
	}
	if err := bank.Save(tx, balance); err != nil {
		return err
	}

	err = tx.Model(&models.Order{}).
		Where("order_id = ?", order.OrderID).
		Update("status", models.OrderReversed).Error
	if err != nil {
		return fmt.Errorf("failed to mark order reversed: %w", err)
	}
	order.Status = models.OrderReversed
	return nil
}
