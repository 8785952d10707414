package orders

import (
	"errors"
	"fmt"
	"log"

	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"

	"gorm.io/gorm"
)

// UpdateStatus drives the order state machine on behalf of the client:
// Placed orders may go out for delivery once the colony is inside the
// delivery window, and out-for-delivery orders land as Delivered or
// Failed. Everything else is rejected. The colony's reported tick is
// persisted alongside, provided it has not regressed.
func (e *Engine) UpdateStatus(colony *models.Colony, orderID string, requested models.OrderStatus, colonyTick int32) (*models.OrderSummary, error) {
	if colonyTick < colony.Tick {
		return nil, ErrStaleTick
	}
	colony.Tick = colonyTick

	var order models.Order
	err := e.db.First(&order, "order_id = ? AND colony_id = ?", orderID, colony.ColonyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	deliveryWindow := int32(e.cfg.DeliveryWindowHours) * OneHourTicks
	switch order.Status {
	case models.OrderPlaced:
		// The only move out of Placed is toward delivery, and not before
		// the window opens. Early attempts are rejected, not queued.
		if requested != models.OrderOutForDelivery {
			return nil, ErrInvalidTransition
		}
		if colony.Tick <= order.EndTick-deliveryWindow {
			return nil, ErrInvalidTransition
		}
	case models.OrderOutForDelivery:
		if requested != models.OrderDelivered && requested != models.OrderFailed {
			return nil, ErrInvalidTransition
		}
	default:
		// Delivered, Failed and Reversed are terminal for client requests.
		return nil, ErrInvalidTransition
	}
	order.Status = requested

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Colony{}).
			Where("colony_id = ?", colony.ColonyID).
			Update("tick", colony.Tick).Error; err != nil {
			return fmt.Errorf("failed to save colony tick: %w", err)
		}
		if err := tx.Model(&models.Order{}).
			Where("order_id = ?", order.OrderID).
			Update("status", order.Status).Error; err != nil {
			return fmt.Errorf("failed to save order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderDelivered {
		orderID := order.OrderID
		go func() {
			if err := UpdateTradeStats(e.db, orderID); err != nil {
				log.Printf("Trade stats update failed for order %s: %v", orderID, err)
			}
		}()
	}

	summary := order.Summary()
	return &summary, nil
}

// List returns manifest-free summaries of every order the colony placed,
// newest first.
func (e *Engine) List(colonyID string) ([]models.OrderSummary, error) {
	var rows []models.Order
	err := e.db.Where("colony_id = ?", colonyID).
		Order("create_date DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	summaries := make([]models.OrderSummary, len(rows))
	for i, o := range rows {
		summaries[i] = o.Summary()
	}
	return summaries, nil
}

// Manifest resolves an order's deliverable lines against the current
// catalog so the client can render what is arriving.
func (e *Engine) Manifest(colonyID, orderID string) ([]models.DeliveryItem, error) {
	var order models.Order
	err := e.db.First(&order, "order_id = ? AND colony_id = ?", orderID, colonyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	codes := make([]string, 0, len(order.Manifest.WTB))
	for _, line := range order.Manifest.WTB {
		codes = append(codes, line.ItemCode)
	}
	if len(codes) == 0 {
		return []models.DeliveryItem{}, nil
	}
	items, err := inventory.Items(e.db, codes)
	if err != nil {
		return nil, err
	}
	deliveries := make([]models.DeliveryItem, 0, len(order.Manifest.WTB))
	for _, line := range order.Manifest.WTB {
		item, ok := items[line.ItemCode]
		if !ok {
			continue
		}
		deliveries = append(deliveries, item.DeliveryItem(line.Quantity))
	}
	return deliveries, nil
}
