package orders

import (
	"errors"
	"fmt"

	"colony-exchange/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrUnknownItem means a verified item reference had no catalog row, which
// should not happen for a token we signed ourselves.
var ErrUnknownItem = errors.New("item reference not in catalog")

var hundred = decimal.NewFromInt(100)

// fees are the per-kilogram shipping charges applied to an order.
type fees struct {
	collectionPerKg decimal.Decimal
	deliveryPerKg   decimal.Decimal
}

// lineCost prices one manifest line: unit price scaled by health percent,
// times quantity.
func lineCost(price decimal.Decimal, health float64, quantity int32) decimal.Decimal {
	return price.Div(hundred).
		Mul(decimal.NewFromFloat(health)).
		Mul(decimal.NewFromInt32(quantity))
}

// applyStock mutates the loaded catalog rows for a manifest and
// accumulates the order stats. Sell lines always add stock; buy lines with
// insufficient stock are moved to the out-of-stock list instead of being
// partially filled. Shipping fees are folded into the buy cost before the
// 2dp rounding at the end.
func applyStock(tx *gorm.DB, wts, wtb []models.OrderItem, items map[string]*models.InventoryItem, f fees) (models.OrderStats, []models.OrderItem, error) {
	var os models.OrderStats
	var outOfStock []models.OrderItem

	for _, line := range wts {
		item, ok := items[line.ItemCode]
		if !ok {
			return os, nil, ErrUnknownItem
		}
		quantity := decimal.NewFromInt32(line.Quantity)
		item.Quantity += line.Quantity
		os.TotalSellWeight = os.TotalSellWeight.Add(item.Weight.Mul(quantity))
		os.TotalSellCost = os.TotalSellCost.Add(lineCost(item.BuyAt, line.Health, line.Quantity))
	}

	for _, line := range wtb {
		item, ok := items[line.ItemCode]
		if !ok {
			return os, nil, ErrUnknownItem
		}
		if item.Quantity < line.Quantity {
			// Refuse the sale, the refund happens at the bank step.
			outOfStock = append(outOfStock, line)
			continue
		}
		quantity := decimal.NewFromInt32(line.Quantity)
		if item.Quantity -= line.Quantity; item.Quantity < 0 {
			item.Quantity = 0
		}
		os.TotalBuyWeight = os.TotalBuyWeight.Add(item.Weight.Mul(quantity))
		os.TotalBuyCost = os.TotalBuyCost.Add(lineCost(item.SellAt, line.Health, line.Quantity))
	}

	for _, item := range items {
		err := tx.Model(&models.InventoryItem{}).
			Where("item_code = ?", item.ItemCode).
			Update("quantity", item.Quantity).Error
		if err != nil {
			return os, nil, fmt.Errorf("failed to write stock for %s: %w", item.ItemCode, err)
		}
	}

	os.TotalSellWeight = os.TotalSellWeight.Round(2)
	os.TotalBuyWeight = os.TotalBuyWeight.Round(2)
	os.TotalBuyCost = os.TotalBuyCost.
		Add(os.TotalBuyWeight.Mul(f.deliveryPerKg)).
		Add(os.TotalSellWeight.Mul(f.collectionPerKg)).
		Round(2)
	os.TotalSellCost = os.TotalSellCost.Round(2)
	return os, outOfStock, nil
}
