package models

import "github.com/shopspring/decimal"

// OrderItem is one requested line in a manifest. Health is a percentage
// (100 = pristine) and scales the traded price.
type OrderItem struct {
	ItemCode string  `json:"item_code"`
	Quantity int32   `json:"quantity"`
	Health   float64 `json:"health"`
}

// OrderStats aggregates the weights and costs of one order.
type OrderStats struct {
	// Weight of goods collected from the colony
	TotalSellWeight decimal.Decimal `json:"total_sell_weight"`
	// Weight of goods delivered to the colony
	TotalBuyWeight decimal.Decimal `json:"total_buy_weight"`
	// Cash credited to the colony
	TotalSellCost decimal.Decimal `json:"total_sell_cost"`
	// Cash taken from the colony
	TotalBuyCost decimal.Decimal `json:"total_buy_cost"`
}

// OrderManifest is stored with the order so the trade can be audited and,
// if the anti-cheat rollback fires, reversed. BalanceAdjustment is the
// signed delta the order applied to the bank at placement time.
type OrderManifest struct {
	WTS               []OrderItem `json:"wts"`
	WTB               []OrderItem `json:"wtb"`
	BalanceAdjustment int64       `json:"balance_adjustment"`
	Currency          Currency    `json:"currency"`
}
