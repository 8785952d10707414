package models

import (
	"colony-exchange/internal/itemcode"

	"github.com/shopspring/decimal"
)

// The wire-facing row shapes are projections of the canonical rows, built
// through these functions rather than kept as parallel struct clones.

// Tradable is the catalog view handed to a colony during a promise
// session. ItemCode carries the signed token, not the raw code.
type Tradable struct {
	ThingDef  string  `json:"thing_def"`
	ItemCode  string  `json:"item_code"`
	Quality   int32   `json:"quality"`
	Quantity  int32   `json:"quantity"`
	Minified  bool    `json:"minified"`
	BaseValue float64 `json:"base_value"`
	WeBuyAt   float64 `json:"we_buy_at"`
	WeSellAt  float64 `json:"we_sell_at"`
	Stuff     string  `json:"stuff"`
	Weight    float64 `json:"weight"`
}

// Tradable projects the catalog row into its client view, with the item
// code replaced by the signed token. Non-positive stored prices fall back
// to the base value so a half-initialized row never trades at zero.
func (i InventoryItem) Tradable(signedCode string) Tradable {
	buyAt := i.BuyAt
	if !buyAt.IsPositive() {
		buyAt = i.BaseValue
	}
	sellAt := i.SellAt
	if !sellAt.IsPositive() {
		sellAt = i.BaseValue
	}
	return Tradable{
		ThingDef:  i.ThingDef,
		ItemCode:  signedCode,
		Quality:   i.Quality,
		Quantity:  i.Quantity,
		Minified:  i.Minified,
		BaseValue: i.BaseValue.Round(2).InexactFloat64(),
		WeBuyAt:   buyAt.Round(2).InexactFloat64(),
		WeSellAt:  sellAt.Round(2).InexactFloat64(),
		Stuff:     i.Stuff,
		Weight:    i.Weight.Round(2).InexactFloat64(),
	}
}

// DeliveryItem is one line of a delivery manifest, resolved against the
// current catalog when an order is fetched.
type DeliveryItem struct {
	ItemCode string `json:"item_code"`
	ThingDef string `json:"thing_def"`
	Quantity int32  `json:"quantity"`
	Quality  int32  `json:"quality"`
	Stuff    string `json:"stuff"`
	Minified bool   `json:"minified"`
}

// DeliveryItem projects the catalog row into a manifest line with the
// given quantity.
func (i InventoryItem) DeliveryItem(quantity int32) DeliveryItem {
	return DeliveryItem{
		ItemCode: i.ItemCode,
		ThingDef: i.ThingDef,
		Quantity: quantity,
		Quality:  i.Quality,
		Stuff:    i.Stuff,
		Minified: i.Minified,
	}
}

// OrderSummary is the manifest-free order view returned by status updates
// and listings.
type OrderSummary struct {
	OrderID      string      `json:"order_id"`
	Status       OrderStatus `json:"status"`
	PlacedTick   int32       `json:"placed_tick"`
	DeliveryTick int32       `json:"delivery_tick"`
}

// Summary projects the order into its manifest-free view.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID:      o.OrderID,
		Status:       o.Status,
		PlacedTick:   o.StartTick,
		DeliveryTick: o.EndTick,
	}
}

// CandidateItem is an item definition as uploaded by a colony client,
// before it has a server-computed identity.
type CandidateItem struct {
	ThingDef  string  `json:"thing_def"`
	Quality   int32   `json:"quality"`
	Stuff     string  `json:"stuff"`
	Minified  bool    `json:"minified"`
	BaseValue float64 `json:"base_value"`
	Weight    float64 `json:"weight"`
}

// ItemCode derives the candidate's stable identity.
func (c CandidateItem) ItemCode() string {
	return itemcode.MakeItemCode(c.ThingDef, int(c.Quality), c.Stuff)
}

// NewInventory lifts the candidate into a vote-table row.
func (c CandidateItem) NewInventory() NewInventory {
	base := decimal.NewFromFloat(c.BaseValue).Round(2)
	code := c.ItemCode()
	return NewInventory{
		Version:   itemcode.MakeVersion(code, base),
		ItemCode:  code,
		ThingDef:  c.ThingDef,
		Quality:   c.Quality,
		Minified:  c.Minified,
		BaseValue: base,
		Stuff:     c.Stuff,
		Weight:    decimal.NewFromFloat(c.Weight).Round(2),
	}
}

// InventoryItem lifts the candidate row into a catalog row with both
// trading prices seeded from the base value.
func (n NewInventory) InventoryItem() InventoryItem {
	return InventoryItem{
		ItemCode:  n.ItemCode,
		ThingDef:  n.ThingDef,
		Quality:   n.Quality,
		Quantity:  0,
		Minified:  n.Minified,
		BaseValue: n.BaseValue,
		BuyAt:     n.BaseValue,
		SellAt:    n.BaseValue,
		Stuff:     n.Stuff,
		Weight:    n.Weight,
		Version:   n.Version,
	}
}
