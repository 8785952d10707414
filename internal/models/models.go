package models

import (
	"time"

	"colony-exchange/internal/itemcode"

	"github.com/shopspring/decimal"
)

// Colony represents a registered game colony. CRUD lives at the API
// boundary; the core only reads the recorded tick and writes it back on
// order updates and timewarp.
type Colony struct {
	ColonyID    string    `json:"colony_id" gorm:"column:colony_id;primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null"`
	FactionName string    `json:"faction_name"`
	Tick        int32     `json:"tick" gorm:"not null"`
	Platform    Platform  `json:"platform"`
	GameVersion string    `json:"game_version"`
	Seed        string    `json:"seed"`
	UsedDevMode bool      `json:"used_dev_mode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InventoryItem is the canonical catalog row. ItemCode identifies the
// (thing_def, quality, stuff) triple; Version additionally covers the base
// value so stale client caches and duplicate vote submissions can be
// detected. Quantity is global stock, not per colony.
type InventoryItem struct {
	ItemCode  string          `json:"item_code" gorm:"column:item_code;primaryKey;type:varchar(32)"`
	ThingDef  string          `json:"thing_def" gorm:"type:varchar(200);not null"`
	Quality   int32           `json:"quality"` // 0 means no quality tier
	Quantity  int32           `json:"quantity" gorm:"not null;default:0"`
	Minified  bool            `json:"minified" gorm:"not null;default:false"`
	BaseValue decimal.Decimal `json:"base_value" gorm:"type:decimal(10,2);not null"`
	BuyAt     decimal.Decimal `json:"buy_at" gorm:"type:decimal(10,2);not null"`   // price we buy from colonies at
	SellAt    decimal.Decimal `json:"sell_at" gorm:"type:decimal(10,2);not null"`  // price we sell to colonies at
	Stuff     string          `json:"stuff" gorm:"type:varchar(200)"`              // material, empty if not applicable
	Weight    decimal.Decimal `json:"weight" gorm:"type:decimal(10,2);not null"`
	Version   string          `json:"version" gorm:"type:varchar(32);not null"`
}

// PopulateIdentity recomputes item_code and version from the row's own
// definition and base value.
func (i *InventoryItem) PopulateIdentity() {
	i.ItemCode = itemcode.MakeItemCode(i.ThingDef, int(i.Quality), i.Stuff)
	i.Version = itemcode.MakeVersion(i.ItemCode, i.BaseValue)
}

// SilverItem returns the fixed system currency item. It is blacklisted
// from voting and repricing and re-seeded on every maintenance run.
func SilverItem() InventoryItem {
	silver := InventoryItem{
		ThingDef:  "Silver",
		Quantity:  0,
		BaseValue: decimal.NewFromInt(1),
		BuyAt:     decimal.NewFromInt(1),
		SellAt:    decimal.NewFromInt(1),
		Weight:    decimal.NewFromFloat(0.008),
	}
	silver.PopulateIdentity()
	return silver
}

// InventoryPromise is the single live trading session for a colony. The
// private key never leaves the server; issuing a new promise replaces the
// row and invalidates every token signed under the old key.
type InventoryPromise struct {
	ColonyID   string    `json:"colony_id" gorm:"column:colony_id;primaryKey;type:varchar(36)"`
	PromiseID  string    `json:"promise_id" gorm:"type:varchar(36);not null"`
	PrivateKey string    `json:"-" gorm:"type:varchar(64);not null"`
	ExpiryDate time.Time `json:"expiry_date" gorm:"not null"`
	Activated  bool      `json:"activated" gorm:"not null;default:false"`
}

// Order is the auditable result of a trade. Never deleted; the status is
// driven by the state machine and, out of band, by the timewarp rollback.
type Order struct {
	OrderID    string        `json:"order_id" gorm:"column:order_id;primaryKey;type:varchar(36)"`
	ColonyID   string        `json:"colony_id" gorm:"type:varchar(36);index;not null"`
	Manifest   OrderManifest `json:"manifest" gorm:"serializer:json"`
	Status     OrderStatus   `json:"status" gorm:"not null"`
	StartTick  int32         `json:"start_tick" gorm:"not null"`
	EndTick    int32         `json:"end_tick" gorm:"not null"`
	OrderStats OrderStats    `json:"order_stats" gorm:"serializer:json"`
	CreateDate time.Time     `json:"create_date" gorm:"autoCreateTime"`
	UpdateDate time.Time     `json:"update_date" gorm:"autoUpdateTime"`
}

// BankBalance holds one colony's balance in one currency. Balance never
// goes negative; a mutation that would is rejected with the enclosing
// transaction.
type BankBalance struct {
	ColonyID string   `json:"colony_id" gorm:"column:colony_id;primaryKey;type:varchar(36)"`
	Currency Currency `json:"currency" gorm:"primaryKey"`
	Balance  int64    `json:"balance" gorm:"not null;default:0"`
}

// TradeStatistic is an additive daily trade-volume counter per item and
// direction, consumed by the nightly pricing pass.
type TradeStatistic struct {
	ItemCode string `json:"item_code" gorm:"column:item_code;primaryKey;type:varchar(32)"`
	Buy      bool   `json:"buy" gorm:"primaryKey"`
	Date     string `json:"date" gorm:"primaryKey;type:varchar(10)"` // YYYY-MM-DD
	Quantity int64  `json:"quantity" gorm:"not null;default:0"`
}

// StatDate formats a timestamp as a trade-statistics day key.
func StatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ColonyTradableList is the set of catalog item codes a colony may be
// offered in a promise session. Uploaded by the client at the boundary.
type ColonyTradableList struct {
	ColonyID   string    `json:"colony_id" gorm:"column:colony_id;primaryKey;type:varchar(36)"`
	ItemCodes  []string  `json:"item_codes" gorm:"serializer:json"`
	UpdateDate time.Time `json:"update_date" gorm:"autoUpdateTime"`
}

// ColonyInventoryStaging keeps the raw candidate list a colony last
// submitted, prior to vote tallying.
type ColonyInventoryStaging struct {
	ColonyID   string          `json:"colony_id" gorm:"column:colony_id;primaryKey;type:varchar(36)"`
	Candidates []CandidateItem `json:"candidates" gorm:"serializer:json"`
	UpdateDate time.Time       `json:"update_date" gorm:"autoUpdateTime"`
}

// NewInventory is a catalog candidate awaiting promotion, keyed by version
// so the same item at a different base value competes separately.
type NewInventory struct {
	Version   string          `json:"version" gorm:"column:version;primaryKey;type:varchar(32)"`
	ItemCode  string          `json:"item_code" gorm:"type:varchar(32);index;not null"`
	ThingDef  string          `json:"thing_def" gorm:"type:varchar(200);not null"`
	Quality   int32           `json:"quality"`
	Minified  bool            `json:"minified" gorm:"not null;default:false"`
	BaseValue decimal.Decimal `json:"base_value" gorm:"type:decimal(10,2);not null"`
	Stuff     string          `json:"stuff" gorm:"type:varchar(200)"`
	Weight    decimal.Decimal `json:"weight" gorm:"type:decimal(10,2);not null"`
	DateAdded time.Time       `json:"date_added" gorm:"autoCreateTime"`
}

// NewInventoryVoteTracker enforces one vote per client per candidate
// version; the colony is recorded for audit.
type NewInventoryVoteTracker struct {
	ClientID string `json:"client_id" gorm:"column:client_id;primaryKey;type:varchar(36)"`
	Version  string `json:"version" gorm:"primaryKey;type:varchar(32)"`
	ColonyID string `json:"colony_id" gorm:"primaryKey;type:varchar(36)"`
}

// MaintenanceLock is the single-row cooperative lock for the nightly
// routine. Advisory only: two nodes racing at the same instant can both
// briefly believe they hold it.
type MaintenanceLock struct {
	Checksum      string     `json:"checksum" gorm:"column:checksum;primaryKey;type:varchar(32)"`
	InProgress    bool       `json:"in_progress" gorm:"not null"`
	StartTime     *time.Time `json:"start_time"`
	ExecutionTime *time.Time `json:"execution_time"`
	NodeName      string     `json:"node_name" gorm:"type:varchar(100)"`
}

// Field counts of the rows the maintenance routine writes in bulk. The
// batch sizes keep a multi-row upsert under the 65535 bind-parameter limit.
const (
	inventoryItemFieldCount = 11
	newInventoryFieldCount  = 9
)

// InventoryBatchSize is the page size cap for bulk catalog upserts.
func InventoryBatchSize() int {
	return 65535/inventoryItemFieldCount - 1
}

// CandidateBatchSize is the page size cap for vote-promotion batches.
func CandidateBatchSize() int {
	return 65535/newInventoryFieldCount - 1
}
