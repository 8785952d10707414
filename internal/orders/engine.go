package orders

import (
	"errors"
	"fmt"
	"log"

	"colony-exchange/internal/bank"
	"colony-exchange/internal/config"
	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"
	"colony-exchange/internal/promise"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Game time constants.
const (
	OneHourTicks int32 = 2_500
	OneDayTicks  int32 = 60_000
)

var (
	// ErrStaleTick rejects writes racing against an outdated world state.
	ErrStaleTick = errors.New("colony tick out of date")
	// ErrSignature rejects a manifest containing an item reference that
	// does not verify against the promise key.
	ErrSignature = errors.New("item reference failed verification")
	// ErrNotFound covers orders that do not exist or belong to someone else.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition rejects a status change the state machine does
	// not permit.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Engine executes trades against the catalog and the bank and owns the
// order state machine.
type Engine struct {
	db       *gorm.DB
	promises *promise.Service
	cfg      *config.Config
}

func NewEngine(db *gorm.DB, promises *promise.Service, cfg *config.Config) *Engine {
	return &Engine{db: db, promises: promises, cfg: cfg}
}

func (e *Engine) fees() fees {
	return fees{
		collectionPerKg: decimal.NewFromInt(int64(e.cfg.CollectionChargePerKg)),
		deliveryPerKg:   decimal.NewFromInt(int64(e.cfg.DeliveryChargePerKg)),
	}
}

// PlaceResult is the outcome of a placement or withdrawal. On Rejected the
// colony's state is unchanged and Order is nil.
type PlaceResult struct {
	Result      models.OrderResult `json:"result"`
	Order       *models.Order      `json:"order,omitempty"`
	Unavailable []models.OrderItem `json:"unavailable,omitempty"`
	Refunded    int64              `json:"refunded"`
	Balance     int64              `json:"balance"`
}

// Place executes one trade. Pre-transaction failures (stale tick, promise,
// signature) surface as errors; anything that goes wrong inside the
// transaction rolls everything back and comes out as a Rejected result,
// leaving the colony's stock and balance untouched.
func (e *Engine) Place(colony *models.Colony, wts, wtb []models.OrderItem, promiseID string, currency models.Currency, additionalFunds int64, colonyTick int32) (*PlaceResult, error) {
	if colonyTick != colony.Tick {
		return nil, ErrStaleTick
	}

	p, err := e.promises.Validate(colony.ColonyID, promiseID)
	if err != nil {
		return nil, err
	}

	// Unwrap every signed item reference before anything touches the
	// database. A single forged or foreign token rejects the whole order.
	codes := make([]string, 0, len(wts)+len(wtb))
	seen := make(map[string]bool, len(wts)+len(wtb))
	for _, group := range [][]models.OrderItem{wts, wtb} {
		for i := range group {
			code, err := promise.Verify(group[i].ItemCode, p.PrivateKey)
			if err != nil {
				return nil, ErrSignature
			}
			group[i].ItemCode = code
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}

	result := &PlaceResult{Result: models.ResultRejected}
	txErr := e.db.Transaction(func(tx *gorm.DB) error {
		items, err := inventory.Items(tx, codes)
		if err != nil {
			return err
		}

		os, outOfStock, err := applyStock(tx, wts, wtb, items, e.fees())
		if err != nil {
			return err
		}

		balance, err := bank.GetOrCreate(tx, colony.ColonyID, currency)
		if err != nil {
			return err
		}

		// Projected balance after the whole trade; in debt means reject,
		// there is no partial fulfilment of currency.
		net := os.TotalSellCost.Sub(os.TotalBuyCost).Round(2)
		projected := decimal.NewFromInt(balance.Balance).
			Add(decimal.NewFromInt(additionalFunds)).
			Add(net)
		if projected.IsNegative() {
			return bank.ErrNegativeBalance
		}

		refunded := decimal.Zero
		for _, line := range outOfStock {
			item, ok := items[line.ItemCode]
			if !ok {
				return ErrUnknownItem
			}
			refunded = refunded.Add(item.SellAt.Mul(decimal.NewFromInt32(line.Quantity)).Round(2))
		}
		// Round then truncate; sub-unit remainders are lost.
		totalRefund := refunded.Round(2).IntPart()

		starting := balance.Balance
		balance.Balance += totalRefund
		balance.Balance += additionalFunds
		balance.Balance += os.TotalSellCost.Round(2).IntPart()
		balance.Balance -= os.TotalBuyCost.Round(2).IntPart()
		if err := bank.Save(tx, balance); err != nil {
			return err
		}

		manifest := models.OrderManifest{
			WTS:               wts,
			WTB:               wtb,
			BalanceAdjustment: balance.Balance - starting,
			Currency:          currency,
		}
		order, err := createOrder(tx, colony, os, manifest, colony.Tick, nil)
		if err != nil {
			return err
		}

		result.Order = order
		result.Unavailable = outOfStock
		result.Refunded = totalRefund
		result.Balance = balance.Balance
		if len(outOfStock) > 0 {
			result.Result = models.ResultAcceptedPartial
		} else {
			result.Result = models.ResultAcceptedAll
		}
		return nil
	})

	if txErr != nil {
		log.Printf("Order rejected for colony %s: %v", colony.ColonyID, txErr)
		return &PlaceResult{Result: models.ResultRejected}, nil
	}

	// Sell-only orders complete immediately; push their volumes into the
	// daily statistics without holding up the response.
	if result.Order != nil && result.Order.Status == models.OrderDelivered {
		orderID := result.Order.OrderID
		go func() {
			if err := UpdateTradeStats(e.db, orderID); err != nil {
				log.Printf("Trade stats update failed for order %s: %v", orderID, err)
			}
		}()
	}
	return result, nil
}

// createOrder inserts the audit record for a trade. Sell-only manifests
// have nothing to deliver and are born Delivered at the placement tick.
func createOrder(tx *gorm.DB, colony *models.Colony, os models.OrderStats, manifest models.OrderManifest, tick int32, deliveryTick *int32) (*models.Order, error) {
	status := models.OrderPlaced
	endTick := tick + OneDayTicks*2
	if deliveryTick != nil {
		endTick = *deliveryTick
	}
	if len(manifest.WTB) == 0 {
		status = models.OrderDelivered
		endTick = tick
	}

	order := models.Order{
		OrderID:    uuid.NewString(),
		ColonyID:   colony.ColonyID,
		Manifest:   manifest,
		Status:     status,
		StartTick:  tick,
		EndTick:    endTick,
		OrderStats: os,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return &order, nil
}
