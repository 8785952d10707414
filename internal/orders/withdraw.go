package orders

import (
	"log"

	"colony-exchange/internal/bank"
	"colony-exchange/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Withdraw debits the colony's balance and records the movement as a
// silver buy order, so every currency movement stays auditable through the
// orders table. The order is due at the current tick; there is nothing to
// manufacture or wait for.
func (e *Engine) Withdraw(colony *models.Colony, amount int64, currency models.Currency) (*PlaceResult, error) {
	result := &PlaceResult{Result: models.ResultRejected}
	silver := models.SilverItem()

	txErr := e.db.Transaction(func(tx *gorm.DB) error {
		balance, err := bank.GetOrCreate(tx, colony.ColonyID, currency)
		if err != nil {
			return err
		}
		if amount <= 0 || amount > balance.Balance {
			return bank.ErrNegativeBalance
		}
		balance.Balance -= amount
		if err := bank.Save(tx, balance); err != nil {
			return err
		}

		silverAmount := decimal.NewFromInt(amount)
		var os models.OrderStats
		os.TotalBuyCost = silverAmount.Round(2)
		os.TotalBuyWeight = silver.Weight.Mul(silverAmount).Round(2)

		manifest := models.OrderManifest{
			WTB: []models.OrderItem{{
				ItemCode: silver.ItemCode,
				Quantity: int32(amount),
				Health:   100,
			}},
			BalanceAdjustment: -amount,
			Currency:          currency,
		}
		tick := colony.Tick
		order, err := createOrder(tx, colony, os, manifest, tick, &tick)
		if err != nil {
			return err
		}

		result.Result = models.ResultAcceptedAll
		result.Order = order
		result.Balance = balance.Balance
		return nil
	})
	if txErr != nil {
		log.Printf("Withdrawal rejected for colony %s: %v", colony.ColonyID, txErr)
		return &PlaceResult{Result: models.ResultRejected}, nil
	}
	return result, nil
}
