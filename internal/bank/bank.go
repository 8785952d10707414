package bank

import (
	"errors"
	"fmt"

	"colony-exchange/internal/models"

	"gorm.io/gorm"
)

// ErrNegativeBalance rejects any write that would take a balance below
// zero; the caller's transaction is expected to roll back.
var ErrNegativeBalance = errors.New("balance would go negative")

// GetOrCreate returns the colony's balance row for the currency, inserting
// a zero balance when none exists. Runs on the caller's handle so it
// participates in the caller's transaction.
func GetOrCreate(tx *gorm.DB, colonyID string, currency models.Currency) (*models.BankBalance, error) {
	var balance models.BankBalance
	err := tx.First(&balance, "colony_id = ? AND currency = ?", colonyID, currency).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load bank balance: %w", err)
	}
	balance = models.BankBalance{ColonyID: colonyID, Currency: currency, Balance: 0}
	if err := tx.Create(&balance).Error; err != nil {
		return nil, fmt.Errorf("failed to create bank balance: %w", err)
	}
	return &balance, nil
}

// Save persists a mutated balance row, re-checking the non-negative
// invariant at the write boundary.
func Save(tx *gorm.DB, balance *models.BankBalance) error {
	if balance.Balance < 0 {
		return ErrNegativeBalance
	}
	err := tx.Model(&models.BankBalance{}).
		Where("colony_id = ? AND currency = ?", balance.ColonyID, balance.Currency).
		Update("balance", balance.Balance).Error
	if err != nil {
		return fmt.Errorf("failed to save bank balance: %w", err)
	}
	return nil
}

// Balances returns every currency balance for the colony, creating missing
// rows so the client always sees the full set.
func Balances(db *gorm.DB, colonyID string) (map[models.Currency]int64, error) {
	out := make(map[models.Currency]int64)
	for _, currency := range []models.Currency{models.CurrencyUTC} {
		row, err := GetOrCreate(db, colonyID, currency)
		if err != nil {
			return nil, err
		}
		out[currency] = row.Balance
	}
	return out, nil
}
