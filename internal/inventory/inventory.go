package inventory

import (
	"errors"
	"fmt"
	"time"

	"colony-exchange/internal/models"
	"colony-exchange/internal/promise"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoTradables is returned when a colony asks for its catalog before
// uploading a tradable list, or when the list has gone stale.
var ErrNoTradables = errors.New("no recent tradable list for colony")

// tradableMaxAge bounds how old an uploaded tradable list may be before
// the colony has to re-upload it.
const tradableMaxAge = 5 * time.Minute

// Service reads and curates the shared commodity catalog.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Items loads catalog rows for the given codes, keyed by item code. Runs
// on the supplied handle so callers can use it inside a transaction.
func Items(tx *gorm.DB, codes []string) (map[string]*models.InventoryItem, error) {
	var rows []models.InventoryItem
	if err := tx.Where("item_code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load inventory rows: %w", err)
	}
	out := make(map[string]*models.InventoryItem, len(rows))
	for i := range rows {
		out[rows[i].ItemCode] = &rows[i]
	}
	return out, nil
}

// SetTradables replaces the colony's tradable item-code list.
func (s *Service) SetTradables(colonyID string, itemCodes []string) error {
	row := models.ColonyTradableList{ColonyID: colonyID, ItemCodes: itemCodes}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "colony_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store tradable list: %w", err)
	}
	return nil
}

// TradablesForColony projects the colony's tradable catalog rows into
// their client view, every item code signed under the promise key. Rows
// with zero stock are included so the client UI can still show them.
func (s *Service) TradablesForColony(colonyID, privateKey string) ([]models.Tradable, error) {
	var list models.ColonyTradableList
	if err := s.db.First(&list, "colony_id = ?", colonyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTradables
		}
		return nil, fmt.Errorf("failed to load tradable list: %w", err)
	}
	if time.Since(list.UpdateDate) > tradableMaxAge {
		return nil, ErrNoTradables
	}
	if len(list.ItemCodes) == 0 {
		return []models.Tradable{}, nil
	}

	items, err := Items(s.db, list.ItemCodes)
	if err != nil {
		return nil, err
	}
	tradables := make([]models.Tradable, 0, len(items))
	for _, code := range list.ItemCodes {
		item, ok := items[code]
		if !ok {
			continue
		}
		tradables = append(tradables, item.Tradable(promise.Sign(item.ItemCode, privateKey)))
	}
	return tradables, nil
}

// SubmitCandidates records a colony's uploaded item definitions: the raw
// staging row, one candidate per distinct version, and one vote per
// (client, version, colony). Duplicate votes are ignored, not errors.
func (s *Service) SubmitCandidates(colonyID, clientID string, candidates []models.CandidateItem) error {
	if len(candidates) == 0 {
		return nil
	}
	silver := models.SilverItem()

	return s.db.Transaction(func(tx *gorm.DB) error {
		staging := models.ColonyInventoryStaging{ColonyID: colonyID, Candidates: candidates}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "colony_id"}},
			UpdateAll: true,
		}).Create(&staging).Error
		if err != nil {
			return fmt.Errorf("failed to stage candidates: %w", err)
		}

		rows := make([]models.NewInventory, 0, len(candidates))
		votes := make([]models.NewInventoryVoteTracker, 0, len(candidates))
		seen := make(map[string]bool, len(candidates))
		for _, c := range candidates {
			row := c.NewInventory()
			// Nobody gets to tamper with the system item through voting.
			if row.ItemCode == silver.ItemCode || seen[row.Version] {
				continue
			}
			seen[row.Version] = true
			rows = append(rows, row)
			votes = append(votes, models.NewInventoryVoteTracker{
				ClientID: clientID,
				Version:  row.Version,
				ColonyID: colonyID,
			})
		}
		if len(rows) == 0 {
			return nil
		}

		// Keep the original date_added on re-submission so aging out
		// still works.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store candidates: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&votes).Error; err != nil {
			return fmt.Errorf("failed to store votes: %w", err)
		}
		return nil
	})
}
