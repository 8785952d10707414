package market

import (
	"fmt"
	"log"
	"time"

	"colony-exchange/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// votedCandidate is a NewInventory row joined with its tally.
type votedCandidate struct {
	models.NewInventory
	Votes int64
}

// ProcessVotes is phase one of the maintenance routine: it purges any
// tampering attempts against the system item, re-seeds it, promotes
// candidates whose tally crossed the threshold into the catalog, and ages
// out candidates that never made it. Runs in a single transaction.
func (r *Routine) ProcessVotes() error {
	silver := models.SilverItem()

	return r.db.Transaction(func(tx *gorm.DB) error {
		// Votes targeting the system item are abuse; remove them before
		// tallying so nothing can overwrite its value.
		silverVersions := tx.Model(&models.NewInventory{}).
			Select("version").Where("item_code = ?", silver.ItemCode)
		if err := tx.Where("version IN (?)", silverVersions).
			Delete(&models.NewInventoryVoteTracker{}).Error; err != nil {
			return fmt.Errorf("failed to delete blacklisted votes: %w", err)
		}
		if err := tx.Where("item_code = ?", silver.ItemCode).
			Delete(&models.NewInventory{}).Error; err != nil {
			return fmt.Errorf("failed to delete blacklisted candidates: %w", err)
		}

		// Guarantee the system item always exists at its fixed value.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_code"}},
			UpdateAll: true,
		}).Create(&silver).Error; err != nil {
			return fmt.Errorf("failed to re-seed silver item: %w", err)
		}

		if err := r.promoteCandidates(tx); err != nil {
			return err
		}
		return r.ageOutCandidates(tx)
	})
}

// promoteCandidates takes a snapshot of every candidate above the vote
// threshold, sorted so that a final reverse pass makes higher-voted (and,
// on ties, higher-valued) versions win per item code, then upserts the
// winners and clears the consumed rows batch by batch.
func (r *Routine) promoteCandidates(tx *gorm.DB) error {
	var snapshot []votedCandidate
	err := tx.Model(&models.NewInventory{}).
		Select("new_inventories.*, COUNT(new_inventory_vote_trackers.version) AS votes").
		Joins("JOIN new_inventory_vote_trackers ON new_inventory_vote_trackers.version = new_inventories.version").
		Group("new_inventories.version").
		Having("COUNT(new_inventory_vote_trackers.version) > ?", r.voteThreshold).
		Order("votes ASC, base_value ASC").
		Scan(&snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to tally votes: %w", err)
	}
	if len(snapshot) == 0 {
		log.Println("No candidates above the vote threshold")
		return nil
	}

	batchSize := models.CandidateBatchSize()
	for start := 0; start < len(snapshot); start += batchSize {
		end := start + batchSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		batch := snapshot[start:end]

		// Walk the batch backwards so the first occurrence of an item
		// code is its highest-ranked version; every other version is
		// consumed without promotion.
		versionsToClear := make([]string, 0, len(batch))
		knownCodes := make(map[string]bool, len(batch))
		var winners []models.InventoryItem
		for i := len(batch) - 1; i >= 0; i-- {
			candidate := batch[i]
			versionsToClear = append(versionsToClear, candidate.Version)
			if knownCodes[candidate.ItemCode] {
				continue
			}
			knownCodes[candidate.ItemCode] = true
			winners = append(winners, candidate.NewInventory.InventoryItem())
		}
		log.Printf("Promoting %d candidates, %d duplicates filtered out",
			len(winners), len(versionsToClear)-len(winners))

		// Only the definition side of an existing row changes here;
		// trading prices and stock belong to the rebalance phase.
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"version", "minified", "base_value", "weight",
			}),
		}).Create(&winners).Error
		if err != nil {
			return fmt.Errorf("failed to promote candidates: %w", err)
		}

		if err := tx.Where("version IN ?", versionsToClear).
			Delete(&models.NewInventoryVoteTracker{}).Error; err != nil {
			return fmt.Errorf("failed to delete consumed votes: %w", err)
		}
		if err := tx.Where("version IN ?", versionsToClear).
			Delete(&models.NewInventory{}).Error; err != nil {
			return fmt.Errorf("failed to delete consumed candidates: %w", err)
		}
	}
	return nil
}

// ageOutCandidates deletes candidates (and their votes) that sat below
// the threshold longer than the retention window.
func (r *Routine) ageOutCandidates(tx *gorm.DB) error {
	cutoff := UTCMidnight(time.Now()).AddDate(0, 0, -r.voteMaxAgeDays)

	for {
		var versions []string
		err := tx.Model(&models.NewInventory{}).
			Select("version").
			Where("date_added < ?", cutoff).
			Limit(65_000).
			Find(&versions).Error
		if err != nil {
			return fmt.Errorf("failed to find aged candidates: %w", err)
		}
		if len(versions) == 0 {
			return nil
		}

		if err := tx.Where("version IN ?", versions).
			Delete(&models.NewInventoryVoteTracker{}).Error; err != nil {
			return fmt.Errorf("failed to delete aged votes: %w", err)
		}
		if err := tx.Where("version IN ?", versions).
			Delete(&models.NewInventory{}).Error; err != nil {
			return fmt.Errorf("failed to delete aged candidates: %w", err)
		}
	}
}
