package market

import (
	"database/sql"
	"fmt"
	"time"

	"colony-exchange/internal/itemcode"
	"colony-exchange/internal/models"

	"gorm.io/gorm"
)

// acquire takes the cooperative maintenance lock for the scheduled slot.
// Advisory only: the serializable delete-and-insert makes racing nodes
// collide at the database, but a node with skewed clocks can still slip
// through. Returns an error when another node already ran or is running
// this slot.
func (r *Routine) acquire(scheduled, started time.Time) error {
	checksum := itemcode.HashShortIdentity(scheduled.UTC().Format(time.RFC3339) + r.nodeName)

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.MaintenanceLock
		err := tx.First(&existing).Error
		if err == nil {
			if existing.InProgress {
				return fmt.Errorf("maintenance already in progress on %s", existing.NodeName)
			}
			if existing.StartTime != nil && existing.StartTime.Equal(scheduled.UTC()) {
				return fmt.Errorf("maintenance for this slot already ran on %s", existing.NodeName)
			}
		}

		if err := tx.Where("1 = 1").Delete(&models.MaintenanceLock{}).Error; err != nil {
			return fmt.Errorf("failed to clear maintenance lock: %w", err)
		}
		sched := scheduled.UTC()
		start := started.UTC()
		row := models.MaintenanceLock{
			Checksum:      checksum,
			InProgress:    true,
			StartTime:     &sched,
			ExecutionTime: &start,
			NodeName:      r.nodeName,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to take maintenance lock: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// release rewrites the lock row with the completed execution time.
func (r *Routine) release(scheduled, started time.Time) error {
	checksum := itemcode.HashShortIdentity(scheduled.UTC().Format(time.RFC3339) + r.nodeName)
	sched := scheduled.UTC()
	start := started.UTC()

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.MaintenanceLock{}).Error; err != nil {
			return fmt.Errorf("failed to clear maintenance lock: %w", err)
		}
		row := models.MaintenanceLock{
			Checksum:      checksum,
			InProgress:    false,
			StartTime:     &sched,
			ExecutionTime: &start,
			NodeName:      r.nodeName,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to write maintenance lock: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// UTCMidnight returns the start of the current UTC day.
func UTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
