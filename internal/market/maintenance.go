package market

import (
	"log"
	"os"
	"time"

	"colony-exchange/internal/config"

	"gorm.io/gorm"
)

// Routine runs the daily market maintenance: candidate vote processing
// followed by a full catalog rebalance, guarded by the cooperative lock.
type Routine struct {
	db             *gorm.DB
	nodeName       string
	voteThreshold  int
	voteMaxAgeDays int
}

func NewRoutine(db *gorm.DB, cfg *config.Config) *Routine {
	nodeName, err := os.Hostname()
	if err != nil {
		nodeName = "unknown"
	}
	return &Routine{
		db:             db,
		nodeName:       nodeName,
		voteThreshold:  cfg.VotePromotionThreshold,
		voteMaxAgeDays: cfg.VoteMaxAgeDays,
	}
}

// Run executes one maintenance pass for the given scheduled slot. The
// lock is advisory: losing the race is normal on a multi-node deploy and
// is reported as an error so the caller can log and move on. The lock is
// only released on success; a crashed run keeps it held until an operator
// clears the row.
func (r *Routine) Run(scheduled time.Time) error {
	started := time.Now().UTC()
	log.Printf("Starting market maintenance for slot %s on %s",
		scheduled.UTC().Format(time.RFC3339), r.nodeName)

	if err := r.acquire(scheduled, started); err != nil {
		return err
	}

	if err := r.ProcessVotes(); err != nil {
		return err
	}
	if err := r.RebalanceMarket(); err != nil {
		return err
	}

	if err := r.release(scheduled, started); err != nil {
		return err
	}
	log.Printf("Market maintenance finished in %s", time.Since(started).Round(time.Millisecond))
	return nil
}
