package promise

import (
	"errors"
	"fmt"
	"time"

	"colony-exchange/internal/itemcode"
	"colony-exchange/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound    = errors.New("promise not found")
	ErrExpired     = errors.New("promise expired")
	ErrDeactivated = errors.New("promise not activated")
	ErrMismatched  = errors.New("promise id mismatch")
)

const privateKeyLength = 32

// Service manages the single live trading session per colony.
type Service struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewService(db *gorm.DB, ttl time.Duration) *Service {
	return &Service{db: db, ttl: ttl}
}

// Issue creates a fresh promise for the colony, replacing any outstanding
// one. Tokens signed under the previous key stop verifying immediately.
func (s *Service) Issue(colonyID string) (*models.InventoryPromise, error) {
	p := models.InventoryPromise{
		ColonyID:   colonyID,
		PromiseID:  uuid.NewString(),
		PrivateKey: itemcode.RandomAlphanum(privateKeyLength),
		ExpiryDate: time.Now().UTC().Add(s.ttl),
		Activated:  false,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "colony_id"}},
		UpdateAll: true,
	}).Create(&p).Error
	if err != nil {
		return nil, fmt.Errorf("failed to issue promise: %w", err)
	}
	return &p, nil
}

// Activate flips a pending promise live and extends its expiry. Already
// activated promises cannot be re-activated, so a replayed activation
// cannot stretch the session.
func (s *Service) Activate(colonyID, promiseID string) (*models.InventoryPromise, error) {
	newExpiry := time.Now().UTC().Add(s.ttl)
	res := s.db.Model(&models.InventoryPromise{}).
		Where("colony_id = ? AND promise_id = ? AND activated = ?", colonyID, promiseID, false).
		Updates(map[string]interface{}{"activated": true, "expiry_date": newExpiry})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to activate promise: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	// Reload by both keys: a concurrent Issue may have replaced the row
	// already, and the replacement must not pass for the activated one.
	var p models.InventoryPromise
	if err := s.db.First(&p, "colony_id = ? AND promise_id = ?", colonyID, promiseID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload promise: %w", err)
	}
	return &p, nil
}

// Get returns the colony's live promise, rejecting expired and
// non-activated sessions.
func (s *Service) Get(colonyID string) (*models.InventoryPromise, error) {
	var p models.InventoryPromise
	if err := s.db.First(&p, "colony_id = ?", colonyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load promise: %w", err)
	}
	if p.ExpiryDate.Before(time.Now().UTC()) {
		return nil, ErrExpired
	}
	if !p.Activated {
		return nil, ErrDeactivated
	}
	return &p, nil
}

// Validate checks that the live promise matches the id the client claims.
// The order engine calls this before trusting any signed item reference.
func (s *Service) Validate(colonyID, promiseID string) (*models.InventoryPromise, error) {
	p, err := s.Get(colonyID)
	if err != nil {
		return nil, err
	}
	if p.PromiseID != promiseID {
		return nil, ErrMismatched
	}
	return p, nil
}
