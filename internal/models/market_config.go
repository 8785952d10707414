package models

import (
	"time"

	"colony-exchange/internal/config"
)

// MarketConfig is a versioned snapshot of the market threshold set. The
// maintenance routine always loads the highest version; seeding a new row
// supersedes the old one without deleting history. Versions are assigned
// by the seeder, not the database, so the schema migrates the same way on
// every driver.
type MarketConfig struct {
	Version    int64              `json:"version" gorm:"primaryKey;autoIncrement:false"`
	ConfigData config.StockConfig `json:"config_data" gorm:"serializer:json"`
	CreatedAt  time.Time          `json:"created_at"`
}
