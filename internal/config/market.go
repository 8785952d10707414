package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// PriceSide tunes one direction of the daily price drift for a value
// bucket.
type PriceSide struct {
	StepSize            float64 `toml:"step_size" json:"step_size"`
	UnitToStockRatio    int64   `toml:"unit_to_stock_ratio" json:"unit_to_stock_ratio"`
	MaxSteps            int64   `toml:"max_steps" json:"max_steps"`
	MaxPriceIncreasePct float64 `toml:"max_price_increase_pct" json:"max_price_increase_pct"`
	MaxPriceDecreasePct float64 `toml:"max_price_decrease_pct" json:"max_price_decrease_pct"`
}

// PriceThreshold applies to items whose base value falls inside
// [PriceStart, PriceEnd]. Items matching no threshold are left untouched.
type PriceThreshold struct {
	PriceStart float64   `toml:"price_start" json:"price_start"`
	PriceEnd   float64   `toml:"price_end" json:"price_end"`
	Buying     PriceSide `toml:"buying" json:"buying"`
	Selling    PriceSide `toml:"selling" json:"selling"`
}

// StockThreshold tunes the nightly stock deplete/restock/jitter for a
// value bucket.
type StockThreshold struct {
	PriceStart      float64 `toml:"price_start" json:"price_start"`
	PriceEnd        float64 `toml:"price_end" json:"price_end"`
	MaxQuantity     int32   `toml:"max_quantity" json:"max_quantity"`
	MinQuantity     int32   `toml:"min_quantity" json:"min_quantity"`
	MaxRestock      int32   `toml:"max_restock" json:"max_restock"`
	ChanceToRestock float64 `toml:"chance_to_restock" json:"chance_to_restock"`
	Randomness      float64 `toml:"randomness" json:"randomness"`
}

// Threading bounds the maintenance worker pool.
type Threading struct {
	Parallelism int `toml:"parallelism" json:"parallelism"`
	BatchSize   int `toml:"batch_size" json:"batch_size"`
}

// StockConfig is the full market threshold set. It is stored versioned in
// the database and seedable from a TOML file.
type StockConfig struct {
	Pricing   []PriceThreshold `toml:"pricing" json:"pricing"`
	Restock   []StockThreshold `toml:"restock" json:"restock"`
	Threading Threading        `toml:"threading" json:"threading"`
}

// PriceThresholdFor returns the price bucket covering the base value, or
// false when no bucket matches.
func (c *StockConfig) PriceThresholdFor(baseValue float64) (PriceThreshold, bool) {
	for _, t := range c.Pricing {
		if t.PriceStart <= baseValue && baseValue <= t.PriceEnd {
			return t, true
		}
	}
	return PriceThreshold{}, false
}

// StockThresholdFor returns the stock bucket covering the base value, or
// false when no bucket matches.
func (c *StockConfig) StockThresholdFor(baseValue float64) (StockThreshold, bool) {
	for _, t := range c.Restock {
		if t.PriceStart <= baseValue && baseValue <= t.PriceEnd {
			return t, true
		}
	}
	return StockThreshold{}, false
}

// LoadMarketFile reads a StockConfig from a TOML file.
func LoadMarketFile(path string) (*StockConfig, error) {
	var cfg StockConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read market config %s: %w", path, err)
	}
	if cfg.Threading.Parallelism <= 0 {
		cfg.Threading.Parallelism = 4
	}
	if cfg.Threading.BatchSize <= 0 {
		cfg.Threading.BatchSize = 1000
	}
	return &cfg, nil
}

// DefaultStockConfig covers the usual base-value range with conservative
// drift, used when no market file is present and no row exists yet.
func DefaultStockConfig() *StockConfig {
	return &StockConfig{
		Pricing: []PriceThreshold{
			{
				PriceStart: 0,
				PriceEnd:   100000,
				Buying: PriceSide{
					StepSize:            0.01,
					UnitToStockRatio:    10,
					MaxSteps:            5,
					MaxPriceIncreasePct: 0.2,
					MaxPriceDecreasePct: 0.2,
				},
				Selling: PriceSide{
					StepSize:            0.01,
					UnitToStockRatio:    10,
					MaxSteps:            5,
					MaxPriceIncreasePct: 0.2,
					MaxPriceDecreasePct: 0.2,
				},
			},
		},
		Restock: []StockThreshold{
			{
				PriceStart:      0,
				PriceEnd:        100000,
				MaxQuantity:     200,
				MinQuantity:     5,
				MaxRestock:      50,
				ChanceToRestock: 0.5,
				Randomness:      0.25,
			},
		},
		Threading: Threading{Parallelism: 4, BatchSize: 1000},
	}
}
