package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Promise lifetime in seconds. The client gets this long to place an
	// order against the prices it was handed.
	PromiseTTLSeconds int

	// Flat shipping fees applied per kilogram of manifest weight.
	CollectionChargePerKg int
	DeliveryChargePerKg   int

	// How many in-game hours before the delivery tick an order may go out
	// for delivery.
	DeliveryWindowHours int

	// Nightly maintenance: offset from UTC midnight, in seconds.
	MaintenanceStartOffset int

	// Vote curation.
	VotePromotionThreshold int
	VoteMaxAgeDays         int

	// Path to the TOML file that seeds the market threshold configuration.
	MarketConfigPath string

	// How often the online flag is re-read from the database.
	OnlinePollSeconds int
}

func Load() *Config {
	defaultDSN := "root:colony@tcp(127.0.0.1:3306)/colony_exchange?charset=utf8mb4&parseTime=True&loc=UTC"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		PromiseTTLSeconds: getEnvInt("PROMISE_TTL_SECONDS", 300),

		CollectionChargePerKg: getEnvInt("COLLECTION_CHARGE_PER_KG", 1),
		DeliveryChargePerKg:   getEnvInt("DELIVERY_CHARGE_PER_KG", 1),

		DeliveryWindowHours: getEnvInt("DELIVERY_WINDOW_HOURS", 6),

		MaintenanceStartOffset: getEnvInt("MAINTENANCE_START_OFFSET_SECONDS", 3600),

		VotePromotionThreshold: getEnvInt("VOTE_PROMOTION_THRESHOLD", 5),
		VoteMaxAgeDays:         getEnvInt("VOTE_MAX_AGE_DAYS", 14),

		MarketConfigPath: getEnv("MARKET_CONFIG_PATH", "market.toml"),

		OnlinePollSeconds: getEnvInt("ONLINE_POLL_SECONDS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
