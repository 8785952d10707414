package database

import (
	"fmt"
	"log"
	"time"

	"colony-exchange/internal/config"
	"colony-exchange/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Connection pool parameters
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// Migrate creates or updates every table the exchange owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Colony{},
		&models.InventoryItem{},
		&models.InventoryPromise{},
		&models.Order{},
		&models.BankBalance{},
		&models.TradeStatistic{},
		&models.ColonyTradableList{},
		&models.ColonyInventoryStaging{},
		&models.NewInventory{},
		&models.NewInventoryVoteTracker{},
		&models.MaintenanceLock{},
		&models.MarketConfig{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Seed guarantees the silver system item exists and that at least one
// market configuration row is present. The market file, when readable,
// always wins over the built-in defaults.
func Seed(db *gorm.DB, cfg *config.Config) error {
	silver := models.SilverItem()
	if err := db.Where(models.InventoryItem{ItemCode: silver.ItemCode}).
		FirstOrCreate(&silver).Error; err != nil {
		return fmt.Errorf("failed to seed silver item: %w", err)
	}

	var latest int64
	if err := db.Model(&models.MarketConfig{}).
		Select("COALESCE(MAX(version), 0)").Scan(&latest).Error; err != nil {
		return fmt.Errorf("failed to read market config version: %w", err)
	}

	stock, err := config.LoadMarketFile(cfg.MarketConfigPath)
	if err != nil {
		if latest > 0 {
			log.Printf("No market config file (%v), keeping stored configuration", err)
			return nil
		}
		log.Printf("No market config file (%v), seeding defaults", err)
		stock = config.DefaultStockConfig()
	}

	row := models.MarketConfig{Version: latest + 1, ConfigData: *stock}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to seed market config: %w", err)
	}
	log.Printf("Seeded market config version %d", row.Version)
	return nil
}

// CurrentStockConfig loads the newest market threshold configuration.
func CurrentStockConfig(db *gorm.DB) (*config.StockConfig, error) {
	var row models.MarketConfig
	if err := db.Order("version DESC").First(&row).Error; err != nil {
		return nil, fmt.Errorf("market configuration is missing: %w", err)
	}
	return &row.ConfigData, nil
}
