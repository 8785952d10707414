package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"colony-exchange/internal/api"
	"colony-exchange/internal/config"
	"colony-exchange/internal/database"
	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"
	"colony-exchange/internal/orders"
	"colony-exchange/internal/promise"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Seed(db, cfg); err != nil {
		log.Fatal("Failed to seed database:", err)
	}

	// The offline flag follows the maintenance lock table. While a
	// maintenance run holds the lock the exchange refuses colony traffic.
	online := config.NewOnlineState()
	online.StartRefresher(context.Background(),
		time.Duration(cfg.OnlinePollSeconds)*time.Second,
		func() (bool, error) { return maintenanceInProgress(db) })

	promises := promise.NewService(db, time.Duration(cfg.PromiseTTLSeconds)*time.Second)
	inv := inventory.NewService(db)
	engine := orders.NewEngine(db, promises, cfg)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": !online.Snapshot().ForceOffline})
	})

	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, promises, inv, engine, online)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}

func maintenanceInProgress(db *gorm.DB) (bool, error) {
	var count int64
	err := db.Model(&models.MaintenanceLock{}).
		Where("in_progress = ?", true).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
