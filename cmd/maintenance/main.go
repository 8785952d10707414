package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"colony-exchange/internal/config"
	"colony-exchange/internal/database"
	"colony-exchange/internal/market"

	"github.com/joho/godotenv"
)

var runNow = flag.Bool("now", false, "run one maintenance pass immediately and exit")

// The maintenance daemon sleeps until the next scheduled slot (UTC
// midnight plus the configured offset), runs the routine, and goes back to
// sleep. The lock makes concurrent daemons safe to deploy.
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Seed(db, cfg); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	routine := market.NewRoutine(db, cfg)

	if *runNow {
		slot := market.UTCMidnight(time.Now()).Add(time.Duration(cfg.MaintenanceStartOffset) * time.Second)
		if err := routine.Run(slot); err != nil {
			log.Fatalf("Maintenance failed: %v", err)
		}
		return
	}

	log.Printf("Maintenance daemon started (PID: %d)", os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		slot := nextSlot(time.Now(), cfg.MaintenanceStartOffset)
		log.Printf("Next maintenance slot: %s", slot.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(slot))
		select {
		case <-sigChan:
			timer.Stop()
			log.Println("Shutdown signal received, exiting")
			return
		case <-timer.C:
			if err := routine.Run(slot); err != nil {
				log.Printf("Maintenance for slot %s not run: %v", slot.Format(time.RFC3339), err)
			}
		}
	}
}

// nextSlot returns the first scheduled slot strictly after now.
func nextSlot(now time.Time, offsetSeconds int) time.Time {
	slot := market.UTCMidnight(now).Add(time.Duration(offsetSeconds) * time.Second)
	if !slot.After(now.UTC()) {
		slot = slot.Add(24 * time.Hour)
	}
	return slot
}
