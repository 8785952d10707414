package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"colony-exchange/internal/config"
	"colony-exchange/internal/database"
	"colony-exchange/internal/models"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
)

var (
	outPath = flag.String("out", "market-report.xlsx", "output xlsx path")
	date    = flag.String("date", "", "trade volume date (YYYY-MM-DD, default today)")
)

// market-report exports the catalog with the day's trade volumes to an
// xlsx workbook for manual inspection.
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

	day := *date
	if day == "" {
		day = models.StatDate(time.Now())
	}

	var items []models.InventoryItem
	if err := db.Order("item_code").Find(&items).Error; err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	var stats []models.TradeStatistic
	if err := db.Where("date = ?", day).Find(&stats).Error; err != nil {
		log.Fatalf("Failed to load trade statistics: %v", err)
	}

	bought := make(map[string]int64)
	sold := make(map[string]int64)
	for _, stat := range stats {
		if stat.Buy {
			bought[stat.ItemCode] = stat.Quantity
		} else {
			sold[stat.ItemCode] = stat.Quantity
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Catalog"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		log.Fatalf("Failed to rename sheet: %v", err)
	}

	headers := []string{"Item Code", "Thing Def", "Quality", "Stuff", "Minified",
		"Base Value", "Buy At", "Sell At", "Quantity", "Weight",
		fmt.Sprintf("Bought %s", day), fmt.Sprintf("Sold %s", day)}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, item := range items {
		values := []interface{}{
			item.ItemCode,
			item.ThingDef,
			item.Quality,
			item.Stuff,
			item.Minified,
			item.BaseValue.InexactFloat64(),
			item.BuyAt.InexactFloat64(),
			item.SellAt.InexactFloat64(),
			item.Quantity,
			item.Weight.InexactFloat64(),
			bought[item.ItemCode],
			sold[item.ItemCode],
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	if err := f.SaveAs(*outPath); err != nil {
		log.Fatalf("Failed to write %s: %v", *outPath, err)
	}
	log.Printf("Wrote %d catalog rows to %s", len(items), *outPath)
}
