package market

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"colony-exchange/internal/config"
	"colony-exchange/internal/database"
	"colony-exchange/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrIntegrity signals a row-count mismatch after a batch transform; the
// batch is aborted rather than written back short.
var ErrIntegrity = errors.New("batch row count mismatch")

// pageTask is one disjoint offset range of the catalog.
type pageTask struct {
	offset   int
	pageSize int
}

// RebalanceMarket is phase two: the whole catalog is repriced and
// restocked page by page on a bounded worker pool. Pages are disjoint, so
// workers never contend on rows; each worker runs on its own session. A
// failed page is counted and logged, not propagated, so one bad batch
// cannot block the rest of the catalog.
func (r *Routine) RebalanceMarket() error {
	stockCfg, err := database.CurrentStockConfig(r.db)
	if err != nil {
		return err
	}

	var numItems int64
	if err := r.db.Model(&models.InventoryItem{}).Count(&numItems).Error; err != nil {
		return fmt.Errorf("unable to count inventory: %w", err)
	}

	pageSize := models.InventoryBatchSize()
	if stockCfg.Threading.BatchSize < pageSize {
		pageSize = stockCfg.Threading.BatchSize
	}
	workers := stockCfg.Threading.Parallelism
	if cpus := runtime.NumCPU(); cpus < workers {
		workers = cpus
	}
	if workers < 1 {
		workers = 1
	}
	log.Printf("Processing market data, up to %d workers in pages of %d", workers, pageSize)

	tasks := make(chan pageTask)
	var wg sync.WaitGroup
	var failed atomic.Int64
	var numBatches int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each worker builds statements on its own session so
			// they never share builder state.
			session := r.db.Session(&gorm.Session{NewDB: true})
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			for task := range tasks {
				if err := runMarketBatch(session, stockCfg, task, rng); err != nil {
					log.Printf("Market batch at offset %d failed: %v", task.offset, err)
					failed.Add(1)
				}
			}
		}()
	}

	for offset := 0; int64(offset) < numItems; offset += pageSize {
		tasks <- pageTask{offset: offset, pageSize: pageSize}
		numBatches++
	}
	close(tasks)
	wg.Wait()

	log.Printf("All workers exited, %d batches processed, %d items total", numBatches, numItems)
	if n := failed.Load(); n > 0 {
		log.Printf("%d of %d batches failed", n, numBatches)
	}
	return nil
}

// runMarketBatch turns a batch panic into an error, so a bad threshold
// configuration costs one page instead of the process.
func runMarketBatch(db *gorm.DB, cfg *config.StockConfig, task pageTask, rng *rand.Rand) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch panicked: %v", r)
		}
	}()
	return processMarketBatch(db, cfg, task, rng)
}

// processMarketBatch loads one page, drifts price and stock for every row
// with a matching threshold bucket, and writes the page back in a single
// upsert. Unmapped items pass through untouched rather than being guessed
// at.
func processMarketBatch(db *gorm.DB, cfg *config.StockConfig, task pageTask, rng *rand.Rand) error {
	var rows []models.InventoryItem
	err := db.Order("item_code").
		Offset(task.offset).Limit(task.pageSize).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load inventory page: %w", err)
	}
	if len(rows) == 0 {
		log.Printf("Nothing to process at offset %d", task.offset)
		return nil
	}

	// The system item never drifts.
	silver := models.SilverItem()
	filtered := rows[:0]
	for _, row := range rows {
		if row.ItemCode != silver.ItemCode {
			filtered = append(filtered, row)
		}
	}
	rows = filtered
	if len(rows) == 0 {
		return nil
	}
	count := len(rows)

	stats, err := loadTradePairs(db, rows)
	if err != nil {
		return err
	}

	processed := make([]models.InventoryItem, 0, count)
	for _, item := range rows {
		base := item.BaseValue.InexactFloat64()
		if priceCfg, ok := cfg.PriceThresholdFor(base); ok {
			item = UpdateItemPrice(priceCfg, item, stats[item.ItemCode])
		}
		if stockCfg, ok := cfg.StockThresholdFor(base); ok {
			item = UpdateItemStock(stockCfg, item, rng)
		}
		processed = append(processed, item)
	}
	if len(processed) != count {
		return fmt.Errorf("%w: had %d, processed %d", ErrIntegrity, count, len(processed))
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"buy_at", "sell_at", "quantity"}),
	}).Create(&processed).Error
	if err != nil {
		return fmt.Errorf("failed to write inventory page: %w", err)
	}
	return nil
}

// loadTradePairs fetches today's buy/sell volumes for the page. Items
// with no trades fall back to the zero pair.
func loadTradePairs(db *gorm.DB, items []models.InventoryItem) (map[string]TradePair, error) {
	codes := make([]string, len(items))
	for i, item := range items {
		codes[i] = item.ItemCode
	}
	var stats []models.TradeStatistic
	err := db.Where("item_code IN ? AND date = ?", codes, models.StatDate(time.Now())).
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("unable to load trade statistics: %w", err)
	}

	pairs := make(map[string]TradePair, len(stats))
	for _, stat := range stats {
		pair := pairs[stat.ItemCode]
		if stat.Buy {
			pair.Bought = stat.Quantity
		} else {
			pair.Sold = stat.Quantity
		}
		pairs[stat.ItemCode] = pair
	}
	return pairs, nil
}
