package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"bezis/pkg/config"
	"bezis/pkg/database"
	"bezis/pkg/logger"
	"bezis/pkg/receipt"

	"go.uber.org/zap"
)

// Re-runs OCR over receipts that could not be read the first time.
func main() {
	limit := flag.Int("limit", 100, "maximum receipts to retry")
	dry := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, database.Pool{MaxOpenConns: 2})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	store := receipt.NewStore(db, log, filepath.Join(cfg.UploadBase, "receipts"), cfg.OCRMinConfidence)
	stats, err := store.Retry(context.Background(), *limit, *dry)
	if err != nil {
		log.Fatal("retry receipts", zap.Error(err))
	}
	fmt.Printf("scanned=%d read=%d still_failed=%d\n", stats.Scanned, stats.Read, stats.Failed)
}
