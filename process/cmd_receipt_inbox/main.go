package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bezis/pkg/config"
	"bezis/pkg/database"
	"bezis/pkg/logger"
	"bezis/pkg/receipt"
	"bezis/process/inbox"

	"go.uber.org/zap"
)

// Scans a directory of receipt images, attaches them (linking
// "<penerimaanID>_*.jpg" names) and optionally keeps watching it.
func main() {
	dir := flag.String("dir", "inbox", "directory to scan for receipt images")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	uploadedBy := flag.Uint("user-id", 0, "operator id recorded as uploader")
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

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, database.Pool{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := receipt.NewStore(db, log, filepath.Join(cfg.UploadBase, "receipts"), cfg.OCRMinConfidence)
	in := inbox.New(store, log, inbox.Options{Dir: *dir, Workers: *workers, UploadedBy: uint(*uploadedBy)})
	if err := in.Preload(ctx, db); err != nil {
		log.Fatal("preload receipts", zap.Error(err))
	}
	if err := in.Scan(ctx); err != nil {
		log.Fatal("scan inbox", zap.Error(err))
	}
	if *watch {
		if err := in.Watch(ctx); err != nil {
			log.Fatal("watch inbox", zap.Error(err))
		}
	}
}
