package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bezis/pkg/config"
	"bezis/pkg/database"
	"bezis/pkg/ledger"
	"bezis/pkg/receipt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	db        *gorm.DB
	ledgerSvc *ledger.Service
	receipts  *receipt.Store
)

// initDB connects, migrates when DB_AUTO_MIGRATE is set, seeds the
// reference rows and wires the services the handlers use.
func initDB(cfg *config.Config, log *zap.Logger) error {
	var err error
	db, err = database.Open(cfg.DBDriver, cfg.DBDSN, database.Pool{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		database.Migrate(db, log)
	}
	if err := database.Seed(db, log); err != nil {
		return err
	}
	return wireServices(cfg, log)
}

func wireServices(cfg *config.Config, log *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	opts := []ledger.Option{
		ledger.WithCodePrefix(cfg.MustahiqCodePrefix),
		ledger.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	if cfg.DBDriver == "postgres" {
		opts = append(opts, ledger.WithIsolation(sql.LevelReadCommitted))
	}
	ledgerSvc = ledger.NewService(db, log, opts...)

	if err := os.MkdirAll(cfg.UploadBase, 0o755); err != nil {
		return fmt.Errorf("create upload base dir %s: %w", cfg.UploadBase, err)
	}
	receipts = receipt.NewStore(db, log, filepath.Join(cfg.UploadBase, "receipts"), cfg.OCRMinConfidence)
	return nil
}
