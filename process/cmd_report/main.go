package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"bezis/pkg/config"
	"bezis/pkg/database"
	"bezis/pkg/logger"
	"bezis/process/report"

	"go.uber.org/zap"
)

func main() {
	now := time.Now()
	year := flag.Int("year", now.Year(), "report year")
	month := flag.Int("month", int(now.Month()), "report month (1-12)")
	list := flag.Bool("list", false, "list matching rows")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
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
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBStatementTimeout)
	defer cancel()

	m, err := report.MonthlySummary(ctx, db, *year, time.Month(*month))
	if err != nil {
		log.Fatal("monthly summary", zap.Error(err))
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			log.Fatal("encode summary", zap.Error(err))
		}
	} else if err := m.Write(os.Stdout); err != nil {
		log.Fatal("write summary", zap.Error(err))
	}
	if *list {
		if err := report.ListRows(ctx, db, *year, time.Month(*month), os.Stdout); err != nil {
			log.Fatal("list rows", zap.Error(err))
		}
	}
}
