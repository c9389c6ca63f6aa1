package main

import (
	"fmt"
	"os"
	"time"

	"bezis/pkg/config"
	"bezis/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	jwtSecret      []byte
	zlog           = zap.NewNop()
	requestTimeout = 15 * time.Second
)

func main() {
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
	zlog = log
	jwtSecret = []byte(cfg.JWTSecret)
	requestTimeout = cfg.DBStatementTimeout
	if cfg.UsingDevSecret() {
		log.Warn("JWT_SECRET not set, using the development secret")
	}

	// `bezis migrate` runs migrations and seeding, then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cfg.DBAutoMigrate = true
		if err := initDB(cfg, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		fmt.Println("migration and seeding completed")
		return
	}

	if err := initDB(cfg, log); err != nil {
		log.Fatal("init database", zap.Error(err))
	}
	if cfg.LogFormat != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter()
	log.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery(), withTimeout())
	setupRoutes(r)
	return r
}
