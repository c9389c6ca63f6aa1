package main

import (
	"flag"
	"fmt"
	"os"

	"bezis/models"
	"bezis/pkg/config"
	"bezis/pkg/database"
	"bezis/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	username := flag.String("username", "", "username to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	revoke := flag.Bool("revoke-sessions", true, "revoke the user's refresh tokens")
	flag.Parse()
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--username and --password are required")
		os.Exit(2)
	}
	if len(*password) < 6 {
		fmt.Fprintln(os.Stderr, "password too short (min 6)")
		os.Exit(2)
	}

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

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, database.Pool{MaxOpenConns: 1})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	var user models.User
	if err := db.Where("username = ?", *username).First(&user).Error; err != nil {
		log.Fatal("user not found", zap.String("username", *username), zap.Error(err))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("bcrypt", zap.Error(err))
	}
	if err := db.Model(&user).Update("hashed_password", hash).Error; err != nil {
		log.Fatal("update password", zap.Error(err))
	}
	if *revoke {
		if err := db.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", user.ID, false).Update("revoked", true).Error; err != nil {
			log.Warn("revoke refresh tokens", zap.Error(err))
		}
	}
	fmt.Printf("Password reset for user %s\n", user.Username)
}
