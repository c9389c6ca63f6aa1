package main

import (
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
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_user <username> <password> [amil|administrator]")
		os.Exit(2)
	}
	username, password := os.Args[1], os.Args[2]
	roleName := models.RoleAmil
	if len(os.Args) > 3 {
		roleName = os.Args[3]
	}
	if roleName != models.RoleAmil && roleName != models.RoleAdministrator {
		fmt.Printf("unknown role %q (want amil or administrator)\n", roleName)
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
	if err := database.Seed(db, log); err != nil {
		log.Fatal("seed reference data", zap.Error(err))
	}

	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		log.Fatal("role not found", zap.String("role", roleName), zap.Error(err))
	}

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		return
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("bcrypt failed", zap.Error(err))
	}
	user := models.User{Username: username, FullName: username, HashedPassword: hpw, RoleID: &role.ID}
	if err := db.Create(&user).Error; err != nil {
		log.Fatal("create user", zap.Error(err))
	}
	fmt.Printf("created %s %s id=%d\n", roleName, username, user.ID)
}
