package database

import (
	"fmt"
	"time"

	"bezis/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizes the shared connection pool.
type Pool struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to postgres or the embedded sqlite database. Driver errors
// are translated so unique and foreign key violations surface as gorm errors.
func Open(driver, dsn string, pool Pool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s database: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Migrate creates or alters every table. Each model is migrated on its own so
// one failure (for example a missing privilege) does not block the others.
func Migrate(db *gorm.DB, log *zap.Logger) {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			log.Warn("migration warning", zap.String("model", fmt.Sprintf("%T", m)), zap.Error(err))
		}
	}
	// Receipt names used to be unique system-wide.
	if m := db.Migrator(); m.HasIndex(&models.Receipt{}, "idx_receipts_file_name") {
		if err := m.DropIndex(&models.Receipt{}, "idx_receipts_file_name"); err != nil {
			log.Warn("drop legacy receipt index", zap.Error(err))
		}
	}
}

// Seed inserts the master roles, the amil fee rates and the initial admin
// account when they are missing.
func Seed(db *gorm.DB, log *zap.Logger) error {
	for _, r := range models.DefaultRoles {
		role := r
		if err := db.Where(models.Role{Name: r.Name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	for _, fr := range models.DefaultAmilFeeRates {
		rate := fr
		if err := db.Where(models.AmilFeeRate{Name: fr.Name}).FirstOrCreate(&rate).Error; err != nil {
			return fmt.Errorf("seed amil fee rate %s: %w", fr.Name, err)
		}
	}

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		return fmt.Errorf("count admin user: %w", err)
	}
	if count > 0 {
		return nil
	}
	var role models.Role
	if err := db.Where("name = ?", models.RoleAdministrator).First(&role).Error; err != nil {
		return fmt.Errorf("find administrator role: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	rid := role.ID
	admin := models.User{Username: "admin", FullName: "Administrator", HashedPassword: hashed, RoleID: &rid}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("seeded admin user", zap.String("username", "admin"))
	return nil
}
