package ledger

import (
	"strings"
	"testing"
	"time"

	"bezis/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database per test. A single
// connection makes concurrent transactions queue up behind each other.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	rates := append([]models.AmilFeeRate(nil), models.DefaultAmilFeeRates...)
	require.NoError(t, db.Create(&rates).Error)
	return db
}

var fixedNow = time.Date(2026, time.February, 23, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, db *gorm.DB, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(db, zap.NewNop(), opts...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func feeRateID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var r models.AmilFeeRate
	require.NoError(t, db.Where("name = ?", name).First(&r).Error)
	return r.ID
}

func seedMuzakki(t *testing.T, db *gorm.DB, name string) *models.Muzakki {
	t.Helper()
	m := &models.Muzakki{Name: name, Status: models.CounterpartyActive}
	require.NoError(t, db.Create(m).Error)
	return m
}

func seedMustahiq(t *testing.T, db *gorm.DB, name, code string) *models.Mustahiq {
	t.Helper()
	m := &models.Mustahiq{Name: name, RegistrationCode: code, Status: models.CounterpartyActive}
	require.NoError(t, db.Create(m).Error)
	return m
}

func muzakkiAgg(t *testing.T, db *gorm.DB, id uint) models.Aggregate {
	t.Helper()
	var m models.Muzakki
	require.NoError(t, db.First(&m, id).Error)
	return m.Aggregate
}

func mustahiqAgg(t *testing.T, db *gorm.DB, id uint) models.Aggregate {
	t.Helper()
	var m models.Mustahiq
	require.NoError(t, db.First(&m, id).Error)
	return m.Aggregate
}

func requireDate(t *testing.T, want string, got *time.Time) {
	t.Helper()
	if want == "" {
		require.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	require.Equal(t, want, got.Format("2006-01-02"))
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
