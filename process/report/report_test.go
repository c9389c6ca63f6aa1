package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"bezis/models"
	"bezis/pkg/database"
	"bezis/pkg/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *ledger.Service) {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared", database.Pool{MaxOpenConns: 1})
	require.NoError(t, err)
	database.Migrate(db, zap.NewNop())
	require.NoError(t, database.Seed(db, zap.NewNop()))
	now := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	return db, ledger.NewService(db, zap.NewNop(), ledger.WithClock(func() time.Time { return now }))
}

func d(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestMonthlySummary(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	muz, err := svc.RegisterMuzakki(ctx, ledger.CounterpartyInput{Name: "Ahmad"}, 1)
	require.NoError(t, err)
	mus, err := svc.RegisterMustahiq(ctx, ledger.CounterpartyInput{Name: "Siti"}, 1)
	require.NoError(t, err)
	var zakat models.AmilFeeRate
	require.NoError(t, db.Where("name = ?", "Zakat 12.5%").First(&zakat).Error)

	for _, p := range []struct {
		amount, date, category string
	}{
		{"1000000", "2026-03-01", "zakat"},
		{"200000", "2026-03-15", "infaq"},
		{"999", "2026-02-28", "zakat"},
	} {
		_, err := svc.CreatePenerimaan(ctx, ledger.PenerimaanInput{
			MuzakkiID: muz.ID, Amount: decimal.RequireFromString(p.amount), TransactionDate: d(p.date),
			AmilFeeRateID: zakat.ID, Category: p.category,
		}, 1)
		require.NoError(t, err)
	}
	_, err = svc.CreateDistribusi(ctx, ledger.DistribusiInput{MustahiqID: mus.ID, Amount: decimal.NewFromInt(300000), Status: models.DistribusiAccepted, TransactionDate: d("2026-03-20")}, 1)
	require.NoError(t, err)
	_, err = svc.CreateDistribusi(ctx, ledger.DistribusiInput{MustahiqID: mus.ID, Amount: decimal.NewFromInt(50000)}, 1)
	require.NoError(t, err)

	m, err := MonthlySummary(ctx, db, 2026, time.March)
	require.NoError(t, err)
	require.Equal(t, "Maret", m.MonthName)
	require.EqualValues(t, 2, m.PenerimaanCount)
	require.Equal(t, "1200000.00", m.Gross.StringFixed(2))
	require.Equal(t, "150000.00", m.AmilFee.StringFixed(2))
	require.Equal(t, "1050000.00", m.Net.StringFixed(2))
	require.Len(t, m.Categories, 2)
	require.Equal(t, "infaq", m.Categories[0].Category)
	require.EqualValues(t, 1, m.DistribusiCount)
	require.Equal(t, "300000.00", m.DistribusiAmount.StringFixed(2))
	require.Equal(t, "750000.00", m.Balance.StringFixed(2))

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	require.Contains(t, buf.String(), "Laporan Maret 2026")

	buf.Reset()
	require.NoError(t, ListRows(ctx, db, 2026, time.March, &buf))
	require.Contains(t, buf.String(), "OUT|")
	require.Contains(t, buf.String(), mus.RegistrationCode)

	_, err = MonthlySummary(ctx, db, 2026, 13)
	require.Error(t, err)
}
