package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"bezis/models"
	"bezis/pkg/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryTotal is one penerimaan category within a month.
type CategoryTotal struct {
	Category string          `json:"category"`
	Count    int64           `json:"count"`
	Gross    decimal.Decimal `json:"gross"`
}

// Monthly is the read-only summary of one month bucket. Distribusi figures
// only include settled (accepted) rows.
type Monthly struct {
	Year      int    `json:"year"`
	MonthName string `json:"month_name"`

	PenerimaanCount int64           `json:"penerimaan_count"`
	Gross           decimal.Decimal `json:"gross"`
	AmilFee         decimal.Decimal `json:"amil_fee"`
	Net             decimal.Decimal `json:"net"`
	Categories      []CategoryTotal `json:"categories"`

	DistribusiCount  int64           `json:"distribusi_count"`
	DistribusiAmount decimal.Decimal `json:"distribusi_amount"`
	Balance          decimal.Decimal `json:"balance"`
}

// MonthlySummary totals the month bucket (year, month) as written by the
// normalizer.
func MonthlySummary(ctx context.Context, db *gorm.DB, year int, month time.Month) (*Monthly, error) {
	name := ledger.MonthName(month)
	if name == "" {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	db = db.WithContext(ctx)
	out := &Monthly{Year: year, MonthName: name}

	var in struct {
		Count   int64
		Gross   decimal.Decimal
		AmilFee decimal.Decimal
		Net     decimal.Decimal
	}
	err := db.Model(&models.Penerimaan{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount),0) AS gross, COALESCE(SUM(amil_fee_amount),0) AS amil_fee, COALESCE(SUM(net_amount),0) AS net").
		Where("year = ? AND month_name = ?", year, name).
		Scan(&in).Error
	if err != nil {
		return nil, fmt.Errorf("sum penerimaan: %w", err)
	}
	out.PenerimaanCount, out.Gross, out.AmilFee, out.Net = in.Count, in.Gross, in.AmilFee, in.Net

	err = db.Model(&models.Penerimaan{}).
		Select("category, COUNT(*) AS count, COALESCE(SUM(amount),0) AS gross").
		Where("year = ? AND month_name = ?", year, name).
		Group("category").
		Order("category").
		Scan(&out.Categories).Error
	if err != nil {
		return nil, fmt.Errorf("penerimaan by category: %w", err)
	}

	var outflow struct {
		Count  int64
		Amount decimal.Decimal
	}
	err = ledger.SettledDistribusiScope(db.Model(&models.Distribusi{})).
		Select("COUNT(*) AS count, COALESCE(SUM(amount),0) AS amount").
		Where("year = ? AND month_name = ?", year, name).
		Scan(&outflow).Error
	if err != nil {
		return nil, fmt.Errorf("sum distribusi: %w", err)
	}
	out.DistribusiCount, out.DistribusiAmount = outflow.Count, outflow.Amount
	out.Balance = out.Net.Sub(out.DistribusiAmount)
	return out, nil
}

// Write prints m as an aligned text table.
func (m *Monthly) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Laporan %s %d\n", m.MonthName, m.Year)
	fmt.Fprintf(tw, "penerimaan\t%d\tgross %s\tamil %s\tnet %s\n", m.PenerimaanCount, m.Gross.StringFixed(2), m.AmilFee.StringFixed(2), m.Net.StringFixed(2))
	for _, c := range m.Categories {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", orDash(c.Category), c.Count, c.Gross.StringFixed(2))
	}
	fmt.Fprintf(tw, "distribusi\t%d\t%s\n", m.DistribusiCount, m.DistribusiAmount.StringFixed(2))
	fmt.Fprintf(tw, "saldo\t\t%s\n", m.Balance.StringFixed(2))
	return tw.Flush()
}

// ListRows prints the penerimaan and settled distribusi rows of the bucket.
func ListRows(ctx context.Context, db *gorm.DB, year int, month time.Month, w io.Writer) error {
	name := ledger.MonthName(month)
	db = db.WithContext(ctx)
	var in []models.Penerimaan
	if err := db.Where("year = ? AND month_name = ?", year, name).Order("transaction_date, id").Find(&in).Error; err != nil {
		return fmt.Errorf("fetch penerimaan: %w", err)
	}
	var outRows []models.Distribusi
	if err := ledger.SettledDistribusiScope(db.Where("year = ? AND month_name = ?", year, name)).Order("transaction_date, id").Find(&outRows).Error; err != nil {
		return fmt.Errorf("fetch distribusi: %w", err)
	}
	for _, r := range in {
		fmt.Fprintf(w, "IN|%d|%s|%s|%s|%s\n", r.ID, date(r.TransactionDate), r.MuzakkiName, r.Amount.StringFixed(2), r.NetAmount.StringFixed(2))
	}
	for _, r := range outRows {
		fmt.Fprintf(w, "OUT|%d|%s|%s|%s|%s\n", r.ID, date(r.TransactionDate), r.MustahiqCode, r.MustahiqName, r.Amount.StringFixed(2))
	}
	return nil
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
