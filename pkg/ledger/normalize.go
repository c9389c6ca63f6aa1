package ledger

import (
	"errors"
	"time"

	"bezis/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var bulan = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian month name used in the month bucket.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return bulan[m-1]
}

// SplitFee returns the amil share rounded to two decimals and the remainder.
func SplitFee(amount, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(rate).Round(2)
	return fee, amount.Sub(fee)
}

// dateOnly drops the clock so every stored date is UTC midnight.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bucket(date *time.Time) (string, *int) {
	if date == nil {
		return "", nil
	}
	y := date.Year()
	return MonthName(date.Month()), &y
}

// PenerimaanInput is the writable part of an inflow.
type PenerimaanInput struct {
	MuzakkiID       uint
	Amount          decimal.Decimal
	TransactionDate *time.Time
	AmilFeeRateID   uint
	Category        string
	PaymentMethod   string
	Note            string
}

// DistribusiInput is the writable part of an outflow. A zero Status is pending.
type DistribusiInput struct {
	MustahiqID      uint
	Amount          decimal.Decimal
	TransactionDate *time.Time
	Status          models.DistribusiStatus
	Program         string
	Note            string
}

// NormalizePenerimaan builds the row to persist from in and, on update, the
// stored row prev. The donor snapshot is refreshed only when the muzakki
// reference changes; the fee split only when amount or rate changes.
func NormalizePenerimaan(tx *gorm.DB, prev *models.Penerimaan, in PenerimaanInput, today time.Time) (*models.Penerimaan, error) {
	if !in.Amount.IsPositive() {
		return nil, Invalid("amount", "amount must be greater than zero")
	}
	if in.MuzakkiID == 0 {
		return nil, Invalid("muzakki_id", "muzakki_id is required")
	}
	row := &models.Penerimaan{}
	if prev != nil {
		*row = *prev
	}

	if prev == nil || prev.MuzakkiID != in.MuzakkiID {
		var m models.Muzakki
		if err := tx.First(&m, in.MuzakkiID).Error; err != nil {
			return nil, lookupErr("muzakki", in.MuzakkiID, err)
		}
		if m.Status != models.CounterpartyActive {
			return nil, InvalidState("muzakki", "muzakki "+m.Name+" is "+string(m.Status))
		}
		row.MuzakkiID = m.ID
		row.MuzakkiName = m.Name
		row.MuzakkiNIK = deref(m.NIK)
		row.MuzakkiNPWZ = deref(m.NPWZ)
		row.MuzakkiPhone = m.Phone
		row.MuzakkiAddress = m.Address
	}

	if prev == nil || !prev.Amount.Equal(in.Amount) || prev.AmilFeeRateID != in.AmilFeeRateID {
		var rate models.AmilFeeRate
		if err := tx.First(&rate, in.AmilFeeRateID).Error; err != nil {
			return nil, lookupErr("amil_fee_rate", in.AmilFeeRateID, err)
		}
		row.Amount = in.Amount
		row.AmilFeeRateID = rate.ID
		row.AmilFeeAmount, row.NetAmount = SplitFee(in.Amount, rate.Rate)
	}

	switch {
	case in.TransactionDate != nil:
		d := dateOnly(*in.TransactionDate)
		row.TransactionDate = &d
	case prev != nil && prev.TransactionDate != nil:
		// keep the stored date
	default:
		d := dateOnly(today)
		row.TransactionDate = &d
	}
	row.MonthName, row.Year = bucket(row.TransactionDate)

	row.Category = in.Category
	row.PaymentMethod = in.PaymentMethod
	row.Note = in.Note
	return row, nil
}

// NormalizeDistribusi builds the outflow row. The status transition decides
// whether the row carries a disbursement date at all.
func NormalizeDistribusi(tx *gorm.DB, prev *models.Distribusi, in DistribusiInput, today time.Time) (*models.Distribusi, error) {
	if !in.Amount.IsPositive() {
		return nil, Invalid("amount", "amount must be greater than zero")
	}
	if in.MustahiqID == 0 {
		return nil, Invalid("mustahiq_id", "mustahiq_id is required")
	}
	status, err := models.ParseDistribusiStatus(string(in.Status))
	if err != nil {
		return nil, Invalid("status", err.Error())
	}
	row := &models.Distribusi{}
	if prev != nil {
		*row = *prev
	}

	if prev == nil || prev.MustahiqID != in.MustahiqID {
		var m models.Mustahiq
		if err := tx.First(&m, in.MustahiqID).Error; err != nil {
			return nil, lookupErr("mustahiq", in.MustahiqID, err)
		}
		if m.Status != models.CounterpartyActive {
			return nil, InvalidState("mustahiq", "mustahiq "+m.Name+" is "+string(m.Status))
		}
		row.MustahiqID = m.ID
		row.MustahiqName = m.Name
		row.MustahiqNIK = deref(m.NIK)
		row.MustahiqCode = m.RegistrationCode
		row.MustahiqPhone = m.Phone
		row.MustahiqAddress = m.Address
	}

	row.Amount = in.Amount
	row.Status = status
	var requested *time.Time
	switch {
	case in.TransactionDate != nil:
		d := dateOnly(*in.TransactionDate)
		requested = &d
	case prev != nil && prev.Status == status:
		requested = prev.TransactionDate
	}
	row.TransactionDate = status.DisbursementDate(requested, dateOnly(today))
	row.MonthName, row.Year = bucket(row.TransactionDate)

	row.Program = in.Program
	row.Note = in.Note
	return row, nil
}

func lookupErr(entity string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	return classify(entity, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
