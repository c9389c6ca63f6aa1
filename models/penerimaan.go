package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmilFeeRate is the reference row that decides the amil share of an inflow.
type AmilFeeRate struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Name      string          `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Rate      decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"rate"`
}

// DefaultAmilFeeRates is the seeded reference data.
var DefaultAmilFeeRates = []AmilFeeRate{
	{Name: "Zakat 12.5%", Rate: decimal.RequireFromString("0.125")},
	{Name: "Infaq 20%", Rate: decimal.RequireFromString("0.2")},
	{Name: "Tanpa amil", Rate: decimal.Zero},
}

// Penerimaan is an inflow from a muzakki. The Muzakki* columns are a
// snapshot of the donor at the time the row was written.
type Penerimaan struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	MuzakkiID       uint            `gorm:"index;not null" json:"muzakki_id"`
	Muzakki         *Muzakki        `gorm:"foreignKey:MuzakkiID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	TransactionDate *time.Time      `gorm:"type:date;index" json:"transaction_date"`
	MonthName       string          `gorm:"size:16;index:idx_penerimaan_bucket" json:"month_name"`
	Year            *int            `gorm:"index:idx_penerimaan_bucket" json:"year"`

	AmilFeeRateID uint            `gorm:"index;not null" json:"amil_fee_rate_id"`
	AmilFeeRate   *AmilFeeRate    `gorm:"foreignKey:AmilFeeRateID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	AmilFeeAmount decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"amil_fee_amount"`
	NetAmount     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"net_amount"`

	MuzakkiName    string `gorm:"size:255" json:"muzakki_name"`
	MuzakkiNIK     string `gorm:"column:muzakki_nik;size:32" json:"muzakki_nik"`
	MuzakkiNPWZ    string `gorm:"column:muzakki_npwz;size:32" json:"muzakki_npwz"`
	MuzakkiPhone   string `gorm:"size:64" json:"muzakki_phone"`
	MuzakkiAddress string `gorm:"size:512" json:"muzakki_address"`

	Category      string `gorm:"size:32;index" json:"category"`
	PaymentMethod string `gorm:"size:32" json:"payment_method"`
	Note          string `gorm:"size:512" json:"note"`
	CreatedBy     uint   `gorm:"index" json:"created_by"`
	UpdatedBy     uint   `json:"updated_by"`
}

func (Penerimaan) TableName() string { return "penerimaan" }
