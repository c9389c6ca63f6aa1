package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CounterpartyStatus is the lifecycle state of a muzakki or mustahiq.
type CounterpartyStatus string

const (
	CounterpartyActive      CounterpartyStatus = "active"
	CounterpartyInactive    CounterpartyStatus = "inactive"
	CounterpartyBlacklisted CounterpartyStatus = "blacklisted"
)

// Valid reports whether s is one of the known statuses.
func (s CounterpartyStatus) Valid() bool {
	switch s {
	case CounterpartyActive, CounterpartyInactive, CounterpartyBlacklisted:
		return true
	}
	return false
}

// Aggregate holds the running totals of a counterparty. The columns are
// written only by the ledger reconciler.
type Aggregate struct {
	TransactionCount    int64           `gorm:"not null;default:0" json:"transaction_count"`
	CumulativeAmount    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"cumulative_amount"`
	LastTransactionDate *time.Time      `gorm:"type:date" json:"last_transaction_date"`
}

// Muzakki is a donor.
type Muzakki struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	// NIK and NPWZ are optional but unique when present, hence pointers.
	NIK     *string            `gorm:"column:nik;size:32;uniqueIndex" json:"nik"`
	NPWZ    *string            `gorm:"column:npwz;size:32;uniqueIndex" json:"npwz"`
	Phone   string             `gorm:"size:64" json:"phone"`
	Address string             `gorm:"size:512" json:"address"`
	Region  string             `gorm:"size:128;index" json:"region"`
	Status  CounterpartyStatus `gorm:"size:16;not null;default:'active';index" json:"status"`
	Aggregate
}

func (Muzakki) TableName() string { return "muzakki" }

// Mustahiq is a beneficiary. RegistrationCode is allocated by the
// sequence generator at registration time.
type Mustahiq struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	RegistrationCode string             `gorm:"size:32;not null;uniqueIndex" json:"registration_code"`
	Name             string             `gorm:"size:255;not null;index" json:"name"`
	NIK              *string            `gorm:"column:nik;size:32;uniqueIndex" json:"nik"`
	Asnaf            string             `gorm:"size:32" json:"asnaf"`
	Phone            string             `gorm:"size:64" json:"phone"`
	Address          string             `gorm:"size:512" json:"address"`
	Region           string             `gorm:"size:128;index" json:"region"`
	Status           CounterpartyStatus `gorm:"size:16;not null;default:'active';index" json:"status"`
	Aggregate
}

func (Mustahiq) TableName() string { return "mustahiq" }
