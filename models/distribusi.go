package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DistribusiStatus is the approval state of a distribution request.
// Pending is persisted as NULL.
type DistribusiStatus string

const (
	DistribusiPending  DistribusiStatus = "pending"
	DistribusiAccepted DistribusiStatus = "accepted"
	DistribusiRejected DistribusiStatus = "rejected"
)

// ParseDistribusiStatus maps the wire value to a status. Empty means pending.
func ParseDistribusiStatus(s string) (DistribusiStatus, error) {
	switch DistribusiStatus(s) {
	case "", DistribusiPending:
		return DistribusiPending, nil
	case DistribusiAccepted, DistribusiRejected:
		return DistribusiStatus(s), nil
	}
	return "", fmt.Errorf("unknown distribusi status %q", s)
}

// Settled reports whether a distribution in this state counts toward the
// mustahiq aggregates.
func (s DistribusiStatus) Settled() bool {
	return s == DistribusiAccepted
}

// DisbursementDate is the transition side effect on the row's date: only an
// accepted distribution carries one, and an acceptance without an explicit
// date is stamped with today.
func (s DistribusiStatus) DisbursementDate(requested *time.Time, today time.Time) *time.Time {
	if s != DistribusiAccepted {
		return nil
	}
	if requested != nil {
		d := *requested
		return &d
	}
	return &today
}

// Value stores pending as NULL.
func (s DistribusiStatus) Value() (driver.Value, error) {
	if s == "" || s == DistribusiPending {
		return nil, nil
	}
	return string(s), nil
}

// Scan reads NULL back as pending.
func (s *DistribusiStatus) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = DistribusiPending
	case string:
		st, err := ParseDistribusiStatus(v)
		if err != nil {
			return err
		}
		*s = st
	case []byte:
		st, err := ParseDistribusiStatus(string(v))
		if err != nil {
			return err
		}
		*s = st
	default:
		return fmt.Errorf("cannot scan %T into DistribusiStatus", src)
	}
	return nil
}

// Distribusi is an outflow to a mustahiq.
type Distribusi struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	MustahiqID      uint             `gorm:"index;not null" json:"mustahiq_id"`
	Mustahiq        *Mustahiq        `gorm:"foreignKey:MustahiqID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Amount          decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status          DistribusiStatus `gorm:"type:varchar(16);index" json:"status"`
	TransactionDate *time.Time       `gorm:"type:date;index" json:"transaction_date"`
	MonthName       string           `gorm:"size:16;index:idx_distribusi_bucket" json:"month_name"`
	Year            *int             `gorm:"index:idx_distribusi_bucket" json:"year"`

	MustahiqName    string `gorm:"size:255" json:"mustahiq_name"`
	MustahiqNIK     string `gorm:"column:mustahiq_nik;size:32" json:"mustahiq_nik"`
	MustahiqCode    string `gorm:"size:32" json:"mustahiq_code"`
	MustahiqPhone   string `gorm:"size:64" json:"mustahiq_phone"`
	MustahiqAddress string `gorm:"size:512" json:"mustahiq_address"`

	Program   string `gorm:"size:128;index" json:"program"`
	Note      string `gorm:"size:512" json:"note"`
	CreatedBy uint   `gorm:"index" json:"created_by"`
	UpdatedBy uint   `json:"updated_by"`
}

func (Distribusi) TableName() string { return "distribusi" }

// AfterFind maps a NULL status back to pending; gorm leaves NULL columns at
// the zero value without calling Scan.
func (d *Distribusi) AfterFind(*gorm.DB) error {
	if d.Status == "" {
		d.Status = DistribusiPending
	}
	return nil
}
