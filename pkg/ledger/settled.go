package ledger

import (
	"fmt"
	"time"

	"bezis/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryKind names the ledger table a command targets.
type EntryKind string

const (
	KindPenerimaan EntryKind = "penerimaan"
	KindDistribusi EntryKind = "distribusi"
)

// SettledPenerimaan reports whether an inflow counts toward aggregates.
// Inflows have no approval gate.
func SettledPenerimaan(*models.Penerimaan) bool { return true }

// SettledDistribusi reports whether an outflow counts toward aggregates.
func SettledDistribusi(d *models.Distribusi) bool { return d.Status.Settled() }

// SettledDistribusiScope is the SQL form of SettledDistribusi. Reports and
// the reconciler's rescans both filter through it.
func SettledDistribusiScope(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", models.DistribusiAccepted)
}

// Image is the part of a ledger row the reconciler needs.
type Image struct {
	CounterpartyID uint
	Amount         decimal.Decimal
	Date           *time.Time
	Settled        bool
}

func penerimaanImage(p *models.Penerimaan) *Image {
	if p == nil {
		return nil
	}
	return &Image{CounterpartyID: p.MuzakkiID, Amount: p.Amount, Date: p.TransactionDate, Settled: SettledPenerimaan(p)}
}

func distribusiImage(d *models.Distribusi) *Image {
	if d == nil {
		return nil
	}
	return &Image{CounterpartyID: d.MustahiqID, Amount: d.Amount, Date: d.TransactionDate, Settled: SettledDistribusi(d)}
}

// book ties a ledger table to the counterparty table it aggregates into.
type book struct {
	kind              EntryKind
	entryTable        string
	counterpartyTable string
	foreignKey        string
	settled           func(*gorm.DB) *gorm.DB
}

var books = map[EntryKind]book{
	KindPenerimaan: {
		kind:              KindPenerimaan,
		entryTable:        models.Penerimaan{}.TableName(),
		counterpartyTable: models.Muzakki{}.TableName(),
		foreignKey:        "muzakki_id",
		settled:           func(db *gorm.DB) *gorm.DB { return db },
	},
	KindDistribusi: {
		kind:              KindDistribusi,
		entryTable:        models.Distribusi{}.TableName(),
		counterpartyTable: models.Mustahiq{}.TableName(),
		foreignKey:        "mustahiq_id",
		settled:           SettledDistribusiScope,
	},
}

func bookFor(kind EntryKind) (book, error) {
	b, ok := books[kind]
	if !ok {
		return book{}, Invalid("kind", fmt.Sprintf("unknown ledger kind %q", kind))
	}
	return b, nil
}
