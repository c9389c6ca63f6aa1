package ledger

import (
	"time"

	"bezis/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reconciler keeps counterparty aggregates in step with one ledger write.
// prev is the stored image before the write (nil on insert) and next the
// image after it (nil on delete). The ledger row must already be persisted
// so that rescans observe the post-write state.
type Reconciler interface {
	Reconcile(tx *gorm.DB, kind EntryKind, prev, next *Image) ([]AggregateChange, error)
}

// AggregateChange is one counterparty row touched by the reconciler.
type AggregateChange struct {
	Table          string
	CounterpartyID uint
	Before         models.Aggregate
	After          models.Aggregate
}

// AggregateReconciler applies incremental deltas to the aggregate columns.
type AggregateReconciler struct{}

var _ Reconciler = AggregateReconciler{}

func (AggregateReconciler) Reconcile(tx *gorm.DB, kind EntryKind, prev, next *Image) ([]AggregateChange, error) {
	b, err := bookFor(kind)
	if err != nil {
		return nil, err
	}
	was := prev != nil && prev.Settled
	is := next != nil && next.Settled

	var changes []AggregateChange
	if was && is && prev.CounterpartyID == next.CounterpartyID {
		c, err := b.adjust(tx, prev, next)
		if err != nil || c == nil {
			return nil, err
		}
		return append(changes, *c), nil
	}
	if was {
		c, err := b.remove(tx, prev)
		if err != nil {
			return nil, err
		}
		changes = append(changes, *c)
	}
	if is {
		c, err := b.add(tx, next)
		if err != nil {
			return nil, err
		}
		changes = append(changes, *c)
	}
	return changes, nil
}

type aggregateRow struct {
	ID uint
	models.Aggregate
}

// lock reads the counterparty aggregates with a row lock held until commit.
func (b book) lock(tx *gorm.DB, id uint) (models.Aggregate, error) {
	var row aggregateRow
	err := tx.Table(b.counterpartyTable).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "transaction_count", "cumulative_amount", "last_transaction_date").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return models.Aggregate{}, lookupErr(b.counterpartyTable, id, err)
	}
	return row.Aggregate, nil
}

func (b book) write(tx *gorm.DB, id uint, before, after models.Aggregate) (*AggregateChange, error) {
	res := tx.Table(b.counterpartyTable).Where("id = ?", id).Updates(map[string]any{
		"transaction_count":     after.TransactionCount,
		"cumulative_amount":     after.CumulativeAmount,
		"last_transaction_date": after.LastTransactionDate,
		"updated_at":            tx.NowFunc(),
	})
	if res.Error != nil {
		return nil, classify(b.counterpartyTable, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, NotFound(b.counterpartyTable, id)
	}
	return &AggregateChange{Table: b.counterpartyTable, CounterpartyID: id, Before: before, After: after}, nil
}

// latestDate scans the remaining settled rows of a counterparty.
func (b book) latestDate(tx *gorm.DB, id uint) (*time.Time, error) {
	var rows []struct{ TransactionDate *time.Time }
	err := b.settled(tx.Table(b.entryTable)).
		Select("transaction_date").
		Where(b.foreignKey+" = ? AND transaction_date IS NOT NULL", id).
		Order("transaction_date DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, classify(b.entryTable, err)
	}
	if len(rows) == 0 || rows[0].TransactionDate == nil {
		return nil, nil
	}
	d := dateOnly(*rows[0].TransactionDate)
	return &d, nil
}

func (b book) add(tx *gorm.DB, img *Image) (*AggregateChange, error) {
	before, err := b.lock(tx, img.CounterpartyID)
	if err != nil {
		return nil, err
	}
	after := before
	after.TransactionCount++
	after.CumulativeAmount = before.CumulativeAmount.Add(img.Amount)
	after.LastTransactionDate = later(before.LastTransactionDate, img.Date)
	return b.write(tx, img.CounterpartyID, before, after)
}

func (b book) remove(tx *gorm.DB, img *Image) (*AggregateChange, error) {
	before, err := b.lock(tx, img.CounterpartyID)
	if err != nil {
		return nil, err
	}
	after := before
	if after.TransactionCount > 0 {
		after.TransactionCount--
	}
	after.CumulativeAmount = floor(before.CumulativeAmount.Sub(img.Amount))
	if after.LastTransactionDate, err = b.latestDate(tx, img.CounterpartyID); err != nil {
		return nil, err
	}
	return b.write(tx, img.CounterpartyID, before, after)
}

// adjust handles a settled row that stays settled on the same counterparty.
// A moved date can lower the maximum, so it is rescanned rather than maxed.
func (b book) adjust(tx *gorm.DB, prev, next *Image) (*AggregateChange, error) {
	amountChanged := !prev.Amount.Equal(next.Amount)
	dateChanged := !sameDate(prev.Date, next.Date)
	if !amountChanged && !dateChanged {
		return nil, nil
	}
	before, err := b.lock(tx, next.CounterpartyID)
	if err != nil {
		return nil, err
	}
	after := before
	after.CumulativeAmount = floor(before.CumulativeAmount.Add(next.Amount.Sub(prev.Amount)))
	if dateChanged {
		if after.LastTransactionDate, err = b.latestDate(tx, next.CounterpartyID); err != nil {
			return nil, err
		}
	}
	return b.write(tx, next.CounterpartyID, before, after)
}

// RecomputeAggregate rebuilds the aggregates of one counterparty from its
// full settled transaction set.
func RecomputeAggregate(tx *gorm.DB, kind EntryKind, id uint) (*AggregateChange, error) {
	b, err := bookFor(kind)
	if err != nil {
		return nil, err
	}
	before, err := b.lock(tx, id)
	if err != nil {
		return nil, err
	}
	var rows []struct{ Amount decimal.Decimal }
	if err := b.settled(tx.Table(b.entryTable)).Select("amount").Where(b.foreignKey+" = ?", id).Scan(&rows).Error; err != nil {
		return nil, classify(b.entryTable, err)
	}
	after := models.Aggregate{TransactionCount: int64(len(rows)), CumulativeAmount: decimal.Zero}
	for _, r := range rows {
		after.CumulativeAmount = after.CumulativeAmount.Add(r.Amount)
	}
	if after.LastTransactionDate, err = b.latestDate(tx, id); err != nil {
		return nil, err
	}
	return b.write(tx, id, before, after)
}

func floor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func later(a, b *time.Time) *time.Time {
	switch {
	case b == nil:
		return a
	case a == nil || b.After(*a):
		d := dateOnly(*b)
		return &d
	}
	return a
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
