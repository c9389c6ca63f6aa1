package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bezis/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one mutation to append to the audit trail. Before is nil for an
// INSERT and After is nil for a DELETE.
type Entry struct {
	ActorID  uint
	Table    string
	RecordID uint
	Action   models.AuditAction
	Before   any
	After    any
}

// AuditRecorder appends entries to the audit trail within tx.
type AuditRecorder interface {
	Record(tx *gorm.DB, e Entry) error
}

// GormAuditRecorder writes audit_logs rows.
type GormAuditRecorder struct{}

func (GormAuditRecorder) Record(tx *gorm.DB, e Entry) error {
	before, err := image(e.Before)
	if err != nil {
		return fmt.Errorf("encode before image: %w", err)
	}
	after, err := image(e.After)
	if err != nil {
		return fmt.Errorf("encode after image: %w", err)
	}
	row := models.AuditLog{
		ActorID:     e.ActorID,
		TargetTable: e.Table,
		RecordID:    e.RecordID,
		Action:      e.Action,
		Before:      before,
		After:       after,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func image(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// AuditFilter selects audit rows. Zero fields do not filter. To is
// inclusive: a bound at midnight covers that whole day.
type AuditFilter struct {
	ActorID *uint
	Table   string
	Action  models.AuditAction
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 200
)

func auditUpperBound(to time.Time) time.Time {
	y, m, d := to.Date()
	if to.Equal(time.Date(y, m, d, 0, 0, 0, 0, to.Location())) {
		return to.AddDate(0, 0, 1)
	}
	return to.Add(time.Nanosecond)
}

// ListAudit returns one page of audit rows, newest first, and the total
// number of rows matching f.
func ListAudit(ctx context.Context, db *gorm.DB, f AuditFilter) ([]models.AuditLog, int64, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.Table != "" {
		q = q.Where("target_table = ?", f.Table)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", auditUpperBound(*f.To))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, classify("audit_log", err)
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	var rows []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, classify("audit_log", err)
	}
	return rows, total, nil
}
