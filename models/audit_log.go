package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditInsert AuditAction = "INSERT"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditLog is an append-only before/after record of one mutation.
type AuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	ActorID     uint           `gorm:"index" json:"actor_id"`
	TargetTable string         `gorm:"size:64;not null;index" json:"table"`
	RecordID    uint           `gorm:"index" json:"record_id"`
	Action      AuditAction    `gorm:"size:8;not null;index" json:"action"`
	Before      datatypes.JSON `json:"before"`
	After       datatypes.JSON `json:"after"`
}

// CodeSequence is the lock row behind registration code allocation.
type CodeSequence struct {
	SeqKey    string `gorm:"primaryKey;size:64"`
	LastValue int64  `gorm:"not null"`
	UpdatedAt time.Time
}
