package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a proof-of-transfer image kept as evidence for a penerimaan.
// OCR output is advisory; it never changes the ledger row. FileName is the
// client's name for the image and StorePath is where the copy lives.
type Receipt struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PenerimaanID *uint       `gorm:"uniqueIndex:idx_receipts_owner_file,priority:1" json:"penerimaan_id"`
	Penerimaan   *Penerimaan `gorm:"foreignKey:PenerimaanID;constraint:OnDelete:SET NULL" json:"-"`
	UploadedBy   uint        `gorm:"index" json:"uploaded_by"`
	FileName     string      `gorm:"size:255;not null;uniqueIndex:idx_receipts_owner_file,priority:2" json:"file_name"`
	StorePath    string      `gorm:"column:store_path;size:512" json:"store_path"`
	ContentType  string      `gorm:"size:128" json:"content_type"`

	SuggestedAmount decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"suggested_amount"`
	OCRConfidence   float64             `gorm:"column:ocr_confidence" json:"ocr_confidence"`
	OCRRaw          string              `gorm:"column:ocr_raw;size:255" json:"ocr_raw"`
	// Failed marks an image OCR could not read; the row stays for manual review.
	Failed       bool   `gorm:"default:false;index" json:"failed"`
	FailedReason string `gorm:"size:255" json:"failed_reason"`
}
