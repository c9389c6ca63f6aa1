// Package receipt stores proof-of-transfer images and the amount OCR reads
// off them. A receipt is evidence only: nothing here writes to the ledger.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bezis/models"
	"bezis/pkg/ledger"
	"bezis/pkg/ocr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxStoredBytes is the size budget of a stored image.
const MaxStoredBytes = 1_000_000

var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Supported reports whether name looks like an image the store accepts.
// OCR scratch files are ignored.
func Supported(name string) bool {
	if strings.Contains(name, ".ocr.") {
		return false
	}
	_, ok := extMime[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extractor reads an amount off an image file.
type Extractor func(path string) (ocr.Result, error)

// Store writes receipt images under Dir and records them.
type Store struct {
	db            *gorm.DB
	log           *zap.Logger
	dir           string
	minConfidence float64
	extract       Extractor
}

func NewStore(db *gorm.DB, log *zap.Logger, dir string, minConfidence float64) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log, dir: dir, minConfidence: minConfidence, extract: ocr.ExtractAmount}
}

// WithExtractor replaces the OCR function, mostly for tests.
func (s *Store) WithExtractor(e Extractor) *Store {
	s.extract = e
	return s
}

// Attached is the stored receipt plus whether its OCR amount equals the
// recorded penerimaan amount. Matches is nil when either side is unknown.
type Attached struct {
	Receipt *models.Receipt `json:"receipt"`
	Matches *bool           `json:"matches"`
}

// Attach copies src into the store under a generated name, runs OCR on the stored copy and
// records the receipt. penerimaanID may be nil for an unlinked receipt.
func (s *Store) Attach(ctx context.Context, src, name string, penerimaanID *uint, actorID uint) (*Attached, error) {
	name = filepath.Base(name)
	if !Supported(name) {
		return nil, ledger.Invalid("file", fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
	}
	db := s.db.WithContext(ctx)

	var recorded *decimal.Decimal
	if penerimaanID != nil {
		var p models.Penerimaan
		if err := db.Select("id", "amount").First(&p, *penerimaanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ledger.NotFound("penerimaan", *penerimaanID)
			}
			return nil, fmt.Errorf("load penerimaan: %w", err)
		}
		recorded = &p.Amount
	}

	// The client name only has to be unique per penerimaan; the stored copy
	// always gets a fresh name.
	dupQ := db.Model(&models.Receipt{}).Where("file_name = ?", name)
	if penerimaanID != nil {
		dupQ = dupQ.Where("penerimaan_id = ?", *penerimaanID)
	} else {
		dupQ = dupQ.Where("penerimaan_id IS NULL")
	}
	var dup int64
	if err := dupQ.Count(&dup).Error; err != nil {
		return nil, fmt.Errorf("check receipt: %w", err)
	}
	if dup > 0 {
		return nil, ledger.Conflict("receipt", fmt.Sprintf("receipt %s already stored", name), nil)
	}

	dir := filepath.Join(s.dir, ownerDir(penerimaanID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	if err := ocr.Downscale(src, dst, MaxStoredBytes); err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	rec := &models.Receipt{
		PenerimaanID: penerimaanID,
		UploadedBy:   actorID,
		FileName:     name,
		StorePath:    filepath.ToSlash(dst),
		ContentType:  extMime[strings.ToLower(filepath.Ext(name))],
	}
	res, err := s.extract(dst)
	switch {
	case err != nil:
		rec.Failed, rec.FailedReason = true, truncate(err.Error(), 255)
		s.log.Debug("ocr failed", zap.String("file", name), zap.Error(err))
	case res.Confidence < s.minConfidence:
		rec.Failed, rec.FailedReason = true, fmt.Sprintf("low confidence %.2f", res.Confidence)
		rec.OCRConfidence, rec.OCRRaw = res.Confidence, truncate(res.Raw, 255)
	default:
		rec.SuggestedAmount = decimal.NewNullDecimal(res.Amount)
		rec.OCRConfidence, rec.OCRRaw = res.Confidence, truncate(res.Raw, 255)
	}

	if err := db.Create(rec).Error; err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ledger.Conflict("receipt", fmt.Sprintf("receipt %s already stored", name), err)
		}
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	out := &Attached{Receipt: rec}
	if recorded != nil && rec.SuggestedAmount.Valid {
		m := rec.SuggestedAmount.Decimal.Equal(*recorded)
		out.Matches = &m
	}
	s.log.Info("receipt stored",
		zap.Uint("receipt_id", rec.ID),
		zap.String("file", name),
		zap.Bool("ocr_failed", rec.Failed),
		zap.Uint("actor_id", actorID),
	)
	return out, nil
}

// Filter narrows List.
type Filter struct {
	PenerimaanID *uint
	Failed       *bool
	Limit        int
	Offset       int
}

// List returns receipts newest first with the unpaged total.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Receipt, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Receipt{})
	if f.PenerimaanID != nil {
		q = q.Where("penerimaan_id = ?", *f.PenerimaanID)
	}
	if f.Failed != nil {
		q = q.Where("failed = ?", *f.Failed)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	var out []models.Receipt
	if err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	return out, total, nil
}

func ownerDir(penerimaanID *uint) string {
	if penerimaanID == nil {
		return "unlinked"
	}
	return strconv.FormatUint(uint64(*penerimaanID), 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
