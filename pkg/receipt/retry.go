package receipt

import (
	"context"
	"fmt"

	"bezis/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RetryStats counts the outcome of one Retry pass.
type RetryStats struct {
	Scanned int
	Read    int
	Failed  int
}

// Retry runs OCR again over up to limit receipts marked failed, oldest
// first. Receipts that now yield a confident amount get the suggestion and
// lose the failed flag. With dry set nothing is written.
func (s *Store) Retry(ctx context.Context, limit int, dry bool) (RetryStats, error) {
	var stats RetryStats
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Receipt
	if err := s.db.WithContext(ctx).Where("failed = ?", true).Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return stats, fmt.Errorf("load failed receipts: %w", err)
	}
	for i := range rows {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		r := &rows[i]
		stats.Scanned++
		res, err := s.extract(r.StorePath)
		if err != nil || res.Confidence < s.minConfidence {
			stats.Failed++
			s.log.Debug("ocr retry unreadable", zap.Uint("receipt_id", r.ID), zap.Float64("confidence", res.Confidence), zap.Error(err))
			continue
		}
		stats.Read++
		if dry {
			s.log.Info("ocr retry would update", zap.Uint("receipt_id", r.ID), zap.Stringer("amount", res.Amount))
			continue
		}
		err = s.db.WithContext(ctx).Model(r).Updates(map[string]any{
			"suggested_amount": decimal.NewNullDecimal(res.Amount),
			"ocr_confidence":   res.Confidence,
			"ocr_raw":          truncate(res.Raw, 255),
			"failed":           false,
			"failed_reason":    "",
		}).Error
		if err != nil {
			return stats, fmt.Errorf("update receipt %d: %w", r.ID, err)
		}
		s.log.Info("ocr retry updated", zap.Uint("receipt_id", r.ID), zap.Stringer("amount", res.Amount))
	}
	return stats, nil
}
