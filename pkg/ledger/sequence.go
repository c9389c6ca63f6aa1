package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"bezis/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextCode allocates "{prefix}{period}{seq:03d}" for a new mustahiq. It must
// run inside the transaction that inserts the mustahiq: the sequence row stays
// locked until that transaction ends, so concurrent registrations in the same
// period are serialized. Codes already present in the table (manual imports)
// are honoured by taking the larger of the counter and the highest suffix.
func NextCode(tx *gorm.DB, prefix, period string) (string, error) {
	key := prefix + period
	seq := models.CodeSequence{SeqKey: key, LastValue: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", classify("code_sequence", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("seq_key = ?", key).Take(&seq).Error; err != nil {
		return "", classify("code_sequence", err)
	}

	var existing []string
	if err := tx.Model(&models.Mustahiq{}).Where("registration_code LIKE ?", key+"%").Pluck("registration_code", &existing).Error; err != nil {
		return "", classify("mustahiq", err)
	}
	next := seq.LastValue
	for _, code := range existing {
		n, err := strconv.ParseInt(strings.TrimPrefix(code, key), 10, 64)
		if err != nil {
			continue
		}
		if n > next {
			next = n
		}
	}
	next++

	if err := tx.Model(&models.CodeSequence{}).Where("seq_key = ?", key).Update("last_value", next).Error; err != nil {
		return "", classify("code_sequence", err)
	}
	return fmt.Sprintf("%s%03d", key, next), nil
}
