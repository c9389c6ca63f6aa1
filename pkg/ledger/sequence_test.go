package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"

	"bezis/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNextCodeStartsAtOne(t *testing.T) {
	db := newTestDB(t)
	var code string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = NextCode(tx, "MST", "202602")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "MST202602001", code)
}

func TestNextCodeHonoursImportedCodes(t *testing.T) {
	db := newTestDB(t)
	seedMustahiq(t, db, "Imported", "MST202602041")
	seedMustahiq(t, db, "Other period", "MST202601099")

	var code string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = NextCode(tx, "MST", "202602")
		return err
	}))
	require.Equal(t, "MST202602042", code)
}

func TestNextCodeIsMonotonicWithinPeriod(t *testing.T) {
	db := newTestDB(t)
	var codes []string
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			code, err := NextCode(tx, "MST", "202602")
			codes = append(codes, code)
			return err
		}))
	}
	require.Equal(t, []string{"MST202602001", "MST202602002", "MST202602003"}, codes)

	var seq models.CodeSequence
	require.NoError(t, db.First(&seq, "seq_key = ?", "MST202602").Error)
	require.EqualValues(t, 3, seq.LastValue)
}

func TestNextCodeRolledBackWithCaller(t *testing.T) {
	db := newTestDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := NextCode(tx, "MST", "202602"); err != nil {
			return err
		}
		return Invalid("name", "forced")
	})
	require.ErrorIs(t, err, ErrValidation)

	var code string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = NextCode(tx, "MST", "202602")
		return err
	}))
	require.Equal(t, "MST202602001", code)
}

func TestConcurrentRegistrationsGetDistinctCodes(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	const n = 2
	var wg sync.WaitGroup
	codes := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := svc.RegisterMustahiq(context.Background(), CounterpartyInput{Name: "penerima"}, 1)
			errs[i] = err
			if m != nil {
				codes[i] = m.RegistrationCode
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(codes)
	require.Equal(t, []string{"MST202602001", "MST202602002"}, codes)
}
