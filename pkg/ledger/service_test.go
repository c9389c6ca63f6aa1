package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"bezis/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const actor uint = 7

func TestScenarioInflowWithFee(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{
		MuzakkiID:       m.ID,
		Amount:          dec("1000000"),
		TransactionDate: day("2026-01-10"),
		AmilFeeRateID:   feeRateID(t, db, "Zakat 12.5%"),
	}, actor)
	require.NoError(t, err)
	requireAmount(t, "125000", p.AmilFeeAmount)
	requireAmount(t, "875000", p.NetAmount)
	require.Equal(t, actor, p.CreatedBy)

	agg := muzakkiAgg(t, db, m.ID)
	require.EqualValues(t, 1, agg.TransactionCount)
	requireAmount(t, "1000000", agg.CumulativeAmount)
	requireDate(t, "2026-01-10", agg.LastTransactionDate)
}

func TestScenarioPendingThenAccepted(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMustahiq(t, db, "Siti", "MST202602001")

	d, err := svc.CreateDistribusi(ctx, DistribusiInput{MustahiqID: m.ID, Amount: dec("500000")}, actor)
	require.NoError(t, err)

	var stored models.Distribusi
	require.NoError(t, db.First(&stored, d.ID).Error)
	require.Nil(t, stored.TransactionDate)
	require.Equal(t, models.DistribusiPending, stored.Status)
	agg := mustahiqAgg(t, db, m.ID)
	require.EqualValues(t, 0, agg.TransactionCount)
	requireAmount(t, "0", agg.CumulativeAmount)
	require.Nil(t, agg.LastTransactionDate)

	_, err = svc.UpdateDistribusi(ctx, d.ID, DistribusiInput{
		MustahiqID:      m.ID,
		Amount:          dec("500000"),
		Status:          models.DistribusiAccepted,
		TransactionDate: day("2026-02-23"),
	}, actor)
	require.NoError(t, err)
	agg = mustahiqAgg(t, db, m.ID)
	require.EqualValues(t, 1, agg.TransactionCount)
	requireAmount(t, "500000", agg.CumulativeAmount)
	requireDate(t, "2026-02-23", agg.LastTransactionDate)
}

func TestScenarioAcceptedAmountChange(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMustahiq(t, db, "Siti", "MST202602001")

	in := DistribusiInput{MustahiqID: m.ID, Amount: dec("500000"), Status: models.DistribusiAccepted, TransactionDate: day("2026-02-01")}
	d, err := svc.CreateDistribusi(ctx, in, actor)
	require.NoError(t, err)

	in.Amount = dec("700000")
	_, err = svc.UpdateDistribusi(ctx, d.ID, in, actor)
	require.NoError(t, err)

	agg := mustahiqAgg(t, db, m.ID)
	require.EqualValues(t, 1, agg.TransactionCount)
	requireAmount(t, "700000", agg.CumulativeAmount)
	requireDate(t, "2026-02-01", agg.LastTransactionDate)
}

func TestScenarioDeleteMostRecentRevealsPreviousDate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMustahiq(t, db, "Siti", "MST202602001")

	var ids []uint
	for _, date := range []string{"2026-01-05", "2026-01-20", "2026-02-10"} {
		d, err := svc.CreateDistribusi(ctx, DistribusiInput{
			MustahiqID: m.ID, Amount: dec("100000"), Status: models.DistribusiAccepted, TransactionDate: day(date),
		}, actor)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	requireDate(t, "2026-02-10", mustahiqAgg(t, db, m.ID).LastTransactionDate)

	require.NoError(t, svc.DeleteDistribusi(ctx, ids[2], actor))
	agg := mustahiqAgg(t, db, m.ID)
	require.EqualValues(t, 2, agg.TransactionCount)
	requireAmount(t, "200000", agg.CumulativeAmount)
	requireDate(t, "2026-01-20", agg.LastTransactionDate)
}

func TestBackdatedInsertKeepsLatestDate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")
	rate := feeRateID(t, db, "Tanpa amil")

	for _, date := range []string{"2026-02-01", "2025-12-31"} {
		_, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("10"), TransactionDate: day(date), AmilFeeRateID: rate}, actor)
		require.NoError(t, err)
	}
	requireDate(t, "2026-02-01", muzakkiAgg(t, db, m.ID).LastTransactionDate)
}

func TestMovingDateBackwardRescans(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")
	rate := feeRateID(t, db, "Tanpa amil")

	_, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("10"), TransactionDate: day("2026-01-01"), AmilFeeRateID: rate}, actor)
	require.NoError(t, err)
	latest, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("10"), TransactionDate: day("2026-02-01"), AmilFeeRateID: rate}, actor)
	require.NoError(t, err)

	_, err = svc.UpdatePenerimaan(ctx, latest.ID, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("10"), TransactionDate: day("2025-11-01"), AmilFeeRateID: rate}, actor)
	require.NoError(t, err)
	agg := muzakkiAgg(t, db, m.ID)
	require.EqualValues(t, 2, agg.TransactionCount)
	requireDate(t, "2026-01-01", agg.LastTransactionDate)
}

func TestReassignMovesAggregates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	a := seedMuzakki(t, db, "Ahmad")
	b := seedMuzakki(t, db, "Budi")
	rate := feeRateID(t, db, "Zakat 12.5%")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: a.ID, Amount: dec("400"), TransactionDate: day("2026-02-02"), AmilFeeRateID: rate}, actor)
	require.NoError(t, err)

	res, err := svc.Execute(ctx, Command{Op: OpUpdate, Kind: KindPenerimaan, ID: p.ID, Penerimaan: &PenerimaanInput{
		MuzakkiID: b.ID, Amount: dec("400"), AmilFeeRateID: rate,
	}}, actor)
	require.NoError(t, err)
	require.Len(t, res.Aggregates, 2)
	require.Equal(t, "Budi", res.Penerimaan.MuzakkiName)
	requireDate(t, "2026-02-02", res.Penerimaan.TransactionDate)

	aggA := muzakkiAgg(t, db, a.ID)
	require.EqualValues(t, 0, aggA.TransactionCount)
	requireAmount(t, "0", aggA.CumulativeAmount)
	require.Nil(t, aggA.LastTransactionDate)

	aggB := muzakkiAgg(t, db, b.ID)
	require.EqualValues(t, 1, aggB.TransactionCount)
	requireAmount(t, "400", aggB.CumulativeAmount)
	requireDate(t, "2026-02-02", aggB.LastTransactionDate)
}

func TestReassignToInactiveCounterpartyFails(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	a := seedMuzakki(t, db, "Ahmad")
	b := seedMuzakki(t, db, "Budi")
	require.NoError(t, db.Model(b).Update("status", models.CounterpartyInactive).Error)
	rate := feeRateID(t, db, "Zakat 12.5%")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: a.ID, Amount: dec("400"), AmilFeeRateID: rate}, actor)
	require.NoError(t, err)
	_, err = svc.UpdatePenerimaan(ctx, p.ID, PenerimaanInput{MuzakkiID: b.ID, Amount: dec("400"), AmilFeeRateID: rate}, actor)
	require.ErrorIs(t, err, ErrInvalidState)
	require.EqualValues(t, 1, muzakkiAgg(t, db, a.ID).TransactionCount)
}

func TestAggregatesNeverGoNegative(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("5000"), AmilFeeRateID: feeRateID(t, db, "Tanpa amil")}, actor)
	require.NoError(t, err)

	// manual correction behind the ledger's back
	require.NoError(t, db.Model(&models.Muzakki{}).Where("id = ?", m.ID).Updates(map[string]any{
		"transaction_count": 0,
		"cumulative_amount": decimal.Zero,
	}).Error)

	require.NoError(t, svc.DeletePenerimaan(ctx, p.ID, actor))
	agg := muzakkiAgg(t, db, m.ID)
	require.EqualValues(t, 0, agg.TransactionCount)
	requireAmount(t, "0", agg.CumulativeAmount)
}

type failingReconciler struct{}

func (failingReconciler) Reconcile(*gorm.DB, EntryKind, *Image, *Image) ([]AggregateChange, error) {
	return nil, errors.New("counterparty row locked")
}

func TestReconcilerFailureRollsBackRow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, WithReconciler(failingReconciler{}))
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")

	_, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("1000"), AmilFeeRateID: feeRateID(t, db, "Tanpa amil")}, actor)
	require.Error(t, err)
	require.Equal(t, CodeInternal, CodeOf(err))

	var n int64
	require.NoError(t, db.Model(&models.Penerimaan{}).Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	require.Zero(t, n)
}

type failingAuditor struct{}

func (failingAuditor) Record(*gorm.DB, Entry) error { return errors.New("audit table unavailable") }

func TestAuditFailureIsLoggedAndSwallowed(t *testing.T) {
	db := newTestDB(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewService(db, zap.New(core), WithAuditRecorder(failingAuditor{}), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec("1000"), AmilFeeRateID: feeRateID(t, db, "Tanpa amil")}, actor)
	require.NoError(t, err)
	require.NotZero(t, p.ID)
	require.EqualValues(t, 1, muzakkiAgg(t, db, m.ID).TransactionCount)

	dropped := logs.FilterMessage("audit record dropped").All()
	require.Len(t, dropped, 2)
	require.Equal(t, "penerimaan", dropped[0].ContextMap()["table"])
	require.Equal(t, "muzakki", dropped[1].ContextMap()["table"])
}

func TestMutationsAreAudited(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMustahiq(t, db, "Siti", "MST202602001")

	in := DistribusiInput{MustahiqID: m.ID, Amount: dec("100"), Status: models.DistribusiAccepted, TransactionDate: day("2026-02-01")}
	d, err := svc.CreateDistribusi(ctx, in, actor)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDistribusi(ctx, d.ID, actor))

	var rows []models.AuditLog
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 4)

	require.Equal(t, "distribusi", rows[0].TargetTable)
	require.Equal(t, models.AuditInsert, rows[0].Action)
	require.Nil(t, rows[0].Before)
	require.NotNil(t, rows[0].After)

	require.Equal(t, "mustahiq", rows[1].TargetTable)
	require.Equal(t, models.AuditUpdate, rows[1].Action)

	require.Equal(t, models.AuditDelete, rows[2].Action)
	require.Equal(t, d.ID, rows[2].RecordID)
	require.NotNil(t, rows[2].Before)
	require.Nil(t, rows[2].After)
	for _, r := range rows {
		require.Equal(t, actor, r.ActorID)
	}
}

func TestUnsettledChangesLeaveAggregates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMustahiq(t, db, "Siti", "MST202602001")

	d, err := svc.CreateDistribusi(ctx, DistribusiInput{MustahiqID: m.ID, Amount: dec("100")}, actor)
	require.NoError(t, err)
	res, err := svc.Execute(ctx, Command{Op: OpUpdate, Kind: KindDistribusi, ID: d.ID, Distribusi: &DistribusiInput{
		MustahiqID: m.ID, Amount: dec("300"), Status: models.DistribusiRejected,
	}}, actor)
	require.NoError(t, err)
	require.Empty(t, res.Aggregates)
	require.EqualValues(t, 0, mustahiqAgg(t, db, m.ID).TransactionCount)
}

func TestExecuteRejectsUnknownTargets(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.Execute(ctx, Command{Op: OpCreate, Kind: "zakat"}, actor)
	require.ErrorIs(t, err, ErrValidation)

	err = svc.DeletePenerimaan(ctx, 404, actor)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Execute(ctx, Command{Op: OpCreate, Kind: KindPenerimaan}, actor)
	require.ErrorIs(t, err, ErrValidation)
}

// TestAggregateInvariantUnderRandomOperations drives a random mix of writes
// and checks every counterparty against its settled rows after each step.
func TestAggregateInvariantUnderRandomOperations(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(42))

	mustahiq := []*models.Mustahiq{
		seedMustahiq(t, db, "A", "MST202602001"),
		seedMustahiq(t, db, "B", "MST202602002"),
		seedMustahiq(t, db, "C", "MST202602003"),
	}
	statuses := []models.DistribusiStatus{models.DistribusiPending, models.DistribusiAccepted, models.DistribusiRejected}
	dates := []string{"2026-01-03", "2026-01-17", "2026-02-01", "2026-02-14", ""}

	randomInput := func() DistribusiInput {
		in := DistribusiInput{
			MustahiqID: mustahiq[rnd.Intn(len(mustahiq))].ID,
			Amount:     decimal.NewFromInt(int64(1+rnd.Intn(50)) * 1000),
			Status:     statuses[rnd.Intn(len(statuses))],
		}
		if d := dates[rnd.Intn(len(dates))]; d != "" {
			in.TransactionDate = day(d)
		}
		return in
	}

	var live []uint
	for step := 0; step < 120; step++ {
		switch op := rnd.Intn(10); {
		case op < 4 || len(live) == 0:
			d, err := svc.CreateDistribusi(ctx, randomInput(), actor)
			require.NoError(t, err)
			live = append(live, d.ID)
		case op < 8:
			_, err := svc.UpdateDistribusi(ctx, live[rnd.Intn(len(live))], randomInput(), actor)
			require.NoError(t, err)
		default:
			i := rnd.Intn(len(live))
			require.NoError(t, svc.DeleteDistribusi(ctx, live[i], actor))
			live = append(live[:i], live[i+1:]...)
		}

		for _, m := range mustahiq {
			var settled []models.Distribusi
			require.NoError(t, SettledDistribusiScope(db.Where("mustahiq_id = ?", m.ID)).Order("transaction_date DESC").Find(&settled).Error)
			sum := decimal.Zero
			for _, d := range settled {
				sum = sum.Add(d.Amount)
			}
			agg := mustahiqAgg(t, db, m.ID)
			require.EqualValues(t, len(settled), agg.TransactionCount, "step %d", step)
			requireAmount(t, sum.String(), agg.CumulativeAmount)
			if len(settled) == 0 {
				require.Nil(t, agg.LastTransactionDate, "step %d", step)
			} else {
				requireDate(t, settled[0].TransactionDate.Format("2006-01-02"), agg.LastTransactionDate)
			}
		}
	}
}

func TestRecomputeRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")
	rate := feeRateID(t, db, "Tanpa amil")
	for _, amt := range []string{"100", "250.50"} {
		_, err := svc.CreatePenerimaan(ctx, PenerimaanInput{MuzakkiID: m.ID, Amount: dec(amt), TransactionDate: day("2026-02-01"), AmilFeeRateID: rate}, actor)
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&models.Muzakki{}).Where("id = ?", m.ID).Updates(map[string]any{
		"transaction_count":     9,
		"cumulative_amount":     decimal.NewFromInt(1),
		"last_transaction_date": nil,
	}).Error)

	change, err := svc.Recompute(ctx, KindPenerimaan, m.ID, actor)
	require.NoError(t, err)
	require.EqualValues(t, 9, change.Before.TransactionCount)

	agg := muzakkiAgg(t, db, m.ID)
	require.EqualValues(t, 2, agg.TransactionCount)
	requireAmount(t, "350.50", agg.CumulativeAmount)
	requireDate(t, "2026-02-01", agg.LastTransactionDate)

	_, err = svc.Recompute(ctx, KindPenerimaan, 999, actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePenerimaanUnlinksReceipts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	m := seedMuzakki(t, db, "Ahmad")

	p, err := svc.CreatePenerimaan(ctx, PenerimaanInput{
		MuzakkiID: m.ID, Amount: dec("50000"), AmilFeeRateID: feeRateID(t, db, "Zakat 12.5%"),
	}, actor)
	require.NoError(t, err)
	rc := &models.Receipt{PenerimaanID: &p.ID, UploadedBy: actor, FileName: "IMG_0001.jpg", StorePath: "receipts/x.jpg"}
	require.NoError(t, db.Create(rc).Error)

	require.NoError(t, svc.DeletePenerimaan(ctx, p.ID, actor))
	var got models.Receipt
	require.NoError(t, db.First(&got, rc.ID).Error)
	require.Nil(t, got.PenerimaanID)
}
