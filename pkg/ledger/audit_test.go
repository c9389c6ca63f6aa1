package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bezis/models"

	"github.com/stretchr/testify/require"
)

func TestGormAuditRecorderWritesImages(t *testing.T) {
	db := newTestDB(t)
	before := map[string]any{"amount": "100"}

	err := GormAuditRecorder{}.Record(db, Entry{
		ActorID:  3,
		Table:    "penerimaan",
		RecordID: 11,
		Action:   models.AuditDelete,
		Before:   before,
	})
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, uint(3), row.ActorID)
	require.Equal(t, "penerimaan", row.TargetTable)
	require.Equal(t, models.AuditDelete, row.Action)
	require.Nil(t, row.After)

	var got map[string]any
	require.NoError(t, json.Unmarshal(row.Before, &got))
	require.Equal(t, "100", got["amount"])
}

func TestListAuditFiltersAndPages(t *testing.T) {
	db := newTestDB(t)
	rec := GormAuditRecorder{}
	for i := 0; i < 25; i++ {
		actorID := uint(1)
		if i%5 == 0 {
			actorID = 2
		}
		action := models.AuditInsert
		if i%2 == 1 {
			action = models.AuditUpdate
		}
		require.NoError(t, rec.Record(db, Entry{ActorID: actorID, Table: "muzakki", RecordID: uint(i + 1), Action: action, After: map[string]int{"i": i}}))
	}
	require.NoError(t, rec.Record(db, Entry{ActorID: 1, Table: "distribusi", RecordID: 1, Action: models.AuditInsert}))

	ctx := context.Background()
	rows, total, err := ListAudit(ctx, db, AuditFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 26, total)
	require.Len(t, rows, 20)
	require.Greater(t, rows[0].ID, rows[1].ID)

	actor := uint(2)
	rows, total, err = ListAudit(ctx, db, AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, rows, 5)

	rows, total, err = ListAudit(ctx, db, AuditFilter{Table: "muzakki", Action: models.AuditUpdate, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.EqualValues(t, 12, total)
	require.Len(t, rows, 2)

	future := time.Now().Add(time.Hour)
	_, total, err = ListAudit(ctx, db, AuditFilter{From: &future})
	require.NoError(t, err)
	require.Zero(t, total)

	rows, _, err = ListAudit(ctx, db, AuditFilter{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, rows, 26)
}

func TestListAuditToCoversWholeDay(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, GormAuditRecorder{}.Record(db, Entry{ActorID: 1, Table: "muzakki", RecordID: 1, Action: models.AuditInsert}))
	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)

	at := row.CreatedAt
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	ctx := context.Background()

	_, total, err := ListAudit(ctx, db, AuditFilter{From: &day, To: &day})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	before := day.AddDate(0, 0, -1)
	_, total, err = ListAudit(ctx, db, AuditFilter{To: &before})
	require.NoError(t, err)
	require.Zero(t, total)

	_, total, err = ListAudit(ctx, db, AuditFilter{To: &at})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
