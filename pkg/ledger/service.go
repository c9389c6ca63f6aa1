package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bezis/models"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Op is the mutation a Command performs.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Command is one ledger mutation. ID is ignored on create; the payload
// matching Kind is ignored on delete.
type Command struct {
	Op         Op
	Kind       EntryKind
	ID         uint
	Penerimaan *PenerimaanInput
	Distribusi *DistribusiInput
}

// Result carries the row as persisted (nil after a delete) and the
// aggregate changes the command caused.
type Result struct {
	Penerimaan *models.Penerimaan
	Distribusi *models.Distribusi
	Aggregates []AggregateChange
}

// Service runs every ledger and counterparty mutation as one unit of work:
// normalize, persist, reconcile and audit commit or roll back together.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	reconciler Reconciler
	auditor    AuditRecorder
	txOptions  *sql.TxOptions
	now        func() time.Time
	codePrefix string
}

type Option func(*Service)

func WithReconciler(r Reconciler) Option { return func(s *Service) { s.reconciler = r } }

func WithAuditRecorder(a AuditRecorder) Option { return func(s *Service) { s.auditor = a } }

// WithIsolation sets the isolation level of every unit of work.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *Service) { s.txOptions = &sql.TxOptions{Isolation: level} }
}

// WithClock replaces time.Now. The clock's location decides what "today" is.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithCodePrefix(prefix string) Option { return func(s *Service) { s.codePrefix = prefix } }

func NewService(db *gorm.DB, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:         db,
		log:        log,
		reconciler: AggregateReconciler{},
		auditor:    GormAuditRecorder{},
		now:        time.Now,
		codePrefix: "MST",
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// DB exposes the handle for read paths.
func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if s.txOptions != nil {
		opts = append(opts, s.txOptions)
	}
	return s.db.WithContext(ctx).Transaction(fn, opts...)
}

// Execute runs cmd for actorID in a single transaction.
func (s *Service) Execute(ctx context.Context, cmd Command, actorID uint) (*Result, error) {
	var res *Result
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		switch cmd.Kind {
		case KindPenerimaan:
			res, err = s.execPenerimaan(tx, cmd, actorID)
		case KindDistribusi:
			res, err = s.execDistribusi(tx, cmd, actorID)
		default:
			err = Invalid("kind", fmt.Sprintf("unknown ledger kind %q", cmd.Kind))
		}
		return err
	})
	if err != nil {
		return nil, s.fail(string(cmd.Kind), string(cmd.Op), actorID, err)
	}
	s.log.Debug("ledger command committed",
		zap.String("kind", string(cmd.Kind)),
		zap.String("op", string(cmd.Op)),
		zap.Uint("actor_id", actorID),
		zap.Int("aggregates", len(res.Aggregates)))
	return res, nil
}

func (s *Service) execPenerimaan(tx *gorm.DB, cmd Command, actorID uint) (*Result, error) {
	var prev *models.Penerimaan
	if cmd.Op != OpCreate {
		var stored models.Penerimaan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&stored, cmd.ID).Error; err != nil {
			return nil, lookupErr("penerimaan", cmd.ID, err)
		}
		prev = &stored
	}

	var row *models.Penerimaan
	switch cmd.Op {
	case OpCreate, OpUpdate:
		if cmd.Penerimaan == nil {
			return nil, Invalid("penerimaan", "payload is required")
		}
		var err error
		if row, err = NormalizePenerimaan(tx, prev, *cmd.Penerimaan, s.now()); err != nil {
			return nil, err
		}
		row.UpdatedBy = actorID
		if prev == nil {
			row.CreatedBy = actorID
			err = tx.Omit(clause.Associations).Create(row).Error
		} else {
			err = tx.Omit(clause.Associations).Save(row).Error
		}
		if err != nil {
			return nil, classify("penerimaan", err)
		}
	case OpDelete:
		// Receipts outlive their penerimaan as unlinked evidence.
		if err := tx.Model(&models.Receipt{}).Where("penerimaan_id = ?", prev.ID).Update("penerimaan_id", nil).Error; err != nil {
			return nil, classify("receipt", err)
		}
		if err := tx.Delete(&models.Penerimaan{}, prev.ID).Error; err != nil {
			return nil, classify("penerimaan", err)
		}
	default:
		return nil, Invalid("op", fmt.Sprintf("unknown op %q", cmd.Op))
	}

	changes, err := s.reconciler.Reconcile(tx, KindPenerimaan, penerimaanImage(prev), penerimaanImage(row))
	if err != nil {
		return nil, err
	}

	e := Entry{ActorID: actorID, Table: models.Penerimaan{}.TableName(), Action: action(cmd.Op)}
	if prev != nil {
		e.RecordID, e.Before = prev.ID, prev
	}
	if row != nil {
		e.RecordID, e.After = row.ID, row
	}
	s.audit(tx, e)
	s.auditAggregates(tx, actorID, changes)
	return &Result{Penerimaan: row, Aggregates: changes}, nil
}

func (s *Service) execDistribusi(tx *gorm.DB, cmd Command, actorID uint) (*Result, error) {
	var prev *models.Distribusi
	if cmd.Op != OpCreate {
		var stored models.Distribusi
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&stored, cmd.ID).Error; err != nil {
			return nil, lookupErr("distribusi", cmd.ID, err)
		}
		prev = &stored
	}

	var row *models.Distribusi
	switch cmd.Op {
	case OpCreate, OpUpdate:
		if cmd.Distribusi == nil {
			return nil, Invalid("distribusi", "payload is required")
		}
		var err error
		if row, err = NormalizeDistribusi(tx, prev, *cmd.Distribusi, s.now()); err != nil {
			return nil, err
		}
		row.UpdatedBy = actorID
		if prev == nil {
			row.CreatedBy = actorID
			err = tx.Omit(clause.Associations).Create(row).Error
		} else {
			err = tx.Omit(clause.Associations).Save(row).Error
		}
		if err != nil {
			return nil, classify("distribusi", err)
		}
	case OpDelete:
		if err := tx.Delete(&models.Distribusi{}, prev.ID).Error; err != nil {
			return nil, classify("distribusi", err)
		}
	default:
		return nil, Invalid("op", fmt.Sprintf("unknown op %q", cmd.Op))
	}

	changes, err := s.reconciler.Reconcile(tx, KindDistribusi, distribusiImage(prev), distribusiImage(row))
	if err != nil {
		return nil, err
	}

	e := Entry{ActorID: actorID, Table: models.Distribusi{}.TableName(), Action: action(cmd.Op)}
	if prev != nil {
		e.RecordID, e.Before = prev.ID, prev
	}
	if row != nil {
		e.RecordID, e.After = row.ID, row
	}
	s.audit(tx, e)
	s.auditAggregates(tx, actorID, changes)
	return &Result{Distribusi: row, Aggregates: changes}, nil
}

func (s *Service) CreatePenerimaan(ctx context.Context, in PenerimaanInput, actorID uint) (*models.Penerimaan, error) {
	res, err := s.Execute(ctx, Command{Op: OpCreate, Kind: KindPenerimaan, Penerimaan: &in}, actorID)
	if err != nil {
		return nil, err
	}
	return res.Penerimaan, nil
}

func (s *Service) UpdatePenerimaan(ctx context.Context, id uint, in PenerimaanInput, actorID uint) (*models.Penerimaan, error) {
	res, err := s.Execute(ctx, Command{Op: OpUpdate, Kind: KindPenerimaan, ID: id, Penerimaan: &in}, actorID)
	if err != nil {
		return nil, err
	}
	return res.Penerimaan, nil
}

func (s *Service) DeletePenerimaan(ctx context.Context, id uint, actorID uint) error {
	_, err := s.Execute(ctx, Command{Op: OpDelete, Kind: KindPenerimaan, ID: id}, actorID)
	return err
}

func (s *Service) CreateDistribusi(ctx context.Context, in DistribusiInput, actorID uint) (*models.Distribusi, error) {
	res, err := s.Execute(ctx, Command{Op: OpCreate, Kind: KindDistribusi, Distribusi: &in}, actorID)
	if err != nil {
		return nil, err
	}
	return res.Distribusi, nil
}

func (s *Service) UpdateDistribusi(ctx context.Context, id uint, in DistribusiInput, actorID uint) (*models.Distribusi, error) {
	res, err := s.Execute(ctx, Command{Op: OpUpdate, Kind: KindDistribusi, ID: id, Distribusi: &in}, actorID)
	if err != nil {
		return nil, err
	}
	return res.Distribusi, nil
}

func (s *Service) DeleteDistribusi(ctx context.Context, id uint, actorID uint) error {
	_, err := s.Execute(ctx, Command{Op: OpDelete, Kind: KindDistribusi, ID: id}, actorID)
	return err
}

// CounterpartyInput is the editable identity of a muzakki or mustahiq.
// NPWZ applies to muzakki and Asnaf to mustahiq only.
type CounterpartyInput struct {
	Name    string
	NIK     string
	NPWZ    string
	Phone   string
	Address string
	Region  string
	Asnaf   string
	Status  models.CounterpartyStatus
}

func (in CounterpartyInput) normalized() (CounterpartyInput, error) {
	in.Name = NormalizeName(in.Name)
	if in.Name == "" {
		return in, Invalid("name", "name is required")
	}
	in.NIK = strings.TrimSpace(in.NIK)
	in.NPWZ = strings.TrimSpace(in.NPWZ)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Region = strings.TrimSpace(in.Region)
	in.Asnaf = strings.TrimSpace(in.Asnaf)
	if in.Status == "" {
		in.Status = models.CounterpartyActive
	}
	if !in.Status.Valid() {
		return in, Invalid("status", fmt.Sprintf("unknown status %q", in.Status))
	}
	return in, nil
}

// NormalizeName collapses whitespace and title-cases a person's name.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Indonesian).String(name)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) RegisterMuzakki(ctx context.Context, in CounterpartyInput, actorID uint) (*models.Muzakki, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	m := &models.Muzakki{
		Name:    in.Name,
		NIK:     optional(in.NIK),
		NPWZ:    optional(in.NPWZ),
		Phone:   in.Phone,
		Address: in.Address,
		Region:  in.Region,
		Status:  in.Status,
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return classify("muzakki", err)
		}
		s.audit(tx, Entry{ActorID: actorID, Table: m.TableName(), RecordID: m.ID, Action: models.AuditInsert, After: m})
		return nil
	})
	if err != nil {
		return nil, s.fail("muzakki", "register", actorID, err)
	}
	return m, nil
}

// RegisterMustahiq allocates the registration code for the current period
// and inserts the mustahiq in the same transaction.
func (s *Service) RegisterMustahiq(ctx context.Context, in CounterpartyInput, actorID uint) (*models.Mustahiq, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	m := &models.Mustahiq{
		Name:    in.Name,
		NIK:     optional(in.NIK),
		Asnaf:   in.Asnaf,
		Phone:   in.Phone,
		Address: in.Address,
		Region:  in.Region,
		Status:  in.Status,
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		code, err := NextCode(tx, s.codePrefix, s.now().Format("200601"))
		if err != nil {
			return err
		}
		m.RegistrationCode = code
		if err := tx.Create(m).Error; err != nil {
			return classify("mustahiq", err)
		}
		s.audit(tx, Entry{ActorID: actorID, Table: m.TableName(), RecordID: m.ID, Action: models.AuditInsert, After: m})
		return nil
	})
	if err != nil {
		return nil, s.fail("mustahiq", "register", actorID, err)
	}
	return m, nil
}

// UpdateMuzakki edits identity and status. Aggregates are not writable here
// and existing penerimaan snapshots are left as they were.
func (s *Service) UpdateMuzakki(ctx context.Context, id uint, in CounterpartyInput, actorID uint) (*models.Muzakki, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	var m models.Muzakki
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			return lookupErr("muzakki", id, err)
		}
		before := m
		m.Name, m.NIK, m.NPWZ = in.Name, optional(in.NIK), optional(in.NPWZ)
		m.Phone, m.Address, m.Region, m.Status = in.Phone, in.Address, in.Region, in.Status
		err := tx.Model(&m).Updates(map[string]any{
			"name":    m.Name,
			"nik":     m.NIK,
			"npwz":    m.NPWZ,
			"phone":   m.Phone,
			"address": m.Address,
			"region":  m.Region,
			"status":  m.Status,
		}).Error
		if err != nil {
			return classify("muzakki", err)
		}
		s.audit(tx, Entry{ActorID: actorID, Table: m.TableName(), RecordID: m.ID, Action: models.AuditUpdate, Before: before, After: m})
		return nil
	})
	if err != nil {
		return nil, s.fail("muzakki", "update", actorID, err)
	}
	return &m, nil
}

func (s *Service) UpdateMustahiq(ctx context.Context, id uint, in CounterpartyInput, actorID uint) (*models.Mustahiq, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	var m models.Mustahiq
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
			return lookupErr("mustahiq", id, err)
		}
		before := m
		m.Name, m.NIK, m.Asnaf = in.Name, optional(in.NIK), in.Asnaf
		m.Phone, m.Address, m.Region, m.Status = in.Phone, in.Address, in.Region, in.Status
		err := tx.Model(&m).Updates(map[string]any{
			"name":    m.Name,
			"nik":     m.NIK,
			"asnaf":   m.Asnaf,
			"phone":   m.Phone,
			"address": m.Address,
			"region":  m.Region,
			"status":  m.Status,
		}).Error
		if err != nil {
			return classify("mustahiq", err)
		}
		s.audit(tx, Entry{ActorID: actorID, Table: m.TableName(), RecordID: m.ID, Action: models.AuditUpdate, Before: before, After: m})
		return nil
	})
	if err != nil {
		return nil, s.fail("mustahiq", "update", actorID, err)
	}
	return &m, nil
}

// Recompute rebuilds one counterparty's aggregates from its ledger rows.
func (s *Service) Recompute(ctx context.Context, kind EntryKind, id uint, actorID uint) (*AggregateChange, error) {
	var change *AggregateChange
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if change, err = RecomputeAggregate(tx, kind, id); err != nil {
			return err
		}
		s.auditAggregates(tx, actorID, []AggregateChange{*change})
		return nil
	})
	if err != nil {
		return nil, s.fail(string(kind), "recompute", actorID, err)
	}
	if !change.Before.CumulativeAmount.Equal(change.After.CumulativeAmount) || change.Before.TransactionCount != change.After.TransactionCount {
		s.log.Warn("aggregate drift repaired",
			zap.String("table", change.Table),
			zap.Uint("counterparty_id", id),
			zap.Int64("count_before", change.Before.TransactionCount),
			zap.Int64("count_after", change.After.TransactionCount),
			zap.String("amount_before", change.Before.CumulativeAmount.String()),
			zap.String("amount_after", change.After.CumulativeAmount.String()))
	}
	return change, nil
}

// audit records e inside a savepoint. A failed audit write is logged and
// dropped; it never aborts the enclosing unit of work.
func (s *Service) audit(tx *gorm.DB, e Entry) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.auditor.Record(sp, e)
	})
	if err != nil {
		s.log.Error("audit record dropped",
			zap.String("table", e.Table),
			zap.Uint("record_id", e.RecordID),
			zap.String("action", string(e.Action)),
			zap.Uint("actor_id", e.ActorID),
			zap.Error(err))
	}
}

func (s *Service) auditAggregates(tx *gorm.DB, actorID uint, changes []AggregateChange) {
	for _, c := range changes {
		s.audit(tx, Entry{
			ActorID:  actorID,
			Table:    c.Table,
			RecordID: c.CounterpartyID,
			Action:   models.AuditUpdate,
			Before:   c.Before,
			After:    c.After,
		})
	}
}

func (s *Service) fail(entity, op string, actorID uint, err error) error {
	err = classify(entity, err)
	if CodeOf(err) == CodeInternal {
		s.log.Error("ledger operation failed",
			zap.String("entity", entity),
			zap.String("op", op),
			zap.Uint("actor_id", actorID),
			zap.Error(err))
	} else {
		s.log.Debug("ledger operation rejected",
			zap.String("entity", entity),
			zap.String("op", op),
			zap.Uint("actor_id", actorID),
			zap.Error(err))
	}
	return err
}

func action(op Op) models.AuditAction {
	switch op {
	case OpCreate:
		return models.AuditInsert
	case OpDelete:
		return models.AuditDelete
	}
	return models.AuditUpdate
}
