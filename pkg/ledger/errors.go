package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Code classifies a ledger failure for the API layer.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInvalidState Code = "invalid_state"
	CodeValidation   Code = "validation"
	CodeInternal     Code = "internal"
)

// Error is the typed failure returned by every Service operation. All codes
// abort the enclosing transaction; none are retried.
type Error struct {
	Code    Code
	Entity  string
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrInvalidState = &Error{Code: CodeInvalidState}
	ErrValidation   = &Error{Code: CodeValidation}
	ErrInternal     = &Error{Code: CodeInternal}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Entity != "" {
		b.WriteString(" (" + e.Entity + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil && e.Code == CodeInternal {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func NotFound(entity string, id any) *Error {
	return &Error{Code: CodeNotFound, Entity: entity, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Conflict(entity, msg string, err error) *Error {
	return &Error{Code: CodeConflict, Entity: entity, Message: msg, Err: err}
}

func InvalidState(entity, msg string) *Error {
	return &Error{Code: CodeInvalidState, Entity: entity, Message: msg}
}

func Invalid(field, msg string) *Error {
	return &Error{Code: CodeValidation, Entity: field, Message: msg}
}

// CodeOf returns the code of err, CodeInternal for anything unclassified.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// classify maps driver and gorm errors onto the taxonomy.
func classify(entity string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Code: CodeNotFound, Entity: entity, Message: entity + " not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return Conflict(entity, "duplicate "+entity+" (unique value already used)", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), pgCode(err) == "23503":
		return &Error{Code: CodeNotFound, Entity: entity, Message: "referenced record does not exist", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Code: CodeInternal, Entity: entity, Message: "request timed out", Err: err}
	}
	return &Error{Code: CodeInternal, Entity: entity, Err: err}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation also matches on the message for drivers that do not
// expose a typed error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == "23505" {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "unique constraint")
}
