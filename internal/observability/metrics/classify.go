package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonDeadlock             = "deadlock"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonUnknown              = "unknown"
)

// ClassifyFailureReason maps persistence errors to low-cardinality metric reasons.
func ClassifyFailureReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case hasPGCode(err, "40P01"):
		return ReasonDeadlock
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case isDBError(err):
		return ReasonDB
	default:
		return ReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
