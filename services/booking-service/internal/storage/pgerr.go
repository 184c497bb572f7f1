package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlstateUniqueViolation      = "23505"
	sqlstateExclusionViolation   = "23P01"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

func hasSQLState(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, code := range codes {
		if pgErr.Code == code {
			return true
		}
	}
	return false
}

// isConstraintConflict means the database rejected an insert that would
// double-allocate staff time; surfaced to callers as "slot no longer
// available", not a generic failure.
func isConstraintConflict(err error) bool {
	return hasSQLState(err, sqlstateUniqueViolation, sqlstateExclusionViolation)
}

// isRetryable covers transient transaction outcomes worth exactly one retry.
func isRetryable(err error) bool {
	return hasSQLState(err, sqlstateSerializationFailure, sqlstateDeadlockDetected)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
