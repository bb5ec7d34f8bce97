package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"complaint_triage/core/port/out"
)

// Common persistence errors. They alias the port errors so callers can match
// either.
var (
	ErrNotFound  = out.ErrComplaintNotFound
	ErrDuplicate = out.ErrDuplicateKey
)

const uniqueViolation = "23505"

// isUniqueViolation recognizes a unique-constraint failure from either the
// pgx or the lib/pq driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
