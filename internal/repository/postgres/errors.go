package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres class 23 error code for unique_violation.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// A non-empty constraint restricts the match to that constraint name; an
// empty constraint matches any unique violation. Wrapped errors are
// unwrapped, string-concatenated ones are not recoverable.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != uniqueViolationCode {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
