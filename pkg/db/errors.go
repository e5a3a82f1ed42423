package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When constraintName
// is provided the violation must reference it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	matched := strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	if !matched {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
