package sqldb

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique constraint failure and,
// if so, a description naming the constraint or columns involved.
func uniqueViolation(err error) (string, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return se.Error(), true
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgUniqueViolation {
		return pe.ConstraintName, true
	}
	return "", false
}

// isSerialViolation distinguishes the serial number index from the asset
// code index. SQLite names the column, PostgreSQL the index.
func isSerialViolation(detail string) bool {
	return strings.Contains(detail, "serial")
}
