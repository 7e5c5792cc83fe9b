package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes we react to.
const (
	codeUniqueViolation   = "23505"
	codeForeignKeyMissing = "23503"
	codeInvalidText       = "22P02"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

// IsForeignKeyViolation reports whether err references a missing parent row.
func IsForeignKeyViolation(err error) bool { return hasCode(err, codeForeignKeyMissing) }

// IsInvalidTextRepresentation reports whether a parameter could not be parsed
// as its column type, e.g. a non-UUID string compared with a uuid column.
func IsInvalidTextRepresentation(err error) bool { return hasCode(err, codeInvalidText) }
