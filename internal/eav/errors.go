package eav

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnknownAttribute is returned when a filter or insert references an
	// attribute not declared for the grouping.
	ErrUnknownAttribute = errors.New("eav: unknown attribute")
	// ErrUnsupportedDatatype is returned when a datatype matches none of the
	// four value tables.
	ErrUnsupportedDatatype = errors.New("eav: unsupported datatype")
	// ErrDuplicateValue is returned when a value insert collides with an
	// existing (attribute, entity[, timestamp]) row.
	ErrDuplicateValue = errors.New("eav: duplicate value")
	// ErrValueMismatch is returned when a scalar's Go type contradicts the
	// attribute's declared datatype.
	ErrValueMismatch = errors.New("eav: value does not match datatype")
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
