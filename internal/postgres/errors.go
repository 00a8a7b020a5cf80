package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict marks lock contention / serialization failures that are safe
// to retry once before surfacing to the caller.
var ErrConflict = errors.New("postgres: transaction conflict")

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
