package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate wraps inserts rejected by a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
