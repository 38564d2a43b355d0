package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert or update violates a unique constraint
var ErrDuplicate = errors.New("duplicate key")

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a PostgreSQL unique constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// translateError maps driver errors to repository sentinels, keeping the cause
func translateError(err error) error {
	if IsUniqueViolation(err) && !errors.Is(err, ErrDuplicate) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
