package sqlstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

// Postgres SQLSTATE codes that are mapped onto domain errors.
const (
	pgUniqueViolation        = "23505"
	pgInvalidTextRepr        = "22P02"
	pgNumericValueOutOfRange = "22003"
	pgInvalidDatetimeFormat  = "22007"
	pgDatatypeMismatch       = "42804"
)

// classifyError maps driver errors onto domain sentinels. The driver error stays in the
// chain; anything unrecognised is returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", domain.ErrDuplicateSlug, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", domain.ErrDuplicateSlug, err)
		case pgInvalidTextRepr, pgNumericValueOutOfRange, pgInvalidDatetimeFormat, pgDatatypeMismatch:
			return fmt.Errorf("%w: %w", domain.ErrTypeCast, err)
		}
		return err
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", domain.ErrDuplicateSlug, err)
	}
	return err
}
