package sqlstore

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
)

// pqUniqueViolation is the SQLSTATE of unique_violation
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// classify maps driver errors onto application error kinds
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return apperrors.ConstraintViolation(op, err, "unique constraint violated")
	}
	return apperrors.Persistence(op, err)
}
