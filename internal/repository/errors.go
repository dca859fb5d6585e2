package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/catalogops/price-sync/internal/apperr"
)

// storeErr classifies a store failure. A *pgconn.PgError means the server
// processed the statement and rejected it; anything else (dial failures,
// closed pools, timeouts) means the store could not be reached, and callers
// may retry once it is back.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.StoreUnavailableErr.WrapParent(fmt.Errorf("%s: %w", op, err))
}
