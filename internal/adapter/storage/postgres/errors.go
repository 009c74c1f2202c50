package postgres

import (
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeLockNotAvailable = "55P03"
	codeQueryCanceled    = "57014"
	codeNumericOverflow  = "22003"
)

// classify tags lock-wait failures with ports.ErrLockTimeout and balance
// column overflow with domain.ErrBalanceOverflow so the service layer can
// tell them apart from other storage errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeQueryCanceled:
			return fmt.Errorf("%w: %w", ports.ErrLockTimeout, err)
		case codeNumericOverflow:
			return fmt.Errorf("%w: %w", domain.ErrBalanceOverflow, err)
		}
	}
	return err
}
