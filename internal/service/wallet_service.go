package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const entityWallet = "Wallet"

// DefaultTxTimeout bounds a mutation transaction when none is configured.
const DefaultTxTimeout = 10 * time.Second

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	metrics    *metrics.Metrics
	txTimeout  time.Duration
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. m may be nil.
func NewWalletService(
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	m *metrics.Metrics,
	txTimeout time.Duration,
	log zerolog.Logger,
) *WalletServiceImpl {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		transactor: transactor,
		metrics:    m,
		txTimeout:  txTimeout,
		log:        log,
	}
}

// CreateWallet persists a new wallet with the given opening balance.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, initialBalance decimal.Decimal) (*domain.Wallet, error) {
	wallet, err := domain.NewWallet(initialBalance)
	if errors.Is(err, domain.ErrBalanceOverflow) {
		return nil, apperror.Validation("Balance must be below 10^12")
	}
	if err != nil {
		return nil, apperror.Validation("Balance must be a non-negative number")
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, s.storageError("create wallet", err)
	}

	s.metrics.IncWalletEvent("created")
	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("balance", wallet.Balance.String()).
		Msg("wallet created")

	return wallet, nil
}

// GetWallet returns the committed state of a wallet.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageError("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound(entityWallet)
	}
	return wallet, nil
}

// DeleteWallet removes a wallet. It takes the row lock first, so an
// operation already holding the lock finishes before the delete proceeds,
// and any operation queued behind the delete sees NotFound.
func (s *WalletServiceImpl) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	err := s.inTx(ctx, func(txCtx context.Context, dbTx pgx.Tx) error {
		wallet, err := s.lock(txCtx, dbTx, id)
		if err != nil {
			return err
		}
		if wallet == nil {
			return apperror.ErrNotFound(entityWallet)
		}

		deleted, err := s.walletRepo.Delete(txCtx, dbTx, id)
		if err != nil {
			return s.storageError("delete wallet", err)
		}
		if !deleted {
			return apperror.ErrNotFound(entityWallet)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncWalletEvent("deleted")
	s.log.Info().Str("wallet_id", id.String()).Msg("wallet deleted")
	return nil
}

// ApplyOperation implements the deposit/withdraw protocol with pessimistic locking:
// lock the row, apply the rule, persist, commit. Any failure rolls back.
func (s *WalletServiceImpl) ApplyOperation(ctx context.Context, op domain.Operation) (*domain.Wallet, error) {
	if !op.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !op.Type.IsValid() {
		return nil, apperror.Validation("Operation type must be DEPOSIT or WITHDRAW")
	}

	var result *domain.Wallet
	err := s.inTx(ctx, func(txCtx context.Context, dbTx pgx.Tx) error {
		wallet, err := s.lock(txCtx, dbTx, op.WalletID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return apperror.ErrNotFound(entityWallet)
		}

		newBalance, err := wallet.Apply(op.Type, op.Amount)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInsufficientFunds):
				return apperror.ErrInsufficientFunds()
			case errors.Is(err, domain.ErrBalanceOverflow):
				return apperror.ErrBalanceLimit()
			}
			return apperror.InternalError(fmt.Errorf("apply %s: %w", op.Type, err))
		}

		if err := s.walletRepo.UpdateBalance(txCtx, dbTx, wallet.ID, newBalance); err != nil {
			return s.storageError("update balance", err)
		}

		wallet.Balance = newBalance
		wallet.UpdatedAt = time.Now().UTC()
		result = wallet
		return nil
	})

	s.metrics.ObserveOperation(op.Type.String(), outcome(err))
	if err != nil {
		s.log.Debug().
			Err(err).
			Str("wallet_id", op.WalletID.String()).
			Str("operation", op.Type.String()).
			Str("amount", op.Amount.String()).
			Msg("operation rejected")
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", result.ID.String()).
		Str("operation", op.Type.String()).
		Str("amount", op.Amount.String()).
		Str("balance", result.Balance.String()).
		Msg("operation applied")

	return result, nil
}

// inTx runs fn inside a transaction and commits when fn succeeds.
// The transaction is detached from ctx cancellation and bounded by txTimeout
// instead, so a client going away never leaves a half-finished transaction
// holding a row lock.
func (s *WalletServiceImpl) inTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return s.storageError("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	if err := fn(txCtx, dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(txCtx); err != nil {
		return s.storageError("commit tx", err)
	}
	return nil
}

func (s *WalletServiceImpl) lock(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	start := time.Now()
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, id)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, s.storageError("lock wallet", err)
	}
	return wallet, nil
}

// storageError converts an adapter error into an AppError.
func (s *WalletServiceImpl) storageError(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, domain.ErrBalanceOverflow) {
		return apperror.ErrBalanceLimit()
	}
	if errors.Is(err, ports.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn().Err(err).Msg("wallet lock timeout")
		return apperror.ErrLockTimeout(err)
	}
	s.log.Error().Err(err).Msg("storage failure")
	return apperror.InternalError(err)
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return metrics.OutcomeError
	}
	switch appErr.Code {
	case apperror.CodeInsufficientFunds:
		return metrics.OutcomeInsufficient
	case apperror.CodeNotFound:
		return metrics.OutcomeNotFound
	case apperror.CodeLockTimeout:
		return metrics.OutcomeLockTimeout
	case apperror.CodeBalanceLimit:
		return metrics.OutcomeBalanceLimit
	default:
		return metrics.OutcomeError
	}
}

var _ ports.WalletService = (*WalletServiceImpl)(nil)
