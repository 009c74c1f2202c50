package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/core/ports/mocks"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	transactor *mocks.MockDBTransactor
	metrics    *metrics.Metrics
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		metrics:    metrics.New(),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(d.walletRepo, d.transactor, d.metrics, time.Second, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing and records how it was finished.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

// ==================== CreateWallet ====================

func TestWalletService_CreateWallet_Success(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet) error {
			assert.NotEqual(t, uuid.Nil, w.ID)
			assert.True(t, dec("100").Equal(w.Balance))
			return nil
		},
	)

	wallet, err := d.svc.CreateWallet(ctx, dec("100"))
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(wallet.Balance))
}

func TestWalletService_CreateWallet_Negative(t *testing.T) {
	d := setupWalletService(t)

	_, err := d.svc.CreateWallet(context.Background(), dec("-10"))
	assertAppError(t, err, apperror.CodeValidation)
}

func TestWalletService_CreateWallet_AtBalanceLimit(t *testing.T) {
	d := setupWalletService(t)

	_, err := d.svc.CreateWallet(context.Background(), dec("1000000000000"))
	assertAppError(t, err, apperror.CodeValidation)
}

func TestWalletService_CreateWallet_StorageError(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("disk full"))

	_, err := d.svc.CreateWallet(ctx, decimal.Zero)
	assertAppError(t, err, apperror.CodeInternal)
}

// ==================== GetWallet ====================

func TestWalletService_GetWallet(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	id := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, id).Return(&domain.Wallet{ID: id, Balance: dec("7")}, nil)

	wallet, err := d.svc.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, wallet.ID)
}

func TestWalletService_GetWallet_NotFound(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	id := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.GetWallet(ctx, id)
	assertAppError(t, err, apperror.CodeNotFound)
}

func TestWalletService_GetWallet_StorageError(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	id := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, id).Return(nil, errors.New("conn refused"))

	_, err := d.svc.GetWallet(ctx, id)
	assertAppError(t, err, apperror.CodeInternal)
}

// ==================== ApplyOperation ====================

func TestWalletService_ApplyOperation(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		op      domain.OperationType
		amount  string
		want    string
	}{
		{"deposit", "100", domain.OperationDeposit, "20", "120"},
		{"withdraw", "100", domain.OperationWithdraw, "30", "70"},
		{"withdraw to zero", "151", domain.OperationWithdraw, "151", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupWalletService(t)
			id := uuid.New()
			tx := &mockTx{}

			gomock.InOrder(
				d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil),
				d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
					Return(&domain.Wallet{ID: id, Balance: dec(tt.balance)}, nil),
				d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, id, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, b decimal.Decimal) error {
						assert.True(t, dec(tt.want).Equal(b), "persisted %s want %s", b, tt.want)
						return nil
					}),
			)

			wallet, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
				WalletID: id, Type: tt.op, Amount: dec(tt.amount),
			})
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(wallet.Balance))
			assert.True(t, tx.committed)
			assert.Equal(t, 1.0, operationCount(t, d.metrics, tt.op, metrics.OutcomeSuccess))
		})
	}
}

func TestWalletService_ApplyOperation_InvalidAmount_NoTransaction(t *testing.T) {
	for _, amount := range []string{"0", "-5", "-0.00000001"} {
		t.Run(amount, func(t *testing.T) {
			d := setupWalletService(t)
			// No transactor/repository expectations: any call fails the test.

			_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
				WalletID: uuid.New(), Type: domain.OperationDeposit, Amount: dec(amount),
			})
			assertAppError(t, err, apperror.CodeInvalidAmount)
		})
	}
}

func TestWalletService_ApplyOperation_InvalidType(t *testing.T) {
	d := setupWalletService(t)

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: uuid.New(), Type: "TRANSFER", Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestWalletService_ApplyOperation_NotFound(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(nil, nil)

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeNotFound)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestWalletService_ApplyOperation_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(&domain.Wallet{ID: id, Balance: dec("151")}, nil)
	// UpdateBalance must not be called.

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationWithdraw, Amount: dec("200"),
	})
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.True(t, tx.rolledBack)
	assert.Equal(t, 1.0, operationCount(t, d.metrics, domain.OperationWithdraw, metrics.OutcomeInsufficient))
}

func TestWalletService_ApplyOperation_BalanceLimit(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(&domain.Wallet{ID: id, Balance: dec("999999999999")}, nil)
	// UpdateBalance must not be called.

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("999999999999"),
	})
	assertAppError(t, err, apperror.CodeBalanceLimit)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
	assert.Equal(t, 1.0, operationCount(t, d.metrics, domain.OperationDeposit, metrics.OutcomeBalanceLimit))
}

func TestWalletService_ApplyOperation_StorageOverflow(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(&domain.Wallet{ID: id, Balance: dec("10")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, id, gomock.Any()).
		Return(fmt.Errorf("update wallet balance: %w", domain.ErrBalanceOverflow))

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeBalanceLimit)
	assert.True(t, tx.rolledBack)
}

func TestWalletService_ApplyOperation_LockTimeout(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(nil, ports.ErrLockTimeout)

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeLockTimeout)
	assert.True(t, tx.rolledBack)
}

func TestWalletService_ApplyOperation_UpdateFails(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(&domain.Wallet{ID: id, Balance: dec("10")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, id, gomock.Any()).
		Return(errors.New("connection lost"))

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeInternal)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestWalletService_ApplyOperation_CommitFails(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{commitErr: errors.New("serialization failure")}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).
		Return(&domain.Wallet{ID: id, Balance: dec("10")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, id, gomock.Any()).Return(nil)

	wallet, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assert.Nil(t, wallet)
	assertAppError(t, err, apperror.CodeInternal)
	assert.True(t, tx.rolledBack)
}

func TestWalletService_ApplyOperation_BeginFails(t *testing.T) {
	d := setupWalletService(t)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))

	_, err := d.svc.ApplyOperation(context.Background(), domain.Operation{
		WalletID: uuid.New(), Type: domain.OperationDeposit, Amount: dec("1"),
	})
	assertAppError(t, err, apperror.CodeInternal)
}

func TestWalletService_ApplyOperation_SurvivesRequestCancellation(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	ctx, cancel := context.WithCancel(context.Background())

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).DoAndReturn(
		func(txCtx context.Context, _ pgx.Tx, _ uuid.UUID) (*domain.Wallet, error) {
			cancel() // client goes away while we hold the lock
			assert.NoError(t, txCtx.Err(), "transaction context must outlive the request")
			_, hasDeadline := txCtx.Deadline()
			assert.True(t, hasDeadline, "transaction context must be bounded")
			return &domain.Wallet{ID: id, Balance: dec("5")}, nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, id, gomock.Any()).Return(nil)

	wallet, err := d.svc.ApplyOperation(ctx, domain.Operation{
		WalletID: id, Type: domain.OperationDeposit, Amount: dec("5"),
	})
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(wallet.Balance))
	assert.True(t, tx.committed)
}

// ==================== DeleteWallet ====================

func TestWalletService_DeleteWallet(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	gomock.InOrder(
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil),
		d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(&domain.Wallet{ID: id}, nil),
		d.walletRepo.EXPECT().Delete(gomock.Any(), tx, id).Return(true, nil),
	)

	require.NoError(t, d.svc.DeleteWallet(context.Background(), id))
	assert.True(t, tx.committed)
}

func TestWalletService_DeleteWallet_NotFound(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(nil, nil)

	err := d.svc.DeleteWallet(context.Background(), id)
	assertAppError(t, err, apperror.CodeNotFound)
	assert.True(t, tx.rolledBack)
}

func TestWalletService_DeleteWallet_StorageError(t *testing.T) {
	d := setupWalletService(t)
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(&domain.Wallet{ID: id}, nil)
	d.walletRepo.EXPECT().Delete(gomock.Any(), tx, id).Return(false, errors.New("boom"))

	err := d.svc.DeleteWallet(context.Background(), id)
	assertAppError(t, err, apperror.CodeInternal)
	assert.False(t, tx.committed)
}

func TestNewWalletService_DefaultTimeout(t *testing.T) {
	svc := NewWalletService(nil, nil, nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultTxTimeout, svc.txTimeout)
}

func operationCount(t *testing.T, m *metrics.Metrics, op domain.OperationType, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "wallet_engine_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["type"] == string(op) && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
