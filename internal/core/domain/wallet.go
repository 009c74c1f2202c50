package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeBalance is returned when a wallet would be created with a balance below zero.
	ErrNegativeBalance = errors.New("balance must not be negative")
	// ErrNonPositiveAmount is returned for an operation amount that is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInsufficientFunds is returned when a withdrawal exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownOperation is returned for an operation type outside DEPOSIT/WITHDRAW.
	ErrUnknownOperation = errors.New("unknown operation type")
	// ErrBalanceOverflow is returned when a balance would reach MaxBalance.
	ErrBalanceOverflow = errors.New("balance limit exceeded")
)

// BalanceScale is the number of fractional digits stored for a balance.
const BalanceScale = 8

// MaxBalance is the exclusive upper bound of a balance, NUMERIC(20, 8).
var MaxBalance = decimal.New(1, 12)

// Wallet is a single monetary balance. Balance is never negative.
type Wallet struct {
	ID        uuid.UUID       `json:"uuid"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// NewWallet builds a wallet with a fresh ID and the given opening balance.
func NewWallet(initial decimal.Decimal) (*Wallet, error) {
	if initial.IsNegative() {
		return nil, ErrNegativeBalance
	}
	if initial.GreaterThanOrEqual(MaxBalance) {
		return nil, ErrBalanceOverflow
	}
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		Balance:   initial.Round(BalanceScale),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanWithdraw reports whether amount can be taken without going negative.
func (w *Wallet) CanWithdraw(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Apply computes the balance after op. The wallet is left untouched on error.
func (w *Wallet) Apply(op OperationType, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}

	switch op {
	case OperationDeposit:
		next := w.Balance.Add(amount)
		if next.GreaterThanOrEqual(MaxBalance) {
			return decimal.Zero, ErrBalanceOverflow
		}
		return next, nil
	case OperationWithdraw:
		if !w.CanWithdraw(amount) {
			return decimal.Zero, ErrInsufficientFunds
		}
		return w.Balance.Sub(amount), nil
	default:
		return decimal.Zero, ErrUnknownOperation
	}
}
