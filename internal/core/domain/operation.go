package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType is the kind of balance mutation.
type OperationType string

const (
	OperationDeposit  OperationType = "DEPOSIT"
	OperationWithdraw OperationType = "WITHDRAW"
)

// IsValid reports whether t is one of the supported operation types.
func (t OperationType) IsValid() bool {
	return t == OperationDeposit || t == OperationWithdraw
}

func (t OperationType) String() string {
	return string(t)
}

// Operation is a request to change a wallet balance.
type Operation struct {
	WalletID uuid.UUID
	Type     OperationType
	Amount   decimal.Decimal
}
