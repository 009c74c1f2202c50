package dto

import (
	"encoding/json"

	"wallet-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateWalletRequest is the request body for wallet creation.
// An empty body is accepted and means a zero opening balance.
type CreateWalletRequest struct {
	Balance *decimal.Decimal `json:"balance" binding:"omitempty,money,decimal_gte0"`
}

// InitialBalance returns the requested opening balance, zero when absent.
func (r CreateWalletRequest) InitialBalance() decimal.Decimal {
	if r.Balance == nil {
		return decimal.Zero
	}
	return *r.Balance
}

// OperationRequest is the request body for a deposit or withdrawal.
// Amount sign is checked by the service so a non-positive amount is a
// business error (400) rather than a shape error (422).
type OperationRequest struct {
	OperationType string           `json:"operation_type" binding:"required,oneof=DEPOSIT WITHDRAW"`
	Amount        *decimal.Decimal `json:"amount" binding:"required,money"`
}

// Type returns the parsed operation type.
func (r OperationRequest) Type() domain.OperationType {
	return domain.OperationType(r.OperationType)
}

// WalletResponse is the response body for every wallet-returning endpoint.
type WalletResponse struct {
	UUID    string      `json:"uuid"`
	Balance json.Number `json:"balance"`
}

// NewWalletResponse renders a wallet. The balance is written as an exact
// JSON number.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		UUID:    w.ID.String(),
		Balance: json.Number(w.Balance.String()),
	}
}

// HealthResponse is the response body for the health endpoint.
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration"`
}
