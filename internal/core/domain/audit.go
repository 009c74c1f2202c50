package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet AuditAction = "CREATE_WALLET"
	AuditActionDeleteWallet AuditAction = "DELETE_WALLET"
	AuditActionOperation    AuditAction = "WALLET_OPERATION"
)

// AuditLog records a single state-changing request.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	RequestID  string      `json:"request_id"`
	Action     AuditAction `json:"action"`
	WalletID   string      `json:"wallet_id,omitempty"`
	StatusCode int         `json:"status_code"`
	IPAddress  string      `json:"ip_address"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Succeeded reports whether the audited request completed with a 2xx status.
func (a *AuditLog) Succeeded() bool {
	return a.StatusCode >= 200 && a.StatusCode < 300
}
