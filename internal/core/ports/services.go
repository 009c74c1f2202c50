package ports

import (
	"context"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// WalletService defines the wallet business logic.
type WalletService interface {
	CreateWallet(ctx context.Context, initialBalance decimal.Decimal) (*domain.Wallet, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	DeleteWallet(ctx context.Context, id uuid.UUID) error
	// ApplyOperation runs a deposit or withdrawal under the wallet's row lock.
	ApplyOperation(ctx context.Context, op domain.Operation) (*domain.Wallet, error)
}

// AuditService records state-changing requests.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
