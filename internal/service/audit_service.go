package service

import (
	"context"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	log zerolog.Logger
}

// NewAuditService creates an audit service that writes one structured log
// line per state-changing request.
func NewAuditService(log zerolog.Logger) ports.AuditService {
	return &auditService{log: log.With().Str("channel", "audit").Logger()}
}

// Log records an audit entry. Failed requests are logged at warn level.
func (s *auditService) Log(_ context.Context, entry *domain.AuditLog) {
	ev := s.log.Info()
	if !entry.Succeeded() {
		ev = s.log.Warn()
	}
	ev.Str("audit_id", entry.ID.String()).
		Str("request_id", entry.RequestID).
		Str("action", string(entry.Action)).
		Str("wallet_id", entry.WalletID).
		Int("status", entry.StatusCode).
		Str("ip", entry.IPAddress).
		Time("at", entry.CreatedAt).
		Msg("audit")
}
