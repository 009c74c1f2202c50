package middleware

import (
	"net/http"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records every state-changing wallet request, successful or not.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		walletID := c.Param("uuid")
		if id, exists := c.Get(CtxWalletID); exists {
			if s, ok := id.(string); ok {
				walletID = s
			}
		}

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:         uuid.New(),
			RequestID:  c.GetString(response.RequestIDKey),
			Action:     action,
			WalletID:   walletID,
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
			CreatedAt:  time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) domain.AuditAction {
	switch {
	case route == "/api/v1/wallets/add" && method == http.MethodPost:
		return domain.AuditActionCreateWallet
	case route == "/api/v1/wallets/:uuid" && method == http.MethodDelete:
		return domain.AuditActionDeleteWallet
	case route == "/api/v1/wallets/:uuid/operation" && method == http.MethodPost:
		return domain.AuditActionOperation
	}
	return ""
}
