package handler

import (
	"errors"
	"net/http"

	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Create handles POST /api/v1/wallets/add.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := bindJSON(c, &req, true); err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), req.InitialBalance())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxWalletID, wallet.ID.String())
	response.Created(c, dto.NewWalletResponse(wallet))
}

// Get handles GET /api/v1/wallets/:uuid.
func (h *WalletHandler) Get(c *gin.Context) {
	id, err := walletID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// Delete handles DELETE /api/v1/wallets/:uuid.
func (h *WalletHandler) Delete(c *gin.Context) {
	id, err := walletID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.walletSvc.DeleteWallet(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Operation handles POST /api/v1/wallets/:uuid/operation.
func (h *WalletHandler) Operation(c *gin.Context) {
	id, err := walletID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.OperationRequest
	if err := bindJSON(c, &req, false); err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.ApplyOperation(c.Request.Context(), domain.Operation{
		WalletID: id,
		Type:     req.Type(),
		Amount:   *req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

func walletID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid wallet UUID")
	}
	return id, nil
}

// bindJSON decodes and validates the request body into dst. With allowEmpty
// a missing body is treated as "{}".
func bindJSON(c *gin.Context, dst interface{}, allowEmpty bool) error {
	if allowEmpty && c.Request.Body == nil {
		return validateStruct(dst)
	}

	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.ErrPayloadTooLarge()
	}
	if allowEmpty && dto.IsEmptyBody(err) {
		return validateStruct(dst)
	}
	return apperror.Validation(dto.ValidationMessage(err))
}

func validateStruct(dst interface{}) error {
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return apperror.Validation(dto.ValidationMessage(err))
	}
	return nil
}
