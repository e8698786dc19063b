package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unifarm-balance-ledger/internal/api_gateway/service"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// WalletHandler handles HTTP requests for wallet operations
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// Create registers a wallet for a new user
func (h *WalletHandler) Create(c *gin.Context) {
	var req CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	w, err := h.walletService.CreateWallet(c.Request.Context(), req.UserID, req.ReferredBy)
	if err != nil {
		var errDuplicate wallet.ErrDuplicateWallet
		if errors.As(err, &errDuplicate) {
			RespondConflict(c, "Wallet already exists for user")
			return
		}
		if errors.Is(err, wallet.ErrInvalidUserID) {
			RespondBadRequest(c, "Invalid user ID")
			return
		}
		h.logger.Error("Failed to create wallet", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapWalletToResponse(w))
}

// GetByUserID retrieves the balance snapshot for a user
func (h *WalletHandler) GetByUserID(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		var errNotFound wallet.ErrWalletNotFound
		if errors.As(err, &errNotFound) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get wallet", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// parseUserIDParam extracts and validates the user_id path parameter
func parseUserIDParam(c *gin.Context, logger *slog.Logger) (int64, bool) {
	idParam := c.Param("user_id")
	userID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || userID <= 0 {
		logger.Error("Invalid user ID", "user_id", idParam)
		RespondBadRequest(c, "Invalid user ID")
		return 0, false
	}
	return userID, true
}

// mapWalletToResponse maps a wallet to a response DTO
func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		UserID:     w.UserID,
		ReferredBy: w.ReferredBy,
		BalanceUni: w.BalanceUni.String(),
		BalanceTon: w.BalanceTon.String(),
		CreatedAt:  w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  w.UpdatedAt.Format(time.RFC3339),
	}
}
