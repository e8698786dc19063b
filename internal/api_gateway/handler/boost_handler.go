package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/api_gateway/service"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// BoostHandler handles HTTP requests for boost package operations
type BoostHandler struct {
	boostService service.BoostService
	logger       *slog.Logger
}

// NewBoostHandler creates a new boost handler
func NewBoostHandler(logger *slog.Logger, boostService service.BoostService) *BoostHandler {
	return &BoostHandler{
		boostService: boostService,
		logger:       logger,
	}
}

// ListPackages lists the purchasable boost tiers
func (h *BoostHandler) ListPackages(c *gin.Context) {
	var packages []BoostPackageResponse
	for _, pkg := range h.boostService.Packages() {
		packages = append(packages, BoostPackageResponse{
			ID:         pkg.ID,
			Name:       pkg.Name,
			DailyRate:  pkg.DailyRate.String(),
			MinDeposit: pkg.MinDeposit.String(),
		})
	}

	RespondOK(c, packages)
}

// Purchase debits the package price and activates the user's position
func (h *BoostHandler) Purchase(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	var req PurchaseBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		RespondBadRequest(c, "Amount must be a positive decimal string")
		return
	}

	result, position, err := h.boostService.Purchase(c.Request.Context(), userID, req.PackageID, amount, req.ExternalRef)
	if err != nil {
		var errNotFound wallet.ErrWalletNotFound
		switch {
		case errors.Is(err, boost.ErrUnknownPackage):
			RespondBadRequest(c, "Unknown boost package")
		case errors.Is(err, boost.ErrDepositBelowMin):
			RespondBadRequest(c, "Deposit below package minimum")
		case errors.As(err, &errNotFound):
			RespondNotFound(c, "Wallet not found")
		case errors.Is(err, wallet.ErrInsufficientFunds):
			RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Balance does not cover the package price")
		default:
			h.logger.Error("Failed to purchase boost", "user_id", userID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	response := PurchaseBoostResponse{
		Entry:    mapEntryToResponse(result.Entry, result.Duplicate),
		Position: mapPositionToResponse(position),
	}

	if result.Duplicate {
		RespondOK(c, response)
		return
	}
	RespondCreated(c, response)
}

// GetPosition retrieves the user's boost position
func (h *BoostHandler) GetPosition(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	position, err := h.boostService.GetPosition(c.Request.Context(), userID)
	if err != nil {
		var errNotFound boost.ErrPositionNotFound
		if errors.As(err, &errNotFound) {
			RespondNotFound(c, "Boost position not found")
			return
		}
		h.logger.Error("Failed to get boost position", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapPositionToResponse(position))
}

// Deactivate stops income on the user's position
func (h *BoostHandler) Deactivate(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	if err := h.boostService.Deactivate(c.Request.Context(), userID); err != nil {
		var errNotFound boost.ErrPositionNotFound
		if errors.As(err, &errNotFound) {
			RespondNotFound(c, "Boost position not found")
			return
		}
		h.logger.Error("Failed to deactivate boost position", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"user_id": userID, "active": false})
}

// mapPositionToResponse maps a boost position to a response DTO
func mapPositionToResponse(position *boost.Position) BoostPositionResponse {
	return BoostPositionResponse{
		UserID:        position.UserID,
		PackageID:     position.PackageID,
		DepositAmount: position.DepositAmount.String(),
		DailyRate:     position.DailyRate.String(),
		Active:        position.Active,
		ActivatedAt:   position.ActivatedAt.Format(time.RFC3339),
	}
}
