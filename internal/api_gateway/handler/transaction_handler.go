package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/api_gateway/middleware"
	"github.com/unifarm-balance-ledger/internal/api_gateway/service"
	"github.com/unifarm-balance-ledger/internal/domain/history"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// TransactionHandler handles HTTP requests for balance mutations and history
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Withdraw applies a synchronous withdrawal and returns the definitive result
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	var req WithdrawalRequest
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

	request := &shared.MutationRequest{
		RequestID:     uuid.New(),
		UserID:        userID,
		Type:          string(ledger.TypeWithdrawal),
		Currency:      shared.Currency(req.Currency),
		Amount:        amount.Neg(),
		ExternalRef:   req.ExternalRef,
		Description:   req.Description,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now(),
	}

	result, err := h.transactionService.Withdraw(c.Request.Context(), request)
	if err != nil {
		h.respondMutationError(c, userID, err)
		return
	}

	response := MutationResponse{Entry: mapEntryToResponse(result.Entry, result.Duplicate)}
	if result.Wallet != nil {
		w := mapWalletToResponse(result.Wallet)
		response.Wallet = &w
	}

	RespondOK(c, response)
}

// SubmitDeposit queues an asynchronous deposit with idempotency support
func (h *TransactionHandler) SubmitDeposit(c *gin.Context) {
	var req DepositRequest
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

	request := &shared.MutationRequest{
		RequestID:     uuid.New(),
		UserID:        req.UserID,
		Type:          req.Type,
		Currency:      shared.Currency(req.Currency),
		Amount:        amount,
		ExternalRef:   req.ExternalRef,
		Description:   req.Description,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now(),
	}

	requestID, existingEntry, err := h.transactionService.SubmitDeposit(c.Request.Context(), request)
	if err != nil {
		h.logger.Error("Failed to submit deposit", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	if existingEntry != nil {
		RespondOK(c, mapEntryToResponse(existingEntry, true))
		return
	}

	RespondAccepted(c, DepositAcceptedResponse{
		RequestID: requestID,
		Status:    string(shared.TransactionStatusPending),
	})
}

// GetHistory retrieves paginated transaction history for a user
func (h *TransactionHandler) GetHistory(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	docs, total, err := h.transactionService.GetHistory(
		c.Request.Context(),
		userID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get history", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	var entries []HistoryEntryResponse
	for _, doc := range docs {
		entries = append(entries, mapHistoryToResponse(doc))
	}

	RespondWithPaginatedData(c, http.StatusOK, entries, pagination.Page, pagination.PerPage, int(total))
}

// respondMutationError maps manager errors to HTTP status codes
func (h *TransactionHandler) respondMutationError(c *gin.Context, userID int64, err error) {
	var errNotFound wallet.ErrWalletNotFound
	switch {
	case errors.As(err, &errNotFound):
		RespondNotFound(c, "Wallet not found")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Balance does not cover the requested debit")
	case errors.Is(err, ledger.ErrUnknownType),
		errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrInvalidCurrency),
		errors.Is(err, ledger.ErrInvalidAmountSign):
		RespondBadRequest(c, err.Error())
	default:
		h.logger.Error("Failed to apply mutation", "user_id", userID, "error", err)
		RespondInternalError(c)
	}
}

// mapEntryToResponse maps a ledger entry to a response DTO
func mapEntryToResponse(entry *ledger.Entry, duplicate bool) EntryResponse {
	response := EntryResponse{
		ID:            entry.ID,
		UserID:        entry.UserID,
		Type:          string(entry.Type),
		Currency:      string(entry.Currency),
		Amount:        entry.Amount.String(),
		Status:        string(entry.Status),
		ExternalRef:   entry.ExternalRef,
		Description:   entry.Description,
		FailureReason: entry.FailureReason,
		Duplicate:     duplicate,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}

	if entry.ProcessedAt != nil {
		response.ProcessedAt = entry.ProcessedAt.Format(time.RFC3339)
	}

	return response
}

// mapHistoryToResponse maps a mirror document to a response DTO
func mapHistoryToResponse(doc *history.Document) HistoryEntryResponse {
	return HistoryEntryResponse{
		LedgerEntryID: doc.LedgerEntryID,
		Type:          string(doc.Type),
		Currency:      string(doc.Currency),
		Amount:        doc.Amount,
		Status:        string(doc.Status),
		Description:   doc.Description,
		CreatedAt:     doc.CreatedAt.Format(time.RFC3339),
	}
}
