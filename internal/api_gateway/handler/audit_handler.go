package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unifarm-balance-ledger/internal/api_gateway/service"
	"github.com/unifarm-balance-ledger/internal/auditor"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// AuditHandler handles HTTP requests for reconciliation operations
type AuditHandler struct {
	auditService service.AuditService
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *slog.Logger, auditService service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// AuditUser runs an on-demand reconciliation for one user
func (h *AuditHandler) AuditUser(c *gin.Context) {
	userID, ok := parseUserIDParam(c, h.logger)
	if !ok {
		return
	}

	report, err := h.auditService.AuditUser(c.Request.Context(), userID)
	if err != nil {
		var errNotFound wallet.ErrWalletNotFound
		if errors.As(err, &errNotFound) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to audit user", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapReportToResponse(report))
}

// ListFlags retrieves paginated unresolved audit flags
func (h *AuditHandler) ListFlags(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	flags, err := h.auditService.ListFlags(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list audit flags", "error", err)
		RespondInternalError(c)
		return
	}

	var responses []AuditFlagResponse
	for _, flag := range flags {
		responses = append(responses, mapFlagToResponse(flag))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, len(responses))
}

// ResolveFlag clears an unresolved flag through a compensating entry
func (h *AuditHandler) ResolveFlag(c *gin.Context) {
	var req ResolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	flag, err := h.auditService.ResolveFlag(c.Request.Context(), req.UserID, shared.Currency(req.Currency))
	if err != nil {
		var errNotFound audit.ErrFlagNotFound
		if errors.As(err, &errNotFound) {
			RespondNotFound(c, "No unresolved audit flag for user and currency")
			return
		}
		h.logger.Error("Failed to resolve audit flag", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapFlagToResponse(flag))
}

// mapReportToResponse maps a reconciliation report to a response DTO
func mapReportToResponse(report *auditor.Report) AuditReportResponse {
	response := AuditReportResponse{
		UserID:    report.UserID,
		Divergent: report.Divergent(),
		AuditedAt: report.AuditedAt.Format(time.RFC3339),
	}

	for _, check := range report.Checks {
		response.Checks = append(response.Checks, AuditCheckResponse{
			Currency:  string(check.Currency),
			Expected:  check.Expected.String(),
			Actual:    check.Actual.String(),
			Divergent: check.Divergent,
			Reason:    check.Reason,
		})
	}

	return response
}

// mapFlagToResponse maps an audit flag to a response DTO
func mapFlagToResponse(flag *audit.Flag) AuditFlagResponse {
	response := AuditFlagResponse{
		ID:                flag.ID,
		UserID:            flag.UserID,
		Currency:          string(flag.Currency),
		Expected:          flag.Expected.String(),
		Actual:            flag.Actual.String(),
		Reason:            flag.Reason,
		FlaggedAt:         flag.FlaggedAt.Format(time.RFC3339),
		ResolutionEntryID: flag.ResolutionEntryID,
	}

	if flag.ResolvedAt != nil {
		response.ResolvedAt = flag.ResolvedAt.Format(time.RFC3339)
	}

	return response
}
