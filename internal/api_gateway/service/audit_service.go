package service

import (
	"context"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/auditor"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// AuditServiceImpl implements the AuditService interface
type AuditServiceImpl struct {
	auditor   *auditor.Auditor
	auditRepo audit.Repository
	logger    *slog.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(logger *slog.Logger, a *auditor.Auditor, auditRepo audit.Repository) AuditService {
	return &AuditServiceImpl{
		auditor:   a,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// AuditUser reconciles one user's snapshots against the ledger on demand
func (s *AuditServiceImpl) AuditUser(ctx context.Context, userID int64) (*auditor.Report, error) {
	return s.auditor.AuditUser(ctx, userID)
}

// ListFlags retrieves paginated unresolved audit flags
func (s *AuditServiceImpl) ListFlags(ctx context.Context, page, perPage int) ([]*audit.Flag, error) {
	offset := (page - 1) * perPage
	return s.auditRepo.ListUnresolved(ctx, perPage, offset)
}

// ResolveFlag clears an unresolved flag through a compensating entry
func (s *AuditServiceImpl) ResolveFlag(ctx context.Context, userID int64, currency shared.Currency) (*audit.Flag, error) {
	return s.auditor.ResolveFlag(ctx, userID, currency)
}
