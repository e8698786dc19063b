package service

import (
	"context"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/history"
	"github.com/unifarm-balance-ledger/internal/domain/idempotency"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/platform/messaging/producers"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	manager     balance.Manager
	idemRepo    idempotency.Repository
	ledgerRepo  ledger.Repository
	historyRepo history.Repository
	producer    producers.MessagePublisher
	logger      *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	logger *slog.Logger,
	manager balance.Manager,
	idemRepo idempotency.Repository,
	ledgerRepo ledger.Repository,
	historyRepo history.Repository,
	producer producers.MessagePublisher,
) TransactionService {
	return &TransactionServiceImpl{
		manager:     manager,
		idemRepo:    idemRepo,
		ledgerRepo:  ledgerRepo,
		historyRepo: historyRepo,
		producer:    producer,
		logger:      logger,
	}
}

// Withdraw applies a synchronous withdrawal debit through the balance
// manager so the caller gets the definitive outcome in the response.
func (s *TransactionServiceImpl) Withdraw(ctx context.Context, request *shared.MutationRequest) (*balance.Result, error) {
	result, err := s.manager.ApplyDelta(ctx, request)
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Info("Withdrawal already applied",
			"user_id", request.UserID,
			"external_ref", request.ExternalRef,
			"ledger_entry_id", result.Entry.ID,
		)
	}

	return result, nil
}

// SubmitDeposit queues an asynchronous deposit for processing, supporting
// idempotency via the external ref. Returns the request ID, the existing
// ledger entry when the ref was already applied, and any error.
func (s *TransactionServiceImpl) SubmitDeposit(ctx context.Context, request *shared.MutationRequest) (string, *ledger.Entry, error) {
	if request.ExternalRef != "" {
		record, err := s.idemRepo.GetByExternalRef(ctx, request.ExternalRef)
		if err != nil {
			s.logger.Error("Failed to check for existing deposit",
				"external_ref", request.ExternalRef,
				"error", err,
			)
			return "", nil, err
		}

		if record != nil {
			existingEntry, err := s.ledgerRepo.GetByID(ctx, record.LedgerEntryID)
			if err != nil {
				return "", nil, err
			}
			s.logger.Info("Found existing deposit for external ref",
				"external_ref", request.ExternalRef,
				"ledger_entry_id", existingEntry.ID,
				"status", string(existingEntry.Status),
			)
			return request.RequestID.String(), existingEntry, nil
		}
	}

	key := request.RequestID.String()
	if err := s.producer.Publish(ctx, key, request); err != nil {
		s.logger.Error("Failed to publish deposit request",
			"user_id", request.UserID,
			"type", request.Type,
			"amount", request.Amount.String(),
			"error", err,
		)
		return "", nil, err
	}

	s.logger.Info("Deposit request published",
		"request_id", request.RequestID,
		"user_id", request.UserID,
		"type", request.Type,
		"amount", request.Amount.String(),
	)

	return request.RequestID.String(), nil, nil
}

// GetHistory retrieves paginated transaction history from the mirror.
// Returns documents, total count, and any error.
func (s *TransactionServiceImpl) GetHistory(ctx context.Context, userID int64, page, perPage int) ([]*history.Document, int64, error) {
	offset := (page - 1) * perPage

	docs, err := s.historyRepo.GetByUserID(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}
