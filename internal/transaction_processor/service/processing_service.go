package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// ProcessingServiceImpl applies queued deposit events through the balance
// manager. Deterministic rejections are recorded as FAILED ledger entries
// and acknowledged; transient errors are returned so Kafka redelivers.
type ProcessingServiceImpl struct {
	manager balance.Manager
	logger  *slog.Logger
}

// NewProcessingService creates a new deposit processing service
func NewProcessingService(manager balance.Manager, logger *slog.Logger) ProcessingService {
	return &ProcessingServiceImpl{
		manager: manager,
		logger:  logger,
	}
}

// ProcessDeposit handles the core logic for applying one deposit event.
func (s *ProcessingServiceImpl) ProcessDeposit(ctx context.Context, request *shared.MutationRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Processing deposit",
		"request_id", request.RequestID.String(),
		"user_id", request.UserID,
		"type", request.Type,
		"amount", request.Amount.String(),
	)

	if reason, ok := s.validate(request); !ok {
		logger.Warn("Deposit rejected by validation",
			"request_id", request.RequestID.String(),
			"user_id", request.UserID,
			"reason", string(reason),
		)
		if recordErr := s.manager.RecordFailure(ctx, request, string(reason)); recordErr != nil {
			logger.Error("Failed to record deposit failure", "request_id", request.RequestID.String(), "error", recordErr)
		}
		return nil // Acknowledge the message
	}

	result, err := s.manager.ApplyDelta(ctx, request)
	if err != nil {
		var errNotFound wallet.ErrWalletNotFound
		if errors.As(err, &errNotFound) {
			if recordErr := s.manager.RecordFailure(ctx, request, string(shared.FailureReasonWalletNotFound)); recordErr != nil {
				logger.Error("Failed to record wallet not found failure", "request_id", request.RequestID.String(), "error", recordErr)
			}
			return nil // Acknowledge the message
		}

		// Transient failures propagate for redelivery.
		logger.Error("Failed to apply deposit",
			"request_id", request.RequestID.String(),
			"user_id", request.UserID,
			"error", err,
		)
		return fmt.Errorf("applying deposit %s failed: %w", request.RequestID.String(), err)
	}

	if result.Duplicate {
		logger.Info("Deposit already applied",
			"request_id", request.RequestID.String(),
			"external_ref", request.ExternalRef,
			"ledger_entry_id", result.Entry.ID,
		)
		return nil
	}

	logger.Info("Deposit applied",
		"request_id", request.RequestID.String(),
		"user_id", request.UserID,
		"ledger_entry_id", result.Entry.ID,
	)
	return nil
}

// validate performs the deterministic checks that can never succeed on
// retry: type, sign, currency and the external ref requirement.
func (s *ProcessingServiceImpl) validate(request *shared.MutationRequest) (shared.FailureReason, bool) {
	txType, err := ledger.ParseType(request.Type)
	if err != nil {
		return shared.FailureReasonInvalidType, false
	}
	if txType.RequiredSign() != 1 {
		// Only credit types arrive through the deposit pipeline.
		return shared.FailureReasonInvalidType, false
	}
	if !request.Currency.Valid() {
		return shared.FailureReasonInvalidAmount, false
	}
	if !request.Amount.IsPositive() {
		return shared.FailureReasonInvalidAmount, false
	}
	if request.ExternalRef == "" {
		// Without a ref an at-least-once redelivery would double-credit.
		return shared.FailureReasonUnknownError, false
	}
	return "", true
}
