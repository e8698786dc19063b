package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/platform/messaging/producers"
	"github.com/unifarm-balance-ledger/internal/transaction_processor/service"
)

// DepositEventHandler handles incoming deposit event messages from Kafka
type DepositEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewDepositEventHandler creates a new handler
func NewDepositEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *DepositEventHandler {
	return &DepositEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *DepositEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.MutationRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal deposit event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received deposit event for processing",
		"request_id", request.RequestID.String(),
		"user_id", request.UserID,
		"type", request.Type,
		"amount", request.Amount.String(),
	)

	if err := h.processingService.ProcessDeposit(ctx, &request); err != nil {
		logger.Error("Failed to process deposit event",
			"request_id", request.RequestID.String(),
			"user_id", request.UserID,
			"error", err,
		)
		return fmt.Errorf("processing deposit %s failed: %w", request.RequestID.String(), err)
	}

	logger.Info("Successfully processed deposit event", "request_id", request.RequestID.String())
	return nil // Success, commit offset
}
