package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/domain/history"
	"github.com/unifarm-balance-ledger/internal/domain/outbox"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// HistoryPublisher copies outbox messages into the MongoDB history mirror
type HistoryPublisher interface {
	PublishToHistory(ctx context.Context, message *outbox.Message) error
}

// HistoryPublisherImpl implements HistoryPublisher
type HistoryPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	logger      *slog.Logger
}

// NewHistoryPublisher creates a new publisher
func NewHistoryPublisher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	logger *slog.Logger,
) HistoryPublisher {
	return &HistoryPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// PublishToHistory mirrors one committed ledger entry into MongoDB. The
// mirror write is an upsert keyed by ledger entry ID, so a redelivered
// message converges on the same document.
func (p *HistoryPublisherImpl) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetLedgerEntry()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger entry from outbox payload",
			"outbox_id", message.ID, "ledger_entry_id", message.LedgerEntryID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	// Add correlation ID to logger
	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	doc := history.FromEntry(entry)
	if err := p.historyRepo.Upsert(ctx, doc); err != nil {
		logger.Error("Failed to mirror ledger entry to history", "outbox_id", message.ID, "ledger_entry_id", message.LedgerEntryID, "error", err)
		return fmt.Errorf("failed to mirror ledger entry %d: %w", message.LedgerEntryID, err)
	}

	// Mark outbox message as processed
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "ledger_entry_id", message.LedgerEntryID, "error", err,
		)
		return fmt.Errorf("history write for %d OK, but failed to mark outbox %d as PROCESSED: %w", message.LedgerEntryID, message.ID, err)
	}

	logger.Info("Outbox message mirrored to history", "outbox_id", message.ID, "ledger_entry_id", message.LedgerEntryID)
	return nil
}
