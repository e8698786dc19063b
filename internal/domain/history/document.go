package history

import (
	"context"
	"strconv"
	"time"

	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// Document is the MongoDB projection of a committed ledger entry. The
// mirror is read-only for clients; PostgreSQL stays authoritative and the
// outbox poller replays entries here, so amounts are carried as strings to
// avoid any float round-trip.
type Document struct {
	LedgerEntryID int64                    `bson:"ledger_entry_id" json:"ledger_entry_id"`
	UserID        int64                    `bson:"user_id" json:"user_id"`
	Type          ledger.TransactionType   `bson:"type" json:"type"`
	Currency      shared.Currency          `bson:"currency" json:"currency"`
	Amount        string                   `bson:"amount" json:"amount"`
	Status        shared.TransactionStatus `bson:"status" json:"status"`
	ExternalRef   string                   `bson:"external_ref,omitempty" json:"external_ref,omitempty"`
	Description   string                   `bson:"description" json:"description"`
	Metadata      map[string]string        `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CorrelationID string                   `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	FailureReason string                   `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `bson:"created_at" json:"created_at"`
	ProcessedAt   *time.Time               `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	MirroredAt    time.Time                `bson:"mirrored_at" json:"mirrored_at"`
}

// FromEntry projects a ledger entry into its mirror document
func FromEntry(entry *ledger.Entry) *Document {
	return &Document{
		LedgerEntryID: entry.ID,
		UserID:        entry.UserID,
		Type:          entry.Type,
		Currency:      entry.Currency,
		Amount:        entry.Amount.String(),
		Status:        entry.Status,
		ExternalRef:   entry.ExternalRef,
		Description:   entry.Description,
		Metadata:      entry.Metadata,
		CorrelationID: entry.CorrelationID,
		FailureReason: entry.FailureReason,
		CreatedAt:     entry.CreatedAt,
		ProcessedAt:   entry.ProcessedAt,
		MirroredAt:    time.Now(),
	}
}

// Repository manages the transaction history mirror
type Repository interface {
	// Upsert writes the document keyed by ledger entry ID. Replaying the
	// same outbox message twice leaves a single document.
	Upsert(ctx context.Context, doc *Document) error
	GetByLedgerEntryID(ctx context.Context, ledgerEntryID int64) (*Document, error)
	// GetByUserID returns entries newest first.
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Document, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
}

// ErrDocumentNotFound indicates missing history document
type ErrDocumentNotFound struct {
	LedgerEntryID int64
}

func (e ErrDocumentNotFound) Error() string {
	return "history document not found for ledger entry: " + strconv.FormatInt(e.LedgerEntryID, 10)
}

// Is matches any ErrDocumentNotFound when the target carries a zero ID
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	return t.LedgerEntryID == 0 || t.LedgerEntryID == e.LedgerEntryID
}
