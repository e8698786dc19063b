package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MutationRequest describes one requested balance change. It is both the
// argument to the balance manager and the Kafka message for asynchronous
// deposit processing. Amount is signed: positive credits, negative debits.
type MutationRequest struct {
	RequestID     uuid.UUID         `json:"request_id"`
	UserID        int64             `json:"user_id"`
	Type          string            `json:"type"`
	Currency      Currency          `json:"currency"`
	Amount        decimal.Decimal   `json:"amount"`
	ExternalRef   string            `json:"external_ref,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}
