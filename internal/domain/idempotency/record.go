// Package idempotency guards against duplicate application of externally
// sourced events: blockchain deposit hashes, scheduler reward ticks and
// referral fan-out keys. A record is created atomically with the ledger
// entry it protects; the unique constraint on the external ref is the
// backstop for concurrent attempts.
package idempotency

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Record ties an external ref to the ledger entry it produced
type Record struct {
	ExternalRef   string    `json:"external_ref"`
	LedgerEntryID int64     `json:"ledger_entry_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository manages idempotency record persistence
type Repository interface {
	// Create inserts the record; returns ErrDuplicateRef when the external
	// ref was already reserved by a prior mutation.
	Create(ctx context.Context, record *Record) error
	// GetByExternalRef returns nil when the ref has not been seen.
	GetByExternalRef(ctx context.Context, externalRef string) (*Record, error)
	// PruneOlderThan deletes records past the retention window.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateRef indicates the external ref was already applied
type ErrDuplicateRef struct {
	ExternalRef string
}

func (e ErrDuplicateRef) Error() string {
	return "external ref already applied: " + e.ExternalRef
}

// Is matches any ErrDuplicateRef when the target carries an empty ref
func (e ErrDuplicateRef) Is(target error) bool {
	t, ok := target.(ErrDuplicateRef)
	if !ok {
		return false
	}
	return t.ExternalRef == "" || t.ExternalRef == e.ExternalRef
}
