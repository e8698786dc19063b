package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// Flag records detected drift between a wallet snapshot and the ledger for
// one user/currency. An unresolved flag blocks automated payouts to the
// wallet until a compensating ADJUSTMENT entry resolves it; the flag itself
// never mutates a balance.
type Flag struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Currency          shared.Currency `json:"currency"`
	Expected          decimal.Decimal `json:"expected"`
	Actual            decimal.Decimal `json:"actual"`
	Reason            string          `json:"reason"`
	FlaggedAt         time.Time       `json:"flagged_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
	ResolutionEntryID *int64          `json:"resolution_entry_id,omitempty"`
}

// Divergence is the signed correction that would bring the snapshot back
// to the ledger: expected minus actual.
func (f *Flag) Divergence() decimal.Decimal {
	return f.Expected.Sub(f.Actual)
}

// Resolved reports whether a compensating entry already cleared the flag
func (f *Flag) Resolved() bool {
	return f.ResolvedAt != nil
}

// Repository manages audit flag persistence
type Repository interface {
	// Create inserts a flag; at most one unresolved flag exists per
	// user/currency, enforced by a partial unique index.
	Create(ctx context.Context, flag *Flag) error
	// GetUnresolved returns nil when the user/currency is not flagged.
	GetUnresolved(ctx context.Context, userID int64, currency shared.Currency) (*Flag, error)
	// HasUnresolved reports whether any currency of the user is flagged.
	HasUnresolved(ctx context.Context, userID int64) (bool, error)
	ListUnresolved(ctx context.Context, limit, offset int) ([]*Flag, error)
	// Resolve stamps the flag with the compensating ledger entry that
	// cleared it.
	Resolve(ctx context.Context, id int64, resolutionEntryID int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrFlagNotFound indicates missing audit flag
type ErrFlagNotFound struct {
	ID int64
}

func (e ErrFlagNotFound) Error() string {
	return "audit flag not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrAlreadyFlagged indicates an unresolved flag already covers the pair
type ErrAlreadyFlagged struct {
	UserID   int64
	Currency shared.Currency
}

func (e ErrAlreadyFlagged) Error() string {
	return "unresolved audit flag already exists for user " + strconv.FormatInt(e.UserID, 10) + " currency " + string(e.Currency)
}
