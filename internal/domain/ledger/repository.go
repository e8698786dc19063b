package ledger

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// Repository manages the authoritative append-only ledger in Postgres.
// Entries are inserted inside the same database transaction as the wallet
// snapshot mutation they describe; completed entries are never updated.
type Repository interface {
	// Create inserts the entry and fills in its generated ID.
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	// GetByExternalRef returns nil when no entry carries the ref.
	GetByExternalRef(ctx context.Context, externalRef string) (*Entry, error)
	// SumCompletedByUser recomputes the expected balance for one
	// user/currency as the sum of signed COMPLETED amounts. ADJUSTMENT
	// entries are excluded: they correct the snapshot toward the ledger,
	// so counting them in the baseline would move the target with every
	// compensation.
	SumCompletedByUser(ctx context.Context, userID int64, currency shared.Currency) (decimal.Decimal, error)
	// SumCompletedByUserAndTypes sums COMPLETED amounts restricted to the
	// given types, used to reconcile derived aggregates such as boost
	// deposit totals.
	SumCompletedByUserAndTypes(ctx context.Context, userID int64, currency shared.Currency, types []TransactionType) (decimal.Decimal, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	ID int64
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + strconv.FormatInt(e.ID, 10)
}

// Is matches any ErrEntryNotFound when the target carries a zero ID
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.ID == 0 || t.ID == e.ID
}
