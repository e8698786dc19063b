package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
)

const ledgerColumns = `id, user_id, type, currency, amount::text, status, external_ref, description, metadata, correlation_id, failure_reason, created_at, processed_at`

// LedgerRepository implements the ledger.Repository interface for
// PostgreSQL. The ledger_entries table is append-only: entries are inserted
// in their terminal status inside the balance mutation transaction and are
// never updated afterwards.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the ledger insert is
// atomic with the snapshot mutation it records.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts the entry and fills in its generated monotonic ID
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (user_id, type, currency, amount, status, external_ref, description, metadata, correlation_id, failure_reason, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry metadata: %w", err)
	}

	err = r.querier.QueryRow(ctx, query,
		entry.UserID,
		entry.Type,
		entry.Currency,
		entry.Amount.String(),
		entry.Status,
		entry.ExternalRef,
		entry.Description,
		metadata,
		entry.CorrelationID,
		entry.FailureReason,
		entry.CreatedAt,
		entry.ProcessedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to create ledger entry", "user_id", entry.UserID, "type", entry.Type, "error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := r.scanEntry(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{ID: id}
		}
		r.logger.Error("Failed to get ledger entry", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// GetByExternalRef retrieves the entry recorded for an external ref.
// Returns nil when no entry carries the ref.
func (r *LedgerRepository) GetByExternalRef(ctx context.Context, externalRef string) (*ledger.Entry, error) {
	if externalRef == "" {
		return nil, errors.New("external ref cannot be empty")
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE external_ref = $1`

	entry, err := r.scanEntry(r.querier.QueryRow(ctx, query, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No entry recorded for this ref
		}
		r.logger.Error("Failed to get ledger entry by external ref", "external_ref", externalRef, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry by external ref: %w", err)
	}

	return entry, nil
}

// SumCompletedByUser recomputes the expected balance for one user/currency
// as the sum of signed COMPLETED amounts. ADJUSTMENT entries are snapshot
// corrections, not value movements, so they carry no weight in the baseline.
func (r *LedgerRepository) SumCompletedByUser(ctx context.Context, userID int64, currency shared.Currency) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM ledger_entries
		WHERE user_id = $1 AND currency = $2 AND status = $3 AND type <> $4
	`

	return r.sumQuery(ctx, query, userID, currency, shared.TransactionStatusCompleted, string(ledger.TypeAdjustment))
}

// SumCompletedByUserAndTypes sums COMPLETED amounts restricted to the given
// transaction types.
func (r *LedgerRepository) SumCompletedByUserAndTypes(ctx context.Context, userID int64, currency shared.Currency, types []ledger.TransactionType) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM ledger_entries
		WHERE user_id = $1 AND currency = $2 AND status = $3 AND type = ANY($4)
	`

	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}

	return r.sumQuery(ctx, query, userID, currency, shared.TransactionStatusCompleted, typeStrings)
}

func (r *LedgerRepository) sumQuery(ctx context.Context, query string, args ...interface{}) (decimal.Decimal, error) {
	var sumStr string
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&sumStr); err != nil {
		r.logger.Error("Failed to sum ledger entries", "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse ledger sum %q: %w", sumStr, err)
	}

	return sum, nil
}

func (r *LedgerRepository) scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		entry       ledger.Entry
		amount      string
		externalRef *string
		metadata    []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Type,
		&entry.Currency,
		&amount,
		&entry.Status,
		&externalRef,
		&entry.Description,
		&metadata,
		&entry.CorrelationID,
		&entry.FailureReason,
		&entry.CreatedAt,
		&entry.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse ledger amount %q: %w", amount, err)
	}
	if externalRef != nil {
		entry.ExternalRef = *externalRef
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger entry metadata: %w", err)
		}
	}

	return &entry, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}
