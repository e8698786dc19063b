package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/unifarm-balance-ledger/internal/domain/idempotency"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements the idempotency.Repository interface for
// PostgreSQL. The unique constraint on external_ref is the authoritative
// duplicate check: a violation during the balance mutation transaction
// means another mutation already applied the same external event.
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIdempotencyRepository creates a new PostgreSQL idempotency repository
func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Repository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the reservation is
// atomic with the ledger insert it guards.
func (r *IdempotencyRepository) WithTx(tx pgx.Tx) idempotency.Repository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts the record, returning ErrDuplicateRef when the external
// ref was already reserved.
func (r *IdempotencyRepository) Create(ctx context.Context, record *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_keys (external_ref, ledger_entry_id, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.querier.Exec(ctx, query,
		record.ExternalRef,
		record.LedgerEntryID,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return idempotency.ErrDuplicateRef{ExternalRef: record.ExternalRef}
		}
		r.logger.Error("Failed to create idempotency record", "external_ref", record.ExternalRef, "error", err)
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}

	return nil
}

// GetByExternalRef returns nil when the ref has not been seen
func (r *IdempotencyRepository) GetByExternalRef(ctx context.Context, externalRef string) (*idempotency.Record, error) {
	query := `
		SELECT external_ref, ledger_entry_id, created_at
		FROM idempotency_keys
		WHERE external_ref = $1
	`

	var record idempotency.Record
	err := r.querier.QueryRow(ctx, query, externalRef).Scan(
		&record.ExternalRef,
		&record.LedgerEntryID,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get idempotency record", "external_ref", externalRef, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &record, nil
}

// PruneOlderThan deletes records past the retention window
func (r *IdempotencyRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM idempotency_keys WHERE created_at < $1`

	result, err := r.querier.Exec(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to prune idempotency records", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to prune idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
