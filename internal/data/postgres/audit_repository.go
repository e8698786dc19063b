package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
)

// AuditRepository implements the audit.Repository interface for PostgreSQL
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit flag repository
func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *AuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return &AuditRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a flag. A partial unique index on (user_id, currency)
// WHERE resolved_at IS NULL keeps at most one unresolved flag per pair.
func (r *AuditRepository) Create(ctx context.Context, flag *audit.Flag) error {
	query := `
		INSERT INTO audit_flags (user_id, currency, expected, actual, reason, flagged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		flag.UserID,
		string(flag.Currency),
		flag.Expected.String(),
		flag.Actual.String(),
		flag.Reason,
		flag.FlaggedAt,
	).Scan(&flag.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return audit.ErrAlreadyFlagged{UserID: flag.UserID, Currency: flag.Currency}
		}
		r.logger.Error("Failed to create audit flag", "user_id", flag.UserID, "currency", flag.Currency, "error", err)
		return fmt.Errorf("failed to create audit flag: %w", err)
	}

	return nil
}

// GetUnresolved returns nil when the user/currency pair is not flagged
func (r *AuditRepository) GetUnresolved(ctx context.Context, userID int64, currency shared.Currency) (*audit.Flag, error) {
	query := auditSelect + `
		WHERE user_id = $1 AND currency = $2 AND resolved_at IS NULL
	`

	flag, err := scanFlag(r.querier.QueryRow(ctx, query, userID, string(currency)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get unresolved audit flag", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get unresolved audit flag: %w", err)
	}

	return flag, nil
}

// HasUnresolved reports whether any currency of the user is flagged
func (r *AuditRepository) HasUnresolved(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM audit_flags
			WHERE user_id = $1 AND resolved_at IS NULL
		)
	`

	var flagged bool
	if err := r.querier.QueryRow(ctx, query, userID).Scan(&flagged); err != nil {
		r.logger.Error("Failed to check audit flags", "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to check audit flags: %w", err)
	}

	return flagged, nil
}

// ListUnresolved returns open flags ordered oldest first
func (r *AuditRepository) ListUnresolved(ctx context.Context, limit, offset int) ([]*audit.Flag, error) {
	query := auditSelect + `
		WHERE resolved_at IS NULL
		ORDER BY flagged_at ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list unresolved audit flags", "error", err)
		return nil, fmt.Errorf("failed to list unresolved audit flags: %w", err)
	}
	defer rows.Close()

	var flags []*audit.Flag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit flag: %w", err)
		}
		flags = append(flags, flag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit flags: %w", err)
	}

	return flags, nil
}

// Resolve stamps the flag with the compensating ledger entry that cleared it
func (r *AuditRepository) Resolve(ctx context.Context, id int64, resolutionEntryID int64) error {
	query := `
		UPDATE audit_flags
		SET resolved_at = NOW(), resolution_entry_id = NULLIF($2, 0)
		WHERE id = $1 AND resolved_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, id, resolutionEntryID)
	if err != nil {
		r.logger.Error("Failed to resolve audit flag", "flag_id", id, "error", err)
		return fmt.Errorf("failed to resolve audit flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return audit.ErrFlagNotFound{ID: id}
	}

	return nil
}

const auditSelect = `
		SELECT id, user_id, currency, expected::text, actual::text, reason, flagged_at, resolved_at, resolution_entry_id
		FROM audit_flags
`

func scanFlag(row pgx.Row) (*audit.Flag, error) {
	var (
		flag     audit.Flag
		currency string
		expected string
		actual   string
	)

	err := row.Scan(
		&flag.ID,
		&flag.UserID,
		&currency,
		&expected,
		&actual,
		&flag.Reason,
		&flag.FlaggedAt,
		&flag.ResolvedAt,
		&flag.ResolutionEntryID,
	)
	if err != nil {
		return nil, err
	}

	flag.Currency = shared.Currency(currency)
	if flag.Expected, err = decimal.NewFromString(expected); err != nil {
		return nil, fmt.Errorf("failed to parse expected %q: %w", expected, err)
	}
	if flag.Actual, err = decimal.NewFromString(actual); err != nil {
		return nil, fmt.Errorf("failed to parse actual %q: %w", actual, err)
	}

	return &flag, nil
}
