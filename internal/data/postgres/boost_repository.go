package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
)

// BoostRepository implements the boost.Repository interface for PostgreSQL
type BoostRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBoostRepository creates a new PostgreSQL boost position repository
func NewBoostRepository(logger *slog.Logger, db *persistence.PostgresDB) boost.Repository {
	return &BoostRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so position activation is
// atomic with the purchase debit.
func (r *BoostRepository) WithTx(tx pgx.Tx) boost.Repository {
	return &BoostRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByUserID retrieves the user's boost position
func (r *BoostRepository) GetByUserID(ctx context.Context, userID int64) (*boost.Position, error) {
	query := `
		SELECT user_id, package_id, deposit_amount::text, daily_rate::text, active, activated_at, updated_at
		FROM boost_positions
		WHERE user_id = $1
	`

	position, err := scanPosition(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, boost.ErrPositionNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get boost position", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get boost position: %w", err)
	}

	return position, nil
}

// Upsert creates or replaces the user's boost position
func (r *BoostRepository) Upsert(ctx context.Context, position *boost.Position) error {
	query := `
		INSERT INTO boost_positions (user_id, package_id, deposit_amount, daily_rate, active, activated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET package_id = EXCLUDED.package_id,
		    deposit_amount = EXCLUDED.deposit_amount,
		    daily_rate = EXCLUDED.daily_rate,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		position.UserID,
		position.PackageID,
		position.DepositAmount.String(),
		position.DailyRate.String(),
		position.Active,
		position.ActivatedAt,
		position.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert boost position", "user_id", position.UserID, "error", err)
		return fmt.Errorf("failed to upsert boost position: %w", err)
	}

	return nil
}

// GetActive returns all positions currently earning income
func (r *BoostRepository) GetActive(ctx context.Context) ([]*boost.Position, error) {
	query := `
		SELECT user_id, package_id, deposit_amount::text, daily_rate::text, active, activated_at, updated_at
		FROM boost_positions
		WHERE active = TRUE
		ORDER BY user_id ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to get active boost positions", "error", err)
		return nil, fmt.Errorf("failed to get active boost positions: %w", err)
	}
	defer rows.Close()

	var positions []*boost.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan boost position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boost positions: %w", err)
	}

	return positions, nil
}

// Deactivate stops income on a position without deleting its history
func (r *BoostRepository) Deactivate(ctx context.Context, userID int64) error {
	query := `
		UPDATE boost_positions
		SET active = FALSE, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.querier.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to deactivate boost position", "user_id", userID, "error", err)
		return fmt.Errorf("failed to deactivate boost position: %w", err)
	}

	if result.RowsAffected() == 0 {
		return boost.ErrPositionNotFound{UserID: userID}
	}

	return nil
}

func scanPosition(row pgx.Row) (*boost.Position, error) {
	var (
		position boost.Position
		deposit  string
		rate     string
	)

	err := row.Scan(
		&position.UserID,
		&position.PackageID,
		&deposit,
		&rate,
		&position.Active,
		&position.ActivatedAt,
		&position.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if position.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
		return nil, fmt.Errorf("failed to parse deposit_amount %q: %w", deposit, err)
	}
	if position.DailyRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("failed to parse daily_rate %q: %w", rate, err)
	}

	return &position, nil
}
