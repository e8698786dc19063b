// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the balance ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a zeroed wallet for a newly registered user
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, referred_by, balance_uni, balance_ton, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		w.UserID,
		w.ReferredBy,
		w.BalanceUni.String(),
		w.BalanceTon.String(),
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return wallet.ErrDuplicateWallet{UserID: w.UserID}
		}
		r.logger.Error("Failed to create wallet", "user_id", w.UserID, "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByUserID retrieves a wallet by its owning user id
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	query := `
		SELECT user_id, referred_by, balance_uni::text, balance_ton::text, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get wallet", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// Update persists the snapshot with an optimistic lock on the version.
// Returns ErrConcurrentModification when the wallet changed between read
// and write.
func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET referred_by = $1, balance_uni = $2, balance_ton = $3, version = $4, updated_at = $5
		WHERE user_id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query,
		w.ReferredBy,
		w.BalanceUni.String(),
		w.BalanceTon.String(),
		w.Version,
		w.UpdatedAt,
		w.UserID,
		w.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "user_id", w.UserID, "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{UserID: w.UserID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic row lock on the wallet and returns its
// current state. Must be called within a transaction; the lock serializes
// concurrent balance mutations for the same user.
func (r *WalletRepository) LockForUpdate(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	query := `
		SELECT user_id, referred_by, balance_uni::text, balance_ton::text, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to lock wallet for update", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return w, nil
}

// ListUserIDs pages over wallet owners in ascending user id order
func (r *WalletRepository) ListUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error) {
	query := `
		SELECT user_id
		FROM wallets
		WHERE user_id > $1
		ORDER BY user_id ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, afterUserID, limit)
	if err != nil {
		r.logger.Error("Failed to list wallet user ids", "error", err)
		return nil, fmt.Errorf("failed to list wallet user ids: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wallet user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet user ids: %w", err)
	}

	return userIDs, nil
}

// scanWallet decodes one wallet row, parsing NUMERIC balances from their
// text representation.
func (r *WalletRepository) scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var (
		w          wallet.Wallet
		balanceUni string
		balanceTon string
	)

	err := row.Scan(
		&w.UserID,
		&w.ReferredBy,
		&balanceUni,
		&balanceTon,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if w.BalanceUni, err = decimal.NewFromString(balanceUni); err != nil {
		return nil, fmt.Errorf("failed to parse balance_uni %q: %w", balanceUni, err)
	}
	if w.BalanceTon, err = decimal.NewFromString(balanceTon); err != nil {
		return nil, fmt.Errorf("failed to parse balance_ton %q: %w", balanceTon, err)
	}

	return &w, nil
}
