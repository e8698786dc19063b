package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

func TestAuditRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AuditRepository{querier: mock, logger: logger}

	flag := &audit.Flag{
		UserID:    42,
		Currency:  shared.CurrencyUNI,
		Expected:  decimal.RequireFromString("100"),
		Actual:    decimal.RequireFromString("99.5"),
		Reason:    "wallet snapshot diverged from ledger sum",
		FlaggedAt: time.Now(),
	}

	query := `
		INSERT INTO audit_flags \(user_id, currency, expected, actual, reason, flagged_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
		RETURNING id
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(flag.UserID, "UNI", "100", "99.5", flag.Reason, flag.FlaggedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

		err := repo.Create(ctx, flag)
		require.NoError(t, err)
		assert.Equal(t, int64(11), flag.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already flagged", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(flag.UserID, "UNI", "100", "99.5", flag.Reason, flag.FlaggedAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

		err := repo.Create(ctx, flag)
		var alreadyErr audit.ErrAlreadyFlagged
		assert.ErrorAs(t, err, &alreadyErr)
		assert.Equal(t, flag.UserID, alreadyErr.UserID)
		assert.Equal(t, shared.CurrencyUNI, alreadyErr.Currency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditRepository_GetUnresolved(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AuditRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT id, user_id, currency, expected::text, actual::text, reason, flagged_at, resolved_at, resolution_entry_id
		FROM audit_flags
		WHERE user_id = \$1 AND currency = \$2 AND resolved_at IS NULL
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "user_id", "currency", "expected", "actual", "reason", "flagged_at", "resolved_at", "resolution_entry_id"}).
			AddRow(int64(11), int64(42), "TON", "5", "4.999999999", "drift", now, (*time.Time)(nil), (*int64)(nil))
		mock.ExpectQuery(query).WithArgs(int64(42), "TON").WillReturnRows(rows)

		flag, err := repo.GetUnresolved(ctx, 42, shared.CurrencyTON)
		require.NoError(t, err)
		require.NotNil(t, flag)
		assert.Equal(t, int64(11), flag.ID)
		assert.Equal(t, "0.000000001", flag.Divergence().String())
		assert.False(t, flag.Resolved())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no flag", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(42), "UNI").
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "currency", "expected", "actual", "reason", "flagged_at", "resolved_at", "resolution_entry_id"}))

		flag, err := repo.GetUnresolved(ctx, 42, shared.CurrencyUNI)
		assert.NoError(t, err)
		assert.Nil(t, flag)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditRepository_HasUnresolved(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AuditRepository{querier: mock, logger: logger}

	query := `
		SELECT EXISTS \(
			SELECT 1 FROM audit_flags
			WHERE user_id = \$1 AND resolved_at IS NULL
		\)
	`

	t.Run("flagged", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		flagged, err := repo.HasUnresolved(ctx, 42)
		require.NoError(t, err)
		assert.True(t, flagged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clean", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		flagged, err := repo.HasUnresolved(ctx, 7)
		require.NoError(t, err)
		assert.False(t, flagged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditRepository_Resolve(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AuditRepository{querier: mock, logger: logger}

	query := `
		UPDATE audit_flags
		SET resolved_at = NOW\(\), resolution_entry_id = NULLIF\(\$2, 0\)
		WHERE id = \$1 AND resolved_at IS NULL
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(11), int64(77)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Resolve(ctx, 11, 77)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already resolved", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(11), int64(0)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Resolve(ctx, 11, 0)
		var notFoundErr audit.ErrFlagNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, int64(11), notFoundErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("update failed")
		mock.ExpectExec(query).WithArgs(int64(11), int64(77)).WillReturnError(dbErr)

		err := repo.Resolve(ctx, 11, 77)
		assert.Contains(t, err.Error(), "failed to resolve audit flag")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
