package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifarm-balance-ledger/internal/domain/boost"
)

func TestBoostRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BoostRepository{querier: mock, logger: logger}

	position := &boost.Position{
		UserID:        42,
		PackageID:     2,
		DepositAmount: decimal.NewFromInt(25),
		DailyRate:     decimal.NewFromFloat(0.015),
		Active:        true,
		ActivatedAt:   time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO boost_positions \(user_id, package_id, deposit_amount, daily_rate, active, activated_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)
		ON CONFLICT \(user_id\) DO UPDATE
		SET package_id = EXCLUDED.package_id,
		    deposit_amount = EXCLUDED.deposit_amount,
		    daily_rate = EXCLUDED.daily_rate,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`

	mock.ExpectExec(query).
		WithArgs(position.UserID, position.PackageID, "25", "0.015", position.Active, position.ActivatedAt, position.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(ctx, position)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoostRepository_GetByUserID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BoostRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT user_id, package_id, deposit_amount::text, daily_rate::text, active, activated_at, updated_at
		FROM boost_positions
		WHERE user_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"user_id", "package_id", "deposit_amount", "daily_rate", "active", "activated_at", "updated_at"}).
			AddRow(int64(42), int64(2), "25.000000000", "0.015000000", true, now, now)
		mock.ExpectQuery(query).WithArgs(int64(42)).WillReturnRows(rows)

		position, err := repo.GetByUserID(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), position.UserID)
		assert.True(t, position.DepositAmount.Equal(decimal.NewFromInt(25)))
		assert.True(t, position.DailyRate.Equal(decimal.NewFromFloat(0.015)))
		assert.True(t, position.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)

		position, err := repo.GetByUserID(ctx, 7)
		assert.Nil(t, position)
		var notFoundErr boost.ErrPositionNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, int64(7), notFoundErr.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBoostRepository_GetActive(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BoostRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT user_id, package_id, deposit_amount::text, daily_rate::text, active, activated_at, updated_at
		FROM boost_positions
		WHERE active = TRUE
		ORDER BY user_id ASC
	`

	rows := pgxmock.NewRows([]string{"user_id", "package_id", "deposit_amount", "daily_rate", "active", "activated_at", "updated_at"}).
		AddRow(int64(1), int64(1), "5", "0.01", true, now, now).
		AddRow(int64(2), int64(5), "100", "0.03", true, now, now)
	mock.ExpectQuery(query).WillReturnRows(rows)

	positions, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, int64(1), positions[0].UserID)
	assert.Equal(t, int64(2), positions[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBoostRepository_Deactivate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BoostRepository{querier: mock, logger: logger}

	query := `
		UPDATE boost_positions
		SET active = FALSE, updated_at = NOW\(\)
		WHERE user_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(42)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Deactivate(ctx, 42)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no position", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Deactivate(ctx, 7)
		var notFoundErr boost.ErrPositionNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
