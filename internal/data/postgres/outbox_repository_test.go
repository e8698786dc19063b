package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifarm-balance-ledger/internal/domain/outbox"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	message := &outbox.Message{
		LedgerEntryID: 7,
		UserID:        42,
		Payload:       []byte(`{"id":7}`),
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}

	query := `
		INSERT INTO transaction_outbox \(ledger_entry_id, user_id, payload, status, attempts, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
		RETURNING id
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(message.LedgerEntryID, message.UserID, message.Payload, message.Status, message.Attempts, message.CreatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

		err := repo.Create(ctx, message)
		require.NoError(t, err)
		assert.Equal(t, int64(3), message.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate ledger entry", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(message.LedgerEntryID, message.UserID, message.Payload, message.Status, message.Attempts, message.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

		err := repo.Create(ctx, message)
		var dupErr outbox.ErrDuplicateMessage
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, message.LedgerEntryID, dupErr.LedgerEntryID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT id, ledger_entry_id, user_id, payload, status, attempts, created_at, last_attempt_at
		FROM transaction_outbox
		WHERE status = \$1
		ORDER BY created_at ASC
		LIMIT \$2
	`

	t.Run("returns batch in FIFO order", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "ledger_entry_id", "user_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}).
			AddRow(int64(1), int64(7), int64(42), []byte(`{}`), shared.OutboxStatusPending, 0, now.Add(-time.Minute), (*time.Time)(nil)).
			AddRow(int64(2), int64(8), int64(42), []byte(`{}`), shared.OutboxStatusPending, 1, now, &now)
		mock.ExpectQuery(query).WithArgs(shared.OutboxStatusPending, 10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(1), messages[0].ID)
		assert.Equal(t, int64(2), messages[1].ID)
		assert.Nil(t, messages[0].LastAttemptAt)
		assert.NotNil(t, messages[1].LastAttemptAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(shared.OutboxStatusPending, 10).
			WillReturnRows(pgxmock.NewRows([]string{"id", "ledger_entry_id", "user_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}))

		messages, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		UPDATE transaction_outbox
		SET status = \$1, last_attempt_at = \$2
		WHERE id = \$3
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(3)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateStatus(ctx, 3, shared.OutboxStatusProcessed)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(99)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 99, shared.OutboxStatusProcessed)
		var notFoundErr outbox.ErrMessageNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, int64(99), notFoundErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_IncrementAttempts(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		UPDATE transaction_outbox
		SET attempts = attempts \+ 1, last_attempt_at = \$1
		WHERE id = \$2
	`

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.IncrementAttempts(ctx, 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
