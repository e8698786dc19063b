package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/unifarm-balance-ledger/internal/domain/history"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/outbox"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByLedgerEntryID(ctx context.Context, ledgerEntryID int64) (*outbox.Message, error) {
	args := m.Called(ctx, ledgerEntryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

// MockHistoryRepo for testing
type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Upsert(ctx context.Context, doc *history.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockHistoryRepo) GetByLedgerEntryID(ctx context.Context, ledgerEntryID int64) (*history.Document, error) {
	args := m.Called(ctx, ledgerEntryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*history.Document), args.Error(1)
}

func (m *MockHistoryRepo) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*history.Document, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*history.Document), args.Error(1)
}

func (m *MockHistoryRepo) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func completedEntry() *ledger.Entry {
	processedAt := time.Now()
	return &ledger.Entry{
		ID:            15,
		UserID:        42,
		Type:          ledger.TypeDeposit,
		Currency:      shared.CurrencyUNI,
		Amount:        decimal.RequireFromString("12.5"),
		Status:        shared.TransactionStatusCompleted,
		ExternalRef:   "mission:88",
		CorrelationID: "corr1",
		CreatedAt:     time.Now(),
		ProcessedAt:   &processedAt,
	}
}

func TestHistoryPublisher_PublishToHistory(t *testing.T) {
	logger := slog.Default()

	entry := completedEntry()
	entryJSON, err := json.Marshal(entry)
	assert.NoError(t, err)

	message := &outbox.Message{
		ID:            1,
		LedgerEntryID: entry.ID,
		UserID:        entry.UserID,
		Status:        shared.OutboxStatusPending,
		Payload:       entryJSON,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}

	tests := []struct {
		name          string
		message       *outbox.Message
		setupMocks    func(outboxRepo *MockOutboxRepo, historyRepo *MockHistoryRepo)
		expectedError string
	}{
		{
			name:    "successful mirror",
			message: message,
			setupMocks: func(outboxRepo *MockOutboxRepo, historyRepo *MockHistoryRepo) {
				historyRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(doc *history.Document) bool {
					return doc.LedgerEntryID == 15 &&
						doc.UserID == 42 &&
						doc.Amount == "12.5" &&
						doc.Status == shared.TransactionStatusCompleted
				})).Return(nil).Once()

				outboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()
			},
		},
		{
			name: "unmarshal failure marks message failed",
			message: &outbox.Message{
				ID:            2,
				LedgerEntryID: entry.ID,
				Status:        shared.OutboxStatusPending,
				Payload:       []byte("invalid json"),
				CreatedAt:     time.Now(),
			},
			setupMocks: func(outboxRepo *MockOutboxRepo, historyRepo *MockHistoryRepo) {
				outboxRepo.On("UpdateStatus", mock.Anything, int64(2), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
			expectedError: "unmarshal payload",
		},
		{
			name:    "upsert failure leaves message pending",
			message: message,
			setupMocks: func(outboxRepo *MockOutboxRepo, historyRepo *MockHistoryRepo) {
				historyRepo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("mongo down")).Once()
			},
			expectedError: "failed to mirror ledger entry",
		},
		{
			name:    "status update failure after successful mirror",
			message: message,
			setupMocks: func(outboxRepo *MockOutboxRepo, historyRepo *MockHistoryRepo) {
				historyRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

				outboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(errors.New("db error")).Once()
			},
			expectedError: "failed to mark outbox 1 as PROCESSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outboxRepo := &MockOutboxRepo{}
			historyRepo := &MockHistoryRepo{}
			publisher := NewHistoryPublisher(outboxRepo, historyRepo, logger)

			tt.setupMocks(outboxRepo, historyRepo)

			err := publisher.PublishToHistory(context.Background(), tt.message)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			outboxRepo.AssertExpectations(t)
			historyRepo.AssertExpectations(t)
		})
	}
}
