package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/unifarm-balance-ledger/internal/config"
	"github.com/unifarm-balance-ledger/internal/domain/outbox"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// MockHistoryPublisher for testing
type MockHistoryPublisher struct {
	mock.Mock
}

func (m *MockHistoryPublisher) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func TestPoller_ProcessPendingMessages(t *testing.T) {
	logger := slog.Default()

	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	entry := completedEntry()
	entryJSON, err := json.Marshal(entry)
	assert.NoError(t, err)

	message1 := &outbox.Message{
		ID:            1,
		LedgerEntryID: entry.ID,
		UserID:        entry.UserID,
		Status:        shared.OutboxStatusPending,
		Payload:       entryJSON,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}

	message2 := &outbox.Message{
		ID:            2,
		LedgerEntryID: 16,
		UserID:        entry.UserID,
		Status:        shared.OutboxStatusPending,
		Payload:       entryJSON,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}

	tests := []struct {
		name          string
		setupMocks    func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher)
		expectedError string
	}{
		{
			name: "successful processing of pending messages",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()

				publisher.On("PublishToHistory", mock.Anything, message1).Return(nil).Once()
				publisher.On("PublishToHistory", mock.Anything, message2).Return(nil).Once()
			},
		},
		{
			name: "error getting pending messages",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("db error")).Once()
			},
			expectedError: "failed to get pending outbox messages",
		},
		{
			name: "no pending messages",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()
			},
		},
		{
			name: "one failing message does not block the batch",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()

				publisher.On("PublishToHistory", mock.Anything, message1).Return(errors.New("mongo down")).Once()
				outboxRepo.On("IncrementAttempts", mock.Anything, int64(1)).Return(nil).Once()

				publisher.On("PublishToHistory", mock.Anything, message2).Return(nil).Once()
			},
		},
		{
			name: "max retry attempts reached marks message failed",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				exhausted := &outbox.Message{
					ID:            3,
					LedgerEntryID: 17,
					UserID:        entry.UserID,
					Status:        shared.OutboxStatusPending,
					Payload:       entryJSON,
					Attempts:      2,
					CreatedAt:     time.Now(),
				}

				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted}, nil).Once()

				publisher.On("PublishToHistory", mock.Anything, exhausted).Return(errors.New("mongo down")).Once()

				outboxRepo.On("IncrementAttempts", mock.Anything, int64(3)).Return(nil).Once()
				outboxRepo.On("UpdateStatus", mock.Anything, int64(3), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
		},
		{
			name: "increment failure skips to the next message",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockHistoryPublisher) {
				exhausted := &outbox.Message{
					ID:            4,
					LedgerEntryID: 18,
					UserID:        entry.UserID,
					Status:        shared.OutboxStatusPending,
					Payload:       entryJSON,
					Attempts:      2,
					CreatedAt:     time.Now(),
				}

				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted, message2}, nil).Once()

				publisher.On("PublishToHistory", mock.Anything, exhausted).Return(errors.New("mongo down")).Once()
				outboxRepo.On("IncrementAttempts", mock.Anything, int64(4)).Return(errors.New("db error")).Once()

				publisher.On("PublishToHistory", mock.Anything, message2).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outboxRepo := &MockOutboxRepo{}
			publisher := &MockHistoryPublisher{}
			poller := NewPoller(cfg, outboxRepo, publisher, logger)

			tt.setupMocks(outboxRepo, publisher)

			err := poller.processPendingMessages(context.Background())

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			outboxRepo.AssertExpectations(t)
			publisher.AssertExpectations(t)
		})
	}
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	outboxRepo := &MockOutboxRepo{}
	publisher := &MockHistoryPublisher{}

	cfg := &config.OutboxConfig{
		PollingInterval:  10 * time.Millisecond,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	poller := NewPoller(cfg, outboxRepo, publisher, slog.Default())

	outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}
