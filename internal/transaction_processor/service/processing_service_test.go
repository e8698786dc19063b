package service

import (
	"context"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

type MockManager struct {
	mock.Mock
}

func (m *MockManager) ApplyDelta(ctx context.Context, request *shared.MutationRequest) (*balance.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.Result), args.Error(1)
}

func (m *MockManager) ApplyDeltaWithin(ctx context.Context, request *shared.MutationRequest, hook balance.TxHook) (*balance.Result, error) {
	args := m.Called(ctx, request, hook)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.Result), args.Error(1)
}

func (m *MockManager) RecordFailure(ctx context.Context, request *shared.MutationRequest, reason string) error {
	args := m.Called(ctx, request, reason)
	return args.Error(0)
}

func (m *MockManager) GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockManager) CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, referredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func validDeposit() *shared.MutationRequest {
	return &shared.MutationRequest{
		RequestID:   uuid.New(),
		UserID:      42,
		Type:        "TON_DEPOSIT",
		Currency:    shared.CurrencyTON,
		Amount:      decimal.RequireFromString("5.5"),
		ExternalRef: "ton_tx:abc123",
		Timestamp:   time.Now().UTC(),
	}
}

func TestProcessingService_ProcessDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a valid deposit and acknowledges", func(t *testing.T) {
		manager := &MockManager{}
		svc := NewProcessingService(manager, slog.Default())

		request := validDeposit()
		manager.On("ApplyDelta", mock.Anything, request).
			Return(&balance.Result{Entry: &ledger.Entry{ID: 7}}, nil)

		err := svc.ProcessDeposit(ctx, request)

		require.NoError(t, err)
		manager.AssertExpectations(t)
		manager.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate deposit acknowledges without error", func(t *testing.T) {
		manager := &MockManager{}
		svc := NewProcessingService(manager, slog.Default())

		request := validDeposit()
		manager.On("ApplyDelta", mock.Anything, request).
			Return(&balance.Result{Entry: &ledger.Entry{ID: 7}, Duplicate: true}, nil)

		err := svc.ProcessDeposit(ctx, request)

		require.NoError(t, err)
	})

	t.Run("missing wallet records a failure and acknowledges", func(t *testing.T) {
		manager := &MockManager{}
		svc := NewProcessingService(manager, slog.Default())

		request := validDeposit()
		manager.On("ApplyDelta", mock.Anything, request).
			Return(nil, wallet.ErrWalletNotFound{UserID: 42})
		manager.On("RecordFailure", mock.Anything, request, string(shared.FailureReasonWalletNotFound)).
			Return(nil)

		err := svc.ProcessDeposit(ctx, request)

		require.NoError(t, err, "Deterministic failures must not trigger redelivery")
		manager.AssertExpectations(t)
	})

	t.Run("transient manager error propagates for redelivery", func(t *testing.T) {
		manager := &MockManager{}
		svc := NewProcessingService(manager, slog.Default())

		request := validDeposit()
		manager.On("ApplyDelta", mock.Anything, request).Return(nil, assert.AnError)

		err := svc.ProcessDeposit(ctx, request)

		assert.ErrorIs(t, err, assert.AnError)
		manager.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
	})

	validationCases := []struct {
		name   string
		mutate func(request *shared.MutationRequest)
		reason shared.FailureReason
	}{
		{
			name:   "unknown type",
			mutate: func(r *shared.MutationRequest) { r.Type = "AIRDROP" },
			reason: shared.FailureReasonInvalidType,
		},
		{
			name:   "debit type rejected by the deposit pipeline",
			mutate: func(r *shared.MutationRequest) { r.Type = "WITHDRAWAL" },
			reason: shared.FailureReasonInvalidType,
		},
		{
			name:   "invalid currency",
			mutate: func(r *shared.MutationRequest) { r.Currency = "USD" },
			reason: shared.FailureReasonInvalidAmount,
		},
		{
			name:   "non-positive amount",
			mutate: func(r *shared.MutationRequest) { r.Amount = decimal.Zero },
			reason: shared.FailureReasonInvalidAmount,
		},
		{
			name:   "missing external ref",
			mutate: func(r *shared.MutationRequest) { r.ExternalRef = "" },
			reason: shared.FailureReasonUnknownError,
		},
	}

	for _, tc := range validationCases {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			manager := &MockManager{}
			svc := NewProcessingService(manager, slog.Default())

			request := validDeposit()
			tc.mutate(request)
			manager.On("RecordFailure", mock.Anything, request, string(tc.reason)).Return(nil)

			err := svc.ProcessDeposit(ctx, request)

			require.NoError(t, err, "Validation rejections acknowledge the message")
			manager.AssertExpectations(t)
			manager.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything)
		})
	}

	t.Run("failed failure record still acknowledges", func(t *testing.T) {
		manager := &MockManager{}
		svc := NewProcessingService(manager, slog.Default())

		request := validDeposit()
		request.Type = "AIRDROP"
		manager.On("RecordFailure", mock.Anything, request, mock.Anything).Return(assert.AnError)

		err := svc.ProcessDeposit(ctx, request)

		require.NoError(t, err)
	})
}
