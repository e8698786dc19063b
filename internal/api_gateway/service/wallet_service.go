package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	manager balance.Manager
	logger  *slog.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(logger *slog.Logger, manager balance.Manager) WalletService {
	return &WalletServiceImpl{
		manager: manager,
		logger:  logger,
	}
}

// CreateWallet registers a zeroed wallet for a new user
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error) {
	w, err := s.manager.CreateWallet(ctx, userID, referredBy)
	if err != nil {
		var errDuplicate wallet.ErrDuplicateWallet
		if errors.As(err, &errDuplicate) {
			s.logger.Info("Wallet already exists", "user_id", userID)
			return nil, err
		}
		s.logger.Error("Failed to create wallet", "user_id", userID, "error", err)
		return nil, err
	}

	return w, nil
}

// GetWallet retrieves the current balance snapshot
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	w, err := s.manager.GetWallet(ctx, userID)
	if err != nil {
		var errNotFound wallet.ErrWalletNotFound
		if errors.As(err, &errNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to get wallet", "user_id", userID, "error", err)
		return nil, err
	}

	return w, nil
}
