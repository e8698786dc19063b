package wallet

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository defines wallet snapshot persistence operations
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByUserID(ctx context.Context, userID int64) (*Wallet, error)
	// Update persists the snapshot using optimistic locking on Version.
	Update(ctx context.Context, w *Wallet) error

	// LockForUpdate acquires a row lock on the wallet for the duration of
	// the surrounding transaction, serializing concurrent mutations for
	// the same user.
	LockForUpdate(ctx context.Context, userID int64) (*Wallet, error)

	// ListUserIDs pages over all wallet owners in ascending user id order,
	// used by the reconciliation runner.
	ListUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates missing wallet
type ErrWalletNotFound struct {
	UserID int64
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found for user: " + strconv.FormatInt(e.UserID, 10)
}

// Is matches any ErrWalletNotFound when the target carries a zero user id
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	return t.UserID == 0 || t.UserID == e.UserID
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	UserID int64
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for wallet: " + strconv.FormatInt(e.UserID, 10)
}

// ErrDuplicateWallet indicates the user already has a wallet
type ErrDuplicateWallet struct {
	UserID int64
}

func (e ErrDuplicateWallet) Error() string {
	return "wallet already exists for user: " + strconv.FormatInt(e.UserID, 10)
}
