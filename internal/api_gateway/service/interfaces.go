package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/auditor"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/domain/history"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// WalletService defines the interface for wallet operations
type WalletService interface {
	// CreateWallet registers a zeroed wallet for a new user.
	// Returns ErrDuplicateWallet if the user already has one.
	CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error)

	// GetWallet retrieves the current balance snapshot.
	// Returns ErrWalletNotFound if the user has no wallet.
	GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error)
}

// TransactionService defines the interface for balance mutations and history
type TransactionService interface {
	// Withdraw applies a synchronous withdrawal debit.
	Withdraw(ctx context.Context, request *shared.MutationRequest) (*balance.Result, error)

	// SubmitDeposit queues an asynchronous deposit for processing.
	// Returns the request ID, the existing ledger entry when the external
	// ref was already applied (nothing is published then), and any error.
	SubmitDeposit(ctx context.Context, request *shared.MutationRequest) (string, *ledger.Entry, error)

	// GetHistory retrieves paginated transaction history from the mirror.
	// Returns documents, total count, and any error.
	GetHistory(ctx context.Context, userID int64, page, perPage int) ([]*history.Document, int64, error)
}

// BoostService defines the interface for boost package operations
type BoostService interface {
	// Packages lists the purchasable boost tiers.
	Packages() []boost.Package

	// Purchase debits the TON price and activates or grows the user's
	// boost position atomically.
	Purchase(ctx context.Context, userID, packageID int64, amount decimal.Decimal, externalRef string) (*balance.Result, *boost.Position, error)

	// GetPosition retrieves the user's boost position.
	GetPosition(ctx context.Context, userID int64) (*boost.Position, error)

	// Deactivate stops income on the user's position.
	Deactivate(ctx context.Context, userID int64) error
}

// AuditService defines the interface for reconciliation operations
type AuditService interface {
	// AuditUser reconciles one user's snapshots against the ledger.
	AuditUser(ctx context.Context, userID int64) (*auditor.Report, error)

	// ListFlags retrieves paginated unresolved audit flags.
	ListFlags(ctx context.Context, page, perPage int) ([]*audit.Flag, error)

	// ResolveFlag clears an unresolved flag through a compensating entry.
	ResolveFlag(ctx context.Context, userID int64, currency shared.Currency) (*audit.Flag, error)
}
