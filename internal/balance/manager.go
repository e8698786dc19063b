// Package balance holds the single writer for wallet snapshots. Every
// balance change flows through the Manager: it locks the wallet row, writes
// the ledger entry, the idempotency record and the outbox message in one
// database transaction, then updates the snapshot. Nothing else in the
// system is allowed to touch balance_uni or balance_ton.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/idempotency"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/outbox"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// TxBeginner opens database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrPayoutsBlocked is returned when an automated payout targets a wallet
// carrying an unresolved audit flag. User-initiated mutations are unaffected.
var ErrPayoutsBlocked = errors.New("automated payouts blocked by unresolved audit flag")

// TxHook runs inside the mutation's database transaction after the ledger
// entry is written. It lets callers piggyback related writes, boost position
// activation shares its purchase debit's transaction this way.
type TxHook func(ctx context.Context, tx pgx.Tx, entry *ledger.Entry) error

// Result reports the outcome of a mutation. When Duplicate is true the
// external ref was already applied and Entry is the original entry; the
// wallet was not touched again.
type Result struct {
	Entry     *ledger.Entry
	Wallet    *wallet.Wallet
	Duplicate bool
}

// Manager applies balance mutations atomically
type Manager interface {
	// ApplyDelta applies one signed balance change.
	ApplyDelta(ctx context.Context, request *shared.MutationRequest) (*Result, error)
	// ApplyDeltaWithin applies the change and runs hook in the same
	// database transaction.
	ApplyDeltaWithin(ctx context.Context, request *shared.MutationRequest, hook TxHook) (*Result, error)
	// RecordFailure writes a FAILED ledger entry for a request that was
	// rejected before touching any wallet.
	RecordFailure(ctx context.Context, request *shared.MutationRequest, reason string) error
	// GetWallet reads the current snapshot.
	GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error)
	// CreateWallet registers a zeroed wallet for a new user.
	CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error)
}

// ManagerImpl implements Manager on PostgreSQL repositories
type ManagerImpl struct {
	db         TxBeginner
	walletRepo wallet.Repository
	ledgerRepo ledger.Repository
	idemRepo   idempotency.Repository
	auditRepo  audit.Repository
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

// NewManager creates a new balance manager
func NewManager(
	db TxBeginner,
	walletRepo wallet.Repository,
	ledgerRepo ledger.Repository,
	idemRepo idempotency.Repository,
	auditRepo audit.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) Manager {
	return &ManagerImpl{
		db:         db,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		idemRepo:   idemRepo,
		auditRepo:  auditRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// ApplyDelta applies one signed balance change atomically
func (m *ManagerImpl) ApplyDelta(ctx context.Context, request *shared.MutationRequest) (*Result, error) {
	return m.ApplyDeltaWithin(ctx, request, nil)
}

// ApplyDeltaWithin applies the change and runs hook inside the same
// database transaction. The flow is: validate, lock wallet row, short
// circuit on a seen external ref, withhold flagged automated payouts,
// mutate the snapshot, append the COMPLETED entry, reserve the ref, queue
// the outbox message, run the hook, commit.
func (m *ManagerImpl) ApplyDeltaWithin(ctx context.Context, request *shared.MutationRequest, hook TxHook) (*Result, error) {
	logger := m.logger
	if request.CorrelationID != "" {
		logger = m.logger.With("correlation_id", request.CorrelationID)
	}

	txType, err := ledger.ParseType(request.Type)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(request.UserID, txType, request.Currency, request.Amount, request.Description)
	if err != nil {
		return nil, err
	}
	entry.ExternalRef = request.ExternalRef
	entry.Metadata = request.Metadata
	entry.CorrelationID = request.CorrelationID

	var tx pgx.Tx
	tx, err = m.db.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin database transaction", "user_id", request.UserID, "error", err)
		return nil, fmt.Errorf("failed to begin DB transaction for user %d: %w", request.UserID, err)
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic recovered, rolling back transaction", "panic", p, "user_id", request.UserID)
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Error("Failed to rollback transaction after error", "rollback_error", rbErr, "original_error", err, "user_id", request.UserID)
			}
		}
	}()

	walletRepoTx := m.walletRepo.WithTx(tx)

	// Serializes concurrent mutations for the same user.
	w, err := walletRepoTx.LockForUpdate(ctx, request.UserID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{UserID: request.UserID}) {
			return nil, err
		}
		logger.Error("Failed to lock wallet", "user_id", request.UserID, "error", err)
		return nil, fmt.Errorf("failed to lock wallet for user %d: %w", request.UserID, err)
	}

	// Idempotency check under the wallet lock.
	if request.ExternalRef != "" {
		record, idemErr := m.idemRepo.WithTx(tx).GetByExternalRef(ctx, request.ExternalRef)
		if idemErr != nil {
			err = idemErr
			return nil, err
		}
		if record != nil {
			_ = tx.Rollback(ctx)
			return m.duplicateResult(ctx, request.ExternalRef, logger)
		}
	}

	if txType.IsAutomatedPayout() {
		flagged, auditErr := m.auditRepo.WithTx(tx).HasUnresolved(ctx, request.UserID)
		if auditErr != nil {
			err = auditErr
			return nil, err
		}
		if flagged {
			err = ErrPayoutsBlocked
			logger.Warn("Withholding automated payout", "user_id", request.UserID, "type", string(txType), "external_ref", request.ExternalRef)
			return nil, err
		}
	}

	if err = w.ApplyDelta(request.Currency, request.Amount); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			logger.Warn("Insufficient funds", "user_id", request.UserID, "currency", string(request.Currency), "amount", request.Amount)
		}
		return nil, err
	}

	if err = walletRepoTx.Update(ctx, w); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry.Status = shared.TransactionStatusCompleted
	entry.ProcessedAt = &now

	if err = m.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}

	if request.ExternalRef != "" {
		record := &idempotency.Record{
			ExternalRef:   request.ExternalRef,
			LedgerEntryID: entry.ID,
			CreatedAt:     now,
		}
		if err = m.idemRepo.WithTx(tx).Create(ctx, record); err != nil {
			// A concurrent mutation won the ref between our check and
			// insert; the unique constraint is the backstop.
			if errors.Is(err, idempotency.ErrDuplicateRef{ExternalRef: request.ExternalRef}) {
				_ = tx.Rollback(ctx)
				err = nil
				return m.duplicateResult(ctx, request.ExternalRef, logger)
			}
			return nil, err
		}
	}

	message, msgErr := outbox.NewMessage(entry)
	if msgErr != nil {
		err = msgErr
		return nil, err
	}
	if err = m.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		return nil, err
	}

	if hook != nil {
		if err = hook(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit database transaction", "user_id", request.UserID, "error", err)
		return nil, fmt.Errorf("failed to commit DB transaction for user %d: %w", request.UserID, err)
	}

	logger.Info("Balance mutation committed",
		"user_id", request.UserID,
		"type", string(txType),
		"currency", string(request.Currency),
		"amount", request.Amount.String(),
		"ledger_entry_id", entry.ID,
	)

	return &Result{Entry: entry, Wallet: w, Duplicate: false}, nil
}

// RecordFailure writes a FAILED ledger entry for a request rejected before
// any wallet mutation. The entry documents the attempt; it carries no
// external ref so a later valid retry of the same ref still applies.
// Unknown types and currencies would be rejected by the table's CHECK
// constraints, so they are recorded as ADJUSTMENT/UNI with the raw request
// values preserved in metadata.
func (m *ManagerImpl) RecordFailure(ctx context.Context, request *shared.MutationRequest, reason string) error {
	now := time.Now().UTC()

	metadata := request.Metadata
	entryType, err := ledger.ParseType(request.Type)
	if err != nil {
		entryType = ledger.TypeAdjustment
		metadata = withMetadata(metadata, "requested_type", request.Type)
	}
	currency := request.Currency
	if !currency.Valid() {
		currency = shared.CurrencyUNI
		metadata = withMetadata(metadata, "requested_currency", string(request.Currency))
	}

	entry := &ledger.Entry{
		UserID:        request.UserID,
		Type:          entryType,
		Currency:      currency,
		Amount:        request.Amount,
		Status:        shared.TransactionStatusFailed,
		Description:   request.Description,
		Metadata:      metadata,
		CorrelationID: request.CorrelationID,
		FailureReason: reason,
		CreatedAt:     now,
		ProcessedAt:   &now,
	}
	if entry.Description == "" {
		entry.Description = ledger.Describe(entry.Type, entry.Currency, entry.Amount)
	}

	if err := m.ledgerRepo.Create(ctx, entry); err != nil {
		m.logger.Error("Failed to record transaction failure", "user_id", request.UserID, "reason", reason, "error", err)
		return err
	}

	m.logger.Info("Recorded failed transaction", "user_id", request.UserID, "type", request.Type, "reason", reason)
	return nil
}

// withMetadata copies the metadata map and sets one key, leaving the
// caller's map untouched.
func withMetadata(metadata map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[key] = value
	return out
}

// GetWallet reads the current snapshot
func (m *ManagerImpl) GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	return m.walletRepo.GetByUserID(ctx, userID)
}

// CreateWallet registers a zeroed wallet for a new user
func (m *ManagerImpl) CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error) {
	w, err := wallet.NewWallet(userID, referredBy)
	if err != nil {
		return nil, err
	}

	if err := m.walletRepo.Create(ctx, w); err != nil {
		return nil, err
	}

	m.logger.Info("Wallet created", "user_id", userID)
	return w, nil
}

// duplicateResult resolves the replayed external ref to its original entry
func (m *ManagerImpl) duplicateResult(ctx context.Context, externalRef string, logger *slog.Logger) (*Result, error) {
	record, err := m.idemRepo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// The winning transaction has not committed yet.
		return nil, fmt.Errorf("external ref %q reserved by an in-flight mutation", externalRef)
	}

	entry, err := m.ledgerRepo.GetByID(ctx, record.LedgerEntryID)
	if err != nil {
		return nil, err
	}

	logger.Info("Duplicate external ref, returning original entry", "external_ref", externalRef, "ledger_entry_id", entry.ID)
	return &Result{Entry: entry, Duplicate: true}, nil
}
