// Package auditor reconciles wallet snapshots against the ledger. It never
// repairs a balance in place: detected drift produces an audit flag, and
// repairs happen through compensating ADJUSTMENT entries applied by the
// balance manager like any other mutation.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/audit"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// Check is the outcome of one user/currency reconciliation
type Check struct {
	Currency  shared.Currency `json:"currency"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
	Divergent bool            `json:"divergent"`
	Reason    string          `json:"reason,omitempty"`
}

// Report collects the checks performed for one user
type Report struct {
	UserID    int64     `json:"user_id"`
	Checks    []Check   `json:"checks"`
	AuditedAt time.Time `json:"audited_at"`
}

// Divergent reports whether any check found drift
func (r *Report) Divergent() bool {
	for _, c := range r.Checks {
		if c.Divergent {
			return true
		}
	}
	return false
}

// Auditor recomputes expected balances from the ledger and flags drift
type Auditor struct {
	walletRepo wallet.Repository
	ledgerRepo ledger.Repository
	boostRepo  boost.Repository
	auditRepo  audit.Repository
	manager    balance.Manager
	logger     *slog.Logger
}

// NewAuditor creates a new reconciliation auditor
func NewAuditor(
	walletRepo wallet.Repository,
	ledgerRepo ledger.Repository,
	boostRepo boost.Repository,
	auditRepo audit.Repository,
	manager balance.Manager,
	logger *slog.Logger,
) *Auditor {
	return &Auditor{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		boostRepo:  boostRepo,
		auditRepo:  auditRepo,
		manager:    manager,
		logger:     logger,
	}
}

// AuditUser reconciles both currency snapshots of one user against the sum
// of COMPLETED ledger entries (compensating adjustments excluded) and the
// active boost position against its recorded purchases. Divergence creates an audit flag; an existing
// unresolved flag for the pair is left as is.
func (a *Auditor) AuditUser(ctx context.Context, userID int64) (*Report, error) {
	w, err := a.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &Report{UserID: userID, AuditedAt: time.Now().UTC()}

	for _, currency := range []shared.Currency{shared.CurrencyUNI, shared.CurrencyTON} {
		expected, err := a.ledgerRepo.SumCompletedByUser(ctx, userID, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to recompute %s balance for user %d: %w", currency, userID, err)
		}

		actual, err := w.Balance(currency)
		if err != nil {
			return nil, err
		}

		check := Check{Currency: currency, Expected: expected, Actual: actual}
		if !expected.Equal(actual) {
			check.Divergent = true
			check.Reason = "wallet snapshot diverged from ledger sum"
			a.flagDrift(ctx, userID, check)
		}
		report.Checks = append(report.Checks, check)
	}

	if boostCheck, ok := a.auditBoostDeposit(ctx, userID); ok {
		report.Checks = append(report.Checks, boostCheck)
	}

	if report.Divergent() {
		a.logger.Warn("Audit found divergence", "user_id", userID)
	}

	return report, nil
}

// auditBoostDeposit compares the active boost position's deposit total with
// the sum of BOOST_PURCHASE debits in the ledger. A position that claims a
// larger deposit than was ever paid for is flagged.
func (a *Auditor) auditBoostDeposit(ctx context.Context, userID int64) (Check, bool) {
	position, err := a.boostRepo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.As(err, &boost.ErrPositionNotFound{}) {
			a.logger.Error("Failed to load boost position for audit", "user_id", userID, "error", err)
		}
		return Check{}, false
	}
	if !position.Active {
		return Check{}, false
	}

	spent, err := a.ledgerRepo.SumCompletedByUserAndTypes(ctx, userID, shared.CurrencyTON, []ledger.TransactionType{ledger.TypeBoostPurchase})
	if err != nil {
		a.logger.Error("Failed to sum boost purchases for audit", "user_id", userID, "error", err)
		return Check{}, false
	}

	// Purchase debits are negative in the ledger.
	paid := spent.Neg()
	check := Check{Currency: shared.CurrencyTON, Expected: paid, Actual: position.DepositAmount}
	if position.DepositAmount.GreaterThan(paid) {
		check.Divergent = true
		check.Reason = "boost deposit exceeds recorded purchases"
		a.flagDrift(ctx, userID, check)
	}

	return check, true
}

func (a *Auditor) flagDrift(ctx context.Context, userID int64, check Check) {
	flag := &audit.Flag{
		UserID:    userID,
		Currency:  check.Currency,
		Expected:  check.Expected,
		Actual:    check.Actual,
		Reason:    check.Reason,
		FlaggedAt: time.Now().UTC(),
	}

	if err := a.auditRepo.Create(ctx, flag); err != nil {
		if errors.As(err, &audit.ErrAlreadyFlagged{}) {
			a.logger.Debug("Drift already flagged", "user_id", userID, "currency", string(check.Currency))
			return
		}
		a.logger.Error("Failed to create audit flag", "user_id", userID, "currency", string(check.Currency), "error", err)
		return
	}

	a.logger.Warn("Audit flag created",
		"flag_id", flag.ID,
		"user_id", userID,
		"currency", string(check.Currency),
		"expected", check.Expected.String(),
		"actual", check.Actual.String(),
		"reason", check.Reason,
	)
}

// ResolveFlag clears the unresolved flag for the user/currency pair by
// applying a compensating ADJUSTMENT entry for the divergence. The
// adjustment moves only the snapshot side of the reconciliation (the
// baseline excludes ADJUSTMENT entries), so a subsequent audit of the same
// user comes back clean. A flag whose divergence has since closed to zero
// is resolved without an entry.
func (a *Auditor) ResolveFlag(ctx context.Context, userID int64, currency shared.Currency) (*audit.Flag, error) {
	flag, err := a.auditRepo.GetUnresolved(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, audit.ErrFlagNotFound{ID: 0}
	}

	divergence := flag.Divergence()
	if divergence.IsZero() {
		if err := a.auditRepo.Resolve(ctx, flag.ID, 0); err != nil {
			return nil, err
		}
		a.logger.Info("Audit flag resolved without adjustment", "flag_id", flag.ID, "user_id", userID)
		return flag, nil
	}

	request := &shared.MutationRequest{
		RequestID:   uuid.New(),
		UserID:      userID,
		Type:        string(ledger.TypeAdjustment),
		Currency:    currency,
		Amount:      divergence,
		ExternalRef: "audit:resolve:" + strconv.FormatInt(flag.ID, 10),
		Description: "Compensating adjustment for audit flag " + strconv.FormatInt(flag.ID, 10),
		Timestamp:   time.Now().UTC(),
	}

	result, err := a.manager.ApplyDelta(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to apply compensating adjustment for flag %d: %w", flag.ID, err)
	}

	if err := a.auditRepo.Resolve(ctx, flag.ID, result.Entry.ID); err != nil {
		return nil, err
	}

	a.logger.Info("Audit flag resolved",
		"flag_id", flag.ID,
		"user_id", userID,
		"currency", string(currency),
		"adjustment", divergence.String(),
		"ledger_entry_id", result.Entry.ID,
	)

	now := time.Now()
	flag.ResolvedAt = &now
	flag.ResolutionEntryID = &result.Entry.ID
	return flag, nil
}
