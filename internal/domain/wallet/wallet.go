package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidUserID     = errors.New("user id must be positive")
	ErrUnknownCurrency   = errors.New("unknown currency")
)

// Wallet is the mutable balance snapshot for one user. At all times each
// balance equals the sum of that user's signed COMPLETED ledger entries for
// the currency; the balance manager is the only writer.
type Wallet struct {
	UserID     int64           `json:"user_id"`
	ReferredBy *int64          `json:"referred_by,omitempty"`
	BalanceUni decimal.Decimal `json:"balance_uni"`
	BalanceTon decimal.Decimal `json:"balance_ton"`
	Version    int             `json:"version"` // For optimistic locking
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewWallet creates a zeroed wallet for a newly registered user
func NewWallet(userID int64, referredBy *int64) (*Wallet, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}

	now := time.Now()
	return &Wallet{
		UserID:     userID,
		ReferredBy: referredBy,
		BalanceUni: decimal.Zero,
		BalanceTon: decimal.Zero,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Balance returns the snapshot balance for the given currency
func (w *Wallet) Balance(currency shared.Currency) (decimal.Decimal, error) {
	switch currency {
	case shared.CurrencyUNI:
		return w.BalanceUni, nil
	case shared.CurrencyTON:
		return w.BalanceTon, nil
	default:
		return decimal.Zero, ErrUnknownCurrency
	}
}

// ApplyDelta adds a signed amount to one currency balance. A debit that
// would take the balance below zero is rejected with ErrInsufficientFunds
// and leaves the wallet untouched.
func (w *Wallet) ApplyDelta(currency shared.Currency, amount decimal.Decimal) error {
	current, err := w.Balance(currency)
	if err != nil {
		return err
	}

	next := current.Add(amount)
	if next.IsNegative() {
		return ErrInsufficientFunds
	}

	switch currency {
	case shared.CurrencyUNI:
		w.BalanceUni = next
	case shared.CurrencyTON:
		w.BalanceTon = next
	}
	w.Version++
	w.UpdatedAt = time.Now()
	return nil
}

// CanDebit checks whether the wallet covers a debit of the given magnitude
func (w *Wallet) CanDebit(currency shared.Currency, amount decimal.Decimal) bool {
	current, err := w.Balance(currency)
	if err != nil {
		return false
	}
	return current.GreaterThanOrEqual(amount.Abs())
}
