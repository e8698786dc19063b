package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

var (
	ErrUnknownType       = errors.New("unknown transaction type")
	ErrZeroAmount        = errors.New("transaction amount cannot be zero")
	ErrInvalidCurrency   = errors.New("currency must be UNI or TON")
	ErrInvalidAmountSign = errors.New("amount sign does not match transaction type")
)

// TransactionType is the closed set of ledger entry categories
type TransactionType string

const (
	TypeDeposit        TransactionType = "DEPOSIT"
	TypeTonDeposit     TransactionType = "TON_DEPOSIT"
	TypeWithdrawal     TransactionType = "WITHDRAWAL"
	TypeBoostPurchase  TransactionType = "BOOST_PURCHASE"
	TypeFarmingDeposit TransactionType = "FARMING_DEPOSIT"
	TypeFarmingReward  TransactionType = "FARMING_REWARD"
	TypeReferralReward TransactionType = "REFERRAL_REWARD"
	TypeMissionReward  TransactionType = "MISSION_REWARD"
	TypeDailyBonus     TransactionType = "DAILY_BONUS"
	TypeAdjustment     TransactionType = "ADJUSTMENT"
)

// signOf maps every transaction type to its required amount sign:
// +1 credit only, -1 debit only, 0 either. Sign-0 adjustments move the
// wallet snapshot but are excluded from the reconciliation baseline.
var signOf = map[TransactionType]int{
	TypeDeposit:        1,
	TypeTonDeposit:     1,
	TypeFarmingReward:  1,
	TypeReferralReward: 1,
	TypeMissionReward:  1,
	TypeDailyBonus:     1,
	TypeWithdrawal:     -1,
	TypeBoostPurchase:  -1,
	TypeFarmingDeposit: -1,
	TypeAdjustment:     0,
}

// ParseType converts a wire string into a TransactionType,
// rejecting anything outside the closed enum set.
func ParseType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if _, ok := signOf[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// RequiredSign returns +1 for credit-only types, -1 for debit-only types
// and 0 for types that allow either direction.
func (t TransactionType) RequiredSign() int {
	return signOf[t]
}

// IsAutomatedPayout reports whether the type is produced by schedulers
// rather than by a user action. Automated payouts are withheld while a
// wallet carries an unresolved audit flag.
func (t TransactionType) IsAutomatedPayout() bool {
	return t == TypeFarmingReward || t == TypeReferralReward
}

// Entry is one immutable, signed balance change in the ledger.
// Once an entry is COMPLETED its amount and currency never change;
// corrections happen through new compensating entries.
type Entry struct {
	ID            int64                    `json:"id"`
	UserID        int64                    `json:"user_id"`
	Type          TransactionType          `json:"type"`
	Currency      shared.Currency          `json:"currency"`
	Amount        decimal.Decimal          `json:"amount"`
	Status        shared.TransactionStatus `json:"status"`
	ExternalRef   string                   `json:"external_ref,omitempty"`
	Description   string                   `json:"description"`
	Metadata      map[string]string        `json:"metadata,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	ProcessedAt   *time.Time               `json:"processed_at,omitempty"`
}

// NewEntry builds a PENDING ledger entry, validating the type against the
// closed enum and the amount sign against the type's required direction.
// This construction-time check is what keeps a BOOST_PURCHASE from ever
// landing in the ledger as a credit.
func NewEntry(userID int64, t TransactionType, currency shared.Currency, amount decimal.Decimal, description string) (*Entry, error) {
	if _, ok := signOf[t]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if !currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if required := signOf[t]; required != 0 && amount.Sign() != required {
		return nil, fmt.Errorf("%w: %s requires sign %+d, got amount %s", ErrInvalidAmountSign, t, required, amount)
	}

	if description == "" {
		description = Describe(t, currency, amount)
	}

	return &Entry{
		UserID:      userID,
		Type:        t,
		Currency:    currency,
		Amount:      amount,
		Status:      shared.TransactionStatusPending,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Describe produces a consistent human-readable description for an entry,
// so a boost purchase never reads as a withdrawal in transaction history.
func Describe(t TransactionType, currency shared.Currency, amount decimal.Decimal) string {
	abs := amount.Abs()
	switch t {
	case TypeDeposit, TypeTonDeposit:
		return fmt.Sprintf("Deposit of %s %s", abs, currency)
	case TypeWithdrawal:
		return fmt.Sprintf("Withdrawal of %s %s", abs, currency)
	case TypeBoostPurchase:
		return fmt.Sprintf("Boost package purchase for %s %s", abs, currency)
	case TypeFarmingDeposit:
		return fmt.Sprintf("Farming deposit of %s %s", abs, currency)
	case TypeFarmingReward:
		return fmt.Sprintf("Farming income of %s %s", abs, currency)
	case TypeReferralReward:
		return fmt.Sprintf("Referral reward of %s %s", abs, currency)
	case TypeMissionReward:
		return fmt.Sprintf("Mission reward of %s %s", abs, currency)
	case TypeDailyBonus:
		return fmt.Sprintf("Daily bonus of %s %s", abs, currency)
	case TypeAdjustment:
		return fmt.Sprintf("Balance adjustment of %s %s", amount, currency)
	default:
		return fmt.Sprintf("%s of %s %s", t, amount, currency)
	}
}
