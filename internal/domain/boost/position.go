package boost

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPackage    = errors.New("unknown boost package")
	ErrDepositBelowMin   = errors.New("deposit below package minimum")
	ErrPositionNotActive = errors.New("boost position is not active")
)

// Package is one purchasable TON boost tier. DailyRate is the fraction of
// the deposit paid out per day, split across scheduler ticks.
type Package struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	MinDeposit decimal.Decimal `json:"min_deposit"`
}

// Catalog returns the fixed set of boost packages. Rates follow the
// production tiers: 1% to 3% daily.
func Catalog() []Package {
	return []Package{
		{ID: 1, Name: "Starter Boost", DailyRate: decimal.NewFromFloat(0.01), MinDeposit: decimal.NewFromInt(1)},
		{ID: 2, Name: "Standard Boost", DailyRate: decimal.NewFromFloat(0.015), MinDeposit: decimal.NewFromInt(5)},
		{ID: 3, Name: "Advanced Boost", DailyRate: decimal.NewFromFloat(0.02), MinDeposit: decimal.NewFromInt(15)},
		{ID: 4, Name: "Premium Boost", DailyRate: decimal.NewFromFloat(0.025), MinDeposit: decimal.NewFromInt(25)},
		{ID: 5, Name: "Elite Boost", DailyRate: decimal.NewFromFloat(0.03), MinDeposit: decimal.NewFromInt(100)},
	}
}

// PackageByID looks up a package in the catalog
func PackageByID(id int64) (Package, error) {
	for _, p := range Catalog() {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, ErrUnknownPackage
}

// Position is a user's active yield-bearing TON deposit. DepositAmount is a
// derived aggregate: it must always equal the sum of the user's
// BOOST_PURCHASE debits in the ledger, which the reconciliation engine
// verifies.
type Position struct {
	UserID        int64           `json:"user_id"`
	PackageID     int64           `json:"package_id"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DailyRate     decimal.Decimal `json:"daily_rate"`
	Active        bool            `json:"active"`
	ActivatedAt   time.Time       `json:"activated_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewPosition opens a position for a first purchase of the given package
func NewPosition(userID int64, pkg Package, deposit decimal.Decimal) (*Position, error) {
	if deposit.LessThan(pkg.MinDeposit) {
		return nil, ErrDepositBelowMin
	}

	now := time.Now()
	return &Position{
		UserID:        userID,
		PackageID:     pkg.ID,
		DepositAmount: deposit,
		DailyRate:     pkg.DailyRate,
		Active:        true,
		ActivatedAt:   now,
		UpdatedAt:     now,
	}, nil
}

// Accumulate folds a follow-up purchase into the position. The package of
// the latest purchase wins, matching how repeat buyers upgrade tiers.
func (p *Position) Accumulate(pkg Package, deposit decimal.Decimal) {
	p.DepositAmount = p.DepositAmount.Add(deposit)
	p.PackageID = pkg.ID
	p.DailyRate = pkg.DailyRate
	p.Active = true
	p.UpdatedAt = time.Now()
}

// RewardForInterval computes the payout for one scheduler interval:
// deposit * daily_rate * interval/24h.
func (p *Position) RewardForInterval(interval time.Duration) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(interval / time.Second))
	return p.DepositAmount.Mul(p.DailyRate).Mul(seconds).Div(decimal.NewFromInt(86400))
}

// Repository manages boost position persistence
type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (*Position, error)
	Upsert(ctx context.Context, position *Position) error
	// GetActive returns all positions currently earning income.
	GetActive(ctx context.Context) ([]*Position, error)
	Deactivate(ctx context.Context, userID int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrPositionNotFound indicates the user has no boost position
type ErrPositionNotFound struct {
	UserID int64
}

func (e ErrPositionNotFound) Error() string {
	return "boost position not found for user: " + strconv.FormatInt(e.UserID, 10)
}

// Is matches any ErrPositionNotFound when the target carries a zero user id
func (e ErrPositionNotFound) Is(target error) bool {
	t, ok := target.(ErrPositionNotFound)
	if !ok {
		return false
	}
	return t.UserID == 0 || t.UserID == e.UserID
}
