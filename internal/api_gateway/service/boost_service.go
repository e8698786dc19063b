package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// BoostServiceImpl implements the BoostService interface
type BoostServiceImpl struct {
	manager   balance.Manager
	boostRepo boost.Repository
	logger    *slog.Logger
}

// NewBoostService creates a new boost service
func NewBoostService(logger *slog.Logger, manager balance.Manager, boostRepo boost.Repository) BoostService {
	return &BoostServiceImpl{
		manager:   manager,
		boostRepo: boostRepo,
		logger:    logger,
	}
}

// Packages lists the purchasable boost tiers
func (s *BoostServiceImpl) Packages() []boost.Package {
	return boost.Catalog()
}

// Purchase debits the TON price and activates or grows the user's position.
// The position write rides inside the purchase debit's database transaction,
// so a committed BOOST_PURCHASE entry and the position can never disagree.
func (s *BoostServiceImpl) Purchase(ctx context.Context, userID, packageID int64, amount decimal.Decimal, externalRef string) (*balance.Result, *boost.Position, error) {
	pkg, err := boost.PackageByID(packageID)
	if err != nil {
		return nil, nil, err
	}

	if amount.Sign() <= 0 {
		return nil, nil, ledger.ErrInvalidAmountSign
	}
	if amount.LessThan(pkg.MinDeposit) {
		return nil, nil, boost.ErrDepositBelowMin
	}

	request := &shared.MutationRequest{
		RequestID:   uuid.New(),
		UserID:      userID,
		Type:        string(ledger.TypeBoostPurchase),
		Currency:    shared.CurrencyTON,
		Amount:      amount.Neg(),
		ExternalRef: externalRef,
		Metadata: map[string]string{
			"package_id":   strconv.FormatInt(pkg.ID, 10),
			"package_name": pkg.Name,
		},
		Timestamp: time.Now().UTC(),
	}

	var position *boost.Position
	result, err := s.manager.ApplyDeltaWithin(ctx, request, func(ctx context.Context, tx pgx.Tx, entry *ledger.Entry) error {
		boostRepoTx := s.boostRepo.WithTx(tx)

		existing, err := boostRepoTx.GetByUserID(ctx, userID)
		if err != nil && !errors.As(err, &boost.ErrPositionNotFound{}) {
			return err
		}

		if existing == nil {
			position, err = boost.NewPosition(userID, pkg, amount)
			if err != nil {
				return err
			}
		} else {
			existing.Accumulate(pkg, amount)
			position = existing
		}

		return boostRepoTx.Upsert(ctx, position)
	})
	if err != nil {
		return nil, nil, err
	}

	if result.Duplicate {
		// The original purchase already wrote the position.
		position, err = s.boostRepo.GetByUserID(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		return result, position, nil
	}

	s.logger.Info("Boost package purchased",
		"user_id", userID,
		"package_id", pkg.ID,
		"deposit", amount.String(),
		"total_deposit", position.DepositAmount.String(),
	)

	return result, position, nil
}

// GetPosition retrieves the user's boost position
func (s *BoostServiceImpl) GetPosition(ctx context.Context, userID int64) (*boost.Position, error) {
	return s.boostRepo.GetByUserID(ctx, userID)
}

// Deactivate stops income on the user's position
func (s *BoostServiceImpl) Deactivate(ctx context.Context, userID int64) error {
	if err := s.boostRepo.Deactivate(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("Boost position deactivated", "user_id", userID)
	return nil
}
