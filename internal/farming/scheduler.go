// Package farming pays boost income on a fixed tick. Every payout carries a
// deterministic external ref derived from the tick timestamp, so a crashed
// or overlapping run can never pay the same interval twice: the idempotency
// layer swallows the replay.
package farming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/config"
	"github.com/unifarm-balance-ledger/internal/domain/boost"
	"github.com/unifarm-balance-ledger/internal/domain/ledger"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// amountScale is the NUMERIC scale of balance columns. Rewards are rounded
// before they enter the manager so the ledger sum and the snapshot always
// agree digit for digit.
const amountScale = 9

// Scheduler pays farming income for active boost positions on each tick
type Scheduler struct {
	manager        balance.Manager
	boostRepo      boost.Repository
	walletRepo     wallet.Repository
	pool           *ants.Pool
	logger         *slog.Logger
	interval       time.Duration
	referralLevels []float64
	running        atomic.Bool
}

// NewScheduler creates a new farming income scheduler
func NewScheduler(
	cfg *config.FarmingConfig,
	manager balance.Manager,
	boostRepo boost.Repository,
	walletRepo wallet.Repository,
	logger *slog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(cfg.FanOutPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create farming fan-out pool: %w", err)
	}

	return &Scheduler{
		manager:        manager,
		boostRepo:      boostRepo,
		walletRepo:     walletRepo,
		pool:           pool,
		logger:         logger,
		interval:       cfg.TickInterval,
		referralLevels: cfg.ReferralLevels,
	}, nil
}

// Start begins ticking until context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting Farming Scheduler",
		"tick_interval", s.interval.String(),
		"fan_out_pool_size", s.pool.Cap(),
		"referral_levels", len(s.referralLevels),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Farming Scheduler stopping due to context cancellation.")
			s.pool.Release()
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				s.logger.Warn("Previous farming tick still running, skipping")
				continue
			}
			if err := s.runTick(ctx, time.Now()); err != nil {
				s.logger.Error("Error during farming tick", "error", err)
			}
			s.running.Store(false)
		}
	}
}

// runTick pays all active positions for one interval. The tick ID is the
// interval-aligned UTC timestamp, shared by every payout of the run.
func (s *Scheduler) runTick(ctx context.Context, now time.Time) error {
	tickID := TickID(now, s.interval)

	positions, err := s.boostRepo.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	start := time.Now()
	var wg sync.WaitGroup
	var paid, skipped atomic.Int64

	for _, position := range positions {
		position := position
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			if s.payPosition(ctx, position, tickID) {
				paid.Add(1)
			} else {
				skipped.Add(1)
			}
		}); err != nil {
			wg.Done()
			s.logger.Error("Failed to submit farming payout", "user_id", position.UserID, "error", err)
		}
	}
	wg.Wait()

	s.logger.Info("Farming tick completed",
		"tick_id", tickID,
		"positions", len(positions),
		"paid", paid.Load(),
		"skipped", skipped.Load(),
		"duration", time.Since(start).String(),
	)
	return nil
}

// payPosition credits one position's income for the tick and fans out
// referral rewards. Returns true when a new payout was applied.
func (s *Scheduler) payPosition(ctx context.Context, position *boost.Position, tickID string) bool {
	reward := position.RewardForInterval(s.interval).Round(amountScale)
	if !reward.IsPositive() {
		return false
	}

	request := &shared.MutationRequest{
		RequestID:   uuid.New(),
		UserID:      position.UserID,
		Type:        string(ledger.TypeFarmingReward),
		Currency:    shared.CurrencyTON,
		Amount:      reward,
		ExternalRef: fmt.Sprintf("farming:%d:%s", position.UserID, tickID),
		Metadata: map[string]string{
			"tick_id":    tickID,
			"package_id": strconv.FormatInt(position.PackageID, 10),
		},
		Timestamp: time.Now().UTC(),
	}

	result, err := s.manager.ApplyDelta(ctx, request)
	if err != nil {
		if errors.Is(err, balance.ErrPayoutsBlocked) {
			s.logger.Info("Farming payout withheld by audit flag", "user_id", position.UserID, "tick_id", tickID)
			return false
		}
		s.logger.Error("Failed to pay farming reward", "user_id", position.UserID, "tick_id", tickID, "error", err)
		return false
	}
	if result.Duplicate {
		return false
	}

	s.payReferrals(ctx, position.UserID, reward, tickID)
	return true
}

// payReferrals walks the referral chain and credits each level its share of
// the source income. A missing wallet or the end of the chain stops the walk.
func (s *Scheduler) payReferrals(ctx context.Context, sourceUserID int64, income decimal.Decimal, tickID string) {
	current := sourceUserID
	for level, rate := range s.referralLevels {
		w, err := s.walletRepo.GetByUserID(ctx, current)
		if err != nil {
			if !errors.As(err, &wallet.ErrWalletNotFound{}) {
				s.logger.Error("Failed to walk referral chain", "user_id", current, "error", err)
			}
			return
		}
		if w.ReferredBy == nil {
			return
		}
		referrer := *w.ReferredBy

		reward := income.Mul(decimal.NewFromFloat(rate)).Round(amountScale)
		if reward.IsPositive() {
			request := &shared.MutationRequest{
				RequestID:   uuid.New(),
				UserID:      referrer,
				Type:        string(ledger.TypeReferralReward),
				Currency:    shared.CurrencyTON,
				Amount:      reward,
				ExternalRef: fmt.Sprintf("referral:%d:%d:%s", referrer, sourceUserID, tickID),
				Metadata: map[string]string{
					"tick_id":        tickID,
					"source_user_id": strconv.FormatInt(sourceUserID, 10),
					"level":          strconv.Itoa(level + 1),
				},
				Timestamp: time.Now().UTC(),
			}

			if _, err := s.manager.ApplyDelta(ctx, request); err != nil {
				if errors.Is(err, balance.ErrPayoutsBlocked) {
					s.logger.Info("Referral payout withheld by audit flag", "user_id", referrer, "tick_id", tickID)
				} else {
					s.logger.Error("Failed to pay referral reward", "user_id", referrer, "source_user_id", sourceUserID, "tick_id", tickID, "error", err)
				}
			}
		}

		current = referrer
	}
}

// TickID returns the interval-aligned UTC timestamp identifying a tick
func TickID(now time.Time, interval time.Duration) string {
	return strconv.FormatInt(now.UTC().Truncate(interval).Unix(), 10)
}
