package auditor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unifarm-balance-ledger/internal/config"
	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

// Runner sweeps all wallets on a fixed interval and audits each one
type Runner struct {
	auditor    *Auditor
	walletRepo wallet.Repository
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
}

func NewRunner(
	cfg *config.AuditConfig,
	auditor *Auditor,
	walletRepo wallet.Repository,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		auditor:    auditor,
		walletRepo: walletRepo,
		logger:     logger,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
	}
}

// Start begins periodic reconciliation until context is canceled
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Starting Audit Runner",
		"interval", r.interval.String(),
		"batch_size", r.batchSize,
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Audit Runner stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := r.runPass(ctx); err != nil {
				r.logger.Error("Error during audit pass", "error", err)
			}
		}
	}
}

// runPass pages through all wallet owners and audits each one
func (r *Runner) runPass(ctx context.Context) error {
	start := time.Now()
	var audited, divergent int

	afterUserID := int64(0)
	for {
		userIDs, err := r.walletRepo.ListUserIDs(ctx, afterUserID, r.batchSize)
		if err != nil {
			return fmt.Errorf("failed to list wallet owners: %w", err)
		}
		if len(userIDs) == 0 {
			break
		}

		for _, userID := range userIDs {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			report, err := r.auditor.AuditUser(ctx, userID)
			if err != nil {
				r.logger.Error("Failed to audit user", "user_id", userID, "error", err)
				continue
			}
			audited++
			if report.Divergent() {
				divergent++
			}
		}

		afterUserID = userIDs[len(userIDs)-1]
	}

	r.logger.Info("Audit pass completed",
		"audited", audited,
		"divergent", divergent,
		"duration", time.Since(start).String(),
	)
	return nil
}
