package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ce-marketplace/internal/services"
)

// Pending-payment drafts older than this can never complete checkout.
const staleAfter = 24 * time.Hour

// CheckoutSweeper periodically removes submissions whose checkout session
// expired without being paid.
type CheckoutSweeper struct {
	submissionService *services.SubmissionService
	logger            *zap.Logger
	cron              *cron.Cron
}

// NewCheckoutSweeper creates a new checkout sweeper job
func NewCheckoutSweeper(submissionService *services.SubmissionService, logger *zap.Logger) *CheckoutSweeper {
	return &CheckoutSweeper{
		submissionService: submissionService,
		logger:            logger,
		cron:              cron.New(),
	}
}

// Start schedules the hourly sweep
func (cs *CheckoutSweeper) Start() error {
	if _, err := cs.cron.AddFunc("@hourly", cs.sweep); err != nil {
		return err
	}
	cs.cron.Start()
	cs.logger.Info("checkout sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (cs *CheckoutSweeper) Stop() {
	<-cs.cron.Stop().Done()
	cs.logger.Info("checkout sweeper stopped")
}

func (cs *CheckoutSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := cs.submissionService.DeleteStalePendingPayment(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		cs.logger.Error("checkout sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		cs.logger.Info("swept stale pending-payment submissions", zap.Int64("removed", removed))
	}
}
