package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voicexpense/internal/amqp"
	"voicexpense/internal/core"
	"voicexpense/internal/ledger"
	"voicexpense/internal/rollup"
)

// RollupWorker recomputes monthly rollups for users whose transactions
// changed. It is driven by AMQP messages and backstopped by a periodic
// reconcile pass over the pending queue, so a dropped message only delays a
// rollup instead of losing it.
type RollupWorker struct {
	aggregator *rollup.Aggregator
	queue      ledger.RollupQueue
	batchSize  int
}

func NewRollupWorker(aggregator *rollup.Aggregator, queue ledger.RollupQueue, batchSize int) *RollupWorker {
	return &RollupWorker{
		aggregator: aggregator,
		queue:      queue,
		batchSize:  batchSize,
	}
}

// HandleTransactionLogged processes a single recompute message from AMQP.
func (w *RollupWorker) HandleTransactionLogged(ctx context.Context, msg *amqp.TransactionLoggedMessage) error {
	slog.InfoContext(ctx, "Processing transaction logged message",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID,
		"year_month", msg.YearMonth)

	summary, err := w.aggregator.ComputeMonthlyRollup(ctx, msg.UserID, msg.YearMonth)
	if err != nil {
		return fmt.Errorf("compute rollup for %s: %w", msg.UserID, err)
	}

	if err := w.queue.MarkUserRolledUp(ctx, msg.UserID); err != nil {
		return fmt.Errorf("mark user rolled up: %w", err)
	}

	slog.InfoContext(ctx, "Rollup recomputed",
		"user_id", msg.UserID,
		"year_month", msg.YearMonth,
		"total_minor", summary.TotalMinor)

	return nil
}

// ProcessPending recomputes rollups for users flagged pending in the store.
// It processes at most batchSize users per call and reports how many it
// handled.
func (w *RollupWorker) ProcessPending(ctx context.Context) (int, error) {
	users, err := w.queue.ListPendingRollupUsers(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending rollup users: %w", err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	yearMonth := core.FormatYearMonth(time.Now())
	processed := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		if _, err := w.aggregator.ComputeMonthlyRollup(ctx, userID, yearMonth); err != nil {
			slog.ErrorContext(ctx, "Failed to recompute rollup",
				"user_id", userID, "error", err)
			continue
		}
		if err := w.queue.MarkUserRolledUp(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to clear pending flag",
				"user_id", userID, "error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Reconcile pass completed",
		"pending", len(users),
		"processed", processed)

	return processed, nil
}

// RunReconcileLoop runs ProcessPending on a fixed interval until ctx is
// cancelled.
func (w *RollupWorker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Starting rollup reconcile loop", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping rollup reconcile loop", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Reconcile pass failed", "error", err)
			}
		}
	}
}
