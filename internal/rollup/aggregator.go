// Package rollup computes per-(user, month) spending summaries and keeps
// the persisted rollup rows fresh.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger"
)

// TopItemCount bounds the top_items list of a rollup.
const TopItemCount = 3

// Summary is what the front-ends render or speak.
type Summary struct {
	TotalMinor int64
	TopItems   []core.CategoryAmount
}

// Aggregator recomputes monthly rollups from scratch on every call; no
// incremental bookkeeping.
type Aggregator struct {
	store interface {
		ledger.TransactionLister
		ledger.RollupUpserter
	}
	now func() time.Time
}

func NewAggregator(store ledger.Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// NewAggregatorWithClock fixes the clock used to default yearMonth.
func NewAggregatorWithClock(store ledger.Store, now func() time.Time) *Aggregator {
	return &Aggregator{store: store, now: now}
}

// ComputeMonthlyRollup scans all of the user's transactions, sums them per
// category, upserts the rollup row keyed by (userID, yearMonth) and
// returns the summary. An empty yearMonth defaults to the current month.
//
// The scan deliberately covers the user's entire history rather than the
// requested month; the yearMonth argument only keys the stored row. That
// mirrors the shipped behavior and is flagged for product clarification
// (see DESIGN.md) — do not add a month filter here without one.
func (a *Aggregator) ComputeMonthlyRollup(ctx context.Context, userID, yearMonth string) (Summary, error) {
	if yearMonth == "" {
		yearMonth = core.FormatYearMonth(a.now())
	}

	txs, err := a.store.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("list transactions: %w", err)
	}

	totals := make(map[string]int64)
	firstSeen := make(map[string]int)
	for i, tx := range txs {
		if _, ok := totals[tx.Category]; !ok {
			firstSeen[tx.Category] = i
		}
		totals[tx.Category] += tx.AmountMinor
	}

	var total int64
	items := make([]core.CategoryAmount, 0, len(totals))
	for cat, sum := range totals {
		total += sum
		items = append(items, core.CategoryAmount{Category: cat, AmountMinor: sum})
	}
	// Descending by amount; ties go to the category encountered first in
	// the scan. The store lists in insertion order, so repeated runs over
	// unchanged data produce identical top_items.
	sort.Slice(items, func(i, j int) bool {
		if items[i].AmountMinor != items[j].AmountMinor {
			return items[i].AmountMinor > items[j].AmountMinor
		}
		return firstSeen[items[i].Category] < firstSeen[items[j].Category]
	})

	top := items
	if len(top) > TopItemCount {
		top = top[:TopItemCount]
	}

	if _, err := a.store.UpsertRollup(ctx, core.MonthlyRollup{
		UserID:           userID,
		YearMonth:        yearMonth,
		TotalsByCategory: totals,
		TotalAmountMinor: total,
		TopItems:         top,
	}); err != nil {
		return Summary{}, fmt.Errorf("upsert rollup: %w", err)
	}

	slog.DebugContext(ctx, "Monthly rollup recomputed",
		"user_id", userID,
		"year_month", yearMonth,
		"total_minor", total,
		"categories", len(totals))

	return Summary{TotalMinor: total, TopItems: top}, nil
}
