// Package ledger defines the transaction store contract the core consumes.
// Implementations live in ledger/memory (in-process, default backend) and
// internal/storage (SQLite).
package ledger

import (
	"context"
	"errors"

	"voicexpense/internal/core"
)

// ErrRollupNotFound is returned by RollupReader when no rollup row exists
// for the requested (user, month).
var ErrRollupNotFound = errors.New("rollup not found")

// TransactionSaver appends one transaction to the durable log. The store
// generates the unique id before insertion; the write is atomic — either
// the transaction is durably recorded or nothing is.
type TransactionSaver interface {
	SaveTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
}

// TransactionLister returns all of a user's transactions. The order is
// deterministic (ascending id, i.e. insertion order); callers needing a
// time ordering sort themselves.
type TransactionLister interface {
	ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error)
}

// RollupUpserter inserts or fully overwrites the rollup row keyed by
// (user_id, year_month), preserving id and created_at on overwrite.
type RollupUpserter interface {
	UpsertRollup(ctx context.Context, r core.MonthlyRollup) (core.MonthlyRollup, error)
}

// RollupReader serves the dashboard's polled reads.
type RollupReader interface {
	GetRollup(ctx context.Context, userID, yearMonth string) (core.MonthlyRollup, error)
	ListRollupsByUser(ctx context.Context, userID string) ([]core.MonthlyRollup, error)
}

// RollupQueue tracks which users have transactions not yet folded into a
// rollup, backing the worker's reconcile pass.
type RollupQueue interface {
	ListPendingRollupUsers(ctx context.Context, limit int) ([]string, error)
	MarkUserRolledUp(ctx context.Context, userID string) error
}

// Store is the full contract a backend provides.
type Store interface {
	TransactionSaver
	TransactionLister
	RollupUpserter
	RollupReader
	RollupQueue
}
