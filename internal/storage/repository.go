package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	rollupStatusPending = "pending"
	rollupStatusDone    = "done"
)

// SQLiteRepository implements ledger.Store on a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB

	mu         sync.Mutex
	lastMillis int64 // last millisecond used for an id, bumped on collision
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// nextID reserves a millisecond-resolution id. Two saves inside the same
// millisecond get consecutive ids instead of colliding.
func (r *SQLiteRepository) nextID(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	millis := now.UnixMilli()
	if millis <= r.lastMillis {
		millis = r.lastMillis + 1
	}
	r.lastMillis = millis
	return core.TransactionID(millis)
}

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Currency == "" {
		tx.Currency = core.DefaultCurrency
	}
	if tx.Description == "" {
		tx.Description = core.DescriptionUnknown
	}
	if tx.Category == "" {
		tx.Category = core.CategoryOther
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	now := time.Now().UTC()
	if tx.EventTS.IsZero() {
		tx.EventTS = now
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now

	const insert = `
		INSERT INTO transactions
			(id, user_id, event_ts, amount_minor, currency, description, category,
			 convo_id, source, rollup_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Another process may have written the same millisecond id; retry with
	// the next one.
	for attempt := 0; attempt < 5; attempt++ {
		tx.ID = r.nextID(now)
		_, err := r.db.ExecContext(ctx, insert,
			tx.ID, tx.UserID, tx.EventTS, tx.AmountMinor, tx.Currency,
			tx.Description, tx.Category, tx.ConvoID, tx.Source,
			rollupStatusPending, tx.CreatedAt, tx.UpdatedAt)
		if err == nil {
			slog.InfoContext(ctx, "Transaction saved to SQLite",
				"id", tx.ID,
				"user_id", tx.UserID,
				"amount_minor", tx.AmountMinor,
				"category", tx.Category)
			return tx, nil
		}
		if !isUniqueViolation(err) {
			return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
		}
	}

	return core.Transaction{}, fmt.Errorf("insert transaction %s: id collision persisted after retries", tx.ID)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteRepository) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	const query = `
		SELECT id, user_id, event_ts, amount_minor, currency, description,
		       category, convo_id, source, created_at, updated_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.EventTS, &tx.AmountMinor,
			&tx.Currency, &tx.Description, &tx.Category, &tx.ConvoID,
			&tx.Source, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertRollup(ctx context.Context, roll core.MonthlyRollup) (core.MonthlyRollup, error) {
	if roll.UserID == "" {
		return core.MonthlyRollup{}, core.ErrEmptyUserID
	}
	roll.ID = core.RollupID(roll.UserID, roll.YearMonth)

	totals, err := json.Marshal(roll.TotalsByCategory)
	if err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("marshal totals: %w", err)
	}
	topItems, err := json.Marshal(roll.TopItems)
	if err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("marshal top items: %w", err)
	}

	now := time.Now().UTC()
	roll.CreatedAt = now
	roll.UpdatedAt = now

	// ON CONFLICT keeps the original id and created_at so the row identity
	// is stable across recomputes.
	const upsert = `
		INSERT INTO monthly_rollups
			(id, user_id, year_month, totals_by_category, total_amount_minor,
			 top_items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year_month) DO UPDATE SET
			totals_by_category = excluded.totals_by_category,
			total_amount_minor = excluded.total_amount_minor,
			top_items = excluded.top_items,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, upsert,
		roll.ID, roll.UserID, roll.YearMonth, string(totals),
		roll.TotalAmountMinor, string(topItems), roll.CreatedAt, roll.UpdatedAt); err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("upsert rollup: %w", err)
	}

	return r.GetRollup(ctx, roll.UserID, roll.YearMonth)
}

func (r *SQLiteRepository) GetRollup(ctx context.Context, userID, yearMonth string) (core.MonthlyRollup, error) {
	const query = `
		SELECT id, user_id, year_month, totals_by_category, total_amount_minor,
		       top_items, created_at, updated_at
		FROM monthly_rollups
		WHERE user_id = ? AND year_month = ?`

	roll, err := scanRollup(r.db.QueryRowContext(ctx, query, userID, yearMonth))
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyRollup{}, ledger.ErrRollupNotFound
	}
	if err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("get rollup: %w", err)
	}
	return roll, nil
}

func (r *SQLiteRepository) ListRollupsByUser(ctx context.Context, userID string) ([]core.MonthlyRollup, error) {
	const query = `
		SELECT id, user_id, year_month, totals_by_category, total_amount_minor,
		       top_items, created_at, updated_at
		FROM monthly_rollups
		WHERE user_id = ?
		ORDER BY year_month DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list rollups: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyRollup
	for rows.Next() {
		roll, err := scanRollup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		out = append(out, roll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollups: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRollup(row rowScanner) (core.MonthlyRollup, error) {
	var (
		roll     core.MonthlyRollup
		totals   string
		topItems string
	)
	if err := row.Scan(&roll.ID, &roll.UserID, &roll.YearMonth, &totals,
		&roll.TotalAmountMinor, &topItems, &roll.CreatedAt, &roll.UpdatedAt); err != nil {
		return core.MonthlyRollup{}, err
	}
	if err := json.Unmarshal([]byte(totals), &roll.TotalsByCategory); err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("decode totals: %w", err)
	}
	if err := json.Unmarshal([]byte(topItems), &roll.TopItems); err != nil {
		return core.MonthlyRollup{}, fmt.Errorf("decode top items: %w", err)
	}
	return roll, nil
}

func (r *SQLiteRepository) ListPendingRollupUsers(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT DISTINCT user_id
		FROM transactions
		WHERE rollup_status = ?
		ORDER BY user_id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, rollupStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending rollup users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) MarkUserRolledUp(ctx context.Context, userID string) error {
	const update = `
		UPDATE transactions
		SET rollup_status = ?, updated_at = ?
		WHERE user_id = ? AND rollup_status = ?`

	if _, err := r.db.ExecContext(ctx, update,
		rollupStatusDone, time.Now().UTC(), userID, rollupStatusPending); err != nil {
		return fmt.Errorf("mark user rolled up: %w", err)
	}
	return nil
}
