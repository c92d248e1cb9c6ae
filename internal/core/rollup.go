package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// CategoryAmount is one (category, summed amount) pair of a rollup's
// top_items. It marshals as a two-element array, e.g. ["Food", 15000],
// which is the wire form the summary API exposes.
type CategoryAmount struct {
	Category    string
	AmountMinor int64
}

func (c CategoryAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Category, c.AmountMinor})
}

func (c *CategoryAmount) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("category amount pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &c.Category); err != nil {
		return fmt.Errorf("category amount pair: %w", err)
	}
	if err := json.Unmarshal(raw[1], &c.AmountMinor); err != nil {
		return fmt.Errorf("category amount pair: %w", err)
	}
	return nil
}

// MonthlyRollup is the per-(user, month) aggregate. There is exactly one row
// per (UserID, YearMonth); recomputation overwrites the totals and TopItems
// in place, preserving ID and CreatedAt.
type MonthlyRollup struct {
	ID               string
	UserID           string
	YearMonth        string
	TotalsByCategory map[string]int64
	TotalAmountMinor int64
	TopItems         []CategoryAmount
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RollupID derives the deterministic rollup row id, enabling idempotent
// upserts.
func RollupID(userID, yearMonth string) string {
	return fmt.Sprintf("roll_%s_%s", userID, yearMonth)
}
