package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	CategoryFood          = "Food"
	CategorySubscription  = "Subscription"
	CategoryTravel        = "Travel"
	CategoryGroceries     = "Groceries"
	CategoryHealth        = "Health"
	CategoryUtilities     = "Utilities"
	CategoryShopping      = "Shopping"
	CategoryEntertainment = "Entertainment"
	CategoryEducation     = "Education"
	CategoryOther         = "Other"
)

const (
	// DefaultCurrency is the only currency the tracker records.
	DefaultCurrency = "INR"

	// DescriptionUnknown is the sentinel stored when extraction yields
	// an empty description.
	DescriptionUnknown = "Unknown"

	SourceVoice = "voice"
	SourceAPI   = "api"
)

// Categories is the closed category set. CategoryOther is the catch-all.
var Categories = []string{
	CategoryFood,
	CategorySubscription,
	CategoryTravel,
	CategoryGroceries,
	CategoryHealth,
	CategoryUtilities,
	CategoryShopping,
	CategoryEntertainment,
	CategoryEducation,
	CategoryOther,
}

var (
	ErrEmptyUserID     = errors.New("empty user id")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrUnknownCategory = errors.New("unknown category")
	ErrNoAmount        = errors.New("no amount detected")
)

// Transaction is one recorded expense event. Transactions are append-only:
// they are created once on a confirmed parse and never mutated or deleted.
type Transaction struct {
	ID          string
	UserID      string
	EventTS     time.Time
	AmountMinor int64
	Currency    string
	Description string
	Category    string
	ConvoID     string
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t Transaction) Validate() error {
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if t.AmountMinor < 0 {
		return ErrNegativeAmount
	}
	if !ValidCategory(t.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, t.Category)
	}
	return nil
}

// ValidCategory reports whether c is in the closed category set.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TransactionID builds the synthetic id for a transaction from wall-clock
// milliseconds. Ids are monotonic-ish; the store bumps the value on collision.
func TransactionID(unixMillis int64) string {
	return fmt.Sprintf("txn_%d", unixMillis)
}

// FormatYearMonth renders t as the YYYYMM key used by monthly rollups.
func FormatYearMonth(t time.Time) string {
	return t.UTC().Format("200601")
}
