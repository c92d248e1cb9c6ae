package services

import (
	"context"
	"errors"
	"testing"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger/memory"
	"voicexpense/internal/parser"
)

type recordingPublisher struct {
	txnIDs     []string
	userIDs    []string
	yearMonths []string
	err        error
}

func (p *recordingPublisher) PublishTransactionLogged(ctx context.Context, txnID, userID, yearMonth string) error {
	p.txnIDs = append(p.txnIDs, txnID)
	p.userIDs = append(p.userIDs, userID)
	p.yearMonths = append(p.yearMonths, yearMonth)
	return p.err
}

func TestParseCandidate(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(), parser.New(), nil)

	cand, err := svc.ParseCandidate("coffee 150 rs")
	if err != nil {
		t.Fatalf("ParseCandidate() error = %v", err)
	}
	if cand.AmountMinor != 15000 {
		t.Errorf("AmountMinor = %d, want 15000", cand.AmountMinor)
	}
	if cand.Category != core.CategoryFood {
		t.Errorf("Category = %q, want Food", cand.Category)
	}
}

func TestParseCandidateNoAmount(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(), parser.New(), nil)

	_, err := svc.ParseCandidate("bought some snacks")
	if !errors.Is(err, core.ErrNoAmount) {
		t.Errorf("ParseCandidate() error = %v, want ErrNoAmount", err)
	}
}

func TestLogExpense(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, parser.New(), pub)
	ctx := context.Background()

	txn, err := svc.LogExpense(ctx, "uber to airport 450", "demo_user", core.SourceAPI, "")
	if err != nil {
		t.Fatalf("LogExpense() error = %v", err)
	}
	if txn.ID == "" {
		t.Error("transaction ID should be assigned")
	}
	if txn.AmountMinor != 45000 {
		t.Errorf("AmountMinor = %d, want 45000", txn.AmountMinor)
	}
	if txn.Category != core.CategoryTravel {
		t.Errorf("Category = %q, want Travel", txn.Category)
	}
	if txn.Currency != core.DefaultCurrency {
		t.Errorf("Currency = %q, want %q", txn.Currency, core.DefaultCurrency)
	}

	listed, err := store.ListTransactionsByUser(ctx, "demo_user")
	if err != nil {
		t.Fatalf("ListTransactionsByUser() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("persisted %d transactions, want 1", len(listed))
	}

	if len(pub.txnIDs) != 1 || pub.txnIDs[0] != txn.ID {
		t.Errorf("published txn IDs = %v, want [%s]", pub.txnIDs, txn.ID)
	}
	if pub.yearMonths[0] != core.FormatYearMonth(txn.EventTS) {
		t.Errorf("published year_month = %q, want %q", pub.yearMonths[0], core.FormatYearMonth(txn.EventTS))
	}
}

func TestLogExpenseNoAmountNotPersisted(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, parser.New(), pub)
	ctx := context.Background()

	_, err := svc.LogExpense(ctx, "forgot my wallet", "demo_user", core.SourceAPI, "")
	if !errors.Is(err, core.ErrNoAmount) {
		t.Fatalf("LogExpense() error = %v, want ErrNoAmount", err)
	}

	listed, err := store.ListTransactionsByUser(ctx, "demo_user")
	if err != nil {
		t.Fatalf("ListTransactionsByUser() error = %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("persisted %d transactions, want 0", len(listed))
	}
	if len(pub.txnIDs) != 0 {
		t.Errorf("published %d messages, want 0", len(pub.txnIDs))
	}
}

func TestLogExpensePublishFailureDoesNotFailSave(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, parser.New(), pub)
	ctx := context.Background()

	txn, err := svc.LogExpense(ctx, "groceries 900", "demo_user", core.SourceAPI, "")
	if err != nil {
		t.Fatalf("LogExpense() error = %v", err)
	}
	if txn.ID == "" {
		t.Error("transaction should still be saved when publish fails")
	}
}

func TestLogExpenseNilPublisher(t *testing.T) {
	svc := NewExpenseService(memory.NewStore(), parser.New(), nil)

	if _, err := svc.LogExpense(context.Background(), "metro card 300", "demo_user", core.SourceAPI, ""); err != nil {
		t.Fatalf("LogExpense() with nil publisher error = %v", err)
	}
}
