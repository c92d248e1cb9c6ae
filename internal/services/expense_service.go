package services

import (
	"context"
	"fmt"
	"log/slog"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger"
	"voicexpense/internal/parser"
)

// EventPublisher pushes a rollup-recompute notification after a transaction is
// saved. A nil publisher disables notifications; the reconcile loop still
// picks the user up from the pending queue.
type EventPublisher interface {
	PublishTransactionLogged(ctx context.Context, txnID, userID, yearMonth string) error
}

// ExpenseService turns free text into persisted transactions.
type ExpenseService struct {
	store     ledger.Store
	parser    *parser.Parser
	publisher EventPublisher
}

func NewExpenseService(store ledger.Store, p *parser.Parser, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		parser:    p,
		publisher: publisher,
	}
}

// ParseCandidate extracts amount, description and category from raw text.
// Text with no recognizable amount returns core.ErrNoAmount; callers must not
// persist such input.
func (s *ExpenseService) ParseCandidate(text string) (parser.Candidate, error) {
	cand := s.parser.Parse(text)
	if cand.AmountMinor == 0 {
		return parser.Candidate{}, core.ErrNoAmount
	}
	return cand, nil
}

// SaveCandidate persists a parsed candidate for the given user.
func (s *ExpenseService) SaveCandidate(ctx context.Context, cand parser.Candidate, userID, source, convoID string) (core.Transaction, error) {
	txn := core.Transaction{
		UserID:      userID,
		EventTS:     cand.EventTS,
		AmountMinor: cand.AmountMinor,
		Currency:    core.DefaultCurrency,
		Description: cand.Description,
		Category:    cand.Category,
		ConvoID:     convoID,
		Source:      source,
	}

	saved, err := s.store.SaveTransaction(ctx, txn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	// Publish async recompute message (non-blocking)
	if err := s.publishTransactionLogged(ctx, saved); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction logged message",
			"transaction_id", saved.ID, "error", err)
		// Don't fail the request - transaction is saved locally
	}

	return saved, nil
}

// LogExpense parses and persists in one call. It is the path behind both the
// HTTP log endpoint and the voice loop's confirmed saves.
func (s *ExpenseService) LogExpense(ctx context.Context, text, userID, source, convoID string) (core.Transaction, error) {
	cand, err := s.ParseCandidate(text)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.SaveCandidate(ctx, cand, userID, source, convoID)
}

func (s *ExpenseService) publishTransactionLogged(ctx context.Context, txn core.Transaction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Publisher not available, skipping rollup notification")
		return nil
	}
	return s.publisher.PublishTransactionLogged(ctx, txn.ID, txn.UserID, core.FormatYearMonth(txn.EventTS))
}
