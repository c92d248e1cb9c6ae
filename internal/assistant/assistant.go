// Package assistant runs the conversational expense loop: listen for a
// phrase, parse it, confirm, save, speak the result.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"voicexpense/internal/core"
	"voicexpense/internal/rollup"
	"voicexpense/internal/services"
)

// Listener yields one utterance per call. Implementations block until input
// is available and return io.EOF when the input source is exhausted.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker renders one response to the user.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

var exitPhrases = []string{"exit", "stop", "quit", "bye"}

var summaryPhrases = []string{"summary", "spent", "total", "month"}

func containsAny(text string, phrases []string) bool {
	lowered := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// isExitPhrase reports whether the utterance asks to end the session.
func isExitPhrase(text string) bool { return containsAny(text, exitPhrases) }

// isSummaryPhrase reports whether the utterance asks for the spend summary.
func isSummaryPhrase(text string) bool { return containsAny(text, summaryPhrases) }

func isAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "y", "yes", "yeah", "ok", "sure":
		return true
	}
	return false
}

// Assistant drives one conversation for one user. Each session gets a fresh
// convo_id so its saves can be traced back to the conversation.
type Assistant struct {
	listener   Listener
	speaker    Speaker
	service    *services.ExpenseService
	aggregator *rollup.Aggregator
	userID     string
	convoID    string
}

func New(l Listener, s Speaker, svc *services.ExpenseService, agg *rollup.Aggregator, userID string) *Assistant {
	return &Assistant{
		listener:   l,
		speaker:    s,
		service:    svc,
		aggregator: agg,
		userID:     userID,
		convoID:    uuid.NewString(),
	}
}

// Run loops until the user says an exit phrase, input ends, or ctx is
// cancelled.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.speaker.Say(ctx, "Hi! Tell me what you spent, or ask for a summary."); err != nil {
		return fmt.Errorf("greet: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text, err := a.listener.Listen(ctx)
		if errors.Is(err, io.EOF) {
			return a.speaker.Say(ctx, "Goodbye!")
		}
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if isExitPhrase(text) {
			return a.speaker.Say(ctx, "Goodbye!")
		}

		if isSummaryPhrase(text) {
			if err := a.speakSummary(ctx); err != nil {
				return err
			}
			continue
		}

		if err := a.handleExpense(ctx, text); err != nil {
			return err
		}
	}
}

func (a *Assistant) handleExpense(ctx context.Context, text string) error {
	cand, err := a.service.ParseCandidate(text)
	if errors.Is(err, core.ErrNoAmount) {
		return a.speaker.Say(ctx, "I couldn't find an amount in that. Try something like 'coffee 150'.")
	}
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	prompt := fmt.Sprintf("Saving %s for %s (%s). Confirm? (y/n)",
		core.FormatRupees(cand.AmountMinor), cand.Category, cand.Description)
	if err := a.speaker.Say(ctx, prompt); err != nil {
		return err
	}

	answer, err := a.listener.Listen(ctx)
	if errors.Is(err, io.EOF) {
		return a.speaker.Say(ctx, "Goodbye!")
	}
	if err != nil {
		return fmt.Errorf("listen for confirmation: %w", err)
	}

	if !isAffirmative(answer) {
		return a.speaker.Say(ctx, "Okay, discarded.")
	}

	txn, err := a.service.SaveCandidate(ctx, cand, a.userID, core.SourceVoice, a.convoID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to save confirmed expense",
			"user_id", a.userID, "error", err)
		return a.speaker.Say(ctx, "Sorry, I couldn't save that. Try again later.")
	}

	return a.speaker.Say(ctx, fmt.Sprintf("Saved %s under %s.",
		core.FormatRupees(txn.AmountMinor), txn.Category))
}

func (a *Assistant) speakSummary(ctx context.Context) error {
	summary, err := a.aggregator.ComputeMonthlyRollup(ctx, a.userID, "")
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute summary",
			"user_id", a.userID, "error", err)
		return a.speaker.Say(ctx, "Sorry, I couldn't fetch your summary.")
	}

	if summary.TotalMinor == 0 {
		return a.speaker.Say(ctx, "You haven't logged any expenses yet.")
	}

	msg := fmt.Sprintf("You've spent %s so far.", core.FormatRupees(summary.TotalMinor))
	if len(summary.TopItems) > 0 {
		msg += fmt.Sprintf(" Top category: %s.", summary.TopItems[0].Category)
	}
	return a.speaker.Say(ctx, msg)
}
