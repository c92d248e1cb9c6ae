package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"voicexpense/internal/core"
)

type logRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type logResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	AmountMinor   int64  `json:"amount_minor,omitempty"`
	Category      string `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
	Error         string `json:"error,omitempty"`
}

type summaryResponse struct {
	UserID     string                `json:"user_id"`
	YearMonth  string                `json:"year_month"`
	TotalMinor int64                 `json:"total_minor"`
	TopItems   []core.CategoryAmount `json:"top_items"`
}

type transactionDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	EventTS     time.Time `json:"event_ts"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Source      string    `json:"source"`
}

type rollupDTO struct {
	ID               string                `json:"id"`
	YearMonth        string                `json:"year_month"`
	TotalsByCategory map[string]int64      `json:"totals_by_category"`
	TotalAmountMinor int64                 `json:"total_amount_minor"`
	TopItems         []core.CategoryAmount `json:"top_items"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

// userOrDefault falls back to the configured default user when the request
// names none.
func (s *Server) userOrDefault(userID string) string {
	if userID == "" {
		return s.defaultUserID
	}
	return userID
}

// handleLog accepts free text and persists the parsed transaction. Text
// without a recognizable amount is rejected, never saved.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := sanitizeInput(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	userID := s.userOrDefault(req.UserID)

	txn, err := s.service.LogExpense(r.Context(), text, userID, core.SourceAPI, "")
	if err != nil {
		if errors.Is(err, core.ErrNoAmount) {
			writeError(w, http.StatusUnprocessableEntity, "could not detect amount")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to log expense",
			"user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	// The user's cached summary is stale now.
	s.summaryCache.Delete(userID)

	writeJSON(w, http.StatusOK, logResponse{
		Status:        "saved",
		TransactionID: txn.ID,
		AmountMinor:   txn.AmountMinor,
		Category:      txn.Category,
		Description:   txn.Description,
	})
}

// handleSummary serves the dashboard's polled spend summary for the current
// month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := s.userOrDefault(r.URL.Query().Get("user_id"))

	if cached, ok := s.summaryCache.Get(userID); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	yearMonth := core.FormatYearMonth(time.Now())
	summary, err := s.aggregator.ComputeMonthlyRollup(r.Context(), userID, yearMonth)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to compute summary",
			"user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	resp := summaryResponse{
		UserID:     userID,
		YearMonth:  yearMonth,
		TotalMinor: summary.TotalMinor,
		TopItems:   summary.TopItems,
	}
	if resp.TopItems == nil {
		resp.TopItems = []core.CategoryAmount{}
	}
	s.summaryCache.Set(userID, resp)

	writeJSON(w, http.StatusOK, resp)
}

// handleTransactions lists a user's transactions, newest event first.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	txns, err := s.store.ListTransactionsByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions",
			"user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].EventTS.After(txns[j].EventTS)
	})

	out := make([]transactionDTO, 0, len(txns))
	for _, tx := range txns {
		out = append(out, transactionDTO{
			ID:          tx.ID,
			UserID:      tx.UserID,
			EventTS:     tx.EventTS,
			AmountMinor: tx.AmountMinor,
			Currency:    tx.Currency,
			Description: tx.Description,
			Category:    tx.Category,
			Source:      tx.Source,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// handleRollups lists a user's persisted monthly rollups, newest month first.
func (s *Server) handleRollups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	rollups, err := s.store.ListRollupsByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list rollups",
			"user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rollups")
		return
	}

	out := make([]rollupDTO, 0, len(rollups))
	for _, roll := range rollups {
		dto := rollupDTO{
			ID:               roll.ID,
			YearMonth:        roll.YearMonth,
			TotalsByCategory: roll.TotalsByCategory,
			TotalAmountMinor: roll.TotalAmountMinor,
			TopItems:         roll.TopItems,
			UpdatedAt:        roll.UpdatedAt,
		}
		if dto.TopItems == nil {
			dto.TopItems = []core.CategoryAmount{}
		}
		out = append(out, dto)
	}

	writeJSON(w, http.StatusOK, map[string]any{"rollups": out})
}
