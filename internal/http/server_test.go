package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger"
	"voicexpense/internal/ledger/memory"
	"voicexpense/internal/parser"
	"voicexpense/internal/rollup"
	"voicexpense/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := services.NewExpenseService(store, parser.New(), nil)
	s := NewServer(":0", svc, store, rollup.NewAggregator(store), "demo_user")
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, store
}

func postLog(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/log", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleLog(t *testing.T) {
	s, store := newTestServer(t)

	rec := postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp logResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "saved" {
		t.Errorf("Status = %q, want saved", resp.Status)
	}
	if resp.AmountMinor != 15000 {
		t.Errorf("AmountMinor = %d, want 15000", resp.AmountMinor)
	}
	if resp.Category != core.CategoryFood {
		t.Errorf("Category = %q, want Food", resp.Category)
	}

	txns, err := store.ListTransactionsByUser(context.Background(), "demo_user")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("persisted %d transactions, want 1", len(txns))
	}
}

func TestHandleLogNoAmount(t *testing.T) {
	s, store := newTestServer(t)

	rec := postLog(t, s, `{"text":"bought some snacks","user_id":"demo_user"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "could not detect amount" {
		t.Errorf("error = %q, want %q", resp["error"], "could not detect amount")
	}

	txns, _ := store.ListTransactionsByUser(context.Background(), "demo_user")
	if len(txns) != 0 {
		t.Errorf("unparseable text persisted %d transactions, want 0", len(txns))
	}
}

func TestHandleLogValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing text", `{"user_id":"demo_user"}`, http.StatusBadRequest},
		{"malformed json", `{"text":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postLog(t, s, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleLogDefaultsUserID(t *testing.T) {
	s, store := newTestServer(t)

	rec := postLog(t, s, `{"text":"coffee 150 rs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	txns, err := store.ListTransactionsByUser(context.Background(), "demo_user")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("persisted %d transactions under default user, want 1", len(txns))
	}
	if txns[0].UserID != "demo_user" {
		t.Errorf("UserID = %q, want demo_user", txns[0].UserID)
	}
}

func TestHandleLogMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/log", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleSummary(t *testing.T) {
	s, _ := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)
	postLog(t, s, `{"text":"uber 450","user_id":"demo_user"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/summary?user_id=demo_user", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalMinor != 60000 {
		t.Errorf("TotalMinor = %d, want 60000", resp.TotalMinor)
	}
	if len(resp.TopItems) != 2 {
		t.Fatalf("TopItems = %v, want two entries", resp.TopItems)
	}
	if resp.TopItems[0].Category != core.CategoryTravel {
		t.Errorf("TopItems[0] = %v, want Travel first", resp.TopItems[0])
	}
}

func TestHandleSummaryTopItemsWireFormat(t *testing.T) {
	s, _ := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/summary?user_id=demo_user", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	// top_items serializes as [category, amount] pairs.
	var raw struct {
		TopItems [][2]any `json:"top_items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(raw.TopItems) != 1 {
		t.Fatalf("top_items = %v, want one pair", raw.TopItems)
	}
	if raw.TopItems[0][0] != core.CategoryFood {
		t.Errorf("pair category = %v, want Food", raw.TopItems[0][0])
	}
}

func TestHandleSummaryCacheInvalidatedOnSave(t *testing.T) {
	s, _ := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)

	get := func() summaryResponse {
		req := httptest.NewRequest(http.MethodGet, "/api/summary?user_id=demo_user", nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		var resp summaryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	if got := get().TotalMinor; got != 15000 {
		t.Fatalf("TotalMinor = %d, want 15000", got)
	}

	// A new save must not serve the stale cached total.
	postLog(t, s, `{"text":"groceries 900","user_id":"demo_user"}`)
	if got := get().TotalMinor; got != 105000 {
		t.Errorf("TotalMinor after save = %d, want 105000", got)
	}
}

func TestHandleSummaryEmptyUser(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/summary?user_id=nobody", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalMinor != 0 || len(resp.TopItems) != 0 {
		t.Errorf("empty user summary = %+v, want zero total and no items", resp)
	}
}

func TestHandleSummaryDefaultsUserID(t *testing.T) {
	s, _ := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "demo_user" {
		t.Errorf("UserID = %q, want demo_user", resp.UserID)
	}
	if resp.TotalMinor != 15000 {
		t.Errorf("TotalMinor = %d, want 15000", resp.TotalMinor)
	}
}

func TestHandleTransactionsNewestFirst(t *testing.T) {
	s, _ := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)
	postLog(t, s, `{"text":"uber 450","user_id":"demo_user"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?user_id=demo_user", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Transactions []transactionDTO `json:"transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(resp.Transactions))
	}
	if resp.Transactions[0].EventTS.Before(resp.Transactions[1].EventTS) {
		t.Error("transactions should be newest first")
	}
}

func TestHandleRollups(t *testing.T) {
	s, store := newTestServer(t)

	postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)
	if _, err := rollup.NewAggregator(store).ComputeMonthlyRollup(context.Background(), "demo_user", "202511"); err != nil {
		t.Fatalf("compute rollup: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rollups?user_id=demo_user", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Rollups []rollupDTO `json:"rollups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Rollups) != 1 {
		t.Fatalf("rollups = %d, want 1", len(resp.Rollups))
	}
	if resp.Rollups[0].ID != "roll_demo_user_202511" {
		t.Errorf("rollup id = %q", resp.Rollups[0].ID)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

// failingStore wraps the memory store and refuses writes.
type failingStore struct {
	ledger.Store
}

func (f *failingStore) SaveTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, errors.New("disk full")
}

func TestHandleLogStoreFailure(t *testing.T) {
	store := memory.NewStore()
	failing := &failingStore{Store: store}
	svc := services.NewExpenseService(failing, parser.New(), nil)
	s := NewServer(":0", svc, failing, rollup.NewAggregator(failing), "demo_user")
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	rec := postLog(t, s, `{"text":"coffee 150 rs","user_id":"demo_user"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	txns, _ := store.ListTransactionsByUser(context.Background(), "demo_user")
	if len(txns) != 0 {
		t.Errorf("failed save persisted %d transactions, want 0", len(txns))
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < rateLimitPerMinute; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over the limit should be denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other clients are not affected")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:4321", "", "203.0.113.7"},
		{"trusted proxy honors xff", "127.0.0.1:4321", "203.0.113.9", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.7:4321", "8.8.8.8", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
