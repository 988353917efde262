// Package testutil provides common test utilities and helpers for ShopAssist tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// Envelope mirrors models.APIResponse with the result left undecoded.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// DecodeEnvelope decodes an API response, checks its status field and, when
// target is non-nil, decodes the result into it.
func DecodeEnvelope(t testing.TB, rr *httptest.ResponseRecorder, expectedStatus string, target interface{}) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if env.Status != expectedStatus {
		t.Errorf("expected status '%s', got '%s' (message: %s)", expectedStatus, env.Status, env.Message)
	}
	if target != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, target); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
	}
	return env
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// OrderFixture is an order served by OrderBackend, keyed by order number.
// Email is compared case-insensitively like the storefront does.
type OrderFixture struct {
	Email          string
	Status         string
	Total          float64
	TrackingNumber string
	TrackingURL    string
}

// OrderBackend is a fake storefront order tracking endpoint.
type OrderBackend struct {
	*httptest.Server

	mu       sync.Mutex
	orders   map[string]OrderFixture
	requests int
	failWith int
}

// NewOrderBackend starts a fake backend serving orders. It is closed on test cleanup.
func NewOrderBackend(t testing.TB, orders map[string]OrderFixture) *OrderBackend {
	t.Helper()
	b := &OrderBackend{orders: orders}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serveTrack))
	t.Cleanup(b.Server.Close)
	return b
}

// FailWith makes every following request answer with the given HTTP status.
func (b *OrderBackend) FailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = status
}

// Requests returns how many track requests the backend received.
func (b *OrderBackend) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func (b *OrderBackend) serveTrack(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests++
	failWith := b.failWith
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost || r.URL.Path != "/api/v1/orders/track" {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
		return
	}
	if failWith != 0 {
		w.WriteHeader(failWith)
		w.Write([]byte(`{"detail":"backend unavailable"}`))
		return
	}

	var req struct {
		OrderNumber string `json:"order_number"`
		Email       string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	b.mu.Lock()
	order, ok := b.orders[req.OrderNumber]
	b.mu.Unlock()
	if !ok || !strings.EqualFold(order.Email, req.Email) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"No order found with this order number and email"}`))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"order_number":    req.OrderNumber,
		"status":          order.Status,
		"total":           order.Total,
		"tracking_number": order.TrackingNumber,
		"tracking_url":    order.TrackingURL,
		"items": []map[string]interface{}{
			{"product_name": "Linen Shirt", "quantity": 1, "unit_price": order.Total, "image_url": nil},
		},
		"created_at": "2024-01-01T12:00:00Z",
	})
}
