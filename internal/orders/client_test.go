package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

const shippedOrder = `{
	"order_number": "MB-12345678",
	"status": "shipped",
	"payment_method": "cod",
	"payment_status": "pending",
	"subtotal": 4998,
	"shipping_cost": 0,
	"discount_amount": 0,
	"total": 4998,
	"shipping_city": "Lahore",
	"shipping_state": "Punjab",
	"tracking_number": "TCS-998877",
	"tracking_url": "https://track.example.com/TCS-998877",
	"items": [
		{"id": 1, "product_name": "Linen Shirt", "variant_info": "M", "sku": "LS-M", "quantity": 2, "unit_price": 2499, "total_price": 4998, "image_url": null}
	],
	"status_history": [],
	"created_at": "2024-01-01T12:00:00Z"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL + "/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLookupOrder_Success(t *testing.T) {
	var got trackRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != TrackPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(shippedOrder))
	})

	res, err := c.LookupOrder(context.Background(), " MB-12345678 ", "Jane@Example.COM")
	if err != nil {
		t.Fatalf("LookupOrder: %v", err)
	}
	if got.OrderNumber != "MB-12345678" || got.Email != "jane@example.com" {
		t.Errorf("unexpected request body %+v", got)
	}
	if res.OrderNumber != "MB-12345678" || res.StatusLabel != "Shipped" || res.Total != 4998 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.TrackingNumber != "TCS-998877" || !strings.HasPrefix(res.TrackingURL, "https://") {
		t.Errorf("tracking details not mapped: %+v", res)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "Linen Shirt" || res.Items[0].Quantity != 2 || res.Items[0].Image != "" {
		t.Errorf("items not mapped: %+v", res.Items)
	}
	if !res.CreatedAt.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected created_at %v", res.CreatedAt)
	}
}

func TestLookupOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		notFound   bool
		errContain string
	}{
		{"not found", http.StatusNotFound, `{"detail":"No order found with this order number and email"}`, true, ""},
		{"rejected email", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error"}]}`, true, ""},
		{"server error with detail", http.StatusInternalServerError, `{"detail":"database unavailable"}`, false, "database unavailable"},
		{"bad gateway plain body", http.StatusBadGateway, "upstream down", false, "502"},
		{"malformed body", http.StatusOK, "{not json", false, "decoding response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.LookupOrder(context.Background(), "MB-1", "a@b.co")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, models.ErrOrderNotFound); got != tt.notFound {
				t.Errorf("errors.Is(ErrOrderNotFound) = %v, want %v (err: %v)", got, tt.notFound, err)
			}
			if tt.errContain != "" && !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("expected error to contain %q, got %v", tt.errContain, err)
			}
		})
	}
}

func TestLookupOrder_OverlongOrderNumberSkipsBackend(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.LookupOrder(context.Background(), strings.Repeat("9", models.MaxOrderNumberLength+1), "a@b.co")
	if !errors.Is(err, models.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if called {
		t.Error("backend must not be called for an order number it would reject")
	}
}

func TestLookupOrder_HonorsContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.LookupOrder(ctx, "MB-1", "a@b.co")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"pending":   "Pending",
		"DELIVERED": "Delivered",
		"on_hold":   "On_hold",
		"":          "Unknown",
	}
	for status, want := range tests {
		if got := StatusLabel(status); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", status, got, want)
		}
	}
}
