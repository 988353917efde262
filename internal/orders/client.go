// Package orders implements the order lookup service against the storefront backend.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// TrackPath is the storefront endpoint that resolves an order by number and email.
const TrackPath = "/api/v1/orders/track"

// DefaultRequestTimeout bounds a single HTTP request when the caller sets no deadline.
const DefaultRequestTimeout = 10 * time.Second

// statusLabels maps backend order statuses to the labels shown to visitors.
var statusLabels = map[string]string{
	"pending":    "Pending",
	"confirmed":  "Confirmed",
	"processing": "Processing",
	"shipped":    "Shipped",
	"delivered":  "Delivered",
	"cancelled":  "Cancelled",
	"returned":   "Returned",
}

// StatusLabel returns the display label of a backend order status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[strings.ToLower(status)]; ok {
		return label
	}
	if status == "" {
		return "Unknown"
	}
	return strings.ToUpper(status[:1]) + strings.ToLower(status[1:])
}

// Opts holds configuration for a Client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Opts)

// WithBaseURL sets the storefront backend base URL, e.g. "https://shop.example.com".
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the storefront order tracking endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new order tracking client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("order API base URL not set")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	slog.Debug("orders.NewClient", "baseURL", cfg.BaseURL)
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
	}, nil
}

type trackRequest struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}

type trackItem struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	ImageURL    *string `json:"image_url"`
}

type trackResponse struct {
	OrderNumber    string      `json:"order_number"`
	Status         string      `json:"status"`
	Total          float64     `json:"total"`
	TrackingNumber *string     `json:"tracking_number"`
	TrackingURL    *string     `json:"tracking_url"`
	Items          []trackItem `json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// LookupOrder resolves an order. A 404 from the backend, a 422 for input the backend
// refuses to validate (such as an email its stricter parser rejects), or an order
// number the backend would reject as too long, is reported as models.ErrOrderNotFound.
func (c *Client) LookupOrder(ctx context.Context, orderNumber, email string) (models.OrderResultData, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" || len(orderNumber) > models.MaxOrderNumberLength {
		slog.Debug("orders.LookupOrder rejected order number locally", "length", len(orderNumber))
		return models.OrderResultData{}, models.ErrOrderNotFound
	}

	body, err := json.Marshal(trackRequest{
		OrderNumber: orderNumber,
		Email:       strings.ToLower(strings.TrimSpace(email)),
	})
	if err != nil {
		return models.OrderResultData{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TrackPath, bytes.NewReader(body))
	if err != nil {
		return models.OrderResultData{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("orders.LookupOrder request failed", "error", err)
		return models.OrderResultData{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		slog.Info("orders.LookupOrder: order not found", "orderNumber", orderNumber)
		return models.OrderResultData{}, models.ErrOrderNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		slog.Info("orders.LookupOrder: backend rejected lookup input", "orderNumber", orderNumber, "error", handleErrorResponse(resp))
		return models.OrderResultData{}, models.ErrOrderNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.OrderResultData{}, handleErrorResponse(resp)
	}

	var out trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Error("orders.LookupOrder decode failed", "error", err)
		return models.OrderResultData{}, fmt.Errorf("decoding response: %w", err)
	}
	slog.Debug("orders.LookupOrder succeeded", "orderNumber", out.OrderNumber, "status", out.Status)
	return out.toResult(), nil
}

func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
		return fmt.Errorf("order API error (%d): %s", resp.StatusCode, errResp.Detail)
	}
	return fmt.Errorf("order API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (r trackResponse) toResult() models.OrderResultData {
	items := make([]models.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, models.OrderItem{
			Name:     it.ProductName,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
			Image:    deref(it.ImageURL),
		})
	}
	return models.OrderResultData{
		OrderNumber:    r.OrderNumber,
		Status:         r.Status,
		StatusLabel:    StatusLabel(r.Status),
		Items:          items,
		Total:          r.Total,
		TrackingNumber: deref(r.TrackingNumber),
		TrackingURL:    deref(r.TrackingURL),
		CreatedAt:      r.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
