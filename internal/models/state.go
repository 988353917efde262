// Package models defines transcript and session state structures for ShopAssist.
package models

import "time"

// HistoryRole is the flattened role of a history entry.
type HistoryRole string

// History roles. "model" matches the naming the storefront backend uses for bot turns.
const (
	HistoryRoleUser  HistoryRole = "user"
	HistoryRoleModel HistoryRole = "model"
)

// ChatMessage is one bubble of the transcript.
type ChatMessage struct {
	ID        string           `json:"id"`
	Sender    MessageSender    `json:"sender"`
	Kind      MessageKind      `json:"kind"`
	Content   string           `json:"content"`
	Options   []Option         `json:"options,omitempty"`
	OrderData *OrderResultData `json:"order_data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// OrderItem is one line of an order summary.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
}

// OrderResultData is the structured rendering of a successful order lookup.
type OrderResultData struct {
	OrderNumber    string      `json:"order_number"`
	Status         string      `json:"status"`
	StatusLabel    string      `json:"status_label"`
	Items          []OrderItem `json:"items"`
	Total          float64     `json:"total"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	TrackingURL    string      `json:"tracking_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// HistoryEntry mirrors a transcript message in flattened form.
type HistoryEntry struct {
	SessionID string      `json:"session_id,omitempty"`
	Role      HistoryRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}
