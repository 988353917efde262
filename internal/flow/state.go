// Package flow defines the collaborators the conversation engine depends on.
package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// OrderLookup resolves an order by number and email. Implementations return
// models.ErrOrderNotFound (possibly wrapped) when the backend has no matching order;
// any other error is treated as a transport failure.
type OrderLookup interface {
	LookupOrder(ctx context.Context, orderNumber, email string) (models.OrderResultData, error)
}

// OrderLookupFunc adapts a function to the OrderLookup interface.
type OrderLookupFunc func(ctx context.Context, orderNumber, email string) (models.OrderResultData, error)

// LookupOrder calls f.
func (f OrderLookupFunc) LookupOrder(ctx context.Context, orderNumber, email string) (models.OrderResultData, error) {
	return f(ctx, orderNumber, email)
}

// Navigator moves the visitor to a page outside the conversation. Fire-and-forget.
type Navigator interface {
	NavigateTo(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// NavigateTo calls f.
func (f NavigatorFunc) NavigateTo(path string) {
	f(path)
}

// HistorySink receives every flattened history entry the engine records.
// The engine only writes; failures are logged and never affect the conversation.
type HistorySink interface {
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
}

// Dependencies holds all collaborators injected into an Engine.
type Dependencies struct {
	OrderLookup OrderLookup
	Navigator   Navigator
	HistorySink HistorySink // optional
}

type logNavigator struct{}

func (logNavigator) NavigateTo(path string) {
	slog.Info("Navigation requested without a navigator", "path", path)
}
