package flow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// gatedLookup blocks every call until release is closed (or a value is sent),
// ignoring cancellation like a network call that cannot be aborted.
type gatedLookup struct {
	release chan struct{}
	result  models.OrderResultData
	err     error
	calls   atomic.Int32
	mu      sync.Mutex
	args    [][2]string
}

func newGatedLookup() *gatedLookup {
	return &gatedLookup{release: make(chan struct{})}
}

func (g *gatedLookup) LookupOrder(ctx context.Context, orderNumber, email string) (models.OrderResultData, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.args = append(g.args, [2]string{orderNumber, email})
	g.mu.Unlock()
	<-g.release
	return g.result, g.err
}

// instantLookup returns immediately.
func instantLookup(result models.OrderResultData, err error) OrderLookup {
	return OrderLookupFunc(func(ctx context.Context, orderNumber, email string) (models.OrderResultData, error) {
		return result, err
	})
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

type memorySink struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	err     error
}

func (s *memorySink) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return s.err
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadRegistry(DefaultStoreSettings())
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	return reg
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("msg-%d", n.Add(1)) }
}

func newTestEngine(t *testing.T, lookup OrderLookup, deps Dependencies, opts ...Option) *Engine {
	t.Helper()
	deps.OrderLookup = lookup
	base := []Option{
		WithSessionID("test-session"),
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	e, err := NewEngine(testRegistry(t), deps, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Open(context.Background())
	return e
}

func awaitLookups(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.AwaitLookups(ctx); err != nil {
		t.Fatalf("AwaitLookups: %v", err)
	}
}

// enterEmailStep drives the engine up to the email prompt.
func enterEmailStep(t *testing.T, e *Engine, orderNumber string) {
	t.Helper()
	ctx := context.Background()
	if err := e.SelectOption(ctx, ActionStartLookup); err != nil {
		t.Fatalf("SelectOption(track_order): %v", err)
	}
	if err := e.SubmitInput(ctx, orderNumber); err != nil {
		t.Fatalf("SubmitInput(order number): %v", err)
	}
	if got := e.Snapshot().CurrentStep; got != TrackOrderEmailStepID {
		t.Fatalf("expected current step %q, got %q", TrackOrderEmailStepID, got)
	}
}

// transcriptShape strips ids and timestamps so transcripts can be compared.
func transcriptShape(msgs []models.ChatMessage) []string {
	shape := make([]string, 0, len(msgs))
	for _, m := range msgs {
		s := fmt.Sprintf("%s|%s|%s", m.Sender, m.Kind, m.Content)
		for _, opt := range m.Options {
			s += "|" + opt.Label + "=" + opt.Action
		}
		if m.OrderData != nil {
			s += "|order=" + m.OrderData.OrderNumber
		}
		shape = append(shape, s)
	}
	return shape
}

func sampleOrder() models.OrderResultData {
	return models.OrderResultData{
		OrderNumber: "MB-12345678",
		Status:      "shipped",
		StatusLabel: "Shipped",
		Items: []models.OrderItem{
			{Name: "Linen Shirt", Quantity: 2, Price: 2499},
		},
		Total:          4998,
		TrackingNumber: "TCS-998877",
		TrackingURL:    "https://track.example.com/TCS-998877",
		CreatedAt:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}
