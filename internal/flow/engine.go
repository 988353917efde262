package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/google/uuid"
)

// DefaultLookupTimeout bounds a single order lookup. Expiry is reported to the
// visitor the same way as a transport failure.
const DefaultLookupTimeout = 15 * time.Second

// Opts holds configuration for an Engine.
type Opts struct {
	SessionID     string
	LookupTimeout time.Duration
	RetainHistory bool
	Clock         func() time.Time
	NewID         func() string
}

// Option configures an Engine.
type Option func(*Opts)

// WithSessionID sets the id stamped on history entries.
func WithSessionID(id string) Option {
	return func(o *Opts) { o.SessionID = id }
}

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(o *Opts) { o.LookupTimeout = d }
}

// WithRetainHistory keeps the interaction history across Reset.
func WithRetainHistory() Option {
	return func(o *Opts) { o.RetainHistory = true }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithIDGenerator overrides the message id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Opts) { o.NewID = gen }
}

// Engine interprets the registry for one conversation. All exported methods are
// safe to call from multiple goroutines; events are applied one at a time.
type Engine struct {
	mu       sync.Mutex
	registry *Registry
	deps     Dependencies
	opts     Opts

	state      sessionState
	open       bool
	generation uint64

	cancelLookup context.CancelFunc
	inflight     sync.WaitGroup
}

// NewEngine creates an engine over registry with the given collaborators.
func NewEngine(registry *Registry, deps Dependencies, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.OrderLookup == nil {
		return nil, fmt.Errorf("order lookup is required")
	}
	if deps.Navigator == nil {
		deps.Navigator = logNavigator{}
	}

	cfg := Opts{
		LookupTimeout: DefaultLookupTimeout,
		Clock:         time.Now,
		NewID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}

	slog.Debug("NewEngine", "sessionID", cfg.SessionID, "lookupTimeout", cfg.LookupTimeout, "retainHistory", cfg.RetainHistory)
	return &Engine{
		registry: registry,
		deps:     deps,
		opts:     cfg,
		state:    newSessionState(),
	}, nil
}

// SessionID returns the id of the conversation.
func (e *Engine) SessionID() string {
	return e.opts.SessionID
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.state.snapshot()
	snap.SessionID = e.opts.SessionID
	snap.Open = e.open
	snap.Generation = e.generation
	if step, ok := e.activeInputStep(); ok {
		field := *step.InputField
		snap.Input = &field
	}
	return snap
}

// Open shows the widget. The transcript is initialized with the welcome message the
// first time; later calls leave an existing conversation untouched.
func (e *Engine) Open(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.open = true
	if len(e.state.messages) > 0 {
		slog.Debug("Engine Open: resuming conversation", "sessionID", e.opts.SessionID, "messages", len(e.state.messages))
		return
	}
	e.appendWelcome(ctx)
	slog.Info("Engine Open: conversation started", "sessionID", e.opts.SessionID)
}

// Close hides the widget without clearing the transcript. An outstanding lookup is
// marked stale and the visitor is offered a way to retry when they come back. This
// holds even if the widget is already closed, since events are accepted while closed.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open && !e.state.isWaiting {
		return
	}
	e.open = false
	e.generation++
	if e.state.isWaiting {
		e.abandonLookup(ctx)
	}
	slog.Info("Engine Close", "sessionID", e.opts.SessionID, "generation", e.generation)
}

// Reset discards the conversation and starts over from the welcome message.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(ctx)
}

func (e *Engine) resetLocked(ctx context.Context) {
	e.generation++
	if e.cancelLookup != nil {
		e.cancelLookup()
		e.cancelLookup = nil
	}
	e.state.clear(e.opts.RetainHistory)
	e.appendWelcome(ctx)
	slog.Info("Engine Reset", "sessionID", e.opts.SessionID, "generation", e.generation)
}

// SelectOption handles a button tap.
func (e *Engine) SelectOption(ctx context.Context, action string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slog.Debug("Engine SelectOption", "sessionID", e.opts.SessionID, "action", action)
	if e.state.isWaiting {
		slog.Warn("Engine SelectOption ignored while lookup is outstanding", "sessionID", e.opts.SessionID, "action", action)
		return models.ErrLookupInProgress
	}
	if action == "" {
		return models.ErrEmptyAction
	}

	if label, ok := e.state.optionLabel(action); ok {
		e.appendMessage(ctx, models.ChatMessage{Sender: models.SenderUser, Kind: models.MessageKindText, Content: label})
	}
	return e.dispatch(ctx, action)
}

// dispatch moves the conversation to action: a navigation action, a reserved engine
// action or a registry step.
func (e *Engine) dispatch(ctx context.Context, action string) error {
	if path, ok := e.registry.NavigationTarget(action); ok {
		slog.Info("Engine navigating", "sessionID", e.opts.SessionID, "action", action, "path", path)
		e.deps.Navigator.NavigateTo(path)
		return e.enterStep(ctx, WelcomeStepID)
	}

	switch action {
	case ActionStartLookup:
		delete(e.state.fieldValues, FieldOrderNumber)
		delete(e.state.fieldValues, FieldEmail)
		return e.enterStep(ctx, TrackOrderStartStepID)
	case ActionLookupOrder:
		e.startLookup(ctx)
		return nil
	case ActionRestart:
		e.resetLocked(ctx)
		return nil
	}

	return e.enterStep(ctx, action)
}

// enterStep renders the step and makes it current. A missing step is a configuration
// error: the turn falls back to the welcome step so the visitor is never stranded.
func (e *Engine) enterStep(ctx context.Context, id string) error {
	step, ok := e.registry.Lookup(id)
	if !ok {
		slog.Error("Engine step not found, falling back to welcome", "sessionID", e.opts.SessionID, "step", id)
		welcome, _ := e.registry.Lookup(WelcomeStepID)
		e.renderStep(ctx, welcome)
		return fmt.Errorf("enter step %q: %w", id, models.ErrStepNotFound)
	}
	e.renderStep(ctx, step)
	return nil
}

func (e *Engine) renderStep(ctx context.Context, step models.FlowStep) {
	msg := models.ChatMessage{Sender: models.SenderBot, Content: step.BotMessage}
	switch step.Kind {
	case models.StepKindOptions:
		msg.Kind = models.MessageKindOptions
		msg.Options = step.Options
	default:
		msg.Kind = models.MessageKindText
	}
	e.appendMessage(ctx, msg)

	if step.Kind == models.StepKindText {
		// Text steps do not wait for the visitor; continue with the main menu.
		welcome, _ := e.registry.Lookup(WelcomeStepID)
		if step.ID != WelcomeStepID {
			e.renderStep(ctx, welcome)
		}
		return
	}
	e.state.currentStep = step.ID
	slog.Debug("Engine entered step", "sessionID", e.opts.SessionID, "step", step.ID, "kind", step.Kind)
}

// SubmitInput handles free text typed while an input step is active.
func (e *Engine) SubmitInput(ctx context.Context, raw string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.isWaiting {
		slog.Warn("Engine SubmitInput ignored while lookup is outstanding", "sessionID", e.opts.SessionID)
		return models.ErrLookupInProgress
	}
	step, ok := e.activeInputStep()
	if !ok {
		slog.Warn("Engine SubmitInput without an active input step", "sessionID", e.opts.SessionID, "step", e.state.currentStep)
		return models.ErrNoActiveInput
	}
	field := step.InputField
	text := strings.TrimSpace(raw)

	// Fields without a pattern silently ignore blank input; fields with a pattern
	// report blank input through their error message like any other mismatch.
	if re := e.registry.pattern(step.ID); re != nil {
		if !re.MatchString(text) {
			slog.Warn("Engine SubmitInput validation failed", "sessionID", e.opts.SessionID, "step", step.ID, "field", field.FieldName)
			e.appendMessage(ctx, models.ChatMessage{
				Sender:  models.SenderBot,
				Kind:    models.MessageKindText,
				Content: validationMessage(field),
			})
			return fmt.Errorf("field %s: %w", field.FieldName, models.ErrValidationFailed)
		}
	} else if text == "" {
		slog.Debug("Engine SubmitInput ignored blank input", "sessionID", e.opts.SessionID, "step", step.ID)
		return models.ErrEmptyInput
	}

	e.state.fieldValues[field.FieldName] = text
	e.appendMessage(ctx, models.ChatMessage{Sender: models.SenderUser, Kind: models.MessageKindText, Content: raw})
	slog.Debug("Engine captured field", "sessionID", e.opts.SessionID, "field", field.FieldName, "next", field.NextStep)

	return e.dispatch(ctx, field.NextStep)
}

func (e *Engine) activeInputStep() (models.FlowStep, bool) {
	if e.state.currentStep == "" {
		return models.FlowStep{}, false
	}
	step, ok := e.registry.Lookup(e.state.currentStep)
	if !ok || step.Kind != models.StepKindInput || step.InputField == nil {
		return models.FlowStep{}, false
	}
	return step, true
}

func validationMessage(field *models.InputField) string {
	if field.ErrorMessage != "" {
		return field.ErrorMessage
	}
	return "Please check what you entered and try again."
}

// AwaitLookups blocks until every lookup started by this engine has returned,
// including lookups whose results are discarded.
func (e *Engine) AwaitLookups(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) appendWelcome(ctx context.Context) {
	welcome, _ := e.registry.Lookup(WelcomeStepID)
	e.appendMessage(ctx, models.ChatMessage{
		Sender:  models.SenderBot,
		Kind:    models.MessageKindWelcome,
		Content: welcome.BotMessage,
		Options: welcome.Options,
	})
}

// appendMessage stamps msg, adds it to the transcript and mirrors it into the history.
func (e *Engine) appendMessage(ctx context.Context, msg models.ChatMessage) {
	msg.ID = e.opts.NewID()
	msg.CreatedAt = e.opts.Clock()
	e.state.appendMessage(msg)

	if msg.Kind == models.MessageKindLoading {
		return
	}
	role := models.HistoryRoleModel
	if msg.Sender == models.SenderUser {
		role = models.HistoryRoleUser
	}
	entry := models.HistoryEntry{
		SessionID: e.opts.SessionID,
		Role:      role,
		Content:   historyContent(msg),
		CreatedAt: msg.CreatedAt,
	}
	e.state.history = append(e.state.history, entry)

	if e.deps.HistorySink != nil {
		if err := e.deps.HistorySink.AppendHistory(ctx, entry); err != nil {
			slog.Error("Engine history sink failed", "sessionID", e.opts.SessionID, "error", err)
		}
	}
}

func historyContent(msg models.ChatMessage) string {
	if msg.OrderData == nil {
		return msg.Content
	}
	return fmt.Sprintf("%s [order %s: %s]", msg.Content, msg.OrderData.OrderNumber, msg.OrderData.StatusLabel)
}
