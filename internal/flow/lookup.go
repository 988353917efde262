package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// Messages synthesized by the lookup sub-flow.
const (
	LookupLoadingMessage     = "Looking up your order..."
	LookupNotFoundMessage    = "I couldn't find an order with that order number and email. Please double-check both and try again."
	LookupFailedMessage      = "Sorry, I couldn't check your order right now. Please try again in a moment."
	LookupInterruptedMessage = "Your order lookup was interrupted. Would you like to try again?"
	LookupRetryLabel         = "Retry"
	MainMenuLabel            = "Main Menu"
	TrackAnotherLabel        = "Track Another Order"
)

func recoveryOptions() []models.Option {
	return []models.Option{
		{Label: LookupRetryLabel, Action: TrackOrderStartStepID},
		{Label: MainMenuLabel, Action: WelcomeStepID},
	}
}

// startLookup enters the looking_up state and calls the lookup service on its own
// goroutine. The result is applied only if the session generation is unchanged.
func (e *Engine) startLookup(ctx context.Context) {
	orderNumber := e.state.fieldValues[FieldOrderNumber]
	email := e.state.fieldValues[FieldEmail]

	e.appendMessage(ctx, models.ChatMessage{
		Sender:  models.SenderBot,
		Kind:    models.MessageKindLoading,
		Content: LookupLoadingMessage,
	})
	e.state.isWaiting = true
	e.state.currentStep = ""

	generation := e.generation
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.LookupTimeout)
	e.cancelLookup = cancel

	slog.Info("Engine lookup started", "sessionID", e.opts.SessionID, "orderNumber", orderNumber, "generation", generation)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer cancel()
		result, err := e.deps.OrderLookup.LookupOrder(lookupCtx, orderNumber, email)
		e.completeLookup(generation, result, err)
	}()
}

// completeLookup applies a lookup outcome, or drops it when the session moved on.
func (e *Engine) completeLookup(generation uint64, result models.OrderResultData, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation || !e.state.isWaiting {
		slog.Warn("Engine discarding stale lookup result", "sessionID", e.opts.SessionID,
			"lookupGeneration", generation, "generation", e.generation, "error", err)
		return
	}
	ctx := context.Background()
	e.cancelLookup = nil
	e.state.retractLast(models.MessageKindLoading)
	e.state.isWaiting = false
	e.state.currentStep = ""

	switch {
	case err == nil:
		slog.Info("Engine lookup resolved", "sessionID", e.opts.SessionID, "orderNumber", result.OrderNumber, "status", result.Status)
		data := result
		e.appendMessage(ctx, models.ChatMessage{
			Sender:    models.SenderBot,
			Kind:      models.MessageKindOrderResult,
			Content:   fmt.Sprintf("Here's the latest on order %s.", result.OrderNumber),
			OrderData: &data,
			Options: []models.Option{
				{Label: TrackAnotherLabel, Action: ActionStartLookup},
				{Label: MainMenuLabel, Action: WelcomeStepID},
			},
		})
	case errors.Is(err, models.ErrOrderNotFound):
		slog.Info("Engine lookup found no order", "sessionID", e.opts.SessionID)
		e.appendMessage(ctx, models.ChatMessage{
			Sender:  models.SenderBot,
			Kind:    models.MessageKindOptions,
			Content: LookupNotFoundMessage,
			Options: recoveryOptions(),
		})
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("Engine lookup timed out", "sessionID", e.opts.SessionID, "timeout", e.opts.LookupTimeout)
		} else {
			slog.Error("Engine lookup failed", "sessionID", e.opts.SessionID, "error", err)
		}
		e.appendMessage(ctx, models.ChatMessage{
			Sender:  models.SenderBot,
			Kind:    models.MessageKindOptions,
			Content: LookupFailedMessage,
			Options: recoveryOptions(),
		})
	}
}

// abandonLookup retracts the loading placeholder of a lookup that will never be
// rendered and leaves the visitor a way to retry. Callers bump the generation first.
func (e *Engine) abandonLookup(ctx context.Context) {
	if e.cancelLookup != nil {
		e.cancelLookup()
		e.cancelLookup = nil
	}
	e.state.retractLast(models.MessageKindLoading)
	e.state.isWaiting = false
	e.state.currentStep = ""
	e.appendMessage(ctx, models.ChatMessage{
		Sender:  models.SenderBot,
		Kind:    models.MessageKindOptions,
		Content: LookupInterruptedMessage,
		Options: recoveryOptions(),
	})
	slog.Info("Engine lookup abandoned", "sessionID", e.opts.SessionID, "generation", e.generation)
}
