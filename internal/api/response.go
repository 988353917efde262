// Package api provides HTTP response utilities for ShopAssist.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes response with the given status code. Transcripts carry
// order details and email addresses, so responses are never cached.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so an encoding failure can still change the status code.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// engineOutcome maps an engine error to the HTTP status reported for it.
type engineOutcome struct {
	err    error
	status int
}

// engineOutcomes is checked in order. Every listed error leaves the session usable
// and is answered with the current view.
var engineOutcomes = []engineOutcome{
	{models.ErrLookupInProgress, http.StatusAccepted},
	{models.ErrStepNotFound, http.StatusOK},
	{models.ErrValidationFailed, http.StatusUnprocessableEntity},
	{models.ErrEmptyInput, http.StatusBadRequest},
	{models.ErrEmptyAction, http.StatusBadRequest},
	{models.ErrNoActiveInput, http.StatusConflict},
}

// engineStatus returns the status for err and whether err is a known engine outcome.
func engineStatus(err error) (int, bool) {
	if err == nil {
		return http.StatusOK, true
	}
	for _, o := range engineOutcomes {
		if errors.Is(err, o.err) {
			return o.status, true
		}
	}
	return http.StatusInternalServerError, false
}

// writeEngineResult answers a chat event with the session view after the engine
// handled it. failure is the message sent for unexpected engine errors.
func writeEngineResult(w http.ResponseWriter, sess *chatSession, op string, err error, failure string) {
	status, known := engineStatus(err)
	if !known {
		slog.Error("Server: unexpected engine error", "op", op, "sessionID", sess.id, "error", err)
		writeJSONResponse(w, status, models.Error(failure))
		return
	}

	view := sess.view()
	switch {
	case err == nil:
		writeJSONResponse(w, status, models.Success(view))
	case status == http.StatusAccepted:
		writeJSONResponse(w, status, models.Pending(err.Error(), view))
	case errors.Is(err, models.ErrStepNotFound):
		// The engine already fell back to the main menu.
		slog.Error("Server: event led to a missing step", "op", op, "sessionID", sess.id, "error", err)
		writeJSONResponse(w, status, models.Success(view))
	default:
		writeJSONResponse(w, status, errorWithView(err.Error(), view))
	}
}

// errorWithView builds an error envelope that still carries the session view,
// for failures that changed the transcript (e.g. a validation bubble).
func errorWithView(message string, view interface{}) models.APIResponse {
	return models.NewAPIResponseBuilder().
		WithStatus(models.APIStatusError).
		WithMessage(message).
		WithResult(view).
		Build()
}
