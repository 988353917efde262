package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/BTreeMap/ShopAssist/internal/testutil"
)

func TestEngineStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  int
		known bool
	}{
		{"no error", nil, http.StatusOK, true},
		{"lookup in progress", models.ErrLookupInProgress, http.StatusAccepted, true},
		{"wrapped missing step", fmt.Errorf("enter step %q: %w", "faq", models.ErrStepNotFound), http.StatusOK, true},
		{"validation failed", models.ErrValidationFailed, http.StatusUnprocessableEntity, true},
		{"blank input", models.ErrEmptyInput, http.StatusBadRequest, true},
		{"no input step", models.ErrNoActiveInput, http.StatusConflict, true},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := engineStatus(tt.err)
			if got != tt.want || known != tt.known {
				t.Errorf("engineStatus(%v) = %d, %v; want %d, %v", tt.err, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestWriteJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusCreated, models.Success("hi"))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "ok response")
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", got)
	}

	rr = httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, models.Success(make(chan int)))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "unencodable response")
	if rr.Body.String() != string(fallbackErrorResponse) {
		t.Errorf("expected fallback body, got %s", rr.Body.String())
	}
}
