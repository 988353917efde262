// Package api provides HTTP handlers for ShopAssist chat endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/gorilla/mux"
)

// lookupSession resolves the {id} route variable, writing a 404 when the session is gone.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*chatSession, bool) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		slog.Warn("Server: session not found", "sessionID", id, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return nil, false
	}
	return sess, true
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create chat session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(sess.view()))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.view()))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	// Delete closes the engine, which may still write an interrupted-lookup entry,
	// so history is purged only after the session is gone.
	if err := s.sessions.Delete(sess.id); err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	}
	if r.URL.Query().Get("purge") == "true" {
		if err := s.st.DeleteHistory(r.Context(), sess.id); err != nil {
			slog.Error("Server.deleteSessionHandler: failed to purge history", "sessionID", sess.id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete session history"))
			return
		}
	}
	slog.Info("Server.deleteSessionHandler: session ended", "sessionID", sess.id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended", nil))
}

func (s *Server) selectOptionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req models.SelectOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectOptionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	err := sess.engine.SelectOption(r.Context(), req.Action)
	writeEngineResult(w, sess, "selectOption", err, "Failed to process option")
}

func (s *Server) submitInputHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req models.SubmitInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitInputHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	err := sess.engine.SubmitInput(r.Context(), req.Text)
	writeEngineResult(w, sess, "submitInput", err, "Failed to process input")
}

func (s *Server) openHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.engine.Open(r.Context())
	writeJSONResponse(w, http.StatusOK, models.Success(sess.view()))
}

func (s *Server) closeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.engine.Close(r.Context())
	writeJSONResponse(w, http.StatusOK, models.Success(sess.view()))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.engine.Reset(r.Context())
	writeJSONResponse(w, http.StatusOK, models.Success(sess.view()))
}

// historyHandler returns the persisted history, which outlives resets and is the
// handoff log for human support.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entries, err := s.st.GetHistory(r.Context(), id)
	if err != nil {
		slog.Error("Server.historyHandler: failed to read history", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read history"))
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": s.sessions.Count(),
	})
}
