// Package flow provides the session state container owned by the engine.
package flow

import (
	"github.com/BTreeMap/ShopAssist/internal/models"
)

// sessionState is the mutable record of one open conversation. Only the Engine
// touches it, always while holding the engine mutex.
type sessionState struct {
	messages    []models.ChatMessage
	currentStep string // "" means no active step
	fieldValues map[string]string
	isWaiting   bool
	history     []models.HistoryEntry
}

func newSessionState() sessionState {
	return sessionState{fieldValues: make(map[string]string)}
}

// clear drops everything except, when keepHistory is set, the history.
func (s *sessionState) clear(keepHistory bool) {
	history := s.history
	*s = newSessionState()
	if keepHistory {
		s.history = history
	}
}

func (s *sessionState) appendMessage(msg models.ChatMessage) {
	s.messages = append(s.messages, msg)
}

// retractLast removes the most recent message if it has the given kind.
// It is the only non-append mutation the transcript allows.
func (s *sessionState) retractLast(kind models.MessageKind) bool {
	n := len(s.messages)
	if n == 0 || s.messages[n-1].Kind != kind {
		return false
	}
	s.messages = s.messages[:n-1]
	return true
}

// optionLabel finds the label of action on the most recent message offering buttons.
func (s *sessionState) optionLabel(action string) (string, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		msg := s.messages[i]
		if msg.Sender != models.SenderBot || len(msg.Options) == 0 {
			continue
		}
		for _, opt := range msg.Options {
			if opt.Action == action {
				return opt.Label, true
			}
		}
		return "", false
	}
	return "", false
}

// Snapshot is a read-only copy of the session state handed to renderers.
type Snapshot struct {
	SessionID   string                `json:"session_id"`
	Open        bool                  `json:"open"`
	Messages    []models.ChatMessage  `json:"messages"`
	CurrentStep string                `json:"current_step,omitempty"`
	Input       *models.InputField    `json:"input,omitempty"`
	FieldValues map[string]string     `json:"field_values"`
	IsWaiting   bool                  `json:"is_waiting"`
	History     []models.HistoryEntry `json:"history"`
	Generation  uint64                `json:"generation"`
}

func (s *sessionState) snapshot() Snapshot {
	snap := Snapshot{
		Messages:    make([]models.ChatMessage, len(s.messages)),
		CurrentStep: s.currentStep,
		FieldValues: make(map[string]string, len(s.fieldValues)),
		IsWaiting:   s.isWaiting,
		History:     append([]models.HistoryEntry(nil), s.history...),
	}
	for i, msg := range s.messages {
		if msg.Options != nil {
			msg.Options = append([]models.Option(nil), msg.Options...)
		}
		if msg.OrderData != nil {
			data := *msg.OrderData
			data.Items = append([]models.OrderItem(nil), data.Items...)
			msg.OrderData = &data
		}
		snap.Messages[i] = msg
	}
	for k, v := range s.fieldValues {
		snap.FieldValues[k] = v
	}
	return snap
}

// CountKind returns how many transcript messages have the given kind.
func (s Snapshot) CountKind(kind models.MessageKind) int {
	n := 0
	for _, msg := range s.Messages {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}

// LastMessage returns the most recent transcript message.
func (s Snapshot) LastMessage() (models.ChatMessage, bool) {
	if len(s.Messages) == 0 {
		return models.ChatMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
