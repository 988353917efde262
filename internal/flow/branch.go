package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// Option formatting constants
const (
	// OptionFormat is the format string for numbered option display
	OptionFormat = "\n%d. %s"
)

// FormatOptions renders a message's buttons as a numbered list for text-only renderers.
func FormatOptions(msg models.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString(msg.Content)
	for i, opt := range msg.Options {
		sb.WriteString(fmt.Sprintf(OptionFormat, i+1, opt.Label))
	}
	return sb.String()
}

// ParseOptionChoice maps a numbered reply ("2") or an exact label ("Main Menu",
// case-insensitive) to the action of the chosen option.
func ParseOptionChoice(reply string, options []models.Option) (string, bool) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", false
	}
	if n, err := strconv.Atoi(reply); err == nil {
		if n < 1 || n > len(options) {
			return "", false
		}
		return options[n-1].Action, true
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Label, reply) {
			return opt.Action, true
		}
	}
	return "", false
}

// ActiveOptions returns the buttons of the most recent bot message when that message
// is still the newest one in the transcript, i.e. its buttons are actionable.
func ActiveOptions(snap Snapshot) []models.Option {
	last, ok := snap.LastMessage()
	if !ok || last.Sender != models.SenderBot {
		return nil
	}
	return last.Options
}
