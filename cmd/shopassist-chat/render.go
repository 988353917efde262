package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/BTreeMap/ShopAssist/internal/flow"
	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/fatih/color"
	"github.com/mdp/qrterminal/v3"
)

// renderer prints transcript messages to a terminal. Messages are printed once,
// keyed by id, so the whole snapshot can be passed after every event.
type renderer struct {
	out      io.Writer
	settings flow.StoreSettings
	baseURL  string
	qr       bool
	printed  map[string]bool

	bot    *color.Color
	user   *color.Color
	notice *color.Color
	order  *color.Color
}

func newRenderer(out io.Writer, settings flow.StoreSettings, baseURL string, qr bool) *renderer {
	return &renderer{
		out:      out,
		settings: settings,
		baseURL:  strings.TrimRight(baseURL, "/"),
		qr:       qr,
		printed:  make(map[string]bool),
		bot:      color.New(color.FgCyan),
		user:     color.New(color.FgGreen),
		notice:   color.New(color.FgHiBlack, color.Italic),
		order:    color.New(color.FgYellow, color.Bold),
	}
}

// render prints every message of snap not printed before.
func (r *renderer) render(snap flow.Snapshot) {
	for _, msg := range snap.Messages {
		if r.printed[msg.ID] {
			continue
		}
		r.printed[msg.ID] = true
		r.message(msg)
	}
}

func (r *renderer) message(msg models.ChatMessage) {
	switch {
	case msg.Sender == models.SenderUser:
		r.user.Fprintf(r.out, "you> %s\n", msg.Content)
	case msg.Kind == models.MessageKindLoading:
		r.notice.Fprintf(r.out, "... %s\n", msg.Content)
	case msg.Kind == models.MessageKindOrderResult && msg.OrderData != nil:
		r.bot.Fprintf(r.out, "bot> %s\n", msg.Content)
		r.orderSummary(*msg.OrderData)
		fmt.Fprintln(r.out, strings.TrimPrefix(flow.FormatOptions(models.ChatMessage{Options: msg.Options}), "\n"))
	default:
		r.bot.Fprintln(r.out, "bot> "+flow.FormatOptions(msg))
	}
}

func (r *renderer) orderSummary(data models.OrderResultData) {
	r.order.Fprintf(r.out, "  Order %s: %s\n", data.OrderNumber, data.StatusLabel)
	for _, item := range data.Items {
		fmt.Fprintf(r.out, "    %dx %s  %s\n", item.Quantity, item.Name, r.settings.FormatAmount(item.Price))
	}
	fmt.Fprintf(r.out, "  Total: %s\n", r.settings.FormatAmount(data.Total))
	if data.TrackingNumber != "" {
		fmt.Fprintf(r.out, "  Tracking number: %s\n", data.TrackingNumber)
	}
	if data.TrackingURL != "" {
		fmt.Fprintf(r.out, "  Track your parcel: %s\n", data.TrackingURL)
		if r.qr {
			qrterminal.GenerateHalfBlock(data.TrackingURL, qrterminal.L, r.out)
		}
	}
}

// navigate prints the page the assistant sent the visitor to.
func (r *renderer) navigate(path string) {
	r.notice.Fprintf(r.out, "-> open %s%s\n", r.baseURL, path)
}

// errorf prints a client-side notice that is not part of the transcript.
func (r *renderer) errorf(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(r.out, format+"\n", args...)
}
