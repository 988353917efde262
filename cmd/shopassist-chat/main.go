// Command shopassist-chat runs the support assistant in a terminal against the
// storefront order API, without the HTTP chat server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BTreeMap/ShopAssist/internal/config"
	"github.com/BTreeMap/ShopAssist/internal/flow"
	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/BTreeMap/ShopAssist/internal/orders"
	"github.com/BTreeMap/ShopAssist/internal/util"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

const helpText = `Type the number or label of an option, or text when asked for it.
Commands: /reset starts over, /close hides the widget, /open shows it again, /quit exits.`

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	settingsFile := flag.String("config", os.Getenv("STORE_SETTINGS_FILE"), "TOML settings file (overrides $STORE_SETTINGS_FILE)")
	orderAPIURL := flag.String("order-api-url", os.Getenv("ORDER_API_URL"), "storefront order API base URL (overrides $ORDER_API_URL)")
	noColor := flag.Bool("no-color", util.ParseBoolEnv("NO_COLOR", false), "disable colored output")
	noQR := flag.Bool("no-qr", false, "do not print QR codes for tracking links")
	logLevel := flag.String("log-level", util.GetEnvOrDefault("LOG_LEVEL", "warn"), "log level")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	color.NoColor = color.NoColor || *noColor

	cfg := config.Default()
	if *settingsFile != "" {
		loaded, err := config.Load(*settingsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shopassist-chat: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *orderAPIURL != "" {
		cfg.Storefront.OrderAPIURL = *orderAPIURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, color.Output, !*noQR); err != nil {
		fmt.Fprintf(os.Stderr, "shopassist-chat: %v\n", err)
		os.Exit(1)
	}
}

// run drives one conversation from in until /quit, EOF or ctx is done.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, qr bool) error {
	registry, err := flow.LoadRegistry(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to load flow registry: %w", err)
	}
	client, err := orders.NewClient(orders.WithBaseURL(cfg.Storefront.OrderAPIURL))
	if err != nil {
		return fmt.Errorf("failed to create order client: %w", err)
	}

	r := newRenderer(out, cfg.Store, cfg.Storefront.BaseURL, qr)
	engOpts := []flow.Option{flow.WithLookupTimeout(cfg.Chat.LookupTimeout), flow.WithSessionID("terminal")}
	if cfg.Chat.RetainHistory {
		engOpts = append(engOpts, flow.WithRetainHistory())
	}
	engine, err := flow.NewEngine(registry, flow.Dependencies{
		OrderLookup: client,
		Navigator:   flow.NavigatorFunc(r.navigate),
	}, engOpts...)
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	fmt.Fprintln(out, helpText)
	engine.Open(ctx)
	r.render(engine.Snapshot())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if quit := handleLine(ctx, engine, r, line); quit {
			return nil
		}
		if engine.Snapshot().IsWaiting {
			r.render(engine.Snapshot())
			if err := engine.AwaitLookups(ctx); err != nil {
				return nil
			}
		}
		r.render(engine.Snapshot())
	}
	return scanner.Err()
}

// handleLine applies one line of user input and reports whether the client should exit.
func handleLine(ctx context.Context, engine *flow.Engine, r *renderer, line string) bool {
	switch strings.TrimSpace(line) {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
		return false
	case "/reset":
		engine.Reset(ctx)
		return false
	case "/close":
		engine.Close(ctx)
		fmt.Fprintln(r.out, "(chat closed, /open to continue)")
		return false
	case "/open":
		engine.Open(ctx)
		return false
	}

	snap := engine.Snapshot()
	if !snap.Open {
		r.errorf("The chat is closed. Type /open to continue.")
		return false
	}

	var err error
	if snap.Input != nil {
		err = engine.SubmitInput(ctx, line)
	} else if action, ok := flow.ParseOptionChoice(line, flow.ActiveOptions(snap)); ok {
		err = engine.SelectOption(ctx, action)
	} else {
		r.errorf("Please pick one of the options above.")
		return false
	}

	switch {
	case err == nil, errors.Is(err, models.ErrValidationFailed), errors.Is(err, models.ErrStepNotFound):
		// The transcript already explains what happened.
	case errors.Is(err, models.ErrEmptyInput):
		r.errorf("Please type something first.")
	case errors.Is(err, models.ErrLookupInProgress):
		r.errorf("Still looking up your order, one moment.")
	default:
		slog.Error("shopassist-chat: event failed", "error", err)
		r.errorf("Something went wrong: %v", err)
	}
	return false
}
