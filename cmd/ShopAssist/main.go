package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/api"
	"github.com/BTreeMap/ShopAssist/internal/config"
	"github.com/BTreeMap/ShopAssist/internal/lockfile"
	"github.com/BTreeMap/ShopAssist/internal/orders"
	"github.com/BTreeMap/ShopAssist/internal/store"
	"github.com/BTreeMap/ShopAssist/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ShopAssist state data
	DefaultStateDir = "/var/lib/shopassist"
	// DefaultDBFileName is the default SQLite history database filename
	DefaultDBFileName = "shopassist.db"
)

func main() {
	// Load environment configuration
	env := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(env)

	initializeLogger(*flags.logLevel)

	settings, err := loadSettings(flags)
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	// SQLite history lives in the state directory; only one server may use it.
	var lock *lockfile.Lock
	if store.DetectDSNType(*flags.dbDSN) == store.DriverSQLite {
		lock, err = lockfile.AcquireLock(*flags.stateDir, *flags.apiAddr)
		if err != nil {
			var lockErr *lockfile.LockError
			if errors.As(err, &lockErr) {
				fmt.Fprintln(os.Stderr, lockErr.Error())
			}
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	orderOpts := buildOrderOptions(settings)
	apiOpts := buildAPIOptions(flags, settings)

	slog.Info("Bootstrapping ShopAssist with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "orders", len(orderOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr,
		"order_api_url", settings.Storefront.OrderAPIURL, "store_name", settings.Store.StoreName)
	runErr := api.Run(storeOpts, orderOpts, settings.Store, apiOpts)
	if err := lock.Release(); err != nil {
		slog.Warn("Failed to release state directory lock", "error", err)
	}
	if runErr != nil {
		slog.Error("ShopAssist failed to run", "error", runErr)
		os.Exit(1)
	}
	slog.Info("ShopAssist exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	APIAddr       string
	OrderAPIURL   string
	SettingsFile  string
	LookupTimeout time.Duration
	SessionTTL    time.Duration
	RetainHistory bool
	LogLevel      string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	apiAddr       *string
	orderAPIURL   *string
	settingsFile  *string
	lookupTimeout *time.Duration
	sessionTTL    *time.Duration
	retainHistory *bool
	logLevel      *string
}

// initializeLogger sets up structured logging at the requested level (debug by default)
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      util.GetEnvOrDefault("SHOPASSIST_STATE_DIR", DefaultStateDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		APIAddr:       util.GetEnvOrDefault("API_ADDR", api.DefaultServerAddress),
		OrderAPIURL:   os.Getenv("ORDER_API_URL"),
		SettingsFile:  os.Getenv("STORE_SETTINGS_FILE"),
		LookupTimeout: util.ParseDurationEnv("LOOKUP_TIMEOUT", 0),
		SessionTTL:    util.ParseDurationEnv("SESSION_TTL", 0),
		RetainHistory: util.ParseBoolEnv("RETAIN_HISTORY", false),
		LogLevel:      util.GetEnvOrDefault("LOG_LEVEL", "debug"),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	slog.Debug("environment variables loaded",
		"SHOPASSIST_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"API_ADDR", config.APIAddr,
		"ORDER_API_URL", config.OrderAPIURL,
		"STORE_SETTINGS_FILE", config.SettingsFile,
		"LOOKUP_TIMEOUT", config.LookupTimeout,
		"SESSION_TTL", config.SessionTTL,
		"RETAIN_HISTORY", config.RetainHistory)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for ShopAssist data (overrides $SHOPASSIST_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "history database DSN, a SQLite path or PostgreSQL URL (overrides $DATABASE_URL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		orderAPIURL:   flag.String("order-api-url", config.OrderAPIURL, "storefront order API base URL (overrides $ORDER_API_URL)"),
		settingsFile:  flag.String("config", config.SettingsFile, "TOML settings file (overrides $STORE_SETTINGS_FILE)"),
		lookupTimeout: flag.Duration("lookup-timeout", config.LookupTimeout, "order lookup timeout (overrides $LOOKUP_TIMEOUT)"),
		sessionTTL:    flag.Duration("session-ttl", config.SessionTTL, "idle chat session lifetime (overrides $SESSION_TTL)"),
		retainHistory: flag.Bool("retain-history", config.RetainHistory, "keep session history across resets (overrides $RETAIN_HISTORY)"),
		logLevel:      flag.String("log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $LOG_LEVEL)"),
	}

	flag.Parse()

	// Follow a moved state directory when the DSN is the default SQLite path
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if *flags.dbDSN == defaultDSN && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// loadSettings reads the settings file, when one is given, and applies the
// environment and flag overrides on top of it.
func loadSettings(flags Flags) (*config.Config, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(*flags.settingsFile); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		slog.Debug("Loaded settings file", "path", path)
	}

	if *flags.orderAPIURL != "" {
		cfg.Storefront.OrderAPIURL = *flags.orderAPIURL
	}
	if *flags.lookupTimeout > 0 {
		cfg.Chat.LookupTimeout = *flags.lookupTimeout
	}
	if *flags.sessionTTL > 0 {
		cfg.Chat.SessionTTL = *flags.sessionTTL
	}
	if *flags.retainHistory {
		cfg.Chat.RetainHistory = true
	}

	if cfg.Storefront.OrderAPIURL == "" {
		return nil, fmt.Errorf("order API URL is required (set $ORDER_API_URL, -order-api-url or storefront.order_api_url)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	return cfg, nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == store.DriverPostgres {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildOrderOptions constructs order client options
func buildOrderOptions(cfg *config.Config) []orders.Option {
	return []orders.Option{orders.WithBaseURL(cfg.Storefront.OrderAPIURL)}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, cfg *config.Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts,
		api.WithLookupTimeout(cfg.Chat.LookupTimeout),
		api.WithSessionTTL(cfg.Chat.SessionTTL),
		api.WithRetainHistory(cfg.Chat.RetainHistory),
		api.WithHistoryRetention(cfg.Chat.HistoryRetention, cfg.Chat.PurgeSchedule),
	)
	return apiOpts
}
