package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/flow"
)

func TestLoad_FullFile(t *testing.T) {
	t.Setenv("SHOP_SUPPORT_EMAIL", "help@shop.example")
	path := filepath.Join(t.TempDir(), "shopassist.toml")
	doc := `
[store]
store_name = "Example Store"
currency_symbol = "PKR"
free_shipping_threshold = 7500
shipping_fee = 250
delivery_days = "2-4"
return_window_days = 14
support_email = "${SHOP_SUPPORT_EMAIL}"

[storefront]
base_url = "https://shop.example"
order_api_url = "https://api.shop.example"

[chat]
lookup_timeout = "5s"
session_ttl = "1h"
retain_history = true
history_retention = "720h"
purge_schedule = "@daily"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.StoreName != "Example Store" || cfg.Store.ShippingFee != 250 || cfg.Store.ReturnWindowDays != 14 {
		t.Errorf("store settings not decoded: %+v", cfg.Store)
	}
	if cfg.Store.SupportEmail != "help@shop.example" {
		t.Errorf("expected env expansion, got %q", cfg.Store.SupportEmail)
	}
	// keys absent from the file keep their defaults
	if cfg.Store.Country != flow.DefaultCountry || cfg.Store.SupportPhone != flow.DefaultSupportPhone {
		t.Errorf("expected defaults for missing keys, got %+v", cfg.Store)
	}
	if cfg.Chat.LookupTimeout != 5*time.Second || cfg.Chat.SessionTTL != time.Hour || !cfg.Chat.RetainHistory {
		t.Errorf("chat section not decoded: %+v", cfg.Chat)
	}
	if cfg.Chat.HistoryRetention != 720*time.Hour || cfg.Chat.PurgeSchedule != "@daily" {
		t.Errorf("retention not decoded: %+v", cfg.Chat)
	}
	if cfg.Storefront.OrderAPIURL != "https://api.shop.example" {
		t.Errorf("storefront section not decoded: %+v", cfg.Storefront)
	}
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Store != flow.DefaultStoreSettings() {
		t.Errorf("expected default store settings, got %+v", cfg.Store)
	}
	if cfg.Chat.LookupTimeout != flow.DefaultLookupTimeout || cfg.Chat.SessionTTL != DefaultSessionTTL {
		t.Errorf("expected default chat settings, got %+v", cfg.Chat)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"syntax error", "[store\n", "parsing config"},
		{"unknown key", "[store]\ncolour = \"red\"\n", "unknown key"},
		{"missing env var empties required value", "[store]\nsupport_email = \"${SHOPASSIST_UNSET_VAR_FOR_TEST}\"\n", "support_email"},
		{"negative fee", "[store]\nshipping_fee = -1\n", "shipping amounts"},
		{"bad url scheme", "[storefront]\norder_api_url = \"ftp://orders\"\n", "http or https"},
		{"zero timeout", "[chat]\nlookup_timeout = \"0s\"\n", "lookup_timeout"},
		{"negative retention", "[chat]\nhistory_retention = \"-1h\"\n", "history_retention"},
		{"retention without schedule", "[chat]\nhistory_retention = \"720h\"\npurge_schedule = \"\"\n", "purge_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
