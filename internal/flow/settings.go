package flow

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Default store settings, matching the storefront's published policies.
const (
	DefaultStoreName             = "NEXURE"
	DefaultCurrencySymbol        = "Rs."
	DefaultFreeShippingThreshold = 5000
	DefaultShippingFee           = 200
	DefaultDeliveryDays          = "3-5"
	DefaultReturnWindowDays      = 30
	DefaultSupportEmail          = "support@nexure.com"
	DefaultSupportPhone          = "+92 300 1234567"
	DefaultBusinessHours         = "Mon - Sat, 10am - 8pm PKT"
	DefaultCountry               = "Pakistan"
)

// StoreSettings holds the store-wide constants interpolated into registry messages.
type StoreSettings struct {
	StoreName             string  `toml:"store_name"`
	CurrencySymbol        string  `toml:"currency_symbol"`
	FreeShippingThreshold float64 `toml:"free_shipping_threshold"`
	ShippingFee           float64 `toml:"shipping_fee"`
	DeliveryDays          string  `toml:"delivery_days"`
	ReturnWindowDays      int     `toml:"return_window_days"`
	SupportEmail          string  `toml:"support_email"`
	SupportPhone          string  `toml:"support_phone"`
	BusinessHours         string  `toml:"business_hours"`
	Country               string  `toml:"country"`
}

// DefaultStoreSettings returns the settings used when no settings file is configured.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		StoreName:             DefaultStoreName,
		CurrencySymbol:        DefaultCurrencySymbol,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		ShippingFee:           DefaultShippingFee,
		DeliveryDays:          DefaultDeliveryDays,
		ReturnWindowDays:      DefaultReturnWindowDays,
		SupportEmail:          DefaultSupportEmail,
		SupportPhone:          DefaultSupportPhone,
		BusinessHours:         DefaultBusinessHours,
		Country:               DefaultCountry,
	}
}

// Validate checks that every value a registry template may reference is usable.
func (s StoreSettings) Validate() error {
	if s.StoreName == "" {
		return fmt.Errorf("store_name is required")
	}
	if s.CurrencySymbol == "" {
		return fmt.Errorf("currency_symbol is required")
	}
	if s.FreeShippingThreshold < 0 || s.ShippingFee < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	if s.ReturnWindowDays <= 0 {
		return fmt.Errorf("return_window_days must be positive")
	}
	if s.SupportEmail == "" {
		return fmt.Errorf("support_email is required")
	}
	return nil
}

// FormatAmount renders an amount with the store currency and English digit grouping,
// e.g. "Rs. 5,000" or "Rs. 1,249.50".
func (s StoreSettings) FormatAmount(amount float64) string {
	p := message.NewPrinter(language.English)
	if amount == math.Trunc(amount) {
		return p.Sprintf("%s %d", s.CurrencySymbol, int64(amount))
	}
	return p.Sprintf("%s %.2f", s.CurrencySymbol, amount)
}
