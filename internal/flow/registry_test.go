package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

func TestLoadRegistry_DefaultDocument(t *testing.T) {
	reg := testRegistry(t)

	for _, id := range []string{WelcomeStepID, TrackOrderStartStepID, TrackOrderEmailStepID, "faq_shipping", "shipping_time"} {
		if _, ok := reg.Lookup(id); !ok {
			t.Errorf("expected step %q to be registered", id)
		}
	}

	start, _ := reg.Lookup(TrackOrderStartStepID)
	if start.InputField == nil || start.InputField.ValidationPattern != "" {
		t.Errorf("order number step must accept any non-empty input, got %+v", start.InputField)
	}
	email, _ := reg.Lookup(TrackOrderEmailStepID)
	if email.InputField == nil || email.InputField.NextStep != ActionLookupOrder {
		t.Errorf("email step must lead to the lookup, got %+v", email.InputField)
	}
	if email.InputField.ErrorMessage == "" {
		t.Error("email step must carry an error message")
	}
}

func TestLoadRegistry_InterpolatesSettingsOnce(t *testing.T) {
	reg := testRegistry(t)

	step, ok := reg.Lookup("shipping_cost")
	if !ok {
		t.Fatal("shipping_cost step missing")
	}
	if !strings.Contains(step.BotMessage, "Rs. 5,000") {
		t.Errorf("expected free shipping threshold in message, got %q", step.BotMessage)
	}
	if !strings.Contains(step.BotMessage, "Rs. 200") {
		t.Errorf("expected shipping fee in message, got %q", step.BotMessage)
	}
	if strings.Contains(step.BotMessage, "{{") {
		t.Errorf("template markers left in message: %q", step.BotMessage)
	}

	welcome, _ := reg.Lookup(WelcomeStepID)
	if !strings.Contains(welcome.BotMessage, DefaultStoreName) {
		t.Errorf("expected store name in welcome, got %q", welcome.BotMessage)
	}
}

func TestParseRegistry_CustomSettings(t *testing.T) {
	settings := DefaultStoreSettings()
	settings.FreeShippingThreshold = 7500.5
	settings.DeliveryDays = "2-4"

	reg, err := LoadRegistry(settings)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cost, _ := reg.Lookup("shipping_cost")
	if !strings.Contains(cost.BotMessage, "Rs. 7,500.50") {
		t.Errorf("expected formatted custom threshold, got %q", cost.BotMessage)
	}
	timing, _ := reg.Lookup("shipping_time")
	if !strings.Contains(timing.BotMessage, "2-4 business days") {
		t.Errorf("expected custom delivery window, got %q", timing.BotMessage)
	}
}

func TestParseRegistry_InvalidSettings(t *testing.T) {
	settings := DefaultStoreSettings()
	settings.CurrencySymbol = ""
	if _, err := LoadRegistry(settings); err == nil {
		t.Fatal("expected error for settings without a currency symbol")
	}
}

func TestParseRegistry_UnknownTemplateField(t *testing.T) {
	doc := []byte(`
steps:
  welcome:
    kind: options
    bot_message: "{{.NoSuchField}}"
    options:
      - {label: "Main Menu", action: welcome}
`)
	if _, err := ParseRegistry(doc, DefaultStoreSettings()); err == nil {
		t.Fatal("expected template error for unknown field")
	}
}

func minimalSteps() []models.FlowStep {
	return []models.FlowStep{
		{
			ID: WelcomeStepID, Kind: models.StepKindOptions, BotMessage: "Hi",
			Options: []models.Option{{Label: "Track", Action: ActionStartLookup}, {Label: "Help", Action: "help_page"}},
		},
		{
			ID: TrackOrderStartStepID, Kind: models.StepKindInput, BotMessage: "Order number?",
			InputField: &models.InputField{FieldName: FieldOrderNumber, NextStep: TrackOrderEmailStepID},
		},
		{
			ID: TrackOrderEmailStepID, Kind: models.StepKindInput, BotMessage: "Email?",
			InputField: &models.InputField{FieldName: FieldEmail, ValidationPattern: `^\S+@\S+$`, NextStep: ActionLookupOrder},
		},
	}
}

func TestNewRegistry_Minimal(t *testing.T) {
	reg, err := NewRegistry(minimalSteps(), map[string]string{"help_page": "/help"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if path, ok := reg.NavigationTarget("help_page"); !ok || path != "/help" {
		t.Errorf("expected help_page -> /help, got %q %v", path, ok)
	}
	if got := reg.StepIDs(); len(got) != 3 || got[0] != TrackOrderEmailStepID {
		t.Errorf("unexpected sorted step ids: %v", got)
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(steps []models.FlowStep) []models.FlowStep
		nav    map[string]string
		want   error
	}{
		{
			name: "dangling option action",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[0].Options = append(s[0].Options, models.Option{Label: "Gone", Action: "missing_step"})
				return s
			},
			want: models.ErrDanglingReference,
		},
		{
			name: "dangling next step",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[1].InputField.NextStep = "nowhere"
				return s
			},
			want: models.ErrDanglingReference,
		},
		{
			name:   "missing welcome",
			mutate: func(s []models.FlowStep) []models.FlowStep { return s[1:] },
			want:   models.ErrMissingWelcome,
		},
		{
			name: "options on input step",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[1].Options = []models.Option{{Label: "x", Action: WelcomeStepID}}
				return s
			},
			want: models.ErrUnexpectedOptions,
		},
		{
			name: "input step without field",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[1].InputField = nil
				return s
			},
			want: models.ErrMissingInputField,
		},
		{
			name: "bad pattern",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[2].InputField.ValidationPattern = "(["
				return s
			},
			want: models.ErrInvalidPattern,
		},
		{
			name: "unknown kind",
			mutate: func(s []models.FlowStep) []models.FlowStep {
				s[0].Kind = "carousel"
				return s
			},
			want: models.ErrInvalidStepKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := tt.nav
			if nav == nil {
				nav = map[string]string{"help_page": "/help"}
			}
			_, err := NewRegistry(tt.mutate(minimalSteps()), nav)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRegistry_RejectsDuplicateAndShadowing(t *testing.T) {
	steps := append(minimalSteps(), minimalSteps()[0])
	if _, err := NewRegistry(steps, map[string]string{"help_page": "/help"}); err == nil {
		t.Error("expected duplicate step error")
	}

	steps = append(minimalSteps(), models.FlowStep{ID: ActionRestart, Kind: models.StepKindText, BotMessage: "x"})
	if _, err := NewRegistry(steps, map[string]string{"help_page": "/help"}); err == nil {
		t.Error("expected error for a step shadowing a reserved action")
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := testRegistry(t)

	step, _ := reg.Lookup(WelcomeStepID)
	step.Options[0].Label = "mutated"
	step.BotMessage = "mutated"

	again, _ := reg.Lookup(WelcomeStepID)
	if again.Options[0].Label == "mutated" || again.BotMessage == "mutated" {
		t.Fatal("registry step was mutated through a lookup result")
	}
}

func TestStoreSettings_FormatAmount(t *testing.T) {
	s := DefaultStoreSettings()
	tests := map[float64]string{
		0:       "Rs. 0",
		200:     "Rs. 200",
		5000:    "Rs. 5,000",
		1249.5:  "Rs. 1,249.50",
		1234567: "Rs. 1,234,567",
	}
	for amount, want := range tests {
		if got := s.FormatAmount(amount); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", amount, got, want)
		}
	}
}
