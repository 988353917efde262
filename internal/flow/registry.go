package flow

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"text/template"

	"github.com/BTreeMap/ShopAssist/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryDocument []byte

// registryFile is the on-disk shape of registry.yaml.
type registryFile struct {
	Navigation map[string]string          `yaml:"navigation"`
	Steps      map[string]models.FlowStep `yaml:"steps"`
}

// Registry is the immutable table of dialogue steps. It is safe for concurrent use
// because nothing mutates it after construction.
type Registry struct {
	steps      map[string]models.FlowStep
	patterns   map[string]*regexp.Regexp
	navigation map[string]string
}

// NewRegistry validates steps and navigation targets and builds a Registry.
// Every option action and input next step must resolve to a step, a navigation
// action or a reserved engine action.
func NewRegistry(steps []models.FlowStep, navigation map[string]string) (*Registry, error) {
	r := &Registry{
		steps:      make(map[string]models.FlowStep, len(steps)),
		patterns:   make(map[string]*regexp.Regexp),
		navigation: make(map[string]string, len(navigation)),
	}

	for action, path := range navigation {
		if action == "" || path == "" {
			return nil, fmt.Errorf("navigation entry %q -> %q: empty action or path", action, path)
		}
		r.navigation[action] = path
	}

	for _, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("flow step with empty id")
		}
		if _, dup := r.steps[step.ID]; dup {
			return nil, fmt.Errorf("duplicate flow step %q", step.ID)
		}
		if _, clash := r.navigation[step.ID]; clash || IsReservedAction(step.ID) {
			return nil, fmt.Errorf("flow step %q shadows a navigation or reserved action", step.ID)
		}
		if err := step.Validate(); err != nil {
			return nil, err
		}
		r.steps[step.ID] = cloneStep(step)
		if step.InputField != nil && step.InputField.ValidationPattern != "" {
			r.patterns[step.ID] = regexp.MustCompile(step.InputField.ValidationPattern)
		}
	}

	for _, id := range []string{WelcomeStepID, TrackOrderStartStepID, TrackOrderEmailStepID} {
		if _, ok := r.steps[id]; !ok {
			if id == WelcomeStepID {
				return nil, models.ErrMissingWelcome
			}
			return nil, fmt.Errorf("%w: required step %q", models.ErrStepNotFound, id)
		}
	}

	for _, id := range r.StepIDs() {
		step := r.steps[id]
		for _, target := range step.Targets() {
			if !r.resolves(target) {
				return nil, fmt.Errorf("step %q: %w: %q", id, models.ErrDanglingReference, target)
			}
		}
	}

	slog.Debug("Registry built", "steps", len(r.steps), "navigation", len(r.navigation))
	return r, nil
}

// LoadRegistry builds the default registry from the embedded dialogue document,
// rendering every message template against settings exactly once.
func LoadRegistry(settings StoreSettings) (*Registry, error) {
	return ParseRegistry(registryDocument, settings)
}

// ParseRegistry builds a registry from a YAML document.
func ParseRegistry(doc []byte, settings StoreSettings) (*Registry, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store settings: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry document: %w", err)
	}

	funcs := template.FuncMap{"amount": settings.FormatAmount}
	steps := make([]models.FlowStep, 0, len(file.Steps))
	for id, step := range file.Steps {
		step.ID = id
		rendered, err := renderTemplate(id, step.BotMessage, funcs, settings)
		if err != nil {
			return nil, err
		}
		step.BotMessage = rendered
		if step.InputField != nil && step.InputField.ErrorMessage != "" {
			rendered, err := renderTemplate(id+".error", step.InputField.ErrorMessage, funcs, settings)
			if err != nil {
				return nil, err
			}
			step.InputField.ErrorMessage = rendered
		}
		steps = append(steps, step)
	}

	return NewRegistry(steps, file.Navigation)
}

func renderTemplate(name, text string, funcs template.FuncMap, settings StoreSettings) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("step %q: failed to parse message template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, settings); err != nil {
		return "", fmt.Errorf("step %q: failed to render message template: %w", name, err)
	}
	return buf.String(), nil
}

// Lookup returns the step registered under id. The returned value is a copy.
func (r *Registry) Lookup(id string) (models.FlowStep, bool) {
	step, ok := r.steps[id]
	if !ok {
		return models.FlowStep{}, false
	}
	return cloneStep(step), true
}

// NavigationTarget returns the path for a navigation action.
func (r *Registry) NavigationTarget(action string) (string, bool) {
	path, ok := r.navigation[action]
	return path, ok
}

// StepIDs returns every registered step id in sorted order.
func (r *Registry) StepIDs() []string {
	ids := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NavigationActions returns every navigation action in sorted order.
func (r *Registry) NavigationActions() []string {
	actions := make([]string, 0, len(r.navigation))
	for action := range r.navigation {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

func (r *Registry) pattern(stepID string) *regexp.Regexp {
	return r.patterns[stepID]
}

func (r *Registry) resolves(target string) bool {
	if _, ok := r.steps[target]; ok {
		return true
	}
	if _, ok := r.navigation[target]; ok {
		return true
	}
	return IsReservedAction(target)
}

func cloneStep(step models.FlowStep) models.FlowStep {
	if step.Options != nil {
		step.Options = append([]models.Option(nil), step.Options...)
	}
	if step.InputField != nil {
		field := *step.InputField
		step.InputField = &field
	}
	return step
}
