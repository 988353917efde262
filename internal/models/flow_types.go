// Package models defines flow type definitions to avoid circular imports.
package models

import (
	"fmt"
	"regexp"
)

// StepKind represents how a flow step is rendered.
type StepKind string

// MessageSender identifies who authored a transcript message.
type MessageSender string

// MessageKind represents how a transcript message is rendered.
type MessageKind string

// Step kind constants.
const (
	StepKindText    StepKind = "text"    // plain bot text, soft step
	StepKindOptions StepKind = "options" // bot text followed by buttons
	StepKindInput   StepKind = "input"   // bot prompt followed by a text box
)

// Sender constants.
const (
	SenderBot  MessageSender = "bot"
	SenderUser MessageSender = "user"
)

// Message kind constants.
const (
	MessageKindText        MessageKind = "text"
	MessageKindOptions     MessageKind = "options"
	MessageKindWelcome     MessageKind = "welcome"
	MessageKindOrderResult MessageKind = "order-result"
	MessageKindLoading     MessageKind = "loading"
)

// IsValidStepKind checks if the given step kind is supported.
func IsValidStepKind(k StepKind) bool {
	switch k {
	case StepKindText, StepKindOptions, StepKindInput:
		return true
	default:
		return false
	}
}

// Option is one button of an options step.
type Option struct {
	Label  string `json:"label" yaml:"label"`
	Action string `json:"action" yaml:"action"`
}

// InputField describes the free-text capture of an input step.
type InputField struct {
	Placeholder       string `json:"placeholder" yaml:"placeholder"`
	FieldName         string `json:"field_name" yaml:"field_name"`
	ValidationPattern string `json:"validation_pattern,omitempty" yaml:"validation_pattern,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	NextStep          string `json:"next_step" yaml:"next_step"`
}

// FlowStep is one node of the scripted dialogue.
type FlowStep struct {
	ID         string      `json:"id" yaml:"-"`
	BotMessage string      `json:"bot_message" yaml:"bot_message"`
	Kind       StepKind    `json:"kind" yaml:"kind"`
	Options    []Option    `json:"options,omitempty" yaml:"options,omitempty"`
	InputField *InputField `json:"input_field,omitempty" yaml:"input_field,omitempty"`
}

// Validate checks the structural invariants of a single step. Cross-step references
// are checked by the registry, which knows every key.
func (s *FlowStep) Validate() error {
	if !IsValidStepKind(s.Kind) {
		return fmt.Errorf("step %q: %w: %q", s.ID, ErrInvalidStepKind, s.Kind)
	}
	if s.BotMessage == "" {
		return fmt.Errorf("step %q: %w", s.ID, ErrEmptyBotMessage)
	}

	switch s.Kind {
	case StepKindOptions:
		if len(s.Options) == 0 {
			return fmt.Errorf("step %q: %w", s.ID, ErrMissingOptions)
		}
		if len(s.Options) > MaxOptionsCount {
			return fmt.Errorf("step %q: %w", s.ID, ErrTooManyOptions)
		}
		for _, opt := range s.Options {
			if opt.Label == "" {
				return fmt.Errorf("step %q: %w", s.ID, ErrEmptyOptionLabel)
			}
			if len(opt.Label) > MaxOptionLabelLength {
				return fmt.Errorf("step %q: %w", s.ID, ErrOptionLabelLong)
			}
			if opt.Action == "" {
				return fmt.Errorf("step %q option %q: %w", s.ID, opt.Label, ErrEmptyAction)
			}
		}
	default:
		if len(s.Options) > 0 {
			return fmt.Errorf("step %q: %w", s.ID, ErrUnexpectedOptions)
		}
	}

	if s.Kind == StepKindInput {
		if s.InputField == nil {
			return fmt.Errorf("step %q: %w", s.ID, ErrMissingInputField)
		}
		if s.InputField.FieldName == "" {
			return fmt.Errorf("step %q: %w", s.ID, ErrEmptyFieldName)
		}
		if s.InputField.NextStep == "" {
			return fmt.Errorf("step %q: %w: empty next step", s.ID, ErrDanglingReference)
		}
		if s.InputField.ValidationPattern != "" {
			if _, err := regexp.Compile(s.InputField.ValidationPattern); err != nil {
				return fmt.Errorf("step %q: %w: %v", s.ID, ErrInvalidPattern, err)
			}
		}
	} else if s.InputField != nil {
		return fmt.Errorf("step %q: %w", s.ID, ErrUnexpectedInput)
	}

	return nil
}

// Targets returns every action or next-step identifier the step can lead to.
func (s *FlowStep) Targets() []string {
	var targets []string
	for _, opt := range s.Options {
		targets = append(targets, opt.Action)
	}
	if s.InputField != nil {
		targets = append(targets, s.InputField.NextStep)
	}
	return targets
}
