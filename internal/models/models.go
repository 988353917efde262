// Package models defines the core data structures for ShopAssist.
//
// It includes the flow step and chat transcript types shared by the flow engine,
// the HTTP API, the order client and the history store.
package models

import (
	"errors"
)

// Validation constants for registry and input validation
const (
	// MaxOptionLabelLength defines the maximum allowed length for an option button label
	MaxOptionLabelLength = 60
	// MaxOptionsCount defines the maximum number of buttons a single step may offer
	MaxOptionsCount = 8
	// MaxInputLength defines the maximum accepted length of a free-text submission
	MaxInputLength = 1000
	// MaxOrderNumberLength mirrors the backend limit on order numbers
	MaxOrderNumberLength = 30
)

// Error variables for better error handling and testability
var (
	ErrStepNotFound      = errors.New("flow step not found")
	ErrDanglingReference = errors.New("flow step references unknown target")
	ErrMissingWelcome    = errors.New("registry has no welcome step")
	ErrInvalidStepKind   = errors.New("invalid flow step kind")
	ErrEmptyBotMessage   = errors.New("flow step bot message cannot be empty")
	ErrMissingOptions    = errors.New("options step requires at least one option")
	ErrUnexpectedOptions = errors.New("only options steps may carry options")
	ErrTooManyOptions    = errors.New("too many options")
	ErrEmptyOptionLabel  = errors.New("option label cannot be empty")
	ErrOptionLabelLong   = errors.New("option label exceeds maximum length")
	ErrMissingInputField = errors.New("input step requires an input field")
	ErrUnexpectedInput   = errors.New("only input steps may carry an input field")
	ErrEmptyFieldName    = errors.New("input field name cannot be empty")
	ErrInvalidPattern    = errors.New("input field validation pattern does not compile")

	ErrOrderNotFound    = errors.New("no order found with this order number and email")
	ErrLookupInProgress = errors.New("order lookup in progress")
	ErrNoActiveInput    = errors.New("current step does not accept text input")
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrValidationFailed = errors.New("input failed validation")
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrEmptyAction      = errors.New("action cannot be empty")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusPending indicates the request was accepted while an order lookup is outstanding.
	APIStatusPending APIStatus = "pending"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Pending creates a response for an event that was ignored because a lookup is outstanding.
func Pending(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusPending).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// SelectOptionRequest is the body of POST /chat/sessions/{id}/options.
type SelectOptionRequest struct {
	Action string `json:"action"`
}

// Validate checks the option selection request.
func (r SelectOptionRequest) Validate() error {
	if r.Action == "" {
		return ErrEmptyAction
	}
	return nil
}

// SubmitInputRequest is the body of POST /chat/sessions/{id}/input.
type SubmitInputRequest struct {
	Text string `json:"text"`
}

// Validate checks the text submission request. Blank text is not rejected here;
// the engine decides how a blank submission is treated for the active field.
func (r SubmitInputRequest) Validate() error {
	if len(r.Text) > MaxInputLength {
		return ErrInputTooLong
	}
	return nil
}
