// Package flow implements the scripted support assistant: an immutable registry of
// dialogue steps and the conversation engine that walks a visitor through it.
package flow

// Well-known step identifiers. The registry must define all of them.
const (
	WelcomeStepID         = "welcome"
	TrackOrderStartStepID = "track_order_start"
	TrackOrderEmailStepID = "track_order_email"
)

// Reserved engine actions. They may appear as option actions or input next steps
// without a matching registry key.
const (
	// ActionStartLookup enters the order lookup sub-flow with fresh field values.
	ActionStartLookup = "track_order"
	// ActionLookupOrder performs the order lookup with the captured fields.
	ActionLookupOrder = "lookup_order"
	// ActionRestart resets the conversation.
	ActionRestart = "restart"
)

// Field names captured by the lookup sub-flow.
const (
	FieldOrderNumber = "orderNumber"
	FieldEmail       = "email"
)

// IsReservedAction reports whether action is handled by the engine itself.
func IsReservedAction(action string) bool {
	switch action {
	case ActionStartLookup, ActionLookupOrder, ActionRestart:
		return true
	default:
		return false
	}
}
