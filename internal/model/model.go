// Package model defines the core domain types for the registration consumer.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Action is the registration state transition a command asks for,
// decoded once at the message boundary.
type Action string

const (
	ActionRegister   Action = "Register"
	ActionUnregister Action = "Unregister"
	// ActionUnknown marks a well-formed command whose action the system
	// does not model. The dispatcher acknowledges these instead of
	// letting the transport redeliver them forever.
	ActionUnknown Action = ""
)

// ParseAction maps the wire action string onto the closed Action set.
// Unknown strings are not an error here; the dispatcher decides what
// to do with them.
func ParseAction(s string) Action {
	switch s {
	case string(ActionRegister):
		return ActionRegister
	case string(ActionUnregister):
		return ActionUnregister
	default:
		return ActionUnknown
	}
}

// Command is the in-memory representation of one queue message's intent.
// It lives for the duration of a single dispatch and is discarded afterward.
type Command struct {
	EventID uuid.UUID
	UserID  string
	Action  Action
	// RawAction preserves the original wire string so unknown actions
	// can be logged verbatim.
	RawAction string
}

// Event is the ledger's view of an event: identity plus the shared
// registered-participant counter. Events are created and destroyed by
// event management elsewhere; this service only reads and adjusts the
// counter under a row lock.
type Event struct {
	ID              uuid.UUID `json:"id"`
	RegisteredCount int       `json:"registered_count"`
}

// Registration is the current state of one (event, user) pair.
// At most one row exists per pair; Action reflects the most recently
// applied command.
type Registration struct {
	EventID   uuid.UUID `json:"event_id"`
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry is one audit record, appended for every applied command
// regardless of whether it changed the current state.
type HistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	EventID    uuid.UUID `json:"event_id"`
	UserID     string    `json:"user_id"`
	Action     Action    `json:"action"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
