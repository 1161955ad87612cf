// Package events provides change notification for the entity stores and the
// party directory. Mutations commit an immutable Event while holding the store
// lock; a per-notifier dispatch goroutine delivers events to subscribers after
// the lock is released, preserving commit order per store.
package events

import (
	"time"
)

// Kind identifies the kind of entity an event is about.
type Kind string

const (
	// KindLocation covers Location events.
	KindLocation Kind = "location"

	// KindEvse covers EVSE events within a Location.
	KindEvse Kind = "evse"

	// KindConnector covers Connector events within an EVSE.
	KindConnector Kind = "connector"

	// KindTariff covers Tariff events.
	KindTariff Kind = "tariff"

	// KindSession covers Session events.
	KindSession Kind = "session"

	// KindToken covers Token events.
	KindToken Kind = "token"

	// KindCDR covers charge-detail-record events.
	KindCDR Kind = "cdr"

	// KindParty covers remote-party directory events.
	KindParty Kind = "party"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Action is the kind of change an event describes.
type Action string

const (
	// ActionAdded indicates the entity was created.
	ActionAdded Action = "added"

	// ActionChanged indicates the entity was replaced or patched.
	ActionChanged Action = "changed"

	// ActionRemoved indicates the entity was deleted.
	ActionRemoved Action = "removed"

	// ActionStatusChanged indicates only the entity's status value changed.
	ActionStatusChanged Action = "status_changed"
)

// String returns the string representation of the Action.
func (a Action) String() string {
	return string(a)
}

// Event is an immutable record of one committed mutation.
type Event struct {
	// ID is the unique event identifier (UUID v4).
	ID string `json:"id"`

	// Kind is the entity kind the event is about.
	Kind Kind `json:"kind"`

	// Action is the change that occurred.
	Action Action `json:"action"`

	// EntityID is the identifier of the mutated entity. For nested entities
	// this is the innermost id (EVSE UID, Connector id).
	EntityID string `json:"entityId"`

	// CountryCode and PartyID identify the owning party.
	CountryCode string `json:"countryCode,omitempty"`
	PartyID     string `json:"partyId,omitempty"`

	// OldStatus and NewStatus are set for ActionStatusChanged.
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus,omitempty"`

	// Entity is the entity value after the mutation (nil for removals).
	Entity interface{} `json:"entity,omitempty"`

	// Timestamp is when the mutation committed.
	Timestamp time.Time `json:"timestamp"`
}
