// Package event defines the tagged message envelope shared by the
// broadcast hub and the client reconciler, plus the domain event
// payloads carried inside it.
package event

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// Recognized envelope types. A reconciler must ignore types it does
// not recognize.
const (
	TypeEntityUpdate        = "entity_update"
	TypeNotificationCreated = "notification_created"
	TypeNotificationUpdated = "notification_updated"
	TypeNotificationRemoved = "notification_removed"
	TypeConnectionStatus    = "connection_status"
	TypeHeartbeat           = "heartbeat"
)

// Envelope is the wire format for every streamed message.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an envelope of the given type around data, stamped now.
func New(typ string, data any) (Envelope, error) {
	env := Envelope{Type: typ, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, err
		}
		env.Data = raw
	}
	return env, nil
}

// Containment is an entity's status relative to one boundary.
type Containment string

const (
	Inside  Containment = "inside"
	Outside Containment = "outside"
)

// Transition is emitted by the tracker exactly once per observed
// containment flip.
type Transition struct {
	EntityID     string      `json:"entity_id"`
	BoundaryID   string      `json:"boundary_id"`
	BoundaryName string      `json:"boundary_name"`
	From         Containment `json:"from"`
	To           Containment `json:"to"`
	Position     orb.Point   `json:"position"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EntityDelta is a partial entity update. Nil fields leave the local
// record untouched; an unknown ID inserts a new record.
type EntityDelta struct {
	ID         string              `json:"id"`
	Name       *string             `json:"name,omitempty"`
	Health     *model.HealthStatus `json:"health,omitempty"`
	Position   *orb.Point          `json:"position,omitempty"`
	LastUpdate *time.Time          `json:"last_update,omitempty"`
	Removed    bool                `json:"removed,omitempty"`
}

// ConnectionStatus is sent to a subscriber on registration and on
// hub-side lifecycle changes.
type ConnectionStatus struct {
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}
