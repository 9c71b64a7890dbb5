// Package notify delivers task lifecycle events to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeTaskFailed    Type = "TASK_FAILED"
	TypeTaskCompleted Type = "TASK_COMPLETED"
	TypeNewTask       Type = "NEW_TASK"
)

// Event is one notification addressed to a user.
type Event struct {
	ID     uuid.UUID
	Type   Type
	UserID int64
	Data   any
	At     time.Time
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t Type, userID int64, data any) Event {
	return Event{
		ID:     uuid.New(),
		Type:   t,
		UserID: userID,
		Data:   data,
		At:     time.Now().UTC(),
	}
}

type wireEvent struct {
	ID   string    `json:"id"`
	Type Type      `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// MarshalJSON encodes the event in its wire shape. The user id is the
// routing key and is not sent.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{ID: e.ID.String(), Type: e.Type, Data: e.Data, At: e.At})
}

// TaskFailedData is the payload of TASK_FAILED.
type TaskFailedData struct {
	Task              *model.Task               `json:"task"`
	PunishmentOptions []*model.PunishmentOption `json:"punishmentOptions"`
	// Applied is the declared penalty when it was charged on failure.
	Applied *model.PunishmentOption `json:"applied,omitempty"`
}

// TaskCompletedData is the payload of TASK_COMPLETED.
type TaskCompletedData struct {
	Task    *model.Task `json:"task"`
	XPDelta int64       `json:"xpDelta"`
	Level   int         `json:"level"`
	LevelUp bool        `json:"levelUp"`
}

// Emitter accepts events for delivery. Emit must not block on slow
// receivers.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(ctx, e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(context.Context, Event) {}
