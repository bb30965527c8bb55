package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransitionKind int

const (
	TransitionEnter TransitionKind = 1
	TransitionExit  TransitionKind = 2
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionEnter:
		return "enter"
	case TransitionExit:
		return "exit"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// TransitionEvent is a geofence crossing accepted for delivery. It is never
// persisted.
type TransitionEvent struct {
	ID                   uuid.UUID
	GeofenceID           string
	Kind                 TransitionKind
	Timestamp            time.Time
	OpenedFromBackground bool
	Definition           Definition
}

func NewTransitionEvent(def Definition, kind TransitionKind, state AppState, now time.Time) TransitionEvent {
	return TransitionEvent{
		ID:                   uuid.New(),
		GeofenceID:           def.ID,
		Kind:                 kind,
		Timestamp:            now,
		OpenedFromBackground: !state.Foreground(),
		Definition:           def,
	}
}

// MarshalJSON renders the stored definition with transitionType replaced by
// the observed kind, which is the shape application script receives.
func (e TransitionEvent) MarshalJSON() ([]byte, error) {
	f, err := e.Definition.Fields()
	if err != nil {
		return nil, err
	}
	if err := f.SetValue(keyTransitionType, int(e.Kind)); err != nil {
		return nil, err
	}
	if err := f.SetValue("openedFromNotification", e.OpenedFromBackground); err != nil {
		return nil, err
	}
	if err := f.SetValue("timestamp", e.Timestamp.UnixMilli()); err != nil {
		return nil, err
	}
	if err := f.SetValue("eventId", e.ID.String()); err != nil {
		return nil, err
	}
	return f.MarshalJSON()
}

// EncodeTransitions wraps events in a JSON array for delayed delivery.
func EncodeTransitions(events ...TransitionEvent) ([]byte, error) {
	if events == nil {
		events = []TransitionEvent{}
	}
	body, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshal transitions: %w", err)
	}
	return body, nil
}
