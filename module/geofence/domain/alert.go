package domain

import "encoding/json"

// Alert is a user-visible local notification raised for a transition.
type Alert struct {
	GeofenceID string          `json:"geofence_id"`
	Title      string          `json:"title"`
	Text       string          `json:"text"`
	Vibrate    []int           `json:"vibrate,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Event      TransitionEvent `json:"event"`
}

// NewAlert builds the alert for an event. ok is false when the geofence has
// no notification attached.
func NewAlert(ev TransitionEvent) (Alert, bool) {
	n := ev.Definition.Notification
	if n == nil {
		return Alert{}, false
	}
	return Alert{
		GeofenceID: ev.GeofenceID,
		Title:      n.Title,
		Text:       n.Text,
		Vibrate:    n.Vibrate,
		Data:       n.Data,
		Event:      ev,
	}, true
}

// ShouldVibrate follows the platform rule: only a positive leading duration
// triggers vibration.
func (a Alert) ShouldVibrate() bool {
	return len(a.Vibrate) > 0 && a.Vibrate[0] > 0
}
