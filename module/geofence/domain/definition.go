package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type TransitionMask int

const (
	NotifyOnEntry TransitionMask = 1 << iota
	NotifyOnExit
)

func (m TransitionMask) Has(bit TransitionMask) bool {
	return m&bit != 0
}

// Definition is a persisted geofence. Unknown keys of the JSON it was built
// from are kept in Extra and written back in their original order.
type Definition struct {
	ID             string
	Latitude       float64
	Longitude      float64
	Radius         float64
	TransitionMask TransitionMask
	Notification   *Notification
	Extra          Fields
}

// Notification is the local alert attached to a geofence.
type Notification struct {
	Title   string
	Text    string
	Vibrate []int
	Data    json.RawMessage
	Extra   Fields
}

const (
	keyID             = "id"
	keyLatitude       = "latitude"
	keyLongitude      = "longitude"
	keyRadius         = "radius"
	keyTransitionType = "transitionType"
	keyNotification   = "notification"

	keyTitle   = "title"
	keyText    = "text"
	keyVibrate = "vibrate"
	keyData    = "data"
)

func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id: required", ErrValidation)
	}
	if !(d.Radius > 0) || math.IsInf(d.Radius, 1) {
		return fmt.Errorf("%w: radius: must be a positive number of meters", ErrValidation)
	}
	if math.IsNaN(d.Latitude) || d.Latitude < -90 || d.Latitude > 90 {
		return fmt.Errorf("%w: latitude: must be between -90 and 90", ErrValidation)
	}
	if math.IsNaN(d.Longitude) || d.Longitude < -180 || d.Longitude > 180 {
		return fmt.Errorf("%w: longitude: must be between -180 and 180", ErrValidation)
	}
	return nil
}

// Region derives the monitored region for this definition.
func (d Definition) Region() Region {
	return Region{
		ID:            d.ID,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		Radius:        d.Radius,
		NotifyOnEntry: d.TransitionMask.Has(NotifyOnEntry),
		NotifyOnExit:  d.TransitionMask.Has(NotifyOnExit),
	}
}

// Fields flattens the definition back into an ordered JSON object.
func (d Definition) Fields() (Fields, error) {
	f := make(Fields, 0, 6+len(d.Extra))
	for _, kv := range []struct {
		key string
		val any
	}{
		{keyID, d.ID},
		{keyLatitude, d.Latitude},
		{keyLongitude, d.Longitude},
		{keyRadius, d.Radius},
		{keyTransitionType, int(d.TransitionMask)},
	} {
		if err := f.SetValue(kv.key, kv.val); err != nil {
			return nil, err
		}
	}
	if d.Notification != nil {
		if err := f.SetValue(keyNotification, d.Notification); err != nil {
			return nil, err
		}
	}
	for _, fd := range d.Extra {
		f.Set(fd.Key, fd.Value)
	}
	return f, nil
}

func (d Definition) MarshalJSON() ([]byte, error) {
	f, err := d.Fields()
	if err != nil {
		return nil, err
	}
	return f.MarshalJSON()
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var all Fields
	if err := all.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var out Definition
	for _, fd := range all {
		var err error
		switch fd.Key {
		case keyID:
			out.ID, err = decodeID(fd.Value)
		case keyLatitude:
			err = decodeNumber(fd.Value, &out.Latitude)
		case keyLongitude:
			err = decodeNumber(fd.Value, &out.Longitude)
		case keyRadius:
			err = decodeNumber(fd.Value, &out.Radius)
		case keyTransitionType:
			var mask int
			err = decodeNumber(fd.Value, &mask)
			out.TransitionMask = TransitionMask(mask)
		case keyNotification:
			if string(fd.Value) != "null" {
				out.Notification = &Notification{}
				err = json.Unmarshal(fd.Value, out.Notification)
			}
		default:
			out.Extra = append(out.Extra, fd)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, fd.Key, err)
		}
	}

	*d = out
	return nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	f := Fields{}
	if err := f.SetValue(keyTitle, n.Title); err != nil {
		return nil, err
	}
	if err := f.SetValue(keyText, n.Text); err != nil {
		return nil, err
	}
	if n.Vibrate != nil {
		if err := f.SetValue(keyVibrate, n.Vibrate); err != nil {
			return nil, err
		}
	}
	if len(n.Data) > 0 {
		f.Set(keyData, n.Data)
	}
	for _, fd := range n.Extra {
		f.Set(fd.Key, fd.Value)
	}
	return f.MarshalJSON()
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var all Fields
	if err := all.UnmarshalJSON(data); err != nil {
		return err
	}

	var out Notification
	for _, fd := range all {
		var err error
		switch fd.Key {
		case keyTitle:
			err = json.Unmarshal(fd.Value, &out.Title)
		case keyText:
			err = json.Unmarshal(fd.Value, &out.Text)
		case keyVibrate:
			err = json.Unmarshal(fd.Value, &out.Vibrate)
		case keyData:
			out.Data = fd.Value
		default:
			out.Extra = append(out.Extra, fd)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", fd.Key, err)
		}
	}

	*n = out
	return nil
}

// decodeID accepts string ids and, like the mobile bridge did, numeric ones
// kept as their literal text.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("must be a string or number")
	}
	return n.String(), nil
}

func decodeNumber(raw json.RawMessage, dst any) error {
	if string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
