package monitor

import (
	"fmt"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// EventKind enumerates every callback the location service can raise.
type EventKind int

const (
	Entered EventKind = iota + 1
	Exited
	MonitoringStarted
	MonitoringFailed
	AuthorizationChanged
	LocationUpdated
	StateDetermined
)

func (k EventKind) String() string {
	switch k {
	case Entered:
		return "entered"
	case Exited:
		return "exited"
	case MonitoringStarted:
		return "monitoring_started"
	case MonitoringFailed:
		return "monitoring_failed"
	case AuthorizationChanged:
		return "authorization_changed"
	case LocationUpdated:
		return "location_updated"
	case StateDetermined:
		return "state_determined"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

type AuthorizationStatus int

const (
	AuthNotDetermined AuthorizationStatus = iota
	AuthDenied
	AuthWhenInUse
	AuthAlways
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthNotDetermined:
		return "not_determined"
	case AuthDenied:
		return "denied"
	case AuthWhenInUse:
		return "when_in_use"
	case AuthAlways:
		return "always"
	default:
		return fmt.Sprintf("AuthorizationStatus(%d)", int(s))
	}
}

type RegionState int

const (
	StateUnknown RegionState = iota
	StateInside
	StateOutside
)

func (s RegionState) String() string {
	switch s {
	case StateInside:
		return "inside"
	case StateOutside:
		return "outside"
	default:
		return "unknown"
	}
}

// Event is one callback from the location service. Region is nil for events
// not tied to a region, and may be nil for MonitoringFailed.
type Event struct {
	Kind          EventKind
	Region        *domain.Region
	Err           error
	Authorization AuthorizationStatus
	State         RegionState
	Location      *domain.Location
}

func (e Event) RegionID() string {
	if e.Region == nil {
		return ""
	}
	return e.Region.ID
}
