package publisher

import (
	"context"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// TransitionPublisher forwards accepted transitions to the host application.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, ev domain.TransitionEvent) error
}

// AlertPublisher raises a local, user-visible alert.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert domain.Alert) error
}
