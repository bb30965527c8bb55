package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/publisher"
)

// Bridge hands accepted transitions to the host application and raises local
// alerts. It holds no state and is safe for concurrent use.
type Bridge struct {
	transitions publisher.TransitionPublisher
	alerts      publisher.AlertPublisher
	logger      *zap.Logger
}

func NewBridge(transitions publisher.TransitionPublisher, alerts publisher.AlertPublisher, logger *zap.Logger) *Bridge {
	return &Bridge{
		transitions: transitions,
		alerts:      alerts,
		logger:      logger.Named("bridge"),
	}
}

func (b *Bridge) Deliver(ctx context.Context, ev domain.TransitionEvent) error {
	if err := b.transitions.PublishTransition(ctx, ev); err != nil {
		return fmt.Errorf("deliver transition %s for %s: %w", ev.ID, ev.GeofenceID, err)
	}
	b.logger.Debug("transition delivered",
		zap.String("geofence_id", ev.GeofenceID),
		zap.Stringer("kind", ev.Kind),
		zap.Stringer("event_id", ev.ID))
	return nil
}

func (b *Bridge) Alert(ctx context.Context, alert domain.Alert) error {
	if err := b.alerts.PublishAlert(ctx, alert); err != nil {
		return fmt.Errorf("raise alert for %s: %w", alert.GeofenceID, err)
	}
	b.logger.Debug("alert raised",
		zap.String("geofence_id", alert.GeofenceID),
		zap.String("title", alert.Title),
		zap.Bool("vibrate", alert.ShouldVibrate()))
	return nil
}
