package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

func TestBridge_WrapsPublisherErrors(t *testing.T) {
	down := errors.New("connection refused")
	transitions := &mockTransitionPublisher{
		publishTransitionFn: func(ctx context.Context, ev domain.TransitionEvent) error { return down },
	}
	alerts := &mockAlertPublisher{
		publishAlertFn: func(ctx context.Context, a domain.Alert) error { return down },
	}
	b := NewBridge(transitions, alerts, zap.NewNop())

	ev := domain.NewTransitionEvent(geofence("g1"), domain.TransitionEnter, domain.AppActive, time.Now())
	if err := b.Deliver(context.Background(), ev); !errors.Is(err, down) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if err := b.Alert(context.Background(), domain.Alert{GeofenceID: "g1", Event: ev}); !errors.Is(err, down) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if len(transitions.Calls()) != 1 || len(alerts.Calls()) != 1 {
		t.Fatal("expected one call on each publisher")
	}
}
