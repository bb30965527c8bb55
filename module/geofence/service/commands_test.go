package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

func newCommands(t *testing.T) (*Commands, *harness) {
	t.Helper()
	h := newHarness(t)
	w := NewWorker()
	t.Cleanup(w.Stop)
	return NewCommands(h.manager, w, zap.NewNop()), h
}

func wait[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestCommands_AddOrUpdateAndGetWatched(t *testing.T) {
	c, _ := newCommands(t)

	if _, err := wait(t, c.AddOrUpdate([]domain.Definition{geofence("b"), geofence("a")})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	watched, err := wait(t, c.GetWatched())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(watched) != 2 || watched[0].ID != "a" || watched[1].ID != "b" {
		t.Fatalf("unexpected watched list %+v", watched)
	}
}

func TestCommands_AddOrUpdateRejectsWholeBatch(t *testing.T) {
	c, h := newCommands(t)
	bad := geofence("bad")
	bad.Radius = -5

	_, err := wait(t, c.AddOrUpdate([]domain.Definition{geofence("ok"), bad}))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(h.store.defs) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(h.store.defs))
	}
}

func TestCommands_RemoveAndRemoveAll(t *testing.T) {
	c, h := newCommands(t)

	if _, err := wait(t, c.AddOrUpdate([]domain.Definition{geofence("a"), geofence("b"), geofence("c")})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := wait(t, c.Remove([]string{"a", "missing"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	watched, err := wait(t, c.GetWatched())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(watched) != 2 {
		t.Fatalf("expected 2 watched, got %d", len(watched))
	}

	if _, err := wait(t, c.RemoveAll()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regions := h.monitor.ListMonitoredRegions(); len(regions) != 0 {
		t.Fatalf("expected no regions, got %+v", regions)
	}
}

func TestCommands_RemoveStorageError(t *testing.T) {
	c, h := newCommands(t)
	h.store.removeFn = func(ctx context.Context, id string) error { return domain.ErrStorage }

	if _, err := wait(t, c.Remove([]string{"a"})); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestCommands_Initialize(t *testing.T) {
	c, h := newCommands(t)
	h.monitor.requirements = []error{domain.ErrLocationDisabled}

	problems, err := wait(t, c.Initialize())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(problems) != 1 || !errors.Is(problems[0], domain.ErrLocationDisabled) {
		t.Fatalf("unexpected problems %v", problems)
	}
	if h.monitor.authRequests != 1 {
		t.Errorf("expected 1 authorization request, got %d", h.monitor.authRequests)
	}
}

func TestCommands_PingAndDeviceReady(t *testing.T) {
	c, _ := newCommands(t)

	if _, err := wait(t, c.Ping()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := wait(t, c.DeviceReady()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommands_SetAppState(t *testing.T) {
	c, h := newCommands(t)

	c.SetAppState(domain.AppBackground)
	if h.manager.AppState() != domain.AppBackground {
		t.Fatalf("expected background, got %v", h.manager.AppState())
	}
}
