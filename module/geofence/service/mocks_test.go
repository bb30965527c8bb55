package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockStore struct {
	mu   sync.Mutex
	defs map[string]domain.Definition

	upsertFn   func(ctx context.Context, def domain.Definition) error
	removeFn   func(ctx context.Context, id string) error
	clearFn    func(ctx context.Context) error
	findByIDFn func(ctx context.Context, id string) (domain.Definition, error)
	getAllFn   func(ctx context.Context) ([]domain.Definition, error)
}

func newMockStore() *mockStore {
	return &mockStore{defs: make(map[string]domain.Definition)}
}

func (m *mockStore) Upsert(ctx context.Context, def domain.Definition) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, def); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.ID] = def
	return nil
}

func (m *mockStore) Remove(ctx context.Context, id string) error {
	if m.removeFn != nil {
		if err := m.removeFn(ctx, id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	return nil
}

func (m *mockStore) Clear(ctx context.Context) error {
	if m.clearFn != nil {
		if err := m.clearFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs = make(map[string]domain.Definition)
	return nil
}

func (m *mockStore) FindByID(ctx context.Context, id string) (domain.Definition, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok {
		return domain.Definition{}, domain.ErrNotFound
	}
	return def, nil
}

func (m *mockStore) GetAll(ctx context.Context) ([]domain.Definition, error) {
	if m.getAllFn != nil {
		return m.getAllFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	defs := make([]domain.Definition, 0, len(m.defs))
	for _, d := range m.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

type mockMonitor struct {
	mu           sync.Mutex
	regions      map[string]domain.Region
	started      []domain.Region
	stopped      []string
	requirements []error
	authRequests int
}

func newMockMonitor() *mockMonitor {
	return &mockMonitor{regions: make(map[string]domain.Region)}
}

func (m *mockMonitor) StartMonitoring(region domain.Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, region)
	m.regions[region.ID] = region
}

func (m *mockMonitor) StopMonitoring(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, id)
	delete(m.regions, id)
}

func (m *mockMonitor) ListMonitoredRegions() []domain.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	regions := make([]domain.Region, 0, len(m.regions))
	for _, r := range m.regions {
		regions = append(regions, r)
	}
	return regions
}

func (m *mockMonitor) FindMonitoredRegion(id string) (domain.Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	return r, ok
}

func (m *mockMonitor) CheckRequirements() []error {
	return m.requirements
}

func (m *mockMonitor) RequestAuthorization() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authRequests++
}

type mockTransitionPublisher struct {
	mu                  sync.Mutex
	publishTransitionFn func(ctx context.Context, ev domain.TransitionEvent) error
	calls               []domain.TransitionEvent
	notify              chan domain.TransitionEvent
}

func (m *mockTransitionPublisher) PublishTransition(ctx context.Context, ev domain.TransitionEvent) error {
	m.mu.Lock()
	m.calls = append(m.calls, ev)
	m.mu.Unlock()
	if m.notify != nil {
		select {
		case m.notify <- ev:
		default:
		}
	}
	if m.publishTransitionFn != nil {
		return m.publishTransitionFn(ctx, ev)
	}
	return nil
}

func (m *mockTransitionPublisher) Calls() []domain.TransitionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TransitionEvent(nil), m.calls...)
}

type mockAlertPublisher struct {
	mu             sync.Mutex
	publishAlertFn func(ctx context.Context, alert domain.Alert) error
	calls          []domain.Alert
}

func (m *mockAlertPublisher) PublishAlert(ctx context.Context, alert domain.Alert) error {
	m.mu.Lock()
	m.calls = append(m.calls, alert)
	m.mu.Unlock()
	if m.publishAlertFn != nil {
		return m.publishAlertFn(ctx, alert)
	}
	return nil
}

func (m *mockAlertPublisher) Calls() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Alert(nil), m.calls...)
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	manager     *Manager
	store       *mockStore
	monitor     *mockMonitor
	transitions *mockTransitionPublisher
	alerts      *mockAlertPublisher
	clock       *fakeClock
}

// newHarness returns a manager whose clock has moved well past the
// start-up debounce window.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := newStartupHarness(t, opts...)
	h.clock.Advance(time.Minute)
	return h
}

// newStartupHarness returns a manager whose clock still reads its
// construction time.
func newStartupHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:       newMockStore(),
		monitor:     newMockMonitor(),
		transitions: &mockTransitionPublisher{},
		alerts:      &mockAlertPublisher{},
		clock:       &fakeClock{now: time.Unix(1715003456, 0)},
	}
	logger := zap.NewNop()
	bridge := NewBridge(h.transitions, h.alerts, logger)
	opts = append([]Option{WithClock(h.clock.Now), WithDebounceInterval(10 * time.Second)}, opts...)
	h.manager = NewManager(h.store, h.monitor, bridge, logger, opts...)
	return h
}

func geofence(id string) domain.Definition {
	return domain.Definition{
		ID:             id,
		Latitude:       52.0,
		Longitude:      21.0,
		Radius:         100,
		TransitionMask: domain.NotifyOnEntry | domain.NotifyOnExit,
	}
}
