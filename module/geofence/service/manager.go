package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/monitor"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database"
)

const (
	DefaultDebounceInterval = 10 * time.Second
	DefaultDeliveryTimeout  = 5 * time.Second
)

// RegionMonitor is the part of monitor.Adapter the manager drives.
type RegionMonitor interface {
	StartMonitoring(region domain.Region)
	StopMonitoring(id string)
	ListMonitoredRegions() []domain.Region
	FindMonitoredRegion(id string) (domain.Region, bool)
	CheckRequirements() []error
	RequestAuthorization()
}

var _ RegionMonitor = (*monitor.Adapter)(nil)

type Option func(*Manager)

// WithDebounceInterval sets the minimum time between delivered transitions
// for one geofence. Zero disables debouncing.
func WithDebounceInterval(d time.Duration) Option {
	return func(m *Manager) { m.debounceInterval = d }
}

// WithDeliveryTimeout bounds each publish made for a transition. The id's
// lock is held while publishing.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(m *Manager) { m.deliveryTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// Manager keeps the definition store and the monitored regions in step and
// turns platform callbacks into debounced transition events. Operations on
// one geofence id are serialized; different ids proceed in parallel.
type Manager struct {
	store    database.NotificationStore
	monitor  RegionMonitor
	bridge   *Bridge
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time
	debounce *debouncer
	locks    stripedMutex
	appState atomic.Int32

	debounceInterval time.Duration
	deliveryTimeout  time.Duration
}

func NewManager(store database.NotificationStore, mon RegionMonitor, bridge *Bridge, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		monitor: mon,
		bridge:  bridge,
		logger:  logger.Named("manager"),
		now:     time.Now,

		debounceInterval: DefaultDebounceInterval,
		deliveryTimeout:  DefaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.debounce = newDebouncer(m.debounceInterval, m.now())
	if m.metrics == nil {
		m.metrics = NewMetrics()
	}
	m.appState.Store(int32(domain.AppActive))
	return m
}

func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

func (m *Manager) SetAppState(state domain.AppState) {
	prev := domain.AppState(m.appState.Swap(int32(state)))
	if prev != state {
		m.logger.Info("app state changed", zap.Stringer("from", prev), zap.Stringer("to", state))
	}
}

func (m *Manager) AppState() domain.AppState {
	return domain.AppState(m.appState.Load())
}

// Initialize asks the platform for background location access and returns
// whatever still keeps regions from firing.
func (m *Manager) Initialize() []error {
	m.monitor.RequestAuthorization()
	problems := m.monitor.CheckRequirements()
	for _, p := range problems {
		m.logger.Warn("geofencing requirement not met", zap.Error(p))
	}
	return problems
}

// AddOrUpdate persists def and (re)starts monitoring its region. The stored
// definition is kept even when the platform later rejects the region.
func (m *Manager) AddOrUpdate(ctx context.Context, def domain.Definition) (err error) {
	defer func() { m.metrics.observe("add_or_update", err) }()

	if err := def.Validate(); err != nil {
		return err
	}
	for _, p := range m.monitor.CheckRequirements() {
		m.logger.Warn("geofence stored but may not fire", zap.String("geofence_id", def.ID), zap.Error(p))
	}

	unlock := m.locks.lock(def.ID)
	defer unlock()

	if err := m.store.Upsert(ctx, def); err != nil {
		return fmt.Errorf("add geofence %s: %w", def.ID, err)
	}
	m.monitor.StartMonitoring(def.Region())
	return nil
}

// Remove deletes id from the store and stops its region. Unknown ids are a
// no-op.
func (m *Manager) Remove(ctx context.Context, id string) (err error) {
	defer func() { m.metrics.observe("remove", err) }()

	unlock := m.locks.lock(id)
	defer unlock()

	if err := m.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove geofence %s: %w", id, err)
	}
	if _, ok := m.monitor.FindMonitoredRegion(id); ok {
		m.monitor.StopMonitoring(id)
	}
	m.debounce.forget(id, m.now())
	return nil
}

// Clear empties the store and stops every region the platform reports,
// including ones the store never knew about.
func (m *Manager) Clear(ctx context.Context) (err error) {
	defer func() { m.metrics.observe("clear", err) }()

	unlock := m.locks.lockAll()
	defer unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear geofences: %w", err)
	}
	for _, r := range m.monitor.ListMonitoredRegions() {
		m.monitor.StopMonitoring(r.ID)
	}
	m.debounce.prune(m.now())
	return nil
}

// GetAll returns the stored definitions, not the live regions.
func (m *Manager) GetAll(ctx context.Context) ([]domain.Definition, error) {
	defs, err := m.store.GetAll(ctx)
	m.metrics.observe("get_all", err)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	return defs, nil
}

// FindMonitoredRegion reports the live region for id, if the platform has
// one.
func (m *Manager) FindMonitoredRegion(id string) (domain.Region, bool) {
	return m.monitor.FindMonitoredRegion(id)
}

// HandleEvent is the single entry point for platform callbacks.
func (m *Manager) HandleEvent(ctx context.Context, ev monitor.Event) {
	switch ev.Kind {
	case monitor.Entered:
		m.handleTransition(ctx, ev.RegionID(), domain.TransitionEnter)
	case monitor.Exited:
		m.handleTransition(ctx, ev.RegionID(), domain.TransitionExit)
	case monitor.MonitoringStarted:
		m.logger.Debug("monitoring started", zap.String("geofence_id", ev.RegionID()))
	case monitor.MonitoringFailed:
		m.metrics.RegistrationFailures.Inc()
		m.logger.Warn("monitoring failed, re-add the geofence to retry",
			zap.String("geofence_id", ev.RegionID()), zap.Error(ev.Err))
	case monitor.AuthorizationChanged:
		m.logger.Info("location authorization changed", zap.Stringer("status", ev.Authorization))
	case monitor.StateDetermined:
		m.logger.Debug("region state determined",
			zap.String("geofence_id", ev.RegionID()), zap.Stringer("state", ev.State))
	case monitor.LocationUpdated:
		if ev.Location != nil {
			m.logger.Debug("location updated",
				zap.Float64("latitude", ev.Location.Lat), zap.Float64("longitude", ev.Location.Lon))
		}
	default:
		m.logger.Debug("ignoring platform event", zap.Stringer("kind", ev.Kind))
	}
}

func (m *Manager) handleTransition(ctx context.Context, id string, kind domain.TransitionKind) {
	unlock := m.locks.lock(id)
	defer unlock()

	m.metrics.TransitionsReceived.WithLabelValues(kind.String()).Inc()
	log := m.logger.With(zap.String("geofence_id", id), zap.Stringer("kind", kind))

	def, err := m.store.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// removed after the platform queued the callback
		m.metrics.TransitionsDropped.WithLabelValues(dropUnknown).Inc()
		log.Debug("transition for unknown geofence dropped")
		return
	}
	if err != nil {
		m.metrics.TransitionsDropped.WithLabelValues(dropStorage).Inc()
		log.Error("transition lookup failed", zap.Error(err))
		return
	}

	state := m.AppState()
	now := m.now()
	ev := domain.NewTransitionEvent(def, kind, state, now)
	alert, hasAlert := domain.NewAlert(ev)

	if !state.Foreground() && !hasAlert {
		m.metrics.TransitionsDropped.WithLabelValues(dropNoAlert).Inc()
		log.Debug("background transition without notification dropped")
		return
	}
	if !m.debounce.allow(id, now) {
		m.metrics.TransitionsDropped.WithLabelValues(dropDebounced).Inc()
		log.Debug("transition debounced")
		return
	}
	m.metrics.TransitionsDelivered.WithLabelValues(kind.String()).Inc()

	if m.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.deliveryTimeout)
		defer cancel()
	}

	if state.Foreground() {
		if err := m.bridge.Deliver(ctx, ev); err != nil {
			m.metrics.DeliveryFailures.Inc()
			log.Error("transition delivery failed", zap.Error(err))
		}
	}
	if hasAlert {
		if err := m.bridge.Alert(ctx, alert); err != nil {
			m.metrics.DeliveryFailures.Inc()
			log.Error("alert failed", zap.Error(err))
			return
		}
		m.metrics.AlertsRaised.Inc()
	}
}
