// Package simulated is an in-process stand-in for a mobile location service.
// It enforces a region capacity, reports registrations asynchronously and
// turns device fixes into enter/exit callbacks.
package simulated

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/monitor"
)

var _ monitor.Platform = (*Platform)(nil)

const (
	earthRadiusMeters = 6371000

	// DefaultCapacity matches the region limit of common mobile platforms.
	DefaultCapacity = 20
)

type Config struct {
	Capacity            int
	MonitoringAvailable bool
	LocationEnabled     bool
	Authorization       monitor.AuthorizationStatus
}

func DefaultConfig() Config {
	return Config{
		Capacity:            DefaultCapacity,
		MonitoringAvailable: true,
		LocationEnabled:     true,
		Authorization:       monitor.AuthNotDetermined,
	}
}

type Platform struct {
	mu       sync.Mutex
	cfg      Config
	auth     monitor.AuthorizationStatus
	regions  map[string]domain.Region
	states   map[string]monitor.RegionState
	location *domain.Location

	// pending is drained by Run; emitting never blocks the caller.
	pending []monitor.Event
	wake    chan struct{}
	out     chan monitor.Event
}

func New(cfg Config) *Platform {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Platform{
		cfg:     cfg,
		auth:    cfg.Authorization,
		regions: make(map[string]domain.Region),
		states:  make(map[string]monitor.RegionState),
		wake:    make(chan struct{}, 1),
		out:     make(chan monitor.Event),
	}
}

func (p *Platform) Events() <-chan monitor.Event {
	return p.out
}

// Run delivers queued events in order until ctx is done.
func (p *Platform) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
		}

		p.mu.Lock()
		batch := p.pending
		p.pending = nil
		p.mu.Unlock()

		for _, ev := range batch {
			select {
			case p.out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// emit must be called with p.mu held.
func (p *Platform) emit(ev monitor.Event) {
	p.pending = append(p.pending, ev)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Platform) StartMonitoring(region domain.Region) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := region
	switch {
	case !p.cfg.MonitoringAvailable:
		p.emit(monitor.Event{Kind: monitor.MonitoringFailed, Region: &r, Err: domain.ErrMonitoringUnavailable})
		return
	case p.auth == monitor.AuthDenied:
		p.emit(monitor.Event{Kind: monitor.MonitoringFailed, Region: &r, Err: domain.ErrPermissionDenied})
		return
	}

	if _, exists := p.regions[region.ID]; !exists && len(p.regions) >= p.cfg.Capacity {
		p.emit(monitor.Event{
			Kind:   monitor.MonitoringFailed,
			Region: &r,
			Err:    fmt.Errorf("%w: capacity of %d regions reached", domain.ErrRegistrationFailed, p.cfg.Capacity),
		})
		return
	}

	p.regions[region.ID] = region
	delete(p.states, region.ID)
	p.emit(monitor.Event{Kind: monitor.MonitoringStarted, Region: &r})

	if p.location != nil {
		p.determine(region, *p.location)
	}
}

func (p *Platform) StopMonitoring(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.regions, id)
	delete(p.states, id)
}

func (p *Platform) MonitoredRegions() []domain.Region {
	p.mu.Lock()
	defer p.mu.Unlock()

	regions := make([]domain.Region, 0, len(p.regions))
	for _, r := range p.regions {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	return regions
}

func (p *Platform) MonitoringAvailable() bool {
	return p.cfg.MonitoringAvailable
}

func (p *Platform) LocationServicesEnabled() bool {
	return p.cfg.LocationEnabled
}

func (p *Platform) Authorization() monitor.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

// RequestAlwaysAuthorization simulates the user accepting the prompt the
// first time it is shown. A recorded answer is never changed.
func (p *Platform) RequestAlwaysAuthorization() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.auth != monitor.AuthNotDetermined {
		return
	}
	p.auth = monitor.AuthAlways
	p.emit(monitor.Event{Kind: monitor.AuthorizationChanged, Authorization: p.auth})
}

func (p *Platform) SetAuthorization(status monitor.AuthorizationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.auth == status {
		return
	}
	p.auth = status
	p.emit(monitor.Event{Kind: monitor.AuthorizationChanged, Authorization: status})
}

// Evict drops a region the way the OS does under memory or accuracy
// pressure, reporting it as a monitoring failure.
func (p *Platform) Evict(id string, reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.regions[id]
	if !ok {
		return
	}
	delete(p.regions, id)
	delete(p.states, id)
	p.emit(monitor.Event{Kind: monitor.MonitoringFailed, Region: &r, Err: reason})
}

// UpdateLocation processes a device fix. The first fix for a region only
// determines its state; later fixes raise Entered/Exited on a change.
func (p *Platform) UpdateLocation(loc domain.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cfg.LocationEnabled {
		return
	}

	l := loc
	p.location = &l
	p.emit(monitor.Event{Kind: monitor.LocationUpdated, Location: &l})

	ids := make([]string, 0, len(p.regions))
	for id := range p.regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		region := p.regions[id]
		prev, known := p.states[id]
		if !known || prev == monitor.StateUnknown {
			p.determine(region, loc)
			continue
		}

		next := stateFor(region, loc)
		if next == prev {
			continue
		}
		p.states[id] = next

		r := region
		switch {
		case next == monitor.StateInside && region.NotifyOnEntry:
			p.emit(monitor.Event{Kind: monitor.Entered, Region: &r, State: next})
		case next == monitor.StateOutside && region.NotifyOnExit:
			p.emit(monitor.Event{Kind: monitor.Exited, Region: &r, State: next})
		}
	}
}

// determine must be called with p.mu held.
func (p *Platform) determine(region domain.Region, loc domain.Location) {
	state := stateFor(region, loc)
	p.states[region.ID] = state
	r := region
	p.emit(monitor.Event{Kind: monitor.StateDetermined, Region: &r, State: state})
}

func stateFor(region domain.Region, loc domain.Location) monitor.RegionState {
	if haversine(loc.Lat, loc.Lon, region.Latitude, region.Longitude) <= region.Radius {
		return monitor.StateInside
	}
	return monitor.StateOutside
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
