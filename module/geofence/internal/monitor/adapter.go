package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// Platform is the device location service. Registration is asynchronous:
// StartMonitoring reports its outcome later as a MonitoringStarted or
// MonitoringFailed event, never through a return value.
type Platform interface {
	StartMonitoring(region domain.Region)
	StopMonitoring(id string)
	MonitoredRegions() []domain.Region
	MonitoringAvailable() bool
	LocationServicesEnabled() bool
	Authorization() AuthorizationStatus
	RequestAlwaysAuthorization()
	Events() <-chan Event
}

// Handler receives every platform event, one at a time.
type Handler func(ctx context.Context, ev Event)

type Adapter struct {
	platform Platform
	logger   *zap.Logger
}

func NewAdapter(platform Platform, logger *zap.Logger) *Adapter {
	return &Adapter{platform: platform, logger: logger.Named("monitor")}
}

// StartMonitoring registers region, replacing any region with the same id.
func (a *Adapter) StartMonitoring(region domain.Region) {
	a.logger.Debug("start monitoring",
		zap.String("geofence_id", region.ID),
		zap.Float64("latitude", region.Latitude),
		zap.Float64("longitude", region.Longitude),
		zap.Float64("radius", region.Radius),
		zap.Bool("on_entry", region.NotifyOnEntry),
		zap.Bool("on_exit", region.NotifyOnExit))
	a.platform.StartMonitoring(region)
}

func (a *Adapter) StopMonitoring(id string) {
	a.logger.Debug("stop monitoring", zap.String("geofence_id", id))
	a.platform.StopMonitoring(id)
}

func (a *Adapter) ListMonitoredRegions() []domain.Region {
	return a.platform.MonitoredRegions()
}

func (a *Adapter) FindMonitoredRegion(id string) (domain.Region, bool) {
	for _, r := range a.platform.MonitoredRegions() {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Region{}, false
}

// CheckRequirements reports every condition that will keep regions from
// firing. None of them are fatal: definitions are still stored so they can
// be monitored once the user fixes the device settings.
func (a *Adapter) CheckRequirements() []error {
	var problems []error
	if !a.platform.LocationServicesEnabled() {
		problems = append(problems, domain.ErrLocationDisabled)
	}
	if !a.platform.MonitoringAvailable() {
		problems = append(problems, domain.ErrMonitoringUnavailable)
	}
	if auth := a.platform.Authorization(); auth != AuthAlways {
		problems = append(problems, fmt.Errorf("%w: authorization is %s, always is required", domain.ErrPermissionDenied, auth))
	}
	return problems
}

func (a *Adapter) RequestAuthorization() {
	a.platform.RequestAlwaysAuthorization()
}

// Run feeds platform events to handle until ctx is done or the platform
// closes its stream.
func (a *Adapter) Run(ctx context.Context, handle Handler) error {
	events := a.platform.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				a.logger.Info("platform event stream closed")
				return nil
			}
			handle(ctx, ev)
		}
	}
}
