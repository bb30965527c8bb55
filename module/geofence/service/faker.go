package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/internal/monitor"
)

const (
	DefaultFakerInterval = 3 * time.Second
	defaultFakerOdds     = 4
)

// Faker periodically injects enter callbacks for watched geofences so the
// delivery path can be exercised without moving a device. On every tick it
// fires with a 1 in Odds chance.
type Faker struct {
	manager  *Manager
	interval time.Duration
	odds     int
	logger   *zap.Logger

	mu     sync.Mutex
	rnd    *rand.Rand
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFaker(manager *Manager, interval time.Duration, logger *zap.Logger) *Faker {
	if interval <= 0 {
		interval = DefaultFakerInterval
	}
	return &Faker{
		manager:  manager,
		interval: interval,
		odds:     defaultFakerOdds,
		logger:   logger.Named("faker"),
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Start launches the loop. Calling Start on a running faker does nothing.
func (f *Faker) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.loop(ctx, f.done)
}

// Stop cancels the loop and waits for it to exit.
func (f *Faker) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *Faker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Faker) tick(ctx context.Context) {
	if f.rnd.IntN(f.odds) != 0 {
		return
	}

	defs, err := f.manager.GetAll(ctx)
	if err != nil {
		f.logger.Warn("faker could not list geofences", zap.Error(err))
		return
	}
	if len(defs) == 0 {
		return
	}

	def := defs[f.rnd.IntN(len(defs))]
	region, ok := f.manager.FindMonitoredRegion(def.ID)
	if !ok {
		return
	}
	f.logger.Info("faking region entry", zap.String("geofence_id", def.ID))
	f.manager.HandleEvent(ctx, monitor.Event{Kind: monitor.Entered, Region: &region, State: monitor.StateInside})
}
