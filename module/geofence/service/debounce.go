package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// debouncer keeps one single-token limiter per geofence id. A transition is
// allowed when a full interval has passed since the last allowed one, or
// since started when none has been allowed yet. Refusals leave the limiter
// untouched.
type debouncer struct {
	interval time.Duration
	started  time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newDebouncer(interval time.Duration, started time.Time) *debouncer {
	return &debouncer{
		interval: interval,
		started:  started,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *debouncer) allow(id string, now time.Time) bool {
	if d.interval <= 0 {
		return true
	}

	d.mu.Lock()
	lim, ok := d.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rate.Every(d.interval), 1)
		// the token is spent at start-up, so callbacks replayed right after
		// a restart are held back for one interval
		lim.AllowN(d.started, 1)
		d.limiters[id] = lim
	}
	d.mu.Unlock()

	return lim.AllowN(now, 1)
}

// forget drops the limiter for id once its window has closed. An open
// window survives so a remove and re-add cannot skip it.
func (d *debouncer) forget(id string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lim, ok := d.limiters[id]; ok && lim.TokensAt(now) >= 1 {
		delete(d.limiters, id)
	}
}

// prune drops every limiter whose window has closed.
func (d *debouncer) prune(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, lim := range d.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(d.limiters, id)
		}
	}
}
