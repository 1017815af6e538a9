package persistence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultAutosaveDelay = 3 * time.Second

// Autosaver runs save once edits have been quiet for the configured delay.
// Every Touch restarts the wait. Touches made while enabled reports false
// are ignored, which keeps unsaved workspaces from producing records.
type Autosaver struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool

	save    func(ctx context.Context) error
	enabled func() bool
	logger  *zap.Logger
}

func NewAutosaver(delay time.Duration, save func(ctx context.Context) error, enabled func() bool, logger *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Autosaver{
		delay:   delay,
		save:    save,
		enabled: enabled,
		logger:  logger,
	}
}

// Touch records a mutation and restarts the debounce timer.
func (a *Autosaver) Touch() {
	if !a.enabled() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.pending = true
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

// Pending reports whether a save is waiting on the timer.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Flush cancels the timer and saves now if anything was pending.
func (a *Autosaver) Flush(ctx context.Context) error {
	if !a.take(0) {
		return nil
	}
	return a.save(ctx)
}

// Stop cancels any pending save. Later touches are ignored.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	a.pending = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire(gen uint64) {
	if !a.take(gen) {
		return
	}
	if err := a.save(context.Background()); err != nil {
		a.logger.Warn("Autosave failed", zap.Error(err))
	}
}

// take claims the pending save. A non-zero gen must match the latest
// touch, so a timer that fired just before being reset does nothing.
func (a *Autosaver) take(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped || !a.pending || (gen != 0 && gen != a.gen) {
		return false
	}
	a.pending = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	return true
}
