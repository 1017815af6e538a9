package persistence

import (
	"sync"
	"time"
)

type SaveState int

const (
	StateSaved SaveState = iota
	StateUnsaved
	StateSaving
)

func (s SaveState) String() string {
	switch s {
	case StateSaved:
		return "saved"
	case StateUnsaved:
		return "unsaved"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Status is what a save indicator shows.
type Status struct {
	State     SaveState
	LastSaved time.Time
	LastError error
}

// StatusTracker keeps the save indicator current. A failed save leaves the
// document unsaved until the next successful one.
type StatusTracker struct {
	mu     sync.Mutex
	status Status
	// edits made while a save was in flight
	dirtyWhileSaving bool
	now              func() time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now}
}

func (t *StatusTracker) MarkDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == StateSaving {
		t.dirtyWhileSaving = true
		return
	}
	t.status.State = StateUnsaved
}

func (t *StatusTracker) MarkSaving() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.State = StateSaving
	t.dirtyWhileSaving = false
}

func (t *StatusTracker) MarkSaved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{State: StateSaved, LastSaved: t.now()}
	if t.dirtyWhileSaving {
		t.status.State = StateUnsaved
	}
}

func (t *StatusTracker) MarkFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.State = StateUnsaved
	t.status.LastError = err
}

// MarkLoaded records a document freshly read from storage, last written
// at updatedAt.
func (t *StatusTracker) MarkLoaded(updatedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{State: StateSaved, LastSaved: updatedAt}
	t.dirtyWhileSaving = false
}

func (t *StatusTracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
