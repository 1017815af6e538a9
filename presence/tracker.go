// Package presence tracks the live cursors of the other participants in a
// workspace. Entries live only as long as the remote transport session.
package presence

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/andrewpaige1/sysviz-api/graph"
)

// Palette is the fixed set of cursor colors. Two users may share a color.
var Palette = []string{"#1a73e8", "#e37400", "#1e8e3e", "#d93025", "#9334e6", "#0097a7"}

const fallbackColor = "#3b82f6"

type RemoteUser struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Color    string         `json:"color"`
	Position graph.Position `json:"position"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*RemoteUser
	seq   map[string]int
	next  int
	pick  func(n int) int
}

type Option func(*Tracker)

// WithPicker replaces the random palette index source.
func WithPicker(pick func(n int) int) Option {
	return func(t *Tracker) { t.pick = pick }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		users: make(map[string]*RemoteUser),
		seq:   make(map[string]int),
		pick:  rand.IntN,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Upsert records a cursor position for the session id. The color is
// chosen on first sighting and kept afterwards.
func (t *Tracker) Upsert(id, name string, pos graph.Position) RemoteUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u, ok := t.users[id]; ok {
		u.Name = name
		u.Position = pos
		return *u
	}

	u := &RemoteUser{ID: id, Name: name, Color: t.color(), Position: pos}
	t.users[id] = u
	t.seq[id] = t.next
	t.next++
	return *u
}

func (t *Tracker) color() string {
	if len(Palette) == 0 {
		return fallbackColor
	}
	return Palette[t.pick(len(Palette))]
}

// Remove drops the session and reports whether it was present.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.users[id]; !ok {
		return false
	}
	delete(t.users, id)
	delete(t.seq, id)
	return true
}

func (t *Tracker) Get(id string) (RemoteUser, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	u, ok := t.users[id]
	if !ok {
		return RemoteUser{}, false
	}
	return *u, true
}

// Users returns the active participants in first-seen order.
func (t *Tracker) Users() []RemoteUser {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RemoteUser, 0, len(t.users))
	for _, u := range t.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return t.seq[out[i].ID] < t.seq[out[j].ID]
	})
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = make(map[string]*RemoteUser)
	t.seq = make(map[string]int)
}
