package graph

// MaxActivityEntries bounds the activity feed.
const MaxActivityEntries = 50

// ActivityFeed keeps the most recent human-readable events, newest first.
// It is not safe for concurrent use on its own; Store guards it.
type ActivityFeed struct {
	entries []string
}

func (f *ActivityFeed) Add(entry string) {
	f.entries = append([]string{entry}, f.entries...)
	if len(f.entries) > MaxActivityEntries {
		f.entries = f.entries[:MaxActivityEntries]
	}
}

func (f *ActivityFeed) Entries() []string {
	out := make([]string, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *ActivityFeed) Len() int { return len(f.entries) }

func (f *ActivityFeed) Reset() { f.entries = nil }
