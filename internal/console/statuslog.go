package console

import "sync"

const DefaultStatusLogCapacity = 256

// StatusLog retains the most recent status reports for the console's
// status view. Oldest entries fall off once capacity is reached.
type StatusLog struct {
	mu      sync.RWMutex
	cap     int
	entries []string
}

func NewStatusLog(capacity int) *StatusLog {
	if capacity <= 0 {
		capacity = DefaultStatusLogCapacity
	}
	return &StatusLog{
		cap:     capacity,
		entries: make([]string, 0, capacity),
	}
}

func (l *StatusLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.cap {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.cap-1]
	}
	l.entries = append(l.entries, line)
}

// Recent returns a snapshot, oldest first.
func (l *StatusLog) Recent() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *StatusLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
