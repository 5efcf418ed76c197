package eventlog

import (
	"sync"

	"github.com/snehjoshi/seqrelay/internal/ring"
)

// Memory keeps the most recent events in a bounded in-process buffer.
type Memory struct {
	mu     sync.Mutex
	buf    *ring.Buffer[Event]
	counts map[Kind]uint64 // lifetime, survives eviction
}

// NewMemory returns a Memory that retains up to limit events.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 1
	}
	return &Memory{
		buf:    ring.New[Event](limit),
		counts: make(map[Kind]uint64),
	}
}

// Add implements Log.
func (m *Memory) Add(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf.Push(e)
	m.counts[e.Kind]++
}

// List returns up to limit of the newest retained events, oldest first.
// An empty kind matches every event; limit <= 0 means no limit.
func (m *Memory) List(kind Kind, limit int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0, m.buf.Len())
	m.buf.Each(func(e Event) bool {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
		return true
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Since returns the retained events whose id sorts after afterID, oldest
// first. An empty afterID returns everything retained.
func (m *Memory) Since(afterID string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	m.buf.Each(func(e Event) bool {
		if e.ID > afterID {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Count returns how many events of kind were ever added, including evicted
// ones. An empty kind counts all events.
func (m *Memory) Count(kind Kind) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind != "" {
		return m.counts[kind]
	}
	var total uint64
	for _, n := range m.counts {
		total += n
	}
	return total
}

// Len returns the number of retained events.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Len()
}
