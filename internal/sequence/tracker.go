package sequence

import (
	"sync"

	"github.com/snehjoshi/seqrelay/internal/types"
)

type stream struct {
	seen    map[uint64]struct{}
	highest uint64 // highest id seen or expected
}

// Tracker records the ids received from each sender. Ids start at 1.
// Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	streams map[types.PeerID]*stream
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{streams: make(map[types.PeerID]*stream)}
}

func (t *Tracker) stream(sender types.PeerID) *stream {
	s, ok := t.streams[sender]
	if !ok {
		s = &stream{seen: make(map[uint64]struct{})}
		t.streams[sender] = s
	}
	return s
}

// Observe records id from sender and reports whether it was already seen.
// Id 0 is ignored and reported as a duplicate.
func (t *Tracker) Observe(sender types.PeerID, id uint64) (dup bool) {
	if id == 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stream(sender)
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	if id > s.highest {
		s.highest = id
	}
	return false
}

// Expect tells the tracker that sender has sent ids up to upTo, so trailing
// losses show up in Missing even before a later id arrives.
func (t *Tracker) Expect(sender types.PeerID, upTo uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stream(sender)
	if upTo > s.highest {
		s.highest = upTo
	}
}

// Missing returns the ids in [1, highest] not yet received from sender, in
// ascending order.
func (t *Tracker) Missing(sender types.PeerID) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streams[sender]
	if !ok {
		return nil
	}
	var out []uint64
	for id := uint64(1); id <= s.highest; id++ {
		if _, ok := s.seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Delivered returns how many distinct ids arrived from sender.
func (t *Tracker) Delivered(sender types.PeerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.streams[sender]; ok {
		return len(s.seen)
	}
	return 0
}
