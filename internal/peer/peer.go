// Package peer manages the table of remote peers known to a session.
//
// Each peer carries its own mutable state, most notably its link-quality
// estimator. Estimators are never shared between peers, so loss reported by
// one peer never degrades another.
//
// Design rules:
//   - Peers are created explicitly via Ensure() when a connection is set up.
//     Lookups never create entries.
//   - All methods are safe for concurrent use.
package peer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/snehjoshi/seqrelay/internal/quality"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// ErrNotFound is returned when a peer that isn't registered is requested.
var ErrNotFound = errors.New("peer: not found")

// State is the mutable per-peer state shared by the processors of a session.
type State struct {
	ID       types.PeerID
	JoinedAt int64 // UTC milliseconds
	Quality  *quality.Estimator
}

// Table is the in-memory registry of peers.
type Table struct {
	qcfg quality.Config

	mu    sync.RWMutex
	peers map[types.PeerID]*State
}

// NewTable returns an empty Table whose estimators use qcfg.
func NewTable(qcfg quality.Config) *Table {
	return &Table{
		qcfg:  qcfg,
		peers: make(map[types.PeerID]*State),
	}
}

// Ensure registers id if it is not present yet and returns its state.
func (t *Table) Ensure(id types.PeerID) *State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.peers[id]; ok {
		return st
	}
	st := &State{
		ID:       id,
		JoinedAt: time.Now().UnixMilli(),
		Quality:  quality.New(t.qcfg),
	}
	t.peers[id] = st
	return st
}

// GetByID returns the state of id, or false if the peer is unknown.
func (t *Table) GetByID(id types.PeerID) (*State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.peers[id]
	return st, ok
}

// Remove drops a peer, e.g. when its connection closes.
// Returns ErrNotFound if the peer isn't registered.
func (t *Table) Remove(id types.PeerID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.peers[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(t.peers, id)
	return nil
}

// Len returns the number of registered peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// List returns all registered peers sorted by id.
func (t *Table) List() []*State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*State, 0, len(t.peers))
	for _, st := range t.peers {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
