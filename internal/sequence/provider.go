// Package sequence assigns outbound sequence ids and tracks inbound ones.
//
// Provider decides the numbering scheme. Under global numbering every peer
// sees the same id for a given message, so the message log keys sent
// messages with the global key id. Under per-peer numbering each receiver
// has its own counter and the log keys by receiver.
//
// Tracker is the receiving side: it remembers which ids arrived from each
// sender and lists the holes that should be asked for again.
package sequence

import (
	"fmt"
	"sync"

	"github.com/snehjoshi/seqrelay/internal/types"
)

// Numbering selects how ids are assigned.
type Numbering string

const (
	Global  Numbering = "global"
	PerPeer Numbering = "per_peer"
)

// Provider hands out sequence ids. It implements msglog.IDPolicy.
// Ids start at 1; 0 is never assigned.
type Provider struct {
	numbering Numbering

	mu      sync.Mutex
	global  uint64
	perPeer map[types.PeerID]uint64
}

// NewProvider returns a Provider for numbering.
func NewProvider(numbering Numbering) (*Provider, error) {
	switch numbering {
	case Global, PerPeer:
	default:
		return nil, fmt.Errorf("sequence: unknown numbering %q", numbering)
	}
	return &Provider{numbering: numbering, perPeer: make(map[types.PeerID]uint64)}, nil
}

// Numbering returns the configured scheme.
func (p *Provider) Numbering() Numbering { return p.numbering }

// ResolveEveryClientMessage reports whether ids are assigned per receiver.
func (p *Provider) ResolveEveryClientMessage() bool { return p.numbering == PerPeer }

// Next returns the next id for a message addressed to receiver.
func (p *Provider) Next(receiver types.PeerID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.numbering == Global {
		p.global++
		return p.global
	}
	p.perPeer[receiver]++
	return p.perPeer[receiver]
}
