package sim

import (
	"math/rand"
	"sync"

	"github.com/snehjoshi/seqrelay/internal/types"
)

// LinkStats counts what a Link did to the traffic it carried.
type LinkStats struct {
	Transmitted int `json:"transmitted"`
	Dropped     int `json:"dropped"`
	Duplicated  int `json:"duplicated"`
}

// Link is a one-way, in-memory, lossy wire. It implements session.Transport.
//
// Transmit never delivers synchronously: messages wait in a mailbox until
// Drain is called. This keeps a resend triggered while processing an inbound
// message from re-entering the peer that sent it.
type Link struct {
	dropP float64
	dupP  float64

	mu    sync.Mutex
	rng   *rand.Rand
	queue []*types.Message
	stats LinkStats
}

// NewLink returns a Link that drops each message with probability drop and
// delivers a surviving message twice with probability dup.
func NewLink(rng *rand.Rand, drop, dup float64) *Link {
	return &Link{rng: rng, dropP: drop, dupP: dup}
}

// Transmit queues a copy of msg, subject to loss and duplication.
func (l *Link) Transmit(msg *types.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Transmitted++
	if l.dropP > 0 && l.rng.Float64() < l.dropP {
		l.stats.Dropped++
		return
	}
	l.queue = append(l.queue, msg.Clone())
	if l.dupP > 0 && l.rng.Float64() < l.dupP {
		l.stats.Duplicated++
		l.queue = append(l.queue, msg.Clone())
	}
}

// Drain returns and clears the queued messages in arrival order.
func (l *Link) Drain() []*types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

// Stats returns the link counters.
func (l *Link) Stats() LinkStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
