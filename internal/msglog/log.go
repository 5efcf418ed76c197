// Package msglog keeps a bounded record of recently sent and received
// messages for one peer session.
//
// By default only reliable messages are logged in either direction. The
// gap-recovery handler can only resend what is in the sent index, so switching
// the send filter away from reliable messages silently disables
// retransmission.
//
// Layout:
//   - received: FIFO of accepted inbound messages (capacity ReceivedLimit)
//   - sent:     FIFO of accepted outbound messages (capacity SentLimit)
//   - sentMap:  LRU index Key → message (capacity SentMapLimit)
//
// The two FIFOs and the index evict independently. A message always enters
// sent and sentMap together, but the index may later drop it on its own.
//
// All methods are safe for concurrent use and are serialised by a single
// mutex per Log.
package msglog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/snehjoshi/seqrelay/internal/ring"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// ErrKeyConflict is returned by AddSent under DuplicateStrict when a message
// reuses the key of a logged message but carries a different payload.
var ErrKeyConflict = errors.New("msglog: key already logged with a different payload")

// DuplicatePolicy controls what AddSent does with a key that is already in
// the sent index.
type DuplicatePolicy string

const (
	// DuplicateKeepFirst keeps the first-seen message and skips the new one.
	DuplicateKeepFirst DuplicatePolicy = "keep_first"
	// DuplicateStrict keeps the first-seen message and reports ErrKeyConflict
	// if the new one carries a different payload.
	DuplicateStrict DuplicatePolicy = "strict"
)

// Config holds the limits and policies of a Log.
type Config struct {
	ReceivedLimit int
	SentLimit     int
	SentMapLimit  int

	// Nil filters default to AcceptReliable.
	ReceiveFilter Filter
	SendFilter    Filter

	// IDs selects the effective-id rule applied to the receiver id when a
	// sent message is keyed. Nil means global numbering.
	IDs IDPolicy

	// Duplicates defaults to DuplicateKeepFirst.
	Duplicates DuplicatePolicy
}

// DefaultConfig returns a Config with production-safe defaults.
func DefaultConfig() Config {
	return Config{
		ReceivedLimit: 1_000,
		SentLimit:     1_000,
		SentMapLimit:  1_000,
		ReceiveFilter: AcceptReliable,
		SendFilter:    AcceptReliable,
		Duplicates:    DuplicateKeepFirst,
	}
}

// Stats is a point-in-time view of a Log's occupancy.
type Stats struct {
	Received      int `json:"received"`
	Sent          int `json:"sent"`
	Indexed       int `json:"indexed"`
	ReceivedLimit int `json:"received_limit"`
	SentLimit     int `json:"sent_limit"`
	SentMapLimit  int `json:"sent_map_limit"`
}

// Log is the bounded dual message log of one session.
type Log struct {
	cfg Config

	mu       sync.Mutex
	received *ring.Buffer[*types.Message]
	sent     *ring.Buffer[*types.Message]
	sentMap  *simplelru.LRU[Key, *types.Message]
}

// New creates a Log. All three limits must be positive.
func New(cfg Config) (*Log, error) {
	if cfg.ReceivedLimit < 1 || cfg.SentLimit < 1 || cfg.SentMapLimit < 1 {
		return nil, fmt.Errorf("msglog: limits must be positive (received=%d sent=%d sent_map=%d)",
			cfg.ReceivedLimit, cfg.SentLimit, cfg.SentMapLimit)
	}
	if cfg.ReceiveFilter == nil {
		cfg.ReceiveFilter = AcceptReliable
	}
	if cfg.SendFilter == nil {
		cfg.SendFilter = AcceptReliable
	}
	switch cfg.Duplicates {
	case "":
		cfg.Duplicates = DuplicateKeepFirst
	case DuplicateKeepFirst, DuplicateStrict:
	default:
		return nil, fmt.Errorf("msglog: unknown duplicate policy %q", cfg.Duplicates)
	}

	sentMap, err := simplelru.NewLRU[Key, *types.Message](cfg.SentMapLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("msglog: sent index: %w", err)
	}

	return &Log{
		cfg:      cfg,
		received: ring.New[*types.Message](cfg.ReceivedLimit),
		sent:     ring.New[*types.Message](cfg.SentLimit),
		sentMap:  sentMap,
	}, nil
}

// KeyOf returns the key under which msg is stored in the sent index.
func (l *Log) KeyOf(msg *types.Message) Key {
	return NewKey(msg.Mode, EffectiveID(l.cfg.IDs, msg.ReceiverID), msg.MsgID)
}

// AddReceived records an inbound message if the receive filter accepts it.
func (l *Log) AddReceived(msg *types.Message) {
	if msg == nil || !l.cfg.ReceiveFilter(msg) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received.Push(msg)
}

// AddSent records an outbound message if the send filter accepts it.
//
// A message whose key is already indexed is skipped; this is what keeps
// retransmitted copies from being logged twice. Under DuplicateStrict a skipped
// message with a different payload yields ErrKeyConflict.
func (l *Log) AddSent(msg *types.Message) error {
	if msg == nil || !l.cfg.SendFilter(msg) {
		return nil
	}
	key := l.KeyOf(msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.sentMap.Peek(key); ok {
		if l.cfg.Duplicates == DuplicateStrict && !existing.SamePayload(msg) {
			return fmt.Errorf("%w: %s", ErrKeyConflict, key)
		}
		slog.Debug("message already in sent log, skipping", "key", key.String())
		return nil
	}

	l.sent.Push(msg)
	l.sentMap.Add(key, msg)
	return nil
}

// GetSent looks up a sent message by key. A hit refreshes the key's recency
// in the index but leaves the sent FIFO untouched.
func (l *Log) GetSent(key Key) (*types.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sentMap.Get(key)
}

// Received returns the logged inbound messages, oldest first.
func (l *Log) Received() []*types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.received.Snapshot()
}

// Sent returns the logged outbound messages, oldest first.
func (l *Log) Sent() []*types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent.Snapshot()
}

// Stats returns the current sizes and limits.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Received:      l.received.Len(),
		Sent:          l.sent.Len(),
		Indexed:       l.sentMap.Len(),
		ReceivedLimit: l.cfg.ReceivedLimit,
		SentLimit:     l.cfg.SentLimit,
		SentMapLimit:  l.cfg.SentMapLimit,
	}
}
