// Package eventlog records notable conditions that operators may want to
// inspect after the fact, such as a peer asking for a message that is no
// longer in the sent log.
//
// The reliable-delivery code only depends on the Log interface. Memory keeps
// the most recent events in process; Journal persists them to a bbolt file.
// Multi fans a single Add out to several sinks.
package eventlog

import (
	"time"

	"github.com/snehjoshi/seqrelay/internal/node"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// Kind names the condition an Event reports.
type Kind string

const (
	// KindMessageNotInLog is recorded when a gap-recovery request names a
	// message that was never logged or has been evicted.
	KindMessageNotInLog Kind = "requested_message_not_in_log"
	// KindKeyConflict is recorded when a strict message log rejects an
	// outbound message whose key is already bound to a different payload.
	KindKeyConflict Kind = "sent_key_conflict"
)

// Event is one recorded condition.
type Event struct {
	ID     string       `json:"id"` // ULID, sortable by creation time
	Kind   Kind         `json:"kind"`
	At     time.Time    `json:"at"`
	Peer   types.PeerID `json:"peer"`
	MsgID  uint64       `json:"msg_id"`
	Detail string       `json:"detail,omitempty"`
}

// New returns an Event with a fresh id.
func New(kind Kind, peer types.PeerID, msgID uint64, detail string, at time.Time) Event {
	return Event{
		ID:     node.MustNewID(),
		Kind:   kind,
		At:     at,
		Peer:   peer,
		MsgID:  msgID,
		Detail: detail,
	}
}

// Log is a sink for events. Add must not block the caller for long and must
// be safe for concurrent use.
type Log interface {
	Add(Event)
}

// Discard drops every event.
var Discard Log = discard{}

type discard struct{}

func (discard) Add(Event) {}

// Multi returns a Log that adds every event to each of logs in order.
// Nil entries are skipped.
func Multi(logs ...Log) Log {
	out := make(multi, 0, len(logs))
	for _, l := range logs {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type multi []Log

func (m multi) Add(e Event) {
	for _, l := range m {
		l.Add(e)
	}
}
