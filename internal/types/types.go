// Package types contains the core domain types shared across all SeqRelay
// internal packages. It deliberately has zero imports of other SeqRelay
// packages so that the message log, the recovery handler and the transport
// glue can all import it without creating import cycles.
package types

import (
	"fmt"
	"slices"
)

// PeerID identifies a peer within a session. The value 0 doubles as the
// sentinel key id used when sequence numbers are assigned globally.
type PeerID uint32

func (id PeerID) String() string { return fmt.Sprintf("%d", uint32(id)) }

// ReliableMode is the delivery guarantee a message asks for.
type ReliableMode uint8

const (
	// Unreliable messages are fire-and-forget: never logged, never resent.
	Unreliable ReliableMode = iota
	// SequenceNumber messages are ordered, gap-tracked and retransmittable.
	SequenceNumber
	// AckMessage messages are acknowledged individually. The recovery core
	// treats this mode opaquely; it is logged but never looked up.
	AckMessage
)

// String returns a human-readable representation of the mode.
func (m ReliableMode) String() string {
	switch m {
	case Unreliable:
		return "unreliable"
	case SequenceNumber:
		return "sequence_number"
	case AckMessage:
		return "ack_message"
	default:
		return "unknown"
	}
}

// Kind tags the payload variant carried by a Message. The set is closed.
type Kind uint8

const (
	// KindData carries an application payload in Body.
	KindData Kind = iota
	// KindRequestSeqIDs asks the receiver to resend the ids in MissingIDs.
	KindRequestSeqIDs
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindRequestSeqIDs:
		return "request_seq_ids"
	default:
		return "unknown"
	}
}

// Message is the unit of transport.
//
// Design rules:
//   - MsgID is meaningful only when Mode is not Unreliable.
//   - A message handed to the message log is never mutated afterwards.
//     Retransmission works on a Clone.
//   - Exactly one of Body / MissingIDs is populated, selected by Kind.
type Message struct {
	MsgID      uint64       `json:"msg_id"`
	SenderID   PeerID       `json:"sender_id"`
	ReceiverID PeerID       `json:"receiver_id"`
	Mode       ReliableMode `json:"mode"`

	// Resend is set on copies pulled from the log for retransmission so that
	// downstream processors can tell them apart from originals.
	Resend bool `json:"resend"`

	Kind Kind `json:"kind"`

	// Body is the raw application payload of a KindData message.
	Body []byte `json:"body,omitempty"`

	// MissingIDs lists the sequence ids a KindRequestSeqIDs message asks for.
	MissingIDs []uint64 `json:"missing_ids,omitempty"`
}

// NewData returns a data message. MsgID and SenderID are stamped by the
// session when the message is published.
func NewData(to PeerID, mode ReliableMode, body []byte) *Message {
	return &Message{
		ReceiverID: to,
		Mode:       mode,
		Kind:       KindData,
		Body:       body,
	}
}

// NewRequestSeqIDs returns a request for the given missing sequence ids,
// addressed to a single receiver. The request is always Unreliable: if it is
// lost, the requester notices the persisting gap and asks again.
func NewRequestSeqIDs(to PeerID, missing []uint64) *Message {
	return &Message{
		ReceiverID: to,
		Mode:       Unreliable,
		Kind:       KindRequestSeqIDs,
		MissingIDs: slices.Clone(missing),
	}
}

// Reliable reports whether the message asks for any delivery guarantee.
func (m *Message) Reliable() bool { return m.Mode != Unreliable }

// SamePayload reports whether m and o carry the same variant and content.
func (m *Message) SamePayload(o *Message) bool {
	if m.Kind != o.Kind {
		return false
	}
	switch m.Kind {
	case KindRequestSeqIDs:
		return slices.Equal(m.MissingIDs, o.MissingIDs)
	default:
		return string(m.Body) == string(o.Body)
	}
}

// Clone returns a shallow copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

// String is used in log lines only.
func (m *Message) String() string {
	return fmt.Sprintf("%s#%d %d->%d (%s, resend=%t)",
		m.Kind, m.MsgID, m.SenderID, m.ReceiverID, m.Mode, m.Resend)
}
