package msglog

import (
	"fmt"

	"github.com/snehjoshi/seqrelay/internal/types"
)

// GlobalKeyID is the key id used for every peer when sequence ids are
// assigned globally, i.e. every peer observes the same id for a message.
const GlobalKeyID types.PeerID = 0

// Key identifies a sent message for dedup and retransmission lookups.
// Two messages with the same mode, effective peer id and sequence number share
// a Key.
type Key struct {
	Mode   types.ReliableMode
	PeerID types.PeerID
	MsgID  uint64
}

// NewKey builds a Key. peer must already be the effective id (see EffectiveID).
func NewKey(mode types.ReliableMode, peer types.PeerID, msgID uint64) Key {
	return Key{Mode: mode, PeerID: peer, MsgID: msgID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Mode, k.PeerID, k.MsgID)
}

// IDPolicy tells whether every peer is resolved with its own sequence
// numbering.
type IDPolicy interface {
	// ResolveEveryClientMessage is true when ids are assigned per peer and
	// false when a single global numbering is shared by all peers.
	ResolveEveryClientMessage() bool
}

// EffectiveID returns the peer id to use inside a Key. The same rule must be
// applied when a message is logged and when it is looked up, or lookups never
// match.
func EffectiveID(policy IDPolicy, id types.PeerID) types.PeerID {
	if policy == nil || !policy.ResolveEveryClientMessage() {
		return GlobalKeyID
	}
	return id
}
