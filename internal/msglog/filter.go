package msglog

import (
	"fmt"

	"github.com/snehjoshi/seqrelay/internal/types"
)

// Filter decides whether a message is recorded in the log.
type Filter func(msg *types.Message) bool

// AcceptAll logs every message.
func AcceptAll(*types.Message) bool { return true }

// AcceptNone logs nothing. Using it on the send side disables retransmission.
func AcceptNone(*types.Message) bool { return false }

// AcceptReliable logs every message whose mode is not Unreliable.
func AcceptReliable(msg *types.Message) bool { return msg.Reliable() }

// Filter names accepted by FilterByName and the configuration file.
const (
	FilterAll      = "all"
	FilterNone     = "none"
	FilterReliable = "reliable"
)

// FilterByName resolves a configured filter name. The empty string selects
// the reliable-only default.
func FilterByName(name string) (Filter, error) {
	switch name {
	case FilterAll:
		return AcceptAll, nil
	case FilterNone:
		return AcceptNone, nil
	case FilterReliable, "":
		return AcceptReliable, nil
	default:
		return nil, fmt.Errorf("msglog: unknown filter %q", name)
	}
}
