// Package processor defines the contract shared by the components that sit on
// a session's message path.
//
// A processor receives its collaborators explicitly through a Base built by
// NewBase. Construction fails fast when a collaborator is missing, so a
// processor never discovers a nil dependency halfway through a message.
package processor

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/types"
)

var (
	ErrNilConfig = errors.New("processor: config is nil")
	ErrNilState  = errors.New("processor: state is nil")
	// ErrMissingCollaborator is wrapped with the name of the absent field.
	ErrMissingCollaborator = errors.New("processor: missing collaborator")
)

// Sender transmits a message to its receiver. Implementations run the
// outbound pipeline before handing the message to the wire.
type Sender interface {
	Send(msg *types.Message)
}

// Config holds the immutable collaborators of a session.
type Config struct {
	Sender Sender
	Stats  *metrics.Registry
	// Clock timestamps quality feedback. Nil means the wall clock.
	Clock clock.Clock
	// IDs selects the effective-id rule. It must be the same policy that
	// assigns outbound sequence ids.
	IDs msglog.IDPolicy
	// Log configures the message log. Log.IDs defaults to IDs.
	Log msglog.Config
}

// State holds the mutable, shared state of a session.
type State struct {
	Peers *peer.Table
	// Events defaults to eventlog.Discard.
	Events eventlog.Log
}

// Base is embedded by every processor.
type Base struct {
	Config *Config
	State  *State
}

// NewBase validates cfg and st and returns a Base holding defaulted copies.
func NewBase(cfg *Config, st *State) (Base, error) {
	if cfg == nil {
		return Base{}, ErrNilConfig
	}
	if st == nil {
		return Base{}, ErrNilState
	}
	switch {
	case cfg.Sender == nil:
		return Base{}, fmt.Errorf("%w: Sender", ErrMissingCollaborator)
	case cfg.Stats == nil:
		return Base{}, fmt.Errorf("%w: Stats", ErrMissingCollaborator)
	case cfg.IDs == nil:
		return Base{}, fmt.Errorf("%w: IDs", ErrMissingCollaborator)
	case st.Peers == nil:
		return Base{}, fmt.Errorf("%w: Peers", ErrMissingCollaborator)
	}

	c, s := *cfg, *st
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Log.IDs == nil {
		c.Log.IDs = c.IDs
	}
	if s.Events == nil {
		s.Events = eventlog.Discard
	}
	return Base{Config: &c, State: &s}, nil
}

// InboundProcessor inspects a received message. Returning false consumes the
// message: later processors and the application never see it.
type InboundProcessor interface {
	ProcessInbound(msg *types.Message) bool
}

// OutboundProcessor inspects a message about to be sent. Returning false
// stops the message from being transmitted.
type OutboundProcessor interface {
	ProcessOutbound(msg *types.Message) bool
}
