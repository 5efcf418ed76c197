// Package session is the composition root of one local peer.
//
// A Session owns the message log, the gap-recovery handler and the processor
// pipeline that connects them. Application code and transports talk to the
// Session, never to the processors directly.
//
// Data flow:
//
//	Publish → Send → pipeline.Outbound (MessageLogProcessor) → Transport
//	Transport → Receive → pipeline.Inbound (MessageLogProcessor, recovery.Handler) → application
//	recovery.Handler → Send (resent clone) → Transport
package session

import (
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/processor"
	"github.com/snehjoshi/seqrelay/internal/quality"
	"github.com/snehjoshi/seqrelay/internal/recovery"
	"github.com/snehjoshi/seqrelay/internal/sequence"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// Transport puts a message on the wire. It must not block for long.
type Transport interface {
	Transmit(msg *types.Message)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(msg *types.Message)

// Transmit calls f(msg).
func (f TransportFunc) Transmit(msg *types.Message) { f(msg) }

// Stats is a snapshot of one session.
type Stats struct {
	Peer types.PeerID `json:"peer"`
	Log  msglog.Stats `json:"log"`
	// Resent is read from the metrics registry, which may be shared.
	Resent uint64 `json:"resent"`
	Peers  int    `json:"peers"`
}

// ─── Option / functional options ─────────────────────────────────────────────

// Option is a functional option for the Session.
type Option func(*Session)

// WithMetrics makes the session count into reg instead of a private registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Session) { s.metrics = reg }
}

// WithEvents sets the event sink. The default discards events.
func WithEvents(log eventlog.Log) Option {
	return func(s *Session) { s.events = log }
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clock = clk }
}

// WithPeers shares a peer table with the session. The default is a private
// table using quality.DefaultConfig.
func WithPeers(tbl *peer.Table) Option {
	return func(s *Session) { s.peers = tbl }
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is one local peer. All methods are safe for concurrent use.
type Session struct {
	id        types.PeerID
	ids       *sequence.Provider
	transport Transport

	metrics *metrics.Registry
	events  eventlog.Log
	clock   clock.Clock
	peers   *peer.Table

	pipeline processor.Pipeline
	logProc  *processor.MessageLogProcessor
	recovery *recovery.Handler
}

// New builds the session of local peer id. ids assigns outbound sequence
// numbers and also decides the effective-id rule of the message log.
func New(id types.PeerID, ids *sequence.Provider, logCfg msglog.Config, tr Transport, opts ...Option) (*Session, error) {
	if ids == nil {
		return nil, fmt.Errorf("session: %w: sequence provider", processor.ErrMissingCollaborator)
	}
	if tr == nil {
		return nil, fmt.Errorf("session: %w: transport", processor.ErrMissingCollaborator)
	}

	s := &Session{id: id, ids: ids, transport: tr}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.peers == nil {
		s.peers = peer.NewTable(quality.DefaultConfig())
	}

	base, err := processor.NewBase(
		&processor.Config{
			Sender: s,
			Stats:  s.metrics,
			Clock:  s.clock,
			IDs:    ids,
			Log:    logCfg,
		},
		&processor.State{Peers: s.peers, Events: s.events},
	)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	if s.logProc, err = processor.NewMessageLogProcessor(base); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if s.recovery, err = recovery.NewHandler(base, s.logProc.Log()); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	// Inbound requests are logged (if the filter wants them) before the
	// recovery handler consumes them.
	if err := s.pipeline.Use(s.logProc, s.recovery); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return s, nil
}

// ID returns the local peer id.
func (s *Session) ID() types.PeerID { return s.id }

// Connect registers a remote peer so that its link quality is tracked.
func (s *Session) Connect(remote types.PeerID) *peer.State {
	return s.peers.Ensure(remote)
}

// Disconnect forgets a remote peer.
func (s *Session) Disconnect(remote types.PeerID) error {
	return s.peers.Remove(remote)
}

// Send runs msg through the outbound pipeline and hands it to the transport
// unless a processor blocked it. It implements processor.Sender and is used
// both for fresh messages and for retransmissions.
func (s *Session) Send(msg *types.Message) {
	if !s.pipeline.Outbound(msg) {
		slog.Debug("outbound message blocked", "session", s.id.String(), "msg", msg.String())
		return
	}
	s.transport.Transmit(msg)
}

// Publish sends body to peer to. Reliable messages are numbered by the
// sequence provider. The sent message is returned.
func (s *Session) Publish(to types.PeerID, mode types.ReliableMode, body []byte) *types.Message {
	msg := types.NewData(to, mode, body)
	msg.SenderID = s.id
	if msg.Reliable() {
		msg.MsgID = s.ids.Next(to)
	}
	s.Send(msg)
	return msg
}

// RequestMissing asks peer to to retransmit the given sequence ids.
func (s *Session) RequestMissing(to types.PeerID, missing []uint64) {
	if len(missing) == 0 {
		return
	}
	req := types.NewRequestSeqIDs(to, missing)
	req.SenderID = s.id
	slog.Debug("requesting missing messages",
		"session", s.id.String(), "peer", to.String(), "count", len(missing))
	s.Send(req)
}

// Receive runs msg through the inbound pipeline and reports whether it should
// be delivered to the application. Gap-recovery requests are consumed here.
func (s *Session) Receive(msg *types.Message) bool {
	return s.pipeline.Inbound(msg)
}

// Log returns the session's message log.
func (s *Session) Log() *msglog.Log { return s.logProc.Log() }

// Peers returns the session's peer table.
func (s *Session) Peers() *peer.Table { return s.peers }

// Stats returns a snapshot of the session.
func (s *Session) Stats() Stats {
	return Stats{
		Peer:   s.id,
		Log:    s.logProc.Log().Stats(),
		Resent: s.metrics.ResentMessages(),
		Peers:  s.peers.Len(),
	}
}
