// Package sim exercises the reliable-delivery path end to end.
//
// Two sessions are connected by a pair of lossy Links. The sender publishes
// a batch of sequenced messages; the receiver tracks the ids it gets and
// periodically asks for the holes until everything has arrived or the run
// times out. The result is summarised in a Report.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/metrics"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/peer"
	"github.com/snehjoshi/seqrelay/internal/sequence"
	"github.com/snehjoshi/seqrelay/internal/session"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// Config describes one run.
type Config struct {
	SenderID   types.PeerID
	ReceiverID types.PeerID

	Messages             int
	DropProbability      float64
	DuplicateProbability float64
	RequestInterval      time.Duration
	Timeout              time.Duration
	// Seed 0 picks a time-based seed; the seed used is in the Report.
	Seed int64

	Numbering sequence.Numbering
	Log       msglog.Config
}

// Deps are the shared collaborators of a run. Nil fields get private
// defaults.
type Deps struct {
	Metrics *metrics.Registry
	Events  eventlog.Log
	Clock   clock.Clock
	// Peers is the sender's peer table.
	Peers *peer.Table
}

// Report summarises a run.
type Report struct {
	Seed       int64         `json:"seed"`
	Messages   int           `json:"messages"`
	Delivered  int           `json:"delivered"`
	Duplicates int           `json:"duplicates"` // deliveries of an id already seen
	Requests   int           `json:"requests"`   // RequestSeqIds messages sent
	Resent     uint64        `json:"resent"`
	Missing    []uint64      `json:"missing,omitempty"`
	Forward    LinkStats     `json:"forward"`
	Backward   LinkStats     `json:"backward"`
	Complete   bool          `json:"complete"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Sim is a prepared run. It is single use.
type Sim struct {
	cfg   Config
	clock clock.Clock

	sender, receiver *session.Session
	forward, back    *Link
	tracker          *sequence.Tracker
}

// New validates cfg and wires the two sessions.
func New(cfg Config, deps Deps) (*Sim, error) {
	if cfg.SenderID == 0 {
		cfg.SenderID = 1
	}
	if cfg.ReceiverID == 0 {
		cfg.ReceiverID = cfg.SenderID + 1
	}
	switch {
	case cfg.SenderID == cfg.ReceiverID:
		return nil, errors.New("sim: sender and receiver must differ")
	case cfg.Messages < 0:
		return nil, errors.New("sim: messages must be >= 0")
	case cfg.DropProbability < 0 || cfg.DropProbability >= 1:
		return nil, errors.New("sim: drop probability must be in [0, 1)")
	case cfg.DuplicateProbability < 0 || cfg.DuplicateProbability > 1:
		return nil, errors.New("sim: duplicate probability must be in [0, 1]")
	case cfg.RequestInterval <= 0 || cfg.Timeout <= 0:
		return nil, errors.New("sim: request interval and timeout must be positive")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	s := &Sim{
		cfg:     cfg,
		clock:   deps.Clock,
		forward: NewLink(rng, cfg.DropProbability, cfg.DuplicateProbability),
		back:    NewLink(rng, cfg.DropProbability, cfg.DuplicateProbability),
		tracker: sequence.NewTracker(),
	}

	var err error
	if s.sender, err = newSession(cfg.SenderID, cfg, s.forward, deps, deps.Peers); err != nil {
		return nil, err
	}
	if s.receiver, err = newSession(cfg.ReceiverID, cfg, s.back, deps, nil); err != nil {
		return nil, err
	}
	s.sender.Connect(cfg.ReceiverID)
	s.receiver.Connect(cfg.SenderID)
	return s, nil
}

func newSession(id types.PeerID, cfg Config, tr session.Transport, deps Deps, peers *peer.Table) (*session.Session, error) {
	ids, err := sequence.NewProvider(cfg.Numbering)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	opts := []session.Option{
		session.WithMetrics(deps.Metrics),
		session.WithClock(deps.Clock),
		session.WithEvents(deps.Events),
	}
	if peers != nil {
		opts = append(opts, session.WithPeers(peers))
	}
	return session.New(id, ids, cfg.Log, tr, opts...)
}

// Logs returns the message logs of both sessions keyed by peer id.
func (s *Sim) Logs() map[string]*msglog.Log {
	return map[string]*msglog.Log{
		strconv.FormatUint(uint64(s.cfg.SenderID), 10):   s.sender.Log(),
		strconv.FormatUint(uint64(s.cfg.ReceiverID), 10): s.receiver.Log(),
	}
}

// Run executes the simulation. Reaching the configured timeout is not an
// error: the Report says whether the run completed. Cancellation of ctx is
// returned as ctx.Err() along with the partial report.
func (s *Sim) Run(ctx context.Context) (Report, error) {
	start := s.clock.Now()
	from, to := s.cfg.SenderID, s.cfg.ReceiverID

	var last uint64
	for i := 0; i < s.cfg.Messages; i++ {
		msg := s.sender.Publish(to, types.SequenceNumber, []byte(fmt.Sprintf("payload-%d", i)))
		last = msg.MsgID
	}
	// Stands in for the sender announcing its highest id, so losses at the
	// tail of the batch are noticed too.
	if s.cfg.Messages > 0 {
		s.tracker.Expect(from, last)
	}

	rep := Report{Seed: s.cfg.Seed, Messages: s.cfg.Messages}
	ticker := s.clock.Ticker(s.cfg.RequestInterval)
	defer ticker.Stop()
	timeout := s.clock.Timer(s.cfg.Timeout)
	defer timeout.Stop()

	var runErr error
loop:
	for {
		s.pump(&rep)
		missing := s.tracker.Missing(from)
		if len(missing) == 0 {
			rep.Complete = true
			break
		}

		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case <-timeout.C:
			slog.Warn("simulation timed out", "missing", len(missing))
			break loop
		case <-ticker.C:
			s.receiver.RequestMissing(from, missing)
			rep.Requests++
		}
	}
	s.pump(&rep)

	rep.Delivered = s.tracker.Delivered(from)
	rep.Missing = s.tracker.Missing(from)
	rep.Complete = len(rep.Missing) == 0
	rep.Resent = s.sender.Stats().Resent
	rep.Forward = s.forward.Stats()
	rep.Backward = s.back.Stats()
	rep.Elapsed = s.clock.Since(start)
	return rep, runErr
}

// pump moves queued traffic in both directions until both links are idle.
func (s *Sim) pump(rep *Report) {
	for {
		fwd, back := s.forward.Drain(), s.back.Drain()
		if len(fwd) == 0 && len(back) == 0 {
			return
		}
		for _, m := range fwd {
			if !s.receiver.Receive(m) {
				continue
			}
			if m.Reliable() && s.tracker.Observe(m.SenderID, m.MsgID) {
				rep.Duplicates++
			}
		}
		for _, m := range back {
			s.sender.Receive(m)
		}
	}
}

// Run is shorthand for New followed by Sim.Run.
func Run(ctx context.Context, cfg Config, deps Deps) (Report, error) {
	s, err := New(cfg, deps)
	if err != nil {
		return Report{}, err
	}
	return s.Run(ctx)
}
