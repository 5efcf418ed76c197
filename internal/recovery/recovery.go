// Package recovery answers gap-recovery requests.
//
// A peer that notices holes in the sequence ids it received sends a
// RequestSeqIds message naming them. The Handler looks every id up in the
// session's sent index and retransmits what it still has. Ids that were never
// logged or have been evicted are reported and skipped; one missing id never
// stops the rest of the batch.
package recovery

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/processor"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// Not-found ids are always counted and recorded as events. The error log line
// is rate limited so a peer asking for a long evicted range cannot flood the
// process log.
const (
	notFoundLogRate  = rate.Limit(10)
	notFoundLogBurst = 20
)

// Result summarises one handled request.
type Result struct {
	From      types.PeerID
	Requested int
	Resent    []uint64
	Missing   []uint64
}

// Handler is the inbound processor that serves RequestSeqIds messages.
type Handler struct {
	processor.Base

	log        *msglog.Log
	logLimiter *rate.Limiter
}

// NewHandler returns a Handler that retransmits from log.
func NewHandler(base processor.Base, log *msglog.Log) (*Handler, error) {
	if base.Config == nil {
		return nil, processor.ErrNilConfig
	}
	if base.State == nil {
		return nil, processor.ErrNilState
	}
	if log == nil {
		return nil, fmt.Errorf("%w: message log", processor.ErrMissingCollaborator)
	}
	return &Handler{
		Base:       base,
		log:        log,
		logLimiter: rate.NewLimiter(notFoundLogRate, notFoundLogBurst),
	}, nil
}

// ProcessInbound consumes RequestSeqIds messages and passes everything else
// through.
func (h *Handler) ProcessInbound(msg *types.Message) bool {
	if msg.Kind != types.KindRequestSeqIDs {
		return true
	}
	h.Handle(msg.SenderID, msg.MissingIDs)
	return false
}

// Handle retransmits the messages named by ids to peer from, in request
// order.
func (h *Handler) Handle(from types.PeerID, ids []uint64) Result {
	cfg, st := h.Config, h.State
	now := cfg.Clock.Now()
	effective := msglog.EffectiveID(cfg.IDs, from)

	if ps, ok := st.Peers.GetByID(from); ok {
		ps.Quality.RequestedMissingMessages(len(ids), now)
	} else {
		slog.Debug("missing-ids request from unknown peer", "peer", from.String())
	}
	cfg.Stats.IncRequest(from, len(ids))

	res := Result{From: from, Requested: len(ids)}
	for _, id := range ids {
		key := msglog.NewKey(types.SequenceNumber, effective, id)
		logged, ok := h.log.GetSent(key)
		if !ok {
			h.notFound(from, key, now)
			res.Missing = append(res.Missing, id)
			continue
		}

		resend := logged.Clone()
		resend.ReceiverID = from
		resend.Resend = true
		cfg.Sender.Send(resend)
		cfg.Stats.IncResent(from)
		res.Resent = append(res.Resent, id)
	}

	slog.Debug("gap-recovery request handled",
		"peer", from.String(),
		"requested", res.Requested,
		"resent", len(res.Resent),
		"missing", len(res.Missing),
	)
	return res
}

func (h *Handler) notFound(from types.PeerID, key msglog.Key, at time.Time) {
	h.State.Events.Add(eventlog.New(eventlog.KindMessageNotInLog,
		from, key.MsgID, key.String(), at))
	h.Config.Stats.IncNotFound(from)
	if h.logLimiter.Allow() {
		slog.Error("requested message not in sent log",
			"peer", from.String(), "key", key.String())
	}
}
