package processor

import (
	"errors"
	"log/slog"

	"github.com/snehjoshi/seqrelay/internal/eventlog"
	"github.com/snehjoshi/seqrelay/internal/msglog"
	"github.com/snehjoshi/seqrelay/internal/types"
)

// MessageLogProcessor records traffic in the session's message log.
// Outbound messages feed the sent index that gap recovery reads from.
type MessageLogProcessor struct {
	Base
	log *msglog.Log
}

// NewMessageLogProcessor builds the message log described by
// base.Config.Log.
func NewMessageLogProcessor(base Base) (*MessageLogProcessor, error) {
	if base.Config == nil || base.State == nil {
		return nil, ErrNilConfig
	}
	log, err := msglog.New(base.Config.Log)
	if err != nil {
		return nil, err
	}
	return &MessageLogProcessor{Base: base, log: log}, nil
}

// Log returns the underlying message log.
func (p *MessageLogProcessor) Log() *msglog.Log { return p.log }

// ProcessInbound logs msg and always lets it through.
func (p *MessageLogProcessor) ProcessInbound(msg *types.Message) bool {
	p.log.AddReceived(msg)
	return true
}

// ProcessOutbound logs msg. It blocks the message only when a strict log
// reports that its key is already bound to a different payload.
func (p *MessageLogProcessor) ProcessOutbound(msg *types.Message) bool {
	err := p.log.AddSent(msg)
	if err == nil {
		return true
	}
	if errors.Is(err, msglog.ErrKeyConflict) {
		p.State.Events.Add(eventlog.New(eventlog.KindKeyConflict,
			msg.ReceiverID, msg.MsgID, err.Error(), p.Config.Clock.Now()))
		p.Config.Stats.IncKeyConflict()
	}
	slog.Error("outbound message rejected by message log",
		"msg", msg.String(), "err", err)
	return false
}
