package processor

import (
	"fmt"

	"github.com/snehjoshi/seqrelay/internal/types"
)

// Pipeline runs processors in registration order. It is built once during
// session setup and read-only afterwards.
type Pipeline struct {
	inbound  []InboundProcessor
	outbound []OutboundProcessor
}

// Use registers each p in every direction it implements. A value that
// implements neither direction is rejected.
func (p *Pipeline) Use(procs ...any) error {
	for _, proc := range procs {
		in, isIn := proc.(InboundProcessor)
		out, isOut := proc.(OutboundProcessor)
		if !isIn && !isOut {
			return fmt.Errorf("processor: %T implements neither direction", proc)
		}
		if isIn {
			p.inbound = append(p.inbound, in)
		}
		if isOut {
			p.outbound = append(p.outbound, out)
		}
	}
	return nil
}

// Inbound runs msg through the inbound processors and reports whether it
// should be delivered to the application.
func (p *Pipeline) Inbound(msg *types.Message) bool {
	for _, proc := range p.inbound {
		if !proc.ProcessInbound(msg) {
			return false
		}
	}
	return true
}

// Outbound runs msg through the outbound processors and reports whether it
// should be transmitted.
func (p *Pipeline) Outbound(msg *types.Message) bool {
	for _, proc := range p.outbound {
		if !proc.ProcessOutbound(msg) {
			return false
		}
	}
	return true
}
