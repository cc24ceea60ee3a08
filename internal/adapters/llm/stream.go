package llm

import (
	"context"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// streamBuffer is the channel size between a provider goroutine and the relay.
const streamBuffer = 16

// emitter forwards decoded deltas without batching and guarantees a single
// terminal event.
type emitter struct {
	ctx       context.Context
	provider  domain.ProviderKind
	out       chan domain.StreamEvent
	forwarded bool
}

func newEmitter(ctx context.Context, provider domain.ProviderKind) *emitter {
	return &emitter{ctx: ctx, provider: provider, out: make(chan domain.StreamEvent, streamBuffer)}
}

// delta returns false once the consumer is gone.
func (e *emitter) delta(text string) bool {
	if text == "" {
		return e.ctx.Err() == nil
	}
	select {
	case e.out <- domain.StreamEvent{Type: domain.StreamDelta, Text: text}:
		e.forwarded = true
		return true
	case <-e.ctx.Done():
		return false
	}
}

// finish sends the terminal event and closes the channel.
func (e *emitter) finish(err error) {
	defer close(e.out)

	if err == nil && !e.forwarded {
		err = domain.Errorf(domain.KindProviderUnavailable, "%s returned an empty completion", e.provider)
	}
	ev := domain.StreamEvent{Type: domain.StreamDone}
	if err != nil {
		ev = domain.StreamEvent{Type: domain.StreamError, Err: classify(e.provider, err)}
	}
	select {
	case e.out <- ev:
	case <-e.ctx.Done():
	}
}
