package relay

import "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"

// State is the lifecycle position of one relay. Terminal states are final.
type State string

const (
	StateOpen      State = "OPEN"
	StateStreaming State = "STREAMING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
)

func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one client-visible item of a relayed stream.
type Event struct {
	Type EventType `json:"-"`

	Delta string `json:"delta,omitempty"`

	MessageID domain.MessageID `json:"messageId,omitempty"`
	Sequence  int64            `json:"sequence,omitempty"`
	Model     string           `json:"model,omitempty"`

	Kind    domain.Kind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Sink is the client side of a relay: an SSE response or a websocket.
//
// Open is called once, right before the first event. Failures that happen
// earlier are returned by Gateway.Stream without touching the sink, so the
// transport can still answer with a plain error status.
// Done is closed when the client goes away.
type Sink interface {
	Open() error
	Send(ev Event) error
	Done() <-chan struct{}
}

// ErrorEvent is the terminal event reporting err to a client.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Kind: domain.KindOf(err), Message: domain.PublicMessage(err)}
}
