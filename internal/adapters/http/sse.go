package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
)

// sseSink writes relay events as server-sent events.
type sseSink struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	done <-chan struct{}
}

func newSSESink(w http.ResponseWriter, r *http.Request) *sseSink {
	return &sseSink{w: w, rc: http.NewResponseController(w), done: r.Context().Done()}
}

func (s *sseSink) Open() error {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.rc.Flush()
}

func (s *sseSink) Send(ev relay.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseSink) Done() <-chan struct{} { return s.done }
