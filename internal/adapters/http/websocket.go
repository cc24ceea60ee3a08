package httpadapter

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

const (
	wsFirstFrameTimeout = 30 * time.Second
	wsWriteTimeout      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// origin policy is enforced by the gateway in front of us
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsFrame mirrors one SSE event: the event name plus its data object.
type wsFrame struct {
	Event relay.EventType `json:"event"`
	Data  relay.Event     `json:"data"`
}

// wsSink sends relay events as JSON text frames. Done closes when the read
// side sees the client close or drop the connection.
type wsSink struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (s *wsSink) Open() error { return nil }

func (s *wsSink) Send(ev relay.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(wsFrame{Event: ev.Type, Data: ev})
}

func (s *wsSink) Done() <-chan struct{} { return s.done }

func (s *wsSink) leave() { s.once.Do(func() { close(s.done) }) }

// watch drains client frames until the connection ends.
func (s *wsSink) watch() {
	defer s.leave()
	_ = s.conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleStreamWS runs one relay over a websocket. The first client frame is
// the request body as JSON; files travel base64 encoded.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request, convID domain.ConversationID, providerName string) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner := principal(r.Context())
	if _, err := s.conversations.Authorize(r.Context(), owner, convID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxUpload)

	sink := &wsSink{conn: conn, done: make(chan struct{})}

	_ = conn.SetReadDeadline(time.Now().Add(wsFirstFrameTimeout))
	var body streamBody
	_, raw, err := conn.ReadMessage()
	if err == nil {
		if uerr := json.Unmarshal(raw, &body); uerr != nil {
			err = domain.NewError(domain.KindInvalidInput, "first frame must be a JSON request", uerr)
		}
	} else {
		err = domain.NewError(domain.KindInvalidInput, "no request frame received", err)
	}
	files, ferr := body.uploads()
	if err == nil {
		err = ferr
	}
	if err != nil {
		_ = sink.Send(relay.ErrorEvent(err))
		closeWS(conn, websocket.CloseInvalidFramePayloadData)
		return
	}

	go sink.watch()

	res, err := s.relay.Stream(r.Context(), relay.Request{
		Owner:          owner,
		ConversationID: convID,
		Content:        body.Content,
		Model:          body.Model,
		Files:          files,
	}, provider, sink)
	if err != nil && !res.Opened {
		_ = sink.Send(relay.ErrorEvent(err))
	}
	closeWS(conn, websocket.CloseNormalClosure)
}

func closeWS(conn *websocket.Conn, code int) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(2*time.Second))
}
