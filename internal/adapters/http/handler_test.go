package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	httpadapter "github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/http"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/files"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/memory"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/catalog"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/interview"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/speech"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

const user = "user-1"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	policy := retry.Policy{
		MaxAttempts: 2,
		Sleep:       func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil },
	}
	mock := llm.NewMockLLM()
	registry := llm.NewRegistry(mock)

	convSvc := conversation.NewService(memory.NewConversationStore(), conversation.Options{HistoryLimit: 20, TokenBudget: 6000})
	gateway := relay.NewGateway(convSvc, files.NewExtractor(), relay.Options{IdleTimeout: 5 * time.Second, Retry: policy})
	tts := speech.NewService(llm.MockSpeech{}, "alloy", policy)
	interviews := interview.NewService(memory.NewInterviewStore(), catalog.New(), interview.NewJudge(mock, ""), tts, interview.Options{
		PlanLength: 3,
		Retry:      policy,
	})

	return httpadapter.NewServer(httpadapter.Deps{
		Conversations:  convSvc,
		Relay:          gateway,
		Providers:      registry,
		Interviews:     interviews,
		Speech:         tts,
		MaxUploadBytes: 1 << 20,
	})
}

func do(t *testing.T, srv http.Handler, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func createConversation(t *testing.T, srv http.Handler) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/conversations", user, map[string]string{"title": "Test"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var conv struct {
		ID string `json:"id"`
	}
	decode(t, w, &conv)
	return conv.ID
}

type timeline struct {
	Messages []struct {
		Role        string                  `json:"role"`
		Content     string                  `json:"content"`
		Sequence    int64                   `json:"sequence"`
		Attachments []domain.AttachmentMeta `json:"attachments"`
	} `json:"messages"`
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/healthz", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestMissingPrincipal(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/conversations", "", nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body struct {
		Kind string `json:"kind"`
	}
	decode(t, w, &body)
	if body.Kind != string(domain.KindUnauthenticated) {
		t.Fatalf("unexpected kind %q", body.Kind)
	}
}

func TestModels(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/models", user, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mock-echo") {
		t.Fatalf("unexpected models response %d: %s", w.Code, w.Body.String())
	}
}

func TestStreamSSEAndTimeline(t *testing.T) {
	srv := newTestServer(t)
	id := createConversation(t, srv)

	w := do(t, srv, http.MethodPost, "/conversations/"+id+"/mock/stream", user, map[string]string{"content": "hello gateway"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: delta\ndata: {\"delta\":") || !strings.Contains(body, "event: done\n") {
		t.Fatalf("unexpected event stream: %s", body)
	}

	tw := do(t, srv, http.MethodGet, "/conversations/"+id, user, nil)
	if tw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", tw.Code)
	}
	var tl timeline
	decode(t, tw, &tl)
	if len(tl.Messages) != 2 || tl.Messages[0].Role != "user" || tl.Messages[1].Sequence != 2 {
		t.Fatalf("unexpected timeline: %+v", tl)
	}
}

func TestStreamErrorsBeforeOpen(t *testing.T) {
	srv := newTestServer(t)
	id := createConversation(t, srv)

	tests := []struct {
		name   string
		path   string
		uid    string
		body   any
		status int
		kind   domain.Kind
	}{
		{"unknown provider", "/conversations/" + id + "/nope/stream", user, map[string]string{"content": "hi"}, http.StatusNotFound, domain.KindUnknownProvider},
		{"foreign conversation", "/conversations/" + id + "/mock/stream", "someone-else", map[string]string{"content": "hi"}, http.StatusNotFound, domain.KindConversationNotFound},
		{"empty content", "/conversations/" + id + "/mock/stream", user, map[string]string{"content": " "}, http.StatusBadRequest, domain.KindInvalidInput},
		{"unknown model", "/conversations/" + id + "/mock/stream", user, map[string]string{"content": "hi", "model": "gpt-9"}, http.StatusBadRequest, domain.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, tt.path, tt.uid, tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d, body=%s", tt.status, w.Code, w.Body.String())
			}
			var body struct {
				Kind domain.Kind `json:"kind"`
			}
			decode(t, w, &body)
			if body.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, body.Kind)
			}
		})
	}
}

func TestStreamMultipartWithUnsupportedFile(t *testing.T) {
	srv := newTestServer(t)
	id := createConversation(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("content", "summarize my files")
	fw, _ := mw.CreateFormFile("files", "blob.bin")
	_, _ = fw.Write([]byte{0x00, 0x01, 0x02, 0xff})
	fw, _ = mw.CreateFormFile("files", "notes.txt")
	_, _ = fw.Write([]byte("remember the milk"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/conversations/"+id+"/mock/stream", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", user)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "event: done") {
		t.Fatalf("expected a completed stream, got %d: %s", w.Code, w.Body.String())
	}

	var tl timeline
	decode(t, do(t, srv, http.MethodGet, "/conversations/"+id, user, nil), &tl)
	if len(tl.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(tl.Messages))
	}
	atts := tl.Messages[0].Attachments
	if len(atts) != 2 || atts[0].Status != domain.AttachmentFailed || atts[1].Status != domain.AttachmentOK {
		t.Fatalf("unexpected attachments: %+v", atts)
	}
	if !strings.Contains(atts[0].Text, "file processing failed") {
		t.Fatalf("expected a failure marker, got %q", atts[0].Text)
	}
}

func TestConversationRenameAndDelete(t *testing.T) {
	srv := newTestServer(t)
	id := createConversation(t, srv)

	w := do(t, srv, http.MethodPatch, "/conversations/"+id, user, map[string]string{"title": "Renamed"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Renamed") {
		t.Fatalf("rename failed: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, srv, http.MethodDelete, "/conversations/"+id, user, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/conversations/"+id, user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestInterviewFlow(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/interviews/session", user, map[string]any{"role": "backend", "skills": []string{"Go"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		SessionID      string `json:"sessionId"`
		TotalQuestions int    `json:"totalQuestions"`
		FirstQuestion  struct {
			Index int    `json:"index"`
			Text  string `json:"text"`
		} `json:"firstQuestion"`
	}
	decode(t, w, &started)
	if started.TotalQuestions != 3 || started.FirstQuestion.Text == "" {
		t.Fatalf("unexpected start response: %+v", started)
	}

	turn := map[string]any{"sessionId": started.SessionID, "questionIndex": 0, "transcript": "I build APIs in Go."}
	w = do(t, srv, http.MethodPost, "/interviews/turn", user, turn)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Done         bool     `json:"done"`
		CoachingTips []string `json:"coachingTips"`
		NextQuestion *struct {
			Index int `json:"index"`
		} `json:"nextQuestion"`
	}
	decode(t, w, &out)
	if out.Done || out.NextQuestion == nil || out.NextQuestion.Index != 1 || len(out.CoachingTips) == 0 {
		t.Fatalf("unexpected turn response: %s", w.Body.String())
	}

	if w := do(t, srv, http.MethodPost, "/interviews/turn", user, turn); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a repeated index, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/interviews/"+started.SessionID+"/report", user, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before finalization, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/interviews/"+started.SessionID+"/finalize", user, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on finalize, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, http.MethodGet, "/interviews/"+started.SessionID+"/report", user, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for the report, got %d", w.Code)
	}

	missing := map[string]any{"sessionId": started.SessionID, "transcript": "x"}
	if w := do(t, srv, http.MethodPost, "/interviews/turn", user, missing); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without questionIndex, got %d", w.Code)
	}

	audio := httptest.NewRequest(http.MethodGet, "/interviews/"+started.SessionID+"/questions/0/audio?format=ogg", nil)
	audio.Header.Set("X-User-ID", user)
	aw := httptest.NewRecorder()
	srv.ServeHTTP(aw, audio)
	if aw.Code != http.StatusOK || aw.Header().Get("Content-Type") != "audio/ogg" {
		t.Fatalf("unexpected audio response %d %q", aw.Code, aw.Header().Get("Content-Type"))
	}
}

func TestTTS(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/tts", user, map[string]string{"text": "hello", "format": "wav"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("unexpected tts response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")) {
		t.Fatal("expected a wav payload")
	}

	if w := do(t, srv, http.MethodPost, "/tts", user, map[string]string{"text": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", w.Code)
	}
}

func TestStreamWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t))
	defer srv.Close()
	h := srv.Config.Handler

	id := createConversation(t, h)

	header := http.Header{}
	header.Set("X-User-ID", user)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversations/" + id + "/mock/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v (resp=%v)", err, resp)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"content": "hi over websocket"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var deltas strings.Builder
	for {
		var frame struct {
			Event string `json:"event"`
			Data  struct {
				Delta    string `json:"delta"`
				Sequence int64  `json:"sequence"`
				Kind     string `json:"kind"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed before done: %v", err)
		}
		if frame.Event == "delta" {
			deltas.WriteString(frame.Data.Delta)
			continue
		}
		if frame.Event != "done" || frame.Data.Sequence != 2 {
			t.Fatalf("unexpected terminal frame: %+v", frame)
		}
		break
	}
	if !strings.Contains(deltas.String(), "hi over websocket") {
		t.Fatalf("unexpected streamed text %q", deltas.String())
	}
}
