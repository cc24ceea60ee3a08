package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func newGemini(t *testing.T, h http.HandlerFunc) *llm.GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := llm.NewGeminiClient(context.Background(), llm.GeminiOptions{APIKey: "test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	return c
}

func geminiChunk(text string) string {
	return fmt.Sprintf(`data: {"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"index":0}],"modelVersion":"gemini-2.5-flash","responseId":"r-1"}`+"\n\n", text)
}

func TestGeminiStreamForwardsDeltas(t *testing.T) {
	var (
		path string
		body map[string]any
	)
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo ", "world"} {
			fmt.Fprint(w, geminiChunk(part))
			w.(http.Flusher).Flush()
		}
	})

	ch, err := c.Stream(context.Background(), domain.CompletionRequest{
		System: "be brief",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello, ask away"},
			{Role: domain.RoleUser, Content: "say hello world"},
		},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, last := collect(t, ch)
	if last.Type != domain.StreamDone {
		t.Fatalf("expected done, got %+v", last)
	}
	if text != "Hello world" {
		t.Fatalf("unexpected text %q", text)
	}

	if !strings.HasSuffix(path, "/models/gemini-2.5-flash:streamGenerateContent") {
		t.Fatalf("unexpected path %q", path)
	}
	contents, _ := body["contents"].([]any)
	var roles []string
	for _, c := range contents {
		roles = append(roles, c.(map[string]any)["role"].(string))
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Fatalf("assistant turns must be sent as model, got %v", roles)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Fatalf("expected a system instruction, got %v", body)
	}
}

func TestGeminiCompleteRequestsJSON(t *testing.T) {
	var body map[string]any
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"score\":65}"}]},"finishReason":"STOP","index":0}],
			"modelVersion":"gemini-2.5-flash","responseId":"r-9"}`)
	})

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		JSON:     true,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "score me"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != `{"score":65}` || res.ResponseID != "r-9" || res.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected completion %+v", res)
	}
	gc, _ := body["generationConfig"].(map[string]any)
	if gc["responseMimeType"] != "application/json" {
		t.Fatalf("expected JSON response type, got %v", body["generationConfig"])
	}
}

func TestGeminiStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   domain.Kind
	}{
		{http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, domain.KindProviderUnavailable},
		{http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`, domain.KindProviderRejected},
		{http.StatusBadRequest, `{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`, domain.KindProviderRejected},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			ch, err := c.Stream(context.Background(), domain.CompletionRequest{
				Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
			})
			if err != nil {
				t.Fatalf("Stream: %v", err)
			}
			_, last := collect(t, ch)
			if last.Type != domain.StreamError || domain.KindOf(last.Err) != tc.want {
				t.Fatalf("stream: got %+v, want %s", last, tc.want)
			}

			_, err = c.Complete(context.Background(), domain.CompletionRequest{
				Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
			})
			if domain.KindOf(err) != tc.want {
				t.Fatalf("complete: got %v, want %s", err, tc.want)
			}
		})
	}
}

func TestGeminiRejectsUnknownModel(t *testing.T) {
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gemini-0.1-ultra",
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}
