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

func newClaude(t *testing.T, h http.HandlerFunc) *llm.ClaudeClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := llm.NewClaudeClient(llm.ClaudeOptions{APIKey: "test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClaudeClient: %v", err)
	}
	return c
}

func claudeEvent(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func claudeTextDelta(text string) string {
	return claudeEvent("content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text))
}

func TestClaudeStreamForwardsTextDeltas(t *testing.T) {
	var body map[string]any
	c := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			claudeEvent("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-20250514","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}`),
			claudeEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
			claudeEvent("ping", `{"type":"ping"}`),
			claudeTextDelta("Hel"),
			claudeTextDelta("lo"),
			claudeEvent("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`),
			claudeTextDelta(" world"),
			claudeEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
			claudeEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`),
			claudeEvent("message_stop", `{"type":"message_stop"}`),
		}
		for _, ev := range events {
			fmt.Fprint(w, ev)
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

	if body["model"] != "claude-sonnet-4-20250514" || body["stream"] != true {
		t.Fatalf("unexpected request body %v", body)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %v", body["messages"])
	}
	var roles []string
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	if strings.Join(roles, ",") != "user,assistant,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
}

func TestClaudeCompleteAsksForJSONInSystemPrompt(t *testing.T) {
	var body map[string]any
	c := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_9","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"{\"score\":70}"}],
			"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":4}}`)
	})

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		System:   "You grade answers.",
		JSON:     true,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "score me"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != `{"score":70}` || res.ResponseID != "msg_9" {
		t.Fatalf("unexpected completion %+v", res)
	}

	system, _ := body["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("expected one system block, got %v", body["system"])
	}
	text, _ := system[0].(map[string]any)["text"].(string)
	if !strings.HasPrefix(text, "You grade answers.") || !strings.Contains(text, "JSON object") {
		t.Fatalf("system prompt does not ask for JSON: %q", text)
	}
}

func TestClaudeStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   domain.Kind
	}{
		{http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, domain.KindProviderUnavailable},
		{http.StatusServiceUnavailable, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`, domain.KindProviderRejected},
		{http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, domain.KindProviderRejected},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
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

func TestClaudeRejectsFilesOnTextOnlyModel(t *testing.T) {
	c := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	_, err := c.Stream(context.Background(), domain.CompletionRequest{
		Model: "claude-3-5-haiku-latest",
		Messages: []domain.ChatMessage{{
			Role:            domain.RoleUser,
			Content:         "summarize the notes",
			AttachmentNames: []string{"notes.txt"},
		}},
	})
	if !domain.IsKind(err, domain.KindUnsupportedCapability) {
		t.Fatalf("expected unsupported_capability, got %v", err)
	}
}
