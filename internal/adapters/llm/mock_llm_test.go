package llm_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func TestMockStreamEchoes(t *testing.T) {
	t.Parallel()
	m := llm.NewMockLLM()
	ch, err := m.Stream(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello there"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, last := collect(t, ch)
	if last.Type != domain.StreamDone {
		t.Fatalf("expected done, got %+v", last)
	}
	if text == "" || !strings.Contains(text, "hello there") {
		t.Fatalf("unexpected echo %q", text)
	}
}

func TestMockStreamStopsOnCancel(t *testing.T) {
	t.Parallel()
	m := llm.NewMockLLM()
	m.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.Stream(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "a b c d e f g h"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("mock stream did not stop after cancellation")
		}
	}
}

func TestMockCompleteJSON(t *testing.T) {
	t.Parallel()
	m := llm.NewMockLLM()
	res, err := m.Complete(context.Background(), domain.CompletionRequest{
		JSON:     true,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "I led the migration of our billing service"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	var j struct {
		Score      float64            `json:"score"`
		Dimensions map[string]float64 `json:"dimensions"`
	}
	if err := json.Unmarshal([]byte(res.Text), &j); err != nil {
		t.Fatalf("mock judgment is not JSON: %v", err)
	}
	if j.Score <= 0 || len(j.Dimensions) != len(domain.Dimensions) {
		t.Fatalf("unexpected judgment %+v", j)
	}
}

func TestMockSpeechContentType(t *testing.T) {
	t.Parallel()
	audio, err := llm.MockSpeech{}.Synthesize(context.Background(), domain.SpeechRequest{Text: "hi", Format: domain.AudioWAV})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.ContentType != "audio/wav" || len(audio.Data) == 0 {
		t.Fatalf("unexpected audio %+v", audio.ContentType)
	}
}

func TestRegistryPreferred(t *testing.T) {
	reg := llm.NewRegistry(llm.NewMockLLM())

	p, err := reg.Preferred(domain.ProviderOpenAI, domain.ProviderMock)
	if err != nil {
		t.Fatalf("Preferred: %v", err)
	}
	if p.Kind() != domain.ProviderMock {
		t.Fatalf("kind = %s, want mock", p.Kind())
	}
	if _, err := reg.Preferred(domain.ProviderClaude); !domain.IsKind(err, domain.KindUnknownProvider) {
		t.Fatalf("err = %v, want unknown_provider", err)
	}
}
