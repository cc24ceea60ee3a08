package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// MockLLM is a deterministic provider for local mode. It echoes the last user
// message word by word and answers JSON requests with a plausible judgment.
type MockLLM struct {
	models *modelSet
	// Delay is slept between deltas.
	Delay time.Duration
	// FailFirst makes the first n calls fail as provider_unavailable.
	FailFirst int32

	calls atomic.Int32
}

func NewMockLLM() *MockLLM {
	return &MockLLM{models: mockModels()}
}

func (m *MockLLM) Kind() domain.ProviderKind { return domain.ProviderMock }

func (m *MockLLM) Models() []domain.ModelInfo { return m.models.list() }

func (m *MockLLM) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamEvent, error) {
	if _, err := m.models.resolve(req); err != nil {
		return nil, err
	}
	reply := m.reply(req)

	em := newEmitter(ctx, domain.ProviderMock)
	if m.failing() {
		go em.finish(domain.Errorf(domain.KindProviderUnavailable, "mock provider is failing on purpose"))
		return em.out, nil
	}
	go func() {
		for i, word := range strings.SplitAfter(reply, " ") {
			if i > 0 && m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					em.finish(ctx.Err())
					return
				}
			}
			if !em.delta(word) {
				em.finish(ctx.Err())
				return
			}
		}
		em.finish(nil)
	}()
	return em.out, nil
}

func (m *MockLLM) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if _, err := m.models.resolve(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(domain.ProviderMock, err)
	}
	if m.failing() {
		return nil, domain.Errorf(domain.KindProviderUnavailable, "mock provider is failing on purpose")
	}
	return &domain.Completion{Text: m.reply(req), Model: "mock-echo", ResponseID: "mock-" + domain.NewID()}, nil
}

func (m *MockLLM) failing() bool {
	return m.calls.Add(1) <= m.FailFirst
}

func (m *MockLLM) reply(req domain.CompletionRequest) string {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = strings.TrimSpace(req.Messages[n-1].Content)
	}
	if req.JSON {
		return mockJudgment(last)
	}
	return fmt.Sprintf("I hear you. You said %q. Tell me a bit more about that.", last)
}

// mockJudgment scores longer answers higher so local runs produce varied reports.
func mockJudgment(answer string) string {
	words := len(strings.Fields(answer))
	score := 40 + min(words, 50)
	j := map[string]any{
		"score": score,
		"dimensions": map[string]int{
			domain.DimensionClarity:   min(score+5, 100),
			domain.DimensionRelevance: score,
			domain.DimensionDepth:     max(score-10, 0),
			domain.DimensionStructure: score,
		},
		"tips":    []string{"Lead with the outcome, then explain how you got there."},
		"summary": fmt.Sprintf("Answer of %d words.", words),
	}
	b, _ := json.Marshal(j)
	return string(b)
}

// MockSpeech returns a short silent clip in the requested container.
type MockSpeech struct{}

func (MockSpeech) Synthesize(ctx context.Context, req domain.SpeechRequest) (*domain.SpeechAudio, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(domain.ProviderMock, err)
	}
	n := utf8.RuneCountInString(req.Text)
	data := make([]byte, 0, 64+n)
	switch req.Format {
	case domain.AudioWAV:
		data = append(data, "RIFF\x00\x00\x00\x00WAVEfmt "...)
	case domain.AudioOGG:
		data = append(data, "OggS"...)
	default:
		data = append(data, "ID3\x04\x00\x00\x00\x00\x00\x00"...)
	}
	data = append(data, make([]byte, n)...)
	return &domain.SpeechAudio{Format: req.Format, ContentType: req.Format.ContentType(), Data: data}, nil
}
