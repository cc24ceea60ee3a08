package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/config"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

// Registry resolves provider names from request paths to adapters.
type Registry struct {
	providers map[domain.ProviderKind]domain.Provider
}

func NewRegistry(providers ...domain.Provider) *Registry {
	r := &Registry{providers: make(map[domain.ProviderKind]domain.Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

func (r *Registry) Get(name string) (domain.Provider, error) {
	p, ok := r.providers[domain.ProviderKind(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, domain.Errorf(domain.KindUnknownProvider, "unknown provider %q", name)
	}
	return p, nil
}

// Preferred returns the first registered provider in order.
func (r *Registry) Preferred(order ...domain.ProviderKind) (domain.Provider, error) {
	for _, kind := range order {
		if p, ok := r.providers[kind]; ok {
			return p, nil
		}
	}
	return nil, domain.Errorf(domain.KindUnknownProvider, "none of %v is registered", order)
}

// ProviderModels is one entry of the public model catalog.
type ProviderModels struct {
	Provider domain.ProviderKind `json:"provider"`
	Models   []domain.ModelInfo  `json:"models"`
}

// List returns every provider and its models sorted by provider name.
func (r *Registry) List() []ProviderModels {
	out := make([]ProviderModels, 0, len(r.providers))
	for kind, p := range r.providers {
		out = append(out, ProviderModels{Provider: kind, Models: p.Models()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Build creates every provider that has credentials in cfg, plus the mock
// provider and synthesizer when cfg.UseMockLLM is set. The returned
// synthesizer is nil when no TTS backend is available.
func Build(ctx context.Context, cfg *config.Config, hc *http.Client) (*Registry, domain.Synthesizer, error) {
	log := observability.Logger()
	var (
		providers []domain.Provider
		tts       domain.Synthesizer
	)

	if cfg.OpenAI.APIKey != "" {
		c, err := NewOpenAIClient(OpenAIOptions{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			DefaultModel: cfg.OpenAI.DefaultModel,
			HTTPClient:   hc,
		})
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, c)

		s, err := NewOpenAISpeech(SpeechOptions{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.TTSModel,
			Voice:      cfg.TTSVoice,
			HTTPClient: hc,
		})
		if err != nil {
			return nil, nil, err
		}
		tts = s
	}

	if cfg.Claude.APIKey != "" {
		c, err := NewClaudeClient(ClaudeOptions{
			APIKey:       cfg.Claude.APIKey,
			BaseURL:      cfg.Claude.BaseURL,
			DefaultModel: cfg.Claude.DefaultModel,
			HTTPClient:   hc,
		})
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, c)
	}

	if cfg.Gemini.APIKey != "" || (cfg.Mode == config.ModeCloud && cfg.GCPProjectID != "") {
		c, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:       cfg.Gemini.APIKey,
			BaseURL:      cfg.Gemini.BaseURL,
			Project:      cfg.GCPProjectID,
			Location:     cfg.GCPLocation,
			DefaultModel: cfg.Gemini.DefaultModel,
			HTTPClient:   hc,
		})
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, c)
	}

	if cfg.UseMockLLM {
		providers = append(providers, NewMockLLM())
		if tts == nil {
			tts = MockSpeech{}
		}
	}

	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no AI provider configured")
	}
	for _, p := range providers {
		log.Info("provider registered", "provider", p.Kind(), "models", len(p.Models()))
	}
	return NewRegistry(providers...), tts, nil
}
