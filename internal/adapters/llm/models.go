package llm

import (
	"strings"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// modelSet is the per-provider capability table.
type modelSet struct {
	provider domain.ProviderKind
	models   []domain.ModelInfo
	byName   map[string]domain.ModelInfo
	def      string
}

func newModelSet(provider domain.ProviderKind, defaultModel string, models ...domain.ModelInfo) *modelSet {
	ms := &modelSet{provider: provider, byName: make(map[string]domain.ModelInfo, len(models)+1)}
	defaultModel = strings.TrimSpace(defaultModel)

	for _, m := range models {
		ms.byName[m.Name] = m
		ms.models = append(ms.models, m)
	}
	// A configured default that is not in the table is trusted for text only.
	if defaultModel != "" {
		if _, ok := ms.byName[defaultModel]; !ok {
			m := domain.ModelInfo{Name: defaultModel, MaxTokens: 4096}
			ms.byName[m.Name] = m
			ms.models = append(ms.models, m)
		}
		ms.def = defaultModel
	} else if len(ms.models) > 0 {
		ms.def = ms.models[0].Name
	}

	for i := range ms.models {
		ms.models[i].Default = ms.models[i].Name == ms.def
		ms.byName[ms.models[i].Name] = ms.models[i]
	}
	return ms
}

func (ms *modelSet) list() []domain.ModelInfo {
	return append([]domain.ModelInfo(nil), ms.models...)
}

// resolve picks the requested model (or the default) and checks that it can
// take the attachments carried by req.
func (ms *modelSet) resolve(req domain.CompletionRequest) (domain.ModelInfo, error) {
	name := strings.TrimSpace(req.Model)
	if name == "" {
		name = ms.def
	}
	m, ok := ms.byName[name]
	if !ok {
		return domain.ModelInfo{}, domain.Errorf(domain.KindInvalidInput, "model %q is not available for %s", name, ms.provider)
	}
	if req.HasAttachments() && !m.SupportsFiles {
		return domain.ModelInfo{}, domain.Errorf(domain.KindUnsupportedCapability, "model %q does not accept files", name)
	}
	return m, nil
}

// maxTokens returns the request limit or the model default.
func maxTokens(req domain.CompletionRequest, m domain.ModelInfo) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if m.MaxTokens > 0 {
		return m.MaxTokens
	}
	return 1024
}

func openAIModels(def string) *modelSet {
	return newModelSet(domain.ProviderOpenAI, def,
		domain.ModelInfo{Name: "gpt-4o-mini", SupportsFiles: true, MaxTokens: 4096},
		domain.ModelInfo{Name: "gpt-4o", SupportsFiles: true, MaxTokens: 4096},
		domain.ModelInfo{Name: "gpt-4.1-mini", SupportsFiles: true, MaxTokens: 8192},
		domain.ModelInfo{Name: "gpt-3.5-turbo", SupportsFiles: false, MaxTokens: 2048},
	)
}

func claudeModels(def string) *modelSet {
	return newModelSet(domain.ProviderClaude, def,
		domain.ModelInfo{Name: "claude-sonnet-4-20250514", SupportsFiles: true, MaxTokens: 4096},
		domain.ModelInfo{Name: "claude-3-5-haiku-latest", SupportsFiles: false, MaxTokens: 4096},
	)
}

func geminiModels(def string) *modelSet {
	return newModelSet(domain.ProviderGemini, def,
		domain.ModelInfo{Name: "gemini-2.5-flash", SupportsFiles: true, MaxTokens: 8192},
		domain.ModelInfo{Name: "gemini-2.5-flash-lite", SupportsFiles: true, MaxTokens: 8192},
		domain.ModelInfo{Name: "gemini-2.0-flash", SupportsFiles: true, MaxTokens: 8192},
	)
}

func mockModels() *modelSet {
	return newModelSet(domain.ProviderMock, "mock-echo",
		domain.ModelInfo{Name: "mock-echo", SupportsFiles: true, MaxTokens: 1024},
		domain.ModelInfo{Name: "mock-text", SupportsFiles: false, MaxTokens: 1024},
	)
}
