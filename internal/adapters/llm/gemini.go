package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type GeminiClient struct {
	client *genai.Client
	models *modelSet
}

// GeminiOptions selects the Gemini API (APIKey) or Vertex AI (Project).
type GeminiOptions struct {
	APIKey       string
	BaseURL      string
	Project      string
	Location     string
	DefaultModel string
	HTTPClient   *http.Client
}

// NewGeminiClient creates a client for the Gemini API, or for Vertex AI when
// only a GCP project is configured.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	cc := &genai.ClientConfig{HTTPClient: opts.HTTPClient}
	switch {
	case strings.TrimSpace(opts.APIKey) != "":
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = strings.TrimSpace(opts.APIKey)
	case opts.Project != "":
		cc.Backend = genai.BackendVertexAI
		cc.Project = opts.Project
		cc.Location = opts.Location
	default:
		return nil, fmt.Errorf("gemini: api key or GCP project is required")
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{client: client, models: geminiModels(opts.DefaultModel)}, nil
}

func (g *GeminiClient) Kind() domain.ProviderKind { return domain.ProviderGemini }

func (g *GeminiClient) Models() []domain.ModelInfo { return g.models.list() }

func (g *GeminiClient) request(req domain.CompletionRequest) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	m, err := g.models.resolve(req)
	if err != nil {
		return "", nil, nil, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, cm := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if cm.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(cm.Content)}
		for _, img := range cm.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req, m)),
	}
	if s := strings.TrimSpace(req.System); s != "" {
		// the role of a system instruction is ignored by the API
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return m.Name, contents, cfg, nil
}

// Stream implements domain.Provider.
func (g *GeminiClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamEvent, error) {
	model, contents, cfg, err := g.request(req)
	if err != nil {
		return nil, err
	}

	em := newEmitter(ctx, domain.ProviderGemini)
	go func() {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				em.finish(err)
				return
			}
			if !em.delta(resp.Text()) {
				em.finish(ctx.Err())
				return
			}
		}
		em.finish(nil)
	}()
	return em.out, nil
}

// Complete implements domain.Provider.
func (g *GeminiClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	model, contents, cfg, err := g.request(req)
	if err != nil {
		return nil, err
	}
	res, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, classify(domain.ProviderGemini, fmt.Errorf("gemini generate content: %w", err))
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return nil, domain.Errorf(domain.KindProviderUnavailable, "gemini returned empty text")
	}
	return &domain.Completion{Text: text, Model: res.ModelVersion, ResponseID: res.ResponseID}, nil
}
