package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type ClaudeClient struct {
	client anthropic.Client
	models *modelSet
}

type ClaudeOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

func NewClaudeClient(opts ClaudeOptions) (*ClaudeClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("claude: api key is required")
	}
	ro := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		anthropicoption.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		ro = append(ro, anthropicoption.WithBaseURL(base+"/"))
	}
	if opts.HTTPClient != nil {
		ro = append(ro, anthropicoption.WithHTTPClient(opts.HTTPClient))
	}
	return &ClaudeClient{
		client: anthropic.NewClient(ro...),
		models: claudeModels(opts.DefaultModel),
	}, nil
}

func (c *ClaudeClient) Kind() domain.ProviderKind { return domain.ProviderClaude }

func (c *ClaudeClient) Models() []domain.ModelInfo { return c.models.list() }

func (c *ClaudeClient) params(req domain.CompletionRequest) (anthropic.MessageNewParams, error) {
	m, err := c.models.resolve(req)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	var msgs []anthropic.MessageParam
	for _, cm := range req.Messages {
		if cm.Role == domain.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(cm.Content)))
			continue
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(cm.Images)+1)
		for _, img := range cm.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, base64.StdEncoding.EncodeToString(img.Data)))
		}
		blocks = append(blocks, anthropic.NewTextBlock(cm.Content))
		msgs = append(msgs, anthropic.NewUserMessage(blocks...))
	}

	system := strings.TrimSpace(req.System)
	if req.JSON {
		// Claude has no JSON mode; the instruction goes into the system prompt.
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.Name),
		MaxTokens: int64(maxTokens(req, m)),
		Messages:  msgs,
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		p.Temperature = anthropic.Float(*req.Temperature)
	}
	return p, nil
}

// Stream implements domain.Provider.
func (c *ClaudeClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamEvent, error) {
	p, err := c.params(req)
	if err != nil {
		return nil, err
	}

	em := newEmitter(ctx, domain.ProviderClaude)
	go func() {
		stream := c.client.Messages.NewStreaming(ctx, p)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			td, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok {
				continue
			}
			if !em.delta(td.Text) {
				em.finish(ctx.Err())
				return
			}
		}
		em.finish(stream.Err())
	}()
	return em.out, nil
}

// Complete implements domain.Provider.
func (c *ClaudeClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	p, err := c.params(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, p)
	if err != nil {
		return nil, classify(domain.ProviderClaude, fmt.Errorf("claude messages: %w", err))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, domain.Errorf(domain.KindProviderUnavailable, "claude returned an empty completion")
	}
	return &domain.Completion{Text: sb.String(), Model: string(msg.Model), ResponseID: msg.ID}, nil
}
