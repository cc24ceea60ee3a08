package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// OpenAIClient talks to the OpenAI chat completions API or any compatible
// endpoint reachable through BaseURL.
type OpenAIClient struct {
	client openai.Client
	models *modelSet
}

type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	return &OpenAIClient{
		client: openai.NewClient(openAIRequestOptions(opts)...),
		models: openAIModels(opts.DefaultModel),
	}, nil
}

func openAIRequestOptions(opts OpenAIOptions) []option.RequestOption {
	ro := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		// retries are owned by the relay and the interview service
		option.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		ro = append(ro, option.WithBaseURL(base+"/"))
	}
	if opts.HTTPClient != nil {
		ro = append(ro, option.WithHTTPClient(opts.HTTPClient))
	}
	return ro
}

func (c *OpenAIClient) Kind() domain.ProviderKind { return domain.ProviderOpenAI }

func (c *OpenAIClient) Models() []domain.ModelInfo { return c.models.list() }

func (c *OpenAIClient) params(req domain.CompletionRequest) (openai.ChatCompletionNewParams, error) {
	m, err := c.models.resolve(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, openai.SystemMessage(s))
	}
	for _, cm := range req.Messages {
		switch cm.Role {
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(cm.Content))
		default:
			if len(cm.Images) == 0 {
				msgs = append(msgs, openai.UserMessage(cm.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(cm.Content)}
			for _, img := range cm.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(img),
				}))
			}
			msgs = append(msgs, openai.UserMessage(parts))
		}
	}

	p := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(m.Name),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(int64(maxTokens(req, m))),
	}
	if req.Temperature != nil {
		p.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSON {
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return p, nil
}

// Stream implements domain.Provider.
func (c *OpenAIClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamEvent, error) {
	p, err := c.params(req)
	if err != nil {
		return nil, err
	}

	em := newEmitter(ctx, domain.ProviderOpenAI)
	go func() {
		stream := c.client.Chat.Completions.NewStreaming(ctx, p)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !em.delta(chunk.Choices[0].Delta.Content) {
				em.finish(ctx.Err())
				return
			}
		}
		em.finish(stream.Err())
	}()
	return em.out, nil
}

// Complete implements domain.Provider.
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	p, err := c.params(req)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return nil, classify(domain.ProviderOpenAI, fmt.Errorf("openai chat completion: %w", err))
	}
	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Message.Content) == "" {
		return nil, domain.Errorf(domain.KindProviderUnavailable, "openai returned an empty completion")
	}
	return &domain.Completion{Text: res.Choices[0].Message.Content, Model: res.Model, ResponseID: res.ID}, nil
}

func dataURL(img domain.ImageInput) string {
	mt := img.MimeType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
