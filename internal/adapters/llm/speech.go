package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// maxAudioBytes bounds a single synthesized clip.
const maxAudioBytes = 32 << 20

// OpenAISpeech implements domain.Synthesizer with the audio/speech endpoint.
type OpenAISpeech struct {
	client       openai.Client
	model        string
	defaultVoice string
}

type SpeechOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	HTTPClient *http.Client
}

func NewOpenAISpeech(opts SpeechOptions) (*OpenAISpeech, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("tts: api key is required")
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini-tts"
	}
	voice := opts.Voice
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAISpeech{
		client: openai.NewClient(openAIRequestOptions(OpenAIOptions{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
		})...),
		model:        model,
		defaultVoice: voice,
	}, nil
}

// upstreamFormat maps our formats to the response_format values of the API.
func upstreamFormat(f domain.AudioFormat) string {
	switch f {
	case domain.AudioWAV:
		return "wav"
	case domain.AudioOGG:
		return "opus"
	default:
		return "mp3"
	}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, req domain.SpeechRequest) (*domain.SpeechAudio, error) {
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}
	body := map[string]any{
		"model":           s.model,
		"input":           req.Text,
		"voice":           voice,
		"response_format": upstreamFormat(req.Format),
	}

	var resp *http.Response
	err := s.client.Post(ctx, "audio/speech", body, &resp, option.WithHeader("Accept", "application/octet-stream"))
	if err != nil {
		return nil, classify(domain.ProviderOpenAI, fmt.Errorf("openai speech: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, classify(domain.ProviderOpenAI, fmt.Errorf("read speech audio: %w", err))
	}
	if len(data) == 0 {
		return nil, domain.Errorf(domain.KindProviderUnavailable, "openai returned empty audio")
	}
	return &domain.SpeechAudio{Format: req.Format, ContentType: req.Format.ContentType(), Data: data}, nil
}
