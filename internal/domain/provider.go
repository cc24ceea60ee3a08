package domain

import (
	"context"
	"strings"
)

// ImageInput is an image forwarded to a provider next to the text content.
type ImageInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// ChatMessage is one provider-agnostic turn of the outbound history.
type ChatMessage struct {
	Role    Role
	Content string
	Images  []ImageInput

	// AttachmentNames lists every file attached to this turn, text or image.
	AttachmentNames []string
}

// CompletionRequest is the canonical request every provider adapter translates.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   int

	// JSON asks the provider for a single JSON object when it supports it.
	JSON bool
}

// HasAttachments reports whether any message carries files.
func (r CompletionRequest) HasAttachments() bool {
	for _, m := range r.Messages {
		if len(m.Images) > 0 || len(m.AttachmentNames) > 0 {
			return true
		}
	}
	return false
}

type StreamEventType string

const (
	StreamDelta StreamEventType = "delta"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one item of a provider stream. A stream ends with exactly one
// StreamDone or StreamError event, then the channel is closed.
type StreamEvent struct {
	Type StreamEventType
	Text string
	Err  error
}

// Completion is the result of a unary call. ResponseID is the upstream
// correlation id, when the provider returns one.
type Completion struct {
	Text       string
	Model      string
	ResponseID string
}

// ModelInfo declares what a provider model can do.
type ModelInfo struct {
	Name          string `json:"name"`
	SupportsFiles bool   `json:"supportsFiles"`
	MaxTokens     int    `json:"maxTokens"`
	Default       bool   `json:"default"`
}

// Provider adapts one upstream AI vendor.
//
// Stream returns synchronously only for request-level problems (unknown model,
// missing capability). Transport failures arrive as a StreamError event.
type Provider interface {
	Kind() ProviderKind
	Models() []ModelInfo
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type AudioFormat string

const (
	AudioMP3 AudioFormat = "mp3"
	AudioWAV AudioFormat = "wav"
	AudioOGG AudioFormat = "ogg"
)

// ParseAudioFormat maps a client supplied format; empty means mp3.
func ParseAudioFormat(s string) (AudioFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mp3", "mpeg":
		return AudioMP3, nil
	case "wav", "wave":
		return AudioWAV, nil
	case "ogg", "opus":
		return AudioOGG, nil
	default:
		return "", Errorf(KindInvalidInput, "unsupported audio format %q", s)
	}
}

func (f AudioFormat) ContentType() string {
	switch f {
	case AudioWAV:
		return "audio/wav"
	case AudioOGG:
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

type SpeechRequest struct {
	Text   string
	Voice  string
	Format AudioFormat
}

type SpeechAudio struct {
	Format      AudioFormat
	ContentType string
	Data        []byte
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechAudio, error)
}
