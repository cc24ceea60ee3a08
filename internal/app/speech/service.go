// Package speech validates text-to-speech requests before they reach a
// Synthesizer.
package speech

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

// MaxTextRunes is the longest input accepted by the upstream speech API.
const MaxTextRunes = 4096

type Service struct {
	synth        domain.Synthesizer
	defaultVoice string
	policy       retry.Policy
}

func NewService(synth domain.Synthesizer, defaultVoice string, policy retry.Policy) *Service {
	return &Service{synth: synth, defaultVoice: defaultVoice, policy: policy}
}

type Input struct {
	Text   string
	Voice  string
	Format string
}

func (s *Service) Synthesize(ctx context.Context, in Input) (*domain.SpeechAudio, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "text must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxTextRunes {
		return nil, domain.Errorf(domain.KindInvalidInput, "text has %d characters, the limit is %d", n, MaxTextRunes)
	}
	format, err := domain.ParseAudioFormat(in.Format)
	if err != nil {
		return nil, err
	}
	if s.synth == nil {
		return nil, domain.Errorf(domain.KindUnsupportedCapability, "speech synthesis is not configured")
	}

	voice := strings.TrimSpace(in.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}

	log := observability.LoggerFromContext(ctx).With("voice", voice, "format", format)
	start := time.Now()

	var audio *domain.SpeechAudio
	err = retry.Do(ctx, s.policy, func(int) error {
		var err error
		audio, err = s.synth.Synthesize(ctx, domain.SpeechRequest{Text: text, Voice: voice, Format: format})
		return err
	})
	if err != nil {
		log.Error("speech synthesis failed", "error", err)
		return nil, err
	}

	log.Info("speech synthesized", "bytes", len(audio.Data), "elapsed_ms", time.Since(start).Milliseconds())
	return audio, nil
}
