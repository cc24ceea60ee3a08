package interview

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

const (
	maxTipsPerTurn   = 3
	judgeTemperature = 0.2
	judgeMaxTokens   = 600
)

// Judge asks a provider for a coaching judgment of one answer.
type Judge struct {
	provider domain.Provider
	model    string
}

func NewJudge(provider domain.Provider, model string) *Judge {
	return &Judge{provider: provider, model: model}
}

func (j *Judge) Name() string {
	return string(j.provider.Kind())
}

// Score runs one unary scoring call. A reply that is not a usable judgment
// is reported as provider_unavailable so the caller may try again.
func (j *Judge) Score(ctx context.Context, role string, q domain.PlanQuestion, transcript string) (*domain.Judgment, error) {
	log := observability.LoggerFromContext(ctx).With("judge", j.Name(), "turn", q.Index)
	start := time.Now()

	temp := judgeTemperature
	comp, err := j.provider.Complete(ctx, domain.CompletionRequest{
		Model:  j.model,
		System: strings.TrimSpace(judgeSystemPrompt),
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: judgeUserPrompt(role, q, transcript)},
		},
		Temperature: &temp,
		MaxTokens:   judgeMaxTokens,
		JSON:        true,
	})
	if err != nil {
		log.Warn("scoring call failed", "error", err)
		return nil, err
	}

	jd, err := ParseJudgment(comp.Text)
	if err != nil {
		log.Warn("scoring reply rejected", "error", err)
		return nil, domain.NewError(domain.KindProviderUnavailable, "scoring reply was not a valid judgment", err)
	}
	jd.ResponseID = comp.ResponseID

	log.Debug("turn scored", "score", jd.Score, "elapsed_ms", time.Since(start).Milliseconds())
	return jd, nil
}

// ParseJudgment reads a judgment from a model reply. It tolerates code
// fences and prose around the object, clamps numbers to 0-100 and fills
// missing dimensions with the overall score.
func ParseJudgment(reply string) (*domain.Judgment, error) {
	raw := extractObject(reply)
	if raw == "" || !gjson.Valid(raw) {
		return nil, errors.New("reply does not contain a JSON object")
	}
	doc := gjson.Parse(raw)

	score, ok := number(doc.Get("score"))
	if !ok {
		return nil, errors.New("judgment has no numeric score")
	}
	score = clamp(score)

	jd := &domain.Judgment{
		Score:      score,
		Dimensions: make(map[string]float64, len(domain.Dimensions)),
		Summary:    strings.TrimSpace(doc.Get("summary").String()),
	}
	for _, dim := range domain.Dimensions {
		if v, ok := number(doc.Get("dimensions." + dim)); ok {
			jd.Dimensions[dim] = clamp(v)
		} else {
			jd.Dimensions[dim] = score
		}
	}

	tips := doc.Get("tips")
	if tips.IsArray() {
		for _, t := range tips.Array() {
			if s := strings.TrimSpace(t.String()); s != "" {
				jd.Tips = append(jd.Tips, s)
			}
			if len(jd.Tips) == maxTipsPerTurn {
				break
			}
		}
	} else if s := strings.TrimSpace(tips.String()); s != "" {
		jd.Tips = []string{s}
	}
	return jd, nil
}

func extractObject(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}

// number accepts JSON numbers and numeric strings. NaN and infinities are
// not scores.
func number(r gjson.Result) (float64, bool) {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Float()
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
