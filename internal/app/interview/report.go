package interview

import (
	"math"
	"sort"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

const (
	highlightCount = 2
	maxReportTips  = 10
)

// Aggregate builds the report of a session from its answers. The overall
// score is the mean of turn scores weighted by question type.
func Aggregate(plan []domain.PlanQuestion, answers []*domain.Answer, now time.Time) *domain.Report {
	r := &domain.Report{
		DimensionAverages: make(map[string]float64),
		TypeAverages:      make(map[domain.QuestionType]float64),
		Strengths:         []string{},
		Improvements:      []string{},
		Tips:              []string{},
		AnsweredTurns:     len(answers),
		TotalTurns:        len(plan),
		FinalizedAt:       now,
	}
	if len(answers) == 0 {
		return r
	}

	var weighted, weights float64
	dimSum := make(map[string]float64)
	typeSum := make(map[domain.QuestionType]float64)
	typeCount := make(map[domain.QuestionType]int)
	seenTip := make(map[string]bool)

	for _, a := range answers {
		w := a.QuestionType.Weight()
		weighted += w * a.Score
		weights += w

		for _, dim := range domain.Dimensions {
			v, ok := a.Dimensions[dim]
			if !ok {
				v = a.Score
			}
			dimSum[dim] += v
		}
		typeSum[a.QuestionType] += a.Score
		typeCount[a.QuestionType]++

		for _, tip := range a.Tips {
			if !seenTip[tip] && len(r.Tips) < maxReportTips {
				seenTip[tip] = true
				r.Tips = append(r.Tips, tip)
			}
		}
	}

	if weights > 0 {
		r.OverallScore = round1(weighted / weights)
	}
	n := float64(len(answers))
	for _, dim := range domain.Dimensions {
		r.DimensionAverages[dim] = round1(dimSum[dim] / n)
	}
	for t, sum := range typeSum {
		r.TypeAverages[t] = round1(sum / float64(typeCount[t]))
	}

	ranked := append([]string(nil), domain.Dimensions...)
	sort.Slice(ranked, func(i, j int) bool {
		ai, aj := r.DimensionAverages[ranked[i]], r.DimensionAverages[ranked[j]]
		if ai != aj {
			return ai > aj
		}
		return ranked[i] < ranked[j]
	})
	k := min(highlightCount, len(ranked))
	r.Strengths = append(r.Strengths, ranked[:k]...)

	sort.Slice(ranked, func(i, j int) bool {
		ai, aj := r.DimensionAverages[ranked[i]], r.DimensionAverages[ranked[j]]
		if ai != aj {
			return ai < aj
		}
		return ranked[i] < ranked[j]
	})
	r.Improvements = append(r.Improvements, ranked[:k]...)
	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
