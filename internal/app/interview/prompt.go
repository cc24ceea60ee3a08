package interview

import (
	"fmt"
	"strings"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

const judgeSystemPrompt = `
You are an experienced interviewer coaching a candidate through a mock job interview.

You receive one interview question and the candidate's spoken answer (a transcript, so ignore filler words and small grammar slips).

Evaluate the answer and reply with ONE JSON object and nothing else:
{
  "score": <integer 0-100, overall quality of the answer>,
  "dimensions": {
    "clarity": <0-100, is the answer easy to follow>,
    "relevance": <0-100, does it answer the question that was asked>,
    "depth": <0-100, concrete details, trade-offs, results>,
    "structure": <0-100, clear beginning, middle and end>
  },
  "tips": [<1 to 3 short, specific coaching tips>],
  "summary": "<one sentence describing the answer>"
}

Guidelines:
- Write tips and summary in the SAME LANGUAGE as the answer.
- Be fair: an empty or off-topic answer scores below 20, a strong answer with examples above 80.
- Tips must be actionable for the next answer, not generic praise.
`

var typeFocus = map[domain.QuestionType]string{
	domain.QuestionIntro:       "This is an introduction question. Value a concise, relevant personal summary.",
	domain.QuestionTechnical:   "This is a technical question. Value correctness, depth and awareness of trade-offs.",
	domain.QuestionBehavioral:  "This is a behavioral question. Value a concrete situation, the candidate's own actions and the result.",
	domain.QuestionSituational: "This is a situational question. Value a sensible plan, priorities and communication.",
	domain.QuestionClosing:     "This is a closing question. Value curiosity and thoughtful questions about the role.",
}

func judgeUserPrompt(role string, q domain.PlanQuestion, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position: %s\n", role)
	if focus, ok := typeFocus[q.Type]; ok {
		b.WriteString(focus)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nQuestion %d (%s):\n%s\n", q.Index+1, q.Type, q.Text)
	fmt.Fprintf(&b, "\nCandidate answer:\n%s\n", transcript)
	return b.String()
}
