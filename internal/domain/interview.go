package domain

import "time"

type QuestionType string

const (
	QuestionIntro       QuestionType = "INTRO"
	QuestionTechnical   QuestionType = "TECHNICAL"
	QuestionBehavioral  QuestionType = "BEHAVIORAL"
	QuestionSituational QuestionType = "SITUATIONAL"
	QuestionClosing     QuestionType = "CLOSING"
)

// Weight is the contribution of a turn of this type to the overall report score.
func (t QuestionType) Weight() float64 {
	switch t {
	case QuestionIntro, QuestionClosing:
		return 0.5
	case QuestionTechnical:
		return 1.5
	default:
		return 1.0
	}
}

// PlanQuestion is one frozen entry of an interview plan.
type PlanQuestion struct {
	Index int          `json:"index"`
	Type  QuestionType `json:"type"`
	Text  string       `json:"text"`
}

type SessionState string

const (
	SessionCreated    SessionState = "CREATED"
	SessionInProgress SessionState = "IN_PROGRESS"
	SessionFinalized  SessionState = "FINALIZED"
)

// Scoring dimensions every judgment is expressed in.
const (
	DimensionClarity   = "clarity"
	DimensionRelevance = "relevance"
	DimensionDepth     = "depth"
	DimensionStructure = "structure"
)

var Dimensions = []string{DimensionClarity, DimensionRelevance, DimensionDepth, DimensionStructure}

// Judgment is the coaching and scoring verdict for one answered turn.
type Judgment struct {
	Score      float64
	Dimensions map[string]float64
	Tips       []string
	Summary    string
	ResponseID string
}

// Answer is the immutable record of one accepted turn. The question fields are a
// snapshot taken when the answer was accepted.
type Answer struct {
	SessionID     InterviewSessionID
	QuestionIndex int
	QuestionType  QuestionType
	QuestionText  string
	Transcript    string
	Score         float64
	Dimensions    map[string]float64
	Tips          []string
	Summary       string
	ResponseID    string
	CreatedAt     Timestamp
}

// Report aggregates the answers of a finalized session.
type Report struct {
	OverallScore      float64                  `json:"overallScore"`
	DimensionAverages map[string]float64       `json:"dimensionAverages"`
	TypeAverages      map[QuestionType]float64 `json:"typeAverages"`
	Strengths         []string                 `json:"strengths"`
	Improvements      []string                 `json:"improvements"`
	Tips              []string                 `json:"tips"`
	AnsweredTurns     int                      `json:"answeredTurns"`
	TotalTurns        int                      `json:"totalTurns"`
	FinalizedAt       time.Time                `json:"finalizedAt"`
}

// InterviewSession is a turn-based interview over a frozen plan.
// TurnPointer is the index of the next question to answer and only moves forward.
type InterviewSession struct {
	ID          InterviewSessionID
	OwnerID     UserID
	Role        string
	Skills      []string
	Plan        []PlanQuestion
	TurnPointer int
	Answers     []*Answer
	State       SessionState
	Report      *Report
	CreatedAt   Timestamp
	UpdatedAt   Timestamp
	FinalizedAt *Timestamp
}

// CurrentQuestion returns the question at the turn pointer, if any remain.
func (s *InterviewSession) CurrentQuestion() (PlanQuestion, bool) {
	if s.TurnPointer < 0 || s.TurnPointer >= len(s.Plan) {
		return PlanQuestion{}, false
	}
	return s.Plan[s.TurnPointer], true
}

func (s *InterviewSession) IsFinalized() bool {
	return s.State == SessionFinalized
}

// Clone returns a deep copy so stores never hand out shared state.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Skills = append([]string(nil), s.Skills...)
	out.Plan = append([]PlanQuestion(nil), s.Plan...)
	out.Answers = make([]*Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		out.Answers = append(out.Answers, a.Clone())
	}
	out.Report = s.Report.Clone()
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		out.FinalizedAt = &t
	}
	return &out
}

func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.DimensionAverages != nil {
		out.DimensionAverages = make(map[string]float64, len(r.DimensionAverages))
		for k, v := range r.DimensionAverages {
			out.DimensionAverages[k] = v
		}
	}
	if r.TypeAverages != nil {
		out.TypeAverages = make(map[QuestionType]float64, len(r.TypeAverages))
		for k, v := range r.TypeAverages {
			out.TypeAverages[k] = v
		}
	}
	out.Strengths = cloneStrings(r.Strengths)
	out.Improvements = cloneStrings(r.Improvements)
	out.Tips = cloneStrings(r.Tips)
	return &out
}

// cloneStrings keeps an empty slice empty rather than nil.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	out := *a
	out.Tips = append([]string(nil), a.Tips...)
	if a.Dimensions != nil {
		out.Dimensions = make(map[string]float64, len(a.Dimensions))
		for k, v := range a.Dimensions {
			out.Dimensions[k] = v
		}
	}
	return &out
}
