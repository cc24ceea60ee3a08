package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/interview"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type startInterviewRequest struct {
	Role       string   `json:"role"`
	Skills     []string `json:"skills,omitempty"`
	PlanLength int      `json:"planLength,omitempty"`
}

type startInterviewResponse struct {
	SessionID      string              `json:"sessionId"`
	FirstQuestion  domain.PlanQuestion `json:"firstQuestion"`
	TotalQuestions int                 `json:"totalQuestions"`
}

type turnRequest struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex *int   `json:"questionIndex"`
	Transcript    string `json:"transcript"`
}

type turnResponse struct {
	Done         bool                 `json:"done"`
	NextQuestion *domain.PlanQuestion `json:"nextQuestion,omitempty"`
	CoachingTips []string             `json:"coachingTips"`
	ScoreDelta   float64              `json:"scoreDelta"`
	Dimensions   map[string]float64   `json:"dimensions,omitempty"`
	Summary      string               `json:"summary,omitempty"`
	Report       *domain.Report       `json:"report,omitempty"`
}

type answerResponse struct {
	QuestionIndex int                 `json:"questionIndex"`
	QuestionType  domain.QuestionType `json:"questionType"`
	QuestionText  string              `json:"questionText"`
	Transcript    string              `json:"transcript"`
	Score         float64             `json:"score"`
	Dimensions    map[string]float64  `json:"dimensions"`
	Tips          []string            `json:"tips"`
	Summary       string              `json:"summary,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type interviewResponse struct {
	SessionID      string                `json:"sessionId"`
	Role           string                `json:"role"`
	Skills         []string              `json:"skills,omitempty"`
	State          domain.SessionState   `json:"state"`
	TurnPointer    int                   `json:"turnPointer"`
	TotalQuestions int                   `json:"totalQuestions"`
	Plan           []domain.PlanQuestion `json:"plan"`
	Answers        []answerResponse      `json:"answers,omitempty"`
	Report         *domain.Report        `json:"report,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type listInterviewsResponse struct {
	Sessions []interviewResponse `json:"sessions"`
}

// ─────────────────────────────────────────────
// Routing
// ─────────────────────────────────────────────

// /interviews
func (s *Server) handleInterviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := s.interviews.List(r.Context(), principal(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := listInterviewsResponse{Sessions: make([]interviewResponse, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, toInterviewResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// /interviews/session, /interviews/turn, /interviews/{id}[/finalize|/report|/questions/{i}/audio]
func (s *Server) handleInterviewPaths(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/interviews/")
	if len(parts) == 0 {
		notFound(w, r)
		return
	}

	switch {
	case len(parts) == 1 && parts[0] == "session":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		s.handleStartInterview(w, r)
	case len(parts) == 1 && parts[0] == "turn":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		s.handleSubmitTurn(w, r)
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		s.handleGetInterview(w, r, domain.InterviewSessionID(parts[0]))
	case len(parts) == 2 && parts[1] == "finalize":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		s.handleFinalizeInterview(w, r, domain.InterviewSessionID(parts[0]))
	case len(parts) == 2 && parts[1] == "report":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		s.handleInterviewReport(w, r, domain.InterviewSessionID(parts[0]))
	case len(parts) == 4 && parts[1] == "questions" && parts[3] == "audio":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, r, domain.Errorf(domain.KindInvalidInput, "question index must be a number"))
			return
		}
		s.handleQuestionAudio(w, r, domain.InterviewSessionID(parts[0]), index)
	default:
		notFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.interviews.Start(r.Context(), interview.StartInput{
		Owner:      principal(r.Context()),
		Role:       req.Role,
		Skills:     req.Skills,
		PlanLength: req.PlanLength,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startInterviewResponse{
		SessionID:      string(out.Session.ID),
		FirstQuestion:  out.FirstQuestion,
		TotalQuestions: out.TotalQuestions,
	})
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, r, domain.Errorf(domain.KindInvalidInput, "sessionId is required"))
		return
	}
	if req.QuestionIndex == nil {
		writeError(w, r, domain.Errorf(domain.KindInvalidInput, "questionIndex is required"))
		return
	}

	out, err := s.interviews.SubmitTurn(r.Context(), interview.TurnInput{
		Owner:         principal(r.Context()),
		SessionID:     domain.InterviewSessionID(req.SessionID),
		QuestionIndex: *req.QuestionIndex,
		Transcript:    req.Transcript,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{
		Done:         out.Done,
		NextQuestion: out.NextQuestion,
		CoachingTips: out.CoachingTips,
		ScoreDelta:   out.ScoreDelta,
		Dimensions:   out.Answer.Dimensions,
		Summary:      out.Answer.Summary,
		Report:       out.Report,
	})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request, id domain.InterviewSessionID) {
	sess, err := s.interviews.Get(r.Context(), principal(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInterviewResponse(sess))
}

func (s *Server) handleFinalizeInterview(w http.ResponseWriter, r *http.Request, id domain.InterviewSessionID) {
	report, err := s.interviews.Finalize(r.Context(), principal(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInterviewReport(w http.ResponseWriter, r *http.Request, id domain.InterviewSessionID) {
	report, err := s.interviews.Report(r.Context(), principal(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleQuestionAudio(w http.ResponseWriter, r *http.Request, id domain.InterviewSessionID, index int) {
	audio, err := s.interviews.QuestionAudio(r.Context(), principal(r.Context()), id, index, r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAudio(w, audio)
}

// ─────────────────────────────────────────────
// Interview helpers
// ─────────────────────────────────────────────

func toInterviewResponse(s *domain.InterviewSession) interviewResponse {
	out := interviewResponse{
		SessionID:      string(s.ID),
		Role:           s.Role,
		Skills:         s.Skills,
		State:          s.State,
		TurnPointer:    s.TurnPointer,
		TotalQuestions: len(s.Plan),
		Plan:           s.Plan,
		Report:         s.Report,
		CreatedAt:      s.CreatedAt,
	}
	for _, a := range s.Answers {
		out.Answers = append(out.Answers, answerResponse{
			QuestionIndex: a.QuestionIndex,
			QuestionType:  a.QuestionType,
			QuestionText:  a.QuestionText,
			Transcript:    a.Transcript,
			Score:         a.Score,
			Dimensions:    a.Dimensions,
			Tips:          a.Tips,
			Summary:       a.Summary,
			CreatedAt:     a.CreatedAt,
		})
	}
	return out
}
