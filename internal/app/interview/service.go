// Package interview drives scored mock interviews over a frozen question plan.
package interview

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/speech"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

const (
	defaultPlanLength = 5
	maxPlanLength     = 20
	maxTranscriptLen  = 20000
	maxRoleLen        = 100
	maxSkills         = 10
)

type Options struct {
	PlanLength int
	Retry      retry.Policy
}

type Service struct {
	store   domain.InterviewStore
	catalog domain.QuestionCatalog
	judge   *Judge
	speech  *speech.Service
	opts    Options
	now     func() time.Time
}

func NewService(store domain.InterviewStore, catalog domain.QuestionCatalog, judge *Judge, tts *speech.Service, opts Options) *Service {
	if opts.PlanLength <= 0 {
		opts.PlanLength = defaultPlanLength
	}
	return &Service{
		store:   store,
		catalog: catalog,
		judge:   judge,
		speech:  tts,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type StartInput struct {
	Owner      domain.UserID
	Role       string
	Skills     []string
	PlanLength int
}

type StartOutput struct {
	Session        *domain.InterviewSession
	FirstQuestion  domain.PlanQuestion
	TotalQuestions int
}

// Start freezes a new plan and opens the session at turn 0.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartOutput, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "role must not be empty")
	}
	if utf8.RuneCountInString(role) > maxRoleLen {
		return nil, domain.Errorf(domain.KindInvalidInput, "role is longer than %d characters", maxRoleLen)
	}
	if len(in.Skills) > maxSkills {
		return nil, domain.Errorf(domain.KindInvalidInput, "at most %d skills are allowed", maxSkills)
	}
	length := in.PlanLength
	if length <= 0 {
		length = s.opts.PlanLength
	}
	if length > maxPlanLength {
		return nil, domain.Errorf(domain.KindInvalidInput, "plan length must be at most %d", maxPlanLength)
	}

	log := observability.LoggerFromContext(ctx).With("role", role, "user_id", in.Owner)

	plan := s.catalog.Candidates(role, in.Skills, length)
	if len(plan) == 0 {
		log.Error("question catalog returned an empty plan")
		return nil, domain.Errorf(domain.KindInternal, "no interview questions available")
	}

	now := s.now()
	sess := &domain.InterviewSession{
		ID:        domain.InterviewSessionID(domain.NewID()),
		OwnerID:   in.Owner,
		Role:      role,
		Skills:    append([]string(nil), in.Skills...),
		Plan:      plan,
		State:     domain.SessionInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInterview(ctx, sess); err != nil {
		log.Error("failed to create interview session", "error", err)
		return nil, err
	}

	log.Info("interview started", "session_id", sess.ID, "questions", len(plan))
	return &StartOutput{Session: sess, FirstQuestion: plan[0], TotalQuestions: len(plan)}, nil
}

type TurnInput struct {
	Owner         domain.UserID
	SessionID     domain.InterviewSessionID
	QuestionIndex int
	Transcript    string
}

// TurnOutput carries either the next question or, when Done, the report.
type TurnOutput struct {
	Answer       *domain.Answer
	NextQuestion *domain.PlanQuestion
	Done         bool
	CoachingTips []string
	ScoreDelta   float64
	Report       *domain.Report
}

// SubmitTurn scores the answer to the current question and advances the
// session by one turn. Scoring failures leave the turn pointer where it was,
// so the same index can be submitted again.
func (s *Service) SubmitTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID, "turn", in.QuestionIndex)

	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "transcript must not be empty")
	}
	if utf8.RuneCountInString(transcript) > maxTranscriptLen {
		return nil, domain.Errorf(domain.KindInvalidInput, "transcript is longer than %d characters", maxTranscriptLen)
	}

	sess, err := s.owned(ctx, in.Owner, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsFinalized() {
		return nil, domain.ErrSessionAlreadyFinalized
	}
	q, ok := sess.CurrentQuestion()
	if !ok || in.QuestionIndex != sess.TurnPointer {
		log.Info("stale turn rejected", "turn_pointer", sess.TurnPointer)
		return nil, domain.ErrStaleTurn
	}

	var jd *domain.Judgment
	policy := s.opts.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn("retrying turn scoring", "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
	}
	err = retry.Do(ctx, policy, func(int) error {
		var err error
		jd, err = s.judge.Score(ctx, sess.Role, q, transcript)
		return err
	})
	if err != nil {
		if domain.IsRetryable(err) {
			log.Error("turn scoring unavailable", "error", err)
			return nil, domain.NewError(domain.KindScoringUnavailable, "the answer could not be scored, please submit it again", err)
		}
		return nil, err
	}

	now := s.now()
	answer := &domain.Answer{
		SessionID:     sess.ID,
		QuestionIndex: q.Index,
		QuestionType:  q.Type,
		QuestionText:  q.Text,
		Transcript:    transcript,
		Score:         jd.Score,
		Dimensions:    jd.Dimensions,
		Tips:          jd.Tips,
		Summary:       jd.Summary,
		ResponseID:    jd.ResponseID,
		CreatedAt:     now,
	}

	var report *domain.Report
	last := sess.TurnPointer+1 == len(sess.Plan)
	if last {
		report = Aggregate(sess.Plan, append(sess.Answers, answer), now)
	}
	if err := s.store.RecordAnswer(ctx, sess.ID, answer, report); err != nil {
		log.Warn("failed to record answer", "error", err)
		return nil, err
	}

	out := &TurnOutput{
		Answer:       answer,
		CoachingTips: append([]string{}, jd.Tips...),
		ScoreDelta:   jd.Score,
	}
	if last {
		out.Done = true
		out.Report = report
		log.Info("interview finalized", "overall_score", report.OverallScore)
	} else {
		next := sess.Plan[sess.TurnPointer+1]
		out.NextQuestion = &next
		log.Info("turn accepted", "score", jd.Score)
	}
	return out, nil
}

// Finalize closes the session early and aggregates the answered turns.
func (s *Service) Finalize(ctx context.Context, owner domain.UserID, id domain.InterviewSessionID) (*domain.Report, error) {
	sess, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if sess.IsFinalized() {
		return nil, domain.ErrSessionAlreadyFinalized
	}

	report := Aggregate(sess.Plan, sess.Answers, s.now())
	if err := s.store.FinalizeInterview(ctx, id, report); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("interview finalized early",
		"session_id", id,
		"answered", report.AnsweredTurns,
		"total", report.TotalTurns,
	)
	return report, nil
}

func (s *Service) Get(ctx context.Context, owner domain.UserID, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	return s.owned(ctx, owner, id)
}

func (s *Service) List(ctx context.Context, owner domain.UserID, limit int) ([]*domain.InterviewSession, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.store.ListInterviewsByOwner(ctx, owner, limit)
}

// Report is only available once the session is finalized.
func (s *Service) Report(ctx context.Context, owner domain.UserID, id domain.InterviewSessionID) (*domain.Report, error) {
	sess, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsFinalized() || sess.Report == nil {
		return nil, domain.ErrReportNotReady
	}
	return sess.Report, nil
}

// QuestionAudio reads a plan question aloud.
func (s *Service) QuestionAudio(ctx context.Context, owner domain.UserID, id domain.InterviewSessionID, index int, format string) (*domain.SpeechAudio, error) {
	sess, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(sess.Plan) {
		return nil, domain.Errorf(domain.KindInvalidInput, "question %d is not part of the plan", index)
	}
	if s.speech == nil {
		return nil, domain.Errorf(domain.KindUnsupportedCapability, "speech synthesis is not configured")
	}
	return s.speech.Synthesize(ctx, speech.Input{Text: sess.Plan[index].Text, Format: format})
}

func (s *Service) owned(ctx context.Context, owner domain.UserID, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	sess, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != owner {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}
