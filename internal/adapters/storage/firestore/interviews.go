package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type planQuestionDoc struct {
	Index int    `firestore:"index"`
	Type  string `firestore:"type"`
	Text  string `firestore:"text"`
}

type answerDoc struct {
	QuestionIndex int                `firestore:"question_index"`
	QuestionType  string             `firestore:"question_type"`
	QuestionText  string             `firestore:"question_text"`
	Transcript    string             `firestore:"transcript"`
	Score         float64            `firestore:"score"`
	Dimensions    map[string]float64 `firestore:"dimensions"`
	Tips          []string           `firestore:"tips"`
	Summary       string             `firestore:"summary"`
	ResponseID    string             `firestore:"response_id"`
	CreatedAt     time.Time          `firestore:"created_at"`
}

type reportDoc struct {
	OverallScore      float64            `firestore:"overall_score"`
	DimensionAverages map[string]float64 `firestore:"dimension_averages"`
	TypeAverages      map[string]float64 `firestore:"type_averages"`
	Strengths         []string           `firestore:"strengths"`
	Improvements      []string           `firestore:"improvements"`
	Tips              []string           `firestore:"tips"`
	AnsweredTurns     int                `firestore:"answered_turns"`
	TotalTurns        int                `firestore:"total_turns"`
	FinalizedAt       time.Time          `firestore:"finalized_at"`
}

type interviewDoc struct {
	OwnerID     string            `firestore:"owner_id"`
	Role        string            `firestore:"role"`
	Skills      []string          `firestore:"skills"`
	Plan        []planQuestionDoc `firestore:"plan"`
	TurnPointer int               `firestore:"turn_pointer"`
	Answers     []answerDoc       `firestore:"answers"`
	State       string            `firestore:"state"`
	Report      *reportDoc        `firestore:"report"`
	CreatedAt   time.Time         `firestore:"created_at"`
	UpdatedAt   time.Time         `firestore:"updated_at"`
	FinalizedAt *time.Time        `firestore:"finalized_at"`
}

func toAnswerDoc(a *domain.Answer) answerDoc {
	return answerDoc{
		QuestionIndex: a.QuestionIndex,
		QuestionType:  string(a.QuestionType),
		QuestionText:  a.QuestionText,
		Transcript:    a.Transcript,
		Score:         a.Score,
		Dimensions:    a.Dimensions,
		Tips:          a.Tips,
		Summary:       a.Summary,
		ResponseID:    a.ResponseID,
		CreatedAt:     a.CreatedAt,
	}
}

func toReportDoc(r *domain.Report) *reportDoc {
	if r == nil {
		return nil
	}
	types := make(map[string]float64, len(r.TypeAverages))
	for k, v := range r.TypeAverages {
		types[string(k)] = v
	}
	return &reportDoc{
		OverallScore:      r.OverallScore,
		DimensionAverages: r.DimensionAverages,
		TypeAverages:      types,
		Strengths:         r.Strengths,
		Improvements:      r.Improvements,
		Tips:              r.Tips,
		AnsweredTurns:     r.AnsweredTurns,
		TotalTurns:        r.TotalTurns,
		FinalizedAt:       r.FinalizedAt,
	}
}

func toInterviewDoc(s *domain.InterviewSession) interviewDoc {
	d := interviewDoc{
		OwnerID:     string(s.OwnerID),
		Role:        s.Role,
		Skills:      s.Skills,
		TurnPointer: s.TurnPointer,
		State:       string(s.State),
		Report:      toReportDoc(s.Report),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		FinalizedAt: s.FinalizedAt,
	}
	for _, q := range s.Plan {
		d.Plan = append(d.Plan, planQuestionDoc{Index: q.Index, Type: string(q.Type), Text: q.Text})
	}
	for _, a := range s.Answers {
		d.Answers = append(d.Answers, toAnswerDoc(a))
	}
	return d
}

func (d interviewDoc) toDomain(id string) *domain.InterviewSession {
	s := &domain.InterviewSession{
		ID:          domain.InterviewSessionID(id),
		OwnerID:     domain.UserID(d.OwnerID),
		Role:        d.Role,
		Skills:      d.Skills,
		TurnPointer: d.TurnPointer,
		State:       domain.SessionState(d.State),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		FinalizedAt: d.FinalizedAt,
	}
	for _, q := range d.Plan {
		s.Plan = append(s.Plan, domain.PlanQuestion{Index: q.Index, Type: domain.QuestionType(q.Type), Text: q.Text})
	}
	for _, a := range d.Answers {
		s.Answers = append(s.Answers, &domain.Answer{
			SessionID:     s.ID,
			QuestionIndex: a.QuestionIndex,
			QuestionType:  domain.QuestionType(a.QuestionType),
			QuestionText:  a.QuestionText,
			Transcript:    a.Transcript,
			Score:         a.Score,
			Dimensions:    a.Dimensions,
			Tips:          a.Tips,
			Summary:       a.Summary,
			ResponseID:    a.ResponseID,
			CreatedAt:     a.CreatedAt,
		})
	}
	if r := d.Report; r != nil {
		types := make(map[domain.QuestionType]float64, len(r.TypeAverages))
		for k, v := range r.TypeAverages {
			types[domain.QuestionType(k)] = v
		}
		s.Report = &domain.Report{
			OverallScore:      r.OverallScore,
			DimensionAverages: r.DimensionAverages,
			TypeAverages:      types,
			Strengths:         r.Strengths,
			Improvements:      r.Improvements,
			Tips:              r.Tips,
			AnsweredTurns:     r.AnsweredTurns,
			TotalTurns:        r.TotalTurns,
			FinalizedAt:       r.FinalizedAt,
		}
	}
	return s
}

// ─────────────────────────────────────────
// InterviewStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateInterview(ctx context.Context, sess *domain.InterviewSession) error {
	if _, err := s.interviewDoc(sess.ID).Create(ctx, toInterviewDoc(sess)); err != nil {
		return fmt.Errorf("firestore CreateInterview: %w", err)
	}
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	snap, err := s.interviewDoc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetInterview: %w", err)
	}
	var doc interviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetInterview decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *Store) ListInterviewsByOwner(ctx context.Context, ownerID domain.UserID, limit int) ([]*domain.InterviewSession, error) {
	q := s.interviewsCol().Where("owner_id", "==", string(ownerID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.InterviewSession
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListInterviewsByOwner: %w", err)
		}
		var doc interviewDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode interviewDoc: %w", err)
		}
		doc.Answers = nil
		out = append(out, doc.toDomain(snap.Ref.ID))
	}
	return out, nil
}

// mutateInterview runs fn inside a transaction on the session document.
func (s *Store) mutateInterview(ctx context.Context, id domain.InterviewSessionID, fn func(doc *interviewDoc) error) error {
	ref := s.interviewDoc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		var doc interviewDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.State == string(domain.SessionFinalized) {
			return domain.ErrSessionAlreadyFinalized
		}
		if err := fn(&doc); err != nil {
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return err
		}
		return fmt.Errorf("firestore update interview: %w", err)
	}
	return nil
}

func (s *Store) RecordAnswer(ctx context.Context, id domain.InterviewSessionID, answer *domain.Answer, report *domain.Report) error {
	return s.mutateInterview(ctx, id, func(doc *interviewDoc) error {
		if answer.QuestionIndex != doc.TurnPointer {
			return domain.ErrStaleTurn
		}
		doc.Answers = append(doc.Answers, toAnswerDoc(answer))
		doc.TurnPointer++
		doc.State = string(domain.SessionInProgress)
		doc.UpdatedAt = time.Now().UTC()
		if report != nil {
			finalizeDoc(doc, report)
		}
		return nil
	})
}

func (s *Store) FinalizeInterview(ctx context.Context, id domain.InterviewSessionID, report *domain.Report) error {
	return s.mutateInterview(ctx, id, func(doc *interviewDoc) error {
		finalizeDoc(doc, report)
		return nil
	})
}

func finalizeDoc(doc *interviewDoc, report *domain.Report) {
	at := report.FinalizedAt
	doc.State = string(domain.SessionFinalized)
	doc.Report = toReportDoc(report)
	doc.FinalizedAt = &at
	doc.UpdatedAt = at
}
