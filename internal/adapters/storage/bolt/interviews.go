package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type answerRecord struct {
	QuestionIndex int                `json:"question_index"`
	QuestionType  string             `json:"question_type"`
	QuestionText  string             `json:"question_text"`
	Transcript    string             `json:"transcript"`
	Score         float64            `json:"score"`
	Dimensions    map[string]float64 `json:"dimensions,omitempty"`
	Tips          []string           `json:"tips,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	ResponseID    string             `json:"response_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

type interviewRecord struct {
	ID          string                `json:"id"`
	OwnerID     string                `json:"owner_id"`
	Role        string                `json:"role"`
	Skills      []string              `json:"skills,omitempty"`
	Plan        []domain.PlanQuestion `json:"plan"`
	TurnPointer int                   `json:"turn_pointer"`
	Answers     []answerRecord        `json:"answers,omitempty"`
	State       string                `json:"state"`
	Report      *domain.Report        `json:"report,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	FinalizedAt *time.Time            `json:"finalized_at,omitempty"`
}

func toInterviewRecord(s *domain.InterviewSession) interviewRecord {
	rec := interviewRecord{
		ID:          string(s.ID),
		OwnerID:     string(s.OwnerID),
		Role:        s.Role,
		Skills:      s.Skills,
		Plan:        s.Plan,
		TurnPointer: s.TurnPointer,
		State:       string(s.State),
		Report:      s.Report,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		FinalizedAt: s.FinalizedAt,
	}
	for _, a := range s.Answers {
		rec.Answers = append(rec.Answers, toAnswerRecord(a))
	}
	return rec
}

func toAnswerRecord(a *domain.Answer) answerRecord {
	return answerRecord{
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

func (r interviewRecord) toDomain() *domain.InterviewSession {
	s := &domain.InterviewSession{
		ID:          domain.InterviewSessionID(r.ID),
		OwnerID:     domain.UserID(r.OwnerID),
		Role:        r.Role,
		Skills:      r.Skills,
		Plan:        r.Plan,
		TurnPointer: r.TurnPointer,
		State:       domain.SessionState(r.State),
		Report:      r.Report,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		FinalizedAt: r.FinalizedAt,
	}
	for _, a := range r.Answers {
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
	return s
}

func getInterview(tx *bolt.Tx, id domain.InterviewSessionID) (*interviewRecord, error) {
	v := tx.Bucket(bucketInterviews).Get([]byte(id))
	if v == nil {
		return nil, domain.ErrSessionNotFound
	}
	var rec interviewRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode interview %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) CreateInterview(_ context.Context, sess *domain.InterviewSession) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInterviews)
		if b.Get([]byte(sess.ID)) != nil {
			return errors.New("interview session already exists")
		}
		return putJSON(b, []byte(sess.ID), toInterviewRecord(sess))
	})
}

func (s *Store) GetInterview(_ context.Context, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	var out *domain.InterviewSession
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getInterview(tx, id)
		if err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	return out, err
}

func (s *Store) ListInterviewsByOwner(_ context.Context, ownerID domain.UserID, limit int) ([]*domain.InterviewSession, error) {
	var out []*domain.InterviewSession
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInterviews).ForEach(func(_, v []byte) error {
			var rec interviewRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.OwnerID == string(ownerID) {
				rec.Answers = nil
				out = append(out, rec.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt ListInterviewsByOwner: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RecordAnswer(_ context.Context, id domain.InterviewSessionID, answer *domain.Answer, report *domain.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getInterview(tx, id)
		if err != nil {
			return err
		}
		if rec.State == string(domain.SessionFinalized) {
			return domain.ErrSessionAlreadyFinalized
		}
		if answer.QuestionIndex != rec.TurnPointer {
			return domain.ErrStaleTurn
		}
		rec.Answers = append(rec.Answers, toAnswerRecord(answer))
		rec.TurnPointer++
		rec.State = string(domain.SessionInProgress)
		rec.UpdatedAt = time.Now().UTC()
		if report != nil {
			finalizeRecord(rec, report)
		}
		return putJSON(tx.Bucket(bucketInterviews), []byte(id), rec)
	})
}

func (s *Store) FinalizeInterview(_ context.Context, id domain.InterviewSessionID, report *domain.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getInterview(tx, id)
		if err != nil {
			return err
		}
		if rec.State == string(domain.SessionFinalized) {
			return domain.ErrSessionAlreadyFinalized
		}
		finalizeRecord(rec, report)
		return putJSON(tx.Bucket(bucketInterviews), []byte(id), rec)
	})
}

func finalizeRecord(rec *interviewRecord, report *domain.Report) {
	at := report.FinalizedAt
	rec.State = string(domain.SessionFinalized)
	rec.Report = report
	rec.FinalizedAt = &at
	rec.UpdatedAt = at
}
