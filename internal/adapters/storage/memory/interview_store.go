package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type InterviewStore struct {
	mu       sync.RWMutex
	sessions map[domain.InterviewSessionID]*domain.InterviewSession
}

func NewInterviewStore() *InterviewStore {
	return &InterviewStore{
		sessions: make(map[domain.InterviewSessionID]*domain.InterviewSession),
	}
}

func (s *InterviewStore) CreateInterview(_ context.Context, sess *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return errors.New("interview session already exists")
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *InterviewStore) GetInterview(_ context.Context, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *InterviewStore) ListInterviewsByOwner(_ context.Context, ownerID domain.UserID, limit int) ([]*domain.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.InterviewSession
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			c := sess.Clone()
			c.Answers = nil
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InterviewStore) RecordAnswer(_ context.Context, id domain.InterviewSessionID, answer *domain.Answer, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.IsFinalized() {
		return domain.ErrSessionAlreadyFinalized
	}
	if answer.QuestionIndex != sess.TurnPointer {
		return domain.ErrStaleTurn
	}

	now := time.Now().UTC()
	sess.Answers = append(sess.Answers, answer.Clone())
	sess.TurnPointer++
	sess.State = domain.SessionInProgress
	sess.UpdatedAt = now
	if report != nil {
		finalize(sess, report)
	}
	return nil
}

func (s *InterviewStore) FinalizeInterview(_ context.Context, id domain.InterviewSessionID, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.IsFinalized() {
		return domain.ErrSessionAlreadyFinalized
	}
	finalize(sess, report)
	return nil
}

func finalize(sess *domain.InterviewSession, report *domain.Report) {
	r := report.Clone()
	at := r.FinalizedAt
	sess.State = domain.SessionFinalized
	sess.Report = r
	sess.FinalizedAt = &at
	sess.UpdatedAt = at
}
