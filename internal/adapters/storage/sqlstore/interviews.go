package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func (s *Store) CreateInterview(ctx context.Context, sess *domain.InterviewSession) error {
	m := toInterviewModel(sess)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, a := range sess.Answers {
			am := toAnswerModel(a)
			am.SessionID = m.ID
			if err := tx.Create(&am).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sql CreateInterview: %w", err)
	}
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id domain.InterviewSessionID) (*domain.InterviewSession, error) {
	db := s.db.WithContext(ctx)
	var m interviewModel
	if err := db.Where("id = ?", string(id)).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("sql GetInterview: %w", err)
	}
	var answers []answerModel
	if err := db.Where("session_id = ?", m.ID).Order("question_index ASC").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("sql GetInterview answers: %w", err)
	}
	return m.toDomain(answers), nil
}

func (s *Store) ListInterviewsByOwner(ctx context.Context, ownerID domain.UserID, limit int) ([]*domain.InterviewSession, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", string(ownerID)).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []interviewModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql ListInterviewsByOwner: %w", err)
	}
	out := make([]*domain.InterviewSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(nil))
	}
	return out, nil
}

// conflict explains why a guarded UPDATE matched no row.
func (s *Store) conflict(tx *gorm.DB, id domain.InterviewSessionID) error {
	var m interviewModel
	if err := tx.Select("id", "state").Where("id = ?", string(id)).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	if m.State == string(domain.SessionFinalized) {
		return domain.ErrSessionAlreadyFinalized
	}
	return domain.ErrStaleTurn
}

func finalizeColumns(cols map[string]any, report *domain.Report) {
	at := report.FinalizedAt
	cols["state"] = string(domain.SessionFinalized)
	cols["report"] = mustJSON(report)
	cols["finalized_at"] = &at
	cols["updated_at"] = at
}

// RecordAnswer advances the pointer with a compare-and-set UPDATE guarded by
// the expected pointer and a non-final state, then inserts the answer.
func (s *Store) RecordAnswer(ctx context.Context, id domain.InterviewSessionID, answer *domain.Answer, report *domain.Report) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols := map[string]any{
			"turn_pointer": gorm.Expr("turn_pointer + 1"),
			"state":        string(domain.SessionInProgress),
			"updated_at":   time.Now().UTC(),
		}
		if report != nil {
			finalizeColumns(cols, report)
		}
		res := tx.Model(&interviewModel{}).
			Where("id = ? AND turn_pointer = ? AND state <> ?", string(id), answer.QuestionIndex, string(domain.SessionFinalized)).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.conflict(tx, id)
		}

		am := toAnswerModel(answer)
		am.SessionID = string(id)
		return tx.Create(&am).Error
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return err
		}
		return fmt.Errorf("sql RecordAnswer: %w", err)
	}
	return nil
}

func (s *Store) FinalizeInterview(ctx context.Context, id domain.InterviewSessionID, report *domain.Report) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols := map[string]any{}
		finalizeColumns(cols, report)
		res := tx.Model(&interviewModel{}).
			Where("id = ? AND state <> ?", string(id), string(domain.SessionFinalized)).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.conflict(tx, id)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return err
		}
		return fmt.Errorf("sql FinalizeInterview: %w", err)
	}
	return nil
}
