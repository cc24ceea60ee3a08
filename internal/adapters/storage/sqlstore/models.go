package sqlstore

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type conversationModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	OwnerID   string `gorm:"size:128;not null;index:idx_conversations_owner"`
	Title     string `gorm:"size:255"`
	Active    bool   `gorm:"not null;default:true"`
	LastSeq   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (conversationModel) TableName() string { return "conversations" }

// messageModel carries a unique (conversation_id, seq) index as a second
// guard behind the last_seq counter.
type messageModel struct {
	ID             string         `gorm:"primaryKey;size:64"`
	ConversationID string         `gorm:"size:64;not null;uniqueIndex:idx_messages_conversation_seq"`
	Seq            int64          `gorm:"not null;uniqueIndex:idx_messages_conversation_seq"`
	Role           string         `gorm:"size:16;not null"`
	Content        string         `gorm:"type:text"`
	ModelTag       string         `gorm:"size:128"`
	Attachments    datatypes.JSON
	CreatedAt      time.Time
}

func (messageModel) TableName() string { return "messages" }

type interviewModel struct {
	ID          string         `gorm:"primaryKey;size:64"`
	OwnerID     string         `gorm:"size:128;not null;index:idx_interviews_owner"`
	Role        string         `gorm:"size:64"`
	Skills      datatypes.JSON
	Plan        datatypes.JSON `gorm:"not null"`
	TurnPointer int            `gorm:"not null;default:0"`
	State       string         `gorm:"size:16;not null"`
	Report      datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinalizedAt *time.Time
}

func (interviewModel) TableName() string { return "interview_sessions" }

type answerModel struct {
	ID            uint           `gorm:"primaryKey"`
	SessionID     string         `gorm:"size:64;not null;uniqueIndex:idx_answers_session_question"`
	QuestionIndex int            `gorm:"not null;uniqueIndex:idx_answers_session_question"`
	QuestionType  string         `gorm:"size:16"`
	QuestionText  string         `gorm:"type:text"`
	Transcript    string         `gorm:"type:text"`
	Score         float64        `gorm:"not null"`
	Dimensions    datatypes.JSON
	Tips          datatypes.JSON
	Summary       string         `gorm:"type:text"`
	ResponseID    string         `gorm:"size:128"`
	CreatedAt     time.Time
}

func (answerModel) TableName() string { return "interview_answers" }

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func (m conversationModel) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:        domain.ConversationID(m.ID),
		OwnerID:   domain.UserID(m.OwnerID),
		Title:     m.Title,
		Active:    m.Active,
		LastSeq:   m.LastSeq,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m messageModel) toDomain() *domain.Message {
	return &domain.Message{
		ID:             domain.MessageID(m.ID),
		ConversationID: domain.ConversationID(m.ConversationID),
		Seq:            m.Seq,
		Role:           domain.Role(m.Role),
		Content:        m.Content,
		ModelTag:       m.ModelTag,
		Attachments:    string(m.Attachments),
		CreatedAt:      m.CreatedAt,
	}
}

func toAnswerModel(a *domain.Answer) answerModel {
	return answerModel{
		SessionID:     string(a.SessionID),
		QuestionIndex: a.QuestionIndex,
		QuestionType:  string(a.QuestionType),
		QuestionText:  a.QuestionText,
		Transcript:    a.Transcript,
		Score:         a.Score,
		Dimensions:    mustJSON(a.Dimensions),
		Tips:          mustJSON(a.Tips),
		Summary:       a.Summary,
		ResponseID:    a.ResponseID,
		CreatedAt:     a.CreatedAt,
	}
}

func (m answerModel) toDomain() *domain.Answer {
	a := &domain.Answer{
		SessionID:     domain.InterviewSessionID(m.SessionID),
		QuestionIndex: m.QuestionIndex,
		QuestionType:  domain.QuestionType(m.QuestionType),
		QuestionText:  m.QuestionText,
		Transcript:    m.Transcript,
		Score:         m.Score,
		Summary:       m.Summary,
		ResponseID:    m.ResponseID,
		CreatedAt:     m.CreatedAt,
	}
	_ = json.Unmarshal(m.Dimensions, &a.Dimensions)
	_ = json.Unmarshal(m.Tips, &a.Tips)
	return a
}

func toInterviewModel(s *domain.InterviewSession) interviewModel {
	m := interviewModel{
		ID:          string(s.ID),
		OwnerID:     string(s.OwnerID),
		Role:        s.Role,
		Skills:      mustJSON(s.Skills),
		Plan:        mustJSON(s.Plan),
		TurnPointer: s.TurnPointer,
		State:       string(s.State),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		FinalizedAt: s.FinalizedAt,
	}
	if s.Report != nil {
		m.Report = mustJSON(s.Report)
	}
	return m
}

func (m interviewModel) toDomain(answers []answerModel) *domain.InterviewSession {
	s := &domain.InterviewSession{
		ID:          domain.InterviewSessionID(m.ID),
		OwnerID:     domain.UserID(m.OwnerID),
		Role:        m.Role,
		TurnPointer: m.TurnPointer,
		State:       domain.SessionState(m.State),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		FinalizedAt: m.FinalizedAt,
	}
	_ = json.Unmarshal(m.Skills, &s.Skills)
	_ = json.Unmarshal(m.Plan, &s.Plan)
	if len(m.Report) > 0 && string(m.Report) != "null" {
		var r domain.Report
		if err := json.Unmarshal(m.Report, &r); err == nil {
			s.Report = &r
		}
	}
	for _, a := range answers {
		s.Answers = append(s.Answers, a.toDomain())
	}
	return s
}
