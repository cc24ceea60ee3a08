// Package sqlstore persists conversations and interviews through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// Store implements domain.ConversationStore and domain.InterviewStore on any
// gorm dialect. Sequence numbers come from a row-locking UPDATE of
// conversations.last_seq, so several server instances can share the database.
type Store struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(dsn string) (*Store, error) {
	return Open(postgres.Open(dsn))
}

// Open wraps an arbitrary dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: false,
	})
	if err != nil {
		return nil, fmt.Errorf("open sql store: %w", err)
	}
	if err := db.AutoMigrate(&conversationModel{}, &messageModel{}, &interviewModel{}, &answerModel{}); err != nil {
		return nil, fmt.Errorf("migrate sql store: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the handle, mainly to tune the pool.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	m := conversationModel{
		ID:        string(conv.ID),
		OwnerID:   string(conv.OwnerID),
		Title:     conv.Title,
		Active:    conv.Active,
		LastSeq:   conv.LastSeq,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("sql CreateConversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var m conversationModel
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("sql GetConversation: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	res := s.db.WithContext(ctx).Model(&conversationModel{}).
		Where("id = ?", string(conv.ID)).
		Updates(map[string]any{
			"title":      conv.Title,
			"active":     conv.Active,
			"updated_at": conv.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("sql UpdateConversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (s *Store) ListConversationsByOwner(ctx context.Context, ownerID domain.UserID, limit int) ([]*domain.Conversation, error) {
	q := s.db.WithContext(ctx).
		Where("owner_id = ? AND active = ?", string(ownerID), true).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []conversationModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql ListConversationsByOwner: %w", err)
	}
	out := make([]*domain.Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// AppendMessages bumps last_seq by len(msgs), reads the new value back and
// inserts the messages below it, all in one transaction.
func (s *Store) AppendMessages(ctx context.Context, id domain.ConversationID, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = domain.MessageID(domain.NewID())
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}

	var first int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversationModel{}).
			Where("id = ? AND active = ?", string(id), true).
			Updates(map[string]any{
				"last_seq":   gorm.Expr("last_seq + ?", len(msgs)),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConversationNotFound
		}

		var conv conversationModel
		if err := tx.Select("last_seq").Where("id = ?", string(id)).Take(&conv).Error; err != nil {
			return err
		}
		first = conv.LastSeq - int64(len(msgs)) + 1

		rows := make([]messageModel, len(msgs))
		for i, m := range msgs {
			rows[i] = messageModel{
				ID:             string(m.ID),
				ConversationID: string(id),
				Seq:            first + int64(i),
				Role:           string(m.Role),
				Content:        m.Content,
				ModelTag:       m.ModelTag,
				CreatedAt:      m.CreatedAt,
			}
			if m.Attachments != "" {
				rows[i].Attachments = datatypes.JSON(m.Attachments)
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConversationNotFound) {
			return err
		}
		return fmt.Errorf("sql AppendMessages: %w", err)
	}

	for i, m := range msgs {
		m.Seq = first + int64(i)
		m.ConversationID = id
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID, limit int) ([]*domain.Message, error) {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("conversation_id = ?", string(id)).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []messageModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql ListMessages: %w", err)
	}
	out := make([]*domain.Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.toDomain()
	}
	return out, nil
}
