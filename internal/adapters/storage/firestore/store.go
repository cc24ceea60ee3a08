package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (MORNINGSTAR_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) conversationsCol() *firestore.CollectionRef {
	return s.client.Collection("conversations")
}

func (s *Store) conversationDoc(id domain.ConversationID) *firestore.DocumentRef {
	return s.conversationsCol().Doc(string(id))
}

func (s *Store) messagesCol(id domain.ConversationID) *firestore.CollectionRef {
	return s.conversationDoc(id).Collection("messages")
}

// messageDoc keys messages by zero padded sequence so document ids sort like seq.
func (s *Store) messageDoc(id domain.ConversationID, seq int64) *firestore.DocumentRef {
	return s.messagesCol(id).Doc(fmt.Sprintf("%010d", seq))
}

func (s *Store) interviewsCol() *firestore.CollectionRef {
	return s.client.Collection("interviews")
}

func (s *Store) interviewDoc(id domain.InterviewSessionID) *firestore.DocumentRef {
	return s.interviewsCol().Doc(string(id))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type conversationDoc struct {
	OwnerID   string    `firestore:"owner_id"`
	Title     string    `firestore:"title"`
	Active    bool      `firestore:"active"`
	LastSeq   int64     `firestore:"last_seq"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (d conversationDoc) toDomain(id string) *domain.Conversation {
	return &domain.Conversation{
		ID:        domain.ConversationID(id),
		OwnerID:   domain.UserID(d.OwnerID),
		Title:     d.Title,
		Active:    d.Active,
		LastSeq:   d.LastSeq,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type messageDoc struct {
	ID          string    `firestore:"id"`
	Seq         int64     `firestore:"seq"`
	Role        string    `firestore:"role"`
	Content     string    `firestore:"content"`
	ModelTag    string    `firestore:"model_tag"`
	Attachments string    `firestore:"attachments"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// ConversationStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	doc := conversationDoc{
		OwnerID:   string(conv.OwnerID),
		Title:     conv.Title,
		Active:    conv.Active,
		LastSeq:   conv.LastSeq,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if _, err := s.conversationDoc(conv.ID).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore CreateConversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	snap, err := s.conversationDoc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("firestore GetConversation: %w", err)
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetConversation decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *Store) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.conversationDoc(conv.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: conv.Title},
		{Path: "active", Value: conv.Active},
		{Path: "updated_at", Value: conv.UpdatedAt},
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("firestore UpdateConversation: %w", err)
	}
	return nil
}

func (s *Store) ListConversationsByOwner(ctx context.Context, ownerID domain.UserID, limit int) ([]*domain.Conversation, error) {
	q := s.conversationsCol().
		Where("owner_id", "==", string(ownerID)).
		Where("active", "==", true).
		OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Conversation
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListConversationsByOwner: %w", err)
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode conversationDoc: %w", err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID))
	}
	return out, nil
}

// AppendMessages reads last_seq and creates the message documents in one
// transaction. Firestore retries the transaction on contention, and Create
// fails if a sequence document already exists.
func (s *Store) AppendMessages(ctx context.Context, id domain.ConversationID, msgs []*domain.Message) error {
	ref := s.conversationDoc(id)
	var assigned []int64

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		assigned = assigned[:0]

		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domain.ErrConversationNotFound
			}
			return err
		}
		var conv conversationDoc
		if err := snap.DataTo(&conv); err != nil {
			return err
		}
		if !conv.Active {
			return domain.ErrConversationNotFound
		}

		now := time.Now().UTC()
		seq := conv.LastSeq
		for _, m := range msgs {
			seq++
			assigned = append(assigned, seq)
			msgID := string(m.ID)
			if msgID == "" {
				msgID = domain.NewID()
			}
			created := m.CreatedAt
			if created.IsZero() {
				created = now
			}
			doc := messageDoc{
				ID:          msgID,
				Seq:         seq,
				Role:        string(m.Role),
				Content:     m.Content,
				ModelTag:    m.ModelTag,
				Attachments: m.Attachments,
				CreatedAt:   created,
			}
			if err := tx.Create(s.messageDoc(id, seq), doc); err != nil {
				return err
			}
			m.ID = domain.MessageID(msgID)
			m.CreatedAt = created
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "last_seq", Value: seq},
			{Path: "updated_at", Value: now},
		})
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConversationNotFound) {
			return err
		}
		return fmt.Errorf("firestore AppendMessages: %w", err)
	}

	for i, m := range msgs {
		m.Seq = assigned[i]
		m.ConversationID = id
	}
	return nil
}

func (s *Store) messageFromDoc(id domain.ConversationID, doc messageDoc) *domain.Message {
	return &domain.Message{
		ID:             domain.MessageID(doc.ID),
		ConversationID: id,
		Seq:            doc.Seq,
		Role:           domain.Role(doc.Role),
		Content:        doc.Content,
		ModelTag:       doc.ModelTag,
		Attachments:    doc.Attachments,
		CreatedAt:      doc.CreatedAt,
	}
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID, limit int) ([]*domain.Message, error) {
	if _, err := s.conversationDoc(id).Get(ctx); err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("firestore ListMessages: %w", err)
	}

	q := s.messagesCol(id).OrderBy("seq", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, s.messageFromDoc(id, doc))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
