package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// ConversationStore keeps conversations in process memory. A single mutex
// serializes sequence assignment, which is enough for one instance.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[domain.ConversationID]*domain.Conversation
	messages      map[domain.ConversationID][]*domain.Message
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		messages:      make(map[domain.ConversationID][]*domain.Message),
	}
}

func (s *ConversationStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return errors.New("conversation already exists")
	}

	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *ConversationStore) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	out := *c
	return &out, nil
}

// UpdateConversation stores title, active flag and UpdatedAt. LastSeq is
// owned by AppendMessages and never overwritten here.
func (s *ConversationStore) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conv.ID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.Title = conv.Title
	c.Active = conv.Active
	c.UpdatedAt = conv.UpdatedAt
	return nil
}

func (s *ConversationStore) ListConversationsByOwner(_ context.Context, ownerID domain.UserID, limit int) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Conversation
	for _, c := range s.conversations {
		if c.OwnerID == ownerID && c.Active {
			out := *c
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *ConversationStore) AppendMessages(_ context.Context, id domain.ConversationID, msgs []*domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || !c.Active {
		return domain.ErrConversationNotFound
	}

	now := time.Now().UTC()
	for _, m := range msgs {
		c.LastSeq++
		m.Seq = c.LastSeq
		m.ConversationID = id
		if m.ID == "" {
			m.ID = domain.MessageID(domain.NewID())
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		stored := *m
		s.messages[id] = append(s.messages[id], &stored)
	}
	c.UpdatedAt = now
	return nil
}

func (s *ConversationStore) ListMessages(_ context.Context, id domain.ConversationID, limit int) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[id]; !ok {
		return nil, domain.ErrConversationNotFound
	}
	msgs := s.messages[id]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domain.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}
