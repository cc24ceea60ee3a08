package conversation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

const (
	defaultTitle   = "New conversation"
	titleMaxRunes  = 40
	maxTitleLength = 200
	defaultListMax = 50
)

type Options struct {
	// HistoryLimit caps how many stored messages are considered for a prompt.
	HistoryLimit int
	// TokenBudget caps the prompt history in cl100k tokens. Zero disables it.
	TokenBudget int
}

// Service is the owner-scoped accessor over a ConversationStore.
type Service struct {
	store     domain.ConversationStore
	tokenizer *Tokenizer
	opts      Options
	now       func() time.Time
}

func NewService(store domain.ConversationStore, opts Options) *Service {
	return &Service{
		store:     store,
		tokenizer: NewTokenizer(),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Owner domain.UserID
	Title string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Conversation, error) {
	log := observability.LoggerFromContext(ctx)

	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domain.Errorf(domain.KindInvalidInput, "title is longer than %d characters", maxTitleLength)
	}

	now := s.now()
	conv := &domain.Conversation{
		ID:        domain.ConversationID(domain.NewID()),
		OwnerID:   in.Owner,
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		log.Error("failed to create conversation", "error", err)
		return nil, err
	}

	log.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

func (s *Service) List(ctx context.Context, owner domain.UserID, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 || limit > defaultListMax {
		limit = defaultListMax
	}
	return s.store.ListConversationsByOwner(ctx, owner, limit)
}

// Authorize resolves id to an active conversation owned by owner. Anything
// else, including another user's conversation, is reported as not found.
func (s *Service) Authorize(ctx context.Context, owner domain.UserID, id domain.ConversationID) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != owner || !conv.Active {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

// Timeline returns the conversation with its messages in sequence order.
func (s *Service) Timeline(ctx context.Context, owner domain.UserID, id domain.ConversationID, limit int) (*domain.Conversation, []*domain.Message, error) {
	conv, err := s.Authorize(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id, limit)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *Service) Rename(ctx context.Context, owner domain.UserID, id domain.ConversationID, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "title must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domain.Errorf(domain.KindInvalidInput, "title is longer than %d characters", maxTitleLength)
	}

	conv, err := s.Authorize(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Deactivate soft-deletes the conversation. Messages stay in the store.
func (s *Service) Deactivate(ctx context.Context, owner domain.UserID, id domain.ConversationID) error {
	conv, err := s.Authorize(ctx, owner, id)
	if err != nil {
		return err
	}
	conv.Active = false
	conv.UpdatedAt = s.now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info("conversation deactivated", "conversation_id", id)
	return nil
}

type AppendInput struct {
	Role        domain.Role
	Content     string
	ModelTag    string
	Attachments string
}

// Append stores one message and returns it with its sequence number.
func (s *Service) Append(ctx context.Context, owner domain.UserID, id domain.ConversationID, in AppendInput) (*domain.Message, error) {
	if in.Role != domain.RoleUser && in.Role != domain.RoleAssistant {
		return nil, domain.Errorf(domain.KindInvalidInput, "unknown role %q", in.Role)
	}
	if _, err := s.Authorize(ctx, owner, id); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Role:        in.Role,
		Content:     in.Content,
		ModelTag:    in.ModelTag,
		Attachments: in.Attachments,
		CreatedAt:   s.now(),
	}
	if err := s.store.AppendMessages(ctx, id, []*domain.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendTurn commits a user message and the assistant reply in one
// sequence-assigning step. An untitled conversation takes its title from
// the user message.
func (s *Service) AppendTurn(ctx context.Context, conv *domain.Conversation, user, assistant *domain.Message) error {
	log := observability.LoggerFromContext(ctx).With("conversation_id", conv.ID)

	now := s.now()
	user.Role = domain.RoleUser
	assistant.Role = domain.RoleAssistant
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = now
	}

	if err := s.store.AppendMessages(ctx, conv.ID, []*domain.Message{user, assistant}); err != nil {
		log.Error("failed to append turn", "error", err)
		return err
	}

	if conv.Title == "" {
		conv.Title = titleFrom(user.Content)
		conv.UpdatedAt = now
		if err := s.store.UpdateConversation(ctx, conv); err != nil {
			// title is best effort once the turn is stored
			log.Warn("failed to set conversation title", "error", err)
		}
	}

	log.Debug("turn appended", "user_seq", user.Seq, "assistant_seq", assistant.Seq)
	return nil
}

// History returns the most recent limit messages, ascending.
func (s *Service) History(ctx context.Context, owner domain.UserID, id domain.ConversationID, limit int) ([]*domain.Message, error) {
	if _, err := s.Authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id, limit)
}

// Window loads the prompt history of an already authorized conversation:
// at most HistoryLimit messages, trimmed further to the token budget.
func (s *Service) Window(ctx context.Context, id domain.ConversationID) ([]*domain.Message, error) {
	msgs, err := s.store.ListMessages(ctx, id, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	window := s.tokenizer.Fit(msgs, s.opts.TokenBudget)
	if len(window) < len(msgs) {
		observability.LoggerFromContext(ctx).Debug("history trimmed",
			"conversation_id", id,
			"kept", len(window),
			"dropped", len(msgs)-len(window),
		)
	}
	return window, nil
}

// Tokens reports the token count of text with the window tokenizer.
func (s *Service) Tokens(text string) int {
	return s.tokenizer.CountTokens(text)
}

func titleFrom(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	r := []rune(content)
	return string(r[:titleMaxRunes])
}
