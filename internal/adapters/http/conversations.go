package httpadapter

import (
	"net/http"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type titleRequest struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type messageResponse struct {
	ID          string                  `json:"id"`
	Sequence    int64                   `json:"sequence"`
	Role        string                  `json:"role"`
	Content     string                  `json:"content"`
	Model       string                  `json:"model,omitempty"`
	Attachments []domain.AttachmentMeta `json:"attachments,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

type listConversationsResponse struct {
	Conversations []conversationResponse `json:"conversations"`
}

type timelineResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Messages     []messageResponse    `json:"messages"`
}

// ─────────────────────────────────────────────
// Routing
// ─────────────────────────────────────────────

// /conversations
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListConversations(w, r)
	case http.MethodPost:
		s.handleCreateConversation(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

// /conversations/{id}[/{provider}/{stream|ws}]
func (s *Server) handleConversationWithID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/conversations/")
	if len(parts) == 0 {
		notFound(w, r)
		return
	}
	id := domain.ConversationID(parts[0])

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.handleGetConversation(w, r, id)
		case http.MethodPatch:
			s.handleRenameConversation(w, r, id)
		case http.MethodDelete:
			s.handleDeleteConversation(w, r, id)
		default:
			methodNotAllowed(w, r)
		}
	case len(parts) == 3 && parts[2] == "stream":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		s.handleStreamSSE(w, r, id, parts[1])
	case len(parts) == 3 && parts[2] == "ws":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		s.handleStreamWS(w, r, id, parts[1])
	default:
		notFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	conv, err := s.conversations.Create(r.Context(), conversation.CreateInput{
		Owner: principal(r.Context()),
		Title: req.Title,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	convs, err := s.conversations.List(r.Context(), principal(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := listConversationsResponse{Conversations: make([]conversationResponse, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, toConversationResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conv, msgs, err := s.conversations.Timeline(r.Context(), principal(r.Context()), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := timelineResponse{
		Conversation: toConversationResponse(conv),
		Messages:     make([]messageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	var req titleRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := s.conversations.Rename(r.Context(), principal(r.Context()), id, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	if err := s.conversations.Deactivate(r.Context(), principal(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamSSE answers with an event stream once the first delta is
// ready. Anything that fails earlier gets a regular JSON error response.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request, id domain.ConversationID, providerName string) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, files, err := readStreamBody(w, r, s.maxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.relay.Stream(r.Context(), relay.Request{
		Owner:          principal(r.Context()),
		ConversationID: id,
		Content:        body.Content,
		Model:          body.Model,
		Files:          files,
	}, provider, newSSESink(w, r))
	if err != nil && !res.Opened {
		writeError(w, r, err)
	}
}

// ─────────────────────────────────────────────
// Conversation helpers
// ─────────────────────────────────────────────

func toConversationResponse(c *domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:        string(c.ID),
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:          string(m.ID),
		Sequence:    m.Seq,
		Role:        string(m.Role),
		Content:     m.Content,
		Model:       m.ModelTag,
		Attachments: conversation.DecodeAttachments(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
}
