package httpadapter

import (
	"net/http"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/interview"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/speech"
)

const defaultMaxUpload = 20 << 20

type Deps struct {
	Conversations *conversation.Service
	Relay         *relay.Gateway
	Providers     *llm.Registry
	Interviews    *interview.Service
	Speech        *speech.Service

	// MaxUploadBytes bounds stream request bodies, files included.
	MaxUploadBytes int64
}

type Server struct {
	conversations *conversation.Service
	relay         *relay.Gateway
	providers     *llm.Registry
	interviews    *interview.Service
	speech        *speech.Service
	maxUpload     int64
}

func NewServer(d Deps) http.Handler {
	s := &Server{
		conversations: d.Conversations,
		relay:         d.Relay,
		providers:     d.Providers,
		interviews:    d.Interviews,
		speech:        d.Speech,
		maxUpload:     d.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/models", s.handleModels)

	// /conversations                          → GET list, POST create
	// /conversations/{id}                     → GET timeline, PATCH rename, DELETE deactivate
	// /conversations/{id}/{provider}/stream   → POST, server-sent events
	// /conversations/{id}/{provider}/ws       → GET, websocket
	mux.HandleFunc("/conversations", s.handleConversations)
	mux.HandleFunc("/conversations/", s.handleConversationWithID)

	// /interviews/session, /interviews/turn and /interviews/{id}/...
	mux.HandleFunc("/interviews", s.handleInterviews)
	mux.HandleFunc("/interviews/", s.handleInterviewPaths)

	mux.HandleFunc("/tts", s.handleTTS)

	return chainMiddlewares(mux, withPrincipal, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// Health and catalog
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelsResponse struct {
	Providers []llm.ProviderModels `json:"providers"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{Providers: s.providers.List()})
}
