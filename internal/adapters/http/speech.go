package httpadapter

import (
	"net/http"
	"strconv"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/speech"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

type ttsRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice,omitempty"`
	Format string `json:"format,omitempty"`
}

// /tts
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req ttsRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), speech.Input{Text: req.Text, Voice: req.Voice, Format: req.Format})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAudio(w, audio)
}

func writeAudio(w http.ResponseWriter, audio *domain.SpeechAudio) {
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}
