package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

// statusClientClosedRequest is the de facto status for a client that left.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindConversationNotFound, domain.KindSessionNotFound, domain.KindUnknownProvider:
		return http.StatusNotFound
	case domain.KindStaleTurn, domain.KindSessionAlreadyFinalized, domain.KindReportNotReady:
		return http.StatusConflict
	case domain.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case domain.KindUnsupportedCapability, domain.KindFileExtractionFailed:
		return http.StatusUnprocessableEntity
	case domain.KindProviderRejected:
		return http.StatusBadGateway
	case domain.KindProviderUnavailable, domain.KindScoringUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindStreamTimeout:
		return http.StatusGatewayTimeout
	case domain.KindClientCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error kind and its public message. Internal
// errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	log := observability.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "kind", kind, "error", err)
	} else {
		log.Info("request rejected", "kind", kind, "error", err)
	}

	msg := domain.PublicMessage(err)
	if kind == domain.KindInternal {
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Kind: domain.KindInvalidInput})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Kind: domain.KindInvalidInput})
}
