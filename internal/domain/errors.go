package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable class of an error surfaced to clients.
type Kind string

const (
	KindInternal                Kind = "internal"
	KindInvalidInput            Kind = "invalid_input"
	KindUnauthenticated         Kind = "unauthenticated"
	KindProviderUnavailable     Kind = "provider_unavailable"
	KindProviderRejected        Kind = "provider_rejected"
	KindUnknownProvider         Kind = "unknown_provider"
	KindUnsupportedCapability   Kind = "unsupported_capability"
	KindUnsupportedFileType     Kind = "unsupported_file_type"
	KindFileExtractionFailed    Kind = "file_extraction_failed"
	KindConversationNotFound    Kind = "conversation_not_found"
	KindSessionNotFound         Kind = "session_not_found"
	KindStaleTurn               Kind = "stale_turn"
	KindScoringUnavailable      Kind = "scoring_unavailable"
	KindSessionAlreadyFinalized Kind = "session_already_finalized"
	KindReportNotReady          Kind = "report_not_ready"
	KindStreamTimeout           Kind = "stream_timeout"
	KindClientCancelled         Kind = "client_cancelled"
)

// Error carries a Kind plus a message that is safe to show to clients.
// Err keeps the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrConversationNotFound    = &Error{Kind: KindConversationNotFound, Message: "conversation not found"}
	ErrSessionNotFound         = &Error{Kind: KindSessionNotFound, Message: "interview session not found"}
	ErrStaleTurn               = &Error{Kind: KindStaleTurn, Message: "question index does not match the current turn"}
	ErrSessionAlreadyFinalized = &Error{Kind: KindSessionAlreadyFinalized, Message: "interview session is already finalized"}
	ErrReportNotReady          = &Error{Kind: KindReportNotReady, Message: "interview report is not available before finalization"}
	ErrUnsupportedFileType     = &Error{Kind: KindUnsupportedFileType, Message: "unsupported file type"}
	ErrStreamTimeout           = &Error{Kind: KindStreamTimeout, Message: "provider stream went silent"}
	ErrClientCancelled         = &Error{Kind: KindClientCancelled, Message: "client went away"}
)

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is transient and may be retried.
func IsRetryable(err error) bool {
	return IsKind(err, KindProviderUnavailable)
}

// PublicMessage returns the client-safe message of err.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}
