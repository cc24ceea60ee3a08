package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// classify turns an SDK or transport error into ProviderUnavailable (worth a
// retry) or ProviderRejected (permanent for this request).
func classify(provider domain.ProviderKind, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindClientCancelled, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(provider, "timed out", err)
	}

	if status, hasBody, ok := statusOf(err); ok {
		// a 4xx/5xx that explains itself is final, apart from 408 and 429
		if retryableStatus(status) || (status >= 500 && !hasBody) {
			return unavailable(provider, fmt.Sprintf("returned %d", status), err)
		}
		return domain.NewError(domain.KindProviderRejected,
			fmt.Sprintf("%s rejected the request (%d)", provider, status), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return unavailable(provider, "is unreachable", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return unavailable(provider, "is unreachable", err)
	}

	// Unknown errors from the SDKs are transport-level (broken streams, EOF).
	return unavailable(provider, "failed", err)
}

func unavailable(provider domain.ProviderKind, what string, err error) error {
	return domain.NewError(domain.KindProviderUnavailable, fmt.Sprintf("%s %s", provider, what), err)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

// statusOf extracts the HTTP status from the SDK error types.
func statusOf(err error) (status int, hasBody bool, ok bool) {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode, oe.RawJSON() != "", true
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode, ae.RawJSON() != "", true
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code, ge.Message != "", true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code, gp.Message != "", true
	}
	return 0, false, false
}
