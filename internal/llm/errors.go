package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrNotConfigured means the adapter has no API key. The factory treats it
	// as a reason to fall back; at call time it is fatal.
	ErrNotConfigured = errors.New("ai provider not configured")

	// ErrInvalidResponse means the vendor answered but returned nothing usable
	// (no choices, no text block).
	ErrInvalidResponse = errors.New("invalid vendor response")

	// ErrUnknownProvider means a ProviderType outside the supported set.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrStreamConsumed is yielded when a Stream is ranged over a second time.
	ErrStreamConsumed = errors.New("stream already consumed")
)

// APIError is an HTTP error reported by a vendor API.
type APIError struct {
	Provider   ProviderType
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s api error (status %d, %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func notConfigured(t ProviderType) error {
	return fmt.Errorf("%s: %w", t, ErrNotConfigured)
}

func invalidResponse(t ProviderType, reason string) error {
	return fmt.Errorf("%s: %w: %s", t, ErrInvalidResponse, reason)
}

// StatusCode extracts the vendor HTTP status from err, or 0 when err did not
// come from a vendor HTTP response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return oaiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func isAPIError(err error) bool {
	var apiErr *APIError
	var oaiErr *openai.APIError
	var reqErr *openai.RequestError
	return errors.As(err, &apiErr) || errors.As(err, &oaiErr) || errors.As(err, &reqErr)
}

// IsRetryable reports whether err is a transient vendor or transport failure.
// Configuration, invalid-response and cancellation errors never are.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, ErrInvalidResponse),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	status := StatusCode(err)
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case isAPIError(err):
		return "api"
	default:
		return "transport"
	}
}
