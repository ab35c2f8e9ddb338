package study

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

// UserMessage turns an error from this package or the providers into text
// that can be shown to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Please provide some content to work with"
	case errors.Is(err, ErrTooManyPassages):
		return fmt.Sprintf("Please search at most %d passages at a time", MaxSearchPassages)
	case errors.Is(err, llm.ErrNotConfigured):
		return "AI provider not configured, please add an API key"
	case errors.Is(err, ErrUnsupported):
		return "The configured AI provider does not support this feature"
	case errors.Is(err, llm.ErrInvalidResponse):
		return "The AI provider returned an unexpected response, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "The AI provider took too long to respond, please try again"
	case errors.Is(err, context.Canceled):
		return "The request was canceled"
	}

	switch status := llm.StatusCode(err); {
	case status == http.StatusTooManyRequests:
		return "The AI provider is rate limiting requests, please try again shortly"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "The AI provider rejected the API key, please check your configuration"
	}

	return "The AI provider is currently unavailable, please try again later"
}
