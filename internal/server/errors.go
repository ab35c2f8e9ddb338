package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
	"github.com/EndaleK/Synaptic-sub005/internal/study"
	"github.com/EndaleK/Synaptic-sub005/pkg/models"
)

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

func badRequest(message string) requestError {
	return requestError{
		Status:  http.StatusBadRequest,
		Message: message,
		Type:    "invalid_request_error",
	}
}

// toHTTPError maps service and provider errors onto status codes.
func toHTTPError(err error) requestError {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	status, errType := http.StatusBadGateway, "upstream_error"
	switch {
	case errors.Is(err, study.ErrEmptyInput), errors.Is(err, study.ErrTooManyPassages):
		status, errType = http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, llm.ErrNotConfigured):
		status, errType = http.StatusServiceUnavailable, "provider_not_configured"
	case errors.Is(err, study.ErrUnsupported):
		status, errType = http.StatusNotImplemented, "unsupported_capability"
	case errors.Is(err, llm.ErrInvalidResponse):
		errType = "invalid_upstream_response"
	}

	return requestError{
		Status:  status,
		Message: study.UserMessage(err),
		Type:    errType,
	}
}

func writeError(c echo.Context, reqErr requestError) error {
	return c.JSON(reqErr.Status, models.ErrorResponse{
		Error: models.ErrorBody{
			Message:   reqErr.Message,
			Type:      reqErr.Type,
			RequestID: requestID(c),
		},
	})
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = writeError(c, requestError{Status: he.Code, Message: msg, Type: "invalid_request_error"})
		return
	}

	s.logger.Error("unhandled error", "error", err, "request_id", requestID(c))
	_ = writeError(c, requestError{Status: http.StatusInternalServerError, Message: "internal server error", Type: "server_error"})
}
