package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - logged server-side with the technical detail and request id
//   - mapped through core.MapError to a message, action and support code
//   - returned as JSON with a status derived from the error kind

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/persons/internal/core"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// badRequest marks a client input error. Its text is safe to show.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

// respondError logs err and writes the mapped user message. A zero status is
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}

	var msg core.UserMessage
	var br *badRequest
	if errors.As(err, &br) {
		msg = core.UserMessage{Message: br.msg, Action: "Correct the request and try again", Code: "HTTP400"}
	} else {
		msg = core.MapError(err)
	}

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeErrorMessage(w, status, msg)
}

// writeErrorMessage writes msg as an ErrorResponse.
func writeErrorMessage(w http.ResponseWriter, status int, msg core.UserMessage) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, core.ErrEmptyFieldSelection):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrOperationInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
