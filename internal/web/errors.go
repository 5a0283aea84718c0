package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client gets the
// mapped user message, as JSON or as an HTML fragment for format=html and
// HTMX requests.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
	"github.com/JonMunkholm/flatload/internal/source"
	"github.com/JonMunkholm/flatload/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Row     int    `json:"row,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// respondError logs err and writes the mapped user message with the status
// statusFor picks.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := loader.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var pe *flatfile.ParseError
	if errors.As(err, &pe) {
		resp.Row = pe.Row
		resp.Column = pe.Column
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	writeJSON(w, status, resp)
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var parseErr *flatfile.ParseError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, loader.ErrTooManyLoads):
		return http.StatusTooManyRequests
	case errors.Is(err, config.ErrNoDatabase):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &parseErr), errors.Is(err, loader.ErrNoRows):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flatfile.ErrInvalidConfig),
		errors.Is(err, loader.ErrInvalidTable),
		errors.Is(err, source.ErrUnknownEncoding),
		errors.Is(err, source.ErrUnknownCompression):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// wantsHTML checks if the client asked for an HTML fragment.
func wantsHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html" || r.Header.Get("HX-Request") == "true"
}
