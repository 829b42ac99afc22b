package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. An encoding failure becomes a bare 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string    `json:"error"`
	Kind  core.Kind `json:"kind,omitempty"`
}

// ErrorResponse creates an error response carrying a message and its kind.
func ErrorResponse(statusCode int, kind core.Kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message, Kind: kind})
}

// InternalServerError creates a 500 response that reveals nothing.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "", "internal error")
}

// statusForKind maps a failure kind to its HTTP status.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindMonthNotFound, core.KindEntryNotFound, core.KindTemplateNotFound, core.KindUserNotFound:
		return http.StatusNotFound
	case core.KindMonthExists, core.KindUserExists, core.KindWriteConflict:
		return http.StatusConflict
	case core.KindDeletionBlocked:
		return http.StatusForbidden
	case core.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse turns err into a response. Expected failures keep their
// message; anything else is logged and hidden.
func (s *Server) errorResponse(ctx context.Context, op string, err error) *JSONResponseBuilder {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return ErrorResponse(reqErr.status, core.KindInvalidInput, reqErr.message)
	}

	var kindErr *core.Error
	if errors.As(err, &kindErr) {
		msg := kindErr.Message
		if msg == "" {
			msg = string(kindErr.Kind)
		}
		return ErrorResponse(statusForKind(kindErr.Kind), kindErr.Kind, msg)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorResponse(http.StatusServiceUnavailable, "", "request cancelled")
	}

	s.httpLog.LogError(ctx, "Request failed", err, op, log.NewFields())
	return InternalServerError()
}
