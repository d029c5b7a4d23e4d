// Package apierror provides the v4 control surface's JSON error envelope
// and the taxonomy of errors that surface through it.
package apierror

import (
	"net/http"
	"time"
)

// Response is the JSON body returned for every non-2xx control-surface
// response: {timestamp, status, error, message?, path}.
type Response struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Path      string `json:"path"`
	Trace     string `json:"trace,omitempty"`
}

// New builds a Response for status at path, using message as the detail
// field. Timestamp is epoch milliseconds to match the event stream.
func New(status int, message, path string) Response {
	return Response{
		Timestamp: time.Now().UnixMilli(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      path,
	}
}

// APIError is an error that knows its own HTTP status, for handlers to
// return uniformly without re-deriving status from error type.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func BadRequest(msg string) *APIError          { return &APIError{Status: http.StatusBadRequest, Message: msg} }
func NotFound(msg string) *APIError            { return &APIError{Status: http.StatusNotFound, Message: msg} }
func Conflict(msg string) *APIError            { return &APIError{Status: http.StatusConflict, Message: msg} }
func Unauthorized(msg string) *APIError        { return &APIError{Status: http.StatusUnauthorized, Message: msg} }
func NotImplemented(msg string) *APIError      { return &APIError{Status: http.StatusNotImplemented, Message: msg} }
func Internal(msg string) *APIError            { return &APIError{Status: http.StatusInternalServerError, Message: msg} }
