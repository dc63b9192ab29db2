package service

import (
	"errors"
	"net/http"

	"voice-chat-proxy/internal/model"
)

// ErrBackendNotConfigured is wrapped by configuration failures.
var ErrBackendNotConfigured = errors.New("backend origin not configured")

// missingBackendMessage is the exact body returned when no origin is set.
const missingBackendMessage = "BACKEND_URL is not set in Netlify environment variables."

// ErrorKind tags a proxy failure.
type ErrorKind int

const (
	// KindUpstream covers any failure contacting or reading from the backend,
	// including an undecodable inbound body.
	KindUpstream ErrorKind = iota
	// KindConfiguration means the backend origin is missing.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	default:
		return "upstream"
	}
}

// StatusCode maps the kind onto the HTTP status surfaced to the caller.
func (k ErrorKind) StatusCode() int {
	if k == KindConfiguration {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// ProxyError is the failure variant of Handle. Message is the exact
// plain-text body returned to the caller.
type ProxyError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProxyError) Error() string {
	return e.Message
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

func configurationError() *ProxyError {
	return &ProxyError{
		Kind:    KindConfiguration,
		Message: missingBackendMessage,
		Err:     ErrBackendNotConfigured,
	}
}

func upstreamError(err error) *ProxyError {
	return &ProxyError{
		Kind:    KindUpstream,
		Message: "Proxy error: " + err.Error(),
		Err:     err,
	}
}

// Respond converts the result of Handle into the response handed back to the
// hosting environment. A nil err returns resp unchanged.
func Respond(resp *model.OutboundResponse, err error) *model.OutboundResponse {
	if err == nil {
		return resp
	}
	var perr *ProxyError
	if !errors.As(err, &perr) {
		perr = upstreamError(err)
	}
	return &model.OutboundResponse{
		StatusCode: perr.Kind.StatusCode(),
		Body:       perr.Message,
	}
}
