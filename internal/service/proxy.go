// Package service implements the forwarding proxy and the chat backend.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"voice-chat-proxy/internal/client"
	"voice-chat-proxy/internal/config"
	"voice-chat-proxy/internal/metrics"
	"voice-chat-proxy/internal/model"
)

// strippedRequestHeaders are hop-specific and never replayed to the backend.
var strippedRequestHeaders = []string{"host", "connection", "accept-encoding"}

// strippedResponseHeaders describe the backend hop's encoding, which the
// returned body no longer carries.
var strippedResponseHeaders = []string{"content-encoding", "transfer-encoding"}

// ProxyService forwards inbound requests to the configured backend origin.
// It keeps no per-request state.
type ProxyService struct {
	client  *client.BackendClient
	backend *config.BackendConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyService creates a ProxyService. The origin is read from cfg on every
// call, so an unset origin fails requests rather than construction.
// The metrics parameter is optional.
func NewProxyService(c *client.BackendClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:  c,
		backend: &cfg.Backend,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
	}
}

// Handle replays req against the backend and normalizes the response.
// On failure the error is a *ProxyError; pass both results to Respond to get
// the response for the caller.
func (s *ProxyService) Handle(ctx context.Context, req *model.InboundRequest) (*model.OutboundResponse, error) {
	resp, err := s.handle(ctx, req)
	if err != nil {
		var perr *ProxyError
		if errors.As(err, &perr) && s.metrics != nil {
			s.metrics.ProxyFailures.WithLabelValues(perr.Kind.String()).Inc()
		}
		return nil, err
	}
	return resp, nil
}

func (s *ProxyService) handle(ctx context.Context, req *model.InboundRequest) (*model.OutboundResponse, error) {
	origin := s.backend.Origin
	if origin == "" {
		s.logger.Error("backend origin is not configured", "path", req.Path)
		return nil, configurationError()
	}

	target := BuildTargetURL(origin, s.backend.MountPrefix, req.Path, req.RawQuery)
	header := SanitizeRequestHeaders(req.Headers)

	body, err := decodeBody(req)
	if err != nil {
		s.logger.Warn("inbound body decode failed", "path", req.Path, "err", err)
		return nil, upstreamError(err)
	}

	s.logger.Debug("forwarding request",
		"method", req.Method,
		"path", req.Path,
	)

	bresp, err := s.client.Replay(ctx, req.Method, target, header.HTTP(), body)
	if err != nil {
		s.logger.Error("backend replay failed", "path", req.Path, "err", err)
		return nil, upstreamError(err)
	}

	respHeader := SanitizeResponseHeaders(model.HeadersFromHTTP(bresp.Header))
	text := IsTextContentType(respHeader.Get("content-type"))

	out := &model.OutboundResponse{
		StatusCode:      bresp.StatusCode,
		Headers:         respHeader,
		IsBase64Encoded: !text,
	}
	if text {
		out.Body = decodeUTF8(bresp.Body)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(bresp.Body)
	}

	if s.metrics != nil {
		enc := "text"
		if !text {
			enc = "base64"
		}
		s.metrics.ResponseEncodings.WithLabelValues(enc).Inc()
	}
	return out, nil
}

// BuildTargetURL joins origin, the path with mountPrefix removed once, and
// the raw query. Segments are concatenated as given, never re-encoded.
func BuildTargetURL(origin, mountPrefix, path, rawQuery string) string {
	if mountPrefix != "" {
		path, _ = strings.CutPrefix(path, mountPrefix)
	}
	target := origin + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// SanitizeRequestHeaders copies src without host, connection and accept-encoding.
func SanitizeRequestHeaders(src *model.Headers) *model.Headers {
	dst := src.Clone()
	dst.Del(strippedRequestHeaders...)
	return dst
}

// SanitizeResponseHeaders copies src without content-encoding and transfer-encoding.
func SanitizeResponseHeaders(src *model.Headers) *model.Headers {
	dst := src.Clone()
	dst.Del(strippedResponseHeaders...)
	return dst
}

// IsTextContentType reports whether a body of this content type is returned
// as a UTF-8 string. An empty content type is binary.
func IsTextContentType(ct string) bool {
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "application/json")
}

// decodeBody returns the bytes to replay, or nil when there is no body.
func decodeBody(req *model.InboundRequest) (io.Reader, error) {
	if req.Body == "" {
		return nil, nil
	}
	if !req.IsBase64Encoded {
		return strings.NewReader(req.Body), nil
	}
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return bytes.NewReader(raw), nil
}

// decodeUTF8 decodes b as UTF-8, replacing invalid sequences with U+FFFD.
func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
