package handler

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"voice-chat-proxy/internal/model"
	"voice-chat-proxy/internal/service"
)

// ProxyHandler serves the mount prefix by converting each HTTP request into a
// function event and writing the normalized response back.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request to the backend origin.
func (h *ProxyHandler) Handle(c echo.Context) error {
	in, err := NewInboundRequest(c.Request())
	if err != nil {
		h.logger.Warn("reading request body", "err", err, "path", c.Request().URL.Path)
		return c.String(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Handle(c.Request().Context(), in)
	return h.write(c, service.Respond(resp, err))
}

// NewInboundRequest builds the event for r. Bodies that are not valid UTF-8
// are carried base64 encoded.
func NewInboundRequest(r *http.Request) (*model.InboundRequest, error) {
	in := &model.InboundRequest{
		Method:   r.Method,
		Path:     r.URL.EscapedPath(),
		RawQuery: r.URL.RawQuery,
		Headers:  model.HeadersFromHTTP(r.Header),
	}
	if r.Host != "" {
		in.Headers.Set("host", r.Host)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return in, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(raw) {
		in.Body = string(raw)
	} else {
		in.Body = base64.StdEncoding.EncodeToString(raw)
		in.IsBase64Encoded = true
	}
	return in, nil
}

func (h *ProxyHandler) write(c echo.Context, out *model.OutboundResponse) error {
	body := []byte(out.Body)
	if out.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(out.Body)
		if err != nil {
			h.logger.Error("decoding response body", "err", err)
			return c.String(http.StatusBadGateway, "Proxy error: "+err.Error())
		}
		body = raw
	}

	header := c.Response().Header()
	for k, v := range out.Headers.All() {
		// net/http computes the length of the decoded body itself.
		if k == "content-length" {
			continue
		}
		header.Set(k, v)
	}
	switch {
	case out.Headers == nil:
		header.Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	case !out.Headers.Has("content-type"):
		// A nil entry stops net/http from sniffing one.
		header[echo.HeaderContentType] = nil
	}

	c.Response().WriteHeader(out.StatusCode)
	if _, err := c.Response().Write(body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}
	return nil
}
