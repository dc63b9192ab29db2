package handler

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"voice-chat-proxy/internal/middleware"
)

func serveProxy(t *testing.T, origin string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := NewProxyHandler(newTestProxyService(newTestConfig(origin, ""), nil), discardLogger())

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return rec
}

func TestProxyHandler_Handle_JSON(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" || r.URL.RawQuery != "limit=5" {
			t.Errorf("upstream got %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		if r.Header.Get("X-Trace") != "abc" {
			t.Errorf("X-Trace = %q, want forwarded", r.Header.Get("X-Trace"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend", "yes")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, testMount+"/v1/models?limit=5", http.NoBody)
	req.Header.Set("X-Trace", "abc")
	rec := serveProxy(t, upstream.URL, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != `{"data":[]}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Backend") != "yes" {
		t.Errorf("X-Backend = %q, want backend header copied", rec.Header().Get("X-Backend"))
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestProxyHandler_Handle_BinaryDecoded(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff, 0x10}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, testMount+"/logo.png", http.NoBody)
	rec := serveProxy(t, upstream.URL, req)

	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %v, want raw bytes %v", rec.Body.Bytes(), payload)
	}
}

func TestProxyHandler_Handle_PostBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || string(body) != `{"message":"hi"}` {
			t.Errorf("upstream got %s %q", r.Method, body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodPost, testMount+"/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serveProxy(t, upstream.URL, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestProxyHandler_Handle_MissingOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, testMount+"/v1/models", http.NoBody)
	rec := serveProxy(t, "", req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if want := "BACKEND_URL is not set in Netlify environment variables."; rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestProxyHandler_Handle_Unreachable(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, testMount+"/v1/models", http.NoBody)
	rec := serveProxy(t, "http://127.0.0.1:1", req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.HasPrefix(rec.Body.String(), "Proxy error: ") {
		t.Errorf("body = %q, want Proxy error prefix", rec.Body.String())
	}
}

func TestNewInboundRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "http://site.example"+testMount+"/files/a%20b?x=1&y=2", bytes.NewReader([]byte{0xff, 0x00}))
	req.Header.Set("X-One", "1")

	in, err := NewInboundRequest(req)
	if err != nil {
		t.Fatalf("NewInboundRequest() error = %v", err)
	}
	if in.Method != http.MethodPut {
		t.Errorf("Method = %q", in.Method)
	}
	if in.Path != testMount+"/files/a%20b" {
		t.Errorf("Path = %q, want escaped path kept", in.Path)
	}
	if in.RawQuery != "x=1&y=2" {
		t.Errorf("RawQuery = %q", in.RawQuery)
	}
	if in.Headers.Get("host") != "site.example" || in.Headers.Get("x-one") != "1" {
		t.Errorf("Headers = %v", in.Headers.HTTP())
	}
	if !in.IsBase64Encoded || in.Body != base64.StdEncoding.EncodeToString([]byte{0xff, 0x00}) {
		t.Errorf("binary body should be base64, got %q (base64=%v)", in.Body, in.IsBase64Encoded)
	}
}

func TestNewInboundRequest_TextBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, testMount+"/chat", strings.NewReader("héllo"))

	in, err := NewInboundRequest(req)
	if err != nil {
		t.Fatalf("NewInboundRequest() error = %v", err)
	}
	if in.IsBase64Encoded || in.Body != "héllo" {
		t.Errorf("Body = %q (base64=%v), want plain text", in.Body, in.IsBase64Encoded)
	}
}

func TestProxyHandler_Handle_NoContentTypeNotSniffed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("<html>plain bytes</html>"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, testMount+"/raw", http.NoBody)
	rec := serveProxy(t, upstream.URL, req)

	if ct := rec.Result().Header.Get("Content-Type"); ct != "" {
		t.Errorf("Content-Type = %q, want none", ct)
	}
	if rec.Body.String() != "<html>plain bytes</html>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProxyHandler_ServeStackForwardsHeaders(t *testing.T) {
	got := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	cfg := newTestConfig(upstream.URL, "")
	logger := discardLogger()

	e := echo.New()
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())
	err := RegisterRoutes(e, cfg, nil,
		NewProxyHandler(newTestProxyService(cfg, nil), logger),
		NewChatHandler(newTestChatService(cfg), logger),
		NewHealthHandler(cfg, "test"),
	)
	if err != nil {
		t.Fatalf("RegisterRoutes() error = %v", err)
	}

	sent := map[string]string{
		"Proxy-Authorization": "Basic abc",
		"Keep-Alive":          "timeout=5",
		"Upgrade":             "h2c",
		"Authorization":       "Bearer t",
		"X-Other":             "ok",
	}
	req := httptest.NewRequest(http.MethodGet, testMount+"/v1/models", http.NoBody)
	for k, v := range sent {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept-Encoding", "br")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	backend := <-got
	for k, v := range sent {
		if backend.Get(k) != v {
			t.Errorf("backend %s = %q, want %q", k, backend.Get(k), v)
		}
	}
	if backend.Get("Accept-Encoding") == "br" {
		t.Error("inbound Accept-Encoding should not be replayed")
	}
}
