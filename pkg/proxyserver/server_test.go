package proxyserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/config"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

func fakeOpenAIBackend(t *testing.T, sse string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sse))
	}))
}

func newTestServer(t *testing.T, backends map[string]config.BackendConfig) (*httptest.Server, *Server) {
	t.Helper()
	reg, err := config.NewRegistry(backends)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	srv, handler := NewServer(Config{Registry: config.NewStatic(reg)})
	return httptest.NewServer(handler), srv
}

const sampleOpenAISSE = "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":1}}\n\n" +
	"data: [DONE]\n\n"

func TestHandleMessages_NonStreamCollectsSingleResponse(t *testing.T) {
	backend := fakeOpenAIBackend(t, sampleOpenAISSE)
	defer backend.Close()

	ts, _ := newTestServer(t, map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test", BaseURL: backend.URL},
	})
	defer ts.Close()

	reqBody := anthropicwire.MessagesRequest{
		Model:     "openai/gpt-4o",
		MaxTokens: 100,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hello"`)}},
	}
	b, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out anthropicwire.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Text != "Hi" {
		t.Errorf("content = %+v, want single text block \"Hi\"", out.Content)
	}
	if out.StopReason != "end_turn" {
		t.Errorf("stop_reason = %q, want end_turn", out.StopReason)
	}
}

func TestHandleMessages_StreamWritesSSEFrames(t *testing.T) {
	backend := fakeOpenAIBackend(t, sampleOpenAISSE)
	defer backend.Close()

	ts, _ := newTestServer(t, map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test", BaseURL: backend.URL},
	})
	defer ts.Close()

	reqBody := anthropicwire.MessagesRequest{
		Model:     "openai/gpt-4o",
		MaxTokens: 100,
		Stream:    true,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hello"`)}},
	}
	b, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	body := buf.String()

	for _, want := range []string{"event: message_start", "event: content_block_start", "event: message_stop"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream output missing %q; got:\n%s", want, body)
		}
	}
}

func TestHandleMessages_UnknownProviderReturns400(t *testing.T) {
	ts, _ := newTestServer(t, map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test"},
	})
	defer ts.Close()

	reqBody := anthropicwire.MessagesRequest{
		Model:     "notregistered/some-model",
		MaxTokens: 10,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}
	b, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body anthropicwire.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Type != "invalid_request_error" {
		t.Errorf("error.type = %q, want invalid_request_error", body.Error.Type)
	}
}

func TestHandleMessages_MalformedJSONReturns400(t *testing.T) {
	ts, _ := newTestServer(t, map[string]config.BackendConfig{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecoverer_PanicProducesInternalServerErrorEnvelope(t *testing.T) {
	reg, err := config.NewRegistry(map[string]config.BackendConfig{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	srv, _ := NewServer(Config{Registry: config.NewStatic(reg)})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	srv.recoverer(panicking).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != "Internal server error: kaboom" {
		t.Errorf(`error = %q, want "Internal server error: kaboom"`, body["error"])
	}
}

func TestReverseProxy_OtherPathsForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/complete" {
			t.Errorf("unexpected upstream path %q", r.URL.Path)
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	reg, err := config.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	_, handler := NewServer(Config{Registry: config.NewStatic(reg), AnthropicBaseURL: upstream.URL})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/complete")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
	if resp.Header.Get("X-Upstream") != "yes" {
		t.Errorf("missing proxied header X-Upstream")
	}
}

// zeroSlashRequestBody returns a minimal messages request whose model has
// no "/" separator, exercising the anthropic-shorthand rule.
func zeroSlashRequestBody(t *testing.T, model string) []byte {
	t.Helper()
	reqBody := anthropicwire.MessagesRequest{
		Model:     model,
		MaxTokens: 10,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return b
}

func TestHandleMessages_ZeroSlashFallsBackToByteProxyWhenAnthropicUnregistered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected upstream path %q", r.URL.Path)
		}
		w.Header().Set("X-Upstream", "byte-proxy")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg, err := config.NewRegistry(map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	_, handler := NewServer(Config{Registry: config.NewStatic(reg), AnthropicBaseURL: upstream.URL})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(zeroSlashRequestBody(t, "claude-sonnet-4")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Upstream") != "byte-proxy" {
		t.Errorf("request with zero-slash model and no registered anthropic backend should byte-proxy; missing X-Upstream header")
	}
}

func TestHandleMessages_ZeroSlashRoutesToAnthropicDriverWhenRegistered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "byte-proxy")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	reg, err := config.NewRegistry(map[string]config.BackendConfig{
		"anthropic": {Kind: config.DriverAnthropic, APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	_, handler := NewServer(Config{Registry: config.NewStatic(reg), AnthropicBaseURL: upstream.URL})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(zeroSlashRequestBody(t, "claude-sonnet-4")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Upstream") == "byte-proxy" {
		t.Errorf("request with a registered anthropic backend must not fall through to the byte-proxy path")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected a JSON error from the failed driver dial, got Content-Type %q", ct)
	}
}

func TestHandleMessages_UpstreamRateLimitRewritesStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer backend.Close()

	ts, _ := newTestServer(t, map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test", BaseURL: backend.URL},
	})
	defer ts.Close()

	reqBody := anthropicwire.MessagesRequest{
		Model:     "openai/gpt-4o",
		MaxTokens: 10,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}
	b, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	var body anthropicwire.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Type != "rate_limit_error" {
		t.Errorf("error.type = %q, want rate_limit_error", body.Error.Type)
	}
}

func TestWriteUpstreamError_LocalRateLimitReturns429(t *testing.T) {
	reg, err := config.NewRegistry(map[string]config.BackendConfig{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	srv, _ := NewServer(Config{Registry: config.NewStatic(reg)})

	rec := httptest.NewRecorder()
	rateErr := providererrors.NewRateLimitError("openai", "rate exceeded", nil, context.DeadlineExceeded)
	srv.writeUpstreamError(rec, context.Background(), "openai", rateErr)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body anthropicwire.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Type != "rate_limit_error" {
		t.Errorf("error.type = %q, want rate_limit_error", body.Error.Type)
	}
}

func TestHandleMessages_ClientAbortDuringStreamIsSilent(t *testing.T) {
	// A backend that sends one chunk, then blocks long enough for the
	// client to cancel before any further bytes arrive.
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer backend.Close()
	defer close(release)

	ts, _ := newTestServer(t, map[string]config.BackendConfig{
		"openai": {Kind: config.DriverOpenAI, APIKey: "sk-test", BaseURL: backend.URL},
	})
	defer ts.Close()

	reqBody := anthropicwire.MessagesRequest{
		Model:     "openai/gpt-4o",
		MaxTokens: 10,
		Stream:    true,
		Messages:  []anthropicwire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}
	b, _ := json.Marshal(reqBody)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err == nil {
		buf := make([]byte, 1)
		_, _ = resp.Body.Read(buf)
		resp.Body.Close()
	}
	// The request context expires mid-stream; the handler must not panic
	// and must treat this as a silent client_abort. Reaching this point
	// without a test server crash/hang is the assertion itself.
}
