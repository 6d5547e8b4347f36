// Package proxyserver implements the HTTP entrypoint that accepts the
// Anthropic Messages API on loopback, dispatches POST /v1/messages
// through the translation/driver/transcoder pipeline, and
// reverse-proxies every other path straight through to Anthropic's real
// API. Grounded on _examples/digitallysavvy-go-ai/examples/chi-server
// (chi.NewRouter, middleware.Logger/Recoverer/Timeout, cors.Handler) for
// the router setup and on _examples/digitallysavvy-go-ai/examples/http-server
// for the JSON error envelope and SSE-with-explicit-Flush conventions.
package proxyserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"github.com/sudip358/claude-route/pkg/config"
	"github.com/sudip358/claude-route/pkg/debugsink"
	"github.com/sudip358/claude-route/pkg/errormap"
	"github.com/sudip358/claude-route/pkg/telemetry"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// RegistryProvider is the narrow view of pkg/config the server needs: the
// current, immutable snapshot of registered backends. Both *config.Static
// and *config.Watcher satisfy it, so the server never needs to know
// whether the provider map is ever going to change.
type RegistryProvider interface {
	Current() *config.Registry
}

// Config bundles everything NewServer needs to build a Server.
type Config struct {
	Registry RegistryProvider

	// DebugSink records non-retried errors for later inspection. Defaults to
	// debugsink.Noop{} when nil.
	DebugSink debugsink.Sink

	// ChunkVerbosity controls whether stream chunks are buffered for
	// inclusion alongside a recorded error.
	ChunkVerbosity debugsink.Verbosity

	// AnthropicBaseURL is the upstream target for the byte-proxy path
	// and the implicit-anthropic shorthand. Defaults to
	// https://api.anthropic.com.
	AnthropicBaseURL string

	// RequestTimeout bounds every request, matching chi's
	// middleware.Timeout(60 * time.Second) default.
	RequestTimeout time.Duration

	Log logr.Logger

	// Telemetry configures the OTel span wrapped around each driver
	// invocation. Nil disables it (telemetry.GetTracer returns a noop
	// tracer in that case).
	Telemetry *telemetry.Settings
}

// Server holds the dependencies the HTTP handlers close over. Its only
// mutable state of its own is the per-backend rate limiter cache, guarded
// by that cache's mutex; everything else is managed internally by
// RegistryProvider/DebugSink.
type Server struct {
	registry       RegistryProvider
	sink           debugsink.Sink
	chunkVerbosity debugsink.Verbosity
	reverseProxy   *httputil.ReverseProxy
	log            logr.Logger
	tracer         trace.Tracer
	telemetry      *telemetry.Settings
	limiters       *limiters
}

// NewServer builds a Server and its chi router.
func NewServer(cfg Config) (*Server, http.Handler) {
	if cfg.DebugSink == nil {
		cfg.DebugSink = debugsink.Noop{}
	}
	if cfg.AnthropicBaseURL == "" {
		cfg.AnthropicBaseURL = defaultAnthropicBaseURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	log := cfg.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	telemetrySettings := cfg.Telemetry
	if telemetrySettings == nil {
		telemetrySettings = telemetry.DefaultSettings()
	}

	target, err := url.Parse(cfg.AnthropicBaseURL)
	if err != nil {
		// AnthropicBaseURL is operator-supplied configuration, not request
		// input; a malformed value is a startup-time mistake and panicking
		// here surfaces it immediately instead of on the first proxied
		// request.
		panic("proxyserver: invalid anthropic base URL: " + err.Error())
	}

	s := &Server{
		registry:       cfg.Registry,
		sink:           cfg.DebugSink,
		chunkVerbosity: cfg.ChunkVerbosity,
		reverseProxy:   httputil.NewSingleHostReverseProxy(target),
		log:            log,
		tracer:         telemetry.GetTracer(telemetrySettings),
		telemetry:      telemetrySettings,
		limiters:       newLimiters(),
	}
	baseDirector := s.reverseProxy.Director
	s.reverseProxy.Director = func(req *http.Request) {
		baseDirector(req)
		// Preserve every inbound header except Host — the outbound
		// request must address the real upstream, not whatever Host
		// the caller sent us.
		req.Host = target.Host
	}
	s.reverseProxy.ErrorHandler = s.reverseProxyError

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/v1/messages", s.handleMessages)
	r.NotFound(s.handleReverseProxy)
	r.MethodNotAllowed(s.handleReverseProxy)

	return s, r
}

// recoverer replaces chi's stock middleware.Recoverer with one that writes
// the JSON envelope operators and clients expect from an uncaught handler
// panic, rather than a bare 500 with an empty body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error(fmt.Errorf("%v", rec), "panic in handler", "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": fmt.Sprintf("Internal server error: %v", rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) reverseProxyError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		// client_abort: the caller went away mid-proxy. Silent.
		return
	}
	s.log.Error(err, "reverse proxy to anthropic failed")
	kind, status := errormap.TransportFailure(false)
	s.sink.RecordError(debugsink.ErrorRecord{Kind: kind, Message: err.Error()})
	w.WriteHeader(status)
}
