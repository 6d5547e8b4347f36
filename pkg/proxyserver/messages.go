package proxyserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/config"
	"github.com/sudip358/claude-route/pkg/convert"
	"github.com/sudip358/claude-route/pkg/debugsink"
	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/errormap"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
	"github.com/sudip358/claude-route/pkg/telemetry"
	"github.com/sudip358/claude-route/pkg/transcode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// handleMessages parses the request, resolves a backend, runs the
// translation pipeline, and dispatches to the driver, writing either a
// single JSON response or an SSE stream.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeTranslationError(w, neutral.ErrProtocolInvariant, "failed to read request body")
		return
	}

	var req anthropicwire.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeTranslationError(w, neutral.ErrProtocolInvariant, "request body is not valid JSON")
		return
	}

	reg := s.registry.Current()

	providerName, modelID, ok := splitModel(req.Model)
	if !ok {
		if _, err := reg.Lookup("anthropic"); err != nil {
			s.proxyRawBody(w, r, body)
			return
		}
		providerName, modelID = "anthropic", req.Model
	}

	backend, err := reg.Lookup(providerName)
	if err != nil {
		s.recordAndWriteTranslationError(w, neutral.ErrUnknownProvider, err.Error())
		return
	}

	if limiter := s.limiters.forBackend(providerName, backend); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			s.writeUpstreamError(w, ctx, providerName, providererrors.NewRateLimitError(providerName, err.Error(), nil, err))
			return
		}
	}

	fromResult, err := convert.FromAnthropic(&req)
	if err != nil {
		s.recordAndWriteTranslationError(w, translationKind(err), err.Error())
		return
	}

	toolChoice, err := convert.ParseToolChoice(req.ToolChoice)
	if err != nil {
		s.recordAndWriteTranslationError(w, translationKind(err), err.Error())
		return
	}

	if err := unsupportedCapability(backend.Kind, modelID, fromResult.Prompt, toolChoice); err != nil {
		s.recordAndWriteTranslationError(w, neutral.ErrUnsupportedMediaType, err.Error())
		return
	}

	drv, err := config.BuildDriver(backend, modelID)
	if err != nil {
		s.recordAndWriteTranslationError(w, neutral.ErrUnknownProvider, err.Error())
		return
	}

	sendReasoning := thinkingEnabled(req.Thinking)

	opts := driver.InvokeOptions{
		Prompt:          fromResult.Prompt,
		Tools:           fromResult.Tools,
		ToolChoice:      toolChoice,
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
		Hints: driver.Hints{
			ReasoningEffort:      backend.ReasoningEffort,
			ReasoningSummaryAuto: true,
			ServiceTier:          backend.ServiceTier,
			ParallelToolCalls:    true,
			SendReasoning:        sendReasoning,
			AutomaticCaching:     backend.AutomaticCaching,
		},
	}

	events, err := telemetry.RecordSpan(ctx, s.tracer, telemetry.SpanOptions{
		Name: "ai.invoke",
		Attributes: []attribute.KeyValue{
			attribute.String("ai.model.provider", providerName),
			attribute.String("ai.model.id", modelID),
			attribute.Bool("ai.stream", req.Stream),
		},
		EndWhenDone: true,
	}, func(ctx context.Context, _ trace.Span) (neutral.EventStream, error) {
		return drv.Invoke(ctx, opts)
	})
	if err != nil {
		s.writeUpstreamError(w, ctx, providerName, err)
		return
	}
	defer events.Close()

	chunkBuf := debugsink.NewChunkBuffer(s.chunkVerbosity)
	wrapped := &recordingStream{inner: events, buf: chunkBuf}

	if req.Stream {
		s.streamResponse(w, ctx, wrapped, req.Model, providerName, chunkBuf)
		return
	}
	s.collectResponse(w, wrapped, req.Model, providerName, chunkBuf)
}

func (s *Server) collectResponse(w http.ResponseWriter, events neutral.EventStream, model, providerName string, chunkBuf *debugsink.ChunkBuffer) {
	resp, err := transcode.Collect(events, true, model)
	if err != nil {
		s.writeStreamOrUpstreamCollectError(w, providerName, err, chunkBuf)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) streamResponse(w http.ResponseWriter, ctx context.Context, events neutral.EventStream, model, providerName string, chunkBuf *debugsink.ChunkBuffer) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writer := transcode.NewStreamWriter(flushingWriter{w: w, f: flusher}, model)

	if err := writer.Drive(events); err != nil {
		if ctx.Err() != nil {
			// client_abort: the writer already attempted its best-effort
			// inline error event; nothing further to do, no log noise.
			return
		}
		var se *transcode.StreamError
		if errors.As(err, &se) {
			s.sink.RecordError(debugsink.ErrorRecord{
				Kind:     se.Kind,
				Provider: providerName,
				Message:  se.Message,
				Chunks:   chunkBuf.Snapshot(),
			})
			return
		}
		s.sink.RecordError(debugsink.ErrorRecord{
			Kind:     neutral.ErrDriverStream,
			Provider: providerName,
			Message:  err.Error(),
			Chunks:   chunkBuf.Snapshot(),
		})
	}
}

// writeStreamOrUpstreamCollectError handles a failure surfaced by
// transcode.Collect: a *transcode.StreamError carries the neutral kind
// the driver reported mid-stream (driver_stream), anything else is
// treated as a protocol-level translation failure.
func (s *Server) writeStreamOrUpstreamCollectError(w http.ResponseWriter, providerName string, err error, chunkBuf *debugsink.ChunkBuffer) {
	var se *transcode.StreamError
	if errors.As(err, &se) {
		status := 400
		s.sink.RecordError(debugsink.ErrorRecord{
			Kind:     se.Kind,
			Provider: providerName,
			Message:  se.Message,
			Chunks:   chunkBuf.Snapshot(),
		})
		s.writeJSONError(w, status, se.Kind, se.Message)
		return
	}
	s.recordAndWriteTranslationError(w, neutral.ErrProtocolInvariant, err.Error())
}

// writeUpstreamError classifies a pre-response driver failure and writes
// the resulting status/body, or stays silent on a client_abort.
func (s *Server) writeUpstreamError(w http.ResponseWriter, ctx context.Context, providerName string, err error) {
	if ctx.Err() != nil {
		return
	}

	var perr *providererrors.ProviderError
	var umt *convert.UnsupportedMediaTypeError
	var pe *convert.ProtocolError
	var rle *providererrors.RateLimitError
	var kind neutral.ErrorKind
	var status int

	switch {
	case errors.As(err, &perr) && perr.StatusCode == 0:
		// No HTTP response at all (dial/TLS/read failure) — a connection-
		// level failure, not a classified provider error body.
		kind, status = errormap.TransportFailure(false)
	case errors.As(err, &perr):
		kind, status = errormap.Classify(errormap.UpstreamError{
			Provider: perr.Provider,
			Code:     perr.ErrorCode,
			Type:     perr.ErrorType,
			Message:  perr.Message,
		})
		if status == 400 && perr.StatusCode != 0 {
			status = perr.StatusCode
		}
	case errors.As(err, &rle):
		// The proxy's own token-bucket limiter rejected the request before
		// it ever reached the backend, so there is no upstream status code
		// to defer to.
		kind, status = neutral.ErrRateLimit, http.StatusTooManyRequests
	case errors.As(err, &umt):
		kind, status = neutral.ErrUnsupportedMediaType, 400
	case errors.As(err, &pe):
		kind, status = neutral.ErrProtocolInvariant, 400
	default:
		kind, status = errormap.TransportFailure(false)
	}

	s.sink.RecordError(debugsink.ErrorRecord{
		Kind:       kind,
		StatusCode: status,
		Provider:   providerName,
		Message:    err.Error(),
	})
	s.writeJSONError(w, status, kind, err.Error())
}

func (s *Server) writeTranslationError(w http.ResponseWriter, kind neutral.ErrorKind, message string) {
	s.writeJSONError(w, 400, kind, message)
}

func (s *Server) recordAndWriteTranslationError(w http.ResponseWriter, kind neutral.ErrorKind, message string) {
	s.sink.RecordError(debugsink.ErrorRecord{Kind: kind, Message: message})
	s.writeTranslationError(w, kind, message)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, kind neutral.ErrorKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errormap.Body(kind, message))
}

// proxyRawBody byte-proxies a request whose body has already been
// consumed to parse its model field, restoring the body before handing
// off to the reverse proxy — the zero-slashes, no-registered-driver
// shorthand case.
func (s *Server) proxyRawBody(w http.ResponseWriter, r *http.Request, body []byte) {
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	r.ContentLength = int64(len(body))
	s.reverseProxy.ServeHTTP(w, r)
}

// thinkingEnabled reports whether the caller turned on extended thinking
// via {"thinking": {"type": "enabled", ...}}. A caller that never set the
// field (or set type to anything else) gets no thinking blocks sent
// upstream. Reasoning that a backend returns is passed back in the
// response either way.
func thinkingEnabled(cfg *anthropicwire.ThinkingConfig) bool {
	return cfg != nil && cfg.Type == "enabled"
}

// unsupportedCapability fails a request fast, before it ever reaches a
// driver, when the target model cannot honor something the request asks
// for: an image part against a model with no vision support, or a forced
// single-tool choice against a model that cannot reliably hold to a
// structured schema. Returns nil when the request is fine as-is.
func unsupportedCapability(kind config.DriverKind, modelID string, prompt neutral.Prompt, toolChoice *neutral.ToolChoice) error {
	if !driver.SupportsImageInput(string(kind), modelID) {
		for _, turn := range prompt.Turns {
			for _, p := range turn.Parts {
				if f, ok := p.(neutral.File); ok && strings.HasPrefix(f.MediaType, "image/") {
					return fmt.Errorf("%w: model %q does not accept image input", providererrors.ErrUnsupportedFeature, modelID)
				}
			}
		}
	}
	if toolChoice != nil && toolChoice.Kind == neutral.ToolChoiceTool && !driver.SupportsStructuredOutput(string(kind), modelID) {
		return fmt.Errorf("%w: model %q does not support forced structured tool output", providererrors.ErrUnsupportedFeature, modelID)
	}
	return nil
}

// translationKind maps a convert package error to its neutral error kind.
func translationKind(err error) neutral.ErrorKind {
	var umt *convert.UnsupportedMediaTypeError
	if errors.As(err, &umt) {
		return neutral.ErrUnsupportedMediaType
	}
	return neutral.ErrProtocolInvariant
}

// splitModel splits "provider/model" on the first slash. ok is false when
// there is no slash at all.
func splitModel(model string) (provider, modelID string, ok bool) {
	idx := strings.IndexByte(model, '/')
	if idx < 0 {
		return "", "", false
	}
	return model[:idx], model[idx+1:], true
}
