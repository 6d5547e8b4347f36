// Package errormap implements a pure function from a driver-reported
// failure to an Anthropic-shaped error and a suggested HTTP status. It is
// grounded on _examples/digitallysavvy-go-ai/pkg/provider/errors,
// generalized from that package's fixed error-kind enum into a richer
// per-provider classification table.
package errormap

import (
	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/neutral"
)

// UpstreamError is the information a driver reports about a failed call,
// before any response bytes have been written to the client.
type UpstreamError struct {
	Provider string
	Code     string // e.g. "server_error", "rate_limit_exceeded"
	Type     string // e.g. "tokens" on an OpenAI rate_limit_exceeded error
	Message  string
}

// Classify applies the per-provider classification table to an upstream
// error that occurred before any response bytes were sent, returning the
// Anthropic error kind to emit and the HTTP status to answer the client
// with.
func Classify(err UpstreamError) (neutral.ErrorKind, int) {
	if err.Provider == "openai" {
		switch {
		case err.Code == "server_error":
			return neutral.ErrRateLimit, 429
		case err.Code == "rate_limit_exceeded" && err.Type == "tokens":
			return neutral.ErrRequestTooLarge, 413
		case err.Code == "rate_limit_exceeded":
			return neutral.ErrRateLimit, 429
		}
	}
	return neutral.ErrDriverUpstream, 400
}

// TransportFailure classifies a connection-level failure (dial, TLS, read
// timeout) talking to the backend provider. When headersSent is false the
// caller has not written anything yet and a normal HTTP status applies.
// When true, the response is already committed as a 200 SSE stream and the
// returned status must not be written — the caller emits an inline error
// event instead, since errors after the response has begun must not
// attempt to change the HTTP status.
func TransportFailure(headersSent bool) (kind neutral.ErrorKind, status int) {
	if headersSent {
		return neutral.ErrOverloaded, 0
	}
	return neutral.ErrOverloaded, 503
}

// WireType maps a neutral error kind to the Anthropic error-body "type"
// vocabulary.
func WireType(kind neutral.ErrorKind) string {
	switch kind {
	case neutral.ErrRateLimit:
		return "rate_limit_error"
	case neutral.ErrRequestTooLarge:
		return "request_too_large"
	case neutral.ErrOverloaded:
		return "overloaded_error"
	case neutral.ErrProtocolInvariant, neutral.ErrUnsupportedMediaType, neutral.ErrUnknownProvider:
		return "invalid_request_error"
	case neutral.ErrSchemaAdapt:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// Body constructs the JSON error envelope the proxy writes for
// non-streaming failures.
func Body(kind neutral.ErrorKind, message string) anthropicwire.ErrorBody {
	return anthropicwire.ErrorBody{
		Type: "error",
		Error: anthropicwire.ErrorField{
			Type:    WireType(kind),
			Message: message,
		},
	}
}
