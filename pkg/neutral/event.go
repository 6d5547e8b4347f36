package neutral

// EventType discriminates StreamEvent variants.
type EventType string

const (
	EventStepStart       EventType = "step-start"
	EventTextStart       EventType = "text-start"
	EventTextDelta       EventType = "text-delta"
	EventTextEnd         EventType = "text-end"
	EventReasoningStart  EventType = "reasoning-start"
	EventReasoningDelta  EventType = "reasoning-delta"
	EventReasoningEnd    EventType = "reasoning-end"
	EventToolInputStart  EventType = "tool-input-start"
	EventToolInputDelta  EventType = "tool-input-delta"
	EventToolInputEnd    EventType = "tool-input-end"
	EventToolCall        EventType = "tool-call"
	EventStepFinish      EventType = "step-finish"
	EventFinish          EventType = "finish"
	EventError           EventType = "error"
)

// ErrorKind is the taxonomy of errors the proxy can report.
type ErrorKind string

const (
	ErrProtocolInvariant    ErrorKind = "protocol_invariant"
	ErrUnsupportedMediaType ErrorKind = "unsupported_media_type"
	ErrUnknownProvider      ErrorKind = "unknown_provider"
	ErrSchemaAdapt          ErrorKind = "schema_adapt"
	ErrDriverUpstream       ErrorKind = "driver_upstream"
	ErrDriverStream         ErrorKind = "driver_stream"
	ErrClientAbort          ErrorKind = "client_abort"
	ErrRateLimit            ErrorKind = "rate_limit_error"
	ErrRequestTooLarge      ErrorKind = "request_too_large"
	ErrOverloaded           ErrorKind = "overloaded_error"
)

// StreamEvent is one element of a driver's neutral event stream. Only the
// fields relevant to Type are populated; the rest are zero.
type StreamEvent struct {
	Type EventType

	// text-delta / reasoning-delta
	Text string

	// tool-input-start / tool-call
	ToolCallID string
	ToolName   string

	// tool-input-delta
	JSONFragment string

	// tool-call (one-shot)
	Input map[string]interface{}

	// step-finish
	FinishReason FinishReason
	Usage        Usage

	// error
	ErrKind    ErrorKind
	ErrMessage string
	ErrRaw     interface{}
	// ErrProvider/ErrCode/ErrSubType let errormap.Classify pattern-match
	// on its classification table without re-parsing ErrRaw.
	ErrProvider string
	ErrCode     string
	ErrSubType  string
}

// EventStream is what a driver invocation returns: a pull-model iterator
// over neutral events, one event at a time, mirroring
// provider.TextStream.Next() in _examples/digitallysavvy-go-ai.
type EventStream interface {
	// Next returns the next event, or io.EOF-wrapped via ok=false once the
	// stream is exhausted after a finish/error event.
	Next() (StreamEvent, bool, error)
	Close() error
}
