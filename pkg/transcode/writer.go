// Package transcode implements the stream transcoder: translating a
// neutral event stream into Anthropic's SSE event schema (StreamWriter) or,
// for non-streaming requests, assembling it into a single JSON response
// (Collect, in collect.go). The writer is built on
// pkg/providerutils/streaming.SSEWriter; the block-index bookkeeping is
// modeled on the open/close discipline of the anthropicStream state
// machine in
// _examples/digitallysavvy-go-ai/pkg/providers/anthropic/language_model.go,
// run in reverse (writing blocks instead of parsing them).
package transcode

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"github.com/sudip358/claude-route/pkg/errormap"
	"github.com/sudip358/claude-route/pkg/neutral"
	"github.com/sudip358/claude-route/pkg/providerutils/streaming"
)

// StreamWriter owns the blockIndex counter and open-block state for
// exactly one response.
type StreamWriter struct {
	sse        *streaming.SSEWriter
	model      string
	blockIndex int
	openKind   string
}

// NewStreamWriter returns a transcoder writing Anthropic SSE frames to w.
func NewStreamWriter(w io.Writer, model string) *StreamWriter {
	return &StreamWriter{sse: streaming.NewSSEWriter(w), model: model}
}

// Drive pulls events from the stream until it is exhausted, translating
// each into the corresponding Anthropic SSE frame(s) per the neutral
// event mapping table. It returns nil once a finish event has produced
// message_stop; a stream error event is forwarded inline and then returned
// as an error so the caller can stop driving the HTTP response.
func (t *StreamWriter) Drive(events neutral.EventStream) error {
	messageID := "msg_" + uuid.NewString()

	for {
		ev, ok, err := events.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch ev.Type {
		case neutral.EventStepStart:
			if err := t.emit("message_start", map[string]interface{}{
				"type": "message_start",
				"message": map[string]interface{}{
					"id":            messageID,
					"type":          "message",
					"role":          "assistant",
					"content":       []interface{}{},
					"model":         t.model,
					"stop_reason":   nil,
					"stop_sequence": nil,
					"usage": map[string]interface{}{
						"input_tokens":                0,
						"output_tokens":               0,
						"cache_creation_input_tokens": 0,
						"cache_read_input_tokens":     0,
					},
				},
			}); err != nil {
				return err
			}

		case neutral.EventTextStart:
			if err := t.openBlock("text", map[string]interface{}{"type": "text", "text": ""}); err != nil {
				return err
			}
		case neutral.EventTextDelta:
			if err := t.delta(map[string]interface{}{"type": "text_delta", "text": ev.Text}); err != nil {
				return err
			}
		case neutral.EventTextEnd:
			if err := t.closeBlock(); err != nil {
				return err
			}

		case neutral.EventReasoningStart:
			if err := t.openBlock("thinking", map[string]interface{}{"type": "thinking", "thinking": ""}); err != nil {
				return err
			}
		case neutral.EventReasoningDelta:
			if err := t.delta(map[string]interface{}{"type": "text_delta", "text": ev.Text}); err != nil {
				return err
			}
		case neutral.EventReasoningEnd:
			if err := t.closeBlock(); err != nil {
				return err
			}

		case neutral.EventToolInputStart:
			if err := t.openBlock("tool_use", map[string]interface{}{
				"type": "tool_use", "id": ev.ToolCallID, "name": ev.ToolName, "input": map[string]interface{}{},
			}); err != nil {
				return err
			}
		case neutral.EventToolInputDelta:
			if err := t.delta(map[string]interface{}{"type": "input_json_delta", "partial_json": ev.JSONFragment}); err != nil {
				return err
			}
		case neutral.EventToolInputEnd:
			if err := t.closeBlock(); err != nil {
				return err
			}

		case neutral.EventToolCall:
			if err := t.openBlock("tool_use", map[string]interface{}{
				"type": "tool_use", "id": ev.ToolCallID, "name": ev.ToolName, "input": ev.Input,
			}); err != nil {
				return err
			}
			if err := t.closeBlock(); err != nil {
				return err
			}

		case neutral.EventStepFinish:
			if err := t.emit("message_delta", map[string]interface{}{
				"type": "message_delta",
				"delta": map[string]interface{}{
					"stop_reason":   neutral.ToAnthropicStopReason(ev.FinishReason),
					"stop_sequence": nil,
				},
				"usage": map[string]interface{}{
					"input_tokens":                ev.Usage.InputTokens,
					"output_tokens":                ev.Usage.OutputTokens,
					"cache_creation_input_tokens": 0,
					"cache_read_input_tokens":     ev.Usage.CachedInputTokens,
				},
			}); err != nil {
				return err
			}

		case neutral.EventFinish:
			err := t.emit("message_stop", map[string]interface{}{"type": "message_stop"})
			t.blockIndex = 0
			return err

		case neutral.EventError:
			kind := ev.ErrKind
			if kind == "" {
				kind = neutral.ErrDriverStream
			}
			_ = t.emit("error", map[string]interface{}{
				"type": "error",
				"error": map[string]interface{}{
					"type":    errormap.WireType(kind),
					"message": ev.ErrMessage,
				},
			})
			t.blockIndex = 0
			return &StreamError{Kind: kind, Message: ev.ErrMessage}
		}
	}
}

func (t *StreamWriter) openBlock(kind string, block map[string]interface{}) error {
	err := t.emit("content_block_start", map[string]interface{}{
		"type": "content_block_start", "index": t.blockIndex, "content_block": block,
	})
	t.openKind = kind
	return err
}

func (t *StreamWriter) delta(delta map[string]interface{}) error {
	return t.emit("content_block_delta", map[string]interface{}{
		"type": "content_block_delta", "index": t.blockIndex, "delta": delta,
	})
}

func (t *StreamWriter) closeBlock() error {
	err := t.emit("content_block_stop", map[string]interface{}{"type": "content_block_stop", "index": t.blockIndex})
	t.blockIndex++
	t.openKind = ""
	return err
}

func (t *StreamWriter) emit(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return t.sse.WriteNamedEvent(eventType, string(data))
}
