package transcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/convert"
	"github.com/sudip358/claude-route/pkg/jsonparser"
	"github.com/sudip358/claude-route/pkg/neutral"
)

// StreamError reports that the driver emitted an EventError while Collect
// or StreamWriter.Drive were consuming its event stream, preserving the
// neutral error kind so the proxy can run it back through errormap instead
// of matching on a formatted string.
type StreamError struct {
	Kind    neutral.ErrorKind
	Message string
}

func (e *StreamError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// decodeToolInput parses a tool call's accumulated JSON fragment, falling
// back to jsonparser's brace-closing repair when a driver ends the stream
// (or its final chunk) mid-object — input_json_delta fragments are not
// guaranteed to form complete JSON on every upstream.
func decodeToolInput(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	result := jsonparser.ParsePartialJSON(raw)
	if m, ok := result.Value.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// Collect drives a neutral event stream to completion and assembles a
// single non-streaming MessagesResponse: the transcoder still drives the
// driver to completion, re-emits the resulting assistant turn through
// ToAnthropic, and writes one JSON object.
func Collect(events neutral.EventStream, sendReasoning bool, model string) (anthropicwire.MessagesResponse, error) {
	var parts []neutral.Part
	var usage neutral.Usage
	var finish neutral.FinishReason

	var textBuf, reasoningBuf, toolJSONBuf strings.Builder
	var curToolID, curToolName string

	flushText := func() {
		if textBuf.Len() > 0 {
			parts = append(parts, neutral.Text{Text: textBuf.String()})
			textBuf.Reset()
		}
	}
	flushReasoning := func() {
		if reasoningBuf.Len() > 0 {
			parts = append(parts, neutral.Reasoning{Text: reasoningBuf.String()})
			reasoningBuf.Reset()
		}
	}

	for {
		ev, ok, err := events.Next()
		if err != nil {
			return anthropicwire.MessagesResponse{}, err
		}
		if !ok {
			break
		}

		switch ev.Type {
		case neutral.EventTextDelta:
			textBuf.WriteString(ev.Text)
		case neutral.EventTextEnd:
			flushText()

		case neutral.EventReasoningDelta:
			reasoningBuf.WriteString(ev.Text)
		case neutral.EventReasoningEnd:
			flushReasoning()

		case neutral.EventToolInputStart:
			curToolID, curToolName = ev.ToolCallID, ev.ToolName
			toolJSONBuf.Reset()
		case neutral.EventToolInputDelta:
			toolJSONBuf.WriteString(ev.JSONFragment)
		case neutral.EventToolInputEnd:
			parts = append(parts, neutral.ToolCall{CallID: curToolID, ToolName: curToolName, Input: decodeToolInput(toolJSONBuf.String())})

		case neutral.EventToolCall:
			parts = append(parts, neutral.ToolCall{CallID: ev.ToolCallID, ToolName: ev.ToolName, Input: ev.Input})

		case neutral.EventStepFinish:
			usage = ev.Usage
			finish = ev.FinishReason

		case neutral.EventError:
			return anthropicwire.MessagesResponse{}, &StreamError{Kind: ev.ErrKind, Message: ev.ErrMessage}
		}
	}

	flushText()
	flushReasoning()

	turn := neutral.Turn{Role: neutral.RoleAssistant, Parts: parts}
	converted, err := convert.ToAnthropic([]neutral.Turn{turn}, sendReasoning, false)
	if err != nil {
		return anthropicwire.MessagesResponse{}, err
	}

	var content []anthropicwire.ContentBlock
	if len(converted.Messages) > 0 {
		if err := json.Unmarshal(converted.Messages[0].Content, &content); err != nil {
			return anthropicwire.MessagesResponse{}, err
		}
	}

	return anthropicwire.MessagesResponse{
		ID:           "msg_" + uuid.NewString(),
		Type:         "message",
		Role:         "assistant",
		Content:      content,
		Model:        model,
		StopReason:   neutral.ToAnthropicStopReason(finish),
		StopSequence: nil,
		Usage: anthropicwire.Usage{
			InputTokens:          usage.InputTokens,
			OutputTokens:         usage.OutputTokens,
			CacheReadInputTokens: usage.CachedInputTokens,
		},
	}, nil
}
