// Package openaicompat holds the Chat Completions wire logic shared by
// every OpenAI-compatible backend driver (openai, xai, azure). It is
// grounded on
// _examples/digitallysavvy-go-ai/pkg/providers/openai/language_model.go,
// generalized once and reused by pkg/drivers/{openai,xai,azure} rather
// than triplicated, the way that source's own pkg/providers/xai and
// pkg/providers/azure packages share most of their shape with
// pkg/providers/openai but differ only in base URL, auth, and a handful
// of request-body fields.
package openaicompat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sudip358/claude-route/pkg/media"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
	"github.com/sudip358/claude-route/pkg/providerutils/streaming"
	"github.com/sudip358/claude-route/pkg/schemaadapt"
	"net/http"
)

// imageURL builds the data: or remote URL a Chat Completions image_url part
// carries for f, or reports ok=false for a non-image file (e.g. a PDF,
// which Chat Completions has no inline representation for).
func imageURL(f neutral.File) (url string, ok bool) {
	if f.URL != "" {
		if f.MediaType != "" && !strings.HasPrefix(f.MediaType, "image/") {
			return "", false
		}
		return f.URL, true
	}
	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = media.SniffImage(f.Bytes)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", false
	}
	return media.CreateDataURL(mediaType, f.Bytes), true
}

// ToMessages converts a neutral prompt into OpenAI Chat Completions
// message objects, including the system message and one "tool" message per
// tool result.
func ToMessages(p neutral.Prompt) []map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(p.Turns)+1)

	if p.System != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": p.System})
	}

	for _, turn := range p.Turns {
		switch turn.Role {
		case neutral.RoleTool:
			for _, part := range turn.Parts {
				tr, ok := part.(neutral.ToolResult)
				if !ok {
					continue
				}
				messages = append(messages, map[string]interface{}{
					"role":         "tool",
					"tool_call_id": tr.CallID,
					"content":      ToolResultText(tr.Output),
				})
			}

		default:
			msg := map[string]interface{}{"role": string(turn.Role)}
			var textBuf string
			var toolCalls []map[string]interface{}
			var imageParts []map[string]interface{}

			for _, part := range turn.Parts {
				switch v := part.(type) {
				case neutral.Text:
					textBuf += v.Text
				case neutral.ToolCall:
					args, _ := json.Marshal(v.Input)
					toolCalls = append(toolCalls, map[string]interface{}{
						"id":   v.CallID,
						"type": "function",
						"function": map[string]interface{}{
							"name":      v.ToolName,
							"arguments": string(args),
						},
					})
				case neutral.File:
					// OpenAI Chat Completions accepts image_url parts inline;
					// document/PDF parts have no equivalent and are dropped.
					if url, ok := imageURL(v); ok {
						imageParts = append(imageParts, map[string]interface{}{
							"type":      "image_url",
							"image_url": map[string]interface{}{"url": url},
						})
					}
				}
			}

			switch {
			case len(imageParts) > 0:
				contentParts := make([]map[string]interface{}, 0, len(imageParts)+1)
				if textBuf != "" {
					contentParts = append(contentParts, map[string]interface{}{"type": "text", "text": textBuf})
				}
				contentParts = append(contentParts, imageParts...)
				msg["content"] = contentParts
			case textBuf != "" || len(toolCalls) == 0:
				msg["content"] = textBuf
			}
			if len(toolCalls) > 0 {
				msg["tool_calls"] = toolCalls
			}
			messages = append(messages, msg)
		}
	}

	return messages
}

// ToolResultText flattens a neutral tool result output into the plain
// string Chat Completions "tool" messages carry as content.
func ToolResultText(output neutral.ToolResultOutput) string {
	switch output.Kind {
	case neutral.ToolResultJSON, neutral.ToolResultErrorJSON:
		b, _ := json.Marshal(output.JSON)
		return string(b)
	case neutral.ToolResultContent:
		var buf bytes.Buffer
		for _, c := range output.Content {
			buf.WriteString(c.Text)
		}
		return buf.String()
	default:
		return output.Text
	}
}

// ToTools converts neutral tool declarations into OpenAI function-tool
// objects, adapting each input schema for the openai provider and skipping
// Anthropic builtin tools, which have no Chat Completions equivalent.
func ToTools(tools []neutral.Tool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		if t.Builtin {
			continue
		}
		schema := schemaadapt.Adapt(schemaadapt.ProviderOpenAI, t.InputSchema)
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  schema,
			},
		})
	}
	return out
}

// ToToolChoice converts a neutral tool choice into its Chat Completions
// wire shape.
func ToToolChoice(tc neutral.ToolChoice) interface{} {
	switch tc.Kind {
	case neutral.ToolChoiceAuto:
		return "auto"
	case neutral.ToolChoiceNone:
		return "none"
	case neutral.ToolChoiceRequired:
		return "required"
	case neutral.ToolChoiceTool:
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": tc.ToolName},
		}
	default:
		return "auto"
	}
}

// ClassifyHTTPError reads an OpenAI-shaped {"error":{message,type,code}}
// error envelope off a failed response and wraps it as a ProviderError
// tagged with the given provider name, for errormap.Classify to key on.
func ClassifyHTTPError(provider string, resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)

	code := envelope.Error.Code
	if code == "" && resp.StatusCode >= 500 {
		code = "server_error"
	}

	providerErr := providererrors.NewProviderError(provider, resp.StatusCode, code, envelope.Error.Message, nil)
	providerErr.ErrorType = envelope.Error.Type
	return providerErr
}

// EventStream adapts an OpenAI-shaped Chat Completions SSE body into the
// neutral event vocabulary. The wire format has no explicit block-start/
// stop framing, so this state machine synthesizes one: the first content
// or tool_call delta opens a block, a change of kind (or the finish chunk)
// closes it. Tool calls are assumed to stream in order by index — only one
// tool call is ever "open" at a time, which holds for every OpenAI-
// compatible backend observed in the example pack.
type EventStream struct {
	body   io.ReadCloser
	parser *streaming.SSEParser
	model  string

	queue []neutral.StreamEvent
	done  bool

	openKind      string // "" | "text" | "tool"
	openToolIndex int
	openToolID    string
	openToolName  string
	sentStepStart bool
	usage         neutral.Usage
}

// NewEventStream wraps an SSE response body. model is carried for parity
// with other drivers' constructors; the neutral event vocabulary does not
// echo it back per-event.
func NewEventStream(body io.ReadCloser, model string) *EventStream {
	return &EventStream{
		body:   body,
		parser: streaming.NewSSEParser(body),
		model:  model,
	}
}

func (s *EventStream) Close() error { return s.body.Close() }

func (s *EventStream) Next() (neutral.StreamEvent, bool, error) {
	if !s.sentStepStart {
		s.sentStepStart = true
		return neutral.StreamEvent{Type: neutral.EventStepStart}, true, nil
	}

	for len(s.queue) == 0 && !s.done {
		if err := s.pump(); err != nil {
			return neutral.StreamEvent{}, false, err
		}
	}

	if len(s.queue) == 0 {
		return neutral.StreamEvent{}, false, nil
	}

	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true, nil
}

// pump reads one SSE event from the underlying stream and appends zero or
// more neutral events to the queue.
func (s *EventStream) pump() error {
	event, err := s.parser.Next()
	if err == io.EOF {
		s.flushOpenBlock()
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
		s.done = true
		return nil
	}
	if err != nil {
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventError, ErrKind: neutral.ErrDriverStream, ErrMessage: err.Error(),
		})
		s.done = true
		return nil
	}

	if streaming.IsStreamDone(event) {
		s.flushOpenBlock()
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
		s.done = true
		return nil
	}

	var chunk struct {
		Choices []struct {
			Delta struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Index    int    `json:"index"`
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens        int64 `json:"prompt_tokens"`
			CompletionTokens    int64 `json:"completion_tokens"`
			PromptTokensDetails *struct {
				CachedTokens int64 `json:"cached_tokens"`
			} `json:"prompt_tokens_details"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return fmt.Errorf("openaicompat: decode stream chunk: %w", err)
	}

	if chunk.Usage != nil {
		s.usage.InputTokens = chunk.Usage.PromptTokens
		s.usage.OutputTokens = chunk.Usage.CompletionTokens
		if chunk.Usage.PromptTokensDetails != nil {
			s.usage.CachedInputTokens = chunk.Usage.PromptTokensDetails.CachedTokens
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if s.openKind != "text" {
			s.flushOpenBlock()
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextStart})
			s.openKind = "text"
		}
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextDelta, Text: choice.Delta.Content})
	}

	for _, tc := range choice.Delta.ToolCalls {
		if s.openKind != "tool" || tc.Index != s.openToolIndex {
			s.flushOpenBlock()
			id := tc.ID
			if id == "" {
				id = s.openToolID
			}
			s.openKind = "tool"
			s.openToolIndex = tc.Index
			s.openToolID = id
			s.openToolName = tc.Function.Name
			s.queue = append(s.queue, neutral.StreamEvent{
				Type: neutral.EventToolInputStart, ToolCallID: id, ToolName: tc.Function.Name,
			})
		}
		if tc.Function.Arguments != "" {
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventToolInputDelta, JSONFragment: tc.Function.Arguments})
		}
	}

	if choice.FinishReason != nil {
		s.flushOpenBlock()
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventStepFinish, FinishReason: MapFinishReason(*choice.FinishReason), Usage: s.usage,
		})
	}

	return nil
}

func (s *EventStream) flushOpenBlock() {
	switch s.openKind {
	case "text":
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextEnd})
	case "tool":
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventToolInputEnd})
	}
	s.openKind = ""
}

// MapFinishReason maps an OpenAI-shaped finish_reason string to the
// neutral finish-reason vocabulary.
func MapFinishReason(reason string) neutral.FinishReason {
	switch reason {
	case "stop":
		return neutral.FinishStop
	case "tool_calls":
		return neutral.FinishToolCalls
	case "length":
		return neutral.FinishLength
	default:
		return neutral.FinishOther
	}
}
