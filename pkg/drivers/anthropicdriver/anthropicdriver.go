// Package anthropicdriver implements the backend driver for talking
// to Anthropic's own Messages API, grounded on the anthropic-sdk-go usage
// in the pack's kubeminds internal/llm/anthropic.go provider: the same
// option.WithAPIKey/option.WithBaseURL client construction and
// MessageNewParams shape, generalized from that provider's non-streaming
// Chat call to the SDK's NewStreaming call feeding the neutral event
// vocabulary. Because the prompt arriving here is already neutral, most of
// the wire conversion is delegated back to pkg/convert's ToAnthropic,
// which already knows how to build Anthropic's own content-block shapes.
package anthropicdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/convert"
	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/neutral"
)

const defaultMaxTokens = int64(4096)

// Driver is the anthropic backend shim, used when claude-route routes a
// request to Claude itself rather than to an OpenAI-compatible backend.
type Driver struct {
	client *anthropic.Client
	model  string
}

// New builds an Anthropic driver for the given model. An empty baseURL
// uses the SDK's default endpoint.
func New(apiKey, baseURL, model string) *Driver {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := anthropic.NewClient(opts...)
	return &Driver{client: &c, model: model}
}

func (d *Driver) Name() string { return "anthropic" }

// Invoke converts the neutral prompt back into Anthropic's own wire shape
// via pkg/convert, opens a streaming Messages call, and adapts the SDK's
// event union into the neutral event vocabulary.
func (d *Driver) Invoke(ctx context.Context, opts driver.InvokeOptions) (neutral.EventStream, error) {
	converted, err := convert.ToAnthropic(opts.Prompt.Turns, opts.Hints.SendReasoning, opts.Hints.AutomaticCaching)
	if err != nil {
		return nil, err
	}

	messages := make([]anthropic.MessageParam, 0, len(converted.Messages))
	for _, m := range converted.Messages {
		blocks := rawContentToUnion(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:    anthropic.Model(d.model),
		Messages: messages,
	}
	if opts.Prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.Prompt.System}}
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = int64(opts.MaxOutputTokens)
	} else {
		params.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature != nil {
		params.Temperature = param.NewOpt(*opts.Temperature)
	}
	if tools, err := convertTools(opts.Tools); err != nil {
		return nil, err
	} else if len(tools) > 0 {
		params.Tools = tools
	}

	var reqOpts []option.RequestOption
	if len(converted.Betas) > 0 {
		reqOpts = append(reqOpts, option.WithHeader("anthropic-beta", strings.Join(converted.Betas, ",")))
	}

	stream := d.client.Messages.NewStreaming(ctx, params, reqOpts...)
	return newEventStream(stream), nil
}

// rawContentToUnion re-encodes pkg/convert's already-serialized content
// blocks into the SDK's ContentBlockParamUnion, since pkg/convert speaks
// the wire JSON shape directly (it also backs the non-streaming response
// path) while the SDK client wants typed params.
func rawContentToUnion(raw json.RawMessage) []anthropic.ContentBlockParamUnion {
	var blocks []struct {
		Type      string          `json:"type"`
		Text      string          `json:"text,omitempty"`
		ID        string          `json:"id,omitempty"`
		Name      string          `json:"name,omitempty"`
		Input     json.RawMessage `json:"input,omitempty"`
		ToolUseID string          `json:"tool_use_id,omitempty"`
		Content   json.RawMessage `json:"content,omitempty"`
		IsError   bool            `json:"is_error,omitempty"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}

	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, anthropic.NewTextBlock(b.Text))
		case "tool_use":
			var input any
			_ = json.Unmarshal(b.Input, &input)
			out = append(out, anthropic.NewToolUseBlock(b.ID, input, b.Name))
		case "tool_result":
			out = append(out, toolResultUnion(b.ToolUseID, b.Content, b.IsError))
		}
	}
	return out
}

// toolResultUnion decodes a tool_result block's content field, which
// pkg/convert's toolResultToBlock serializes either as a plain JSON string
// (text-only result) or as a []anthropicwire.ContentBlock array (the
// content(...) form used for image results or multiple text parts). A bare
// string-unmarshal attempt against the array form fails silently, which
// previously dropped the entire tool result when re-dispatching to
// Anthropic; this decodes the array form into typed content parts instead.
func toolResultUnion(toolUseID string, raw json.RawMessage, isError bool) anthropic.ContentBlockParamUnion {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return anthropic.NewToolResultBlock(toolUseID, text, isError)
	}

	var blocks []anthropicwire.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil || len(blocks) == 0 {
		return anthropic.NewToolResultBlock(toolUseID, "", isError)
	}

	parts := make([]anthropic.ToolResultBlockParamContentUnion, 0, len(blocks))
	for _, cb := range blocks {
		switch cb.Type {
		case "text":
			parts = append(parts, anthropic.ToolResultBlockParamContentUnion{
				OfText: &anthropic.TextBlockParam{Text: cb.Text},
			})
		case "image":
			if cb.Source == nil {
				continue
			}
			parts = append(parts, anthropic.ToolResultBlockParamContentUnion{
				OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfBase64: &anthropic.Base64ImageSourceParam{
							Data:      cb.Source.Data,
							MediaType: anthropic.Base64ImageSourceMediaType(cb.Source.MediaType),
						},
					},
				},
			})
		}
	}

	result := anthropic.ToolResultBlockParam{
		ToolUseID: toolUseID,
		IsError:   anthropic.Bool(isError),
		Content:   parts,
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &result}
}

func convertTools(tools []neutral.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Builtin {
			continue // builtin tools are not sent: only custom tool declarations are converted here
		}
		props := t.InputSchema["properties"]
		var required []string
		switch r := t.InputSchema["required"].(type) {
		case []string:
			required = r
		case []interface{}:
			for _, v := range r {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
		}
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out, nil
}

// eventStream adapts the SDK's server-sent MessageStreamEventUnion
// sequence into the neutral event vocabulary.
type eventStream struct {
	sdk *ssestream.Stream[anthropic.MessageStreamEventUnion]

	sentStepStart bool
	queue         []neutral.StreamEvent
	done          bool

	openKind string // "" | "text" | "tool" | "reasoning"
	usage    neutral.Usage
}

func newEventStream(sdk *ssestream.Stream[anthropic.MessageStreamEventUnion]) *eventStream {
	return &eventStream{sdk: sdk}
}

func (s *eventStream) Close() error { return nil }

func (s *eventStream) Next() (neutral.StreamEvent, bool, error) {
	if !s.sentStepStart {
		s.sentStepStart = true
		return neutral.StreamEvent{Type: neutral.EventStepStart}, true, nil
	}

	for len(s.queue) == 0 && !s.done {
		if !s.sdk.Next() {
			if err := s.sdk.Err(); err != nil && !errors.Is(err, context.Canceled) {
				s.queue = append(s.queue, neutral.StreamEvent{
					Type: neutral.EventError, ErrKind: neutral.ErrDriverStream, ErrMessage: err.Error(),
				})
			} else {
				s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
			}
			s.done = true
			break
		}
		s.translate(s.sdk.Current())
	}

	if len(s.queue) == 0 {
		return neutral.StreamEvent{}, false, nil
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true, nil
}

func (s *eventStream) translate(event anthropic.MessageStreamEventUnion) {
	switch event.Type {
	case "message_start":
		start := event.AsMessageStart()
		s.usage.InputTokens = start.Message.Usage.InputTokens
		s.usage.CachedInputTokens = start.Message.Usage.CacheReadInputTokens

	case "content_block_start":
		block := event.AsContentBlockStart().ContentBlock.AsAny()
		switch b := block.(type) {
		case anthropic.ToolUseBlock:
			s.openKind = "tool"
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventToolInputStart, ToolCallID: b.ID, ToolName: b.Name})
		case anthropic.ThinkingBlock, anthropic.RedactedThinkingBlock:
			s.openKind = "reasoning"
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventReasoningStart})
		default:
			s.openKind = "text"
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextStart})
		}

	case "content_block_delta":
		switch d := event.AsContentBlockDelta().Delta.AsAny().(type) {
		case anthropic.TextDelta:
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextDelta, Text: d.Text})
		case anthropic.InputJSONDelta:
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventToolInputDelta, JSONFragment: d.PartialJSON})
		case anthropic.ThinkingDelta:
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventReasoningDelta, Text: d.Thinking})
		}

	case "content_block_stop":
		switch s.openKind {
		case "text":
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextEnd})
		case "tool":
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventToolInputEnd})
		case "reasoning":
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventReasoningEnd})
		}
		s.openKind = ""

	case "message_delta":
		delta := event.AsMessageDelta()
		s.usage.OutputTokens = delta.Usage.OutputTokens
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventStepFinish, FinishReason: mapStopReason(string(delta.Delta.StopReason)), Usage: s.usage,
		})

	case "message_stop":
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
		s.done = true

	case "error":
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventError, ErrKind: neutral.ErrDriverStream, ErrMessage: fmt.Sprintf("anthropic stream error: %s", event.RawJSON()),
		})
		s.done = true
	}
}

func mapStopReason(reason string) neutral.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return neutral.FinishStop
	case "tool_use":
		return neutral.FinishToolCalls
	case "max_tokens":
		return neutral.FinishLength
	default:
		return neutral.FinishOther
	}
}
