// Package convert implements the two translation directions between the
// Anthropic Messages wire format and the neutral prompt representation:
// FromAnthropic and ToAnthropic. The shape of this file mirrors
// _examples/digitallysavvy-go-ai/pkg/providerutils/prompt's converter — a
// straight walk over messages with a type switch per content part —
// generalized from that converter's flat unified-message model to the
// richer neutral tagged union.
package convert

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/media"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

// ProtocolError reports a structural violation of the inbound Anthropic
// request. Sentinel, when set, lets a caller also match one of
// pkg/provider/errors' sentinel errors with errors.Is without losing the
// concrete ProtocolError type translationKind switches on.
type ProtocolError struct {
	Reason   string
	Sentinel error
}

func (e *ProtocolError) Error() string { return "protocol_invariant: " + e.Reason }

func (e *ProtocolError) Unwrap() error { return e.Sentinel }

// UnsupportedMediaTypeError reports a file part with a media type the
// target direction cannot carry.
type UnsupportedMediaTypeError struct {
	MediaType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("unsupported_media_type: %q", e.MediaType)
}

// FromAnthropicResult is the output of FromAnthropic: a neutral prompt plus
// the tool declarations carried through unchanged for the driver to consume.
type FromAnthropicResult struct {
	Prompt neutral.Prompt
	Tools  []neutral.Tool
}

// FromAnthropic converts an inbound MessagesRequest into the neutral
// representation. System blocks are concatenated with "\n"; tool_use
// calls are recorded into a callID->toolName table so that later tool_result
// blocks can be resolved.
func FromAnthropic(req *anthropicwire.MessagesRequest) (FromAnthropicResult, error) {
	var out FromAnthropicResult

	sysText, err := systemText(req.System)
	if err != nil {
		return out, err
	}
	out.Prompt.System = sysText

	out.Tools = convertTools(req.Tools)

	callIDToTool := make(map[string]string)

	for _, msg := range req.Messages {
		blocks, err := decodeContent(msg.Content)
		if err != nil {
			return out, err
		}

		role := neutral.Role(msg.Role)
		var parts []neutral.Part
		var toolResultParts []neutral.Part

		for _, b := range blocks {
			switch b.Type {
			case "text":
				parts = append(parts, neutral.Text{Text: b.Text})

			case "tool_use":
				callIDToTool[b.ID] = b.Name
				parts = append(parts, neutral.ToolCall{
					CallID:   b.ID,
					ToolName: b.Name,
					Input:    b.Input,
				})

			case "tool_result":
				toolName, ok := callIDToTool[b.ToolUseID]
				if !ok {
					return out, &ProtocolError{
						Reason:   fmt.Sprintf("tool_result references unknown tool_use_id %q", b.ToolUseID),
						Sentinel: providererrors.ErrToolNotFound,
					}
				}
				output, err := toolResultOutput(b)
				if err != nil {
					return out, err
				}
				_ = toolName // resolved for lookup validation; the neutral ToolResult carries CallID only
				toolResultParts = append(toolResultParts, neutral.ToolResult{
					CallID: b.ToolUseID,
					Output: output,
				})

			case "image", "document":
				file, err := decodeFilePart(b)
				if err != nil {
					return out, err
				}
				parts = append(parts, file)

			case "thinking":
				parts = append(parts, neutral.Reasoning{Text: b.Thinking})

			case "redacted_thinking":
				parts = append(parts, neutral.Reasoning{Text: b.Data})
			}
		}

		if len(parts) > 0 {
			out.Prompt.Turns = append(out.Prompt.Turns, neutral.Turn{Role: role, Parts: parts})
		}
		if len(toolResultParts) > 0 {
			out.Prompt.Turns = append(out.Prompt.Turns, neutral.Turn{Role: neutral.RoleTool, Parts: toolResultParts})
		}
	}

	return out, nil
}

// ParseToolChoice decodes the inbound tool_choice field — "auto", "none",
// "any", or {"type":"tool","name":"..."} — into the neutral vocabulary. A
// nil/empty raw value yields a nil ToolChoice, leaving the driver to apply
// its own default.
func ParseToolChoice(raw json.RawMessage) (*neutral.ToolChoice, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wire struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ProtocolError{Reason: "tool_choice is not a recognized shape", Sentinel: providererrors.ErrValidationFailed}
	}
	switch wire.Type {
	case "auto":
		return &neutral.ToolChoice{Kind: neutral.ToolChoiceAuto}, nil
	case "none":
		return &neutral.ToolChoice{Kind: neutral.ToolChoiceNone}, nil
	case "any":
		return &neutral.ToolChoice{Kind: neutral.ToolChoiceRequired}, nil
	case "tool":
		if wire.Name == "" {
			return nil, &ProtocolError{Reason: "tool_choice of type \"tool\" requires a name", Sentinel: providererrors.ErrValidationFailed}
		}
		return &neutral.ToolChoice{Kind: neutral.ToolChoiceTool, ToolName: wire.Name}, nil
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unrecognized tool_choice type %q", wire.Type), Sentinel: providererrors.ErrValidationFailed}
	}
}

// systemText accepts either a bare string or an array of SystemBlock and
// concatenates text blocks with "\n".
func systemText(raw interface{}) (string, error) {
	if raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if t, _ := m["text"].(string); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n"), nil
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return "", &ProtocolError{Reason: "system field is neither a string nor an array", Sentinel: providererrors.ErrInvalidInput}
		}
		var blocks []anthropicwire.SystemBlock
		if err := json.Unmarshal(b, &blocks); err != nil {
			return "", &ProtocolError{Reason: "system field is neither a string nor an array", Sentinel: providererrors.ErrInvalidInput}
		}
		parts := make([]string, 0, len(blocks))
		for _, sb := range blocks {
			parts = append(parts, sb.Text)
		}
		return strings.Join(parts, "\n"), nil
	}
}

// decodeContent accepts either a bare string (shorthand for one text block)
// or a JSON array of content blocks.
func decodeContent(raw json.RawMessage) ([]anthropicwire.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ProtocolError{Reason: "message content string is not valid JSON", Sentinel: providererrors.ErrInvalidInput}
		}
		return []anthropicwire.ContentBlock{{Type: "text", Text: s}}, nil
	}
	var blocks []anthropicwire.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, &ProtocolError{Reason: "message content is neither a string nor a block array", Sentinel: providererrors.ErrInvalidInput}
	}
	return blocks, nil
}

func decodeFilePart(b anthropicwire.ContentBlock) (neutral.File, error) {
	if b.Source == nil {
		return neutral.File{}, &ProtocolError{Reason: b.Type + " block missing source"}
	}
	switch b.Source.Type {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(b.Source.Data)
		if err != nil {
			return neutral.File{}, &ProtocolError{Reason: "invalid base64 in " + b.Type + " source", Sentinel: providererrors.ErrInvalidInput}
		}
		mediaType := b.Source.MediaType
		if mediaType == "" && b.Type == "image" {
			mediaType = media.SniffImage(data)
		}
		return neutral.File{Bytes: data, MediaType: mediaType}, nil
	case "url":
		return neutral.File{URL: b.Source.URL, MediaType: b.Source.MediaType}, nil
	default:
		return neutral.File{}, &ProtocolError{Reason: "unknown source type " + b.Source.Type}
	}
}

func toolResultOutput(b anthropicwire.ContentBlock) (neutral.ToolResultOutput, error) {
	kind := neutral.ToolResultText
	if b.IsError {
		kind = neutral.ToolResultErrorText
	}

	if len(b.Content) == 0 {
		return neutral.ToolResultOutput{Kind: kind, Text: ""}, nil
	}

	trimmed := strings.TrimSpace(string(b.Content))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(b.Content, &s); err != nil {
			return neutral.ToolResultOutput{}, &ProtocolError{Reason: "tool_result content string is not valid JSON", Sentinel: providererrors.ErrInvalidInput}
		}
		return neutral.ToolResultOutput{Kind: kind, Text: s}, nil
	}

	var blocks []anthropicwire.ContentBlock
	if err := json.Unmarshal(b.Content, &blocks); err != nil {
		return neutral.ToolResultOutput{}, &ProtocolError{Reason: "tool_result content is neither a string nor a block array", Sentinel: providererrors.ErrInvalidInput}
	}

	contentKind := neutral.ToolResultContent
	if b.IsError {
		contentKind = neutral.ToolResultErrorText
	}
	parts := make([]neutral.ToolResultContentPart, 0, len(blocks))
	for _, cb := range blocks {
		switch cb.Type {
		case "text":
			parts = append(parts, neutral.ToolResultContentPart{Text: cb.Text})
		case "image":
			if cb.Source == nil || cb.Source.Type != "base64" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(cb.Source.Data)
			if err != nil {
				return neutral.ToolResultOutput{}, &ProtocolError{Reason: "invalid base64 in tool_result image part", Sentinel: providererrors.ErrInvalidInput}
			}
			parts = append(parts, neutral.ToolResultContentPart{MediaType: cb.Source.MediaType, Bytes: data})
		case "document":
			parts = append(parts, neutral.ToolResultContentPart{Text: "[document content omitted]"})
		}
	}
	return neutral.ToolResultOutput{Kind: contentKind, Content: parts}, nil
}

func convertTools(decls []anthropicwire.ToolDecl) []neutral.Tool {
	tools := make([]neutral.Tool, 0, len(decls))
	for _, d := range decls {
		if d.Type != "" && d.Type != "custom" {
			tools = append(tools, neutral.Tool{
				Name:        d.Name,
				Builtin:     true,
				BuiltinType: d.Type,
				RawSchema:   d.InputSchema,
			})
			continue
		}
		tools = append(tools, neutral.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return tools
}
