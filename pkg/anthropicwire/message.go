// Package anthropicwire holds the JSON structs for the Anthropic Messages
// API wire format, pulled out of the inline structs
// _examples/digitallysavvy-go-ai/pkg/providers/anthropic/language_model.go
// keeps embedded in its request/response handling into a named, documented
// package shared by the prompt converters and the anthropic driver.
package anthropicwire

import "encoding/json"

// MessagesRequest is the inbound request body for POST /v1/messages.
type MessagesRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []Message       `json:"messages"`
	System      interface{}     `json:"system,omitempty"` // string or []SystemBlock
	Tools       []ToolDecl      `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Metadata    *Metadata       `json:"metadata,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Thinking    *ThinkingConfig `json:"thinking,omitempty"`
}

// ThinkingConfig is the caller's extended-thinking request, matching
// Anthropic's own {"type": "enabled", "budget_tokens": N} shape. A nil
// Thinking (or Type != "enabled") means the caller never turned it on,
// so reasoning content is not carried through to the response either.
type ThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Metadata carries caller-supplied request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// SystemBlock is one element of an array-form system prompt.
type SystemBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl map[string]interface{} `json:"cache_control,omitempty"`
}

// Message is one entry of the messages array.
type Message struct {
	Role         string                 `json:"role"`
	Content      json.RawMessage        `json:"content"` // string or []ContentBlock
	CacheControl map[string]interface{} `json:"cache_control,omitempty"`
}

// ToolDecl is a tool declaration: {name, description?, input_schema} or a
// built-in variant (computer_*, text_editor_*, bash_*). Only the fields
// below are decoded; a built-in variant's other fields are not kept, and
// Extra is never filled by decoding.
type ToolDecl struct {
	Type        string                 `json:"type,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Extra       map[string]interface{} `json:"-"`
}

// ContentBlock is a tagged union over the Anthropic block types: text,
// thinking, redacted_thinking, image, document, tool_use, tool_result.
type ContentBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text,omitempty"`
	Thinking     string                 `json:"thinking,omitempty"`
	Data         string                 `json:"data,omitempty"` // redacted_thinking payload
	Source       *Source                `json:"source,omitempty"`
	ID           string                 `json:"id,omitempty"`   // tool_use id
	Name         string                 `json:"name,omitempty"` // tool_use name
	Input        map[string]interface{} `json:"input,omitempty"`
	ToolUseID    string                 `json:"tool_use_id,omitempty"`
	Content      json.RawMessage        `json:"content,omitempty"` // tool_result: string or []ContentBlock
	IsError      bool                   `json:"is_error,omitempty"`
	CacheControl map[string]interface{} `json:"cache_control,omitempty"`
}

// Source is the image/document source descriptor: base64 or url.
type Source struct {
	Type      string `json:"type"` // "base64" | "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// MessagesResponse is the non-streaming response body.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// Usage is the Anthropic usage object.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// ErrorBody is the user-visible failure shape returned in the response body.
type ErrorBody struct {
	Type  string     `json:"type"`
	Error ErrorField `json:"error"`
}

// ErrorField is the nested {type, message} pair inside ErrorBody.
type ErrorField struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
