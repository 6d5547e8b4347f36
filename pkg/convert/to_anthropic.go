package convert

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/neutral"
)

// BetaPDF is the beta capability tag added when a PDF document part is
// present in the outgoing request.
const BetaPDF = "pdfs-2024-09-25"

// BetaPromptCaching is the beta capability tag required when automatic
// caching synthesizes a cache_control the caller never set explicitly.
const BetaPromptCaching = "prompt-caching-2024-07-31"

// ToAnthropicResult is the output of ToAnthropic: the wire messages plus
// the set of beta capability tags the caller must attach to the request.
type ToAnthropicResult struct {
	Messages []anthropicwire.Message
	Betas    []string
}

// ToAnthropic converts a sequence of neutral turns into Anthropic wire
// messages. sendReasoning gates whether reasoning parts become thinking
// blocks or are silently dropped. automaticCaching, when true and no
// turn/part already carries an explicit cache_control, synthesizes one
// {"type": "auto"} annotation on the last content block of the last
// message so the request still benefits from Anthropic's prompt caching
// even when the caller never annotated anything itself.
func ToAnthropic(turns []neutral.Turn, sendReasoning, automaticCaching bool) (ToAnthropicResult, error) {
	var result ToAnthropicResult
	betaSet := make(map[string]bool)

	seenSystem := false
	sawNonSystemSinceSystem := false

	lastAssistantMsgIdx := -1
	lastMsgIdx := -1

	for _, turn := range turns {
		if turn.Role == neutral.RoleSystem {
			if seenSystem && sawNonSystemSinceSystem {
				return result, &ProtocolError{Reason: "system blocks separated by non-system content"}
			}
			seenSystem = true
			sawNonSystemSinceSystem = false
			continue
		}
		sawNonSystemSinceSystem = true

		msg, err := turnToMessage(turn, sendReasoning, betaSet)
		if err != nil {
			return result, err
		}
		if msg == nil {
			continue
		}
		result.Messages = append(result.Messages, *msg)
		lastMsgIdx = len(result.Messages) - 1
		if turn.Role == neutral.RoleAssistant {
			lastAssistantMsgIdx = lastMsgIdx
		}
	}

	if lastAssistantMsgIdx >= 0 {
		trimFinalText(&result.Messages[lastAssistantMsgIdx])
	}

	if automaticCaching && lastMsgIdx >= 0 && !anyCacheControlSet(result.Messages) {
		applyAutomaticCaching(&result.Messages[lastMsgIdx])
		betaSet[BetaPromptCaching] = true
	}

	for b := range betaSet {
		result.Betas = append(result.Betas, b)
	}

	return result, nil
}

// anyCacheControlSet reports whether the caller already annotated any
// message or content block with its own cache_control; automatic caching
// only synthesizes one when the caller left every annotation point empty.
func anyCacheControlSet(messages []anthropicwire.Message) bool {
	for _, msg := range messages {
		if msg.CacheControl != nil {
			return true
		}
		var blocks []anthropicwire.ContentBlock
		if err := json.Unmarshal(msg.Content, &blocks); err != nil {
			continue
		}
		for _, b := range blocks {
			if b.CacheControl != nil {
				return true
			}
		}
	}
	return false
}

// applyAutomaticCaching sets {"type": "auto"} cache_control on the last
// content block of msg, mirroring trimFinalText's decode/mutate/re-encode
// shape since Content is already serialized to wire JSON by this point.
func applyAutomaticCaching(msg *anthropicwire.Message) {
	var blocks []anthropicwire.ContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil || len(blocks) == 0 {
		return
	}
	blocks[len(blocks)-1].CacheControl = map[string]interface{}{"type": "auto"}
	msg.Content = encodeBlocks(blocks)
}

func turnToMessage(turn neutral.Turn, sendReasoning bool, betaSet map[string]bool) (*anthropicwire.Message, error) {
	parts := turn.Parts
	if turn.Role == neutral.RoleAssistant {
		parts = neutral.DedupToolCalls(parts)
	}

	blocks := make([]anthropicwire.ContentBlock, 0, len(parts))

	for _, p := range parts {
		switch v := p.(type) {
		case neutral.Text:
			if v.Text == "" {
				continue
			}
			blocks = append(blocks, anthropicwire.ContentBlock{
				Type:         "text",
				Text:         v.Text,
				CacheControl: v.CacheControl,
			})

		case neutral.Reasoning:
			if !sendReasoning {
				continue
			}
			blocks = append(blocks, anthropicwire.ContentBlock{
				Type:         "thinking",
				Thinking:     v.Text,
				CacheControl: v.CacheControl,
			})

		case neutral.ToolCall:
			blocks = append(blocks, anthropicwire.ContentBlock{
				Type:         "tool_use",
				ID:           v.CallID,
				Name:         v.ToolName,
				Input:        v.Input,
				CacheControl: v.CacheControl,
			})

		case neutral.File:
			block, err := fileToBlock(v, betaSet)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)

		case neutral.ToolResult:
			block, err := toolResultToBlock(v)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}
	}

	if len(blocks) == 0 {
		return nil, nil
	}

	inheritCacheControl(blocks, turn.CacheControl)

	role := string(turn.Role)
	if turn.Role == neutral.RoleTool {
		role = "user" // tool_result blocks ride on a user-role message in Anthropic's wire format
	}

	return &anthropicwire.Message{
		Role:         role,
		Content:      encodeBlocks(blocks),
		CacheControl: turn.CacheControl,
	}, nil
}

func fileToBlock(f neutral.File, betaSet map[string]bool) (anthropicwire.ContentBlock, error) {
	blockType := "image"
	if !strings.HasPrefix(f.MediaType, "image/") {
		if f.MediaType == "application/pdf" {
			blockType = "document"
			betaSet[BetaPDF] = true
		} else {
			return anthropicwire.ContentBlock{}, &UnsupportedMediaTypeError{MediaType: f.MediaType}
		}
	}

	source := &anthropicwire.Source{MediaType: f.MediaType}
	if f.URL != "" {
		source.Type = "url"
		source.URL = f.URL
	} else {
		source.Type = "base64"
		source.Data = base64.StdEncoding.EncodeToString(f.Bytes)
	}

	return anthropicwire.ContentBlock{
		Type:         blockType,
		Source:       source,
		CacheControl: f.CacheControl,
	}, nil
}

func toolResultToBlock(tr neutral.ToolResult) (anthropicwire.ContentBlock, error) {
	block := anthropicwire.ContentBlock{
		Type:         "tool_result",
		ToolUseID:    tr.CallID,
		CacheControl: tr.CacheControl,
	}

	switch tr.Output.Kind {
	case neutral.ToolResultErrorText, neutral.ToolResultErrorJSON:
		block.IsError = true
	}

	switch tr.Output.Kind {
	case neutral.ToolResultText, neutral.ToolResultErrorText:
		b, _ := json.Marshal(tr.Output.Text)
		block.Content = b

	case neutral.ToolResultJSON, neutral.ToolResultErrorJSON:
		b, err := json.Marshal(tr.Output.JSON)
		if err != nil {
			return block, &ProtocolError{Reason: "tool result JSON output could not be marshaled"}
		}
		s, _ := json.Marshal(string(b))
		block.Content = s

	case neutral.ToolResultContent:
		subBlocks := make([]anthropicwire.ContentBlock, 0, len(tr.Output.Content))
		for _, c := range tr.Output.Content {
			if c.Bytes != nil {
				if !strings.HasPrefix(c.MediaType, "image/") {
					// Anthropic's image block requires an image/* media type;
					// a document part (e.g. application/pdf) is carried as a
					// lossy text placeholder rather than mistagged as image.
					subBlocks = append(subBlocks, anthropicwire.ContentBlock{Type: "text", Text: "[document content omitted]"})
					continue
				}
				subBlocks = append(subBlocks, anthropicwire.ContentBlock{
					Type: "image",
					Source: &anthropicwire.Source{
						Type:      "base64",
						MediaType: c.MediaType,
						Data:      base64.StdEncoding.EncodeToString(c.Bytes),
					},
				})
				continue
			}
			subBlocks = append(subBlocks, anthropicwire.ContentBlock{Type: "text", Text: c.Text})
		}
		block.Content = encodeBlocks(subBlocks)
	}

	return block, nil
}

// inheritCacheControl propagates cache_control down to content blocks: a
// block keeps its own cache_control if set; otherwise, only the last
// block of the message inherits the message-level annotation.
func inheritCacheControl(blocks []anthropicwire.ContentBlock, messageCC map[string]interface{}) {
	if messageCC == nil || len(blocks) == 0 {
		return
	}
	last := &blocks[len(blocks)-1]
	if last.CacheControl == nil {
		last.CacheControl = messageCC
	}
}

// trimFinalText right-trims the trailing whitespace of the last text block
// of msg, which ToAnthropic passes as the last assistant message, per
// Anthropic's rejection of prefilled trailing whitespace.
func trimFinalText(msg *anthropicwire.Message) {
	var blocks []anthropicwire.ContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Type == "text" {
			blocks[i].Text = strings.TrimRight(blocks[i].Text, " \t\n\r")
			msg.Content = encodeBlocks(blocks)
			return
		}
	}
}

func encodeBlocks(blocks []anthropicwire.ContentBlock) json.RawMessage {
	b, err := json.Marshal(blocks)
	if err != nil {
		return json.RawMessage("[]")
	}
	return b
}
