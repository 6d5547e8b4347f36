package convert

import (
	"encoding/json"
	"testing"

	"github.com/sudip358/claude-route/pkg/anthropicwire"
	"github.com/sudip358/claude-route/pkg/neutral"
)

func rawMsg(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return b
}

func TestFromAnthropic_SimpleTextRoundTrip(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		System: "be helpful",
		Messages: []anthropicwire.Message{
			{Role: "user", Content: rawMsg(t, "hello there")},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Prompt.System != "be helpful" {
		t.Errorf("system = %q, want %q", result.Prompt.System, "be helpful")
	}
	if len(result.Prompt.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(result.Prompt.Turns))
	}
	text, ok := result.Prompt.Turns[0].Parts[0].(neutral.Text)
	if !ok || text.Text != "hello there" {
		t.Errorf("expected text part %q, got %+v", "hello there", result.Prompt.Turns[0].Parts[0])
	}
}

func TestFromAnthropic_SystemArrayConcatenation(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		System: []interface{}{
			map[string]interface{}{"type": "text", "text": "first"},
			map[string]interface{}{"type": "text", "text": "second"},
		},
		Messages: []anthropicwire.Message{
			{Role: "user", Content: rawMsg(t, "hi")},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Prompt.System != "first\nsecond" {
		t.Errorf("system = %q, want %q", result.Prompt.System, "first\nsecond")
	}
}

func TestFromAnthropic_ToolResultLooksUpToolName(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Messages: []anthropicwire.Message{
			{Role: "assistant", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "tool_use", ID: "call_1", Name: "get_weather", Input: map[string]interface{}{"city": "nyc"}},
			})},
			{Role: "user", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "tool_result", ToolUseID: "call_1", Content: rawMsg(t, "72F and sunny")},
			})},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Prompt.Turns) != 2 {
		t.Fatalf("expected 2 turns (assistant tool_call + tool result), got %d", len(result.Prompt.Turns))
	}

	toolTurn := result.Prompt.Turns[1]
	if toolTurn.Role != neutral.RoleTool {
		t.Errorf("expected tool turn role, got %q", toolTurn.Role)
	}
	tr, ok := toolTurn.Parts[0].(neutral.ToolResult)
	if !ok {
		t.Fatalf("expected ToolResult part, got %T", toolTurn.Parts[0])
	}
	if tr.CallID != "call_1" {
		t.Errorf("CallID = %q, want call_1", tr.CallID)
	}
	if tr.Output.Text != "72F and sunny" {
		t.Errorf("Output.Text = %q, want %q", tr.Output.Text, "72F and sunny")
	}
}

func TestFromAnthropic_ToolResultUnknownCallIDFailsProtocolInvariant(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Messages: []anthropicwire.Message{
			{Role: "user", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "tool_result", ToolUseID: "never_issued", Content: rawMsg(t, "oops")},
			})},
		},
	}

	_, err := FromAnthropic(req)
	if err == nil {
		t.Fatal("expected an error for an unresolvable tool_result, got nil")
	}
	if _, ok := err.(*ProtocolError); !ok {
		t.Errorf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestFromAnthropic_Base64ImageBecomesFile(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Messages: []anthropicwire.Message{
			{Role: "user", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "image", Source: &anthropicwire.Source{Type: "base64", MediaType: "image/png", Data: "aGVsbG8="}},
			})},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := result.Prompt.Turns[0].Parts[0].(neutral.File)
	if !ok {
		t.Fatalf("expected File part, got %T", result.Prompt.Turns[0].Parts[0])
	}
	if f.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png", f.MediaType)
	}
	if string(f.Bytes) != "hello" {
		t.Errorf("Bytes = %q, want %q", f.Bytes, "hello")
	}
}

func TestFromAnthropic_MissingMediaTypeIsSniffedFromImageBytes(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Messages: []anthropicwire.Message{
			{Role: "user", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "image", Source: &anthropicwire.Source{Type: "base64", Data: "iVBORw0KGgo="}},
			})},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := result.Prompt.Turns[0].Parts[0].(neutral.File)
	if !ok {
		t.Fatalf("expected File part, got %T", result.Prompt.Turns[0].Parts[0])
	}
	if f.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png sniffed from the PNG magic bytes", f.MediaType)
	}
}

func TestFromAnthropic_RedactedThinkingPreservesDataAsText(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Messages: []anthropicwire.Message{
			{Role: "assistant", Content: rawMsg(t, []anthropicwire.ContentBlock{
				{Type: "redacted_thinking", Data: "opaque-blob"},
			})},
		},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := result.Prompt.Turns[0].Parts[0].(neutral.Reasoning)
	if !ok || r.Text != "opaque-blob" {
		t.Errorf("expected reasoning part carrying redacted data, got %+v", result.Prompt.Turns[0].Parts[0])
	}
}

func TestFromAnthropic_BuiltinToolCarriedAsRawSchema(t *testing.T) {
	req := &anthropicwire.MessagesRequest{
		Tools: []anthropicwire.ToolDecl{
			{Type: "bash_20250124", Name: "bash"},
			{Name: "custom_tool", Description: "does a thing", InputSchema: map[string]interface{}{"type": "object"}},
		},
		Messages: []anthropicwire.Message{{Role: "user", Content: rawMsg(t, "hi")}},
	}

	result, err := FromAnthropic(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result.Tools))
	}
	if !result.Tools[0].Builtin || result.Tools[0].BuiltinType != "bash_20250124" {
		t.Errorf("expected builtin bash tool, got %+v", result.Tools[0])
	}
	if result.Tools[1].Builtin {
		t.Errorf("custom_tool should not be marked builtin")
	}
}

func TestParseToolChoice_Kinds(t *testing.T) {
	cases := []struct {
		raw  json.RawMessage
		want neutral.ToolChoiceKind
	}{
		{rawMsg(t, map[string]string{"type": "auto"}), neutral.ToolChoiceAuto},
		{rawMsg(t, map[string]string{"type": "none"}), neutral.ToolChoiceNone},
		{rawMsg(t, map[string]string{"type": "any"}), neutral.ToolChoiceRequired},
	}
	for _, c := range cases {
		got, err := ParseToolChoice(c.raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.Kind != c.want {
			t.Errorf("ParseToolChoice(%s) = %+v, want kind %q", c.raw, got, c.want)
		}
	}
}

func TestParseToolChoice_ToolRequiresName(t *testing.T) {
	if _, err := ParseToolChoice(rawMsg(t, map[string]string{"type": "tool"})); err == nil {
		t.Fatal("expected an error for a tool choice missing a name")
	}
	got, err := ParseToolChoice(rawMsg(t, map[string]string{"type": "tool", "name": "Search"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != neutral.ToolChoiceTool || got.ToolName != "Search" {
		t.Errorf("got %+v, want kind=tool name=Search", got)
	}
}

func TestParseToolChoice_EmptyIsNil(t *testing.T) {
	got, err := ParseToolChoice(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil ToolChoice for empty input, got %+v", got)
	}
}
