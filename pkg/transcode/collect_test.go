package transcode

import (
	"testing"

	"github.com/sudip358/claude-route/pkg/neutral"
)

func TestCollect_AssemblesTextResponse(t *testing.T) {
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventTextStart},
		{Type: neutral.EventTextDelta, Text: "Hel"},
		{Type: neutral.EventTextDelta, Text: "lo"},
		{Type: neutral.EventTextEnd},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishStop, Usage: neutral.Usage{InputTokens: 5, OutputTokens: 1}},
		{Type: neutral.EventFinish},
	}

	resp, err := Collect(&fakeStream{events: events}, false, "claude-3-5-sonnet-latest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", resp.StopReason)
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "Hello" {
		t.Fatalf("expected single merged text block %q, got %+v", "Hello", resp.Content)
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v, want input=5 output=1", resp.Usage)
	}
}

func TestCollect_AssemblesToolCallFromStreamedInput(t *testing.T) {
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventToolInputStart, ToolCallID: "call_1", ToolName: "get_weather"},
		{Type: neutral.EventToolInputDelta, JSONFragment: `{"city":`},
		{Type: neutral.EventToolInputDelta, JSONFragment: `"nyc"}`},
		{Type: neutral.EventToolInputEnd},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishToolCalls},
		{Type: neutral.EventFinish},
	}

	resp, err := Collect(&fakeStream{events: events}, false, "model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use", resp.StopReason)
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "tool_use" {
		t.Fatalf("expected one tool_use block, got %+v", resp.Content)
	}
	if resp.Content[0].Input["city"] != "nyc" {
		t.Errorf("tool input = %v, want city=nyc", resp.Content[0].Input)
	}
}

func TestCollect_StreamErrorPropagates(t *testing.T) {
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventError, ErrKind: neutral.ErrDriverStream, ErrMessage: "boom"},
	}
	_, err := Collect(&fakeStream{events: events}, false, "model")
	if err == nil {
		t.Fatal("expected an error from a mid-stream error event")
	}
}

func TestCollect_RepairsIncompleteToolInputJSON(t *testing.T) {
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventToolInputStart, ToolCallID: "call_1", ToolName: "get_weather"},
		{Type: neutral.EventToolInputDelta, JSONFragment: `{"city": "nyc"`},
		{Type: neutral.EventToolInputEnd},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishToolCalls},
		{Type: neutral.EventFinish},
	}

	resp, err := Collect(&fakeStream{events: events}, false, "model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "tool_use" {
		t.Fatalf("expected one tool_use block, got %+v", resp.Content)
	}
	if resp.Content[0].Input["city"] != "nyc" {
		t.Errorf("tool input = %v, want city=nyc from repaired JSON", resp.Content[0].Input)
	}
}
