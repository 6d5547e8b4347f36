package transcode

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sudip358/claude-route/pkg/neutral"
)

func textTurnEvents() []neutral.StreamEvent {
	return []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventTextStart},
		{Type: neutral.EventTextDelta, Text: "Hel"},
		{Type: neutral.EventTextDelta, Text: "lo"},
		{Type: neutral.EventTextEnd},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishStop, Usage: neutral.Usage{InputTokens: 10, OutputTokens: 2}},
		{Type: neutral.EventFinish},
	}
}

// parseSSE splits a written SSE buffer into (eventType, data) pairs for
// assertions, mirroring how pkg/providerutils/streaming's SSEParser reads
// events back.
func parseSSE(t *testing.T, raw string) []struct {
	Event string
	Data  string
} {
	t.Helper()
	var out []struct {
		Event string
		Data  string
	}
	for _, chunk := range strings.Split(raw, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var event, data string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		out = append(out, struct {
			Event string
			Data  string
		}{event, data})
	}
	return out
}

func TestStreamWriter_BlockIndexMonotoneAndResets(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, "claude-3-5-sonnet-latest")
	stream := &fakeStream{events: textTurnEvents()}

	if err := sw.Drive(stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := parseSSE(t, buf.String())
	var gotTypes []string
	for _, e := range events {
		gotTypes = append(gotTypes, e.Event)
	}
	want := []string{"message_start", "content_block_start", "content_block_delta", "content_block_delta", "content_block_stop", "message_delta", "message_stop"}
	if len(gotTypes) != len(want) {
		t.Fatalf("event sequence = %v, want %v", gotTypes, want)
	}
	for i := range want {
		if gotTypes[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, gotTypes[i], want[i])
		}
	}

	// The block must open and close at index 0.
	var start map[string]interface{}
	if err := json.Unmarshal([]byte(events[1].Data), &start); err != nil {
		t.Fatalf("decode content_block_start: %v", err)
	}
	if start["index"].(float64) != 0 {
		t.Errorf("content_block_start index = %v, want 0", start["index"])
	}

	var stop map[string]interface{}
	if err := json.Unmarshal([]byte(events[4].Data), &stop); err != nil {
		t.Fatalf("decode content_block_stop: %v", err)
	}
	if stop["index"].(float64) != 0 {
		t.Errorf("content_block_stop index = %v, want 0", stop["index"])
	}

	// A second Drive call on a fresh writer must start again at index 0.
	var buf2 bytes.Buffer
	sw2 := NewStreamWriter(&buf2, "claude-3-5-sonnet-latest")
	if err := sw2.Drive(&fakeStream{events: textTurnEvents()}); err != nil {
		t.Fatalf("unexpected error on second stream: %v", err)
	}
	events2 := parseSSE(t, buf2.String())
	var start2 map[string]interface{}
	_ = json.Unmarshal([]byte(events2[1].Data), &start2)
	if start2["index"].(float64) != 0 {
		t.Errorf("second stream's first block index = %v, want 0 (counter must reset per response)", start2["index"])
	}
}

func TestStreamWriter_MultipleBlocksIncrementIndex(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, "model")
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventTextStart},
		{Type: neutral.EventTextDelta, Text: "a"},
		{Type: neutral.EventTextEnd},
		{Type: neutral.EventToolInputStart, ToolCallID: "call_1", ToolName: "search"},
		{Type: neutral.EventToolInputDelta, JSONFragment: `{"q":"x"}`},
		{Type: neutral.EventToolInputEnd},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishToolCalls},
		{Type: neutral.EventFinish},
	}
	if err := sw.Drive(&fakeStream{events: events}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed := parseSSE(t, buf.String())
	var indices []float64
	for _, e := range parsed {
		if e.Event == "content_block_start" || e.Event == "content_block_stop" {
			var m map[string]interface{}
			_ = json.Unmarshal([]byte(e.Data), &m)
			indices = append(indices, m["index"].(float64))
		}
	}
	want := []float64{0, 0, 1, 1}
	if len(indices) != len(want) {
		t.Fatalf("indices = %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("indices[%d] = %v, want %v", i, indices[i], want[i])
		}
	}
}

func TestStreamWriter_StopReasonMapped(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, "model")
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventStepFinish, FinishReason: neutral.FinishToolCalls},
		{Type: neutral.EventFinish},
	}
	if err := sw.Drive(&fakeStream{events: events}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := parseSSE(t, buf.String())
	for _, e := range parsed {
		if e.Event != "message_delta" {
			continue
		}
		var m map[string]interface{}
		_ = json.Unmarshal([]byte(e.Data), &m)
		delta := m["delta"].(map[string]interface{})
		if delta["stop_reason"] != "tool_use" {
			t.Errorf("stop_reason = %v, want tool_use", delta["stop_reason"])
		}
	}
}

func TestStreamWriter_ErrorEventForwardedAndReturnsError(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, "model")
	events := []neutral.StreamEvent{
		{Type: neutral.EventStepStart},
		{Type: neutral.EventError, ErrKind: neutral.ErrOverloaded, ErrMessage: "upstream reset"},
	}
	err := sw.Drive(&fakeStream{events: events})
	if err == nil {
		t.Fatal("expected Drive to return an error on a stream error event")
	}

	parsed := parseSSE(t, buf.String())
	last := parsed[len(parsed)-1]
	if last.Event != "error" {
		t.Fatalf("expected last emitted event to be 'error', got %q", last.Event)
	}
	var m map[string]interface{}
	_ = json.Unmarshal([]byte(last.Data), &m)
	errObj := m["error"].(map[string]interface{})
	if errObj["type"] != "overloaded_error" {
		t.Errorf("error type = %v, want overloaded_error", errObj["type"])
	}
}
