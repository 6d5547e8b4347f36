package neutral

import "testing"

func TestDedupToolCalls_FirstOccurrenceWins(t *testing.T) {
	parts := []Part{
		ToolCall{CallID: "call_1", ToolName: "search", Input: map[string]interface{}{"q": "first"}},
		Text{Text: "some narration between calls"},
		ToolCall{CallID: "call_1", ToolName: "search", Input: map[string]interface{}{"q": "retry with empty args"}},
		ToolCall{CallID: "call_2", ToolName: "lookup"},
	}

	out := DedupToolCalls(parts)

	if len(out) != 3 {
		t.Fatalf("expected 3 parts after dedup, got %d", len(out))
	}

	tc, ok := out[0].(ToolCall)
	if !ok {
		t.Fatalf("expected first part to remain a ToolCall, got %T", out[0])
	}
	if tc.Input["q"] != "first" {
		t.Errorf("first occurrence's input should win, got %v", tc.Input)
	}

	if _, ok := out[1].(Text); !ok {
		t.Errorf("non-ToolCall parts must pass through unchanged")
	}

	last, ok := out[2].(ToolCall)
	if !ok || last.CallID != "call_2" {
		t.Errorf("expected call_2 to survive untouched, got %+v", out[2])
	}
}

func TestDedupToolCalls_NoDuplicates(t *testing.T) {
	parts := []Part{
		ToolCall{CallID: "a"},
		ToolCall{CallID: "b"},
	}
	out := DedupToolCalls(parts)
	if len(out) != 2 {
		t.Fatalf("expected both calls to survive, got %d", len(out))
	}
}

func TestToAnthropicStopReason(t *testing.T) {
	cases := []struct {
		reason FinishReason
		want   string
	}{
		{FinishStop, "end_turn"},
		{FinishToolCalls, "tool_use"},
		{FinishLength, "max_tokens"},
		{FinishOther, "unknown"},
		{FinishReason("something-unmapped"), "unknown"},
	}

	for _, tc := range cases {
		if got := ToAnthropicStopReason(tc.reason); got != tc.want {
			t.Errorf("ToAnthropicStopReason(%q) = %q, want %q", tc.reason, got, tc.want)
		}
	}
}
