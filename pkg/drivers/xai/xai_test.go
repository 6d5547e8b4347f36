package xai

import (
	"testing"

	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/neutral"
)

func TestBuildRequestBody_UsesPlainMaxTokens(t *testing.T) {
	d := New("xai-test", "", "grok-4")
	body := d.buildRequestBody(driver.InvokeOptions{
		Prompt:          neutral.Prompt{Turns: []neutral.Turn{{Role: neutral.RoleUser, Parts: []neutral.Part{neutral.Text{Text: "hi"}}}}},
		MaxOutputTokens: 256,
	})

	if body["max_tokens"] != 256 {
		t.Errorf("max_tokens = %v, want 256", body["max_tokens"])
	}
	if _, has := body["max_completion_tokens"]; has {
		t.Error("xai must not send max_completion_tokens, that is openai-specific")
	}
}

func TestName(t *testing.T) {
	d := New("xai-test", "", "grok-4")
	if d.Name() != "xai" {
		t.Errorf("Name() = %q, want xai", d.Name())
	}
}
