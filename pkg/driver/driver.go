// Package driver defines the backend driver interface: the single
// `invoke` operation every backend (openai, google, xai, azure, the
// anthropic API itself) implements as a small shim, modeled on
// _examples/digitallysavvy-go-ai's provider.LanguageModel/DoStream pair
// but collapsed to the one operation the proxy needs — a driver here
// never needs DoGenerate or embeddings, since the stream transcoder
// handles both streaming and buffered responses from a single event
// stream.
package driver

import (
	"context"

	"github.com/sudip358/claude-route/pkg/neutral"
)

// ReasoningEffort is the OpenAI-specific reasoning.effort knob.
type ReasoningEffort string

const (
	ReasoningEffortMinimal ReasoningEffort = "minimal"
	ReasoningEffortLow     ReasoningEffort = "low"
	ReasoningEffortMedium  ReasoningEffort = "medium"
	ReasoningEffortHigh    ReasoningEffort = "high"
)

// ServiceTier is the OpenAI-specific service_tier knob.
type ServiceTier string

const (
	ServiceTierFlex     ServiceTier = "flex"
	ServiceTierPriority ServiceTier = "priority"
)

// Hints carries the per-provider knobs that do not belong in the neutral
// prompt. The openai driver reads ReasoningEffort, ReasoningSummaryAuto and
// ServiceTier; the anthropic driver reads SendReasoning and
// AutomaticCaching. No driver reads ParallelToolCalls, and every driver
// ignores the knobs it does not read.
type Hints struct {
	ReasoningEffort      ReasoningEffort
	ReasoningSummaryAuto bool
	ServiceTier          ServiceTier
	ParallelToolCalls    bool
	SendReasoning        bool

	// AutomaticCaching is anthropicdriver-specific: when true and the
	// caller never set an explicit cache_control anywhere, the driver
	// synthesizes one on the final content block so the request still
	// benefits from prompt caching. Other drivers ignore it.
	AutomaticCaching bool
}

// InvokeOptions bundles everything a driver needs to produce one response.
type InvokeOptions struct {
	Prompt          neutral.Prompt
	Tools           []neutral.Tool
	ToolChoice      *neutral.ToolChoice
	MaxOutputTokens int
	Temperature     *float64
	Hints           Hints
}

// Driver is implemented by every backend shim. Invoke must propagate
// ctx cancellation to the underlying HTTP call — when the caller's
// context is canceled the driver stops the upstream request rather than
// letting it run to completion in the background.
type Driver interface {
	Name() string
	Invoke(ctx context.Context, opts InvokeOptions) (neutral.EventStream, error)
}
