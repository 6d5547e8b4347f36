// Package openai implements the backend driver for OpenAI's Chat
// Completions API. It is grounded on
// _examples/digitallysavvy-go-ai/pkg/providers/openai/language_model.go:
// the same internalhttp.Client transport, the same
// buildRequestBody/openAIStream shape, generalized from that source's
// flat types.Message prompt to the neutral prompt and from text-only
// streaming to the full neutral event vocabulary. The wire conversion
// itself lives in pkg/drivers/openaicompat, shared with the xai and
// azure drivers.
package openai

import (
	"context"
	"net/http"

	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/drivers/openaicompat"
	internalhttp "github.com/sudip358/claude-route/pkg/internal/http"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Driver is the openai backend shim.
type Driver struct {
	client  *internalhttp.Client
	modelID string
}

// New builds an OpenAI driver for the given model, authenticating with
// apiKey. An empty baseURL defaults to OpenAI's public API.
func New(apiKey, baseURL, modelID string) *Driver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Driver{
		client: internalhttp.NewClient(internalhttp.Config{
			BaseURL: baseURL,
			Headers: map[string]string{
				"Authorization": "Bearer " + apiKey,
			},
		}),
		modelID: modelID,
	}
}

func (d *Driver) Name() string { return "openai" }

// Invoke builds a Chat Completions streaming request and returns a neutral
// event stream over its SSE response.
func (d *Driver) Invoke(ctx context.Context, opts driver.InvokeOptions) (neutral.EventStream, error) {
	body := d.buildRequestBody(opts)

	resp, err := d.client.DoStream(ctx, internalhttp.Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Body:   body,
		Headers: map[string]string{
			"Accept": "text/event-stream",
		},
	})
	if err != nil {
		return nil, providererrors.NewProviderError("openai", 0, "", err.Error(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, openaicompat.ClassifyHTTPError("openai", resp)
	}

	return openaicompat.NewEventStream(resp.Body, d.modelID), nil
}

func (d *Driver) buildRequestBody(opts driver.InvokeOptions) map[string]interface{} {
	body := map[string]interface{}{
		"model":               d.modelID,
		"messages":            openaicompat.ToMessages(opts.Prompt),
		"stream":              true,
		"stream_options":      map[string]interface{}{"include_usage": true},
		"parallel_tool_calls": true,
	}

	if opts.MaxOutputTokens > 0 {
		body["max_completion_tokens"] = opts.MaxOutputTokens
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}

	if len(opts.Tools) > 0 {
		body["tools"] = openaicompat.ToTools(opts.Tools)
	}
	if opts.ToolChoice != nil {
		body["tool_choice"] = openaicompat.ToToolChoice(*opts.ToolChoice)
	}

	if opts.Hints.ReasoningEffort != "" {
		reasoning := map[string]interface{}{"effort": string(opts.Hints.ReasoningEffort)}
		if opts.Hints.ReasoningSummaryAuto {
			reasoning["summary"] = "auto"
		}
		body["reasoning"] = reasoning
	}
	if opts.Hints.ServiceTier != "" {
		body["service_tier"] = string(opts.Hints.ServiceTier)
	}

	return body
}
