// Package xai implements the backend driver for xAI's Grok models.
// xAI's Chat Completions API is wire-compatible with OpenAI's, differing
// only in its request body (plain max_tokens instead of
// max_completion_tokens, and no reasoning/service_tier hints) — grounded on
// _examples/digitallysavvy-go-ai/pkg/providers/xai/language_model.go,
// which builds on the same internalhttp.Client transport as its openai
// counterpart. The shared wire conversion lives in
// pkg/drivers/openaicompat.
package xai

import (
	"context"
	"net/http"

	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/drivers/openaicompat"
	internalhttp "github.com/sudip358/claude-route/pkg/internal/http"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

const defaultBaseURL = "https://api.x.ai/v1"

// Driver is the xai backend shim.
type Driver struct {
	client  *internalhttp.Client
	modelID string
}

// New builds an xAI driver for the given model, authenticating with
// apiKey. An empty baseURL defaults to xAI's public API.
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

func (d *Driver) Name() string { return "xai" }

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
		return nil, providererrors.NewProviderError("xai", 0, "", err.Error(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, openaicompat.ClassifyHTTPError("xai", resp)
	}

	return openaicompat.NewEventStream(resp.Body, d.modelID), nil
}

func (d *Driver) buildRequestBody(opts driver.InvokeOptions) map[string]interface{} {
	body := map[string]interface{}{
		"model":    d.modelID,
		"messages": openaicompat.ToMessages(opts.Prompt),
		"stream":   true,
		// xAI does not document stream_options.include_usage, but accepts and
		// honors it the same way OpenAI does.
		"stream_options": map[string]interface{}{"include_usage": true},
	}

	if opts.MaxOutputTokens > 0 {
		body["max_tokens"] = opts.MaxOutputTokens
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

	return body
}
