// Package azure implements the backend driver for Azure OpenAI. The
// wire format is identical to OpenAI's Chat Completions API; Azure differs
// only in transport — "api-key" header auth instead of a bearer token, a
// resource-scoped https://<resource>.openai.azure.com base URL, and
// deployment-ID path routing with an api-version query parameter instead
// of a model field in the body. Grounded on
// _examples/digitallysavvy-go-ai/pkg/providers/azure/{provider.go,language_model.go};
// the request-body and streaming logic reuse pkg/drivers/openaicompat.
package azure

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/drivers/openaicompat"
	internalhttp "github.com/sudip358/claude-route/pkg/internal/http"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

const defaultAPIVersion = "2024-02-15-preview"

// Config configures an Azure OpenAI driver.
type Config struct {
	APIKey       string
	ResourceName string
	DeploymentID string
	APIVersion   string
	// BaseURL overrides the standard https://<resource>.openai.azure.com
	// endpoint, for private-link or sovereign-cloud deployments.
	BaseURL string
}

// Driver is the azure-openai backend shim.
type Driver struct {
	client       *internalhttp.Client
	deploymentID string
	apiVersion   string
}

// New builds an Azure OpenAI driver for the configured deployment.
func New(cfg Config) *Driver {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.openai.azure.com", cfg.ResourceName)
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Driver{
		client: internalhttp.NewClient(internalhttp.Config{
			BaseURL: baseURL,
			Headers: map[string]string{
				"api-key": cfg.APIKey,
			},
		}),
		deploymentID: cfg.DeploymentID,
		apiVersion:   apiVersion,
	}
}

func (d *Driver) Name() string { return "azure-openai" }

// Invoke builds a Chat Completions streaming request against the
// deployment-scoped path and returns a neutral event stream over its SSE
// response.
func (d *Driver) Invoke(ctx context.Context, opts driver.InvokeOptions) (neutral.EventStream, error) {
	body := d.buildRequestBody(opts)
	path := fmt.Sprintf("/openai/deployments/%s/chat/completions", d.deploymentID)

	resp, err := d.client.DoStream(ctx, internalhttp.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Query:  map[string]string{"api-version": d.apiVersion},
		Headers: map[string]string{
			"Accept": "text/event-stream",
		},
	})
	if err != nil {
		return nil, providererrors.NewProviderError("azure-openai", 0, "", err.Error(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, openaicompat.ClassifyHTTPError("azure-openai", resp)
	}

	return openaicompat.NewEventStream(resp.Body, d.deploymentID), nil
}

func (d *Driver) buildRequestBody(opts driver.InvokeOptions) map[string]interface{} {
	body := map[string]interface{}{
		"messages":       openaicompat.ToMessages(opts.Prompt),
		"stream":         true,
		"stream_options": map[string]interface{}{"include_usage": true},
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

	return body
}
