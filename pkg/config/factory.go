package config

import (
	"fmt"

	"github.com/sudip358/claude-route/pkg/driver"
	"github.com/sudip358/claude-route/pkg/drivers/anthropicdriver"
	"github.com/sudip358/claude-route/pkg/drivers/azure"
	"github.com/sudip358/claude-route/pkg/drivers/google"
	"github.com/sudip358/claude-route/pkg/drivers/openai"
	"github.com/sudip358/claude-route/pkg/drivers/xai"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

// BuildDriver constructs the backend shim named by b.Kind for modelID,
// the second half of the inbound "provider/model" string. Azure is the
// one kind where modelID feeds a fallback deployment ID rather than a
// model field on the wire (the deployment already pins the model).
func BuildDriver(b BackendConfig, modelID string) (driver.Driver, error) {
	if modelID == "" && b.Kind != DriverAzure {
		return nil, fmt.Errorf("config: %w: empty model id for provider kind %q", providererrors.ErrModelNotFound, b.Kind)
	}
	switch b.Kind {
	case DriverOpenAI:
		return openai.New(b.APIKey, b.BaseURL, modelID), nil
	case DriverGoogle:
		return google.New(b.APIKey, b.BaseURL, modelID), nil
	case DriverXAI:
		return xai.New(b.APIKey, b.BaseURL, modelID), nil
	case DriverAzure:
		deploymentID := b.AzureDeploymentID
		if deploymentID == "" {
			deploymentID = modelID
		}
		return azure.New(azure.Config{
			APIKey:       b.APIKey,
			ResourceName: b.AzureResourceName,
			DeploymentID: deploymentID,
			APIVersion:   b.AzureAPIVersion,
			BaseURL:      b.BaseURL,
		}), nil
	case DriverAnthropic:
		return anthropicdriver.New(b.APIKey, b.BaseURL, modelID), nil
	default:
		return nil, fmt.Errorf("config: cannot build driver for kind %q", b.Kind)
	}
}
