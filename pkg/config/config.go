// Package config holds the provider configuration contract: a
// caller-supplied map from provider name to backend credentials/kind,
// plus a file-backed loader that can hot-reload that map without ever
// mutating a registry a request is currently reading from.
//
// The static shape (BackendConfig/Registry) is original to this
// component; the file watching and atomic-swap-on-change behavior is
// grounded on kadirpekel-hector's pkg/config/provider/file.go
// FileProvider.
package config

import (
	"fmt"

	"github.com/sudip358/claude-route/pkg/driver"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
)

// DriverKind names one of the five recognized backend shims.
type DriverKind string

const (
	DriverOpenAI    DriverKind = "openai"
	DriverGoogle    DriverKind = "google"
	DriverXAI       DriverKind = "xai"
	DriverAzure     DriverKind = "azure"
	DriverAnthropic DriverKind = "anthropic"
)

// UnknownProviderError reports a model's "provider/model" prefix that has
// no registered backend.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown_provider: %q", e.Provider)
}

// Unwrap lets callers probe for providererrors.ErrProviderNotFound with
// errors.Is without losing the concrete UnknownProviderError type that
// errormap's classification switches on.
func (e *UnknownProviderError) Unwrap() error {
	return providererrors.ErrProviderNotFound
}

func (k DriverKind) valid() bool {
	switch k {
	case DriverOpenAI, DriverGoogle, DriverXAI, DriverAzure, DriverAnthropic:
		return true
	default:
		return false
	}
}

// BackendConfig is the per-provider configuration supplied by the caller.
// Fields prefixed Azure are only consulted when Kind == DriverAzure.
type BackendConfig struct {
	Kind    DriverKind `yaml:"kind"`
	APIKey  string     `yaml:"api_key"`
	BaseURL string     `yaml:"base_url,omitempty"`

	AzureResourceName string `yaml:"azure_resource_name,omitempty"`
	AzureDeploymentID string `yaml:"azure_deployment_id,omitempty"`
	AzureAPIVersion   string `yaml:"azure_api_version,omitempty"`

	// ReasoningEffort and ServiceTier are per-provider hints; the openai
	// driver is the only one that reads them.
	ReasoningEffort driver.ReasoningEffort `yaml:"reasoning_effort,omitempty"`
	ServiceTier     driver.ServiceTier     `yaml:"service_tier,omitempty"`

	// AutomaticCaching enables cache-control-free prompt caching on the
	// anthropic driver; other drivers ignore it.
	AutomaticCaching bool `yaml:"automatic_caching,omitempty"`

	// RateLimitRPS caps sustained requests/sec dispatched to this
	// backend; RateLimitBurst caps the token bucket's burst size (default
	// 1 when RateLimitRPS is set but RateLimitBurst is not). Zero means
	// unlimited.
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `yaml:"rate_limit_burst,omitempty"`
}

// Registry is an immutable snapshot of the provider map. Once built it is
// never mutated; a config reload produces a new Registry that callers
// swap to atomically (see Watcher), so an in-flight request always sees
// a internally consistent view.
type Registry struct {
	backends map[string]BackendConfig
}

// NewRegistry validates every backend's driver kind and returns an
// immutable registry. Unknown kinds are rejected at construction.
func NewRegistry(backends map[string]BackendConfig) (*Registry, error) {
	for name, b := range backends {
		if !b.Kind.valid() {
			return nil, fmt.Errorf("config: provider %q has unrecognized driver kind %q", name, b.Kind)
		}
	}
	cp := make(map[string]BackendConfig, len(backends))
	for k, v := range backends {
		cp[k] = v
	}
	return &Registry{backends: cp}, nil
}

// Lookup returns the backend config registered under provider, or an
// UnknownProviderError if no such provider was registered.
func (r *Registry) Lookup(providerName string) (BackendConfig, error) {
	b, ok := r.backends[providerName]
	if !ok {
		return BackendConfig{}, &UnknownProviderError{Provider: providerName}
	}
	return b, nil
}

// Providers returns the registered provider names, for diagnostics.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
