// Package schemaadapt rewrites a tool's JSON Schema draft-7 input schema
// into the shape a given provider's function-calling validator accepts.
// It is a pure, side-effect-free recursive transform in the spirit of
// _examples/digitallysavvy-go-ai's pkg/schema package, generalized from a
// validation-only interface into the structural rewrite the proxy needs.
package schemaadapt

// Provider names the handful of backends whose schema validators have
// quirks this adapter works around.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
)

// Adapt transforms schema for the given provider's accepted JSON Schema
// dialect. It never mutates the input; a new map tree is returned at
// every recursion level.
func Adapt(provider Provider, schema map[string]interface{}) map[string]interface{} {
	return adaptNode(provider, schema)
}

func adaptNode(provider Provider, node map[string]interface{}) map[string]interface{} {
	if node == nil {
		return nil
	}

	out := make(map[string]interface{}, len(node))
	for k, v := range node {
		out[k] = v
	}

	if provider == ProviderOpenAI || provider == ProviderGoogle {
		if fmt, ok := out["format"]; ok && fmt == "uri" {
			delete(out, "format")
		}
	}

	nodeType, _ := out["type"].(string)

	if nodeType == "object" {
		if provider == ProviderOpenAI {
			if _, ok := out["additionalProperties"]; !ok {
				out["additionalProperties"] = false
			}
			// required is preserved as-is if present; never synthesized.
		}
		if props, ok := out["properties"].(map[string]interface{}); ok {
			newProps := make(map[string]interface{}, len(props))
			for name, raw := range props {
				if child, ok := raw.(map[string]interface{}); ok {
					newProps[name] = adaptNode(provider, child)
				} else {
					newProps[name] = raw
				}
			}
			out["properties"] = newProps
		}
	}

	if nodeType == "array" {
		if items, ok := out["items"].(map[string]interface{}); ok {
			out["items"] = adaptNode(provider, items)
		}
	}

	return out
}
