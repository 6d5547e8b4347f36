package driver

import "strings"

// SupportsImageInput reports whether modelID (for the named backend kind)
// accepts image content parts, mirroring the per-model-ID capability gate
// the anthropic backend itself exposes. Gating happens before the request
// ever leaves the proxy, so an image sent to a text-only model fails fast
// with unsupported_media_type instead of forwarding a doomed request.
func SupportsImageInput(kind, modelID string) bool {
	if kind != "anthropic" {
		// openai/google/xai/azure model families are too varied to enumerate
		// here; their own APIs reject an unsupported image input directly.
		return true
	}
	switch modelID {
	case "claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307", "claude-3-5-sonnet-20241022":
		return true
	}
	return strings.Contains(modelID, "claude-3-5") ||
		strings.Contains(modelID, "claude-3-7") ||
		strings.Contains(modelID, "claude-opus-4") ||
		strings.Contains(modelID, "claude-sonnet-4") ||
		strings.Contains(modelID, "claude-haiku-4")
}

// SupportsStructuredOutput reports whether modelID accepts
// output_config.format-style structured output requests.
func SupportsStructuredOutput(kind, modelID string) bool {
	if kind != "anthropic" {
		return true
	}
	return strings.Contains(modelID, "claude-sonnet-4-6") ||
		strings.Contains(modelID, "claude-opus-4-6") ||
		strings.Contains(modelID, "claude-sonnet-4-5") ||
		strings.Contains(modelID, "claude-opus-4-5") ||
		strings.Contains(modelID, "claude-haiku-4-5") ||
		strings.Contains(modelID, "claude-opus-4-1")
}
