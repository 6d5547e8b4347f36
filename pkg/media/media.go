// Package media sniffs and encodes the file payloads carried on image and
// document content parts. It is adapted from
// _examples/digitallysavvy-go-ai's pkg/internal/media (magic-number image
// detection), pkg/internal/fileutil (data URL parsing), and
// pkg/internal/imageutil (base64 encoding) — collapsed into one package
// scoped to what the wire translation layer actually needs: image
// sniffing and data-URL <-> bytes conversions. Video/audio detection and
// the general MediaType/category bookkeeping that source carries for its
// many non-text providers are out of scope here.
package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SniffImage inspects the leading bytes of data and returns its MIME type
// by magic number, mirroring DetectImageMediaType in
// _examples/digitallysavvy-go-ai. Unlike that function, an unrecognized
// signature returns "" rather than defaulting to image/jpeg — callers
// here need to distinguish "unknown" from "is a jpeg".
func SniffImage(data []byte) string {
	switch {
	case len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A:
		return "image/png"
	case len(data) >= 4 && data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "image/gif"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "image/webp"
	default:
		return ""
	}
}

// SplitDataURL splits a data URL into its mime type and decoded bytes.
// Only base64-encoded data URLs are supported, which is all Anthropic and
// every backend driver ever emit.
func SplitDataURL(dataURL string) (mimeType string, data []byte, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("invalid data URL: missing data: prefix")
	}
	rest := dataURL[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("invalid data URL: missing comma separator")
	}
	header, payload := rest[:comma], rest[comma+1:]
	parts := strings.SplitN(header, ";", 2)
	mimeType = parts[0]
	if len(parts) != 2 || parts[1] != "base64" {
		return "", nil, fmt.Errorf("invalid data URL: only base64 encoding is supported")
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URL: %w", err)
	}
	return mimeType, decoded, nil
}

// CreateDataURL builds a data:<mime>;base64,<data> URL from raw bytes.
func CreateDataURL(mimeType string, data []byte) string {
	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
