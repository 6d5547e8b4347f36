// Package neutral defines the provider-independent intermediate
// representation that Anthropic requests are parsed into and rendered
// back out of. A Prompt is an ordered sequence of Turns; each Turn carries
// an ordered list of Parts drawn from a small tagged union.
package neutral

// Role identifies who produced a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry in a Prompt: a role plus an ordered list of Parts.
// CacheControl is the message-level annotation a part without one of its
// own inherits, but only if it is the last part of the turn.
type Turn struct {
	Role         Role
	Parts        []Part
	CacheControl map[string]interface{}
}

// Prompt is the ordered sequence of Turns produced by converting an
// Anthropic MessagesRequest, consumed exactly once by a driver, and
// discarded.
type Prompt struct {
	System string
	Turns  []Turn
}

// Part is the tagged union of content part variants. PartKind names the
// variant; the converters and drivers dispatch on the concrete type with
// type switches.
type Part interface {
	PartKind() Kind
}

// Kind enumerates the Part variants.
type Kind string

const (
	KindText      Kind = "text"
	KindReasoning Kind = "reasoning"
	KindFile      Kind = "file"
	KindToolCall  Kind = "tool_call"
	KindToolResult Kind = "tool_result"
)

// Text is a plain text content part.
type Text struct {
	Text         string
	CacheControl map[string]interface{}
}

func (Text) PartKind() Kind { return KindText }

// Reasoning is opaque chain-of-thought content carried across providers.
type Reasoning struct {
	Text         string
	CacheControl map[string]interface{}
}

func (Reasoning) PartKind() Kind { return KindReasoning }

// File is an image or document part. Exactly one of Bytes or URL is set.
// MediaType comes from the source block, or for base64 data without one is
// sniffed from the image bytes; it is empty for a URL source that names no
// media type and for data that sniffing does not recognize.
type File struct {
	Bytes        []byte
	URL          string
	MediaType    string
	Filename     string
	CacheControl map[string]interface{}
}

func (File) PartKind() Kind { return KindFile }

// ToolCall is a model-issued call to a named tool. CallID is unique within
// the assistant turn that contains it; see DedupToolCalls.
type ToolCall struct {
	CallID       string
	ToolName     string
	Input        map[string]interface{}
	CacheControl map[string]interface{}
}

func (ToolCall) PartKind() Kind { return KindToolCall }

// ToolResultOutputKind enumerates the shapes a tool result's output can take.
type ToolResultOutputKind string

const (
	ToolResultText      ToolResultOutputKind = "text"
	ToolResultJSON      ToolResultOutputKind = "json"
	ToolResultErrorText ToolResultOutputKind = "error_text"
	ToolResultErrorJSON ToolResultOutputKind = "error_json"
	ToolResultContent   ToolResultOutputKind = "content"
)

// ToolResultContentPart is one element of a content([text|media]...) output.
type ToolResultContentPart struct {
	Text      string
	MediaType string
	Bytes     []byte
}

// ToolResultOutput is the value returned by a tool call.
type ToolResultOutput struct {
	Kind    ToolResultOutputKind
	Text    string
	JSON    interface{}
	Content []ToolResultContentPart
}

// ToolResult carries the output of a previously-issued ToolCall. Its
// CallID must match a preceding assistant ToolCall.CallID in prompt
// order — violations are a protocol_invariant error from FromAnthropic.
type ToolResult struct {
	CallID       string
	Output       ToolResultOutput
	CacheControl map[string]interface{}
}

func (ToolResult) PartKind() Kind { return KindToolResult }

// DedupToolCalls applies the duplicate-call-id suppression invariant:
// within parts belonging to a single assistant turn, a second ToolCall
// sharing a CallID already seen in this slice is dropped. The first
// occurrence wins, including its Input.
func DedupToolCalls(parts []Part) []Part {
	seen := make(map[string]bool, len(parts))
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		tc, ok := p.(ToolCall)
		if !ok {
			out = append(out, p)
			continue
		}
		if seen[tc.CallID] {
			continue
		}
		seen[tc.CallID] = true
		out = append(out, p)
	}
	return out
}
