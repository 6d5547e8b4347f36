// Package google implements the backend driver for Gemini's
// generateContent API. Grounded on
// _examples/digitallysavvy-go-ai/pkg/providers/google/language_model.go —
// the same internalhttp.Client transport, :streamGenerateContent?alt=sse
// path shape, and contents/systemInstruction/generationConfig body —
// generalized from that source's text-only, ID-less tool calls to the
// full neutral event vocabulary. Gemini has no equivalent of OpenAI's
// streamed tool-call argument deltas (a function call arrives whole in
// one chunk) and never
// assigns a call ID, so this driver synthesizes one per call and tracks it
// to match a later functionResponse back to its name.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sudip358/claude-route/pkg/driver"
	internalhttp "github.com/sudip358/claude-route/pkg/internal/http"
	"github.com/sudip358/claude-route/pkg/neutral"
	providererrors "github.com/sudip358/claude-route/pkg/provider/errors"
	"github.com/sudip358/claude-route/pkg/providerutils/streaming"
	"github.com/sudip358/claude-route/pkg/schemaadapt"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Driver is the google backend shim.
type Driver struct {
	client  *internalhttp.Client
	apiKey  string
	modelID string
}

// New builds a Gemini driver for the given model, authenticating with
// apiKey as a query parameter the way Google's REST API expects. An empty
// baseURL defaults to the public Generative Language API.
func New(apiKey, baseURL, modelID string) *Driver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Driver{
		client:  internalhttp.NewClient(internalhttp.Config{BaseURL: baseURL}),
		apiKey:  apiKey,
		modelID: modelID,
	}
}

func (d *Driver) Name() string { return "google" }

// Invoke builds a streamGenerateContent request and returns a neutral
// event stream over its SSE response.
func (d *Driver) Invoke(ctx context.Context, opts driver.InvokeOptions) (neutral.EventStream, error) {
	body, err := d.buildRequestBody(opts)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.DoStream(ctx, internalhttp.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/v1beta/models/%s:streamGenerateContent", d.modelID),
		Body:   body,
		Query:  map[string]string{"alt": "sse", "key": d.apiKey},
		Headers: map[string]string{
			"Accept": "text/event-stream",
		},
	})
	if err != nil {
		return nil, providererrors.NewProviderError("google", 0, "", err.Error(), err)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyHTTPError(resp)
	}

	return newEventStream(resp.Body), nil
}

func classifyHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)

	return providererrors.NewProviderError("google", resp.StatusCode, envelope.Error.Status, envelope.Error.Message, nil)
}

func (d *Driver) buildRequestBody(opts driver.InvokeOptions) (map[string]interface{}, error) {
	contents, err := toGoogleContents(opts.Prompt)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"contents": contents}

	if opts.Prompt.System != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": opts.Prompt.System}},
		}
	}

	genConfig := map[string]interface{}{}
	if opts.Temperature != nil {
		genConfig["temperature"] = *opts.Temperature
	}
	if opts.MaxOutputTokens > 0 {
		genConfig["maxOutputTokens"] = opts.MaxOutputTokens
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	if len(opts.Tools) > 0 {
		body["tools"] = []map[string]interface{}{
			{"functionDeclarations": toGoogleFunctionDeclarations(opts.Tools)},
		}
	}

	return body, nil
}

// toGoogleContents converts the neutral prompt into Gemini's contents
// array, tracking each assistant tool call's synthesized ID so a later
// tool-result turn can be converted back into a named functionResponse.
func toGoogleContents(p neutral.Prompt) ([]map[string]interface{}, error) {
	contents := make([]map[string]interface{}, 0, len(p.Turns))
	callIDToName := map[string]string{}

	for _, turn := range p.Turns {
		switch turn.Role {
		case neutral.RoleTool:
			parts := make([]map[string]interface{}, 0, len(turn.Parts))
			for _, part := range turn.Parts {
				tr, ok := part.(neutral.ToolResult)
				if !ok {
					continue
				}
				name, known := callIDToName[tr.CallID]
				if !known {
					return nil, &ProtocolError{Reason: fmt.Sprintf("tool_result for unknown call id %q", tr.CallID)}
				}
				parts = append(parts, map[string]interface{}{
					"functionResponse": map[string]interface{}{
						"name":     name,
						"response": toolResultResponse(tr.Output),
					},
				})
			}
			contents = append(contents, map[string]interface{}{"role": "function", "parts": parts})

		default:
			role := "user"
			if turn.Role == neutral.RoleAssistant {
				role = "model"
			}
			parts := make([]map[string]interface{}, 0, len(turn.Parts))
			for _, part := range turn.Parts {
				switch v := part.(type) {
				case neutral.Text:
					if v.Text == "" {
						continue
					}
					parts = append(parts, map[string]interface{}{"text": v.Text})
				case neutral.ToolCall:
					callIDToName[v.CallID] = v.ToolName
					parts = append(parts, map[string]interface{}{
						"functionCall": map[string]interface{}{"name": v.ToolName, "args": v.Input},
					})
				case neutral.File:
					if len(v.Bytes) == 0 {
						continue // remote URL files have no Gemini equivalent without fetching first
					}
					parts = append(parts, map[string]interface{}{
						"inlineData": map[string]interface{}{"mimeType": v.MediaType, "data": v.Bytes},
					})
				}
			}
			contents = append(contents, map[string]interface{}{"role": role, "parts": parts})
		}
	}

	return contents, nil
}

func toolResultResponse(output neutral.ToolResultOutput) map[string]interface{} {
	switch output.Kind {
	case neutral.ToolResultJSON, neutral.ToolResultErrorJSON:
		if m, ok := output.JSON.(map[string]interface{}); ok {
			return m
		}
		return map[string]interface{}{"result": output.JSON}
	case neutral.ToolResultContent:
		var text string
		for _, c := range output.Content {
			text += c.Text
		}
		return map[string]interface{}{"result": text}
	default:
		return map[string]interface{}{"result": output.Text}
	}
}

func toGoogleFunctionDeclarations(tools []neutral.Tool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		if t.Builtin {
			continue
		}
		schema := schemaadapt.Adapt(schemaadapt.ProviderGoogle, t.InputSchema)
		out = append(out, map[string]interface{}{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  schema,
		})
	}
	return out
}

// ProtocolError reports a prompt the proxy should never have been asked to
// send to Gemini — a tool_result that doesn't match a preceding call.
type ProtocolError struct{ Reason string }

func (e *ProtocolError) Error() string { return "google: " + e.Reason }

// eventStream adapts a Gemini streamGenerateContent SSE body, where each
// event carries a full (not incremental) GenerateContentResponse, into the
// neutral event vocabulary.
type eventStream struct {
	body   io.ReadCloser
	parser *streaming.SSEParser

	queue         []neutral.StreamEvent
	done          bool
	sentStepStart bool
	textOpen      bool
	toolCallSeq   int
	usage         neutral.Usage
}

func newEventStream(body io.ReadCloser) *eventStream {
	return &eventStream{body: body, parser: streaming.NewSSEParser(body)}
}

func (s *eventStream) Close() error { return s.body.Close() }

func (s *eventStream) Next() (neutral.StreamEvent, bool, error) {
	if !s.sentStepStart {
		s.sentStepStart = true
		return neutral.StreamEvent{Type: neutral.EventStepStart}, true, nil
	}

	for len(s.queue) == 0 && !s.done {
		if err := s.pump(); err != nil {
			return neutral.StreamEvent{}, false, err
		}
	}

	if len(s.queue) == 0 {
		return neutral.StreamEvent{}, false, nil
	}

	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true, nil
}

func (s *eventStream) pump() error {
	event, err := s.parser.Next()
	if err == io.EOF {
		s.closeText()
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
		s.done = true
		return nil
	}
	if err != nil {
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventError, ErrKind: neutral.ErrDriverStream, ErrMessage: err.Error(),
		})
		s.done = true
		return nil
	}

	if streaming.IsStreamDone(event) {
		s.closeText()
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventFinish})
		s.done = true
		return nil
	}

	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					FunctionCall *struct {
						Name string                 `json:"name"`
						Args map[string]interface{} `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount     int64 `json:"promptTokenCount"`
			CandidatesTokenCount int64 `json:"candidatesTokenCount"`
			CachedContentTokenCount int64 `json:"cachedContentTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return fmt.Errorf("google: decode stream chunk: %w", err)
	}

	if chunk.UsageMetadata != nil {
		s.usage.InputTokens = chunk.UsageMetadata.PromptTokenCount
		s.usage.OutputTokens = chunk.UsageMetadata.CandidatesTokenCount
		s.usage.CachedInputTokens = chunk.UsageMetadata.CachedContentTokenCount
	}

	if len(chunk.Candidates) == 0 {
		return nil
	}
	candidate := chunk.Candidates[0]

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			if !s.textOpen {
				s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextStart})
				s.textOpen = true
			}
			s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextDelta, Text: part.Text})
		}
		if part.FunctionCall != nil {
			s.closeText()
			s.toolCallSeq++
			s.queue = append(s.queue, neutral.StreamEvent{
				Type:       neutral.EventToolCall,
				ToolCallID: fmt.Sprintf("call_%d", s.toolCallSeq),
				ToolName:   part.FunctionCall.Name,
				Input:      part.FunctionCall.Args,
			})
		}
	}

	if candidate.FinishReason != "" {
		s.closeText()
		finish := mapFinishReason(candidate.FinishReason)
		if s.toolCallSeq > 0 && finish == neutral.FinishStop {
			// Gemini reports STOP even for a turn that ended in a function
			// call; there is no distinct TOOL_CALLS finish reason on the wire.
			finish = neutral.FinishToolCalls
		}
		s.queue = append(s.queue, neutral.StreamEvent{
			Type: neutral.EventStepFinish, FinishReason: finish, Usage: s.usage,
		})
	}

	return nil
}

func (s *eventStream) closeText() {
	if s.textOpen {
		s.queue = append(s.queue, neutral.StreamEvent{Type: neutral.EventTextEnd})
		s.textOpen = false
	}
}

func mapFinishReason(reason string) neutral.FinishReason {
	switch reason {
	case "STOP":
		return neutral.FinishStop
	case "MAX_TOKENS":
		return neutral.FinishLength
	default:
		return neutral.FinishOther
	}
}
