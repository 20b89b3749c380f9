package driver

import (
	"context"
	"strings"

	"github.com/writify/writify/internal/ailink/content"
)

// Driver defines the interface for AI completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsSafetySettings bool
	SupportsJSONMode       bool
	SupportsStreaming      bool
	SupportedModels        []string
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"` // "text", "json_object"
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model          string
	Messages       []content.Message
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      *int

	// SafetyThreshold is a provider-neutral content filter level:
	// "none", "low", "medium" or "high". Drivers without safety settings ignore it.
	SafetyThreshold string

	PromptSlug string
	Metadata   map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// Text joins all text blocks of the response.
func (r *Response) Text() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, block := range r.Content {
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, "\n")
}

// TextMessage is a shorthand for a single-block text message.
func TextMessage(role, text string) content.Message {
	return content.Message{Role: role, Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: text}}}
}
