// Package gemini implements the Google Gemini driver on top of langchaingo.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/writify/writify/internal/ailink/content"
	"github.com/writify/writify/internal/ailink/driver"
)

const defaultModel = "gemini-1.5-flash"

// ModelFactory builds a langchaingo model for one safety threshold.
type ModelFactory func(ctx context.Context, apiKey, model string, threshold googleai.HarmBlockThreshold) (llms.Model, error)

// Client implements driver.Driver for Gemini.
//
// Safety settings are fixed per langchaingo client, so one model is kept
// per requested threshold.
type Client struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	Factory      ModelFactory

	mu     sync.Mutex
	models map[googleai.HarmBlockThreshold]llms.Model
}

// NewClient returns a client backed by googleai.
func NewClient(apiKey, model string) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	return &Client{
		APIKey:       strings.TrimSpace(apiKey),
		DefaultModel: model,
		Factory:      newGoogleAIModel,
	}
}

func newGoogleAIModel(ctx context.Context, apiKey, model string, threshold googleai.HarmBlockThreshold) (llms.Model, error) {
	return googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
		googleai.WithHarmThreshold(threshold),
	)
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "gemini"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsSafetySettings: true,
		SupportsJSONMode:       true,
		SupportsStreaming:      false,
	}
}

// Complete sends the flattened conversation as a single generation request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	prompt := flattenMessages(req.Messages)
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("messages are required")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = c.DefaultModel
	}
	model, err := c.modelFor(ctx, modelName, HarmThreshold(req.SafetyThreshold))
	if err != nil {
		return nil, err
	}

	opts := []llms.CallOption{llms.WithModel(modelName)}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		opts = append(opts, llms.WithJSONMode())
	}

	trace := driver.NewTraceEntry("gemini", req)
	trace.Model = modelName
	start := time.Now()
	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	trace.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		perr := classify(err)
		trace.StatusCode = perr.StatusCode
		trace.Error = err.Error()
		driver.Trace(trace)
		return nil, perr
	}

	return toDriverResponse(resp, trace)
}

func (c *Client) modelFor(ctx context.Context, name string, threshold googleai.HarmBlockThreshold) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models == nil {
		c.models = make(map[googleai.HarmBlockThreshold]llms.Model)
	}
	if m, ok := c.models[threshold]; ok {
		return m, nil
	}
	factory := c.Factory
	if factory == nil {
		factory = newGoogleAIModel
	}
	m, err := factory(ctx, c.APIKey, name, threshold)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.models[threshold] = m
	return m, nil
}

// HarmThreshold maps a provider-neutral level to a googleai threshold.
// Unknown or empty levels use medium-and-above.
func HarmThreshold(level string) googleai.HarmBlockThreshold {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "none", "off":
		return googleai.HarmBlockNone
	case "low":
		return googleai.HarmBlockLowAndAbove
	case "high", "only_high":
		return googleai.HarmBlockOnlyHigh
	default:
		return googleai.HarmBlockMediumAndAbove
	}
}

func flattenMessages(messages []content.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		text := strings.TrimSpace(msg.PlainText())
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func toDriverResponse(resp *llms.ContentResponse, trace driver.TraceEntry) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		trace.Outcome, trace.Error = driver.OutcomeEmpty, "no candidates returned"
		driver.Trace(trace)
		return nil, &driver.ProviderError{Provider: "gemini", Kind: driver.KindEmpty, Message: "no candidates returned"}
	}

	choice := resp.Choices[0]
	if isSafetyStop(choice.StopReason) {
		trace.Outcome, trace.Error = driver.OutcomeRefused, "blocked: "+choice.StopReason
		driver.Trace(trace)
		return nil, &driver.ProviderError{Provider: "gemini", Kind: driver.KindRefused, Message: "response blocked by safety settings"}
	}
	if strings.TrimSpace(choice.Content) == "" {
		trace.Outcome, trace.Error = driver.OutcomeEmpty, "candidate has no text"
		driver.Trace(trace)
		return nil, &driver.ProviderError{Provider: "gemini", Kind: driver.KindEmpty, Message: "candidate has no text"}
	}

	driver.Trace(trace)

	out := &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: choice.Content}},
		FinishReason: choice.StopReason,
	}
	if usage := usageFrom(choice.GenerationInfo); usage != nil {
		out.Usage = usage
	}
	return out, nil
}

func isSafetyStop(reason string) bool {
	upper := strings.ToUpper(reason)
	return strings.Contains(upper, "SAFETY") || strings.Contains(upper, "BLOCKLIST") || strings.Contains(upper, "PROHIBITED")
}

func usageFrom(info map[string]any) *driver.Usage {
	if len(info) == 0 {
		return nil
	}
	input, okIn := info["input_tokens"].(int32)
	output, okOut := info["output_tokens"].(int32)
	if !okIn && !okOut {
		return nil
	}
	return &driver.Usage{
		PromptTokens:     int(input),
		CompletionTokens: int(output),
		TotalTokens:      int(input + output),
	}
}

type httpCoder interface {
	HTTPCode() int
}

func classify(err error) *driver.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &driver.ProviderError{Provider: "gemini", Kind: driver.KindNetwork, Message: err.Error(), Err: err}
	}
	var coded httpCoder
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return &driver.ProviderError{Provider: "gemini", StatusCode: coded.HTTPCode(), Message: err.Error(), Err: err}
	}
	// The generative language client reports most failures as gRPC statuses
	// with HTTPCode() == -1.
	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.DeadlineExceeded {
			return &driver.ProviderError{Provider: "gemini", Kind: driver.KindNetwork, Message: st.Message(), Err: err}
		}
		if code := httpStatusForCode(st.Code()); code > 0 {
			return &driver.ProviderError{Provider: "gemini", StatusCode: code, Message: st.Message(), Err: err}
		}
	}
	return &driver.ProviderError{Provider: "gemini", Message: err.Error(), Err: err}
}

// httpStatusForCode maps gRPC codes to the HTTP statuses the gateway classifies.
func httpStatusForCode(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.ResourceExhausted:
		return 429
	case codes.Internal, codes.DataLoss:
		return 500
	case codes.Unimplemented:
		return 501
	case codes.Unavailable:
		return 503
	default:
		return 0
	}
}
