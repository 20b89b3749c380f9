package ailink

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/writify/writify/internal/ailink/content"
	"github.com/writify/writify/internal/ailink/driver"
	"github.com/writify/writify/internal/gateway"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 5 * time.Minute

	// DefaultRole is used when a Provider has no role set.
	DefaultRole = "writing"
)

// Provider sends rendered prompts to the driver resolved for Role. It
// implements gateway.Provider.
type Provider struct {
	Registry *Registry
	Role     string
	// Model overrides the provider's configured default model.
	Model       string
	Temperature *float64
	MaxTokens   *int
}

var _ gateway.Provider = (*Provider)(nil)

// GenerateText resolves a driver and completes prompt as a single user message.
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts gateway.Options) (string, error) {
	if p == nil || p.Registry == nil {
		return "", errors.New("ailink provider registry not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	role := strings.TrimSpace(p.Role)
	if role == "" {
		role = DefaultRole
	}
	resolved, err := p.Registry.Resolve(role, p.Model)
	if err != nil {
		return "", err
	}

	meta := map[string]string{driver.MetaProviderID: resolved.ProviderID, driver.MetaRole: role}
	if attempt := gateway.AttemptFromContext(ctx); attempt > 0 {
		meta[driver.MetaAttempt] = strconv.Itoa(attempt)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout(opts.Timeout))
	defer cancel()

	resp, err := resolved.Driver.Complete(ctx, &driver.Request{
		Model:           resolved.Model,
		Messages:        []content.Message{driver.TextMessage("user", prompt)},
		Temperature:     p.Temperature,
		MaxTokens:       p.MaxTokens,
		SafetyThreshold: opts.SafetyThreshold,
		Metadata:        meta,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *Provider) timeout(requested time.Duration) time.Duration {
	duration := requested
	if duration <= 0 {
		duration = p.Registry.cfg.DefaultTimeout
	}
	if duration <= 0 {
		duration = defaultTimeout
	}
	if duration > maxTimeout {
		duration = maxTimeout
	}
	return duration
}
