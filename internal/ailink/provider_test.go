package ailink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/content"
	"github.com/writify/writify/internal/ailink/driver"
	"github.com/writify/writify/internal/gateway"
)

type recordingDriver struct {
	requests  []*driver.Request
	deadlines []time.Duration
	reply     string
	err       error
}

func (d *recordingDriver) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	d.requests = append(d.requests, req)
	if deadline, ok := ctx.Deadline(); ok {
		d.deadlines = append(d.deadlines, time.Until(deadline))
	}
	if d.err != nil {
		return nil, d.err
	}
	return &driver.Response{Content: []content.ContentBlock{{Type: content.ContentTypeText, Text: d.reply}}}, nil
}

func (d *recordingDriver) Name() string { return "recording" }

func (d *recordingDriver) Capabilities() driver.Capabilities { return driver.Capabilities{} }

func newTestProvider(drv driver.Driver, timeout time.Duration) *Provider {
	reg := NewRegistry(Config{
		DefaultProvider: "test",
		DefaultTimeout:  timeout,
		Providers: map[string]ProviderInstanceConfig{
			"test": {
				Enabled:     true,
				AIProvider:  "openai",
				Models:      map[string]string{"default": "model-x"},
				Credentials: []CredentialConfig{{Enabled: true, Label: "main", APIKey: "k"}},
			},
		},
	})
	reg.drivers = map[string]driver.Driver{"test:main": drv}
	return &Provider{Registry: reg}
}

func TestProviderGenerateText(t *testing.T) {
	drv := &recordingDriver{reply: "  Dear Hiring Manager  "}
	p := newTestProvider(drv, 0)

	text, err := p.GenerateText(context.Background(), "write a letter", gateway.Options{SafetyThreshold: "high", Timeout: 30 * time.Second})
	require.NoError(t, err)
	require.Equal(t, "Dear Hiring Manager", text)

	require.Len(t, drv.requests, 1)
	req := drv.requests[0]
	require.Equal(t, "model-x", req.Model)
	require.Equal(t, "high", req.SafetyThreshold)
	require.Len(t, req.Messages, 1)
	require.Equal(t, "user", req.Messages[0].Role)
	require.Equal(t, "write a letter", req.Messages[0].PlainText())
	require.Equal(t, DefaultRole, req.Metadata["role"])

	require.Len(t, drv.deadlines, 1)
	require.LessOrEqual(t, drv.deadlines[0], 30*time.Second)
	require.Greater(t, drv.deadlines[0], 25*time.Second)
}

func TestProviderTimeoutClamp(t *testing.T) {
	p := newTestProvider(&recordingDriver{}, 0)
	require.Equal(t, defaultTimeout, p.timeout(0))
	require.Equal(t, maxTimeout, p.timeout(time.Hour))

	p = newTestProvider(&recordingDriver{}, 90*time.Second)
	require.Equal(t, 90*time.Second, p.timeout(0))
	require.Equal(t, time.Second, p.timeout(time.Second))
}

func TestProviderPassesDriverErrors(t *testing.T) {
	perr := &driver.ProviderError{Provider: "recording", StatusCode: 503, Message: "down"}
	p := newTestProvider(&recordingDriver{err: perr}, 0)

	_, err := p.GenerateText(context.Background(), "hi", gateway.Options{})
	require.ErrorIs(t, err, perr)
	require.Equal(t, gateway.KindUnavailable, gateway.Classify(err))
}

func TestProviderRejectsEmptyPrompt(t *testing.T) {
	p := newTestProvider(&recordingDriver{}, 0)
	_, err := p.GenerateText(context.Background(), "  ", gateway.Options{})
	require.Error(t, err)

	var nilProvider *Provider
	_, err = nilProvider.GenerateText(context.Background(), "hi", gateway.Options{})
	require.Error(t, err)
}

func TestProviderTagsGatewayAttempts(t *testing.T) {
	drv := &recordingDriver{err: &driver.ProviderError{Provider: "recording", StatusCode: 503, Message: "down"}}
	policy := gateway.DefaultPolicy()
	policy.MinRequestInterval = 0
	policy.RetryDelay = 0
	policy.MaxRetries = 1
	gw := gateway.New(newTestProvider(drv, 0), policy)

	_, err := gw.Generate(context.Background(), "write a letter")
	require.Error(t, err)

	require.Len(t, drv.requests, 2)
	require.Equal(t, "1", drv.requests[0].Metadata[driver.MetaAttempt])
	require.Equal(t, "2", drv.requests[1].Metadata[driver.MetaAttempt])
	require.Equal(t, "test", drv.requests[1].Metadata[driver.MetaProviderID])

	_, err = newTestProvider(drv, 0).GenerateText(context.Background(), "direct", gateway.Options{})
	require.Error(t, err)
	_, tagged := drv.requests[2].Metadata[driver.MetaAttempt]
	require.False(t, tagged)
}
