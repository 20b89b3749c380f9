package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/content"
)

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Provider: "openai", StatusCode: 429, Message: "slow down"}
	require.Equal(t, "openai request failed: status 429: slow down", err.Error())

	refused := &ProviderError{Provider: "gemini", Kind: KindRefused, Message: "blocked"}
	require.Equal(t, "gemini request failed (refused): blocked", refused.Error())
}

func TestProviderErrorUnwrap(t *testing.T) {
	err := &ProviderError{Provider: "gemini", Kind: KindNetwork, Err: context.DeadlineExceeded}
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	var nilErr *ProviderError
	require.Equal(t, "provider error", nilErr.Error())
	require.NoError(t, nilErr.Unwrap())
}

func TestResponseText(t *testing.T) {
	resp := &Response{Content: []content.ContentBlock{
		{Type: content.ContentTypeText, Text: "first"},
		{Type: content.ContentTypeText, Text: "second"},
	}}
	require.Equal(t, "first\nsecond", resp.Text())

	var empty *Response
	require.Empty(t, empty.Text())
}
