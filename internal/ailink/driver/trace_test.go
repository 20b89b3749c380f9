package driver

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/content"
)

func readTrace(t *testing.T, path string) []TraceEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() // nolint:errcheck // test cleanup

	var entries []TraceEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry TraceEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestTraceWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	cleanup, err := EnableTracing(path)
	require.NoError(t, err)
	require.True(t, IsTracingEnabled())

	Trace(TraceEntry{Driver: "openai", Endpoint: "https://example.test/chat/completions", StatusCode: 200, DurationMs: 12})
	Trace(TraceEntry{Driver: "gemini", Error: "boom"})
	Trace(TraceEntry{Driver: "gemini", Outcome: OutcomeRefused, Error: "blocked: SAFETY"})
	cleanup()
	require.False(t, IsTracingEnabled())

	Trace(TraceEntry{Driver: "ignored"})

	entries := readTrace(t, path)
	require.Len(t, entries, 3)
	require.Equal(t, "openai", entries[0].Driver)
	require.Equal(t, OutcomeOK, entries[0].Outcome)
	require.False(t, entries[0].Timestamp.IsZero())
	require.Equal(t, OutcomeError, entries[1].Outcome)
	require.Equal(t, OutcomeRefused, entries[2].Outcome)
}

func TestEnableTracingReplacesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.ndjson")
	second := filepath.Join(dir, "second.ndjson")

	cleanupFirst, err := EnableTracing(first)
	require.NoError(t, err)
	cleanupSecond, err := EnableTracing(second)
	require.NoError(t, err)

	// A stale cleanup must not stop the newer tracer.
	cleanupFirst()
	require.True(t, IsTracingEnabled())

	Trace(TraceEntry{Driver: "gemini"})
	cleanupSecond()

	require.Empty(t, readTrace(t, first))
	require.Len(t, readTrace(t, second), 1)
}

func TestNewTraceEntryCopiesRequestContext(t *testing.T) {
	entry := NewTraceEntry("gemini", &Request{
		Model:           "gemini-1.5-flash",
		SafetyThreshold: "high",
		Messages:        []content.Message{TextMessage("user", "Schreiben Sie für Acme")},
		Metadata: map[string]string{
			MetaProviderID: "writify-gemini",
			MetaRole:       "writing",
			MetaAttempt:    "2",
		},
	})

	require.Equal(t, "gemini", entry.Driver)
	require.Equal(t, "writify-gemini", entry.ProviderID)
	require.Equal(t, "writing", entry.Role)
	require.Equal(t, 2, entry.Attempt)
	require.Equal(t, "high", entry.SafetyThreshold)
	require.Equal(t, 22, entry.PromptChars)

	require.Equal(t, TraceEntry{Driver: "openai"}, NewTraceEntry("openai", nil))
}
