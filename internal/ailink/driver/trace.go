package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Request metadata keys set by the provider layer and copied into traces.
const (
	MetaProviderID = "provider_id"
	MetaRole       = "role"
	MetaAttempt    = "attempt"
)

// Trace outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeRefused = "refused"
	OutcomeEmpty   = "empty"
)

// TraceEntry is one provider call. Prompts are recorded by size only since
// they carry resume and job text.
type TraceEntry struct {
	Timestamp       time.Time       `json:"timestamp"`
	Driver          string          `json:"driver"`
	ProviderID      string          `json:"provider_id,omitempty"`
	Role            string          `json:"role,omitempty"`
	Attempt         int             `json:"attempt,omitempty"`
	Model           string          `json:"model,omitempty"`
	SafetyThreshold string          `json:"safety_threshold,omitempty"`
	Endpoint        string          `json:"endpoint,omitempty"`
	PromptChars     int             `json:"prompt_chars"`
	StatusCode      int             `json:"status_code,omitempty"`
	Outcome         string          `json:"outcome"`
	Error           string          `json:"error,omitempty"`
	Response        json.RawMessage `json:"response,omitempty"`
	DurationMs      int64           `json:"duration_ms"`
}

// NewTraceEntry starts an entry for req with the routing metadata and
// gateway attempt the provider layer attached.
func NewTraceEntry(driverName string, req *Request) TraceEntry {
	entry := TraceEntry{Driver: driverName}
	if req == nil {
		return entry
	}
	entry.Model = req.Model
	entry.SafetyThreshold = req.SafetyThreshold
	entry.ProviderID = req.Metadata[MetaProviderID]
	entry.Role = req.Metadata[MetaRole]
	entry.Attempt, _ = strconv.Atoi(req.Metadata[MetaAttempt])
	for _, msg := range req.Messages {
		entry.PromptChars += utf8.RuneCountInString(msg.PlainText())
	}
	return entry
}

// Tracer appends entries to w as NDJSON.
type Tracer struct {
	mu sync.Mutex
	w  io.WriteCloser
}

var active atomic.Pointer[Tracer]

// EnableTracing appends traces to path until the returned cleanup runs.
// A previously enabled tracer is closed.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	t := &Tracer{w: f}
	if prev := active.Swap(t); prev != nil {
		_ = prev.Close()
	}
	return func() {
		if active.CompareAndSwap(t, nil) {
			_ = t.Close()
		}
	}, nil
}

// DisableTracing stops tracing and closes the trace file.
func DisableTracing() {
	if t := active.Swap(nil); t != nil {
		_ = t.Close()
	}
}

// IsTracingEnabled reports whether traces are being written.
func IsTracingEnabled() bool {
	return active.Load() != nil
}

// Trace records entry when tracing is enabled. An empty outcome is derived
// from Error.
func Trace(entry TraceEntry) {
	if t := active.Load(); t != nil {
		t.Write(entry)
	}
}

// Write appends one entry.
func (t *Tracer) Write(entry TraceEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeOK
		if entry.Error != "" {
			entry.Outcome = OutcomeError
		}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return
	}
	_, _ = t.w.Write(append(data, '\n'))
}

// Close closes the underlying writer; later writes are dropped.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	err := t.w.Close()
	t.w = nil
	return err
}
