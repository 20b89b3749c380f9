// Package gateway sequences, throttles and retries generation requests sent
// to an AI provider, and substitutes offline text once the provider is
// considered unavailable.
package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Options are passed to the provider on every call.
type Options struct {
	SafetyThreshold string
	Timeout         time.Duration
}

// Provider generates text for a prompt.
type Provider interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f ProviderFunc) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// Responder produces offline text for a prompt. It must not fail.
type Responder interface {
	Respond(prompt string) string
}

// Recorder receives gateway events, typically for metrics.
type Recorder interface {
	Dispatched(outcome string, attempts int, elapsed time.Duration)
	Retried(kind string)
	QuotaRejected()
	FallbackActivated()
	FallbackServed()
	QueueDepth(depth int)
}

// Policy holds the gateway limits.
type Policy struct {
	HourlyRequestLimit int
	QuotaWindow        time.Duration
	MinRequestInterval time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	ProviderTimeout    time.Duration
	SafetyThreshold    string

	// FallbackCooldown clears the fallback latch after this long. Zero keeps
	// it set until ResetFallback.
	FallbackCooldown time.Duration
	// ClearFallbackAfterSuccesses clears the latch after this many consecutive
	// provider successes while it is set. Zero disables.
	ClearFallbackAfterSuccesses int
}

// DefaultPolicy returns the stock limits: 50 requests per hour, 3s spacing,
// two retries starting at 10s, 60s per provider call.
func DefaultPolicy() Policy {
	return Policy{
		HourlyRequestLimit: 50,
		QuotaWindow:        time.Hour,
		MinRequestInterval: 3 * time.Second,
		MaxRetries:         2,
		RetryDelay:         10 * time.Second,
		ProviderTimeout:    60 * time.Second,
		SafetyThreshold:    "medium",
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.HourlyRequestLimit <= 0 {
		p.HourlyRequestLimit = def.HourlyRequestLimit
	}
	if p.QuotaWindow <= 0 {
		p.QuotaWindow = def.QuotaWindow
	}
	if p.MinRequestInterval < 0 {
		p.MinRequestInterval = 0
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.ProviderTimeout <= 0 {
		p.ProviderTimeout = def.ProviderTimeout
	}
	if strings.TrimSpace(p.SafetyThreshold) == "" {
		p.SafetyThreshold = def.SafetyThreshold
	}
	return p
}

// Option configures a Gateway.
type Option func(*Gateway)

// CallOption adjusts a single Generate, Submit or Enqueue call.
type CallOption func(*callConfig)

type callConfig struct {
	skipResponder bool
}

// WithoutResponder returns the provider error even when the fallback latch is
// set. Callers that build their own offline answer, or have none, use it so
// the gateway's generic text never reaches them.
func WithoutResponder() CallOption {
	return func(c *callConfig) { c.skipResponder = true }
}

func newCallConfig(opts []CallOption) callConfig {
	var c callConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithSleep replaces the context-aware sleep used for spacing and backoff.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithResponder wires the offline responder used once the fallback latch is set.
func WithResponder(r Responder) Option {
	return func(g *Gateway) { g.responder = r }
}

// WithLogger enables gateway logging.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithRecorder wires an event recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithBaseContext sets the context queued requests are dispatched under.
func WithBaseContext(ctx context.Context) Option {
	return func(g *Gateway) {
		if ctx != nil {
			g.baseCtx = ctx
		}
	}
}

// Gateway serializes provider calls for one process.
type Gateway struct {
	provider  Provider
	responder Responder
	policy    Policy
	clock     func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *logging.Logger
	recorder  Recorder
	baseCtx   context.Context

	// slot is held for the whole rate-limit and dispatch sequence so the
	// queue and Generate share one spacing timeline.
	slot chan struct{}

	mu            sync.Mutex
	queue         []*Pending
	processing    bool
	lastRequest   time.Time
	hourlyCount   int
	windowStart   time.Time
	useFallback   bool
	fallbackSince time.Time
	recoveries    int
	totals        Totals
}

// New returns a Gateway. Unset limit, window, timeout and safety fields take
// their DefaultPolicy values; spacing and retries are used as given.
func New(provider Provider, policy Policy, opts ...Option) *Gateway {
	g := &Gateway{
		provider: provider,
		policy:   policy.normalized(),
		clock:    time.Now,
		sleep:    sleepContext,
		baseCtx:  context.Background(),
		slot:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.windowStart = g.clock()
	return g
}

// Policy returns the effective policy.
func (g *Gateway) Policy() Policy {
	return g.policy
}

// Enqueue appends prompt to the FIFO queue and starts the drain loop when idle.
func (g *Gateway) Enqueue(prompt string, opts ...CallOption) *Pending {
	p := newPending(prompt, g.clock(), newCallConfig(opts))

	g.mu.Lock()
	g.queue = append(g.queue, p)
	depth := len(g.queue)
	start := !g.processing
	if start {
		g.processing = true
	}
	g.mu.Unlock()

	g.recordDepth(depth)
	if start {
		go g.drain()
	}
	return p
}

// Submit enqueues prompt and waits for its result.
func (g *Gateway) Submit(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return g.Enqueue(prompt, opts...).Wait(ctx)
}

// Generate dispatches prompt directly, bypassing the queue but not the
// rate limits or the retry loop.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return g.dispatch(ctx, prompt, newCallConfig(opts))
}

func (g *Gateway) drain() {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.processing = false
			g.mu.Unlock()
			return
		}
		head := g.queue[0]
		g.mu.Unlock()

		text, err := g.dispatch(g.baseCtx, head.prompt, head.cfg)
		head.settle(text, err)

		g.mu.Lock()
		g.queue[0] = nil
		g.queue = g.queue[1:]
		depth := len(g.queue)
		g.mu.Unlock()
		g.recordDepth(depth)
	}
}

func (g *Gateway) dispatch(ctx context.Context, prompt string, cfg callConfig) (string, error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-g.slot }()

	if err := g.enforceRateLimits(ctx); err != nil {
		return "", err
	}
	return g.makeRequest(ctx, prompt, cfg)
}

func (g *Gateway) enforceRateLimits(ctx context.Context) error {
	g.mu.Lock()
	now := g.clock()
	if now.Sub(g.windowStart) >= g.policy.QuotaWindow {
		g.hourlyCount = 0
		g.windowStart = now
	}
	if g.hourlyCount >= g.policy.HourlyRequestLimit {
		g.totals.QuotaRejections++
		qerr := &QuotaError{Limit: g.policy.HourlyRequestLimit, ResetAt: g.windowStart.Add(g.policy.QuotaWindow)}
		g.mu.Unlock()

		if g.recorder != nil {
			g.recorder.QuotaRejected()
		}
		g.warn("hourly request limit reached", zap.Int("limit", qerr.Limit), zap.Time("resets_at", qerr.ResetAt))
		return qerr
	}
	var wait time.Duration
	if !g.lastRequest.IsZero() {
		if elapsed := now.Sub(g.lastRequest); elapsed < g.policy.MinRequestInterval {
			wait = g.policy.MinRequestInterval - elapsed
		}
	}
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	g.debug("spacing provider request", zap.Duration("wait", wait))
	return g.sleep(ctx, wait)
}

func (g *Gateway) makeRequest(ctx context.Context, prompt string, cfg callConfig) (string, error) {
	start := g.clock()
	var (
		lastErr  error
		attempts int
	)

	for attempt := 0; ; attempt++ {
		attempts++
		text, err := g.callProvider(ctx, prompt, attempts)
		if err == nil {
			g.recordSuccess()
			if g.recorder != nil {
				g.recorder.Dispatched("success", attempts, g.clock().Sub(start))
			}
			return text, nil
		}

		lastErr = err
		kind := Classify(err)
		g.warn("provider call failed",
			zap.Int("attempt", attempts),
			zap.String("kind", kind.String()),
			zap.Error(err))

		if !kind.Retryable() || attempt >= g.policy.MaxRetries {
			break
		}

		delay := g.policy.RetryDelay * time.Duration(1<<attempt)
		g.mu.Lock()
		g.totals.Retries++
		g.mu.Unlock()
		if g.recorder != nil {
			g.recorder.Retried(kind.String())
		}
		if err := g.sleep(ctx, delay); err != nil {
			break
		}
	}

	perr := &ProviderError{Kind: Classify(lastErr), Attempts: attempts, Err: lastErr}

	g.mu.Lock()
	g.totals.Failed++
	g.recoveries = 0
	latched := g.fallbackActiveLocked()
	serve := latched && g.responder != nil && !cfg.skipResponder
	if serve {
		g.totals.FallbackServed++
	}
	g.mu.Unlock()

	if serve {
		if g.recorder != nil {
			g.recorder.Dispatched("fallback", attempts, g.clock().Sub(start))
			g.recorder.FallbackServed()
		}
		g.info("serving offline response", zap.String("kind", perr.Kind.String()))
		return g.responder.Respond(prompt), nil
	}
	if g.recorder != nil {
		g.recorder.Dispatched("failure", attempts, g.clock().Sub(start))
	}
	return "", perr
}

func (g *Gateway) callProvider(ctx context.Context, prompt string, attempt int) (string, error) {
	g.mu.Lock()
	g.totals.Dispatched++
	g.mu.Unlock()

	if g.provider == nil {
		return "", &ProviderError{Kind: KindUnavailable, Attempts: 0, Err: errNoProvider}
	}

	callCtx, cancel := context.WithTimeout(context.WithValue(ctx, attemptKey{}, attempt), g.policy.ProviderTimeout)
	defer cancel()

	text, err := g.provider.GenerateText(callCtx, prompt, Options{
		SafetyThreshold: g.policy.SafetyThreshold,
		Timeout:         g.policy.ProviderTimeout,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

type attemptKey struct{}

// AttemptFromContext returns the 1-based attempt number of the provider call
// ctx belongs to, or 0 outside a gateway call.
func AttemptFromContext(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

func (g *Gateway) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastRequest = g.clock()
	g.hourlyCount++
	g.totals.Succeeded++

	if g.useFallback && g.policy.ClearFallbackAfterSuccesses > 0 {
		g.recoveries++
		if g.recoveries >= g.policy.ClearFallbackAfterSuccesses {
			g.clearFallbackLocked()
		}
	}
}

// ActivateFallback sets the fallback latch.
func (g *Gateway) ActivateFallback() {
	g.mu.Lock()
	activated := !g.useFallback
	if activated {
		g.useFallback = true
		g.fallbackSince = g.clock()
		g.recoveries = 0
		g.totals.FallbackActivations++
	}
	g.mu.Unlock()

	if activated {
		g.warn("fallback mode activated")
		if g.recorder != nil {
			g.recorder.FallbackActivated()
		}
	}
}

// ResetFallback clears the fallback latch.
func (g *Gateway) ResetFallback() {
	g.mu.Lock()
	was := g.useFallback
	g.clearFallbackLocked()
	g.mu.Unlock()

	if was {
		g.info("fallback mode cleared")
	}
}

// FallbackActive reports whether the latch is set, applying any cooldown.
func (g *Gateway) FallbackActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fallbackActiveLocked()
}

func (g *Gateway) fallbackActiveLocked() bool {
	if !g.useFallback {
		return false
	}
	if g.policy.FallbackCooldown > 0 && g.clock().Sub(g.fallbackSince) >= g.policy.FallbackCooldown {
		g.clearFallbackLocked()
		return false
	}
	return true
}

func (g *Gateway) clearFallbackLocked() {
	g.useFallback = false
	g.fallbackSince = time.Time{}
	g.recoveries = 0
}

func (g *Gateway) recordDepth(depth int) {
	if g.recorder != nil {
		g.recorder.QueueDepth(depth)
	}
}

func (g *Gateway) debug(msg string, fields ...zap.Field) {
	if g.logger != nil {
		g.logger.Debug(msg, fields...)
	}
}

func (g *Gateway) info(msg string, fields ...zap.Field) {
	if g.logger != nil {
		g.logger.Info(msg, fields...)
	}
}

func (g *Gateway) warn(msg string, fields ...zap.Field) {
	if g.logger != nil {
		g.logger.Warn(msg, fields...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
