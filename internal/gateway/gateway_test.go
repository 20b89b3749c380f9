package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/ailink/driver"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type call struct {
	prompt string
	at     time.Time
	opts   Options
}

type scriptedProvider struct {
	clock *fakeClock
	fn    func(n int, prompt string) (string, error)

	mu          sync.Mutex
	calls       []call
	inflight    int32
	maxInflight int32
}

func (p *scriptedProvider) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	cur := atomic.AddInt32(&p.inflight, 1)
	defer atomic.AddInt32(&p.inflight, -1)
	for {
		old := atomic.LoadInt32(&p.maxInflight)
		if cur <= old || atomic.CompareAndSwapInt32(&p.maxInflight, old, cur) {
			break
		}
	}

	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, call{prompt: prompt, at: p.clock.Now(), opts: opts})
	p.mu.Unlock()

	if p.fn == nil {
		return "echo:" + prompt, nil
	}
	return p.fn(n, prompt)
}

func (p *scriptedProvider) Calls() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

type staticResponder string

func (r staticResponder) Respond(prompt string) string { return string(r) + ":" + prompt }

func newTestGateway(t *testing.T, policy Policy, fn func(int, string) (string, error), opts ...Option) (*Gateway, *scriptedProvider, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	provider := &scriptedProvider{clock: clock, fn: fn}
	opts = append([]Option{WithClock(clock.Now), WithSleep(clock.Sleep)}, opts...)
	return New(provider, policy, opts...), provider, clock
}

func alwaysFail(err error) func(int, string) (string, error) {
	return func(int, string) (string, error) { return "", err }
}

func TestGenerateSpacesSuccessfulRequests(t *testing.T) {
	gw, provider, clock := newTestGateway(t, DefaultPolicy(), nil)
	start := clock.Now()

	for i := 0; i < 3; i++ {
		text, err := gw.Generate(context.Background(), fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("echo:p%d", i), text)
	}

	calls := provider.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, start, calls[0].at)
	require.Equal(t, start.Add(3*time.Second), calls[1].at)
	require.Equal(t, start.Add(6*time.Second), calls[2].at)
	require.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, clock.Sleeps())
}

func TestGenerateSkipsSpacingAfterInterval(t *testing.T) {
	gw, _, clock := newTestGateway(t, DefaultPolicy(), nil)

	_, err := gw.Generate(context.Background(), "a")
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	_, err = gw.Generate(context.Background(), "b")
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	_, err = gw.Generate(context.Background(), "c")
	require.NoError(t, err)

	require.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
}

func TestQuotaExceededAfterHourlyLimit(t *testing.T) {
	policy := DefaultPolicy()
	policy.HourlyRequestLimit = 2
	gw, provider, clock := newTestGateway(t, policy, nil)
	windowStart := clock.Now()

	for i := 0; i < 2; i++ {
		_, err := gw.Generate(context.Background(), "ok")
		require.NoError(t, err)
	}

	_, err := gw.Generate(context.Background(), "over")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var qerr *QuotaError
	require.True(t, errors.As(err, &qerr))
	require.Equal(t, 2, qerr.Limit)
	require.Equal(t, windowStart.Add(time.Hour), qerr.ResetAt)
	require.Len(t, provider.Calls(), 2)

	clock.Advance(time.Hour)
	_, err = gw.Generate(context.Background(), "new window")
	require.NoError(t, err)

	stats := gw.Stats()
	require.Equal(t, 1, stats.HourlyCount)
	require.Equal(t, int64(1), stats.Totals.QuotaRejections)
}

func TestQuotaFailureDoesNotRetry(t *testing.T) {
	policy := DefaultPolicy()
	policy.HourlyRequestLimit = 1
	gw, provider, clock := newTestGateway(t, policy, nil)

	_, err := gw.Generate(context.Background(), "ok")
	require.NoError(t, err)
	before := len(clock.Sleeps())

	_, err = gw.Generate(context.Background(), "over")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Len(t, clock.Sleeps(), before)
	require.Len(t, provider.Calls(), 1)
}

func TestRetriesThenProviderError(t *testing.T) {
	gw, provider, clock := newTestGateway(t, DefaultPolicy(), alwaysFail(errors.New("boom")))

	_, err := gw.Generate(context.Background(), "x")
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 3, perr.Attempts)
	require.Equal(t, KindUnknown, perr.Kind)
	require.Len(t, provider.Calls(), 3)
	require.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, clock.Sleeps())

	stats := gw.Stats()
	require.Equal(t, int64(2), stats.Totals.Retries)
	require.Equal(t, int64(1), stats.Totals.Failed)
	require.Equal(t, 0, stats.HourlyCount)
}

func TestRetryDelayDoubles(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 3
	policy.RetryDelay = time.Second
	gw, provider, clock := newTestGateway(t, policy, alwaysFail(&driver.ProviderError{Provider: "p", StatusCode: 503}))

	_, err := gw.Generate(context.Background(), "x")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, KindUnavailable, perr.Kind)
	require.Len(t, provider.Calls(), 4)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestRetryRecovers(t *testing.T) {
	gw, provider, clock := newTestGateway(t, DefaultPolicy(), func(n int, prompt string) (string, error) {
		if n == 0 {
			return "", &driver.ProviderError{Provider: "p", StatusCode: 429}
		}
		return "second try", nil
	})

	text, err := gw.Generate(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "second try", text)
	require.Len(t, provider.Calls(), 2)
	require.Equal(t, []time.Duration{10 * time.Second}, clock.Sleeps())
	require.Equal(t, 1, gw.Stats().HourlyCount)
}

func TestNonRetryableKindsFailOnce(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "auth", err: &driver.ProviderError{Provider: "p", StatusCode: 401}, kind: KindAuth},
		{name: "bad request", err: &driver.ProviderError{Provider: "p", StatusCode: 400}, kind: KindBadRequest},
		{name: "refused", err: &driver.ProviderError{Provider: "p", Kind: driver.KindRefused}, kind: KindSafety},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, provider, clock := newTestGateway(t, DefaultPolicy(), alwaysFail(tc.err))

			_, err := gw.Generate(context.Background(), "x")
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tc.kind, perr.Kind)
			require.Equal(t, 1, perr.Attempts)
			require.Len(t, provider.Calls(), 1)
			require.Empty(t, clock.Sleeps())
		})
	}
}

func TestRefusedMatchesSentinel(t *testing.T) {
	gw, _, _ := newTestGateway(t, DefaultPolicy(), alwaysFail(&driver.ProviderError{Provider: "p", Kind: driver.KindRefused}))

	_, err := gw.Generate(context.Background(), "x")
	require.ErrorIs(t, err, ErrProviderRefused)
	require.NotErrorIs(t, err, ErrProviderTimeout)
}

func TestEmptyTextIsFailure(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 0
	gw, _, _ := newTestGateway(t, policy, func(int, string) (string, error) { return "  ", nil })

	_, err := gw.Generate(context.Background(), "x")
	require.ErrorIs(t, err, errEmptyResponse)
	require.Equal(t, 0, gw.Stats().HourlyCount)
}

func TestProviderTimeout(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 0
	policy.ProviderTimeout = 20 * time.Millisecond

	var got Options
	provider := ProviderFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		got = opts
		<-ctx.Done()
		return "", ctx.Err()
	})
	gw := New(provider, policy)

	_, err := gw.Generate(context.Background(), "slow")
	require.ErrorIs(t, err, ErrProviderTimeout)
	require.Equal(t, KindTimeout, Classify(err))
	require.Equal(t, "medium", got.SafetyThreshold)
	require.Equal(t, 20*time.Millisecond, got.Timeout)
}

func TestFallbackServedOnlyWhenLatched(t *testing.T) {
	gw, _, _ := newTestGateway(t, DefaultPolicy(), alwaysFail(errors.New("down")), WithResponder(staticResponder("offline")))

	_, err := gw.Generate(context.Background(), "first")
	require.Error(t, err)

	gw.ActivateFallback()
	text, err := gw.Generate(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, "offline:second", text)
	require.Equal(t, int64(1), gw.Stats().Totals.FallbackServed)
}

func TestFallbackWithoutResponderSurfacesError(t *testing.T) {
	gw, _, _ := newTestGateway(t, DefaultPolicy(), alwaysFail(errors.New("down")))
	gw.ActivateFallback()

	_, err := gw.Generate(context.Background(), "x")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
}

func TestWithoutResponderSurfacesErrorWhenLatchedMidRetry(t *testing.T) {
	var gw *Gateway
	gw, provider, _ := newTestGateway(t, DefaultPolicy(), func(n int, _ string) (string, error) {
		if n == 1 {
			gw.ActivateFallback()
		}
		return "", errors.New("down")
	}, WithResponder(staticResponder("offline")))

	_, err := gw.Generate(context.Background(), "direct", WithoutResponder())
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 3, perr.Attempts)
	require.True(t, gw.FallbackActive())

	_, err = gw.Submit(context.Background(), "queued", WithoutResponder())
	require.True(t, errors.As(err, &perr))
	require.Len(t, provider.Calls(), 6)
	require.Zero(t, gw.Stats().Totals.FallbackServed)

	text, err := gw.Generate(context.Background(), "plain")
	require.NoError(t, err)
	require.Equal(t, "offline:plain", text)
}

func TestFallbackLatchIsSticky(t *testing.T) {
	gw, _, clock := newTestGateway(t, DefaultPolicy(), nil)

	gw.ActivateFallback()
	_, err := gw.Generate(context.Background(), "works again")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	require.True(t, gw.FallbackActive())

	gw.ResetFallback()
	require.False(t, gw.FallbackActive())
}

func TestFallbackCooldown(t *testing.T) {
	policy := DefaultPolicy()
	policy.FallbackCooldown = 10 * time.Minute
	gw, _, clock := newTestGateway(t, policy, nil)

	gw.ActivateFallback()
	clock.Advance(9 * time.Minute)
	require.True(t, gw.FallbackActive())
	clock.Advance(time.Minute)
	require.False(t, gw.FallbackActive())
}

func TestClearFallbackAfterSuccesses(t *testing.T) {
	policy := DefaultPolicy()
	policy.ClearFallbackAfterSuccesses = 2
	gw, _, _ := newTestGateway(t, policy, nil)

	gw.ActivateFallback()
	_, err := gw.Generate(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, gw.FallbackActive())
	_, err = gw.Generate(context.Background(), "b")
	require.NoError(t, err)
	require.False(t, gw.FallbackActive())
}

func TestQueueIsFIFOAndSettlesBeforeNextDispatch(t *testing.T) {
	gate := make(chan struct{})
	var pendings []*Pending
	var order []string
	var violations int32

	clock := newFakeClock()
	provider := ProviderFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		<-gate
		order = append(order, prompt)
		for _, p := range pendings[:len(order)-1] {
			select {
			case <-p.Done():
			default:
				atomic.AddInt32(&violations, 1)
			}
		}
		return "done:" + prompt, nil
	})
	gw := New(provider, DefaultPolicy(), WithClock(clock.Now), WithSleep(clock.Sleep))

	for i := 0; i < 5; i++ {
		pendings = append(pendings, gw.Enqueue(fmt.Sprintf("p%d", i)))
	}
	close(gate)

	for i, p := range pendings {
		text, err := p.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("done:p%d", i), text)
	}
	require.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, order)
	require.Zero(t, atomic.LoadInt32(&violations))

	require.Eventually(t, func() bool {
		s := gw.Stats()
		return !s.Processing && s.QueueDepth == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitAndWaitCancellationDoesNotCancelRequest(t *testing.T) {
	gate := make(chan struct{})
	var calls int32
	provider := ProviderFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		<-gate
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	policy := DefaultPolicy()
	policy.MinRequestInterval = 0
	gw := New(provider, policy)

	p := gw.Enqueue("slow")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(gate)
	<-p.Done()
	text, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	text, err = gw.Submit(context.Background(), "next")
	require.NoError(t, err)
	require.Equal(t, "ok", text)
}

func TestQueueAndDirectPathNeverOverlap(t *testing.T) {
	gw, provider, _ := newTestGateway(t, DefaultPolicy(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := gw.Generate(context.Background(), fmt.Sprintf("direct-%d", i))
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := gw.Submit(context.Background(), fmt.Sprintf("queued-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	calls := provider.Calls()
	require.Len(t, calls, 20)
	require.Equal(t, int32(1), atomic.LoadInt32(&provider.maxInflight))
	for i := 1; i < len(calls); i++ {
		require.GreaterOrEqual(t, calls[i].at.Sub(calls[i-1].at), 3*time.Second)
	}
	require.Equal(t, 20, gw.Stats().HourlyCount)
}

type countingRecorder struct {
	mu        sync.Mutex
	outcomes  []string
	retries   int
	quota     int
	activated int
	served    int
}

func (r *countingRecorder) Dispatched(outcome string, attempts int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
func (r *countingRecorder) Retried(kind string) { r.mu.Lock(); r.retries++; r.mu.Unlock() }
func (r *countingRecorder) QuotaRejected()      { r.mu.Lock(); r.quota++; r.mu.Unlock() }
func (r *countingRecorder) FallbackActivated()  { r.mu.Lock(); r.activated++; r.mu.Unlock() }
func (r *countingRecorder) FallbackServed()     { r.mu.Lock(); r.served++; r.mu.Unlock() }
func (r *countingRecorder) QueueDepth(int)      {}

func TestRecorderReceivesEvents(t *testing.T) {
	rec := &countingRecorder{}
	policy := DefaultPolicy()
	policy.HourlyRequestLimit = 1
	gw, _, _ := newTestGateway(t, policy, func(n int, prompt string) (string, error) {
		if prompt == "fail" {
			return "", errors.New("down")
		}
		return "ok", nil
	}, WithRecorder(rec), WithResponder(staticResponder("offline")))

	_, err := gw.Generate(context.Background(), "fail")
	require.Error(t, err)
	gw.ActivateFallback()
	gw.ActivateFallback()
	_, err = gw.Generate(context.Background(), "fail")
	require.NoError(t, err)
	_, err = gw.Generate(context.Background(), "ok")
	require.NoError(t, err)
	_, err = gw.Generate(context.Background(), "ok")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	require.Equal(t, []string{"failure", "fallback", "success"}, rec.outcomes)
	require.Equal(t, 4, rec.retries)
	require.Equal(t, 1, rec.quota)
	require.Equal(t, 1, rec.activated)
	require.Equal(t, 1, rec.served)
}

func TestStatsSnapshot(t *testing.T) {
	gw, _, clock := newTestGateway(t, DefaultPolicy(), nil)
	created := clock.Now()

	_, err := gw.Generate(context.Background(), "x")
	require.NoError(t, err)

	stats := gw.Stats()
	require.Equal(t, 1, stats.HourlyCount)
	require.Equal(t, 50, stats.HourlyLimit)
	require.Equal(t, created.Add(time.Hour), stats.WindowResetsAt)
	require.Equal(t, created, stats.LastRequest)
	require.False(t, stats.FallbackActive)
	require.Equal(t, int64(1), stats.Totals.Dispatched)
	require.Equal(t, int64(1), stats.Totals.Succeeded)
}

func TestPolicyNormalization(t *testing.T) {
	gw := New(nil, Policy{})
	p := gw.Policy()
	require.Equal(t, 50, p.HourlyRequestLimit)
	require.Equal(t, time.Hour, p.QuotaWindow)
	require.Equal(t, 60*time.Second, p.ProviderTimeout)
	require.Equal(t, "medium", p.SafetyThreshold)
	require.Zero(t, p.MaxRetries)
	require.Zero(t, p.MinRequestInterval)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"401", &driver.ProviderError{StatusCode: 401}, KindAuth},
		{"403", &driver.ProviderError{StatusCode: 403}, KindAuth},
		{"429", &driver.ProviderError{StatusCode: 429}, KindRateLimit},
		{"503", &driver.ProviderError{StatusCode: 503}, KindUnavailable},
		{"404", &driver.ProviderError{StatusCode: 404}, KindBadRequest},
		{"refused", &driver.ProviderError{Kind: driver.KindRefused}, KindSafety},
		{"network", &driver.ProviderError{Kind: driver.KindNetwork, Err: errors.New("reset")}, KindNetwork},
		{"network deadline", &driver.ProviderError{Kind: driver.KindNetwork, Err: context.DeadlineExceeded}, KindTimeout},
		{"net op", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetwork},
		{"gateway error", &ProviderError{Kind: KindSafety}, KindSafety},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestKindRetryable(t *testing.T) {
	require.True(t, KindRateLimit.Retryable())
	require.True(t, KindTimeout.Retryable())
	require.True(t, KindNetwork.Retryable())
	require.True(t, KindUnavailable.Retryable())
	require.True(t, KindUnknown.Retryable())
	require.False(t, KindSafety.Retryable())
	require.False(t, KindAuth.Retryable())
	require.False(t, KindBadRequest.Retryable())
	require.Equal(t, "rate_limit", KindRateLimit.String())
}

func TestScenarioQueuedRetryPreservesOrder(t *testing.T) {
	policy := DefaultPolicy()
	policy.MinRequestInterval = 0
	failures := 0
	gw, provider, clock := newTestGateway(t, policy, func(n int, prompt string) (string, error) {
		if prompt == "2" && failures < 2 {
			failures++
			return "", &driver.ProviderError{Provider: "p", StatusCode: 500}
		}
		return "ok-" + prompt, nil
	})

	p1 := gw.Enqueue("1")
	p2 := gw.Enqueue("2")
	p3 := gw.Enqueue("3")

	for i, p := range []*Pending{p1, p2, p3} {
		text, err := p.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("ok-%d", i+1), text)
	}

	var prompts []string
	for _, c := range provider.Calls() {
		prompts = append(prompts, c.prompt)
	}
	require.Equal(t, []string{"1", "2", "2", "2", "3"}, prompts)
	require.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, clock.Sleeps())
}

func TestScenarioLimitOneRejectsSecondWithoutCallingProvider(t *testing.T) {
	policy := DefaultPolicy()
	policy.HourlyRequestLimit = 1
	gw, provider, _ := newTestGateway(t, policy, nil)

	first := gw.Enqueue("a")
	second := gw.Enqueue("b")

	text, err := first.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "echo:a", text)

	_, err = second.Wait(context.Background())
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Len(t, provider.Calls(), 1)
}

func TestClearFallbackNeedsConsecutiveSuccesses(t *testing.T) {
	policy := DefaultPolicy()
	policy.ClearFallbackAfterSuccesses = 2
	policy.MaxRetries = 0
	gw, _, _ := newTestGateway(t, policy, func(n int, prompt string) (string, error) {
		if prompt == "fail" {
			return "", errors.New("down")
		}
		return "ok", nil
	})

	gw.ActivateFallback()
	_, err := gw.Generate(context.Background(), "ok")
	require.NoError(t, err)
	_, err = gw.Generate(context.Background(), "fail")
	require.Error(t, err)
	_, err = gw.Generate(context.Background(), "ok")
	require.NoError(t, err)
	require.True(t, gw.FallbackActive())
	_, err = gw.Generate(context.Background(), "ok")
	require.NoError(t, err)
	require.False(t, gw.FallbackActive())
}
