package gateway

import "time"

// Totals are cumulative counters since the gateway was created.
type Totals struct {
	Dispatched          int64 `json:"dispatched"`
	Succeeded           int64 `json:"succeeded"`
	Failed              int64 `json:"failed"`
	Retries             int64 `json:"retries"`
	QuotaRejections     int64 `json:"quotaRejections"`
	FallbackActivations int64 `json:"fallbackActivations"`
	FallbackServed      int64 `json:"fallbackServed"`
}

// Stats is a point-in-time view of gateway state.
type Stats struct {
	QueueDepth     int       `json:"queueDepth"`
	Processing     bool      `json:"processing"`
	HourlyCount    int       `json:"hourlyCount"`
	HourlyLimit    int       `json:"hourlyLimit"`
	WindowResetsAt time.Time `json:"windowResetsAt"`
	LastRequest    time.Time `json:"lastRequest"`
	FallbackActive bool      `json:"fallbackActive"`
	FallbackSince  time.Time `json:"fallbackSince"`
	Totals         Totals    `json:"totals"`
}

// Stats returns a snapshot of the gateway state.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	active := g.fallbackActiveLocked()
	return Stats{
		QueueDepth:     len(g.queue),
		Processing:     g.processing,
		HourlyCount:    g.hourlyCount,
		HourlyLimit:    g.policy.HourlyRequestLimit,
		WindowResetsAt: g.windowStart.Add(g.policy.QuotaWindow),
		LastRequest:    g.lastRequest,
		FallbackActive: active,
		FallbackSince:  g.fallbackSince,
		Totals:         g.totals,
	}
}
