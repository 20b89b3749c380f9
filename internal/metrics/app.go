package metrics

import (
	"strconv"
	"time"

	"github.com/writify/writify/internal/observability"
)

// Metric names following Prometheus conventions
const (
	GatewayDispatchTotal       = "gateway_dispatch_total"
	GatewayDispatchDuration    = "gateway_dispatch_duration_ms"
	GatewayRetriesTotal        = "gateway_retries_total"
	GatewayQuotaRejections     = "gateway_quota_rejections_total"
	GatewayFallbackActivations = "gateway_fallback_activations_total"
	GatewayFallbackServed      = "gateway_fallback_served_total"
	GatewayQueueDepth          = "gateway_queue_depth"

	OperationsTotal   = "writify_operations_total"
	OperationDuration = "writify_operation_duration_ms"
	LettersSaved      = "writify_letters_saved_total"
	DocumentsParsed   = "writify_documents_parsed_total"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
)

// Gateway records gateway events. The zero value is ready to use.
type Gateway struct{}

// Dispatched records one dispatch with its final outcome and attempt count.
func (Gateway) Dispatched(outcome string, attempts int, elapsed time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"outcome": outcome, "attempts": strconv.Itoa(attempts)}
	_ = observability.TelemetrySystem.Counter(GatewayDispatchTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(GatewayDispatchDuration, elapsed, map[string]string{"outcome": outcome})
}

// Retried records a retry caused by a failure of the given kind.
func (Gateway) Retried(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayRetriesTotal, 1, map[string]string{"kind": kind})
	}
}

// QuotaRejected records a request refused by the hourly limit.
func (Gateway) QuotaRejected() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayQuotaRejections, 1, nil)
	}
}

// FallbackActivated records the offline latch being set.
func (Gateway) FallbackActivated() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayFallbackActivations, 1, nil)
	}
}

// FallbackServed records a request answered by the offline responder.
func (Gateway) FallbackServed() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayFallbackServed, 1, nil)
	}
}

// QueueDepth records the number of queued requests.
func (Gateway) QueueDepth(depth int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(GatewayQueueDepth, float64(depth), nil)
	}
}

// Operations records writing operation outcomes.
type Operations struct{}

// Operation records one writing operation and how it was answered.
func (Operations) Operation(name, outcome string, elapsed time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(OperationsTotal, 1, map[string]string{
		"operation": name,
		"outcome":   outcome,
	})
	_ = observability.TelemetrySystem.Histogram(OperationDuration, elapsed, map[string]string{
		"operation": name,
	})
}

// RecordLetterSaved counts a cover letter written to history.
func RecordLetterSaved(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(LettersSaved, 1, map[string]string{"status": status})
	}
}

// RecordDocumentParsed counts an uploaded resume by extension and result.
func RecordDocumentParsed(extension string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(DocumentsParsed, 1, map[string]string{
			"extension": extension,
			"status":    status,
		})
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{
			"check":  checkName,
			"status": status,
		})
		_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{
			"check": checkName,
		})
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
