package metrics

import (
	"strconv"

	"github.com/writify/writify/internal/observability"
)

// Error metric names.
const (
	ErrorsTotalName   = "errors_total"
	PanicsTotalName   = "panics_total"
	ErrorsByRouteName = "errors_by_route"
)

// UnmatchedRoute labels errors raised outside a registered route, such as
// the router's own 404 and 405 responses.
const UnmatchedRoute = "unmatched"

// RecordError counts an error response by envelope code and status, and by
// the route pattern that produced it. Routes are chi patterns, never raw
// paths, so letter and template ids do not become label values.
func RecordError(errorCode string, httpStatus int, route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if route == "" {
		route = UnmatchedRoute
	}
	_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
	_ = observability.TelemetrySystem.Counter(ErrorsByRouteName, 1, map[string]string{
		"route":      route,
		"error_code": errorCode,
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic(route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if route == "" {
		route = UnmatchedRoute
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, map[string]string{"route": route})
}
