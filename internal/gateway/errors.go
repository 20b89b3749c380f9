package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/writify/writify/internal/ailink/driver"
)

// Kind classifies provider failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimit
	KindSafety
	KindTimeout
	KindNetwork
	KindAuth
	KindBadRequest
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindSafety:
		return "safety"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt could succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindSafety, KindAuth, KindBadRequest:
		return false
	default:
		return true
	}
}

var (
	// ErrQuotaExceeded is returned when the hourly request limit is reached.
	ErrQuotaExceeded = errors.New("hourly request limit exceeded, try again later")
	// ErrProviderTimeout matches provider failures caused by the call deadline.
	ErrProviderTimeout = errors.New("provider request timed out")
	// ErrProviderRefused matches responses withheld by the provider's safety filter.
	ErrProviderRefused = errors.New("provider refused the request")

	errEmptyResponse = errors.New("provider returned empty text")
)

// QuotaError carries the window details behind ErrQuotaExceeded.
type QuotaError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s (limit %d, resets at %s)", ErrQuotaExceeded.Error(), e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// ProviderError is returned once retries are exhausted.
type ProviderError struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderTimeout:
		return e.Kind == KindTimeout
	case ErrProviderRefused:
		return e.Kind == KindSafety
	}
	return false
}

// Classify maps an error returned by a Provider to a Kind using typed
// information only.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var gerr *ProviderError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrProviderTimeout) {
		return KindTimeout
	}
	if errors.Is(err, ErrProviderRefused) {
		return KindSafety
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		switch perr.Kind {
		case driver.KindRefused:
			return KindSafety
		case driver.KindNetwork:
			return KindNetwork
		}
		status := perr.StatusCode
		switch {
		case status == 401 || status == 403:
			return KindAuth
		case status == 429:
			return KindRateLimit
		case status >= 500 && status <= 599:
			return KindUnavailable
		case status >= 400 && status <= 499:
			return KindBadRequest
		}
		return KindUnknown
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}
