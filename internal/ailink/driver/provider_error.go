package driver

import "fmt"

// Kind tags failures a driver recognised without an HTTP status.
type Kind string

const (
	// KindRefused marks a response withheld by the provider's safety filter.
	KindRefused Kind = "refused"
	// KindNetwork marks a transport failure before any response arrived.
	KindNetwork Kind = "network"
	// KindEmpty marks a response without any candidate text.
	KindEmpty Kind = "empty"
)

// ProviderError is returned when a provider rejects or fails a request.
//
// Drivers should populate RawResponse with the provider response body bytes.
// RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Kind        Kind
	Message     string
	RawResponse []byte
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s request failed (%s): %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
