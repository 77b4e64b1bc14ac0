package provider

import (
	"errors"
	"fmt"
)

// ProviderError wraps an ESP API error with retryability classification.
type ProviderError struct {
	// Provider is the name of the ESP that returned the error.
	Provider string
	// StatusCode is the HTTP status code from the ESP API, 0 for
	// transport-level failures.
	StatusCode int
	// Message is the error description from the ESP API.
	Message string
	// Retryable indicates the send may succeed on a later attempt.
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return e.Provider + ": " + e.Message
}

// IsRetryable reports whether err may succeed on a later attempt. Unknown
// error types are treated as retryable to avoid dropping deliverable mail.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// ClassifyHTTPError creates a ProviderError from an HTTP status code and
// response body. Server errors and rate limits are retryable; 4xx rejections
// are not.
func ClassifyHTTPError(providerName string, statusCode int, body string) *ProviderError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	pe := &ProviderError{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    body,
	}

	switch {
	case statusCode == 429:
		pe.Retryable = true
	case statusCode >= 500:
		pe.Retryable = true
	case statusCode >= 400:
		pe.Retryable = false
	default:
		pe.Retryable = true
	}
	return pe
}

// NetworkError wraps a transport-level failure (timeout, connection reset)
// as a retryable ProviderError.
func NetworkError(providerName string, err error) *ProviderError {
	return &ProviderError{
		Provider:  providerName,
		Message:   err.Error(),
		Retryable: true,
	}
}
