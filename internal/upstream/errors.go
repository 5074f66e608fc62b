// Package upstream classifies failures returned by external data sources.
//
// Every client (RPC node, price index, holder indexer) maps its transport
// and payload failures onto ErrDataUnavailable so callers never see
// source-specific error types. The retryable flag separates transient
// failures (timeouts, HTTP 429) from semantic ones (malformed payloads,
// application-level errors), which only the former may be retried.
package upstream

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable is the generic outcome for any failed source fetch.
var ErrDataUnavailable = errors.New("data unavailable")

// unavailableError wraps a source failure with its retryable classification.
type unavailableError struct {
	cause     error
	retryable bool
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("data unavailable: %v", e.cause)
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrDataUnavailable, e.cause}
}

// Retryable marks err as a transient source failure (timeout, rate limit).
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{cause: err, retryable: true}
}

// Unavailable marks err as a terminal source failure (malformed payload,
// application error). Retrying would not help.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{cause: err, retryable: false}
}

// IsRetryable reports whether err carries a transient classification.
func IsRetryable(err error) bool {
	var ue *unavailableError
	if errors.As(err, &ue) {
		return ue.retryable
	}
	return false
}
