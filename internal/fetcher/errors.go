package fetcher

import (
	"errors"
	"fmt"
)

// BlockedError indicates the target refused or challenged the request.
// Codes in blockingCodes (and challenge pages served with 200) are
// eligible for exactly one proxy-fallback retry.
type BlockedError struct {
	Code   int
	Reason string
}

func (e BlockedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("blocked: http %d (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("blocked: http %d", e.Code)
}

// Retryable reports whether the block qualifies for the proxy fallback.
func (e BlockedError) Retryable() bool {
	return blockingCodes[e.Code] || e.Code == 200
}

// TransportError indicates the request never produced a usable response.
// It is never retried.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}

var blockingCodes = map[int]bool{
	429: true,
	403: true,
	502: true,
	503: true,
	504: true,
}

// IsRetryableBlock reports whether err is a block that the caller may
// retry once through the proxy.
func IsRetryableBlock(err error) bool {
	var blocked BlockedError
	return errors.As(err, &blocked) && blocked.Retryable()
}
