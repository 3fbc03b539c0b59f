package lookup

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNotFound is returned when the provider confirms it has no item for an identifier.
var ErrNotFound = errors.New("catalog item not found")

// RateLimitedError is returned when a call was refused, either locally by
// admission control or by the provider.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// WaitSeconds is RetryAfter rounded up to whole seconds, at least 1, so a
// caller that waits exactly this long is admitted.
func (e *RateLimitedError) WaitSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// TransportError wraps a network or service failure. It is never cached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedError is returned when the provider answers with a body that cannot be decoded.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed provider response: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }
