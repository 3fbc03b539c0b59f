package lookup_test

import (
	"testing"
	"time"

	"bookscan/internal/lookup"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitedError_WaitSeconds(t *testing.T) {
	tests := []struct {
		retryAfter time.Duration
		want       int
	}{
		{0, 1},
		{200 * time.Millisecond, 1},
		{time.Second, 1},
		{1400 * time.Millisecond, 2},
		{7500 * time.Millisecond, 8},
	}
	for _, tt := range tests {
		err := &lookup.RateLimitedError{RetryAfter: tt.retryAfter}
		assert.Equal(t, tt.want, err.WaitSeconds(), tt.retryAfter.String())
	}
}
