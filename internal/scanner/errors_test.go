package scanner

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookscan/internal/barcode"
	"bookscan/internal/collection"
	"bookscan/internal/lookup"
)

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		canRetry bool
		kind     ErrorKind
	}{
		{"auth", collection.ErrUnauthenticated, "sign in to add items", false, KindAuth},
		{"auth through persistence", &PersistenceError{Op: "save item", Title: "Signals", Err: collection.ErrUnauthenticated},
			"sign in to add items", false, KindAuth},
		{"validation", &barcode.ValidationError{Raw: "123", Reason: "checksum or length mismatch"},
			"123 is not a valid book barcode", true, KindValidation},
		{"duplicate on save", &PersistenceError{Op: "save item", Err: collection.ErrAlreadyOwned},
			"already added", true, KindDuplicate},
		{"rate limited rounds up", &lookup.RateLimitedError{RetryAfter: 7500 * time.Millisecond},
			"too many lookups, try again in 8s", true, KindRateLimited},
		{"rate limited minimum", &lookup.RateLimitedError{RetryAfter: 0},
			"too many lookups, try again in 1s", true, KindRateLimited},
		{"malformed", &lookup.MalformedError{Err: errors.New("eof")},
			"lookup service returned an unexpected response", true, KindMalformed},
		{"save failed", &PersistenceError{Op: "save item", Title: "Signals", Err: errors.New("disk full")},
			"could not save Signals", true, KindPersistence},
		{"exists failed", &PersistenceError{Op: "check collection", Err: errors.New("timeout")},
			"could not check your collection", true, KindPersistence},
		{"transport", fmt.Errorf("resolve: %w", &lookup.TransportError{Op: "GET", Err: errors.New("refused")}),
			"lookup failed, check your connection", true, KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorFor(tt.err)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, tt.canRetry, got.CanRetry)
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestErrorKind_Forgets(t *testing.T) {
	for _, k := range []ErrorKind{KindRateLimited, KindTransport, KindMalformed, KindPersistence} {
		assert.True(t, k.forgets(), k)
	}
	for _, k := range []ErrorKind{KindValidation, KindDuplicate, KindNotFound, KindAuth} {
		assert.False(t, k.forgets(), k)
	}
}
