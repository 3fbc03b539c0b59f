package scanner

import (
	"errors"
	"fmt"

	"bookscan/internal/barcode"
	"bookscan/internal/collection"
	"bookscan/internal/lookup"
)

// ErrorKind classifies an ErrorState.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindDuplicate   ErrorKind = "duplicate"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindTransport   ErrorKind = "transport"
	KindMalformed   ErrorKind = "malformed"
	KindAuth        ErrorKind = "auth"
	KindPersistence ErrorKind = "persistence"
)

// forgets reports whether a failure of this kind should let the same code be scanned again.
func (k ErrorKind) forgets() bool {
	switch k {
	case KindRateLimited, KindTransport, KindMalformed, KindPersistence:
		return true
	}
	return false
}

// PersistenceError wraps a collection store failure.
type PersistenceError struct {
	Op    string
	Title string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func notFoundError(identifier string) ErrorState {
	return ErrorState{
		Message:  fmt.Sprintf("no match found for %s", identifier),
		CanRetry: true,
		Kind:     KindNotFound,
	}
}

// errorFor maps a failure to the state shown to the user.
func errorFor(err error) ErrorState {
	var (
		verr *barcode.ValidationError
		rerr *lookup.RateLimitedError
		merr *lookup.MalformedError
		perr *PersistenceError
	)
	switch {
	case errors.Is(err, collection.ErrUnauthenticated):
		return ErrorState{Message: "sign in to add items", Kind: KindAuth}
	case errors.As(err, &verr):
		return ErrorState{
			Message:  fmt.Sprintf("%s is not a valid book barcode", verr.Raw),
			CanRetry: true,
			Kind:     KindValidation,
		}
	case errors.Is(err, collection.ErrAlreadyOwned):
		return ErrorState{Message: "already added", CanRetry: true, Kind: KindDuplicate}
	case errors.As(err, &rerr):
		return ErrorState{
			Message:  fmt.Sprintf("too many lookups, try again in %ds", rerr.WaitSeconds()),
			CanRetry: true,
			Kind:     KindRateLimited,
		}
	case errors.As(err, &merr):
		return ErrorState{
			Message:  "lookup service returned an unexpected response",
			CanRetry: true,
			Kind:     KindMalformed,
		}
	case errors.As(err, &perr):
		msg := "could not check your collection"
		if perr.Title != "" {
			msg = fmt.Sprintf("could not save %s", perr.Title)
		}
		return ErrorState{Message: msg, CanRetry: true, Kind: KindPersistence}
	}
	return ErrorState{
		Message:  "lookup failed, check your connection",
		CanRetry: true,
		Kind:     KindTransport,
	}
}
