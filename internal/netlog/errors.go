package netlog

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zulandar/netlog/internal/store"
)

// Error kinds surfaced to callers. Wrap them with context; test with errors.Is.
var (
	// ErrNotFound means the session or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired means the session's mutation window has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrForbidden means the actor failed the access policy.
	ErrForbidden = errors.New("not authorized")
	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable means the backing store failed; the only kind worth
	// retrying, with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind names the category of err for API envelopes and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "internal"
}

// Retryable reports whether a caller may retry the failed request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// validationError returns an error that wraps ErrValidation.
func validationError(msg string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, msg, args...)
}

// storeError maps a store failure onto the taxonomy: missing rows become
// ErrNotFound, everything else ErrStoreUnavailable.
func storeError(err error, what string, args ...interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrapf(ErrNotFound, what, args...)
	}
	return errors.Wrapf(ErrStoreUnavailable, "%s: %v", fmt.Sprintf(what, args...), err)
}
