package domain

import "errors"

// Sentinel errors for classifying sub-cycle failures. Adapters wrap these
// with context via fmt.Errorf("%w: ..."); callers classify with errors.Is.
var (
	// ErrAuth: login rejected, or a token expired beyond the single re-login.
	ErrAuth = errors.New("authentication failed")
	// ErrFetch: a page request failed after the retry budget, or a
	// non-retryable client error.
	ErrFetch = errors.New("fetch failed")
	// ErrSink: clearing or writing the external store failed.
	ErrSink = errors.New("sink write failed")
)
