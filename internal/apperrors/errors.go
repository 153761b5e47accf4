// Package apperrors defines the error kinds the core distinguishes and
// recovers from, per the propagation policy: the core never panics or
// crashes the process for any of these, and most are recovered locally.
package apperrors

import "github.com/pkg/errors"

// Sentinel errors. Compare with errors.Is; lower layers wrap these with
// github.com/pkg/errors.Wrap to attach context without losing identity.
var (
	// ErrContextTooLarge means the minimal request (Layer 1 + Layer 2 +
	// Layer 4, no Layer-3 history at all) still exceeds the model's
	// context window. Fatal for the turn.
	ErrContextTooLarge = errors.New("context too large for model window")

	// ErrStaleCutoff means a compression tried to commit a cutoff that no
	// longer precedes every uncompressed message, because a message was
	// appended concurrently. The compression is discarded.
	ErrStaleCutoff = errors.New("stale compression cutoff")

	// ErrRateLimited means the provider responded 429 or equivalent.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrUnknownModel means the requested model id has no pricing row;
	// callers fall back to the Sonnet tier and keep going.
	ErrUnknownModel = errors.New("unknown model id")

	// ErrCompressionFailed marks a compression call that failed in
	// transport, got a provider error status, or returned an undecodable
	// body (rate limits and auth failures keep their own sentinels); the
	// caller must leave summary state untouched.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrAuthFailed means the provider responded 401/403. The turn is
	// aborted and the user is prompted to reconfigure credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTransientTransport covers timeouts, connection resets, and 5xx
	// responses that are safe to retry before any content has streamed.
	ErrTransientTransport = errors.New("transient transport error")

	// ErrEmptyBatch means a compression was requested against zero
	// complete turns; callers treat this as a no-op, not a failure.
	ErrEmptyBatch = errors.New("no complete turns to compress")

	// ErrNotFound covers missing rows in the Store (project, document,
	// conversation, message).
	ErrNotFound = errors.New("not found")
)

// Wrap attaches a message to err while keeping it matchable with
// errors.Is against the sentinels above.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
