package apiclient

import (
	"context"

	"claudestation/internal/store"
)

// ApiClient is the two-operation transport of §4.5.
type ApiClient interface {
	// Chat opens a streaming response and emits events into sink as they
	// arrive. It retries idempotently on transient network errors with
	// exponential backoff (3 attempts at 1s/2s/4s) as long as no text has
	// been emitted yet; once any text delta has reached sink, the call is
	// no longer idempotent and is not retried. Cancelling ctx aborts the
	// stream; sink.OnDone() is still called so the caller can finalise
	// whatever text arrived.
	Chat(ctx context.Context, req ChatRequest, sink Sink) error

	// Compress issues a single non-streaming request forced to the
	// Haiku tier, regardless of the project's default model. It never
	// retries: on failure the caller must leave summary state untouched
	// (§4.4 failure policy).
	Compress(ctx context.Context, req CompressRequest) (string, error)
}

// usageFromCounters is a small helper shared by the HTTP client and test
// fakes to build a store.Usage from raw provider counters.
func usageFromCounters(input, output, cacheRead, cacheCreation int) store.Usage {
	return store.Usage{
		InputTokens:         input,
		OutputTokens:        output,
		CacheReadTokens:     cacheRead,
		CacheCreationTokens: cacheCreation,
	}
}
