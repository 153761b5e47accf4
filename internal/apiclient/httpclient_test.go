package apiclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStubMessagesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompressRespectsClientSideRateLimit(t *testing.T) {
	srv := newStubMessagesServer(t, `{"content":[{"type":"text","text":"ok"}]}`)

	client := NewHTTPClient(HTTPClientOptions{
		BaseURL:           srv.URL,
		Semaphore:         NewPrioritySemaphore(),
		RequestsPerSecond: 5,
		Burst:             1,
	})

	start := time.Now()
	_, err := client.Compress(t.Context(), CompressRequest{SystemText: "s", UserText: "u"})
	require.NoError(t, err)
	_, err = client.Compress(t.Context(), CompressRequest{SystemText: "s", UserText: "u"})
	require.NoError(t, err)

	// Burst of 1 at 5rps means the second call must wait roughly 200ms
	// behind the first rather than firing immediately.
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestCompressReturnsSummaryText(t *testing.T) {
	srv := newStubMessagesServer(t, `{"content":[{"type":"text","text":"a summary"}]}`)

	client := NewHTTPClient(HTTPClientOptions{
		BaseURL:   srv.URL,
		Semaphore: NewPrioritySemaphore(),
	})

	summary, err := client.Compress(t.Context(), CompressRequest{SystemText: "s", UserText: "u"})
	require.NoError(t, err)
	require.Equal(t, "a summary", summary)
}
