package compressor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"claudestation/internal/apiclient"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

func turn(i int) (store.Message, store.Message) {
	return store.Message{ID: "u" + itoa(i), Role: store.RoleUser, Content: "question"},
		store.Message{ID: "a" + itoa(i), Role: store.RoleAssistant, Content: "answer"}
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

func buildUncompressed(n int) []store.Message {
	var out []store.Message
	for i := 0; i < n; i++ {
		u, a := turn(i)
		out = append(out, u, a)
	}
	return out
}

func TestShouldCompressThresholdIsStrict(t *testing.T) {
	require.False(t, ShouldCompress(buildUncompressed(10), 10))
	require.True(t, ShouldCompress(buildUncompressed(11), 10))
}

func TestShouldCompressIgnoresTrailingIncompleteTurn(t *testing.T) {
	msgs := buildUncompressed(10)
	msgs = append(msgs, store.Message{ID: "u-trailing", Role: store.RoleUser, Content: "no reply yet"})
	require.False(t, ShouldCompress(msgs, 10))
}

func TestSelectBatchReturnsOldestTurnsAndCutoff(t *testing.T) {
	msgs := buildUncompressed(5)
	batch, cutoff, ok := SelectBatch(msgs, 3)
	require.True(t, ok)
	require.Len(t, batch, 6) // 3 turns * 2 messages
	require.Equal(t, "u0", batch[0].ID)
	require.Equal(t, "a2", cutoff)
}

func TestSelectBatchNotOkWhenFewerThanBatchSize(t *testing.T) {
	msgs := buildUncompressed(2)
	_, _, ok := SelectBatch(msgs, 3)
	require.False(t, ok)
}

func TestBuildPromptOmitsDocumentsAndIncludesRules(t *testing.T) {
	batch := buildUncompressed(1)
	req := BuildPrompt("demo-project", "prior summary text", batch)
	require.Contains(t, req.SystemText, "demo-project")
	require.Contains(t, req.UserText, "prior summary text")
	require.Contains(t, req.UserText, "question")
	require.Contains(t, req.UserText, "answer")
	require.Contains(t, req.UserText, "Cap output at 500 tokens.")
	require.NotContains(t, req.UserText, "<document")
}

func newTestCompressor(t *testing.T) *Compressor {
	t.Helper()
	est, err := tokenest.NewEstimator()
	require.NoError(t, err)
	return NewCompressor(est)
}

func TestRunReturnsSummaryFromClient(t *testing.T) {
	c := newTestCompressor(t)
	fake := &apiclient.FakeClient{
		CompressResponses: []apiclient.FakeCompressResponse{{Summary: "a concise summary"}},
	}
	batch := buildUncompressed(3)
	summary, tokens, err := c.Run(context.Background(), fake, "demo", "", batch)
	require.NoError(t, err)
	require.Equal(t, "a concise summary", summary)
	require.Greater(t, tokens, 0)
	require.Len(t, fake.CompressCalls, 1)
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	c := newTestCompressor(t)
	fake := &apiclient.FakeClient{}
	_, _, err := c.Run(context.Background(), fake, "demo", "", nil)
	require.Error(t, err)
}

func TestRunRecompressesOversizedSummary(t *testing.T) {
	c := newTestCompressor(t)
	oversized := strings.Repeat("word ", 4000)
	fake := &apiclient.FakeClient{
		CompressResponses: []apiclient.FakeCompressResponse{
			{Summary: oversized},
			{Summary: "now it is short"},
		},
	}
	batch := buildUncompressed(3)
	summary, _, err := c.Run(context.Background(), fake, "demo", "", batch)
	require.NoError(t, err)
	require.Equal(t, "now it is short", summary)
	require.Len(t, fake.CompressCalls, 2)
}

func TestRunPropagatesClientError(t *testing.T) {
	c := newTestCompressor(t)
	fake := &apiclient.FakeClient{
		CompressResponses: []apiclient.FakeCompressResponse{{Err: errCompressBoom}},
	}
	_, _, err := c.Run(context.Background(), fake, "demo", "", buildUncompressed(1))
	require.Error(t, err)
}

var errCompressBoom = errors.New("boom")
