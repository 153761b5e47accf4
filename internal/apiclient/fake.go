package apiclient

import (
	"context"
	"sync"

	"claudestation/internal/store"
)

// FakeClient is a deterministic ApiClient test double used across
// contextbuilder, compressor, and orchestrator tests. It is exported
// (rather than living in a _test.go file) so those packages' tests can
// construct scripted conversations without reimplementing the
// interface.
type FakeClient struct {
	mu sync.Mutex

	// ChatResponses is consumed in order, one per Chat call. If exhausted,
	// the last entry repeats.
	ChatResponses []FakeChatResponse
	ChatCalls     []ChatRequest

	// CompressResponses is consumed in order, one per Compress call.
	CompressResponses []FakeCompressResponse
	CompressCalls     []CompressRequest

	chatIdx     int
	compressIdx int
}

// FakeChatResponse scripts one Chat call's behaviour.
type FakeChatResponse struct {
	TextDeltas   []string
	ModelUsed    string
	Usage        store.Usage
	Err          error // returned instead of streaming, if set
	CancelBefore bool  // simulate the caller's ctx being cancelled before the first text delta
}

// FakeCompressResponse scripts one Compress call's behaviour.
type FakeCompressResponse struct {
	Summary string
	Err     error
}

func (f *FakeClient) Chat(ctx context.Context, req ChatRequest, sink Sink) error {
	f.mu.Lock()
	f.ChatCalls = append(f.ChatCalls, req)
	resp := f.nextChatResponse()
	f.mu.Unlock()

	if resp.Err != nil {
		return resp.Err
	}
	for _, d := range resp.TextDeltas {
		if resp.CancelBefore {
			sink.OnDone()
			return context.Canceled
		}
		select {
		case <-ctx.Done():
			sink.OnDone()
			return ctx.Err()
		default:
		}
		sink.OnTextDelta(d)
	}
	sink.OnUsage(resp.ModelUsed, resp.Usage)
	sink.OnDone()
	return nil
}

func (f *FakeClient) Compress(ctx context.Context, req CompressRequest) (string, error) {
	f.mu.Lock()
	f.CompressCalls = append(f.CompressCalls, req)
	resp := f.nextCompressResponse()
	f.mu.Unlock()

	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Summary, nil
}

func (f *FakeClient) nextChatResponse() FakeChatResponse {
	if len(f.ChatResponses) == 0 {
		return FakeChatResponse{TextDeltas: []string{"ok"}, ModelUsed: "claude-sonnet-4.5"}
	}
	idx := f.chatIdx
	if idx >= len(f.ChatResponses) {
		idx = len(f.ChatResponses) - 1
	} else {
		f.chatIdx++
	}
	return f.ChatResponses[idx]
}

func (f *FakeClient) nextCompressResponse() FakeCompressResponse {
	if len(f.CompressResponses) == 0 {
		return FakeCompressResponse{Summary: "a short summary"}
	}
	idx := f.compressIdx
	if idx >= len(f.CompressResponses) {
		idx = len(f.CompressResponses) - 1
	} else {
		f.compressIdx++
	}
	return f.CompressResponses[idx]
}

var _ ApiClient = (*FakeClient)(nil)
