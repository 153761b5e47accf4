package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudestation/internal/apiclient"
	"claudestation/internal/compressor"
	"claudestation/internal/contextbuilder"
	"claudestation/internal/events"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

type noopSink struct{}

func (noopSink) OnTextDelta(string)         {}
func (noopSink) OnThinkingDelta(string)     {}
func (noopSink) OnUsage(string, store.Usage) {}
func (noopSink) OnDone()                    {}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.SQLiteStore, *apiclient.FakeClient) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	est, err := tokenest.NewEstimator()
	require.NoError(t, err)
	tracker := pricing.NewTokenTracker(pricing.DefaultPricingTable())
	builder := contextbuilder.NewBuilder(est, tracker)
	comp := compressor.NewCompressor(est)
	fake := &apiclient.FakeClient{}
	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	o := New(st, builder, fake, bus, tracker, comp)
	return o, st, fake
}

func seedProjectAndConversation(t *testing.T, st *store.SQLiteStore) (store.Project, store.Conversation) {
	t.Helper()
	ctx := context.Background()
	p, err := st.CreateProject(ctx, store.Project{Name: "demo", DefaultModel: "claude-sonnet-4.5"})
	require.NoError(t, err)
	c, err := st.CreateConversation(ctx, store.Conversation{ProjectID: p.ID})
	require.NoError(t, err)
	return p, c
}

func TestRunTurnReturnsToIdleOnSuccess(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	p, c := seedProjectAndConversation(t, st)
	fake.ChatResponses = []apiclient.FakeChatResponse{{
		TextDeltas: []string{"hello there"},
		ModelUsed:  "claude-sonnet-4.5",
		Usage:      store.Usage{InputTokens: 100, OutputTokens: 20},
	}}

	require.Equal(t, StateIdle, o.State())
	err := o.RunTurn(context.Background(), c, p, nil, "hi", noopSink{})
	require.NoError(t, err)
	require.Equal(t, StateIdle, o.State())

	msgs, err := st.GetMessages(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, store.RoleUser, msgs[0].Role)
	require.Equal(t, store.RoleAssistant, msgs[1].Role)
	require.Equal(t, "hello there", msgs[1].Content)
	require.NotNil(t, msgs[1].Usage.CostUSD)
}

func TestRunTurnReturnsToIdleOnChatError(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	p, c := seedProjectAndConversation(t, st)
	fake.ChatResponses = []apiclient.FakeChatResponse{{Err: context.DeadlineExceeded}}

	err := o.RunTurn(context.Background(), c, p, nil, "hi", noopSink{})
	require.Error(t, err)
	require.Equal(t, StateIdle, o.State())
}

func TestRunTurnEnqueuesCompressionAfterThreshold(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	p, c := seedProjectAndConversation(t, st)
	p.Settings.CompressAfterTurns = 5
	p.Settings.CompressBatchSize = 3
	require.NoError(t, st.UpdateProjectSettings(context.Background(), p.ID, p.Settings))

	fake.ChatResponses = []apiclient.FakeChatResponse{{
		TextDeltas: []string{"ok"},
		ModelUsed:  "claude-sonnet-4.5",
	}}
	fake.CompressResponses = []apiclient.FakeCompressResponse{{Summary: "a rolling summary of early turns"}}

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	for i := 0; i < 6; i++ {
		require.NoError(t, o.RunTurn(ctx, c, p, nil, "question", noopSink{}))
	}

	eg, _ := o.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)

	for {
		conv, err := st.GetConversation(ctx, c.ID)
		require.NoError(t, err)
		if conv.HasSummary() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for background compression to commit a summary")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancelRun()
	_ = eg.Wait()
}
