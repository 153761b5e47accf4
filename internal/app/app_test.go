package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudestation/internal/contextbuilder"
	"claudestation/internal/events"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

func newTestApp(t *testing.T) (*App, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	est, err := tokenest.NewEstimator()
	require.NoError(t, err)
	tracker := pricing.NewTokenTracker(pricing.DefaultPricingTable())
	builder := contextbuilder.NewBuilder(est, tracker)
	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	return New(st, builder, bus), st
}

func TestCreateAndListProjects(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	p, err := a.CreateProject(ctx, "Acme", "You are helpful.", "claude-sonnet-4.5")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	list, err := a.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestDeleteDocumentInvalidatesAllProjectConversations(t *testing.T) {
	a, st := newTestApp(t)
	ctx := context.Background()

	p, err := a.CreateProject(ctx, "Acme", "sys", "claude-sonnet-4.5")
	require.NoError(t, err)
	doc, err := a.AddDocument(ctx, p.ID, "spec.pdf", "the doc text", "pdf", 10)
	require.NoError(t, err)
	c1, err := a.CreateConversation(ctx, p.ID, "first")
	require.NoError(t, err)
	c2, err := a.CreateConversation(ctx, p.ID, "second")
	require.NoError(t, err)

	// Seed cached signatures for both conversations, then check that
	// deleting the document publishes a CacheInvalidated event for each.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	invalidated, err := a.bus.SubscribeCacheInvalidated(subCtx)
	require.NoError(t, err)

	proj, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	docs, err := st.ListDocuments(ctx, p.ID)
	require.NoError(t, err)
	for _, c := range []store.Conversation{c1, c2} {
		_, err := a.builder.Build(ctx, contextbuilder.BuildInput{
			Project:         proj,
			Documents:       docs,
			Conversation:    c,
			UserMessageText: "hi",
			ModelID:         "claude-sonnet-4.5",
		})
		require.NoError(t, err)
	}

	require.NoError(t, a.DeleteDocument(ctx, doc.ID, p.ID))

	remaining, err := a.ListDocuments(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-invalidated:
			require.Equal(t, "document_deleted", ev.Reason)
			seen[ev.ConversationID] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for cache_invalidated events")
		}
	}
	require.True(t, seen[c1.ID])
	require.True(t, seen[c2.ID])
}

func TestExportTranscriptIsUnaffectedByCompressionCutoff(t *testing.T) {
	a, st := newTestApp(t)
	ctx := context.Background()

	p, err := a.CreateProject(ctx, "Acme", "sys", "claude-sonnet-4.5")
	require.NoError(t, err)
	c, err := a.CreateConversation(ctx, p.ID, "thread")
	require.NoError(t, err)

	m1, err := st.AppendMessage(ctx, store.Message{ConversationID: c.ID, Role: store.RoleUser, Content: "first"})
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, store.Message{ConversationID: c.ID, Role: store.RoleAssistant, Content: "reply"})
	require.NoError(t, err)

	before, err := a.ExportTranscript(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, before, 2)

	require.NoError(t, st.UpdateSummary(ctx, c.ID, "a summary of the first turn", m1.ID, 50))

	after, err := a.ExportTranscript(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestResetSummaryClearsRollingSummary(t *testing.T) {
	a, st := newTestApp(t)
	ctx := context.Background()

	p, err := a.CreateProject(ctx, "Acme", "sys", "claude-sonnet-4.5")
	require.NoError(t, err)
	c, err := a.CreateConversation(ctx, p.ID, "thread")
	require.NoError(t, err)
	m1, err := st.AppendMessage(ctx, store.Message{ConversationID: c.ID, Role: store.RoleUser, Content: "x"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateSummary(ctx, c.ID, "summary text here", m1.ID, 50))

	require.NoError(t, a.ResetSummary(ctx, c.ID))

	got, err := st.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, got.HasSummary())
}
