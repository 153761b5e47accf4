package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudestation/internal/apperrors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate())
	require.NoError(t, s.migrate())
}

func TestCreateProjectAppliesDefaultsAndClamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, Project{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, CacheTTL5m, p.Settings.CacheTTL)
	require.Equal(t, 10, p.Settings.CompressAfterTurns)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Settings, got.Settings)

	_, err = s.GetProject(ctx, "does-not-exist")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentsOrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, Project{Name: "Docs"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.AddDocument(ctx, Document{ProjectID: p.ID, Filename: "f"})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	docs, err := s.ListDocuments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i := 1; i < len(docs); i++ {
		require.False(t, docs[i].CreatedAt.Before(docs[i-1].CreatedAt))
	}
}

func TestAppendMessageAndGetMessagesOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, Project{Name: "P"})
	require.NoError(t, err)
	c, err := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m, err := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: role, Content: "x"})
		require.NoError(t, err)
		ids = append(ids, m.ID)
		time.Sleep(time.Millisecond)
	}

	msgs, err := s.GetMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, id := range ids {
		require.Equal(t, id, msgs[i].ID)
	}
}

func TestAppendMessageOrdersRapidInsertsByAppendOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, Project{Name: "P"})
	require.NoError(t, err)
	c, err := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		// Deliberately no sleep: these likely land in the same millisecond,
		// exercising AppendMessage's monotonic created_at_ms bump.
		m, err := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: role, Content: "x"})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	msgs, err := s.GetMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, id := range ids {
		require.Equal(t, id, msgs[i].ID)
	}
	for i := 1; i < len(msgs); i++ {
		require.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}

func TestUpdateSummaryRejectsUnknownCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, Project{Name: "P"})
	c, _ := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})

	err := s.UpdateSummary(ctx, c.ID, "summary", "not-a-real-message", 10)
	require.ErrorIs(t, err, apperrors.ErrStaleCutoff)
}

func TestUpdateSummaryRejectsNonAdvancingCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, Project{Name: "P"})
	c, _ := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})

	m1, err := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	m2, err := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: RoleAssistant, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateSummary(ctx, c.ID, "summary v1", m2.ID, 50))

	// Attempting to commit an older cutoff is a race and must be rejected.
	err = s.UpdateSummary(ctx, c.ID, "stale", m1.ID, 10)
	require.ErrorIs(t, err, apperrors.ErrStaleCutoff)

	got, err := s.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "summary v1", got.RollingSummary)
	require.Equal(t, m2.ID, got.LastCompressedMsgID)
}

func TestResetSummaryClearsAllThreeFieldsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, Project{Name: "P"})
	c, _ := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})
	m, _ := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: RoleUser, Content: "hi"})

	require.NoError(t, s.UpdateSummary(ctx, c.ID, "summary", m.ID, 50))
	require.NoError(t, s.ResetSummary(ctx, c.ID))

	got, err := s.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, got.HasSummary())
	require.Equal(t, "", got.RollingSummary)
	require.Equal(t, "", got.LastCompressedMsgID)
	require.Equal(t, 0, got.SummaryTokenCount)
}

func TestDeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, Project{Name: "P"})
	c, _ := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})
	_, _ = s.AddDocument(ctx, Document{ProjectID: p.ID, Filename: "f"})
	_, _ = s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: RoleUser, Content: "hi"})

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err := s.GetConversation(ctx, c.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	docs, err := s.ListDocuments(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestBackfillUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, Project{Name: "P"})
	c, _ := s.CreateConversation(ctx, Conversation{ProjectID: p.ID})
	m, err := s.AppendMessage(ctx, Message{ConversationID: c.ID, Role: RoleAssistant, Content: ""})
	require.NoError(t, err)

	cost := 0.0123
	require.NoError(t, s.BackfillUsage(ctx, m.ID, Usage{InputTokens: 100, OutputTokens: 20, CostUSD: &cost}))

	msgs, err := s.GetMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, 100, msgs[0].Usage.InputTokens)
	require.NotNil(t, msgs[0].Usage.CostUSD)
	require.InDelta(t, cost, *msgs[0].Usage.CostUSD, 1e-9)
}
