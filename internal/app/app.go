// Package app is the conversation/project/document facade spec §2
// describes as the thin ~20% of surface area the GUI shell (and, here,
// cmd/claudestation) drives directly: CRUD plus the two read-only/
// invalidating operations, ExportTranscript and DeleteDocument, that
// don't belong inside Store itself. Modelled on the teacher's
// read-only reconstruction idiom (turn_store_backfill.go: read all rows
// in order, transform, never mutate source rows) for ExportTranscript,
// and on the Orchestrator's own Store+Builder+Bus wiring for
// DeleteDocument's cache-invalidation path.
package app

import (
	"context"

	"github.com/pkg/errors"

	"claudestation/internal/contextbuilder"
	"claudestation/internal/events"
	"claudestation/internal/store"
)

// App is the facade over Store used by cmd/claudestation and, in the
// full product, the GUI. It does not own the Orchestrator or ApiClient;
// those are wired in by the caller for the turn-running path.
type App struct {
	store   store.Store
	builder *contextbuilder.Builder
	bus     *events.Bus
}

func New(st store.Store, builder *contextbuilder.Builder, bus *events.Bus) *App {
	return &App{store: st, builder: builder, bus: bus}
}

// --- Projects ---

func (a *App) CreateProject(ctx context.Context, name, systemPrompt, defaultModel string) (store.Project, error) {
	return a.store.CreateProject(ctx, store.Project{
		Name:         name,
		SystemPrompt: systemPrompt,
		DefaultModel: defaultModel,
		Settings:     store.DefaultProjectSettings(),
	})
}

func (a *App) ListProjects(ctx context.Context) ([]store.Project, error) {
	return a.store.ListProjects(ctx)
}

func (a *App) GetProject(ctx context.Context, id string) (store.Project, error) {
	return a.store.GetProject(ctx, id)
}

func (a *App) UpdateProjectSettings(ctx context.Context, id string, s store.ProjectSettings) error {
	return a.store.UpdateProjectSettings(ctx, id, s)
}

func (a *App) DeleteProject(ctx context.Context, id string) error {
	return a.store.DeleteProject(ctx, id)
}

// --- Documents ---

func (a *App) AddDocument(ctx context.Context, projectID, filename, extractedText, fileType string, tokenCount int) (store.Document, error) {
	return a.store.AddDocument(ctx, store.Document{
		ProjectID:     projectID,
		Filename:      filename,
		ExtractedText: extractedText,
		FileType:      fileType,
		TokenCount:    tokenCount,
	})
}

func (a *App) ListDocuments(ctx context.Context, projectID string) ([]store.Document, error) {
	return a.store.ListDocuments(ctx, projectID)
}

// DeleteDocument removes a document and invalidates every conversation
// in the project against the now-changed Layer-1 bytes (§9 open
// question: documents are immutable once uploaded, but deletion is an
// explicit, user-visible cache break rather than a silent rebuild).
// Every affected conversation's cached signature state is dropped, and
// a CacheInvalidated event is published per conversation so the UI can
// surface the "next reply re-caches this project's prefix" warning
// instead of the cost appearing to spike with no explanation.
func (a *App) DeleteDocument(ctx context.Context, documentID, projectID string) error {
	if err := a.store.DeleteDocument(ctx, documentID); err != nil {
		return errors.Wrap(err, "delete document")
	}

	convs, err := a.store.ListConversations(ctx, projectID)
	if err != nil {
		return errors.Wrap(err, "list conversations for cache invalidation")
	}
	for _, c := range convs {
		if a.builder != nil {
			a.builder.ForgetConversation(c.ID)
		}
		if a.bus != nil {
			_ = a.bus.PublishCacheInvalidated(events.CacheInvalidated{
				ConversationID: c.ID,
				Reason:         "document_deleted",
			})
		}
	}
	return nil
}

// --- Conversations ---

func (a *App) CreateConversation(ctx context.Context, projectID, title string) (store.Conversation, error) {
	return a.store.CreateConversation(ctx, store.Conversation{ProjectID: projectID, Title: title})
}

func (a *App) ListConversations(ctx context.Context, projectID string) ([]store.Conversation, error) {
	return a.store.ListConversations(ctx, projectID)
}

func (a *App) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	return a.store.GetConversation(ctx, id)
}

func (a *App) DeleteConversation(ctx context.Context, id string) error {
	if a.builder != nil {
		a.builder.ForgetConversation(id)
	}
	return a.store.DeleteConversation(ctx, id)
}

// ResetSummary clears a conversation's rolling summary and invalidates
// its cached Layer-2 signature so the next turn correctly reports a
// fresh write rather than a stale cache hit.
func (a *App) ResetSummary(ctx context.Context, id string) error {
	if err := a.store.ResetSummary(ctx, id); err != nil {
		return errors.Wrap(err, "reset summary")
	}
	if a.builder != nil {
		a.builder.ForgetConversation(id)
	}
	if a.bus != nil {
		_ = a.bus.PublishCacheInvalidated(events.CacheInvalidated{ConversationID: id, Reason: "summary_reset"})
	}
	return nil
}

// TranscriptMessage is one line of an exported transcript: the raw
// message fields, untouched by compression.
type TranscriptMessage struct {
	Role      store.Role
	Content   string
	Thinking  string
	ModelUsed string
	CreatedAt string
}

// ExportTranscript returns every message of a conversation in append
// order, unaffected by whatever the conversation's rolling summary
// currently covers (§8: "transcript export of C is byte-identical
// before and after" compression). This is a read-only reconstruction
// pass, never a mutation, over the same rows Store.GetMessages already
// orders canonically.
func (a *App) ExportTranscript(ctx context.Context, conversationID string) ([]TranscriptMessage, error) {
	msgs, err := a.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "load messages for export")
	}
	out := make([]TranscriptMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, TranscriptMessage{
			Role:      m.Role,
			Content:   m.Content,
			Thinking:  m.Thinking,
			ModelUsed: m.ModelUsed,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out, nil
}
