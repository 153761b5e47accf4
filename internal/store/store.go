// Package store implements the durable state described in spec §3–§4.1:
// projects, documents, conversations, messages, and the rolling-summary
// fields whose invariants make the cache protocol correct.
package store

import "context"

// Store is the exclusive owner of all persistent rows; every other
// component holds only value copies obtained through these operations
// (§3.3).
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProjectSettings(ctx context.Context, id string, s ProjectSettings) error
	DeleteProject(ctx context.Context, id string) error

	// Documents, ordered by CreatedAt within a project — this ordering is
	// a cache-correctness invariant (§3.1).
	AddDocument(ctx context.Context, d Document) (Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Conversations
	CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversations(ctx context.Context, projectID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// Messages, totally ordered by (CreatedAt, ID) within a conversation
	// (§3.1).
	AppendMessage(ctx context.Context, m Message) (Message, error)
	BackfillUsage(ctx context.Context, messageID string, u Usage) error
	GetMessages(ctx context.Context, convID string) ([]Message, error)

	// UpdateSummary atomically writes the three rolling-summary fields.
	// It rejects an empty summary or a non-positive tokenCount, and
	// rejects with an error wrapping apperrors.ErrStaleCutoff if
	// cutoffMsgID does not reference a real message of this conversation,
	// or is not newer than the conversation's current cutoff message
	// (§4.1).
	UpdateSummary(ctx context.Context, convID string, summary string, cutoffMsgID string, tokenCount int) error

	// ResetSummary atomically clears RollingSummary, LastCompressedMsgID,
	// and SummaryTokenCount.
	ResetSummary(ctx context.Context, convID string) error

	Close() error
}
