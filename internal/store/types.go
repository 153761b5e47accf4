package store

import "time"

// Role distinguishes a Message's author, per spec §3.1.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CacheTTL selects the provider's ephemeral cache lifetime for a
// cache-control marker.
type CacheTTL string

const (
	CacheTTL5m CacheTTL = "5m"
	CacheTTL1h CacheTTL = "1h"
)

// ProjectSettings enumerates the recognised per-project options (§3.1).
// Zero values are not valid configuration; use DefaultProjectSettings.
type ProjectSettings struct {
	CacheTTL           CacheTTL `json:"cache_ttl" yaml:"cache_ttl"`
	CompressAfterTurns int      `json:"compress_after_turns" yaml:"compress_after_turns"`
	CompressBatchSize  int      `json:"compress_batch_size" yaml:"compress_batch_size"`
	ThinkingEnabled    bool     `json:"thinking_enabled" yaml:"thinking_enabled"`
	ThinkingBudget     int      `json:"thinking_budget" yaml:"thinking_budget"`
}

// DefaultProjectSettings returns the defaults named in §3.1.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		CacheTTL:           CacheTTL5m,
		CompressAfterTurns: 10,
		CompressBatchSize:  5,
		ThinkingEnabled:    false,
		ThinkingBudget:     0,
	}
}

// Clamp returns a copy of s with the ranges from §3.1 enforced:
// CompressAfterTurns ∈ [5,30], CompressBatchSize ∈ [3,10], and any
// CacheTTL other than 1h set to 5m.
func (s ProjectSettings) Clamp() ProjectSettings {
	if s.CompressAfterTurns < 5 {
		s.CompressAfterTurns = 5
	}
	if s.CompressAfterTurns > 30 {
		s.CompressAfterTurns = 30
	}
	if s.CompressBatchSize < 3 {
		s.CompressBatchSize = 3
	}
	if s.CompressBatchSize > 10 {
		s.CompressBatchSize = 10
	}
	if s.CacheTTL != CacheTTL1h {
		s.CacheTTL = CacheTTL5m
	}
	return s
}

// Project is the top-level container for documents and conversations.
type Project struct {
	ID            string
	Name          string
	SystemPrompt  string
	DefaultModel  string
	Settings      ProjectSettings
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Document holds text extracted from an uploaded file. Extraction is
// performed once at upload; ExtractedText is immutable thereafter.
type Document struct {
	ID            string
	ProjectID     string
	Filename      string
	ExtractedText string
	TokenCount    int
	FileType      string
	CreatedAt     time.Time
}

// Conversation is a thread of messages within a Project.
type Conversation struct {
	ID                  string
	ProjectID           string
	Title               string
	ModelOverride       string
	IsArchived          bool
	RollingSummary      string
	LastCompressedMsgID string
	SummaryTokenCount   int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasSummary reports whether the conversation currently carries a rolling
// summary. Per §3.1 this is an iff relationship across all three summary
// fields; the Store enforces that invariant on every write.
func (c Conversation) HasSummary() bool {
	return c.LastCompressedMsgID != "" && c.RollingSummary != "" && c.SummaryTokenCount > 0
}

// Usage holds the provider-reported token counters for one assistant
// response. The counters are zero until the stream completes; CostUSD is
// nil if the stream was cancelled before usage arrived.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	CostUSD             *float64
}

// Message is one turn-half within a Conversation. Messages are
// append-only; the only permitted mutation after creation is backfilling
// Usage fields once a streaming response completes (or is cancelled).
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Thinking       string
	Attachments    []string
	ModelUsed      string
	Usage          Usage
	CreatedAt      time.Time
}
