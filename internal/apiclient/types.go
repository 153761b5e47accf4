// Package apiclient implements the two-channel transport of spec §4.5:
// foreground streaming chat and background compression, sharing a
// priority-aware rate limiter under spec §5.
package apiclient

import "claudestation/internal/store"

// CacheControl marks a system/content block as a cache breakpoint
// (§6). TTL is empty for the default 5-minute ephemeral cache, or "1h".
type CacheControl struct {
	Type string `json:"type"` // always "ephemeral"
	TTL  string `json:"ttl,omitempty"`
}

// SystemBlock is one text block of the `system` sequence (§6). Layer 1
// always carries a CacheControl; Layer 2 carries one only when the
// summary is at least 1024 tokens (§4.3).
type SystemBlock struct {
	Type         string        `json:"type"` // "text"
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ContentBlockKind enumerates the block kinds a message's content may
// carry, per §6 ("content may be text or a structured block sequence
// when attachments or thinking are present").
type ContentBlockKind string

const (
	ContentText     ContentBlockKind = "text"
	ContentThinking ContentBlockKind = "thinking"
	ContentImage    ContentBlockKind = "image"
	ContentDocument ContentBlockKind = "document"
)

// ContentBlock is one element of a message's structured content array.
type ContentBlock struct {
	Type      ContentBlockKind `json:"type"`
	Text      string           `json:"text,omitempty"`
	Thinking  string           `json:"thinking,omitempty"`
	SourceRef string           `json:"source_ref,omitempty"` // opaque attachment reference
}

// ChatMessage is one element of the `messages` array (§6).
type ChatMessage struct {
	Role    store.Role     `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextOnly builds a ChatMessage carrying a single text content block,
// the common case for Layer-3/Layer-4 messages without thinking or
// attachments.
func TextOnly(role store.Role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: []ContentBlock{{Type: ContentText, Text: text}}}
}

// CompactionExtension is the beta request extension described in §6:
// a provider-side safety net triggered if the request nonetheless
// approaches the model's context window.
type CompactionExtension struct {
	Beta               string `json:"beta"`                 // "compact-2026-01-12"
	EditType           string `json:"edit_type"`             // "compact_20260112"
	TriggerInputTokens int    `json:"trigger_input_tokens"`
}

// DefaultCompactionExtension returns the fallback described in §4.3/§6:
// trigger threshold of 160,000 tokens (80% of the 200k context window).
func DefaultCompactionExtension() CompactionExtension {
	return CompactionExtension{
		Beta:               "compact-2026-01-12",
		EditType:           "compact_20260112",
		TriggerInputTokens: 160_000,
	}
}

// ThinkingConfig requests extended-thinking blocks (§6 config surface).
type ThinkingConfig struct {
	Enabled bool
	Budget  int
}

// ChatRequest is the bit-exact (where caching depends on it) request
// shape ContextBuilder assembles and ApiClient.Chat sends.
type ChatRequest struct {
	Model      string
	System     []SystemBlock
	Messages   []ChatMessage
	MaxTokens  int
	Thinking   *ThinkingConfig
	Compaction CompactionExtension
}

// CompressRequest is the non-streaming request Compressor builds and
// ApiClient.Compress sends. Model is always forced to the Haiku tier by
// the ApiClient, regardless of what the caller passes (§4.5).
type CompressRequest struct {
	SystemText string
	UserText   string
}

// StreamEventKind names the kinds of event a Chat stream delivers; each
// kind corresponds to one Sink method.
type StreamEventKind string

const (
	EventTextDelta     StreamEventKind = "text_delta"
	EventThinkingDelta StreamEventKind = "thinking_delta"
	EventUsage         StreamEventKind = "usage"
	EventDone          StreamEventKind = "done"
)

// Sink receives streamed events as they arrive. Implementations must not
// block for long periods; Orchestrator's sink appends to the draft
// assistant message and notifies the UI.
type Sink interface {
	OnTextDelta(text string)
	OnThinkingDelta(text string)
	OnUsage(modelUsed string, usage store.Usage)
	OnDone()
}
