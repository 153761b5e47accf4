// Package contextbuilder implements the four-layer request assembler of
// spec §4.3 — the hardest component, because every decision here is a
// cache-correctness decision.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"claudestation/internal/apiclient"
	"claudestation/internal/apperrors"
	"claudestation/internal/logging"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

// reservedOutputTokens is subtracted from the model's context window
// before budget-fitting Layer 3, per §4.3.
const reservedOutputTokens = 8192

// summaryCacheFloor is the minimum summary_token_count the remote cache
// backend accepts as a cached prefix (§4.3); below this, marking the
// Layer-2 block with cache_control is a silent no-op that still costs
// full input pricing.
const summaryCacheFloor = 1024

// BuildInput carries everything Build needs. Documents and Messages must
// already be in their canonical order (created_at ascending) — the
// Store guarantees this; Build re-sorts neither Documents (reordering
// would itself be the cache-invalidating bug) nor Messages, whose
// Layer-3 selection relies on the order it is given.
type BuildInput struct {
	Project         store.Project
	Documents       []store.Document
	Conversation    store.Conversation
	Messages        []store.Message
	UserMessageText string
	ModelID         string
}

// BuildOutput is the assembled request plus the bookkeeping ContextBuilder
// needs to honour the estimate() contract and the cache-stability
// invariant.
type BuildOutput struct {
	System          []apiclient.SystemBlock
	Messages        []apiclient.ChatMessage
	EstimatedTokens int
	Compaction      apiclient.CompactionExtension
	Model           string
	MaxTokens       int
	Thinking        *apiclient.ThinkingConfig

	Layer1Signature   string
	Layer1Tokens      int
	Layer2Present     bool
	Layer2CacheMarked bool
	Layer2Signature   string
	Layer2Tokens      int
	Layer3DroppedMsgs int
}

// Builder assembles requests and tracks, per conversation, the last
// Layer-1/Layer-2 signatures it sent — the minimum state needed to
// classify the next turn's bytes as a cache hit or a fresh cache write
// for the estimate() contract (§4.3).
type Builder struct {
	estimator *tokenest.Estimator
	tracker   *pricing.TokenTracker

	mu       sync.Mutex
	lastSigs map[string]convSignatures
}

type convSignatures struct {
	layer1 string
	layer2 string
}

func NewBuilder(estimator *tokenest.Estimator, tracker *pricing.TokenTracker) *Builder {
	return &Builder{
		estimator: estimator,
		tracker:   tracker,
		lastSigs:  make(map[string]convSignatures),
	}
}

// Build assembles the four-layer request described in §4.3.
func (b *Builder) Build(ctx context.Context, in BuildInput) (BuildOutput, error) {
	log := logging.Component("contextbuilder")

	layer1Text := buildLayer1Text(in.Project.SystemPrompt, in.Documents)
	layer1Sig := layerSignature("layer1", layer1Text)
	layer1Tokens, err := b.estimator.Count(layer1Text)
	if err != nil {
		return BuildOutput{}, errors.Wrap(err, "estimate layer 1")
	}

	system := []apiclient.SystemBlock{{
		Type:         "text",
		Text:         layer1Text,
		CacheControl: cacheControlFor(in.Project.Settings.CacheTTL),
	}}

	out := BuildOutput{
		Layer1Signature: layer1Sig,
		Layer1Tokens:    layer1Tokens,
	}

	var layer2Tokens int
	if in.Conversation.HasSummary() {
		layer2Text := fmt.Sprintf("<conversation_summary>\n%s\n</conversation_summary>", in.Conversation.RollingSummary)
		layer2Sig := layerSignature("layer2", layer2Text)
		layer2Tokens, err = b.estimator.Count(layer2Text)
		if err != nil {
			return BuildOutput{}, errors.Wrap(err, "estimate layer 2")
		}
		block := apiclient.SystemBlock{Type: "text", Text: layer2Text}
		cacheMarked := in.Conversation.SummaryTokenCount >= summaryCacheFloor
		if cacheMarked {
			block.CacheControl = cacheControlFor(in.Project.Settings.CacheTTL)
		}
		system = append(system, block)

		out.Layer2Present = true
		out.Layer2CacheMarked = cacheMarked
		out.Layer2Signature = layer2Sig
		out.Layer2Tokens = layer2Tokens
	}

	layer3 := messagesAfterCutoff(in.Messages, in.Conversation.LastCompressedMsgID)
	layer3Chat := make([]apiclient.ChatMessage, 0, len(layer3))
	layer3TokenCounts := make([]int, 0, len(layer3))
	for _, m := range layer3 {
		cm, err := b.toChatMessage(m)
		if err != nil {
			return BuildOutput{}, err
		}
		layer3Chat = append(layer3Chat, cm)
		tok, err := b.estimator.Count(m.Content + m.Thinking)
		if err != nil {
			return BuildOutput{}, errors.Wrap(err, "estimate layer 3 message")
		}
		layer3TokenCounts = append(layer3TokenCounts, tok)
	}

	layer4 := apiclient.TextOnly(store.RoleUser, in.UserMessageText)
	layer4Tokens, err := b.estimator.Count(in.UserMessageText)
	if err != nil {
		return BuildOutput{}, errors.Wrap(err, "estimate layer 4")
	}

	contextWindow := b.tracker.ContextWindow(in.ModelID)
	budget := contextWindow - reservedOutputTokens

	baseline := layer1Tokens + layer2Tokens + layer4Tokens
	if baseline > budget {
		return BuildOutput{}, errors.Wrapf(apperrors.ErrContextTooLarge,
			"layer1+layer2+layer4 alone is %d tokens, exceeds budget %d", baseline, budget)
	}

	total := baseline
	for _, t := range layer3TokenCounts {
		total += t
	}

	dropped := 0
	for total > budget && len(layer3Chat) >= 2 {
		// Drop the oldest complete turn (user+assistant pair) from the
		// front, per §4.3's budget-fitting rule.
		total -= layer3TokenCounts[0] + layer3TokenCounts[1]
		layer3TokenCounts = layer3TokenCounts[2:]
		layer3Chat = layer3Chat[2:]
		dropped += 2
	}
	if dropped > 0 {
		log.Warn().Str("conversation_id", in.Conversation.ID).Int("dropped_messages", dropped).
			Msg("budget-fitting dropped oldest layer-3 messages")
	}

	messages := append(layer3Chat, layer4)

	b.mu.Lock()
	prev, hadPrev := b.lastSigs[in.Conversation.ID]
	if hadPrev && prev.layer1 != layer1Sig {
		log.Warn().Str("conversation_id", in.Conversation.ID).
			Msg("layer 1 byte sequence changed since last turn; remote cache prefix invalidated")
	}
	b.lastSigs[in.Conversation.ID] = convSignatures{layer1: layer1Sig, layer2: out.Layer2Signature}
	b.mu.Unlock()

	out.System = system
	out.Messages = messages
	out.EstimatedTokens = total
	out.Compaction = apiclient.DefaultCompactionExtension()
	out.Model = in.ModelID
	out.MaxTokens = 4096
	out.Layer3DroppedMsgs = dropped
	if in.Project.Settings.ThinkingEnabled {
		out.Thinking = &apiclient.ThinkingConfig{Enabled: true, Budget: in.Project.Settings.ThinkingBudget}
	}
	return out, nil
}

// priorSignatures reports what Build last saw for a conversation, used by
// Estimate to classify cache hits vs. fresh writes without re-deriving
// the builder's internal state.
func (b *Builder) priorSignatures(convID string) (convSignatures, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sig, ok := b.lastSigs[convID]
	return sig, ok
}

// ForgetConversation drops cached signature state for a conversation,
// used after a reset-summary or a document mutation that intentionally
// invalidates the cache (§9 open question) so the next Estimate call
// correctly reports a fresh cache-creation cost instead of a stale hit.
func (b *Builder) ForgetConversation(convID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lastSigs, convID)
}

// EstimateResult is the companion contract of §4.3: it must call Build
// internally (or share its logic) rather than approximate heuristically.
type EstimateResult struct {
	EstimatedInputTokens  int
	EstimatedCachedTokens int
	EstimatedCostUSD      float64
}

// Estimate shares Build's logic (it calls Build directly) and then
// classifies each cacheable layer as a hit or a fresh write by comparing
// against the signature Build observed on the immediately preceding
// call for this conversation.
func (b *Builder) Estimate(ctx context.Context, in BuildInput) (EstimateResult, error) {
	prior, hadPrior := b.priorSignatures(in.Conversation.ID)

	out, err := b.Build(ctx, in)
	if err != nil {
		return EstimateResult{}, err
	}

	var usage store.Usage
	layer1Hit := hadPrior && prior.layer1 == out.Layer1Signature
	if layer1Hit {
		usage.CacheReadTokens += out.Layer1Tokens
	} else {
		usage.CacheCreationTokens += out.Layer1Tokens
	}

	if out.Layer2Present {
		if out.Layer2CacheMarked {
			layer2Hit := hadPrior && prior.layer2 == out.Layer2Signature
			if layer2Hit {
				usage.CacheReadTokens += out.Layer2Tokens
			} else {
				usage.CacheCreationTokens += out.Layer2Tokens
			}
		} else {
			usage.InputTokens += out.Layer2Tokens
		}
	}

	plain := out.EstimatedTokens - out.Layer1Tokens
	if out.Layer2Present {
		plain -= out.Layer2Tokens
	}
	if plain > 0 {
		usage.InputTokens += plain
	}

	cost := b.tracker.ComputeCost(in.ModelID, usage, in.Project.Settings.CacheTTL)

	return EstimateResult{
		EstimatedInputTokens:  usage.InputTokens + usage.CacheReadTokens + usage.CacheCreationTokens,
		EstimatedCachedTokens: usage.CacheReadTokens + usage.CacheCreationTokens,
		EstimatedCostUSD:      cost,
	}, nil
}

// buildLayer1Text concatenates the system prompt and documents in the
// deterministic, byte-stable form required by §4.3's Layer-1 invariant.
func buildLayer1Text(systemPrompt string, docs []store.Document) string {
	parts := make([]string, 0, len(docs)+1)
	parts = append(parts, systemPrompt)
	for _, d := range docs {
		parts = append(parts, d.ExtractedText)
	}
	return strings.Join(parts, "\n\n")
}

func cacheControlFor(ttl store.CacheTTL) *apiclient.CacheControl {
	cc := &apiclient.CacheControl{Type: "ephemeral"}
	if ttl == store.CacheTTL1h {
		cc.TTL = "1h"
	}
	return cc
}

// messagesAfterCutoff returns all messages strictly after the message
// whose ID is cutoffID, or every message if cutoffID is empty (§4.3
// Layer 3). Messages are assumed pre-sorted by (created_at, id), which
// store.GetMessages guarantees.
func messagesAfterCutoff(msgs []store.Message, cutoffID string) []store.Message {
	if cutoffID == "" {
		return msgs
	}
	idx := -1
	for i, m := range msgs {
		if m.ID == cutoffID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return msgs
	}
	return msgs[idx+1:]
}

func (b *Builder) toChatMessage(m store.Message) (apiclient.ChatMessage, error) {
	var blocks []apiclient.ContentBlock
	if m.Thinking != "" {
		// Thinking blocks are provider-mandated to precede the text
		// block within an assistant turn (§4.3).
		blocks = append(blocks, apiclient.ContentBlock{Type: apiclient.ContentThinking, Thinking: m.Thinking})
	}
	blocks = append(blocks, apiclient.ContentBlock{Type: apiclient.ContentText, Text: m.Content})
	for _, a := range m.Attachments {
		blocks = append(blocks, apiclient.ContentBlock{Type: apiclient.ContentDocument, SourceRef: a})
	}
	return apiclient.ChatMessage{Role: m.Role, Content: blocks}, nil
}
