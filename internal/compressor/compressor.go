// Package compressor implements the Compressor component of spec §4.4:
// deciding when and what to compress, and formatting the compression
// prompt sent to the cheapest available model.
package compressor

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"claudestation/internal/apiclient"
	"claudestation/internal/apperrors"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

// recompressThreshold triggers a recursive self-compression of the
// summary once it exceeds this many tokens, collapsing it back to
// recompressTarget tokens (§4.4 post-compression bound).
const (
	recompressThreshold = 3000
	recompressTarget    = 500
)

// Compressor decides when to compress and builds the compression
// request; it never talks to the network itself — ApiClient.Compress
// does that, so Compressor stays deterministic and easy to test.
type Compressor struct {
	estimator *tokenest.Estimator
}

func NewCompressor(estimator *tokenest.Estimator) *Compressor {
	return &Compressor{estimator: estimator}
}

// ShouldCompress returns true iff the number of uncompressed turns
// strictly exceeds the project's compress_after_turns threshold (§4.4).
// A turn is one user+assistant pair; an incomplete trailing turn (a user
// message with no assistant reply yet) does not count.
func ShouldCompress(uncompressed []store.Message, compressAfterTurns int) bool {
	return countCompleteTurns(uncompressed) > compressAfterTurns
}

// SelectBatch returns the oldest batchSize complete turns among
// uncompressed, and the message ID to use as the new cutoff (the last
// message of the batch). Returns ok=false if there are fewer than
// batchSize complete turns, which callers treat as "nothing to do yet".
func SelectBatch(uncompressed []store.Message, batchSize int) (batch []store.Message, cutoffMsgID string, ok bool) {
	turns := pairComplete(uncompressed)
	if len(turns) < batchSize {
		return nil, "", false
	}
	selected := turns[:batchSize]
	for _, t := range selected {
		batch = append(batch, t.user, t.assistant)
	}
	cutoffMsgID = selected[len(selected)-1].assistant.ID
	return batch, cutoffMsgID, true
}

type turnPair struct {
	user      store.Message
	assistant store.Message
}

// pairComplete walks uncompressed messages in order and returns every
// complete user+assistant pair, stopping before any trailing incomplete
// turn.
func pairComplete(msgs []store.Message) []turnPair {
	var out []turnPair
	i := 0
	for i+1 < len(msgs) {
		if msgs[i].Role == store.RoleUser && msgs[i+1].Role == store.RoleAssistant {
			out = append(out, turnPair{user: msgs[i], assistant: msgs[i+1]})
			i += 2
			continue
		}
		// Unexpected ordering (shouldn't happen given Store's invariants);
		// skip the lone message defensively rather than miscounting.
		i++
	}
	return out
}

func countCompleteTurns(msgs []store.Message) int {
	return len(pairComplete(msgs))
}

// compressionRules are the six rules appended to every compression
// prompt (§4.4).
var compressionRules = []string{
	"Preserve all key decisions and conclusions.",
	"Preserve code signatures and core logic verbatim — do not paraphrase code.",
	"Preserve domain terms, data points, numeric values verbatim.",
	"Preserve user preferences and constraints.",
	"Remove pleasantries, repetition, filler.",
	"Cap output at 500 tokens.",
}

// BuildPrompt formats the compression request described in §4.4.
// Deliberately omitted: the project's documents — compression is a
// linguistic task and documents are not injected here.
func BuildPrompt(projectName, priorSummary string, batch []store.Message) apiclient.CompressRequest {
	system := fmt.Sprintf(
		"You summarise internal conversation history for the project %q. "+
			"Output only the summary text, no preamble, no acknowledgement.", projectName)

	var sb strings.Builder
	if priorSummary != "" {
		sb.WriteString("Prior summary:\n")
		sb.WriteString(priorSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Transcript:\n")
	for _, m := range batch {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRules:\n")
	for i, r := range compressionRules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}

	return apiclient.CompressRequest{SystemText: system, UserText: sb.String()}
}

// Run performs one compression cycle: select a batch, call the client,
// and recursively recompress if the result is too large. It never
// mutates Store state itself — on success it returns the new summary and
// its token count for the caller to commit via Store.UpdateSummary; on failure it
// returns the ApiClient's (or the estimator's) error wrapped with
// context, and the caller must leave state untouched (§4.4 failure
// policy). An empty batch returns apperrors.ErrEmptyBatch.
func (c *Compressor) Run(ctx context.Context, client apiclient.ApiClient, projectName string, priorSummary string, batch []store.Message) (summary string, tokenCount int, err error) {
	if len(batch) == 0 {
		return "", 0, apperrors.ErrEmptyBatch
	}

	req := BuildPrompt(projectName, priorSummary, batch)
	summary, err = client.Compress(ctx, req)
	if err != nil {
		return "", 0, errors.Wrap(err, "compress")
	}

	tokenCount, err = c.estimator.Count(summary)
	if err != nil {
		return "", 0, errors.Wrap(err, "estimate summary token count")
	}

	if tokenCount > recompressThreshold {
		summary, tokenCount, err = c.recompress(ctx, client, projectName, summary)
		if err != nil {
			return "", 0, err
		}
	}
	return summary, tokenCount, nil
}

// recompress compresses an oversized summary again against an empty
// prior, per §4.4's bound. The recompressTarget cap reaches the model
// only through the prompt's "Cap output at 500 tokens." rule; the size
// of the result is not checked.
func (c *Compressor) recompress(ctx context.Context, client apiclient.ApiClient, projectName, oversized string) (string, int, error) {
	pseudo := store.Message{Role: store.RoleAssistant, Content: oversized}
	req := BuildPrompt(projectName, "", []store.Message{pseudo})
	summary, err := client.Compress(ctx, req)
	if err != nil {
		return "", 0, errors.Wrap(err, "recompress")
	}
	tokenCount, err := c.estimator.Count(summary)
	if err != nil {
		return "", 0, errors.Wrap(err, "estimate recompressed token count")
	}
	return summary, tokenCount, nil
}
