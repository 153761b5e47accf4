// Package tokenest provides the local tokeniser used for
// ContextBuilder's estimate() contract and budget fitting, and for the
// Compressor's summary token counts. Per spec §9, this estimate is deliberately
// distinct from the provider's own billed counters: the Store always
// records what the provider reports; this package only bounds an
// upfront guess.
package tokenest

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens using a local BPE tokeniser. It is safe for
// concurrent use.
type Estimator struct {
	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewEstimator loads the cl100k_base codec, the closest large-vocabulary
// BPE encoding available in the pack's tokeniser library to the
// provider's own tokenisation, used as a bounded local approximation
// per §9.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "load cl100k_base codec")
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "encode")
	}
	return len(ids), nil
}

// MustCount is a convenience for call sites that already treat tokeniser
// failure as non-fatal (falling back to a whitespace heuristic), mirroring
// the "never fail the turn over a pricing/estimate detail" posture of
// TokenTracker (§4.2).
func (e *Estimator) MustCount(text string) int {
	n, err := e.Count(text)
	if err != nil {
		return fallbackWordCount(text)
	}
	return n
}

func fallbackWordCount(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			n++
		}
		inWord = !isSpace
	}
	// Whitespace tokenisation undercounts relative to BPE; nudge up by a
	// third as a crude correction so the fallback stays conservative.
	return n + n/3
}
