// Package pricing implements the TokenTracker component (spec §4.2): a
// table of per-model prices and the cost formula that must agree with
// what the ContextBuilder and ApiClient actually send.
package pricing

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"claudestation/internal/logging"
	"claudestation/internal/store"
)

// ModelPricing is one row of the pricing table.
type ModelPricing struct {
	ModelID       string  `yaml:"model_id"`
	InputPerMTok  float64 `yaml:"input_per_mtok"`  // $ per million input tokens
	OutputPerMTok float64 `yaml:"output_per_mtok"` // $ per million output tokens
	ContextWindow int     `yaml:"context_window"`
}

const (
	// cacheReadMultiplier (R) applies to every model: cache-read tokens
	// bill at 0.1x the input price, regardless of TTL.
	cacheReadMultiplier = 0.1
	// cacheWrite5mMultiplier (W) for the 5-minute ephemeral TTL.
	cacheWrite5mMultiplier = 1.25
	// cacheWrite1hMultiplier (W) for the 1-hour ephemeral TTL.
	cacheWrite1hMultiplier = 2.0

	sonnetFallbackID = "claude-sonnet-4.5"
	HaikuTierID       = "claude-haiku-4.5"
)

// CostTier is the advisory colour hint from format_cost (§4.2). It is
// metadata only — the core never renders it.
type CostTier string

const (
	TierGreen  CostTier = "green"
	TierYellow CostTier = "yellow"
	TierRed    CostTier = "red"
)

// FormattedCost is the result of FormatCost: a short display string plus
// the colour hint that produced it.
type FormattedCost struct {
	Text string
	Tier CostTier
}

// TokenTracker holds a read-only-after-init pricing table (§5) and
// computes costs from observed usage counters.
type TokenTracker struct {
	mu    sync.RWMutex
	table map[string]ModelPricing
}

// NewTokenTracker builds a tracker from a pricing table. Callers should
// pass DefaultPricingTable() in production and may override it in tests.
func NewTokenTracker(table []ModelPricing) *TokenTracker {
	m := make(map[string]ModelPricing, len(table))
	for _, row := range table {
		m[row.ModelID] = row
	}
	return &TokenTracker{table: m}
}

// DefaultPricingTable returns the table shipped with the core. Prices
// are illustrative of the provider's published per-million-token rates
// at the tiers named in spec.md; operators may load a newer table from
// YAML with LoadPricingTable (the CLI's --pricing-file flag).
func DefaultPricingTable() []ModelPricing {
	return []ModelPricing{
		{ModelID: "claude-opus-4.5", InputPerMTok: 15, OutputPerMTok: 75, ContextWindow: 200_000},
		{ModelID: sonnetFallbackID, InputPerMTok: 3, OutputPerMTok: 15, ContextWindow: 200_000},
		{ModelID: HaikuTierID, InputPerMTok: 0.8, OutputPerMTok: 4, ContextWindow: 200_000},
	}
}

// LoadPricingTable reads a YAML file of ModelPricing rows, letting an
// operator repoint prices at a newer rate card without a code change.
// The expected shape is a top-level `models:` list of the same fields
// DefaultPricingTable sets.
func LoadPricingTable(path string) ([]ModelPricing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read pricing table file")
	}
	var doc struct {
		Models []ModelPricing `yaml:"models"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "parse pricing table yaml")
	}
	return doc.Models, nil
}

// Lookup returns the pricing row for modelID, or the Sonnet-tier fallback
// with ok=false if the model is unknown (§4.2). Lookup never fails the
// caller's turn.
func (t *TokenTracker) Lookup(modelID string) (ModelPricing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if row, found := t.table[modelID]; found {
		return row, true
	}
	fallback, ok := t.table[sonnetFallbackID]
	if !ok {
		// Even the fallback is missing from a custom table; synthesise a
		// conservative Sonnet-shaped row rather than panic.
		fallback = ModelPricing{ModelID: sonnetFallbackID, InputPerMTok: 3, OutputPerMTok: 15, ContextWindow: 200_000}
	}
	logger := logging.Component("tokentracker")
	logger.Warn().Str("model_id", modelID).Msg("unknown model id, using sonnet-tier pricing fallback")
	return fallback, false
}

// ContextWindow returns the model's context window, with the same
// unknown-model fallback behaviour as Lookup.
func (t *TokenTracker) ContextWindow(modelID string) int {
	row, _ := t.Lookup(modelID)
	return row.ContextWindow
}

// ComputeCost implements the cost formula of §4.2 exactly:
//
//	cost = (input_tokens * input_price
//	      + output_tokens * output_price
//	      + cache_creation_tokens * input_price * W
//	      + cache_read_tokens    * input_price * R) / 1_000_000
//
// W depends on ttl: 1.25 for 5-minute, 2.0 for 1-hour.
func (t *TokenTracker) ComputeCost(modelID string, u store.Usage, ttl store.CacheTTL) float64 {
	row, _ := t.Lookup(modelID)
	w := cacheWrite5mMultiplier
	if ttl == store.CacheTTL1h {
		w = cacheWrite1hMultiplier
	}
	cost := float64(u.InputTokens)*row.InputPerMTok +
		float64(u.OutputTokens)*row.OutputPerMTok +
		float64(u.CacheCreationTokens)*row.InputPerMTok*w +
		float64(u.CacheReadTokens)*row.InputPerMTok*cacheReadMultiplier
	return cost / 1_000_000
}

// FormatCost implements format_cost (§4.2): a short string with a colour
// hint. green < $0.01, yellow < $0.10, red otherwise.
func FormatCost(usd float64) FormattedCost {
	tier := TierRed
	switch {
	case usd < 0.01:
		tier = TierGreen
	case usd < 0.10:
		tier = TierYellow
	}
	return FormattedCost{Text: fmt.Sprintf("$%.4f", usd), Tier: tier}
}
