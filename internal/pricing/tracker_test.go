package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"claudestation/internal/store"
)

func TestComputeCostFormula(t *testing.T) {
	tr := NewTokenTracker(DefaultPricingTable())

	u := store.Usage{InputTokens: 1000, OutputTokens: 500, CacheCreationTokens: 200, CacheReadTokens: 300}
	got := tr.ComputeCost(sonnetFallbackID, u, store.CacheTTL5m)

	row, _ := tr.Lookup(sonnetFallbackID)
	want := (1000*row.InputPerMTok + 500*row.OutputPerMTok + 200*row.InputPerMTok*1.25 + 300*row.InputPerMTok*0.1) / 1_000_000
	require.InDelta(t, want, got, 1e-12)
}

func TestComputeCostHonoursCacheTTLWriteMultiplier(t *testing.T) {
	tr := NewTokenTracker(DefaultPricingTable())
	u := store.Usage{CacheCreationTokens: 1_000_000}

	cost5m := tr.ComputeCost(sonnetFallbackID, u, store.CacheTTL5m)
	cost1h := tr.ComputeCost(sonnetFallbackID, u, store.CacheTTL1h)
	require.Greater(t, cost1h, cost5m)

	row, _ := tr.Lookup(sonnetFallbackID)
	require.InDelta(t, row.InputPerMTok*1.25, cost5m, 1e-9)
	require.InDelta(t, row.InputPerMTok*2.0, cost1h, 1e-9)
}

func TestLookupFallsBackToSonnetForUnknownModel(t *testing.T) {
	tr := NewTokenTracker(DefaultPricingTable())
	row, ok := tr.Lookup("some-future-model-id")
	require.False(t, ok)
	require.Equal(t, sonnetFallbackID, row.ModelID)
}

func TestFormatCostTiers(t *testing.T) {
	require.Equal(t, TierGreen, FormatCost(0.001).Tier)
	require.Equal(t, TierYellow, FormatCost(0.05).Tier)
	require.Equal(t, TierRed, FormatCost(1.23).Tier)
}

func TestLoadPricingTableParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	contents := `
models:
  - model_id: claude-opus-4.5
    input_per_mtok: 20
    output_per_mtok: 90
    context_window: 250000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	table, err := LoadPricingTable(path)
	require.NoError(t, err)
	require.Len(t, table, 1)
	require.Equal(t, "claude-opus-4.5", table[0].ModelID)
	require.Equal(t, 20.0, table[0].InputPerMTok)
	require.Equal(t, 90.0, table[0].OutputPerMTok)
	require.Equal(t, 250000, table[0].ContextWindow)
}

func TestLoadPricingTableErrorsOnMissingFile(t *testing.T) {
	_, err := LoadPricingTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
