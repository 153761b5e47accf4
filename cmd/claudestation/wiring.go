package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"claudestation/internal/apiclient"
	"claudestation/internal/app"
	"claudestation/internal/compressor"
	"claudestation/internal/contextbuilder"
	"claudestation/internal/events"
	"claudestation/internal/orchestrator"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

// deps bundles everything a subcommand needs, built once per invocation
// from the resolved flags/config. Closing deps.store is the caller's
// responsibility.
type deps struct {
	store   *store.SQLiteStore
	app     *app.App
	orch    *orchestrator.Orchestrator
	bus     *events.Bus
	client  apiclient.ApiClient
	builder *contextbuilder.Builder
}

func buildDeps() (*deps, error) {
	dbPath := resolveDBPath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Wrap(err, "create db directory")
		}
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	est, err := tokenest.NewEstimator()
	if err != nil {
		return nil, errors.Wrap(err, "load tokeniser")
	}
	table := pricing.DefaultPricingTable()
	if pf := resolvePricingFile(); pf != "" {
		loaded, err := pricing.LoadPricingTable(pf)
		if err != nil {
			return nil, errors.Wrap(err, "load pricing file")
		}
		table = loaded
	}
	tracker := pricing.NewTokenTracker(table)
	builder := contextbuilder.NewBuilder(est, tracker)
	comp := compressor.NewCompressor(est)
	bus := events.NewBus()

	apiKey := resolveAPIKey()
	if apiKey == "" {
		return nil, errors.New("no Anthropic API key: pass --api-key or set ANTHROPIC_API_KEY")
	}
	client := apiclient.NewHTTPClient(apiclient.HTTPClientOptions{
		APIKey:    apiKey,
		Semaphore: apiclient.NewPrioritySemaphore(),
	})

	orch := orchestrator.New(st, builder, client, bus, tracker, comp)
	facade := app.New(st, builder, bus)

	return &deps{store: st, app: facade, orch: orch, bus: bus, client: client, builder: builder}, nil
}

func (d *deps) Close() {
	_ = d.bus.Close()
	_ = d.store.Close()
}
