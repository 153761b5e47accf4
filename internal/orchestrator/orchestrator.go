// Package orchestrator drives the foreground turn state machine and the
// background compression worker described in spec §4.6. Goroutine
// supervision follows the teacher's chatrunner.ChatSession pattern
// (pkg/chatrunner/chat_runner.go): Start runs the worker under an
// errgroup.WithContext, and the event Bus keeps running independent of
// any single turn.
package orchestrator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"claudestation/internal/apiclient"
	"claudestation/internal/compressor"
	"claudestation/internal/contextbuilder"
	"claudestation/internal/events"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
)

// TurnState names the foreground state machine's positions (§4.6).
type TurnState int

const (
	StateIdle TurnState = iota
	StateBuilding
	StateStreaming
	StateFinalising
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateStreaming:
		return "streaming"
	case StateFinalising:
		return "finalising"
	default:
		return "unknown"
	}
}

// Orchestrator coordinates the foreground turn flow and owns the
// background CompressionWorker. One Orchestrator is shared across the
// whole process; per-conversation state lives in the Store, not here.
type Orchestrator struct {
	store   store.Store
	builder *contextbuilder.Builder
	client  apiclient.ApiClient
	bus     *events.Bus
	tracker *pricing.TokenTracker
	worker  *CompressionWorker

	mu    sync.Mutex
	state TurnState
}

func New(st store.Store, builder *contextbuilder.Builder, client apiclient.ApiClient, bus *events.Bus, tracker *pricing.TokenTracker, comp *compressor.Compressor) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		builder: builder,
		client:  client,
		bus:     bus,
		tracker: tracker,
		state:   StateIdle,
	}
	o.worker = NewCompressionWorker(st, client, comp, bus)
	return o
}

// Start launches the background compression worker under an errgroup
// tied to ctx, mirroring the teacher's router-goroutine supervision. It
// returns an errgroup whose Wait() blocks until ctx is cancelled or the
// worker exits with an error.
func (o *Orchestrator) Start(ctx context.Context) (*errgroup.Group, context.Context) {
	eg, groupCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return o.worker.Run(groupCtx)
	})
	return eg, groupCtx
}

// CompressNow runs one synchronous compression pass for a conversation,
// used by the CLI's `compress` subcommand to test the worker in
// isolation without standing up the background queue.
func (o *Orchestrator) CompressNow(ctx context.Context, conv store.Conversation, project store.Project) error {
	return o.worker.RunOnce(ctx, conv.ID, project)
}

func (o *Orchestrator) setState(s TurnState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// State reports the foreground turn state machine's current position.
func (o *Orchestrator) State() TurnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RunTurn executes one foreground turn: Idle → Building → Streaming →
// Finalising → Idle (§4.6). It always leaves the state machine back at
// Idle, even on error, so a failed turn never wedges the UI.
func (o *Orchestrator) RunTurn(ctx context.Context, conv store.Conversation, project store.Project, docs []store.Document, userText string, sink apiclient.Sink) error {
	defer o.setState(StateIdle)

	o.setState(StateBuilding)
	msgs, err := o.store.GetMessages(ctx, conv.ID)
	if err != nil {
		return errors.Wrap(err, "load messages for turn")
	}

	modelID := conv.ModelOverride
	if modelID == "" {
		modelID = project.DefaultModel
	}

	built, err := o.builder.Build(ctx, contextbuilder.BuildInput{
		Project:         project,
		Documents:       docs,
		Conversation:    conv,
		Messages:        msgs,
		UserMessageText: userText,
		ModelID:         modelID,
	})
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	userMsg := store.Message{ConversationID: conv.ID, Role: store.RoleUser, Content: userText}
	if _, err := o.store.AppendMessage(ctx, userMsg); err != nil {
		return errors.Wrap(err, "persist user message")
	}

	o.setState(StateStreaming)
	collector := &collectingSink{inner: sink}
	req := apiclient.ChatRequest{
		Model:      built.Model,
		System:     built.System,
		Messages:   built.Messages,
		MaxTokens:  built.MaxTokens,
		Thinking:   built.Thinking,
		Compaction: built.Compaction,
	}
	if err := o.client.Chat(ctx, req, collector); err != nil {
		if errors.Is(err, context.Canceled) {
			// User cancellation: commit whatever text arrived as the
			// assistant message, with no cost recorded.
			o.setState(StateFinalising)
			partial := store.Message{
				ConversationID: conv.ID,
				Role:           store.RoleAssistant,
				Content:        collector.text.String(),
				Thinking:       collector.thinking.String(),
				ModelUsed:      collector.modelUsed,
			}
			if _, perr := o.store.AppendMessage(context.WithoutCancel(ctx), partial); perr != nil {
				return errors.Wrap(perr, "persist partial assistant message")
			}
		}
		return errors.Wrap(err, "chat request")
	}

	o.setState(StateFinalising)
	cost := o.tracker.ComputeCost(collector.modelUsed, collector.usage, project.Settings.CacheTTL)
	collector.usage.CostUSD = &cost

	assistantMsg := store.Message{
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		Content:        collector.text.String(),
		Thinking:       collector.thinking.String(),
		ModelUsed:      collector.modelUsed,
		Usage:          collector.usage,
	}
	saved, err := o.store.AppendMessage(ctx, assistantMsg)
	if err != nil {
		return errors.Wrap(err, "persist assistant message")
	}

	if o.bus != nil {
		_ = o.bus.PublishResponseComplete(events.ResponseComplete{
			ConversationID: conv.ID,
			MessageID:      saved.ID,
			ModelUsed:      collector.modelUsed,
			CostUSD:        cost,
		})
	}

	o.worker.Enqueue(conv.ID, project)
	return nil
}
