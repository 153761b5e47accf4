package orchestrator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"claudestation/internal/apiclient"
	"claudestation/internal/compressor"
	"claudestation/internal/events"
	"claudestation/internal/logging"
	"claudestation/internal/store"
)

// compressionJob names one conversation due for a compression pass. The
// job carries the project, not just its ID, because the worker needs
// the project's name (for the prompt) and batch-size setting without a
// second Store round trip.
type compressionJob struct {
	conversationID string
	project        store.Project
}

// CompressionWorker is the single dedicated background goroutine
// described in §4.6: a bounded FIFO queue of pending conversations,
// deduplicated by conversation ID so a conversation already queued
// isn't queued twice, drained one job at a time so it never competes
// with the foreground turn for CPU or for the provider's rate limit
// beyond what PrioritySemaphore already arbitrates.
type CompressionWorker struct {
	store  store.Store
	client apiclient.ApiClient
	comp   *compressor.Compressor
	bus    *events.Bus
	log    zerolog.Logger

	mu     sync.Mutex
	queued map[string]compressionJob
	order  []string
	signal chan struct{}
	locks  map[string]*sync.Mutex
}

// queueCapacity bounds how many distinct conversations can be pending
// compression at once; beyond this, Enqueue drops the oldest pending
// job rather than growing unbounded, since a dropped job simply waits
// for the conversation's next turn to re-trigger ShouldCompress.
const queueCapacity = 256

func NewCompressionWorker(st store.Store, client apiclient.ApiClient, comp *compressor.Compressor, bus *events.Bus) *CompressionWorker {
	return &CompressionWorker{
		store:  st,
		client: client,
		comp:   comp,
		bus:    bus,
		log:    logging.Component("compressionworker"),
		queued: make(map[string]compressionJob),
		locks:  make(map[string]*sync.Mutex),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue schedules conversationID for a compression check. If the
// conversation is already queued this is a no-op — one pending job per
// conversation is always enough, since the job re-reads current state
// when it runs.
func (w *CompressionWorker) Enqueue(conversationID string, project store.Project) {
	w.mu.Lock()
	if _, exists := w.queued[conversationID]; !exists {
		if len(w.order) >= queueCapacity {
			oldest := w.order[0]
			w.order = w.order[1:]
			delete(w.queued, oldest)
			w.log.Warn().Str("dropped_conversation_id", oldest).Msg("compression queue full, dropped oldest pending job")
		}
		w.queued[conversationID] = compressionJob{conversationID: conversationID, project: project}
		w.order = append(w.order, conversationID)
	}
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *CompressionWorker) dequeue() (compressionJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return compressionJob{}, false
	}
	id := w.order[0]
	w.order = w.order[1:]
	job := w.queued[id]
	delete(w.queued, id)
	return job, true
}

// convLock returns a mutex scoped to one conversation so two compression
// passes for the same conversation (the Run loop and a RunOnce call)
// never overlap. The foreground turn does not take this lock; its
// message appends and the summary write are serialised by the Store,
// whose UpdateSummary also rejects a cutoff that does not advance.
func (w *CompressionWorker) convLock(conversationID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[conversationID] = l
	}
	return l
}

// Run drains the queue until ctx is cancelled. It never blocks the
// foreground: Enqueue is non-blocking and Run itself sleeps on an empty
// queue via the signal channel rather than polling.
func (w *CompressionWorker) Run(ctx context.Context) error {
	for {
		job, ok := w.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-w.signal:
				continue
			}
		}

		if err := w.process(ctx, job); err != nil {
			w.log.Warn().Err(err).Str("conversation_id", job.conversationID).Msg("compression pass failed")
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// RunOnce performs a single synchronous compression pass for one
// conversation, bypassing the queue entirely — used by the `compress`
// CLI subcommand to exercise the worker's logic in isolation without
// standing up the background loop.
func (w *CompressionWorker) RunOnce(ctx context.Context, conversationID string, project store.Project) error {
	return w.process(ctx, compressionJob{conversationID: conversationID, project: project})
}

func (w *CompressionWorker) process(ctx context.Context, job compressionJob) error {
	lock := w.convLock(job.conversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := w.store.GetConversation(ctx, job.conversationID)
	if err != nil {
		return err
	}
	msgs, err := w.store.GetMessages(ctx, job.conversationID)
	if err != nil {
		return err
	}
	uncompressed := afterCutoff(msgs, conv.LastCompressedMsgID)

	settings := job.project.Settings
	if !compressor.ShouldCompress(uncompressed, settings.CompressAfterTurns) {
		return nil
	}
	batch, cutoffMsgID, ok := compressor.SelectBatch(uncompressed, settings.CompressBatchSize)
	if !ok {
		return nil
	}

	summary, tokenCount, err := w.comp.Run(ctx, w.client, job.project.Name, conv.RollingSummary, batch)
	if err != nil {
		// Failure policy (§4.4): leave Store state untouched. The next
		// Enqueue (triggered by the conversation's next turn) will retry.
		return err
	}

	if err := w.store.UpdateSummary(ctx, job.conversationID, summary, cutoffMsgID, tokenCount); err != nil {
		return err
	}

	if w.bus != nil {
		_ = w.bus.PublishSummaryUpdated(events.SummaryUpdated{
			ConversationID:    job.conversationID,
			SummaryTokenCount: tokenCount,
		})
	}
	return nil
}

func afterCutoff(msgs []store.Message, cutoffID string) []store.Message {
	if cutoffID == "" {
		return msgs
	}
	for i, m := range msgs {
		if m.ID == cutoffID {
			return msgs[i+1:]
		}
	}
	return msgs
}
