// Package events wires the in-process publish/subscribe bus that
// decouples the Orchestrator and its background CompressionWorker from
// the UI facade (spec §4.6): a ResponseComplete event after each
// foreground turn, and a SummaryUpdated event after each background
// compression commits. Modelled on the teacher's events.EventRouter
// (pkg/redisstream/router.go, cmd/web-chat) which wraps a watermill
// Publisher/Subscriber pair behind named handlers; ClaudeStation is a
// single desktop process so the gochannel in-memory pub/sub backend
// replaces the teacher's Redis Streams transport.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"claudestation/internal/logging"
)

// Topics carried on the bus.
const (
	TopicResponseComplete = "response_complete"
	TopicSummaryUpdated   = "summary_updated"
	TopicCacheInvalidated = "cache_invalidated"
)

// ResponseComplete is published once a foreground chat turn finishes
// streaming and its usage/cost has been recorded.
type ResponseComplete struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	ModelUsed      string  `json:"model_used"`
	CostUSD        float64 `json:"cost_usd"`
}

// SummaryUpdated is published once a background compression cycle has
// committed a new rolling summary via Store.UpdateSummary.
type SummaryUpdated struct {
	ConversationID    string `json:"conversation_id"`
	SummaryTokenCount int    `json:"summary_token_count"`
}

// CacheInvalidated is published when an operation outside the normal
// turn flow invalidates a conversation's cached prefix — e.g. deleting a
// project document (§ SUPPLEMENTED FEATURES) or resetting a summary.
type CacheInvalidated struct {
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
}

// Bus is the thin façade over watermill's gochannel pub/sub used across
// the process. It exists so callers depend on ClaudeStation's own event
// vocabulary rather than watermill's message.Message directly.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

func NewBus() *Bus {
	logger := logging.Component("events")
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, newWatermillLogger(logger)),
		log:    logger,
	}
}

func (b *Bus) publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal event for topic %s", topic)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return errors.Wrapf(err, "publish to topic %s", topic)
	}
	return nil
}

func (b *Bus) PublishResponseComplete(ev ResponseComplete) error {
	return b.publish(TopicResponseComplete, ev)
}

func (b *Bus) PublishSummaryUpdated(ev SummaryUpdated) error {
	return b.publish(TopicSummaryUpdated, ev)
}

func (b *Bus) PublishCacheInvalidated(ev CacheInvalidated) error {
	return b.publish(TopicCacheInvalidated, ev)
}

// SubscribeResponseComplete returns a channel that receives every
// ResponseComplete event published after the call. The channel is
// closed when ctx is cancelled or the bus is closed.
func (b *Bus) SubscribeResponseComplete(ctx context.Context) (<-chan ResponseComplete, error) {
	raw, err := b.pubsub.Subscribe(ctx, TopicResponseComplete)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe response_complete")
	}
	out := make(chan ResponseComplete)
	go pump(ctx, b.log, raw, out, func(data []byte) (ResponseComplete, error) {
		var ev ResponseComplete
		return ev, json.Unmarshal(data, &ev)
	})
	return out, nil
}

// SubscribeSummaryUpdated mirrors SubscribeResponseComplete for the
// summary_updated topic.
func (b *Bus) SubscribeSummaryUpdated(ctx context.Context) (<-chan SummaryUpdated, error) {
	raw, err := b.pubsub.Subscribe(ctx, TopicSummaryUpdated)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe summary_updated")
	}
	out := make(chan SummaryUpdated)
	go pump(ctx, b.log, raw, out, func(data []byte) (SummaryUpdated, error) {
		var ev SummaryUpdated
		return ev, json.Unmarshal(data, &ev)
	})
	return out, nil
}

// SubscribeCacheInvalidated mirrors SubscribeResponseComplete for the
// cache_invalidated topic.
func (b *Bus) SubscribeCacheInvalidated(ctx context.Context) (<-chan CacheInvalidated, error) {
	raw, err := b.pubsub.Subscribe(ctx, TopicCacheInvalidated)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe cache_invalidated")
	}
	out := make(chan CacheInvalidated)
	go pump(ctx, b.log, raw, out, func(data []byte) (CacheInvalidated, error) {
		var ev CacheInvalidated
		return ev, json.Unmarshal(data, &ev)
	})
	return out, nil
}

func pump[T any](ctx context.Context, log zerolog.Logger, raw <-chan *message.Message, out chan T, decode func([]byte) (T, error)) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}
			ev, err := decode(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("dropping malformed event payload")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close releases the underlying pub/sub resources.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
