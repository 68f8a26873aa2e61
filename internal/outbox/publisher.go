// Package outbox drains unpublished outbox rows to the broker. One Publisher
// runs per service for the process lifetime.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/bus"
	"github.com/zdemoox/BHW3/internal/event"
	"github.com/zdemoox/BHW3/internal/model"
)

const batchSize = 50

// Store is the slice of a service's store the publisher needs.
type Store interface {
	ListUnprocessedOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}

// Publisher polls the outbox on a fixed cadence and publishes pending rows.
// A row is marked processed only after the broker confirms the publish, so a
// crash between publish and mark leaves the row to be republished next cycle:
// delivery is at-least-once, never at-most-once.
type Publisher struct {
	store    Store
	bus      bus.Publisher
	interval time.Duration
	log      *zap.Logger
}

func NewPublisher(store Store, b bus.Publisher, interval time.Duration, log *zap.Logger) *Publisher {
	return &Publisher{
		store:    store,
		bus:      b,
		interval: interval,
		log:      log,
	}
}

// Start runs the poll loop until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *Publisher) processBatch(ctx context.Context) {
	msgs, err := p.store.ListUnprocessedOutbox(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to list unprocessed outbox rows", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		return
	}

	p.log.Debug("processing outbox batch", zap.Int("count", len(msgs)))

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		p.processMessage(ctx, msg)
	}
}

func (p *Publisher) processMessage(ctx context.Context, msg model.OutboxMessage) {
	topic, ok := event.Topic(msg.Type)
	if !ok {
		// Left unprocessed on purpose: an unknown tag is a deployment
		// mismatch, not something to swallow by marking it done.
		p.log.Warn("outbox row has unknown event type, skipping",
			zap.String("message_id", msg.ID.String()),
			zap.String("event_type", msg.Type))
		return
	}

	if err := p.bus.Publish(ctx, msg.ID.String(), topic, msg.Payload); err != nil {
		// Retried on the next tick; the local write already succeeded so
		// nothing is surfaced to any caller.
		p.log.Error("failed to publish outbox message",
			zap.String("message_id", msg.ID.String()),
			zap.String("topic", topic),
			zap.Error(err))
		return
	}

	if err := p.store.MarkOutboxProcessed(ctx, msg.ID); err != nil {
		// The message was published but the flag did not commit; the row
		// will be republished and the consumer's inbox absorbs the duplicate.
		p.log.Error("failed to mark outbox message processed",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err))
		return
	}

	p.log.Debug("published outbox message",
		zap.String("message_id", msg.ID.String()),
		zap.String("topic", topic))
}
