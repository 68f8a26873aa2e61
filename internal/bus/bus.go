package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Publisher sends an event payload to the broker under a topic. It must not
// return nil unless the broker durably accepted the message.
type Publisher interface {
	Publish(ctx context.Context, id string, topic string, payload []byte) error
}

// Handler consumes one delivery of an event payload. A nil return acknowledges
// the delivery; an error causes redelivery, so handlers must be idempotent.
type Handler func(ctx context.Context, payload []byte) error

// InMemoryBus stands in for the broker by calling subscribed handlers
// directly. It is used by the single-process demo wiring and by tests.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

func NewInMemoryBus(log *zap.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a topic.
func (b *InMemoryBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish relays the payload to every handler subscribed to the topic.
func (b *InMemoryBus) Publish(ctx context.Context, id string, topic string, payload []byte) error {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %q", topic)
	}

	b.log.Debug("relaying message to subscribers",
		zap.String("message_id", id),
		zap.String("topic", topic))

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			return fmt.Errorf("handle message %s on %s: %w", id, topic, err)
		}
	}
	return nil
}
