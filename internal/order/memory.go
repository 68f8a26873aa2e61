package order

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zdemoox/BHW3/internal/model"
)

// MemoryStore implements Store on process-local maps. One mutex guards the
// whole store, which makes every Store method its own atomic unit.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]model.Order
	outbox []model.OutboxMessage
	inbox  map[string]model.InboxMessage // keyed by dedup key
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[uuid.UUID]model.Order),
		inbox:  make(map[string]model.InboxMessage),
	}
}

func (s *MemoryStore) CreateOrder(_ context.Context, o model.Order, msg model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	s.outbox = append(s.outbox, msg)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) ApplyPaymentResult(_ context.Context, msg model.InboxMessage, orderID uuid.UUID, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.inbox[msg.DedupKey]; seen {
		return nil
	}
	msg.Processed = true
	s.inbox[msg.DedupKey] = msg

	if o, ok := s.orders[orderID]; ok && !o.Status.Terminal() {
		o.Status = status
		s.orders[orderID] = o
	}
	return nil
}

func (s *MemoryStore) ListUnprocessedOutbox(_ context.Context, limit int) ([]model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []model.OutboxMessage
	for _, m := range s.outbox {
		if m.Processed {
			continue
		}
		msgs = append(msgs, m)
		if len(msgs) == limit {
			break
		}
	}
	return msgs, nil
}

func (s *MemoryStore) MarkOutboxProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Processed = true
			return nil
		}
	}
	return nil
}
