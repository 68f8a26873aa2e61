package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zdemoox/BHW3/internal/model"
)

// MemoryStore implements Store on process-local maps. The single mutex gives
// every method — including the check-then-debit in ProcessInboxTask — its own
// serialized atomic unit.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
	inbox    []model.InboxMessage
	inboxKey map[string]struct{}
	outbox   []model.OutboxMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]model.Account),
		inboxKey: make(map[string]struct{}),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.UserID]; ok {
		return ErrAccountExists
	}
	s.accounts[a.UserID] = a
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID uuid.UUID) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *MemoryStore) TopUp(_ context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	s.accounts[userID] = a
	return nil
}

func (s *MemoryStore) AppendInbox(_ context.Context, msg model.InboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.inboxKey[msg.DedupKey]; seen {
		return nil
	}
	s.inboxKey[msg.DedupKey] = struct{}{}
	s.inbox = append(s.inbox, msg)
	return nil
}

func (s *MemoryStore) ListUnprocessedInbox(_ context.Context, eventType string, limit int) ([]model.InboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []model.InboxMessage
	for _, m := range s.inbox {
		if m.Processed || m.Type != eventType {
			continue
		}
		msgs = append(msgs, m)
		if len(msgs) == limit {
			break
		}
	}
	return msgs, nil
}

func (s *MemoryStore) ProcessInboxTask(_ context.Context, inboxID uuid.UUID, userID uuid.UUID, decide DecideFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Claim the inbox row first so a task settles at most once even when
	// two cycles picked it up concurrently.
	claimed := false
	for i := range s.inbox {
		if s.inbox[i].ID == inboxID && !s.inbox[i].Processed {
			s.inbox[i].Processed = true
			claimed = true
			break
		}
	}
	if !claimed {
		return nil
	}

	var acct *model.Account
	if a, ok := s.accounts[userID]; ok {
		copied := a
		acct = &copied
	}

	decision, err := decide(acct)
	if err != nil {
		// Undo the claim so the row is retried, mirroring a rollback.
		for i := range s.inbox {
			if s.inbox[i].ID == inboxID {
				s.inbox[i].Processed = false
				break
			}
		}
		return err
	}

	if !decision.Debit.IsZero() {
		a := s.accounts[userID]
		a.Balance = a.Balance.Sub(decision.Debit)
		s.accounts[userID] = a
	}

	s.outbox = append(s.outbox, decision.Result)
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
