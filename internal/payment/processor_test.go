package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zdemoox/BHW3/internal/event"
)

func newTestProcessor(t *testing.T) (*Processor, *Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	log := zaptest.NewLogger(t)
	return NewProcessor(store, time.Millisecond, log), NewService(store, log), store
}

func deliverTask(t *testing.T, svc *Service, task event.PaymentTaskEvent) {
	t.Helper()
	payload, err := event.Encode(task)
	require.NoError(t, err)
	require.NoError(t, svc.HandlePaymentTask(context.Background(), payload))
}

// settledResults decodes every result event currently sitting in the outbox.
func settledResults(t *testing.T, store *MemoryStore) []event.PaymentResultEvent {
	t.Helper()

	msgs, err := store.ListUnprocessedOutbox(context.Background(), 100)
	require.NoError(t, err)

	var results []event.PaymentResultEvent
	for _, m := range msgs {
		require.Equal(t, event.TypePaymentResult, m.Type)
		decoded, err := event.Decode(m.Type, m.Payload)
		require.NoError(t, err)
		results = append(results, decoded.(event.PaymentResultEvent))
	}
	return results
}

func TestProcessorDebitsOnSufficientBalance(t *testing.T) {
	t.Parallel()

	p, svc, store := newTestProcessor(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.Register(ctx, userID))
	require.NoError(t, svc.TopUp(ctx, userID, decimal.NewFromInt(1000)))

	task := event.PaymentTaskEvent{OrderID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(400)}
	deliverTask(t, svc, task)

	p.processBatch(ctx)

	a, err := svc.Account(ctx, userID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(600)), "balance should be 600, got %s", a.Balance)

	results := settledResults(t, store)
	require.Len(t, results, 1)
	assert.Equal(t, task.OrderID, results[0].OrderID)
	assert.True(t, results[0].Success)
}

func TestProcessorInsufficientFunds(t *testing.T) {
	t.Parallel()

	p, svc, store := newTestProcessor(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.Register(ctx, userID))
	require.NoError(t, svc.TopUp(ctx, userID, decimal.NewFromInt(1000)))

	task := event.PaymentTaskEvent{OrderID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(1500)}
	deliverTask(t, svc, task)

	p.processBatch(ctx)

	// Balance untouched, exactly one failure result.
	a, err := svc.Account(ctx, userID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(1000)))

	results := settledResults(t, store)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "Insufficient funds", results[0].Reason)
}

func TestProcessorNoAccount(t *testing.T) {
	t.Parallel()

	p, svc, store := newTestProcessor(t)
	ctx := context.Background()

	task := event.PaymentTaskEvent{OrderID: uuid.New(), UserID: uuid.New(), Amount: decimal.NewFromInt(50)}
	deliverTask(t, svc, task)

	p.processBatch(ctx)

	results := settledResults(t, store)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "No account", results[0].Reason)
}

func TestProcessorDuplicateTaskSingleDebit(t *testing.T) {
	t.Parallel()

	p, svc, store := newTestProcessor(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.Register(ctx, userID))
	require.NoError(t, svc.TopUp(ctx, userID, decimal.NewFromInt(1000)))

	task := event.PaymentTaskEvent{OrderID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(400)}
	deliverTask(t, svc, task)
	deliverTask(t, svc, task) // redelivery

	p.processBatch(ctx)
	p.processBatch(ctx) // extra cycles must not double-apply

	a, err := svc.Account(ctx, userID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(600)), "at most one debit per logical task")

	results := settledResults(t, store)
	assert.Len(t, results, 1, "at most one result event per order")
}

func TestProcessorSkipsAlreadySettledRows(t *testing.T) {
	t.Parallel()

	p, svc, store := newTestProcessor(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.Register(ctx, userID))
	require.NoError(t, svc.TopUp(ctx, userID, decimal.NewFromInt(100)))

	deliverTask(t, svc, event.PaymentTaskEvent{OrderID: uuid.New(), UserID: userID, Amount: decimal.NewFromInt(40)})
	p.processBatch(ctx)

	msgs, err := store.ListUnprocessedInbox(ctx, event.TypePaymentTask, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "settled rows leave the unprocessed set")
}

func TestProcessorStopsOnCancel(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestProcessor(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancellation")
	}
}
