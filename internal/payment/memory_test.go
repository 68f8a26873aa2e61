package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zdemoox/BHW3/internal/event"
)

// Concurrent settlements against one account must not overdraw it: the
// check-then-debit runs inside the store's critical section.
func TestConcurrentSettlementsNeverOverdraw(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	log := zaptest.NewLogger(t)
	svc := NewService(store, log)
	p := NewProcessor(store, time.Millisecond, log)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, svc.Register(ctx, userID))
	require.NoError(t, svc.TopUp(ctx, userID, decimal.NewFromInt(300)))

	// Ten tasks of 100 against a balance of 300: at most three may succeed.
	for i := 0; i < 10; i++ {
		payload, err := event.Encode(event.PaymentTaskEvent{
			OrderID: uuid.New(),
			UserID:  userID,
			Amount:  decimal.NewFromInt(100),
		})
		require.NoError(t, err)
		require.NoError(t, svc.HandlePaymentTask(ctx, payload))
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.processBatch(ctx)
		}()
	}
	wg.Wait()

	acct, err := svc.Account(ctx, userID)
	require.NoError(t, err)
	assert.False(t, acct.Balance.IsNegative(), "account overdrawn to %s", acct.Balance)

	succeeded := 0
	for _, r := range settledResults(t, store) {
		if r.Success {
			succeeded++
		}
	}
	assert.LessOrEqual(t, succeeded, 3)
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(300).Sub(decimal.NewFromInt(int64(succeeded*100)))))
}
