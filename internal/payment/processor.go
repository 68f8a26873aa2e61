package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/event"
	"github.com/zdemoox/BHW3/internal/model"
)

const (
	batchSize = 50

	reasonNoAccount         = "No account"
	reasonInsufficientFunds = "Insufficient funds"
)

// Processor settles unprocessed payment-task inbox rows on a fixed poll
// cadence and emits a result event for each through the outbox.
type Processor struct {
	store    Store
	interval time.Duration
	log      *zap.Logger
}

func NewProcessor(store Store, interval time.Duration, log *zap.Logger) *Processor {
	return &Processor{store: store, interval: interval, log: log}
}

// Start runs the poll loop until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("inbox processor stopped")
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) {
	msgs, err := p.store.ListUnprocessedInbox(ctx, event.TypePaymentTask, batchSize)
	if err != nil {
		p.log.Error("failed to list unprocessed inbox rows", zap.Error(err))
		return
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		if err := p.processTask(ctx, msg); err != nil {
			// The row stays unprocessed and is retried next cycle.
			p.log.Error("failed to process payment task",
				zap.String("inbox_id", msg.ID.String()),
				zap.Error(err))
		}
	}
}

func (p *Processor) processTask(ctx context.Context, msg model.InboxMessage) error {
	decoded, err := event.Decode(msg.Type, msg.Payload)
	if err != nil {
		return err
	}
	task := decoded.(event.PaymentTaskEvent)

	return p.store.ProcessInboxTask(ctx, msg.ID, task.UserID, func(acct *model.Account) (TaskDecision, error) {
		result := p.evaluate(task, acct)

		payload, err := event.Encode(result)
		if err != nil {
			return TaskDecision{}, err
		}

		decision := TaskDecision{
			Debit: decimal.Zero,
			Result: model.OutboxMessage{
				ID:         uuid.New(),
				OccurredOn: time.Now().UTC(),
				Type:       result.EventType(),
				Payload:    payload,
			},
		}
		if result.Success {
			decision.Debit = task.Amount
		}

		p.log.Info("payment task settled",
			zap.String("order_id", task.OrderID.String()),
			zap.Bool("success", result.Success),
			zap.String("reason", result.Reason))
		return decision, nil
	})
}

// evaluate applies the decision table in priority order: missing account,
// then insufficient funds, then debit.
func (p *Processor) evaluate(task event.PaymentTaskEvent, acct *model.Account) event.PaymentResultEvent {
	switch {
	case acct == nil:
		return event.PaymentResultEvent{OrderID: task.OrderID, Success: false, Reason: reasonNoAccount}
	case acct.Balance.LessThan(task.Amount):
		return event.PaymentResultEvent{OrderID: task.OrderID, Success: false, Reason: reasonInsufficientFunds}
	default:
		return event.PaymentResultEvent{OrderID: task.OrderID, Success: true}
	}
}
