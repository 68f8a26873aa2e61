// Package payment implements the payment service: account CRUD, the
// idempotent payment-task inbox, and the processor that settles tasks.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/event"
	"github.com/zdemoox/BHW3/internal/model"
)

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Register creates an account with zero balance. A second registration for
// the same user fails with ErrAccountExists and leaves the first untouched.
func (s *Service) Register(ctx context.Context, userID uuid.UUID) error {
	a := model.Account{UserID: userID, Balance: decimal.Zero}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return err
	}

	s.log.Info("account registered", zap.String("user_id", userID.String()))
	return nil
}

func (s *Service) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	if err := s.store.TopUp(ctx, userID, amount); err != nil {
		return err
	}

	s.log.Info("account topped up",
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()))
	return nil
}

func (s *Service) Account(ctx context.Context, userID uuid.UUID) (model.Account, error) {
	return s.store.GetAccount(ctx, userID)
}

// HandlePaymentTask is the broker-triggered consumer for payment-task
// deliveries. It only records the event; settlement happens in the inbox
// processor. The dedup key makes redelivered tasks a silent no-op.
func (s *Service) HandlePaymentTask(ctx context.Context, payload []byte) error {
	decoded, err := event.Decode(event.TypePaymentTask, payload)
	if err != nil {
		return err
	}
	task := decoded.(event.PaymentTaskEvent)

	msg := model.InboxMessage{
		ID:         uuid.New(),
		DedupKey:   task.DedupKey(),
		OccurredOn: time.Now().UTC(),
		Type:       task.EventType(),
		Payload:    payload,
	}

	if err := s.store.AppendInbox(ctx, msg); err != nil {
		return fmt.Errorf("append inbox: %w", err)
	}

	s.log.Info("payment task recorded",
		zap.String("order_id", task.OrderID.String()),
		zap.String("user_id", task.UserID.String()))
	return nil
}
