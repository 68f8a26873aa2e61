// Package order implements the order service: CRUD over orders, the outbox
// write coupled to order creation, and the inbound payment-result consumer.
package order

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

// Create persists a new order together with the payment-task outbox row in a
// single atomic unit, so the state change and the event announcing it are
// never split.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (model.Order, error) {
	o := model.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      model.OrderStatusNew,
		CreatedAt:   time.Now().UTC(),
	}

	task := event.PaymentTaskEvent{
		OrderID: o.ID,
		UserID:  o.UserID,
		Amount:  o.Amount,
	}
	payload, err := event.Encode(task)
	if err != nil {
		return model.Order{}, err
	}

	msg := model.OutboxMessage{
		ID:         uuid.New(),
		OccurredOn: o.CreatedAt,
		Type:       task.EventType(),
		Payload:    payload,
	}

	if err := s.store.CreateOrder(ctx, o, msg); err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("user_id", o.UserID.String()))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Order, error) {
	return s.store.ListOrders(ctx)
}

// HandlePaymentResult is the broker-triggered consumer for payment-result
// deliveries. Redeliveries collapse on the dedup key inside the store, so a
// second delivery of the same result never re-applies the status change.
func (s *Service) HandlePaymentResult(ctx context.Context, payload []byte) error {
	decoded, err := event.Decode(event.TypePaymentResult, payload)
	if err != nil {
		return err
	}
	result := decoded.(event.PaymentResultEvent)

	status := model.OrderStatusFinished
	if !result.Success {
		status = model.OrderStatusCancelled
	}

	msg := model.InboxMessage{
		ID:         uuid.New(),
		DedupKey:   result.DedupKey(),
		OccurredOn: time.Now().UTC(),
		Type:       result.EventType(),
		Payload:    payload,
	}

	if err := s.store.ApplyPaymentResult(ctx, msg, result.OrderID, status); err != nil {
		return fmt.Errorf("apply payment result: %w", err)
	}

	s.log.Info("payment result applied",
		zap.String("order_id", result.OrderID.String()),
		zap.Bool("success", result.Success),
		zap.String("reason", result.Reason))
	return nil
}
