package order

import (
	"context"
	"embed"
	"errors"

	"github.com/google/uuid"

	"github.com/zdemoox/BHW3/internal/model"
)

// ErrOrderNotFound reports a lookup for an order that does not exist.
var ErrOrderNotFound = errors.New("order not found")

//go:embed migrations/*.sql
var Migrations embed.FS

// Store is the order service's durable state. Implementations must provide
// read-committed isolation; every method that couples a business mutation
// with an outbox/inbox row commits them as one atomic unit.
type Store interface {
	// CreateOrder inserts the order and its outbox row together or not at all.
	CreateOrder(ctx context.Context, o model.Order, msg model.OutboxMessage) error

	GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)

	// ApplyPaymentResult records the inbox row and moves the order to status
	// in one atomic unit. When a row with msg.DedupKey already exists the
	// whole call is a silent no-op: this is where duplicate delivery is
	// absorbed. An order already in a terminal status is left untouched.
	ApplyPaymentResult(ctx context.Context, msg model.InboxMessage, orderID uuid.UUID, status model.OrderStatus) error

	ListUnprocessedOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}
