package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zdemoox/BHW3/internal/model"
	"github.com/zdemoox/BHW3/internal/store"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o model.Order, msg model.OutboxMessage) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed.
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, amount, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.UserID, o.Amount.String(), o.Description, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_messages (id, occurred_on, event_type, payload, processed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, msg.ID, msg.OccurredOn, msg.Type, msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, amount::text, description, status, created_at
		FROM orders WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to query order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount::text, description, status, created_at
		FROM orders ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) ApplyPaymentResult(ctx context.Context, msg model.InboxMessage, orderID uuid.UUID, status model.OrderStatus) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The dedup-key conflict makes the identity check and the append one
	// atomic operation: of two concurrent deliveries only one inserts.
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_messages (id, dedup_key, occurred_on, event_type, payload, processed)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (dedup_key) DO NOTHING
	`, msg.ID, msg.DedupKey, msg.OccurredOn, msg.Type, msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert inbox message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Duplicate delivery: discard silently.
		return nil
	}

	// Terminal statuses stay put; the first result wins.
	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1 AND status = $3
	`, orderID, status, model.OrderStatusNew)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnprocessedOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	return store.ListUnprocessedOutbox(ctx, s.db, limit)
}

func (s *PostgresStore) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	return store.MarkOutboxProcessed(ctx, s.db, id)
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var amount string
	if err := row.Scan(&o.ID, &o.UserID, &amount, &o.Description, &o.Status, &o.CreatedAt); err != nil {
		return model.Order{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Order{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	o.Amount = parsed
	return o, nil
}
