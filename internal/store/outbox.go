package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zdemoox/BHW3/internal/model"
)

// Querier is the subset of pgx both pools and transactions satisfy.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Both services carry an identical outbox_messages table; the row plumbing
// lives here so the per-service stores only own their business tables.

// ListUnprocessedOutbox returns up to limit rows with processed = false,
// oldest first. No cross-row ordering is promised to consumers.
func ListUnprocessedOutbox(ctx context.Context, q Querier, limit int) ([]model.OutboxMessage, error) {
	rows, err := q.Query(ctx, `
		SELECT id, occurred_on, event_type, payload
		FROM outbox_messages
		WHERE NOT processed
		ORDER BY occurred_on ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var msgs []model.OutboxMessage
	for rows.Next() {
		var m model.OutboxMessage
		if err := rows.Scan(&m.ID, &m.OccurredOn, &m.Type, &m.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkOutboxProcessed flips the processed flag. The flag is monotonic: the
// guard keeps a redundant update from looking like progress.
func MarkOutboxProcessed(ctx context.Context, q Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE outbox_messages SET processed = TRUE WHERE id = $1 AND NOT processed
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message processed: %w", err)
	}
	return nil
}
