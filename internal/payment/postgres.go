package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zdemoox/BHW3/internal/model"
	"github.com/zdemoox/BHW3/internal/store"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on a pgx pool. Per-account serialization in
// ProcessInboxTask relies on SELECT ... FOR UPDATE of the account row.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
	`, a.UserID, a.Balance.String())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID uuid.UUID) (model.Account, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, balance::text FROM accounts WHERE user_id = $1
	`, userID)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2 WHERE user_id = $1
	`, userID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to top up account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) AppendInbox(ctx context.Context, msg model.InboxMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO inbox_messages (id, dedup_key, occurred_on, event_type, payload, processed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (dedup_key) DO NOTHING
	`, msg.ID, msg.DedupKey, msg.OccurredOn, msg.Type, msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to append inbox message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnprocessedInbox(ctx context.Context, eventType string, limit int) ([]model.InboxMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dedup_key, occurred_on, event_type, payload
		FROM inbox_messages
		WHERE NOT processed AND event_type = $1
		ORDER BY occurred_on ASC
		LIMIT $2
	`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inbox: %w", err)
	}
	defer rows.Close()

	var msgs []model.InboxMessage
	for rows.Next() {
		var m model.InboxMessage
		if err := rows.Scan(&m.ID, &m.DedupKey, &m.OccurredOn, &m.Type, &m.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan inbox row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *PostgresStore) ProcessInboxTask(ctx context.Context, inboxID uuid.UUID, userID uuid.UUID, decide DecideFunc) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Claim the inbox row first: a concurrent settle of the same row blocks
	// here and then sees zero rows, so a task settles at most once.
	claim, err := tx.Exec(ctx, `
		UPDATE inbox_messages SET processed = TRUE WHERE id = $1 AND NOT processed
	`, inboxID)
	if err != nil {
		return fmt.Errorf("failed to claim inbox message: %w", err)
	}
	if claim.RowsAffected() == 0 {
		return nil
	}

	// Row lock serializes concurrent evaluations of the same account so the
	// balance check and the debit commit as one unit.
	var acct *model.Account
	row := tx.QueryRow(ctx, `
		SELECT user_id, balance::text FROM accounts WHERE user_id = $1 FOR UPDATE
	`, userID)

	found, err := scanAccount(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		acct = nil
	case err != nil:
		return fmt.Errorf("failed to lock account: %w", err)
	default:
		acct = &found
	}

	decision, err := decide(acct)
	if err != nil {
		return err
	}

	if !decision.Debit.IsZero() {
		_, err = tx.Exec(ctx, `
			UPDATE accounts SET balance = balance - $2 WHERE user_id = $1
		`, userID, decision.Debit.String())
		if err != nil {
			return fmt.Errorf("failed to debit account: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_messages (id, occurred_on, event_type, payload, processed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, decision.Result.ID, decision.Result.OccurredOn, decision.Result.Type, decision.Result.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert result outbox message: %w", err)
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

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var balance string
	if err := row.Scan(&a.UserID, &balance); err != nil {
		return model.Account{}, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	a.Balance = parsed
	return a, nil
}
