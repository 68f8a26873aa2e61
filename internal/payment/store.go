package payment

import (
	"context"
	"embed"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zdemoox/BHW3/internal/model"
)

var (
	// ErrAccountExists reports a second registration for a user who already
	// has an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound reports a lookup for a user with no account.
	ErrAccountNotFound = errors.New("account not found")
)

//go:embed migrations/*.sql
var Migrations embed.FS

// TaskDecision is the outcome of evaluating one payment task against an
// account. Debit is zero for failed outcomes.
type TaskDecision struct {
	Debit  decimal.Decimal
	Result model.OutboxMessage
}

// DecideFunc evaluates the business rules for a payment task. acct is nil
// when the user has no account. It runs inside the store's per-account
// critical section, so the balance it sees cannot change before the decision
// commits.
type DecideFunc func(acct *model.Account) (TaskDecision, error)

// Store is the payment service's durable state.
type Store interface {
	// CreateAccount registers an account; ErrAccountExists if the user
	// already has one, with the first account left untouched.
	CreateAccount(ctx context.Context, a model.Account) error

	GetAccount(ctx context.Context, userID uuid.UUID) (model.Account, error)

	// TopUp adds amount to the user's balance; ErrAccountNotFound for an
	// unknown user.
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error

	// AppendInbox records a received event. When a row with msg.DedupKey
	// already exists the call is a silent no-op; the identity check and the
	// append are one atomic operation.
	AppendInbox(ctx context.Context, msg model.InboxMessage) error

	ListUnprocessedInbox(ctx context.Context, eventType string, limit int) ([]model.InboxMessage, error)

	// ProcessInboxTask claims the inbox row (a no-op if already settled),
	// serializes on the account owned by userID, calls decide, then commits
	// the debit (if any), the result outbox row, and the processed mark as
	// a single atomic unit. Two concurrent evaluations of the same account
	// cannot both pass the balance check.
	ProcessInboxTask(ctx context.Context, inboxID uuid.UUID, userID uuid.UUID, decide DecideFunc) error

	ListUnprocessedOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}
