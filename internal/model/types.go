package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFinished  OrderStatus = "FINISHED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFinished || s == OrderStatusCancelled
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Account struct {
	UserID  uuid.UUID       `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

// OutboxMessage is an append-only record of an event awaiting publication.
// Processed transitions false->true exactly once; rows are never deleted.
type OutboxMessage struct {
	ID         uuid.UUID
	OccurredOn time.Time
	Type       string
	Payload    []byte
	Processed  bool
}

// InboxMessage is an append-only record of a received event. DedupKey is the
// logical identity derived from the payload's domain fields; it carries a
// unique index so two deliveries of the same event collapse into one row.
type InboxMessage struct {
	ID         uuid.UUID
	DedupKey   string
	OccurredOn time.Time
	Type       string
	Payload    []byte
	Processed  bool
}
