package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderRecord is the canonical reconciliation row kept per (provider, order id).
// Amounts are stored as two-decimal strings in major currency units.
type OrderRecord struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64     `bun:",pk,autoincrement" json:"id"`
	OrderID       string    `bun:"order_id" json:"order_id"`
	Provider      string    `bun:"provider" json:"provider"`
	Status        string    `bun:"status" json:"status"`
	Amount        string    `bun:"amount" json:"amount"`
	Currency      string    `bun:"currency" json:"currency"`
	CustomerEmail string    `bun:"customer_email" json:"customer_email,omitempty"`
	Metadata      string    `bun:"metadata" json:"metadata,omitempty"`
	LastEventType string    `bun:"last_event_type" json:"last_event_type"`
	LastEventAt   time.Time `bun:"last_event_at,nullzero" json:"last_event_at"`
	RawEventID    string    `bun:"raw_event_id" json:"raw_event_id"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// LedgerColumns is the column set the ledger requires on its table. Older
// deployments may lack trailing columns; the repository adds them additively
// and never drops or reorders existing ones.
var LedgerColumns = []string{
	"order_id",
	"provider",
	"status",
	"amount",
	"currency",
	"customer_email",
	"metadata",
	"last_event_type",
	"last_event_at",
	"raw_event_id",
	"updated_at",
}
