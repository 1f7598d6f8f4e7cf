package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Refund is an immutable record of a correction event against a paid order.
// It is created once, atomically with its items, and never mutated. The
// request key makes replays of the same refund request detectable.
type Refund struct {
	bun.BaseModel `bun:"table:refunds"`

	ID           string    `bun:"id,pk" json:"id"`
	OrderID      string    `bun:"order_id,notnull" json:"order_id"`
	RequestKey   string    `bun:"request_key,unique,notnull" json:"request_key"`
	TotalInCents int64     `bun:"total_in_cents,notnull" json:"total_in_cents"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Items []*RefundItem `bun:"rel:has-many,join:id=refund_id" json:"items"`
}

// RefundItem records quantity and amount returned against one order item.
// Amount is signed the same way as the order item's unit price, so refunding
// a Discount child yields a negative amount that nets against its parent.
type RefundItem struct {
	bun.BaseModel `bun:"table:refund_items"`

	ID            string    `bun:"id,pk" json:"id"`
	RefundID      string    `bun:"refund_id,notnull" json:"refund_id"`
	OrderItemID   string    `bun:"order_item_id,notnull" json:"order_item_id"`
	Quantity      int64     `bun:"quantity,notnull" json:"quantity"`
	AmountInCents int64     `bun:"amount_in_cents,notnull" json:"amount_in_cents"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
