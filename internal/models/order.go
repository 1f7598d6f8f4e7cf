package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string      `bun:"id,pk" json:"id"`
	OrganizationID   string      `bun:"organization_id,notnull" json:"organization_id"`
	EventID          string      `bun:"event_id,notnull" json:"event_id"`
	UserID           string      `bun:"user_id,nullzero" json:"user_id"`
	Status           OrderStatus `bun:"status,notnull" json:"status"`
	BoxOfficePricing bool        `bun:"box_office_pricing" json:"box_office_pricing"`
	PaidAt           time.Time   `bun:"paid_at,nullzero" json:"paid_at"`
	CreatedAt        time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items"`
}

// TotalInCents is the signed sum of quantity x unit price over every item.
// The total is always derived from the items, never stored, so it cannot
// drift from the line items that justify it.
func (o *Order) TotalInCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity * item.UnitPriceInCents
	}
	return total
}

// Item returns the order item with the given id, or nil.
func (o *Order) Item(id string) *OrderItem {
	for _, item := range o.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Children returns the items whose parent is the given item id.
func (o *Order) Children(parentID string) []*OrderItem {
	var children []*OrderItem
	for _, item := range o.Items {
		if item.ParentID == parentID {
			children = append(children, item)
		}
	}
	return children
}

// OrderItem is one priced line within an order. Items form a strict tree:
// Discount, PerUnitFees and CreditCardFees items point at the Tickets item
// they modify through ParentID; Tickets and EventFees items are roots.
// Items are created once at cart-build time and never edited afterwards;
// refunds are recorded as separate RefundItem rows.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID               string        `bun:"id,pk" json:"id"`
	OrderID          string        `bun:"order_id,notnull" json:"order_id"`
	ParentID         string        `bun:"parent_id,nullzero" json:"parent_id,omitempty"`
	ItemType         OrderItemType `bun:"item_type,notnull" json:"item_type"`
	EventID          string        `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID     string        `bun:"ticket_type_id,nullzero" json:"ticket_type_id,omitempty"`
	HoldID           string        `bun:"hold_id,nullzero" json:"hold_id,omitempty"`
	CodeID           string        `bun:"code_id,nullzero" json:"code_id,omitempty"`
	Quantity         int64         `bun:"quantity,notnull" json:"quantity"`
	UnitPriceInCents int64         `bun:"unit_price_in_cents,notnull" json:"unit_price_in_cents"`
	ClientFeeInCents int64         `bun:"client_fee_in_cents,notnull,default:0" json:"client_fee_in_cents"`
	CreatedAt        time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
