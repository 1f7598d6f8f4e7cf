package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Hold represents inventory reserved outside the normal sale flow, e.g. comp
// tickets for artists or a discounted block for a sponsor. Units sold through
// a comp hold never contribute to paid-channel revenue.
type Hold struct {
	bun.BaseModel `bun:"table:holds"`

	ID              string    `bun:"id,pk" json:"id"`
	EventID         string    `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID    string    `bun:"ticket_type_id,nullzero" json:"ticket_type_id"`
	Name            string    `bun:"name,notnull" json:"name"`
	HoldType        HoldType  `bun:"hold_type,notnull" json:"hold_type"`
	DiscountInCents int64     `bun:"discount_in_cents" json:"discount_in_cents"`
	Quantity        int64     `bun:"quantity" json:"quantity"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Code is a redemption or promo code granting a price adjustment on the
// ticket types it is bound to. The usage ceiling is enforced when the code is
// redeemed; refunds do not return uses.
type Code struct {
	bun.BaseModel `bun:"table:codes"`

	ID              string    `bun:"id,pk" json:"id"`
	EventID         string    `bun:"event_id,notnull" json:"event_id"`
	Name            string    `bun:"name,notnull" json:"name"`
	Redemption      string    `bun:"redemption_code,unique,notnull" json:"redemption_code"`
	TicketTypeIDs   []string  `bun:"ticket_type_ids,array" json:"ticket_type_ids"`
	DiscountInCents int64     `bun:"discount_in_cents,notnull" json:"discount_in_cents"`
	MaxUses         int64     `bun:"max_uses" json:"max_uses"`
	Uses            int64     `bun:"uses" json:"uses"`
	StartDate       time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate         time.Time `bun:"end_date,notnull" json:"end_date"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// AppliesTo reports whether the code is bound to the given ticket type.
func (c *Code) AppliesTo(ticketTypeID string) bool {
	for _, id := range c.TicketTypeIDs {
		if id == ticketTypeID {
			return true
		}
	}
	return false
}
