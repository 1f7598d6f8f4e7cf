package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Organization struct {
	bun.BaseModel `bun:"table:organizations"`

	ID                    string    `bun:"id,pk" json:"id"`
	Name                  string    `bun:"name,notnull" json:"name"`
	EventFeeInCents       int64     `bun:"event_fee_in_cents" json:"event_fee_in_cents"`
	ClientEventFeeInCents int64     `bun:"client_event_fee_in_cents" json:"client_event_fee_in_cents"`
	CreatedAt             time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull" json:"organization_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	StartDate      time.Time `bun:"start_date,notnull" json:"start_date"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Organization *Organization `bun:"rel:belongs-to,join:organization_id=id" json:"-"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID             string           `bun:"id,pk" json:"id"`
	EventID        string           `bun:"event_id,notnull" json:"event_id"`
	Name           string           `bun:"name,notnull" json:"name"`
	Status         TicketTypeStatus `bun:"status,notnull" json:"status"`
	PriceInCents   int64            `bun:"price_in_cents,notnull" json:"price_in_cents"`
	StartDate      time.Time        `bun:"start_date,notnull" json:"start_date"`
	EndDate        time.Time        `bun:"end_date,notnull" json:"end_date"`
	LimitPerPerson int64            `bun:"limit_per_person" json:"limit_per_person"`
	Rank           int64            `bun:"rank" json:"rank"`
	CreatedAt      time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"-"`
}

// OnSale reports whether the ticket type can be purchased at the given
// instant: not cancelled, and start_date <= now < end_date.
func (tt *TicketType) OnSale(now time.Time) bool {
	if tt.Status == TicketTypeStatusCancelled {
		return false
	}
	return !now.Before(tt.StartDate) && now.Before(tt.EndDate)
}
