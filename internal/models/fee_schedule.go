package models

import (
	"time"

	"github.com/uptrace/bun"
)

type FeeSchedule struct {
	bun.BaseModel `bun:"table:fee_schedules"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull" json:"organization_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Ranges []*FeeScheduleRange `bun:"rel:has-many,join:id=fee_schedule_id" json:"ranges"`
}

// FeeScheduleRange maps a price threshold to the per-unit fee charged for
// tickets at or above that price. Ranges within a schedule are disjoint by
// construction; overlap is rejected when the schedule is authored, not here.
type FeeScheduleRange struct {
	bun.BaseModel `bun:"table:fee_schedule_ranges"`

	ID               string `bun:"id,pk" json:"id"`
	FeeScheduleID    string `bun:"fee_schedule_id,notnull" json:"fee_schedule_id"`
	MinPriceInCents  int64  `bun:"min_price_in_cents,notnull" json:"min_price_in_cents"`
	FeeInCents       int64  `bun:"fee_in_cents,notnull" json:"fee_in_cents"`
	ClientFeeInCents int64  `bun:"client_fee_in_cents,notnull" json:"client_fee_in_cents"`
}
