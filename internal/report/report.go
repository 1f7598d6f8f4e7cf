// Package report computes refund-net, channel-aware sales aggregates. The
// aggregation is an explicit in-memory computation over a two-pass snapshot
// read: candidate sales in the transaction window, plus items refunded in
// the window even when the original sale falls outside it.
package report

import (
	"time"

	"github.com/baajur/bn-api/internal/models"
)

const (
	DefaultPage  = 0
	DefaultLimit = 100
)

// Filters narrows the sales summary by transaction and event windows. Nil
// bounds leave a side open.
type Filters struct {
	OrganizationID   string
	TransactionStart *time.Time
	TransactionEnd   *time.Time
	EventStart       *time.Time
	EventEnd         *time.Time
}

// Row is one line of the sales summary: a ticket type (or the per-order fee
// pseudo-row) for one event, with counts split by sales channel and netted
// against in-window refunds.
type Row struct {
	Total                        int64     `json:"total"`
	EventName                    string    `json:"event_name"`
	EventDate                    time.Time `json:"event_date"`
	TicketName                   string    `json:"ticket_name"`
	FaceValueInCents             int64     `json:"face_value_in_cents"`
	OnlineSaleCount              int64     `json:"online_sale_count"`
	BoxOfficeSaleCount           int64     `json:"box_office_sale_count"`
	CompSaleCount                int64     `json:"comp_sale_count"`
	TotalOnlineClientFeesInCents int64     `json:"total_online_client_fees_in_cents"`
}

// Snapshot is the point-in-time read the aggregator computes over. Both item
// selections must come from one read-consistent transaction so a refund
// processed between the two reads cannot be double counted.
type Snapshot struct {
	// SaleItems are order items of orders paid inside the transaction
	// window, CreditCardFees excluded.
	SaleItems []*models.OrderItem
	// RefundOnlyItems are items with positive-amount in-window refunds whose
	// sale falls outside the window; the refund is its own reportable
	// transaction.
	RefundOnlyItems []*models.OrderItem

	// RefundedQty holds per order item the quantity refunded inside the
	// transaction window.
	RefundedQty map[string]int64

	Orders      map[string]*models.Order
	Events      map[string]*models.Event
	TicketTypes map[string]*models.TicketType
	Holds       map[string]*models.Hold
	Codes       map[string]*models.Code
}
