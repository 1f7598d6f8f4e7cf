package models

// OrderItemType is the closed set of line item kinds an order can contain.
// Fee, refund and reporting logic switch over these; a new kind means those
// switches must be revisited.
type OrderItemType string

const (
	ItemTypeTickets        OrderItemType = "Tickets"
	ItemTypeDiscount       OrderItemType = "Discount"
	ItemTypePerUnitFees    OrderItemType = "PerUnitFees"
	ItemTypeEventFees      OrderItemType = "EventFees"
	ItemTypeCreditCardFees OrderItemType = "CreditCardFees"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

type HoldType string

const (
	HoldTypeComp     HoldType = "comp"
	HoldTypeDiscount HoldType = "discount"
)

type TicketTypeStatus string

const (
	TicketTypeStatusPublished TicketTypeStatus = "published"
	TicketTypeStatusSoldOut   TicketTypeStatus = "sold_out"
	TicketTypeStatusCancelled TicketTypeStatus = "cancelled"
)
