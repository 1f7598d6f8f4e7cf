package store

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"github.com/baajur/bn-api/internal/models"
	"github.com/baajur/bn-api/internal/report"
)

// SalesSnapshot reads everything the sales aggregator needs inside one
// read-consistent transaction: sales paid in the transaction window plus
// items refunded in the window, with the event/ticket-type/hold/code rows
// they reference. Issuing both selections in one transaction prevents a
// refund committed between the two reads from being double counted.
func (s *Store) SalesSnapshot(ctx context.Context, f report.Filters) (*report.Snapshot, error) {
	snap := &report.Snapshot{
		RefundedQty: make(map[string]int64),
		Orders:      make(map[string]*models.Order),
		Events:      make(map[string]*models.Event),
		TicketTypes: make(map[string]*models.TicketType),
		Holds:       make(map[string]*models.Hold),
		Codes:       make(map[string]*models.Code),
	}

	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Pass 1: orders settled (paid or since fully refunded) for the
		// organization whose payment landed inside the transaction window.
		var orders []*models.Order
		q := tx.NewSelect().
			Model(&orders).
			Where("organization_id = ?", f.OrganizationID).
			Where("status IN (?)", bun.In([]models.OrderStatus{models.OrderStatusPaid, models.OrderStatusRefunded}))
		if err := q.Scan(ctx); err != nil {
			return err
		}

		saleOrders := make(map[string]bool)
		orderIDs := make([]string, 0, len(orders))
		for _, order := range orders {
			snap.Orders[order.ID] = order
			orderIDs = append(orderIDs, order.ID)
			inWindow := true
			if f.TransactionStart != nil && order.PaidAt.Before(*f.TransactionStart) {
				inWindow = false
			}
			if f.TransactionEnd != nil && order.PaidAt.After(*f.TransactionEnd) {
				inWindow = false
			}
			saleOrders[order.ID] = inWindow
		}
		if len(orderIDs) == 0 {
			return nil
		}

		var items []*models.OrderItem
		err := tx.NewSelect().
			Model(&items).
			Where("order_id IN (?)", bun.In(orderIDs)).
			Where("item_type != ?", models.ItemTypeCreditCardFees).
			Scan(ctx)
		if err != nil {
			return err
		}

		// Pass 2: refunds created inside the transaction window, regardless
		// of when the original sale happened.
		refundQ := tx.NewSelect().
			ColumnExpr("ri.order_item_id AS order_item_id").
			ColumnExpr("SUM(ri.quantity) AS quantity").
			TableExpr("refund_items AS ri").
			Join("JOIN refunds r ON r.id = ri.refund_id").
			Where("r.order_id IN (?)", bun.In(orderIDs)).
			Where("ri.amount_in_cents > 0").
			GroupExpr("ri.order_item_id")
		if f.TransactionStart != nil {
			refundQ = refundQ.Where("r.created_at >= ?", *f.TransactionStart)
		}
		if f.TransactionEnd != nil {
			refundQ = refundQ.Where("r.created_at <= ?", *f.TransactionEnd)
		}
		var refundRows []struct {
			OrderItemID string `bun:"order_item_id"`
			Quantity    int64  `bun:"quantity"`
		}
		if err := refundQ.Scan(ctx, &refundRows); err != nil {
			return err
		}
		for _, row := range refundRows {
			snap.RefundedQty[row.OrderItemID] = row.Quantity
		}

		eventIDs := make(map[string]bool)
		ttIDs := make(map[string]bool)
		holdIDs := make(map[string]bool)
		codeIDs := make(map[string]bool)
		for _, item := range items {
			saleInWindow := saleOrders[item.OrderID]
			refundedInWindow := snap.RefundedQty[item.ID] > 0
			if !saleInWindow && !refundedInWindow {
				continue
			}
			eventIDs[item.EventID] = true
			if item.TicketTypeID != "" {
				ttIDs[item.TicketTypeID] = true
			}
			if item.HoldID != "" {
				holdIDs[item.HoldID] = true
			}
			if item.CodeID != "" {
				codeIDs[item.CodeID] = true
			}
			if saleInWindow {
				snap.SaleItems = append(snap.SaleItems, item)
			} else {
				snap.RefundOnlyItems = append(snap.RefundOnlyItems, item)
			}
		}

		if len(eventIDs) > 0 {
			var events []*models.Event
			eq := tx.NewSelect().Model(&events).Where("id IN (?)", bun.In(keys(eventIDs)))
			if f.EventStart != nil {
				eq = eq.Where("start_date >= ?", *f.EventStart)
			}
			if f.EventEnd != nil {
				eq = eq.Where("start_date <= ?", *f.EventEnd)
			}
			if err := eq.Scan(ctx); err != nil {
				return err
			}
			for _, event := range events {
				snap.Events[event.ID] = event
			}
		}

		// The event window is applied by dropping items whose event fell
		// outside the fetched set.
		snap.SaleItems = filterByEvent(snap.SaleItems, snap.Events)
		snap.RefundOnlyItems = filterByEvent(snap.RefundOnlyItems, snap.Events)

		if len(ttIDs) > 0 {
			var tts []*models.TicketType
			if err := tx.NewSelect().Model(&tts).Where("id IN (?)", bun.In(keys(ttIDs))).Scan(ctx); err != nil {
				return err
			}
			for _, tt := range tts {
				snap.TicketTypes[tt.ID] = tt
			}
		}
		if len(holdIDs) > 0 {
			var holds []*models.Hold
			if err := tx.NewSelect().Model(&holds).Where("id IN (?)", bun.In(keys(holdIDs))).Scan(ctx); err != nil {
				return err
			}
			for _, hold := range holds {
				snap.Holds[hold.ID] = hold
			}
		}
		if len(codeIDs) > 0 {
			var codes []*models.Code
			if err := tx.NewSelect().Model(&codes).Where("id IN (?)", bun.In(keys(codeIDs))).Scan(ctx); err != nil {
				return err
			}
			for _, code := range codes {
				snap.Codes[code.ID] = code
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func filterByEvent(items []*models.OrderItem, events map[string]*models.Event) []*models.OrderItem {
	filtered := items[:0]
	for _, item := range items {
		if _, ok := events[item.EventID]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
