// Package store is the bun-backed persistence layer for the commerce core.
// The cart builder and refund reconciler get all-or-nothing transactions;
// the reporter gets a read-consistent snapshot.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/models"
)

type Store struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Bun: db}
}

// ---------------- LOOKUPS ----------------

func (s *Store) TicketTypeByID(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (s *Store) OrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := s.Bun.NewSelect().
		Model(&org).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Store) FeeScheduleForOrganization(ctx context.Context, orgID string) (*models.FeeSchedule, error) {
	var schedule models.FeeSchedule
	err := s.Bun.NewSelect().
		Model(&schedule).
		Relation("Ranges").
		Where("fee_schedule.organization_id = ?", orgID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (s *Store) CodeByRedemption(ctx context.Context, redemptionCode string) (*models.Code, error) {
	var code models.Code
	err := s.Bun.NewSelect().
		Model(&code).
		Where("redemption_code = ?", redemptionCode).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *Store) HoldByID(ctx context.Context, id string) (*models.Hold, error) {
	var hold models.Hold
	err := s.Bun.NewSelect().
		Model(&hold).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order and its full item tree in one transaction
// and consumes redemption code uses. Either everything commits or nothing
// does; a crash mid-build never leaves a partially priced order.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, codeUses map[string]int64) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) > 0 {
			if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
				return err
			}
		}
		for codeID, uses := range codeUses {
			res, err := tx.NewUpdate().
				Model((*models.Code)(nil)).
				Set("uses = uses + ?", uses).
				Where("id = ?", codeID).
				Where("max_uses <= 0 OR uses + ? <= max_uses", uses).
				Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				// a concurrent redemption drained the code after validation
				return fmt.Errorf("%w: code %s", commerce.ErrCodeExhausted, codeID)
			}
		}
		return nil
	})
}

func (s *Store) OrderWithItems(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Where("\"order\".id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) SetOrderPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := s.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusPaid).
		Set("paid_at = ?", paidAt).
		Where("id = ?", id).
		Where("status = ?", models.OrderStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %s is not pending", commerce.ErrConflict, id)
	}
	return nil
}

// ---------------- REFUNDS ----------------

// RefundedQuantities sums previously refunded quantity per order item.
func (s *Store) RefundedQuantities(ctx context.Context, orderID string) (map[string]int64, error) {
	return s.refundedQuantities(ctx, s.Bun, orderID)
}

func (s *Store) refundedQuantities(ctx context.Context, db bun.IDB, orderID string) (map[string]int64, error) {
	var rows []struct {
		OrderItemID string `bun:"order_item_id"`
		Quantity    int64  `bun:"quantity"`
	}
	err := db.NewSelect().
		ColumnExpr("ri.order_item_id AS order_item_id").
		ColumnExpr("SUM(ri.quantity) AS quantity").
		TableExpr("refund_items AS ri").
		Join("JOIN refunds r ON r.id = ri.refund_id").
		Where("r.order_id = ?", orderID).
		GroupExpr("ri.order_item_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	refunded := make(map[string]int64, len(rows))
	for _, row := range rows {
		refunded[row.OrderItemID] = row.Quantity
	}
	return refunded, nil
}

func (s *Store) RefundByRequestKey(ctx context.Context, requestKey string) (*models.Refund, error) {
	var refund models.Refund
	err := s.Bun.NewSelect().
		Model(&refund).
		Relation("Items").
		Where("refund.request_key = ?", requestKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// CreateRefund persists the refund and its items atomically. Refunded
// quantities are re-checked inside the transaction; if a concurrent refund
// invalidated the request the transaction rolls back with
// commerce.ErrConflict. Historical order items are never touched.
func (s *Store) CreateRefund(ctx context.Context, refund *models.Refund, newStatus models.OrderStatus) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var items []*models.OrderItem
		err := tx.NewSelect().
			Model(&items).
			Where("order_id = ?", refund.OrderID).
			Scan(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]*models.OrderItem, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		refunded, err := s.refundedQuantities(ctx, tx, refund.OrderID)
		if err != nil {
			return err
		}
		for _, ri := range refund.Items {
			item, ok := byID[ri.OrderItemID]
			if !ok {
				return commerce.Validationf("item %s does not belong to order %s", ri.OrderItemID, refund.OrderID)
			}
			if ri.Quantity > item.Quantity-refunded[item.ID] {
				return fmt.Errorf("%w: item %s changed while refunding", commerce.ErrConflict, item.ID)
			}
		}

		if _, err := tx.NewInsert().Model(refund).Exec(ctx); err != nil {
			return err
		}
		if len(refund.Items) > 0 {
			if _, err := tx.NewInsert().Model(&refund.Items).Exec(ctx); err != nil {
				return err
			}
		}

		if newStatus != "" {
			_, err := tx.NewUpdate().
				Model((*models.Order)(nil)).
				Set("status = ?", newStatus).
				Where("id = ?", refund.OrderID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
