// Package refund reconciles refund requests against paid orders. Refunds are
// recorded as immutable Refund/RefundItem rows; the original order items are
// never edited, which lets reporting reconstruct history at any point.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/logger"
	"github.com/baajur/bn-api/internal/models"
)

// ChildRefundPolicy controls what happens to Discount and PerUnitFees
// children when a Tickets parent is partially refunded. A full-quantity
// parent refund always cascades fully to children regardless of policy.
type ChildRefundPolicy string

const (
	// ChildRefundProportional refunds each per-unit child the same quantity
	// as its parent, capped at the child's unrefunded remainder.
	ChildRefundProportional ChildRefundPolicy = "proportional"
	// ChildRefundExplicit refunds only the children the caller listed.
	ChildRefundExplicit ChildRefundPolicy = "explicit"
)

type Store interface {
	OrderWithItems(ctx context.Context, id string) (*models.Order, error)
	RefundedQuantities(ctx context.Context, orderID string) (map[string]int64, error)
	RefundByRequestKey(ctx context.Context, requestKey string) (*models.Refund, error)
	// CreateRefund persists the refund and its items atomically, re-checking
	// refunded quantities inside the transaction and returning
	// commerce.ErrConflict if a concurrent refund invalidated the request.
	// newStatus, when non-empty, is applied to the order in the same
	// transaction.
	CreateRefund(ctx context.Context, refund *models.Refund, newStatus models.OrderStatus) error
}

type Locker interface {
	LockOrder(orderID, token string) (bool, error)
	UnlockOrder(orderID, token string) error
	RegisterRequestKey(requestKey string) (bool, error)
	UnregisterRequestKey(requestKey string) error
}

type EventPublisher interface {
	PublishRefundCreated(refund models.Refund) error
}

// ItemRequest asks for quantity units of one order item to be refunded.
type ItemRequest struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int64  `json:"quantity"`
}

type Service struct {
	Store     Store
	Locker    Locker
	Publisher EventPublisher
	Logger    *logger.Logger
	Policy    ChildRefundPolicy
	now       func() time.Time
}

func NewService(store Store, locker Locker, publisher EventPublisher, log *logger.Logger) *Service {
	return &Service{
		Store:     store,
		Locker:    locker,
		Publisher: publisher,
		Logger:    log,
		Policy:    ChildRefundProportional,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RefundOrder applies the requested refunds against a paid order. The
// operation is idempotent per requestKey: replaying a request whose refund
// already exists returns the stored refund unchanged. A concurrency conflict
// is retried once before surfacing.
func (s *Service) RefundOrder(ctx context.Context, orderID, requestKey string, requests []ItemRequest) (refund *models.Refund, err error) {
	if requestKey == "" {
		return nil, commerce.Validationf("refund request key is required")
	}
	if len(requests) == 0 {
		return nil, commerce.Validationf("refund requires at least one item")
	}

	if existing, lookupErr := s.Store.RefundByRequestKey(ctx, requestKey); lookupErr == nil && existing != nil {
		if s.Logger != nil {
			s.Logger.LogRefund("REPLAY", orderID, fmt.Sprintf("request %s already processed", requestKey))
		}
		return existing, nil
	}

	if s.Locker != nil {
		fresh, regErr := s.Locker.RegisterRequestKey(requestKey)
		if regErr != nil {
			return nil, fmt.Errorf("refund request registry error: %w", regErr)
		}
		if !fresh {
			// The key was registered moments ago; its refund may have been
			// committed after the lookup above.
			if existing, lookupErr := s.Store.RefundByRequestKey(ctx, requestKey); lookupErr == nil && existing != nil {
				if s.Logger != nil {
					s.Logger.LogRefund("REPLAY", orderID, fmt.Sprintf("request %s already processed", requestKey))
				}
				return existing, nil
			}
			return nil, fmt.Errorf("%w: refund request %s is already in progress", commerce.ErrConflict, requestKey)
		}
		// A failed attempt must not leave the key registered, or a later
		// retry with the same key would be rejected as a replay.
		defer func() {
			if err != nil {
				_ = s.Locker.UnregisterRequestKey(requestKey)
			}
		}()
	}

	token := uuid.NewString()
	if s.Locker != nil {
		ok, lockErr := s.Locker.LockOrder(orderID, token)
		if lockErr != nil {
			return nil, fmt.Errorf("refund lock error: %w", lockErr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: another refund is in progress for order %s", commerce.ErrConflict, orderID)
		}
		defer func() { _ = s.Locker.UnlockOrder(orderID, token) }()
	}

	refund, err = s.attempt(ctx, orderID, requestKey, requests)
	if errors.Is(err, commerce.ErrConflict) {
		// A concurrent refund moved the available quantities between
		// validation and commit; re-validate once against fresh state.
		if s.Logger != nil {
			s.Logger.LogRefund("RETRY", orderID, "conflict during commit, revalidating")
		}
		refund, err = s.attempt(ctx, orderID, requestKey, requests)
	}
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.LogRefund("CREATE", orderID, fmt.Sprintf("refund %s, %d items, %d cents", refund.ID, len(refund.Items), refund.TotalInCents))
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishRefundCreated(*refund); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("refund-created publish failed for %s: %v", refund.ID, err))
		}
	}
	return refund, nil
}

func (s *Service) attempt(ctx context.Context, orderID, requestKey string, requests []ItemRequest) (*models.Refund, error) {
	order, err := s.Store.OrderWithItems(ctx, orderID)
	if err != nil {
		return nil, commerce.Validationf("order %s not found", orderID)
	}
	if order.Status != models.OrderStatusPaid {
		return nil, commerce.Validationf("only paid orders can be refunded, order %s is %s", orderID, order.Status)
	}

	refunded, err := s.Store.RefundedQuantities(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunded quantities for %s: %w", orderID, err)
	}

	// quantities to refund per item id, explicit requests first
	quantities := make(map[string]int64)
	for _, req := range requests {
		item := order.Item(req.OrderItemID)
		if item == nil {
			return nil, commerce.Validationf("item %s does not belong to order %s", req.OrderItemID, orderID)
		}
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s", commerce.ErrInvalidQuantity, req.OrderItemID)
		}
		remaining := item.Quantity - refunded[item.ID]
		if req.Quantity > remaining {
			return nil, fmt.Errorf("%w: item %s has %d unrefunded, %d requested",
				commerce.ErrOverRefund, item.ID, remaining, req.Quantity)
		}
		quantities[item.ID] += req.Quantity
		if quantities[item.ID] > remaining {
			return nil, fmt.Errorf("%w: item %s requested more than once beyond its remainder",
				commerce.ErrOverRefund, item.ID)
		}
	}

	// Cascade parent refunds onto per-unit children. A full refund of the
	// parent's remainder implies a full refund of each child's remainder;
	// partial refunds follow the configured policy.
	for _, req := range requests {
		parent := order.Item(req.OrderItemID)
		if parent.ItemType != models.ItemTypeTickets {
			continue
		}
		parentRemaining := parent.Quantity - refunded[parent.ID]
		full := quantities[parent.ID] == parentRemaining

		for _, child := range order.Children(parent.ID) {
			if _, explicit := quantities[child.ID]; explicit {
				continue
			}
			childRemaining := child.Quantity - refunded[child.ID]
			if childRemaining <= 0 {
				continue
			}
			switch {
			case full:
				quantities[child.ID] = childRemaining
			case s.Policy == ChildRefundProportional:
				q := quantities[parent.ID]
				if q > childRemaining {
					q = childRemaining
				}
				quantities[child.ID] = q
			}
		}
	}

	// A refund that clears every remaining unit also takes the per-order
	// EventFees item with it and settles the order as refunded.
	if s.fullyRefunds(order, refunded, quantities) {
		for _, item := range order.Items {
			if item.ItemType != models.ItemTypeEventFees {
				continue
			}
			if remaining := item.Quantity - refunded[item.ID]; remaining > 0 {
				if _, explicit := quantities[item.ID]; !explicit {
					quantities[item.ID] = remaining
				}
			}
		}
	}

	now := s.now()
	refund := &models.Refund{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		RequestKey: requestKey,
		CreatedAt:  now,
	}
	for _, item := range order.Items {
		qty, ok := quantities[item.ID]
		if !ok {
			continue
		}
		amount := qty * item.UnitPriceInCents
		refund.Items = append(refund.Items, &models.RefundItem{
			ID:            uuid.NewString(),
			RefundID:      refund.ID,
			OrderItemID:   item.ID,
			Quantity:      qty,
			AmountInCents: amount,
			CreatedAt:     now,
		})
		refund.TotalInCents += amount
	}

	newStatus := models.OrderStatus("")
	if s.settled(order, refunded, quantities) {
		newStatus = models.OrderStatusRefunded
	}

	if err := s.Store.CreateRefund(ctx, refund, newStatus); err != nil {
		return nil, err
	}
	return refund, nil
}

// fullyRefunds reports whether, after applying quantities, every Tickets
// item of the order is fully refunded.
func (s *Service) fullyRefunds(order *models.Order, refunded, quantities map[string]int64) bool {
	for _, item := range order.Items {
		if item.ItemType != models.ItemTypeTickets {
			continue
		}
		if item.Quantity-refunded[item.ID]-quantities[item.ID] > 0 {
			return false
		}
	}
	return true
}

// settled reports whether every item of the order is fully refunded after
// applying quantities.
func (s *Service) settled(order *models.Order, refunded, quantities map[string]int64) bool {
	for _, item := range order.Items {
		if item.Quantity-refunded[item.ID]-quantities[item.ID] > 0 {
			return false
		}
	}
	return true
}
