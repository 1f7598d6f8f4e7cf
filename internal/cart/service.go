// Package cart expands requested ticket selections into a priced order item
// tree: a Tickets item per selection, a Discount child when a code or hold
// reduces the price, a PerUnitFees child from the organization's fee
// schedule, and one EventFees item per order.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baajur/bn-api/internal/cart/fees"
	"github.com/baajur/bn-api/internal/cart/redemption"
	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/logger"
	"github.com/baajur/bn-api/internal/models"
)

type Store interface {
	TicketTypeByID(ctx context.Context, id string) (*models.TicketType, error)
	OrganizationByID(ctx context.Context, id string) (*models.Organization, error)
	FeeScheduleForOrganization(ctx context.Context, orgID string) (*models.FeeSchedule, error)
	CodeByRedemption(ctx context.Context, redemptionCode string) (*models.Code, error)
	HoldByID(ctx context.Context, id string) (*models.Hold, error)
	CreateOrder(ctx context.Context, order *models.Order, codeUses map[string]int64) error
	OrderWithItems(ctx context.Context, id string) (*models.Order, error)
	SetOrderPaid(ctx context.Context, id string, paidAt time.Time) error
}

type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
}

// Selection is one requested line of a cart: a ticket type, a quantity, and
// optionally a redemption code or a hold the units are sold through.
type Selection struct {
	TicketTypeID   string `json:"ticket_type_id"`
	Quantity       int64  `json:"quantity"`
	RedemptionCode string `json:"redemption_code,omitempty"`
	HoldID         string `json:"hold_id,omitempty"`
}

// BuildRequest carries the selections plus the order's channel context.
type BuildRequest struct {
	OrganizationID   string      `json:"organization_id"`
	UserID           string      `json:"user_id,omitempty"`
	BoxOfficePricing bool        `json:"box_office_pricing"`
	Selections       []Selection `json:"selections"`
}

type Service struct {
	Store      Store
	Fees       fees.Resolver
	Redemption redemption.Resolver
	Publisher  EventPublisher
	Logger     *logger.Logger
	now        func() time.Time
}

func NewService(store Store, publisher EventPublisher, log *logger.Logger) *Service {
	return &Service{
		Store:     store,
		Publisher: publisher,
		Logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// BuildOrder prices the requested selections into a pending order and
// persists the full item tree in one transaction. No inventory is reserved
// here; the order only affects reporting once it transitions to paid.
func (s *Service) BuildOrder(ctx context.Context, req BuildRequest) (*models.Order, error) {
	if len(req.Selections) == 0 {
		return nil, commerce.Validationf("order requires at least one selection")
	}
	if req.OrganizationID == "" {
		return nil, commerce.Validationf("organization_id is required")
	}

	org, err := s.Store.OrganizationByID(ctx, req.OrganizationID)
	if err != nil {
		return nil, commerce.Validationf("organization %s not found", req.OrganizationID)
	}

	// A missing schedule is legitimate until the fee resolver is consulted;
	// comp-only orders never consult it. Anything else is a store failure.
	schedule, err := s.Store.FeeScheduleForOrganization(ctx, org.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load fee schedule for %s: %w", org.ID, err)
		}
		schedule = nil
	}

	now := s.now()
	order := &models.Order{
		ID:               uuid.NewString(),
		OrganizationID:   org.ID,
		UserID:           req.UserID,
		Status:           models.OrderStatusPending,
		BoxOfficePricing: req.BoxOfficePricing,
		CreatedAt:        now,
	}

	codeUses := make(map[string]int64)
	var expectedSubtotal int64

	for _, sel := range req.Selections {
		if sel.Quantity <= 0 {
			return nil, fmt.Errorf("%w: ticket type %s", commerce.ErrInvalidQuantity, sel.TicketTypeID)
		}

		tt, err := s.Store.TicketTypeByID(ctx, sel.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", commerce.ErrInvalidTicketType, sel.TicketTypeID)
		}
		if !tt.OnSale(now) {
			return nil, fmt.Errorf("%w: %s is not on sale", commerce.ErrInvalidTicketType, tt.ID)
		}
		if tt.LimitPerPerson > 0 && sel.Quantity > tt.LimitPerPerson {
			return nil, commerce.Validationf("quantity %d exceeds limit of %d per person for %s",
				sel.Quantity, tt.LimitPerPerson, tt.Name)
		}

		if order.EventID == "" {
			order.EventID = tt.EventID
		} else if order.EventID != tt.EventID {
			return nil, commerce.Validationf("all selections must belong to one event")
		}

		var hold *models.Hold
		if sel.HoldID != "" {
			hold, err = s.Store.HoldByID(ctx, sel.HoldID)
			if err != nil {
				return nil, commerce.Validationf("hold %s not found", sel.HoldID)
			}
			if hold.TicketTypeID != "" && hold.TicketTypeID != tt.ID {
				return nil, commerce.Validationf("hold %s is not for ticket type %s", hold.ID, tt.ID)
			}
		}

		basePrice := tt.PriceInCents
		unitPrice := basePrice

		var code *models.Code
		if sel.RedemptionCode != "" {
			code, err = s.Store.CodeByRedemption(ctx, sel.RedemptionCode)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", commerce.ErrCodeNotApplicable, sel.RedemptionCode)
			}
			unitPrice, err = s.Redemption.Redeem(code, tt, sel.Quantity, now)
			if err != nil {
				return nil, err
			}
			codeUses[code.ID] += sel.Quantity
		}

		comp := hold != nil && hold.HoldType == models.HoldTypeComp
		if comp {
			// Comp units carry no revenue and no fees.
			unitPrice = 0
		} else if hold != nil && hold.HoldType == models.HoldTypeDiscount && hold.DiscountInCents > 0 {
			discount := hold.DiscountInCents
			if discount > unitPrice {
				discount = unitPrice
			}
			unitPrice -= discount
		}

		ticketsItem := &models.OrderItem{
			ID:               uuid.NewString(),
			OrderID:          order.ID,
			ItemType:         models.ItemTypeTickets,
			EventID:          tt.EventID,
			TicketTypeID:     tt.ID,
			Quantity:         sel.Quantity,
			UnitPriceInCents: basePrice,
			CreatedAt:        now,
		}
		if hold != nil {
			ticketsItem.HoldID = hold.ID
		}
		if code != nil {
			ticketsItem.CodeID = code.ID
		}
		order.Items = append(order.Items, ticketsItem)

		if unitPrice < basePrice {
			order.Items = append(order.Items, &models.OrderItem{
				ID:               uuid.NewString(),
				OrderID:          order.ID,
				ParentID:         ticketsItem.ID,
				ItemType:         models.ItemTypeDiscount,
				EventID:          tt.EventID,
				TicketTypeID:     tt.ID,
				HoldID:           ticketsItem.HoldID,
				CodeID:           ticketsItem.CodeID,
				Quantity:         sel.Quantity,
				UnitPriceInCents: -(basePrice - unitPrice),
				CreatedAt:        now,
			})
		}

		if !comp {
			rng, err := s.Fees.PerUnitFee(schedule, basePrice)
			if err != nil {
				return nil, err
			}
			if rng.FeeInCents > 0 || rng.ClientFeeInCents > 0 {
				order.Items = append(order.Items, &models.OrderItem{
					ID:               uuid.NewString(),
					OrderID:          order.ID,
					ParentID:         ticketsItem.ID,
					ItemType:         models.ItemTypePerUnitFees,
					EventID:          tt.EventID,
					TicketTypeID:     tt.ID,
					HoldID:           ticketsItem.HoldID,
					CodeID:           ticketsItem.CodeID,
					Quantity:         sel.Quantity,
					UnitPriceInCents: rng.FeeInCents,
					ClientFeeInCents: rng.ClientFeeInCents,
					CreatedAt:        now,
				})
			}
		}

		expectedSubtotal += sel.Quantity * unitPrice
	}

	// Always present, even at zero; the aggregator skips zero-fee rows.
	eventFee, clientEventFee := s.Fees.EventFee(org)
	order.Items = append(order.Items, &models.OrderItem{
		ID:               uuid.NewString(),
		OrderID:          order.ID,
		ItemType:         models.ItemTypeEventFees,
		EventID:          order.EventID,
		Quantity:         1,
		UnitPriceInCents: eventFee,
		ClientFeeInCents: clientEventFee,
		CreatedAt:        now,
	})

	if err := reconcile(order, expectedSubtotal); err != nil {
		return nil, err
	}

	if err := s.Store.CreateOrder(ctx, order, codeUses); err != nil {
		return nil, fmt.Errorf("failed to persist order %s: %w", order.ID, err)
	}

	if s.Logger != nil {
		s.Logger.LogOrder("BUILD", order.ID, fmt.Sprintf("%d items, total %d cents", len(order.Items), order.TotalInCents()))
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishOrderCreated(*order); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("order-created publish failed for %s: %v", order.ID, err))
		}
	}

	return order, nil
}

// ConfirmPayment records the payment collaborator's confirmed-paid signal and
// transitions the order to paid. The confirmed amount must match the derived
// total exactly.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, amountInCents int64) error {
	order, err := s.Store.OrderWithItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order %s not found: %w", orderID, err)
	}
	if order.Status != models.OrderStatusPending {
		return commerce.Validationf("order %s is not pending", orderID)
	}
	if total := order.TotalInCents(); total != amountInCents {
		return fmt.Errorf("%w: confirmed amount %d does not match order total %d",
			commerce.ErrReconciliation, amountInCents, total)
	}

	if err := s.Store.SetOrderPaid(ctx, orderID, s.now()); err != nil {
		return fmt.Errorf("failed to mark order %s paid: %w", orderID, err)
	}
	if s.Logger != nil {
		s.Logger.LogOrder("PAID", orderID, fmt.Sprintf("confirmed amount %d cents", amountInCents))
	}
	return nil
}

// reconcile cross-checks the built tree against the customer-facing subtotal
// computed independently per selection. Tickets and Discount items must sum
// to the subtotal; any mismatch is a fatal internal error.
func reconcile(order *models.Order, expectedSubtotal int64) error {
	var subtotal int64
	for _, item := range order.Items {
		switch item.ItemType {
		case models.ItemTypeTickets:
			subtotal += item.Quantity * item.UnitPriceInCents
		case models.ItemTypeDiscount:
			subtotal += item.Quantity * item.UnitPriceInCents
			if item.UnitPriceInCents > 0 {
				return fmt.Errorf("%w: discount item %s has positive unit price", commerce.ErrReconciliation, item.ID)
			}
			parent := order.Item(item.ParentID)
			if parent == nil || -item.UnitPriceInCents > parent.UnitPriceInCents {
				return fmt.Errorf("%w: discount item %s exceeds its parent price", commerce.ErrReconciliation, item.ID)
			}
		case models.ItemTypePerUnitFees, models.ItemTypeEventFees, models.ItemTypeCreditCardFees:
			// fee items contribute to the order total but not the subtotal
		}
	}
	if subtotal != expectedSubtotal {
		return fmt.Errorf("%w: subtotal %d, expected %d", commerce.ErrReconciliation, subtotal, expectedSubtotal)
	}
	return nil
}
