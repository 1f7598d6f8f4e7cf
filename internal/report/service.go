package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/logger"
	"github.com/baajur/bn-api/internal/models"
)

type Store interface {
	SalesSnapshot(ctx context.Context, f Filters) (*Snapshot, error)
}

type Service struct {
	Store  Store
	Logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

type groupKey struct {
	eventID      string
	ticketTypeID string
	holdID       string
	codeID       string
	perOrderFee  bool
}

type group struct {
	key       groupKey
	online    int64
	boxOffice int64
	comp      int64
	fees      int64
	faceValue int64
}

// SalesSummary produces one row per (event, ticket type or per-order fee,
// hold/code) group, net of in-window refunds, paginated. A nonexistent
// organization yields an empty result, not an error.
func (s *Service) SalesSummary(ctx context.Context, f Filters, page, limit int) ([]Row, int64, error) {
	if f.TransactionStart != nil && f.TransactionEnd != nil && f.TransactionEnd.Before(*f.TransactionStart) {
		return nil, 0, fmt.Errorf("%w: transaction window", commerce.ErrInvalidRange)
	}
	if f.EventStart != nil && f.EventEnd != nil && f.EventEnd.Before(*f.EventStart) {
		return nil, 0, fmt.Errorf("%w: event window", commerce.ErrInvalidRange)
	}
	if page < 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	snap, err := s.Store.SalesSnapshot(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read sales snapshot: %w", err)
	}

	groups := make(map[groupKey]*group)
	for _, item := range snap.SaleItems {
		s.accumulate(snap, groups, item, item.Quantity-snap.RefundedQty[item.ID])
	}
	for _, item := range snap.RefundOnlyItems {
		s.accumulate(snap, groups, item, -snap.RefundedQty[item.ID])
	}

	rows := s.assemble(snap, groups)
	total := int64(len(rows))
	for i := range rows {
		rows[i].Total = total
	}

	start := page * limit
	if start >= len(rows) {
		if s.Logger != nil {
			s.Logger.LogReport("sales_summary", fmt.Sprintf("%d groups, empty page %d", total, page))
		}
		return []Row{}, total, nil
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}

// accumulate folds one item's net quantity effect into its group. Channel
// selection: a comp hold wins over everything, box-office pricing beats
// online, online otherwise.
func (s *Service) accumulate(snap *Snapshot, groups map[groupKey]*group, item *models.OrderItem, effect int64) {
	if effect == 0 {
		return
	}

	order := snap.Orders[item.OrderID]
	if order == nil {
		return
	}

	comp := false
	if item.HoldID != "" {
		if hold := snap.Holds[item.HoldID]; hold != nil && hold.HoldType == models.HoldTypeComp {
			comp = true
		}
	}
	online := !comp && !order.BoxOfficePricing

	key := groupKey{
		eventID:      item.EventID,
		ticketTypeID: item.TicketTypeID,
		holdID:       item.HoldID,
		codeID:       item.CodeID,
	}

	switch item.ItemType {
	case models.ItemTypeTickets:
		g := ensure(groups, key)
		g.faceValue = item.UnitPriceInCents
		switch {
		case comp:
			g.comp += effect
		case order.BoxOfficePricing:
			g.boxOffice += effect
		default:
			g.online += effect
		}
	case models.ItemTypePerUnitFees:
		if online {
			ensure(groups, key).fees += effect * item.ClientFeeInCents
		}
	case models.ItemTypeEventFees:
		if item.UnitPriceInCents == 0 && item.ClientFeeInCents == 0 {
			return
		}
		key.ticketTypeID = ""
		key.perOrderFee = true
		g := ensure(groups, key)
		if online {
			g.fees += effect * item.ClientFeeInCents
		}
	case models.ItemTypeDiscount, models.ItemTypeCreditCardFees:
		// discounts carry no reportable outputs; card fees are excluded
	}
}

func ensure(groups map[groupKey]*group, key groupKey) *group {
	g, ok := groups[key]
	if !ok {
		g = &group{key: key}
		groups[key] = g
	}
	return g
}

func (s *Service) assemble(snap *Snapshot, groups map[groupKey]*group) []Row {
	type sortable struct {
		row       Row
		eventDate int64
		rank      int64
		perOrder  bool
		typeName  string
		sourceKey string
	}

	var out []sortable
	for _, g := range groups {
		if g.online == 0 && g.boxOffice == 0 && g.comp == 0 && g.fees == 0 {
			// a fully refunded-and-rebought group nets to nothing
			continue
		}

		row := Row{
			OnlineSaleCount:              g.online,
			BoxOfficeSaleCount:           g.boxOffice,
			CompSaleCount:                g.comp,
			TotalOnlineClientFeesInCents: g.fees,
			FaceValueInCents:             g.faceValue,
		}
		item := sortable{perOrder: g.key.perOrderFee}

		if event := snap.Events[g.key.eventID]; event != nil {
			row.EventName = event.Name
			row.EventDate = event.StartDate
			item.eventDate = event.StartDate.UnixNano()
		}

		if g.key.perOrderFee {
			row.TicketName = "Per Order Fee"
			row.FaceValueInCents = 0
		} else if tt := snap.TicketTypes[g.key.ticketTypeID]; tt != nil {
			name := tt.Name
			if tt.Status == models.TicketTypeStatusCancelled {
				name += " (Cancelled)"
			}
			if g.key.holdID != "" {
				if hold := snap.Holds[g.key.holdID]; hold != nil {
					name += " - Hold - " + hold.Name
					item.sourceKey = hold.Name
				}
			}
			if g.key.codeID != "" {
				if code := snap.Codes[g.key.codeID]; code != nil {
					name += " - Promo - " + code.Name
					item.sourceKey = code.Name
				}
			}
			row.TicketName = name
			item.rank = tt.Rank
			item.typeName = tt.Name
		}

		item.row = row
		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.eventDate != b.eventDate {
			return a.eventDate < b.eventDate
		}
		// per-order fee rows sort after the event's ticket rows
		if a.perOrder != b.perOrder {
			return !a.perOrder
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.typeName != b.typeName {
			return a.typeName < b.typeName
		}
		return a.sourceKey < b.sourceKey
	})

	rows := make([]Row, len(out))
	for i, item := range out {
		rows[i] = item.row
	}
	return rows
}
