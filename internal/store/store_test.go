package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/models"
	"github.com/baajur/bn-api/internal/report"
	"github.com/baajur/bn-api/internal/store"
)

func setupTestDB(t *testing.T) (*store.Store, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	// Create required tables
	for _, model := range []interface{}{
		(*models.Organization)(nil),
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.FeeSchedule)(nil),
		(*models.FeeScheduleRange)(nil),
		(*models.Hold)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Refund)(nil),
		(*models.RefundItem)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}
	// created without the model so the array column stays plain text
	_, err = bunDB.ExecContext(context.Background(), `CREATE TABLE codes (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL,
		redemption_code TEXT NOT NULL UNIQUE,
		ticket_type_ids TEXT,
		discount_in_cents INTEGER NOT NULL DEFAULT 0,
		max_uses INTEGER NOT NULL DEFAULT 0,
		uses INTEGER NOT NULL DEFAULT 0,
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		created_at TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("Failed to create codes table: %v", err)
	}

	return store.New(bunDB), bunDB
}

func insertCode(t *testing.T, bunDB *bun.DB, id string, maxUses, uses int64) {
	_, err := bunDB.ExecContext(context.Background(),
		`INSERT INTO codes (id, event_id, name, redemption_code, discount_in_cents, max_uses, uses)
		 VALUES (?, 'event1', 'Promo', ?, 100, ?, ?)`,
		id, "CODE-"+id, maxUses, uses)
	assert.NoError(t, err)
}

func testOrder(status models.OrderStatus) *models.Order {
	orderID := uuid.New().String()
	order := &models.Order{
		ID:             orderID,
		OrganizationID: "org1",
		EventID:        "event1",
		UserID:         "user1",
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
	ticketsID := uuid.New().String()
	order.Items = []*models.OrderItem{
		{
			ID:               ticketsID,
			OrderID:          orderID,
			ItemType:         models.ItemTypeTickets,
			EventID:          "event1",
			TicketTypeID:     "tt1",
			Quantity:         2,
			UnitPriceInCents: 1000,
			CreatedAt:        time.Now().UTC(),
		},
		{
			ID:               uuid.New().String(),
			OrderID:          orderID,
			ParentID:         ticketsID,
			ItemType:         models.ItemTypePerUnitFees,
			EventID:          "event1",
			TicketTypeID:     "tt1",
			Quantity:         2,
			UnitPriceInCents: 150,
			ClientFeeInCents: 100,
			CreatedAt:        time.Now().UTC(),
		},
	}
	return order
}

func TestCreateOrderAndReadBack(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := testOrder(models.OrderStatusPending)
	err := s.CreateOrder(context.Background(), order, nil)
	assert.NoError(t, err)

	got, err := s.OrderWithItems(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, int64(2300), got.TotalInCents())

	// Test case: unknown order
	got, err = s.OrderWithItems(context.Background(), "non-existent")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestCreateOrderConsumesCodeUses(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	insertCode(t, bunDB, "code1", 3, 2)

	order := testOrder(models.OrderStatusPending)
	err := s.CreateOrder(context.Background(), order, map[string]int64{"code1": 1})
	assert.NoError(t, err)

	var uses int64
	err = bunDB.QueryRowContext(context.Background(), "SELECT uses FROM codes WHERE id = ?", "code1").Scan(&uses)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), uses)
}

func TestCreateOrderRollsBackWhenCodeDrained(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	insertCode(t, bunDB, "code1", 3, 3)

	order := testOrder(models.OrderStatusPending)
	err := s.CreateOrder(context.Background(), order, map[string]int64{"code1": 1})
	assert.ErrorIs(t, err, commerce.ErrCodeExhausted)

	// the order insert must have rolled back with the code update
	got, err := s.OrderWithItems(context.Background(), order.ID)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestCreateOrderUnlimitedCode(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	insertCode(t, bunDB, "code1", 0, 500)

	order := testOrder(models.OrderStatusPending)
	err := s.CreateOrder(context.Background(), order, map[string]int64{"code1": 100})
	assert.NoError(t, err)
}

func TestSetOrderPaidGuard(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := testOrder(models.OrderStatusPending)
	assert.NoError(t, s.CreateOrder(context.Background(), order, nil))

	paidAt := time.Now().UTC()
	assert.NoError(t, s.SetOrderPaid(context.Background(), order.ID, paidAt))

	got, err := s.OrderWithItems(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)

	// Test case: marking a paid order paid again conflicts
	err = s.SetOrderPaid(context.Background(), order.ID, paidAt)
	assert.ErrorIs(t, err, commerce.ErrConflict)
}

func TestRefundedQuantities(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), order, nil))

	refund := &models.Refund{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		RequestKey: uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
	}
	refund.Items = []*models.RefundItem{
		{ID: uuid.New().String(), RefundID: refund.ID, OrderItemID: order.Items[0].ID, Quantity: 1, AmountInCents: 1000, CreatedAt: time.Now().UTC()},
		{ID: uuid.New().String(), RefundID: refund.ID, OrderItemID: order.Items[1].ID, Quantity: 1, AmountInCents: 150, CreatedAt: time.Now().UTC()},
	}
	refund.TotalInCents = 1150
	assert.NoError(t, s.CreateRefund(context.Background(), refund, ""))

	second := &models.Refund{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		RequestKey: uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
	}
	second.Items = []*models.RefundItem{
		{ID: uuid.New().String(), RefundID: second.ID, OrderItemID: order.Items[0].ID, Quantity: 1, AmountInCents: 1000, CreatedAt: time.Now().UTC()},
	}
	second.TotalInCents = 1000
	assert.NoError(t, s.CreateRefund(context.Background(), second, models.OrderStatusRefunded))

	refunded, err := s.RefundedQuantities(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), refunded[order.Items[0].ID])
	assert.Equal(t, int64(1), refunded[order.Items[1].ID])

	got, err := s.OrderWithItems(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, got.Status)
}

func TestCreateRefundConflictOnOverRefund(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), order, nil))

	refund := &models.Refund{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		RequestKey: uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
	}
	refund.Items = []*models.RefundItem{
		{ID: uuid.New().String(), RefundID: refund.ID, OrderItemID: order.Items[0].ID, Quantity: 3, AmountInCents: 3000, CreatedAt: time.Now().UTC()},
	}
	err := s.CreateRefund(context.Background(), refund, "")
	assert.ErrorIs(t, err, commerce.ErrConflict)

	// nothing persisted after the rollback
	refunded, err := s.RefundedQuantities(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Empty(t, refunded)
}

func TestRefundByRequestKey(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), order, nil))

	requestKey := uuid.New().String()
	refund := &models.Refund{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		RequestKey: requestKey,
		CreatedAt:  time.Now().UTC(),
	}
	refund.Items = []*models.RefundItem{
		{ID: uuid.New().String(), RefundID: refund.ID, OrderItemID: order.Items[0].ID, Quantity: 1, AmountInCents: 1000, CreatedAt: time.Now().UTC()},
	}
	refund.TotalInCents = 1000
	assert.NoError(t, s.CreateRefund(context.Background(), refund, ""))

	got, err := s.RefundByRequestKey(context.Background(), requestKey)
	assert.NoError(t, err)
	assert.Equal(t, refund.ID, got.ID)
	assert.Len(t, got.Items, 1)

	got, err = s.RefundByRequestKey(context.Background(), "unknown-key")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestFeeScheduleForOrganization(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	schedule := &models.FeeSchedule{ID: "fs1", OrganizationID: "org1", Name: "Standard", CreatedAt: time.Now().UTC()}
	_, err := bunDB.NewInsert().Model(schedule).Exec(context.Background())
	assert.NoError(t, err)

	ranges := []*models.FeeScheduleRange{
		{ID: "r1", FeeScheduleID: "fs1", MinPriceInCents: 0, FeeInCents: 100, ClientFeeInCents: 50},
		{ID: "r2", FeeScheduleID: "fs1", MinPriceInCents: 5000, FeeInCents: 300, ClientFeeInCents: 150},
	}
	_, err = bunDB.NewInsert().Model(&ranges).Exec(context.Background())
	assert.NoError(t, err)

	got, err := s.FeeScheduleForOrganization(context.Background(), "org1")
	assert.NoError(t, err)
	assert.Equal(t, "fs1", got.ID)
	assert.Len(t, got.Ranges, 2)

	got, err = s.FeeScheduleForOrganization(context.Background(), "org-without-schedule")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestSalesSnapshotWindows(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	eventDate := time.Date(2020, 6, 1, 20, 0, 0, 0, time.UTC)
	event := &models.Event{ID: "event1", OrganizationID: "org1", Name: "Summer Fest", StartDate: eventDate, CreatedAt: time.Now().UTC()}
	_, err := bunDB.NewInsert().Model(event).Exec(context.Background())
	assert.NoError(t, err)

	tt := &models.TicketType{
		ID: "tt1", EventID: "event1", Name: "General Admission",
		Status: models.TicketTypeStatusPublished, PriceInCents: 1000,
		StartDate: eventDate.Add(-30 * 24 * time.Hour), EndDate: eventDate,
		CreatedAt: time.Now().UTC(),
	}
	_, err = bunDB.NewInsert().Model(tt).Exec(context.Background())
	assert.NoError(t, err)

	windowStart := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2020, 5, 31, 0, 0, 0, 0, time.UTC)

	// order paid inside the window
	inWindow := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), inWindow, nil))
	_, err = bunDB.NewUpdate().Model((*models.Order)(nil)).
		Set("paid_at = ?", windowStart.Add(24*time.Hour)).
		Where("id = ?", inWindow.ID).Exec(context.Background())
	assert.NoError(t, err)

	// order paid before the window, with a refund created inside it
	before := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), before, nil))
	_, err = bunDB.NewUpdate().Model((*models.Order)(nil)).
		Set("paid_at = ?", windowStart.Add(-24*time.Hour)).
		Where("id = ?", before.ID).Exec(context.Background())
	assert.NoError(t, err)

	refund := &models.Refund{
		ID:         uuid.New().String(),
		OrderID:    before.ID,
		RequestKey: uuid.New().String(),
		CreatedAt:  windowStart.Add(48 * time.Hour),
	}
	refund.Items = []*models.RefundItem{
		{ID: uuid.New().String(), RefundID: refund.ID, OrderItemID: before.Items[0].ID, Quantity: 1, AmountInCents: 1000, CreatedAt: refund.CreatedAt},
	}
	refund.TotalInCents = 1000
	assert.NoError(t, s.CreateRefund(context.Background(), refund, ""))

	snap, err := s.SalesSnapshot(context.Background(), report.Filters{
		OrganizationID:   "org1",
		TransactionStart: &windowStart,
		TransactionEnd:   &windowEnd,
	})
	assert.NoError(t, err)

	// the in-window order's items are sales; the out-of-window order
	// contributes only its refunded item
	assert.Len(t, snap.SaleItems, 2)
	assert.Len(t, snap.RefundOnlyItems, 1)
	assert.Equal(t, before.Items[0].ID, snap.RefundOnlyItems[0].ID)
	assert.Equal(t, int64(1), snap.RefundedQty[before.Items[0].ID])
	assert.NotNil(t, snap.Events["event1"])
	assert.NotNil(t, snap.TicketTypes["tt1"])
	assert.Contains(t, snap.Orders, inWindow.ID)
	assert.Contains(t, snap.Orders, before.ID)
}

func TestSalesSnapshotEventWindowFiltersItems(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	eventDate := time.Date(2020, 6, 1, 20, 0, 0, 0, time.UTC)
	event := &models.Event{ID: "event1", OrganizationID: "org1", Name: "Summer Fest", StartDate: eventDate, CreatedAt: time.Now().UTC()}
	_, err := bunDB.NewInsert().Model(event).Exec(context.Background())
	assert.NoError(t, err)

	order := testOrder(models.OrderStatusPaid)
	assert.NoError(t, s.CreateOrder(context.Background(), order, nil))
	_, err = bunDB.NewUpdate().Model((*models.Order)(nil)).
		Set("paid_at = ?", time.Date(2020, 5, 2, 0, 0, 0, 0, time.UTC)).
		Where("id = ?", order.ID).Exec(context.Background())
	assert.NoError(t, err)

	// event window that excludes the event
	eventStart := eventDate.Add(24 * time.Hour)
	snap, err := s.SalesSnapshot(context.Background(), report.Filters{
		OrganizationID: "org1",
		EventStart:     &eventStart,
	})
	assert.NoError(t, err)
	assert.Empty(t, snap.SaleItems)
	assert.Empty(t, snap.RefundOnlyItems)
}

func TestSalesSnapshotUnknownOrganization(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	snap, err := s.SalesSnapshot(context.Background(), report.Filters{OrganizationID: "nope"})
	assert.NoError(t, err)
	assert.Empty(t, snap.SaleItems)
	assert.Empty(t, snap.RefundOnlyItems)
	assert.Empty(t, snap.Orders)
}

func TestTicketTypeAndHoldLookups(t *testing.T) {
	s, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := &models.TicketType{
		ID: "tt1", EventID: "event1", Name: "General Admission",
		Status: models.TicketTypeStatusPublished, PriceInCents: 1000,
		StartDate: time.Now().UTC(), EndDate: time.Now().UTC().Add(time.Hour),
		CreatedAt: time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(tt).Exec(context.Background())
	assert.NoError(t, err)

	hold := &models.Hold{
		ID: "hold1", EventID: "event1", TicketTypeID: "tt1",
		Name: "Artist Comps", HoldType: models.HoldTypeComp, Quantity: 10,
		CreatedAt: time.Now().UTC(),
	}
	_, err = bunDB.NewInsert().Model(hold).Exec(context.Background())
	assert.NoError(t, err)

	gotTT, err := s.TicketTypeByID(context.Background(), "tt1")
	assert.NoError(t, err)
	assert.Equal(t, "General Admission", gotTT.Name)

	gotHold, err := s.HoldByID(context.Background(), "hold1")
	assert.NoError(t, err)
	assert.Equal(t, models.HoldTypeComp, gotHold.HoldType)

	_, err = s.TicketTypeByID(context.Background(), "missing")
	assert.Error(t, err)
}
