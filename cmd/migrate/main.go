package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/baajur/bn-api/internal/config"
	"github.com/baajur/bn-api/internal/database/migrations"
	"github.com/baajur/bn-api/internal/models"
)

func main() {
	direction := flag.String("direction", "up", "up, down, or dev (drop, recreate and seed)")
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	cfg := config.Load()

	if *direction == "dev" {
		runDev(cfg)
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	runner := migrations.NewRunner(db, migrations.Options{MigrationsDir: *dir})
	defer runner.Close()

	switch *direction {
	case "up":
		if err := runner.MigrateUp(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case "down":
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	default:
		log.Fatalf("Unknown direction %q", *direction)
	}

	version, err := runner.Version()
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	log.Printf("Current schema version: %d", version)
}

// runDev rebuilds the schema straight from the bun models and seeds sample
// rows. Development only; real deployments use the SQL migrations.
func runDev(cfg *config.Config) {
	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	log.Println("Seeding sample data...")
	seedData(ctx, db)

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.RefundItem)(nil), (*models.Refund)(nil),
		(*models.OrderItem)(nil), (*models.Order)(nil),
		(*models.Code)(nil), (*models.Hold)(nil),
		(*models.FeeScheduleRange)(nil), (*models.FeeSchedule)(nil),
		(*models.TicketType)(nil), (*models.Event)(nil),
		(*models.Organization)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.Organization)(nil), (*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.FeeSchedule)(nil), (*models.FeeScheduleRange)(nil),
		(*models.Hold)(nil), (*models.Code)(nil),
		(*models.Order)(nil), (*models.OrderItem)(nil),
		(*models.Refund)(nil), (*models.RefundItem)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now().UTC()

	org := models.Organization{
		ID:                    "org001",
		Name:                  "Sample Presents",
		EventFeeInCents:       150,
		ClientEventFeeInCents: 100,
		CreatedAt:             now,
	}
	_, _ = db.NewInsert().Model(&org).Exec(ctx)

	event := models.Event{
		ID:             "event001",
		OrganizationID: "org001",
		Name:           "Summer Fest",
		StartDate:      now.AddDate(0, 1, 0),
		CreatedAt:      now,
	}
	_, _ = db.NewInsert().Model(&event).Exec(ctx)

	ticketTypes := []models.TicketType{
		{
			ID: "tt001", EventID: "event001", Name: "General Admission",
			Status: models.TicketTypeStatusPublished, PriceInCents: 2500,
			StartDate: now, EndDate: now.AddDate(0, 1, 0), Rank: 1, CreatedAt: now,
		},
		{
			ID: "tt002", EventID: "event001", Name: "VIP",
			Status: models.TicketTypeStatusPublished, PriceInCents: 10000,
			StartDate: now, EndDate: now.AddDate(0, 1, 0), LimitPerPerson: 4, Rank: 2, CreatedAt: now,
		},
	}
	_, _ = db.NewInsert().Model(&ticketTypes).Exec(ctx)

	schedule := models.FeeSchedule{ID: "fs001", OrganizationID: "org001", Name: "Standard", CreatedAt: now}
	_, _ = db.NewInsert().Model(&schedule).Exec(ctx)

	ranges := []models.FeeScheduleRange{
		{ID: "fsr001", FeeScheduleID: "fs001", MinPriceInCents: 0, FeeInCents: 100, ClientFeeInCents: 50},
		{ID: "fsr002", FeeScheduleID: "fs001", MinPriceInCents: 5000, FeeInCents: 300, ClientFeeInCents: 150},
	}
	_, _ = db.NewInsert().Model(&ranges).Exec(ctx)

	hold := models.Hold{
		ID: "hold001", EventID: "event001", TicketTypeID: "tt001",
		Name: "Artist Comps", HoldType: models.HoldTypeComp, Quantity: 20, CreatedAt: now,
	}
	_, _ = db.NewInsert().Model(&hold).Exec(ctx)

	code := models.Code{
		ID: "code001", EventID: "event001", Name: "Early Bird",
		Redemption: "EARLY", TicketTypeIDs: []string{"tt001"},
		DiscountInCents: 500, MaxUses: 100,
		StartDate: now, EndDate: now.AddDate(0, 1, 0), CreatedAt: now,
	}
	_, _ = db.NewInsert().Model(&code).Exec(ctx)
}
