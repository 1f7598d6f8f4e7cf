package fees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baajur/bn-api/internal/cart/fees"
	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/models"
)

func testSchedule() *models.FeeSchedule {
	return &models.FeeSchedule{
		ID:             "fs1",
		OrganizationID: "org1",
		Name:           "Standard",
		Ranges: []*models.FeeScheduleRange{
			// deliberately unsorted to exercise the sort inside the resolver
			{ID: "r2", FeeScheduleID: "fs1", MinPriceInCents: 5000, FeeInCents: 300, ClientFeeInCents: 150},
			{ID: "r1", FeeScheduleID: "fs1", MinPriceInCents: 0, FeeInCents: 100, ClientFeeInCents: 50},
			{ID: "r3", FeeScheduleID: "fs1", MinPriceInCents: 10000, FeeInCents: 500, ClientFeeInCents: 250},
		},
	}
}

func TestPerUnitFeeSelectsHighestMatchingRange(t *testing.T) {
	resolver := fees.Resolver{}
	schedule := testSchedule()

	tests := []struct {
		name          string
		priceInCents  int64
		wantFee       int64
		wantClientFee int64
	}{
		{"price in lowest range", 1000, 100, 50},
		{"price exactly on a boundary", 5000, 300, 150},
		{"price just below a boundary", 4999, 100, 50},
		{"price in highest range", 25000, 500, 250},
		{"free ticket matches the zero range", 0, 100, 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rng, err := resolver.PerUnitFee(schedule, tc.priceInCents)
			assert.NoError(t, err)
			assert.Equal(t, tc.wantFee, rng.FeeInCents)
			assert.Equal(t, tc.wantClientFee, rng.ClientFeeInCents)
		})
	}
}

func TestPerUnitFeeNoRangeCoversPrice(t *testing.T) {
	resolver := fees.Resolver{}
	schedule := &models.FeeSchedule{
		ID: "fs1",
		Ranges: []*models.FeeScheduleRange{
			{ID: "r1", FeeScheduleID: "fs1", MinPriceInCents: 5000, FeeInCents: 300, ClientFeeInCents: 150},
		},
	}

	rng, err := resolver.PerUnitFee(schedule, 1000)
	assert.Nil(t, rng)
	assert.ErrorIs(t, err, commerce.ErrNoFeeSchedule)
}

func TestPerUnitFeeMissingSchedule(t *testing.T) {
	resolver := fees.Resolver{}

	rng, err := resolver.PerUnitFee(nil, 1000)
	assert.Nil(t, rng)
	assert.ErrorIs(t, err, commerce.ErrNoFeeSchedule)

	rng, err = resolver.PerUnitFee(&models.FeeSchedule{ID: "fs1"}, 1000)
	assert.Nil(t, rng)
	assert.ErrorIs(t, err, commerce.ErrNoFeeSchedule)
}

func TestPerUnitFeeZeroOnlyRange(t *testing.T) {
	resolver := fees.Resolver{}
	schedule := &models.FeeSchedule{
		ID: "fs1",
		Ranges: []*models.FeeScheduleRange{
			{ID: "r1", FeeScheduleID: "fs1", MinPriceInCents: 0, FeeInCents: 0, ClientFeeInCents: 0},
		},
	}

	rng, err := resolver.PerUnitFee(schedule, 10000)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rng.FeeInCents)
	assert.Equal(t, int64(0), rng.ClientFeeInCents)
}

func TestPerUnitFeeDoesNotMutateSchedule(t *testing.T) {
	resolver := fees.Resolver{}
	schedule := testSchedule()

	_, err := resolver.PerUnitFee(schedule, 25000)
	assert.NoError(t, err)
	assert.Equal(t, "r2", schedule.Ranges[0].ID)
	assert.Equal(t, "r1", schedule.Ranges[1].ID)
	assert.Equal(t, "r3", schedule.Ranges[2].ID)
}

func TestEventFee(t *testing.T) {
	resolver := fees.Resolver{}

	total, client := resolver.EventFee(&models.Organization{
		ID:                    "org1",
		EventFeeInCents:       150,
		ClientEventFeeInCents: 100,
	})
	assert.Equal(t, int64(250), total)
	assert.Equal(t, int64(100), client)

	total, client = resolver.EventFee(&models.Organization{ID: "org2"})
	assert.Equal(t, int64(0), total)
	assert.Equal(t, int64(0), client)
}
