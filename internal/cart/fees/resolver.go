// Package fees selects the applicable fee tier for a ticket price from an
// organization's fee schedule.
package fees

import (
	"fmt"
	"sort"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/models"
)

type Resolver struct{}

// PerUnitFee picks the range with the highest min_price at or below the
// ticket's face price. A schedule whose only range is (0, 0) yields zero
// fees.
func (Resolver) PerUnitFee(schedule *models.FeeSchedule, priceInCents int64) (*models.FeeScheduleRange, error) {
	if schedule == nil || len(schedule.Ranges) == 0 {
		return nil, commerce.ErrNoFeeSchedule
	}

	ranges := make([]*models.FeeScheduleRange, len(schedule.Ranges))
	copy(ranges, schedule.Ranges)
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].MinPriceInCents < ranges[j].MinPriceInCents
	})

	var match *models.FeeScheduleRange
	for _, r := range ranges {
		if r.MinPriceInCents <= priceInCents {
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: no range covers price %d", commerce.ErrNoFeeSchedule, priceInCents)
	}
	return match, nil
}

// EventFee returns the fixed per-order fee for the organization, independent
// of ticket quantity. The second value is the client-facing share used by
// sales reporting.
func (Resolver) EventFee(org *models.Organization) (totalInCents, clientInCents int64) {
	return org.EventFeeInCents + org.ClientEventFeeInCents, org.ClientEventFeeInCents
}
