// Package redemption validates promo and redemption codes against the ticket
// type being purchased.
package redemption

import (
	"fmt"
	"time"

	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/models"
)

type Resolver struct{}

// Redeem validates the code for a purchase of quantity units of the ticket
// type and returns the discounted unit price. The usage ceiling is consumed
// here at redemption time; refunds never return uses.
func (Resolver) Redeem(code *models.Code, ticketType *models.TicketType, quantity int64, now time.Time) (int64, error) {
	if !code.AppliesTo(ticketType.ID) {
		return 0, fmt.Errorf("%w: code %q, ticket type %q", commerce.ErrCodeNotApplicable, code.Redemption, ticketType.ID)
	}
	if now.Before(code.StartDate) || !now.Before(code.EndDate) {
		return 0, fmt.Errorf("%w: code %q", commerce.ErrCodeExpired, code.Redemption)
	}
	if code.MaxUses > 0 && code.Uses+quantity > code.MaxUses {
		return 0, fmt.Errorf("%w: code %q", commerce.ErrCodeExhausted, code.Redemption)
	}

	price := ticketType.PriceInCents - code.DiscountInCents
	if price < 0 {
		price = 0
	}
	return price, nil
}
