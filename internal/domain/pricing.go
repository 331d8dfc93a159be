package domain

import "math"

// PriceQuote is the outcome of pricing one product or variant against the
// live campaign state. Amounts are minor units; DiscountPercent is rounded
// to two decimals for display.
type PriceQuote struct {
	HasDiscount     bool
	OriginalPrice   int64
	CampaignPrice   int64
	DiscountAmount  int64
	DiscountPercent float64
	Campaign        *Campaign
}

// NewPriceQuote prices a base amount against an optional campaign. A nil
// campaign, a non-positive base or a zero computed discount all yield an
// undiscounted quote.
func NewPriceQuote(base int64, campaign *Campaign) PriceQuote {
	quote := PriceQuote{
		OriginalPrice: base,
		CampaignPrice: base,
	}
	if campaign == nil || base <= 0 {
		return quote
	}
	discount := campaign.Type.Discount(base, campaign.DiscountValue)
	if discount <= 0 {
		return quote
	}
	final := base - discount
	if final < 0 {
		final = 0
	}
	quote.HasDiscount = true
	quote.CampaignPrice = final
	quote.DiscountAmount = discount
	quote.DiscountPercent = math.Round(float64(discount)/float64(base)*100*100) / 100
	quote.Campaign = campaign
	return quote
}
