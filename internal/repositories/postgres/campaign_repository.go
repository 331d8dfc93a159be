package postgres

import (
	"context"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// CampaignRepository resolves campaign coverage for the pricing engine.
type CampaignRepository struct {
	db *DB
}

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// BestActiveForProduct picks the winning campaign covering the product at the
// given instant. Ordering encodes the tie-break: highest priority, then
// lowest campaign id.
func (r *CampaignRepository) BestActiveForProduct(ctx context.Context, productID int64, now time.Time) (domain.Campaign, error) {
	const op = "postgres.campaigns.BestActiveForProduct"
	const query = `
		SELECT c.id, c.title, c.type, c.discount_value, c.priority, c.starts_at, c.ends_at, c.is_active
		FROM campaigns c
		JOIN campaign_products cp ON cp.campaign_id = c.id
		WHERE cp.product_id = $1
		  AND c.is_active
		  AND c.starts_at <= $2
		  AND c.ends_at >= $2
		ORDER BY c.priority DESC, c.id ASC
		LIMIT 1`

	var c domain.Campaign
	err := r.db.conn(ctx).QueryRow(ctx, query, productID, now).Scan(
		&c.ID, &c.Title, &c.Type, &c.DiscountValue, &c.Priority, &c.StartsAt, &c.EndsAt, &c.IsActive,
	)
	if err != nil {
		return domain.Campaign{}, wrapQueryErr(op, err)
	}
	return c, nil
}
