package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// CampaignSaleRepository appends campaign analytics rows. Rows are never
// updated or deleted.
type CampaignSaleRepository struct {
	db *DB
}

var _ repositories.CampaignSaleRepository = (*CampaignSaleRepository)(nil)

func (r *CampaignSaleRepository) Insert(ctx context.Context, sale domain.CampaignSale) error {
	const op = "postgres.campaign_sales.Insert"
	const query = `
		INSERT INTO campaign_sales (campaign_id, order_item_id, product_id, product_variant_id, quantity, discount_amount, sale_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		sale.CampaignID, sale.OrderItemID, sale.ProductID, sale.ProductVariantID,
		sale.Quantity, sale.DiscountAmount, sale.SaleAmount,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}
