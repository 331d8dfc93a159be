package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// GatewayRepository resolves configured payment gateway rows.
type GatewayRepository struct {
	db *DB
}

var _ repositories.GatewayRepository = (*GatewayRepository)(nil)

func (r *GatewayRepository) FindByID(ctx context.Context, gatewayID int64) (domain.PaymentGateway, error) {
	const op = "postgres.gateways.FindByID"
	const query = `SELECT id, title, type, is_active FROM payment_gateways WHERE id = $1`

	var g domain.PaymentGateway
	err := r.db.conn(ctx).QueryRow(ctx, query, gatewayID).Scan(&g.ID, &g.Title, &g.Type, &g.IsActive)
	if err != nil {
		return domain.PaymentGateway{}, wrapQueryErr(op, err)
	}
	return g, nil
}

func (r *GatewayRepository) FindByType(ctx context.Context, gatewayType string) (domain.PaymentGateway, error) {
	const op = "postgres.gateways.FindByType"
	const query = `SELECT id, title, type, is_active FROM payment_gateways WHERE type = $1`

	var g domain.PaymentGateway
	err := r.db.conn(ctx).QueryRow(ctx, query, gatewayType).Scan(&g.ID, &g.Title, &g.Type, &g.IsActive)
	if err != nil {
		return domain.PaymentGateway{}, wrapQueryErr(op, err)
	}
	return g, nil
}
