package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// DeliveryMethodRepository resolves shipping options.
type DeliveryMethodRepository struct {
	db *DB
}

var _ repositories.DeliveryMethodRepository = (*DeliveryMethodRepository)(nil)

func (r *DeliveryMethodRepository) FindByID(ctx context.Context, deliveryMethodID int64) (domain.DeliveryMethod, error) {
	const op = "postgres.delivery_methods.FindByID"
	const query = `SELECT id, title, fee, is_active, sort_order FROM delivery_methods WHERE id = $1`

	var m domain.DeliveryMethod
	err := r.db.conn(ctx).QueryRow(ctx, query, deliveryMethodID).Scan(
		&m.ID, &m.Title, &m.Fee, &m.IsActive, &m.SortOrder,
	)
	if err != nil {
		return domain.DeliveryMethod{}, wrapQueryErr(op, err)
	}
	return m, nil
}

func (r *DeliveryMethodRepository) FirstActive(ctx context.Context) (domain.DeliveryMethod, error) {
	const op = "postgres.delivery_methods.FirstActive"
	const query = `
		SELECT id, title, fee, is_active, sort_order
		FROM delivery_methods
		WHERE is_active
		ORDER BY sort_order ASC, id ASC
		LIMIT 1`

	var m domain.DeliveryMethod
	err := r.db.conn(ctx).QueryRow(ctx, query).Scan(&m.ID, &m.Title, &m.Fee, &m.IsActive, &m.SortOrder)
	if err != nil {
		return domain.DeliveryMethod{}, wrapQueryErr(op, err)
	}
	return m, nil
}
