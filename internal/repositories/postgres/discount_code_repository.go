package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// DiscountCodeRepository persists discount codes and their usage trail.
type DiscountCodeRepository struct {
	db *DB
}

var _ repositories.DiscountCodeRepository = (*DiscountCodeRepository)(nil)

func (r *DiscountCodeRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	const op = "postgres.discount_codes.FindByCode"
	const query = `
		SELECT id, code, type, value, min_order_amount, usage_limit, starts_at, expires_at, is_active
		FROM discount_codes
		WHERE code = $1`

	var dc domain.DiscountCode
	err := r.db.conn(ctx).QueryRow(ctx, query, code).Scan(
		&dc.ID, &dc.Code, &dc.Type, &dc.Value, &dc.MinOrderAmount, &dc.UsageLimit,
		&dc.StartsAt, &dc.ExpiresAt, &dc.IsActive,
	)
	if err != nil {
		return domain.DiscountCode{}, wrapQueryErr(op, err)
	}
	return dc, nil
}

func (r *DiscountCodeRepository) CountUsages(ctx context.Context, discountCodeID int64) (int, error) {
	const op = "postgres.discount_codes.CountUsages"
	var count int
	err := r.db.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM discount_code_usages WHERE discount_code_id = $1`, discountCodeID,
	).Scan(&count)
	if err != nil {
		return 0, wrapQueryErr(op, err)
	}
	return count, nil
}

func (r *DiscountCodeRepository) HasUserUsage(ctx context.Context, discountCodeID int64, userID int64) (bool, error) {
	const op = "postgres.discount_codes.HasUserUsage"
	var exists bool
	err := r.db.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM discount_code_usages WHERE discount_code_id = $1 AND user_id = $2)`,
		discountCodeID, userID,
	).Scan(&exists)
	if err != nil {
		return false, wrapQueryErr(op, err)
	}
	return exists, nil
}

func (r *DiscountCodeRepository) RecordUsage(ctx context.Context, usage domain.DiscountCodeUsage) error {
	const op = "postgres.discount_codes.RecordUsage"
	const query = `
		INSERT INTO discount_code_usages (discount_code_id, user_id, order_id, discount_amount, order_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		usage.DiscountCodeID, usage.UserID, usage.OrderID, usage.DiscountAmount, usage.OrderAmount,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}
