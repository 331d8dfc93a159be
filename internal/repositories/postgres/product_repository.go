package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// ProductRepository reads catalog rows and performs guarded stock mutations.
type ProductRepository struct {
	db *DB
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) FindByID(ctx context.Context, productID int64) (domain.Product, error) {
	const op = "postgres.products.FindByID"
	const query = `
		SELECT id, title, slug, price, stock, is_active,
		       has_variants, has_colors, has_sizes, image_path, created_at, updated_at
		FROM products
		WHERE id = $1`

	var p domain.Product
	err := r.db.conn(ctx).QueryRow(ctx, query, productID).Scan(
		&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock, &p.IsActive,
		&p.HasVariants, &p.HasColors, &p.HasSizes, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, wrapQueryErr(op, err)
	}
	return p, nil
}

func (r *ProductRepository) ListActive(ctx context.Context, afterID int64, limit int) ([]domain.Product, error) {
	const op = "postgres.products.ListActive"
	const query = `
		SELECT id, title, slug, price, stock, is_active,
		       has_variants, has_colors, has_sizes, image_path, created_at, updated_at
		FROM products
		WHERE is_active AND id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.conn(ctx).Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, wrapQueryErr(op, err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock, &p.IsActive,
			&p.HasVariants, &p.HasColors, &p.HasSizes, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, wrapQueryErr(op, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(op, err)
	}
	return products, nil
}

func (r *ProductRepository) FindVariant(ctx context.Context, productID int64, selector domain.VariantSelector) (domain.ProductVariant, error) {
	const op = "postgres.products.FindVariant"
	const query = `
		SELECT id, product_id, color_id, size_id, price, stock, is_active, display_name
		FROM product_variants
		WHERE product_id = $1
		  AND color_id IS NOT DISTINCT FROM $2
		  AND size_id IS NOT DISTINCT FROM $3`

	var colorID, sizeID *int64
	if id, ok := selector.ColorID(); ok {
		colorID = &id
	}
	if id, ok := selector.SizeID(); ok {
		sizeID = &id
	}

	var v domain.ProductVariant
	err := r.db.conn(ctx).QueryRow(ctx, query, productID, colorID, sizeID).Scan(
		&v.ID, &v.ProductID, &v.ColorID, &v.SizeID, &v.Price, &v.Stock, &v.IsActive, &v.DisplayName,
	)
	if err != nil {
		return domain.ProductVariant{}, wrapQueryErr(op, err)
	}
	return v, nil
}

// DecrementProductStock performs the conditional decrement. The WHERE clause
// guard makes the read-check-write race impossible: a row short on stock is
// simply not updated and the call reports a conflict.
func (r *ProductRepository) DecrementProductStock(ctx context.Context, productID int64, quantity int) error {
	const op = "postgres.products.DecrementProductStock"
	const query = `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	tag, err := r.db.conn(ctx).Exec(ctx, query, productID, quantity)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorConflict, "insufficient stock", nil)
	}
	return nil
}

func (r *ProductRepository) DecrementVariantStock(ctx context.Context, variantID int64, quantity int) error {
	const op = "postgres.products.DecrementVariantStock"
	const query = `
		UPDATE product_variants
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	tag, err := r.db.conn(ctx).Exec(ctx, query, variantID, quantity)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorConflict, "insufficient stock", nil)
	}
	return nil
}

func (r *ProductRepository) IncrementProductStock(ctx context.Context, productID int64, quantity int) error {
	const op = "postgres.products.IncrementProductStock"
	const query = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`

	tag, err := r.db.conn(ctx).Exec(ctx, query, productID, quantity)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "product not found", nil)
	}
	return nil
}

func (r *ProductRepository) IncrementVariantStock(ctx context.Context, variantID int64, quantity int) error {
	const op = "postgres.products.IncrementVariantStock"
	const query = `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`

	tag, err := r.db.conn(ctx).Exec(ctx, query, variantID, quantity)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "variant not found", nil)
	}
	return nil
}

func (r *ProductRepository) ProductStock(ctx context.Context, productID int64) (int, error) {
	const op = "postgres.products.ProductStock"
	var stock int
	err := r.db.conn(ctx).QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		return 0, wrapQueryErr(op, err)
	}
	return stock, nil
}

func (r *ProductRepository) VariantStock(ctx context.Context, variantID int64) (int, error) {
	const op = "postgres.products.VariantStock"
	var stock int
	err := r.db.conn(ctx).QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock)
	if err != nil {
		return 0, wrapQueryErr(op, err)
	}
	return stock, nil
}
