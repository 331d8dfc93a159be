package postgres

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// OrderRepository persists orders and their item snapshots. Inserting an
// order with items is expected to run inside an ambient transaction.
type OrderRepository struct {
	db *DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	const op = "postgres.orders.Insert"
	const insertOrder = `
		INSERT INTO orders (
			user_id, customer_name, customer_phone, customer_address,
			delivery_method_id, delivery_fee,
			total_amount, original_amount, campaign_discount_amount,
			discount_code, discount_amount, final_amount,
			status, receipt_path, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING id, created_at, updated_at`

	conn := r.db.conn(ctx)
	err := conn.QueryRow(ctx, insertOrder,
		order.UserID, order.CustomerName, order.CustomerPhone, order.CustomerAddress,
		order.DeliveryMethodID, order.DeliveryFee,
		order.TotalAmount, order.OriginalAmount, order.CampaignDiscountAmount,
		order.DiscountCode, order.DiscountAmount, order.FinalAmount,
		order.Status, order.ReceiptPath,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Order{}, wrapQueryErr(op, err)
	}

	const insertItem = `
		INSERT INTO order_items (
			order_id, product_id, product_variant_id, color_id, size_id,
			variant_display_name, campaign_id,
			original_price, campaign_discount_amount, unit_price, quantity, line_total
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := conn.QueryRow(ctx, insertItem,
			item.OrderID, item.ProductID, item.ProductVariantID, item.ColorID, item.SizeID,
			item.VariantDisplayName, item.CampaignID,
			item.OriginalPrice, item.CampaignDiscountAmount, item.UnitPrice, item.Quantity, item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return domain.Order{}, wrapQueryErr(op, err)
		}
	}
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	const op = "postgres.orders.FindByID"
	const selectOrder = `
		SELECT id, user_id, customer_name, customer_phone, customer_address,
		       delivery_method_id, delivery_fee,
		       total_amount, original_amount, campaign_discount_amount,
		       discount_code, discount_amount, final_amount,
		       status, receipt_path, created_at, updated_at
		FROM orders
		WHERE id = $1`

	conn := r.db.conn(ctx)
	var o domain.Order
	err := conn.QueryRow(ctx, selectOrder, orderID).Scan(
		&o.ID, &o.UserID, &o.CustomerName, &o.CustomerPhone, &o.CustomerAddress,
		&o.DeliveryMethodID, &o.DeliveryFee,
		&o.TotalAmount, &o.OriginalAmount, &o.CampaignDiscountAmount,
		&o.DiscountCode, &o.DiscountAmount, &o.FinalAmount,
		&o.Status, &o.ReceiptPath, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, wrapQueryErr(op, err)
	}

	const selectItems = `
		SELECT id, order_id, product_id, product_variant_id, color_id, size_id,
		       variant_display_name, campaign_id,
		       original_price, campaign_discount_amount, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`

	rows, err := conn.Query(ctx, selectItems, orderID)
	if err != nil {
		return domain.Order{}, wrapQueryErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductVariantID, &item.ColorID, &item.SizeID,
			&item.VariantDisplayName, &item.CampaignID,
			&item.OriginalPrice, &item.CampaignDiscountAmount, &item.UnitPrice, &item.Quantity, &item.LineTotal,
		); err != nil {
			return domain.Order{}, wrapQueryErr(op, err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, wrapQueryErr(op, err)
	}
	return o, nil
}

// MarkCancelled is the concurrency arbiter for cancellation: the status guard
// in the UPDATE ensures only one of two racing cancels wins the transition.
func (r *OrderRepository) MarkCancelled(ctx context.Context, orderID int64) (bool, error) {
	const op = "postgres.orders.MarkCancelled"
	conn := r.db.conn(ctx)
	tag, err := conn.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE id = $1 AND status IN ($3, $4)`,
		orderID, domain.OrderStatusCancelled, domain.OrderStatusPending, domain.OrderStatusConfirmed,
	)
	if err != nil {
		return false, wrapQueryErr(op, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, wrapQueryErr(op, err)
	}
	if !exists {
		return false, repositories.NewError(op, repositories.ErrorNotFound, "order not found", nil)
	}
	return false, nil
}
