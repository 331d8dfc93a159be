package postgres

import (
	"context"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// InvoiceRepository persists payable invoices.
type InvoiceRepository struct {
	db *DB
}

var _ repositories.InvoiceRepository = (*InvoiceRepository)(nil)

const invoiceColumns = `id, order_id, payment_gateway_id, invoice_number,
	amount, original_amount, campaign_discount_amount, discount_code_amount,
	currency, status, paid_at, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.PaymentGatewayID, &inv.InvoiceNumber,
		&inv.Amount, &inv.OriginalAmount, &inv.CampaignDiscountAmount, &inv.DiscountCodeAmount,
		&inv.Currency, &inv.Status, &inv.PaidAt, &inv.CreatedAt,
	)
	return inv, err
}

func (r *InvoiceRepository) Insert(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	const op = "postgres.invoices.Insert"
	const query = `
		INSERT INTO invoices (
			order_id, payment_gateway_id, invoice_number,
			amount, original_amount, campaign_discount_amount, discount_code_amount,
			currency, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.db.conn(ctx).QueryRow(ctx, query,
		invoice.OrderID, invoice.PaymentGatewayID, invoice.InvoiceNumber,
		invoice.Amount, invoice.OriginalAmount, invoice.CampaignDiscountAmount, invoice.DiscountCodeAmount,
		invoice.Currency, invoice.Status,
	))
	if err != nil {
		return domain.Invoice{}, wrapQueryErr(op, err)
	}
	return inv, nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	const op = "postgres.invoices.FindByID"
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.conn(ctx).QueryRow(ctx, query, invoiceID))
	if err != nil {
		return domain.Invoice{}, wrapQueryErr(op, err)
	}
	return inv, nil
}

// FindByIDForUpdate locks the invoice row for the remainder of the ambient
// transaction. Concurrent payment verifications serialise on this lock.
func (r *InvoiceRepository) FindByIDForUpdate(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	const op = "postgres.invoices.FindByIDForUpdate"
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

	inv, err := scanInvoice(r.db.conn(ctx).QueryRow(ctx, query, invoiceID))
	if err != nil {
		return domain.Invoice{}, wrapQueryErr(op, err)
	}
	return inv, nil
}

func (r *InvoiceRepository) MarkPaid(ctx context.Context, invoiceID int64, orderID int64, paidAt time.Time) error {
	const op = "postgres.invoices.MarkPaid"
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE invoices SET order_id = $2, status = $3, paid_at = $4 WHERE id = $1`,
		invoiceID, orderID, domain.InvoiceStatusPaid, paidAt,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "invoice not found", nil)
	}
	return nil
}

func (r *InvoiceRepository) MarkCancelled(ctx context.Context, invoiceID int64) error {
	const op = "postgres.invoices.MarkCancelled"
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $2 WHERE id = $1`, invoiceID, domain.InvoiceStatusCancelled,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "invoice not found", nil)
	}
	return nil
}
