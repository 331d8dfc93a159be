package postgres

import (
	"context"
	"encoding/json"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// TransactionRepository persists payment attempts. Callback payloads are
// stored as jsonb for later dispute handling.
type TransactionRepository struct {
	db *DB
}

var _ repositories.TransactionRepository = (*TransactionRepository)(nil)

const transactionColumns = `id, invoice_id, gateway_id, method, amount, status,
	gateway_transaction_id, reference, callback_data, verified_at, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var (
		txn      domain.Transaction
		callback []byte
	)
	err := row.Scan(
		&txn.ID, &txn.InvoiceID, &txn.GatewayID, &txn.Method, &txn.Amount, &txn.Status,
		&txn.GatewayTransactionID, &txn.Reference, &callback, &txn.VerifiedAt, &txn.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(callback) > 0 {
		if err := json.Unmarshal(callback, &txn.CallbackData); err != nil {
			return domain.Transaction{}, err
		}
	}
	return txn, nil
}

func (r *TransactionRepository) Insert(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	const op = "postgres.transactions.Insert"
	const query = `
		INSERT INTO transactions (invoice_id, gateway_id, method, amount, status, gateway_transaction_id, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING ` + transactionColumns

	inserted, err := scanTransaction(r.db.conn(ctx).QueryRow(ctx, query,
		txn.InvoiceID, txn.GatewayID, txn.Method, txn.Amount, txn.Status, txn.GatewayTransactionID, txn.Reference,
	))
	if err != nil {
		return domain.Transaction{}, wrapQueryErr(op, err)
	}
	return inserted, nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, transactionID int64) (domain.Transaction, error) {
	const op = "postgres.transactions.FindByID"
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(r.db.conn(ctx).QueryRow(ctx, query, transactionID))
	if err != nil {
		return domain.Transaction{}, wrapQueryErr(op, err)
	}
	return txn, nil
}

func (r *TransactionRepository) FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (domain.Transaction, error) {
	const op = "postgres.transactions.FindByGatewayTransactionID"
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_transaction_id = $1`

	txn, err := scanTransaction(r.db.conn(ctx).QueryRow(ctx, query, gatewayTransactionID))
	if err != nil {
		return domain.Transaction{}, wrapQueryErr(op, err)
	}
	return txn, nil
}

func (r *TransactionRepository) SetGatewayTransactionID(ctx context.Context, transactionID int64, gatewayTransactionID string) error {
	const op = "postgres.transactions.SetGatewayTransactionID"
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE transactions SET gateway_transaction_id = $2 WHERE id = $1`, transactionID, gatewayTransactionID,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "transaction not found", nil)
	}
	return nil
}

func (r *TransactionRepository) MarkVerified(ctx context.Context, transactionID int64, reference string, verifiedAt time.Time) error {
	const op = "postgres.transactions.MarkVerified"
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE transactions SET status = $2, reference = $3, verified_at = $4 WHERE id = $1`,
		transactionID, domain.TransactionStatusVerified, reference, verifiedAt,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "transaction not found", nil)
	}
	return nil
}

func (r *TransactionRepository) MarkRejected(ctx context.Context, transactionID int64, callbackData map[string]any) error {
	const op = "postgres.transactions.MarkRejected"
	var payload []byte
	if callbackData != nil {
		encoded, err := json.Marshal(callbackData)
		if err != nil {
			return repositories.NewError(op, repositories.ErrorUnknown, "encode callback data", err)
		}
		payload = encoded
	}
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE transactions SET status = $2, callback_data = COALESCE($3, callback_data) WHERE id = $1`,
		transactionID, domain.TransactionStatusRejected, payload,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "transaction not found", nil)
	}
	return nil
}

func (r *TransactionRepository) MarkFailed(ctx context.Context, transactionID int64) error {
	const op = "postgres.transactions.MarkFailed"
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1`, transactionID, domain.TransactionStatusFailed,
	)
	if err != nil {
		return wrapQueryErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewError(op, repositories.ErrorNotFound, "transaction not found", nil)
	}
	return nil
}
