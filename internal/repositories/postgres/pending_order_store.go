package postgres

import (
	"context"
	"encoding/json"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// PendingOrderStore keeps checkout snapshots in a jsonb table keyed by
// invoice id. Durable on purpose: losing an entry after a verified payment is
// a money-without-fulfillment incident, so session-scoped storage is not an
// option here.
type PendingOrderStore struct {
	db  *DB
	now func() time.Time
}

var _ repositories.PendingOrderStore = (*PendingOrderStore)(nil)

func (s *PendingOrderStore) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *PendingOrderStore) Put(ctx context.Context, invoiceID int64, pending domain.PendingOrder, ttl time.Duration) error {
	const op = "postgres.pending_orders.Put"
	payload, err := json.Marshal(pending)
	if err != nil {
		return repositories.NewError(op, repositories.ErrorUnknown, "encode pending order", err)
	}
	expiresAt := s.clock().Add(ttl)

	const query = `
		INSERT INTO pending_orders (invoice_id, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (invoice_id)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = now()`

	if _, err := s.db.conn(ctx).Exec(ctx, query, invoiceID, payload, expiresAt); err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}

func (s *PendingOrderStore) Get(ctx context.Context, invoiceID int64) (domain.PendingOrder, error) {
	const op = "postgres.pending_orders.Get"
	const query = `SELECT payload FROM pending_orders WHERE invoice_id = $1 AND expires_at > $2`

	var payload []byte
	if err := s.db.conn(ctx).QueryRow(ctx, query, invoiceID, s.clock()).Scan(&payload); err != nil {
		return domain.PendingOrder{}, wrapQueryErr(op, err)
	}
	var pending domain.PendingOrder
	if err := json.Unmarshal(payload, &pending); err != nil {
		return domain.PendingOrder{}, repositories.NewError(op, repositories.ErrorUnknown, "decode pending order", err)
	}
	pending.Cart = pending.Cart.Normalize()
	return pending, nil
}

func (s *PendingOrderStore) Forget(ctx context.Context, invoiceID int64) error {
	const op = "postgres.pending_orders.Forget"
	if _, err := s.db.conn(ctx).Exec(ctx, `DELETE FROM pending_orders WHERE invoice_id = $1`, invoiceID); err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}
