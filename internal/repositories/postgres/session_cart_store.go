package postgres

import (
	"context"
	"encoding/json"

	domain "github.com/velora-shop/api/internal/domain"
	repositories "github.com/velora-shop/api/internal/repositories"
)

// SessionCartStore persists session carts as jsonb blobs keyed by session id.
// A missing row reads back as an empty cart.
type SessionCartStore struct {
	db *DB
}

var _ repositories.SessionCartStore = (*SessionCartStore)(nil)

// NewSessionCartStore builds the store around an open DB.
func NewSessionCartStore(db *DB) *SessionCartStore {
	return &SessionCartStore{db: db}
}

func (s *SessionCartStore) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	const op = "postgres.session_carts.Get"
	var payload []byte
	err := s.db.conn(ctx).QueryRow(ctx,
		`SELECT payload FROM session_carts WHERE session_id = $1`, sessionID,
	).Scan(&payload)
	if err != nil {
		wrapped := wrapQueryErr(op, err)
		if repositories.IsNotFound(wrapped) {
			return domain.Cart{}, nil
		}
		return nil, wrapped
	}
	var cart domain.Cart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return nil, repositories.NewError(op, repositories.ErrorUnknown, "decode cart", err)
	}
	return cart.Normalize(), nil
}

func (s *SessionCartStore) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	const op = "postgres.session_carts.Save"
	payload, err := json.Marshal(cart)
	if err != nil {
		return repositories.NewError(op, repositories.ErrorUnknown, "encode cart", err)
	}
	const query = `
		INSERT INTO session_carts (session_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := s.db.conn(ctx).Exec(ctx, query, sessionID, payload); err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}

func (s *SessionCartStore) Clear(ctx context.Context, sessionID string) error {
	const op = "postgres.session_carts.Clear"
	if _, err := s.db.conn(ctx).Exec(ctx, `DELETE FROM session_carts WHERE session_id = $1`, sessionID); err != nil {
		return wrapQueryErr(op, err)
	}
	return nil
}
