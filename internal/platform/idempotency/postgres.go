package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in the idempotency_keys table so checkout
// replays survive process restarts and work across replicas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("idempotency: pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Claim implements Store. The insert either creates a fresh pending record or
// reclaims an expired one; when neither applies, the existing record decides
// the outcome.
func (s *PostgresStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)
	expires := now.Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (id, fingerprint, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			status = EXCLUDED.status,
			response_status = NULL,
			response_headers = NULL,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= $4`,
		id, fingerprint, string(StatusPending), now, expires)
	if err != nil {
		return Claim{}, fmt.Errorf("idempotency: claim %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return Claim{Outcome: OutcomeProceed, Record: Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   expires,
		}}, nil
	}

	record, err := s.find(ctx, id)
	if err != nil {
		return Claim{}, err
	}
	if record.Fingerprint != fingerprint {
		return Claim{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Claim{Outcome: OutcomeReplay, Record: record}, nil
	}
	return Claim{Outcome: OutcomeInFlight, Record: record}, nil
}

// Complete implements Store. The fingerprint guard keeps one shopper's
// response from ever completing another shopper's claim.
func (s *PostgresStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)

	var headers []byte
	if stored := storableHeaders(resp.Headers); len(stored) > 0 {
		encoded, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("idempotency: encode headers for %s: %w", id, err)
		}
		headers = encoded
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response_status = $3, response_headers = $4, response_body = $5,
			updated_at = $6, expires_at = $7
		WHERE id = $1 AND fingerprint = $8`,
		id, string(StatusCompleted), resp.Status, headers, resp.Body, now, now.Add(ttl), fingerprint)
	if err != nil {
		return fmt.Errorf("idempotency: complete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFingerprintMismatch
	}
	return nil
}

// Release implements Store, dropping the claim so a retry starts clean.
func (s *PostgresStore) Release(ctx context.Context, key, _ string) error {
	id := recordID(key)
	if _, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE id = $1`, id); err != nil {
		return fmt.Errorf("idempotency: release %s: %w", id, err)
	}
	return nil
}

// CleanupExpired implements Store. The background sweeper in main calls this
// periodically; limit bounds one sweep.
func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE id IN (
			SELECT id FROM idempotency_keys WHERE expires_at <= $1 LIMIT $2
		)`, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) find(ctx context.Context, id string) (Record, error) {
	var (
		record     Record
		status     string
		respStatus *int
		headers    []byte
		body       []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT fingerprint, status, response_status, response_headers, response_body,
			created_at, updated_at, expires_at
		FROM idempotency_keys WHERE id = $1`, id)
	err := row.Scan(&record.Fingerprint, &status, &respStatus, &headers, &body,
		&record.CreatedAt, &record.UpdatedAt, &record.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Raced with a concurrent Release; report in-flight so the caller retries.
		return Record{Status: StatusPending}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("idempotency: load %s: %w", id, err)
	}
	record.Key = id
	record.Status = Status(status)
	if respStatus != nil {
		record.ResponseStatus = *respStatus
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &record.ResponseHeaders); err != nil {
			return Record{}, fmt.Errorf("idempotency: decode headers for %s: %w", id, err)
		}
	}
	if len(body) > 0 {
		record.ResponseBody = append([]byte(nil), body...)
	}
	return record, nil
}
