// Package idempotency lets clients retry mutating storefront requests,
// checkout above all, without double-submitting them. The client sends an
// Idempotency-Key header; the first request through stores its response and
// every retry with the same key gets that response replayed.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a stored key.
type Status string

const (
	// DefaultTTL bounds how long a completed response stays replayable.
	DefaultTTL = 24 * time.Hour

	// StatusPending marks a key held by an in-flight request.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored for replay.
	StatusCompleted Status = "completed"
)

// Outcome tells the middleware what to do after claiming a key.
type Outcome int

const (
	// OutcomeProceed means the key is fresh and the handler should run.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a stored response exists and must be returned
	// verbatim.
	OutcomeReplay
	// OutcomeInFlight means another request currently holds the key.
	OutcomeInFlight
)

// Claim is the result of claiming a key. Record is populated for replays.
type Claim struct {
	Outcome Outcome
	Record  Record
}

// Record is the stored state of one idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the handler output persisted for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists key claims and replayable responses.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch reports a key reused for a different request. The
// client must pick a fresh key instead of recycling one.
var ErrFingerprintMismatch = errors.New("idempotency: key reused for a different request")

// recordID is the storage identifier for a key. Hashing keeps client-chosen
// keys at a fixed, index-friendly length.
func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders filters out transport-level headers that must not be
// replayed from storage, returning nil when nothing survives.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if hopByHopHeader(canonical) {
			continue
		}
		kept[canonical] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func hopByHopHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive",
		"proxy-authenticate", "proxy-authorization", "te", "trailers",
		"transfer-encoding", "upgrade":
		return true
	}
	return false
}

func restoreHeaders(stored map[string][]string) http.Header {
	header := make(http.Header, len(stored))
	for name, values := range stored {
		header[name] = append([]string(nil), values...)
	}
	return header
}
