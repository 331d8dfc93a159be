package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/platform/observability"
)

const (
	keyHeader    = "Idempotency-Key"
	replayHeader = "X-Idempotent-Replay"

	anonymousShopper = "anonymous"
)

// Logger is the minimal logging contract the middleware needs for store
// failures it cannot surface to the client.
type Logger interface {
	Printf(format string, args ...any)
}

type middlewareConfig struct {
	ttl    time.Duration
	clock  func() time.Time
	logger Logger
}

// Option customises middleware behaviour.
type Option func(*middlewareConfig)

// WithTTL sets how long completed responses stay replayable.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithLogger injects a logger for persistence errors.
func WithLogger(logger Logger) Option {
	return func(cfg *middlewareConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware enforces idempotency for mutating requests: POST, PUT, PATCH and
// DELETE must carry an Idempotency-Key header, and retries with the same key
// replay the stored response instead of re-running the handler. A nil store
// disables the guard entirely.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		ttl:   DefaultTTL,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutatingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			key := strings.TrimSpace(r.Header.Get(keyHeader))
			if key == "" {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required",
					"the "+keyHeader+" header is required for this request", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("request_body_unreadable",
					"unable to read the request body", http.StatusInternalServerError))
				return
			}

			shopper := shopperScope(r)
			fingerprint := requestFingerprint(r, body, shopper)
			storageKey := scopeKey(key, shopper)
			now := cfg.clock().UTC()

			claim, err := store.Claim(ctx, storageKey, fingerprint, now, cfg.ttl)
			if err != nil {
				writeStoreError(ctx, w, cfg.logger, err)
				return
			}

			switch claim.Outcome {
			case OutcomeReplay:
				replayResponse(w, claim.Record)
				return
			case OutcomeInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress",
					"another request is still processing this idempotency key", http.StatusConflict))
				return
			}

			buffered := newBufferedResponse()
			next.ServeHTTP(buffered, r)

			if err := store.Complete(ctx, storageKey, fingerprint, buffered.snapshot(), cfg.clock().UTC(), cfg.ttl); err != nil {
				if cfg.logger != nil {
					cfg.logger.Printf("idempotency: persist response for key %s (session %s): %v", key, shopper, err)
				}
				if releaseErr := store.Release(ctx, storageKey, fingerprint); releaseErr != nil && cfg.logger != nil {
					cfg.logger.Printf("idempotency: release key %s after persist failure: %v", key, releaseErr)
				}
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error",
					"unable to record the request outcome", http.StatusInternalServerError))
				return
			}

			if err := buffered.flush(w); err != nil && cfg.logger != nil {
				cfg.logger.Printf("idempotency: flush response for key %s: %v", key, err)
			}
		})
	}
}

func mutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// bufferBody drains the request body and puts an equivalent reader back so
// the handler still sees it.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// shopperScope identifies the requester. Keys are scoped to the cart session
// so two shoppers who happen to generate the same key never see each other's
// responses.
func shopperScope(r *http.Request) string {
	if session := strings.TrimSpace(r.Header.Get(observability.SessionHeader)); session != "" {
		return session
	}
	return anonymousShopper
}

func requestFingerprint(r *http.Request, body []byte, shopper string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.Host,
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		shopper,
		bodyDigest(body),
	}
	return sha256Hex([]byte(strings.Join(parts, "\n")))
}

func bodyDigest(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return sha256Hex(body)
}

func scopeKey(key, shopper string) string {
	key = strings.TrimSpace(key)
	shopper = strings.TrimSpace(shopper)
	if shopper == "" {
		shopper = anonymousShopper
	}
	if key == "" {
		return shopper
	}
	return key + "|" + shopper
}

func writeStoreError(ctx context.Context, w http.ResponseWriter, logger Logger, err error) {
	if errors.Is(err, ErrFingerprintMismatch) {
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict",
			"this idempotency key was already used for a different request", http.StatusConflict))
		return
	}
	if logger != nil {
		logger.Printf("idempotency: claim failed: %v", err)
	}
	httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error",
		"unable to process the idempotency key", http.StatusInternalServerError))
}

func replayResponse(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name := range header {
		header.Del(name)
	}
	for name, values := range restoreHeaders(record.ResponseHeaders) {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	header.Set(replayHeader, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// bufferedResponse captures the handler's output so it can be persisted
// before anything reaches the client.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	b.status = status
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) statusOrOK() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) snapshot() Response {
	resp := Response{Status: b.statusOrOK(), Headers: b.header.Clone()}
	if b.body.Len() > 0 {
		resp.Body = b.body.Bytes()
	}
	return resp
}

func (b *bufferedResponse) flush(w http.ResponseWriter) error {
	dst := w.Header()
	for name := range dst {
		dst.Del(name)
	}
	for name, values := range b.header {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
	w.WriteHeader(b.statusOrOK())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(b.body.Bytes())
	return err
}
