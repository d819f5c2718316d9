package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/infrastructure/logger"
	"github.com/iho/splitledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"
)

// IdempotencyMiddleware replays the first successful response for a repeated
// Idempotency-Key. Keys are scoped to the authenticated user and the endpoint.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, l zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl, logger: l}
}

// storedResponse is what gets persisted under a key once the request is done.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		key = scopedKey(r, key)

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if exists {
			var prev storedResponse
			if err := json.Unmarshal(cached, &prev); err != nil || prev.Status == 0 {
				writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(IdempotencyReplayHeader, "true")
			w.WriteHeader(prev.Status)
			w.Write(prev.Body)
			return
		}

		log := logger.WithRequest(r.Context(), m.logger)

		// Anything but a 2xx, panics included, frees the key for a retry.
		completed := false
		defer func() {
			if completed {
				return
			}
			if err := m.store.Release(context.WithoutCancel(r.Context()), key); err != nil {
				log.Warn().Err(err).Msg("failed to release idempotency key")
			}
		}()

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode < 200 || recorder.statusCode >= 300 {
			return
		}
		completed = true

		record, err := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
		if err == nil {
			err = m.store.Update(context.WithoutCancel(r.Context()), key, record, m.ttl)
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to store idempotent response")
		}
	})
}

// scopedKey binds a client key to the caller and the endpoint, e.g.
// "ana:POST /api/v1/contexts/c1/entries:key-1".
func scopedKey(r *http.Request, key string) string {
	scope := r.Method + " " + r.URL.Path
	if s, ok := SessionFromContext(r.Context()); ok {
		scope = s.UserID + ":" + scope
	}
	return scope + ":" + key
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
