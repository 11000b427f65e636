package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/cache"
	"github.com/mohammed-shakir/viirs-active-fires/internal/cache/keys"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
	mylog "github.com/mohammed-shakir/viirs-active-fires/internal/logger"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache serves repeated GET requests from store. Only 2xx responses are
// stored. Cache failures are logged and the request falls through to next.
func ResponseCache(store cache.Interface, ttl, opTimeout time.Duration, l *slog.Logger) func(http.Handler) http.Handler {
	driver := store.Driver()
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key := keys.Response(r.URL.Path, r.URL.RawQuery)

			if hit, ok := lookup(r.Context(), store, key, opTimeout, l); ok {
				observability.IncCacheHit(driver)
				if hit.ContentType != "" {
					w.Header().Set("Content-Type", hit.ContentType)
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(hit.Status)
				_, _ = w.Write(hit.Body)
				return
			}
			observability.IncCacheMiss(driver)

			ctx := mylog.WithCacheOutcome(r.Context(), "miss")
			w.Header().Set("X-Cache", "MISS")
			rec := &bodyRecorder{StatusWriter: StatusWriter{ResponseWriter: w, Status: http.StatusOK}}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.Status < 200 || rec.Status > 299 {
				return
			}
			// A response built for an abandoned request may be partial.
			if r.Context().Err() != nil {
				return
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      rec.Status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return
			}
			sctx, cancel := opContext(r.Context(), opTimeout)
			defer cancel()
			if err := store.Set(sctx, key, payload, ttl); err != nil {
				observability.IncCacheError(driver)
				l.WarnContext(ctx, "response cache store failed", "err", err, "driver", driver)
			}
		}
		return http.HandlerFunc(fn)
	}
}

func lookup(ctx context.Context, store cache.Interface, key string, timeout time.Duration, l *slog.Logger) (cachedResponse, bool) {
	gctx, cancel := opContext(ctx, timeout)
	defer cancel()

	raw, ok, err := store.Get(gctx, key)
	if err != nil {
		observability.IncCacheError(store.Driver())
		l.WarnContext(ctx, "response cache lookup failed", "err", err, "driver", store.Driver())
		return cachedResponse{}, false
	}
	if !ok {
		return cachedResponse{}, false
	}
	var c cachedResponse
	if err := json.Unmarshal(raw, &c); err != nil || c.Status == 0 {
		return cachedResponse{}, false
	}
	return c, true
}

// opContext detaches from request cancellation for the bounded store call.
func opContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

type bodyRecorder struct {
	StatusWriter
	buf bytes.Buffer
}

func (b *bodyRecorder) Write(p []byte) (int, error) {
	b.buf.Write(p)
	return b.StatusWriter.Write(p)
}
