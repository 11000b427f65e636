package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
)

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Upstream string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream status %d: %s", e.Upstream, e.Status, e.Body)
}

// IsStatus reports whether err carries an upstream status equal to code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}

// Upstream issues requests against one named service below a base URL.
type Upstream struct {
	name    string
	base    *url.URL
	client  *http.Client
	apiKey  string
	breaker *Breaker
	now     func() time.Time
}

type Option func(*Upstream)

type apiKeyCtxKey struct{}

// ContextWithAPIKey makes every upstream call made with ctx forward key
// instead of the configured one.
func ContextWithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

func apiKeyFrom(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(apiKeyCtxKey{}).(string); ok && v != "" {
		return v
	}
	return fallback
}

// WithAPIKey sends key as x-api-key on every request.
func WithAPIKey(key string) Option {
	return func(u *Upstream) { u.apiKey = key }
}

// WithBreaker routes every request through b.
func WithBreaker(b *Breaker) Option {
	return func(u *Upstream) { u.breaker = b }
}

func NewUpstream(name, baseURL string, client *http.Client, opts ...Option) (*Upstream, error) {
	b, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if b.Scheme == "" || b.Host == "" {
		return nil, fmt.Errorf("parse %s url: %q is not absolute", name, baseURL)
	}
	if client == nil {
		client = NewOutbound(0)
	}
	u := &Upstream{name: name, base: b, client: client, now: time.Now}
	for _, o := range opts {
		o(u)
	}
	return u, nil
}

func (u *Upstream) Name() string { return u.name }

// Get fetches base+path with rawQuery already encoded by the caller.
func (u *Upstream) Get(ctx context.Context, path, rawQuery string) ([]byte, error) {
	return u.do(ctx, http.MethodGet, path, rawQuery, nil)
}

// PostJSON sends body as application/json.
func (u *Upstream) PostJSON(ctx context.Context, path string, body []byte) ([]byte, error) {
	return u.do(ctx, http.MethodPost, path, "", body)
}

func (u *Upstream) do(ctx context.Context, method, path, rawQuery string, body []byte) ([]byte, error) {
	if u.breaker == nil {
		return u.roundTrip(ctx, method, path, rawQuery, body)
	}
	return u.breaker.Execute(func() ([]byte, error) {
		return u.roundTrip(ctx, method, path, rawQuery, body)
	})
}

func (u *Upstream) roundTrip(ctx context.Context, method, path, rawQuery string, body []byte) ([]byte, error) {
	target := *u.base
	target.Path = u.base.Path + "/" + strings.TrimLeft(path, "/")
	target.RawPath = ""
	target.RawQuery = rawQuery

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := apiKeyFrom(ctx, u.apiKey); key != "" {
		req.Header.Set("x-api-key", key)
	}

	start := u.now()
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(u.name, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &StatusError{Upstream: u.name, Status: resp.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
