package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
)

type upstreamRecorder struct {
	mu        sync.Mutex
	lastPath  string
	lastQuery url.Values
	lastKey   string
	body      string
}

func (u *upstreamRecorder) handler(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.lastPath = r.URL.Path
	u.lastQuery = r.URL.Query()
	u.lastKey = r.Header.Get("x-api-key")
	body := u.body
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func newExecutor(t *testing.T, up *upstreamRecorder) *Executor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	t.Cleanup(srv.Close)
	u, err := httpclient.NewUpstream("dataset", srv.URL+"/v1", srv.Client(), httpclient.WithAPIKey("k"))
	if err != nil {
		t.Fatalf("NewUpstream: %v", err)
	}
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), u)
}

func TestExecutor_Query_EncodesSQLAndGeostore(t *testing.T) {
	up := &upstreamRecorder{body: `{"data":[{"value":2415}]}`}
	exec := newExecutor(t, up)

	sql := "SELECT SUM(alert__count) AS value FROM table WHERE alert__date >= '2020-04-22'"
	rows, err := exec.Query(context.Background(), "daily-ds", sql, "abc")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d want 1", len(rows))
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if up.lastPath != "/v1/query/daily-ds" {
		t.Fatalf("upstream path=%q", up.lastPath)
	}
	if got := up.lastQuery.Get("sql"); got != sql {
		t.Fatalf("sql=%q want %q", got, sql)
	}
	if got := up.lastQuery.Get("geostore"); got != "abc" {
		t.Fatalf("geostore=%q", got)
	}
	if up.lastKey != "k" {
		t.Fatalf("api key not forwarded")
	}
}

func TestExecutor_Query_NoGeostoreParam(t *testing.T) {
	up := &upstreamRecorder{body: `{}`}
	exec := newExecutor(t, up)

	rows, err := exec.Query(context.Background(), "ds", "SELECT 1", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("missing data array must be empty, got %d rows", len(rows))
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if _, ok := up.lastQuery["geostore"]; ok {
		t.Fatalf("geostore param must be absent")
	}
}

func TestExecutor_Query_Malformed(t *testing.T) {
	up := &upstreamRecorder{body: `<html>`}
	exec := newExecutor(t, up)
	if _, err := exec.Query(context.Background(), "ds", "SELECT 1", ""); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err=%v want ErrMalformedResponse", err)
	}
}

func TestDecode(t *testing.T) {
	up := &upstreamRecorder{body: `{"data":[{"value":1.5},{"value":null}]}`}
	exec := newExecutor(t, up)
	rows, err := exec.Query(context.Background(), "ds", "SELECT 1", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	type row struct {
		Value *float64 `json:"value"`
	}
	got, err := Decode[row](rows)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got[0].Value == nil || *got[0].Value != 1.5 || got[1].Value != nil {
		t.Fatalf("decoded=%+v", got)
	}
}
