package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/alerts"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/executor"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
	"github.com/mohammed-shakir/viirs-active-fires/internal/download"
	"github.com/mohammed-shakir/viirs-active-fires/internal/geostore"
	"github.com/mohammed-shakir/viirs-active-fires/internal/query"
)

const hash = "351cfa10a38f86eeacad8a86ab7ce845"

const geostoreDoc = `{"data":{"type":"geoStore","id":"` + hash + `","attributes":{` +
	`"geojson":{"type":"FeatureCollection","features":[]},"hash":"` + hash + `","areaHa":394733.6044288499}}}`

var datasets = alerts.Datasets{
	GadmDaily:   "gadm-daily",
	GadmAll:     "gadm-all",
	GadmSummary: "gadm-summary",
	WdpaDaily:   "wdpa-daily",
	WdpaSummary: "wdpa-summary",
}

// fakeGateway plays both the dataset query engine and the geostore service.
type fakeGateway struct {
	mu       sync.Mutex
	requests []*http.Request
	apiKeys  []string
	// replies maps "dataset|sql prefix" to a JSON rows array.
	replies  map[string]string
	notFound map[string]bool
	failing  map[string]bool
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.apiKeys = append(f.apiKeys, r.Header.Get("x-api-key"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/v1/geostore"):
		if f.notFound[strings.TrimPrefix(r.URL.Path, "/v1/geostore/")] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"status":404,"detail":"GeoStore not found"}]}`)
			return
		}
		_, _ = io.WriteString(w, geostoreDoc)
	case strings.HasPrefix(r.URL.Path, "/v1/query/"):
		ds := strings.TrimPrefix(r.URL.Path, "/v1/query/")
		if f.failing[ds] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"errors":[{"status":500}]}`)
			return
		}
		sql := r.URL.Query().Get("sql")
		for key, rows := range f.replies {
			d, prefix, _ := strings.Cut(key, "|")
			if d == ds && strings.HasPrefix(sql, prefix) {
				_, _ = io.WriteString(w, `{"data":`+rows+`}`)
				return
			}
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGateway) queries(ds string) []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*http.Request
	for _, r := range f.requests {
		if r.URL.Path == "/v1/query/"+ds {
			out = append(out, r)
		}
	}
	return out
}

func newTestServer(t *testing.T, f *fakeGateway, cfg alerts.Config) http.Handler {
	t.Helper()
	gw := httptest.NewServer(f)
	t.Cleanup(gw.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsUp, err := httpclient.NewUpstream("dataset", gw.URL+"/v1", gw.Client(), httpclient.WithAPIKey("service-key"))
	if err != nil {
		t.Fatalf("NewUpstream: %v", err)
	}
	geoUp, err := httpclient.NewUpstream("geostore", gw.URL+"/v1", gw.Client(), httpclient.WithAPIKey("service-key"))
	if err != nil {
		t.Fatalf("NewUpstream: %v", err)
	}
	exec := executor.New(logger, dsUp)
	geo := geostore.New(logger, geoUp)

	cfg.Datasets = datasets
	if cfg.Confidence == nil {
		cfg.Confidence = query.ConfidenceCurrent
	}
	clock := alerts.WithClock(func() time.Time { return time.Date(2020, 4, 23, 12, 0, 0, 0, time.UTC) })

	r := chi.NewRouter()
	for _, v := range []struct {
		version Version
		formats []string
	}{{V1, download.FormatsV1}, {V2, download.FormatsV2}} {
		eng := alerts.New(logger, exec, geo, download.NewDeriver("https://data.example.org/v1", v.formats), cfg, clock)
		h := New(eng, v.version, logger)
		r.Route(h.Prefix(), h.Routes)
	}
	return r
}

type doc struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Status int    `json:"status"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type single struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

func do(t *testing.T, h http.Handler, method, target, body string, hdr ...string) (int, doc) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var d doc
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode %s %s: %v\n%s", method, target, err, rr.Body.String())
	}
	return rr.Code, d
}

func lbrGateway() *fakeGateway {
	return &fakeGateway{replies: map[string]string{
		"gadm-daily|SELECT SUM(alert__count)":  `[{"value":2415}]`,
		"gadm-summary|SELECT SUM(area__ha)":    `[{"value":11.137}]`,
		"gadm-all|SELECT latitude":             `[{"latitude":6.3,"longitude":-10.8,"acq_date":"2020-04-22","acq_time":1336},{"latitude":6.4,"longitude":-10.7,"acq_date":"2020-04-23","acq_time":145}]`,
		"gadm-daily|SELECT alert__date as day": `[{"day":"2020-04-22","value":1200},{"day":"2020-04-23","value":1215}]`,
		"gadm-all|SELECT SUM(alert__count)":    `[{"value":2415}]`,
		"gadm-all|SELECT alert__date as date":  `[{"date":"2020-04-26"}]`,
		"wdpa-daily|SELECT SUM(alert__count)":  `[{"value":7}]`,
		"wdpa-summary|SELECT SUM(area__ha)":    `[{"value":42.5}]`,
	}}
}

func TestAdmin_AggregateV1(t *testing.T) {
	f := lbrGateway()
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/LBR?period=2020-04-22,2020-04-23", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
	var res single
	if err := json.Unmarshal(d.Data, &res); err != nil {
		t.Fatalf("data: %v", err)
	}
	if res.Type != "viirs-fires" {
		t.Fatalf("type=%q", res.Type)
	}
	a := res.Attributes
	if a["value"] != 2415.0 || a["areaHa"] != 11.137 || a["period"] != "Past 24 hours" {
		t.Fatalf("attributes=%v", a)
	}
	urls, _ := a["downloadUrls"].(map[string]any)
	if len(urls) != len(download.FormatsV1) || urls["geojson"] == nil {
		t.Fatalf("downloadUrls=%v", urls)
	}
	if _, ok := a["area_ha"]; ok {
		t.Fatalf("attribute keys must be camelCase: %v", a)
	}
}

func TestAdmin_AggregateV2Formats(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v2/viirs-active-fires/admin/LBR?period=2020-04-22,2020-04-23", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	var res single
	_ = json.Unmarshal(d.Data, &res)
	if res.Type != "viirs-active-fires" {
		t.Fatalf("type=%q", res.Type)
	}
	urls, _ := res.Attributes["downloadUrls"].(map[string]any)
	if urls["json"] == nil || urls["geojson"] != nil {
		t.Fatalf("v2 downloadUrls=%v", urls)
	}
}

func TestAdmin_SubscriptionFeed(t *testing.T) {
	f := lbrGateway()
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/LBR?period=2020-04-22,2020-04-23&forSubscription=true", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	var rows []single
	if err := json.Unmarshal(d.Data, &rows); err != nil {
		t.Fatalf("data must be an array: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	for _, r := range rows {
		if _, ok := r.Attributes["latitude"]; !ok {
			t.Fatalf("row without latitude: %v", r.Attributes)
		}
	}
	if rows[0].Attributes["acqDate"] != "2020-04-22" || rows[0].Attributes["acqTime"] != 1336.0 {
		t.Fatalf("row=%v", rows[0].Attributes)
	}
	if len(f.queries("gadm-all")) != 1 {
		t.Fatalf("feed must query the all-points dataset")
	}
}

func TestAdmin_GroupedSeries(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v2/viirs-active-fires/admin/LBR/1?period=2020-04-22,2020-04-23&group=true", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	var rows []single
	if err := json.Unmarshal(d.Data, &rows); err != nil || len(rows) != 2 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
	if rows[0].Attributes["day"] != "2020-04-22" {
		t.Fatalf("row=%v", rows[0].Attributes)
	}
}

func TestAdmin_ConflictingModes(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/LBR?forSubscription=true&group=true", "")
	if code != http.StatusBadRequest || len(d.Errors) != 1 || d.Errors[0].Status != 400 {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
}

func TestAdmin_InvalidInput(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	cases := map[string]string{
		"/api/v1/viirs-active-fires/admin/LBR?period=2020-04-23,2020-04-22": "Invalid period",
		"/api/v1/viirs-active-fires/admin/LB'R":                             "Invalid iso",
		"/api/v1/viirs-active-fires/admin/BRA/1'--":                         "Invalid id1",
		"/api/v1/viirs-active-fires/wdpa/abc":                               "Invalid id",
		"/api/v1/viirs-active-fires/latest?limit=0":                         "Invalid limit",
		"/api/v1/viirs-active-fires/use/../1":                               "Invalid name",
		"/api/v1/viirs-active-fires/use/oilpalm/1.2":                        "Invalid id",
		"/api/v1/viirs-active-fires/use/oil'palm/1":                         "Invalid name",
	}
	for target, detail := range cases {
		code, d := do(t, h, http.MethodGet, target, "")
		if code != http.StatusBadRequest || len(d.Errors) == 0 || d.Errors[0].Detail != detail {
			t.Fatalf("%s: code=%d errors=%+v", target, code, d.Errors)
		}
	}
}

func TestAdmin_MissingGeometryDegrades(t *testing.T) {
	f := lbrGateway()
	f.notFound = map[string]bool{"admin/foo": true}
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true, MissingGeometry: alerts.GeometryDegrade})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/foo", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if string(d.Data) != "null" {
		t.Fatalf("data=%s want null", d.Data)
	}
}

func TestAdmin_MissingGeometryFailPolicy(t *testing.T) {
	f := lbrGateway()
	f.notFound = map[string]bool{"admin/foo": true}
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true, MissingGeometry: alerts.GeometryFail})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/foo", "")
	if code != http.StatusNotFound || d.Errors[0].Detail != "Geostore not found" {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
}

func TestWdpa_UsesGeostoreInDownloads(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/wdpa/10?period=2020-04-22,2020-04-23", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	var res single
	_ = json.Unmarshal(d.Data, &res)
	if res.Attributes["value"] != 7.0 || res.Attributes["areaHa"] != 42.5 {
		t.Fatalf("attributes=%v", res.Attributes)
	}
	urls, _ := res.Attributes["downloadUrls"].(map[string]any)
	csv, _ := urls["csv"].(string)
	if !strings.HasSuffix(csv, "&geostore="+hash) {
		t.Fatalf("csv=%q", csv)
	}
}

func TestWorld_GeostoreNotFound(t *testing.T) {
	f := lbrGateway()
	f.notFound = map[string]bool{"deadbeef": true}
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v2/viirs-active-fires?geostore=deadbeef", "")
	if code != http.StatusNotFound || d.Errors[0].Detail != "Geostore not found" {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
}

func TestWorld_ByHash(t *testing.T) {
	f := lbrGateway()
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/?geostore="+hash+"&period=2020-04-22,2020-04-23", "",
		"x-api-key", "caller-key")
	if code != http.StatusOK {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
	var res single
	_ = json.Unmarshal(d.Data, &res)
	if res.Attributes["value"] != 2415.0 || res.Attributes["areaHa"] != 394733.6044288499 {
		t.Fatalf("attributes=%v", res.Attributes)
	}
	q := f.queries("gadm-all")
	if len(q) == 0 || q[0].URL.Query().Get("geostore") != hash {
		t.Fatalf("world query must carry the geostore")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.apiKeys {
		if k != "caller-key" {
			t.Fatalf("caller api key not forwarded: %v", f.apiKeys)
		}
	}
}

func TestWorldWithGeoJSON(t *testing.T) {
	f := lbrGateway()
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	body := `{"geojson":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	code, d := do(t, h, http.MethodPost, "/api/v2/viirs-active-fires?period=2020-04-22,2020-04-23", body)
	if code != http.StatusOK {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
	var res single
	_ = json.Unmarshal(d.Data, &res)
	if res.Attributes["value"] != 2415.0 || res.Attributes["areaHa"] != 394733.6044288499 {
		t.Fatalf("attributes=%v", res.Attributes)
	}

	code, d = do(t, h, http.MethodPost, "/api/v2/viirs-active-fires", `{}`)
	if code != http.StatusBadRequest || d.Errors[0].Detail != "GeoJSON param required" {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
}

func TestLatest_PerVersion(t *testing.T) {
	h := newTestServer(t, lbrGateway(), alerts.Config{StrictModeFlags: true})

	for target, attr := range map[string]string{
		"/api/v1/viirs-active-fires/latest": "date",
		"/api/v2/viirs-active-fires/latest": "latest",
	} {
		code, d := do(t, h, http.MethodGet, target, "")
		if code != http.StatusOK {
			t.Fatalf("%s: code=%d", target, code)
		}
		var res single
		_ = json.Unmarshal(d.Data, &res)
		if res.Type != "viirs-latest" || res.Attributes[attr] != "2020-04-26" {
			t.Fatalf("%s: %+v", target, res)
		}
	}
}

func TestLatest_DownstreamFailure(t *testing.T) {
	f := lbrGateway()
	f.failing = map[string]bool{"gadm-all": true}
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/latest", "")
	if code != http.StatusBadGateway || d.Errors[0].Status != 502 {
		t.Fatalf("code=%d errors=%+v", code, d.Errors)
	}
}

func TestAdmin_AlertQueryFailureKeepsArea(t *testing.T) {
	f := lbrGateway()
	f.failing = map[string]bool{"gadm-daily": true}
	h := newTestServer(t, f, alerts.Config{StrictModeFlags: true})

	code, d := do(t, h, http.MethodGet, "/api/v1/viirs-active-fires/admin/LBR?period=2020-04-22,2020-04-23", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	var res single
	_ = json.Unmarshal(d.Data, &res)
	if _, ok := res.Attributes["value"]; ok || res.Attributes["areaHa"] != 11.137 {
		t.Fatalf("expected area-only shape, got %v", res.Attributes)
	}
}
