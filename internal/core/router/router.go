// Package router exposes the fire alert operations over HTTP as JSON:API
// documents.
package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/alerts"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/middleware"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
)

const maxBodyBytes = 8 << 20

// Alerts is the engine surface served by the router.
type Alerts interface {
	Admin(ctx context.Context, iso, adm1, adm2 string, opts alerts.Options) (*model.Result, error)
	Wdpa(ctx context.Context, wdpaID string, opts alerts.Options) (*model.Result, error)
	Use(ctx context.Context, category, featureID string, opts alerts.Options) (*model.Result, error)
	World(ctx context.Context, hash string, opts alerts.Options) (*model.Result, error)
	WorldWithGeoJSON(ctx context.Context, raw []byte, opts alerts.Options) (*model.Result, error)
	Latest(ctx context.Context, limit int) (*model.Latest, error)
}

type Handler struct {
	svc     Alerts
	version Version
	logger  *slog.Logger
}

func New(svc Alerts, v Version, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, version: v, logger: logger.With("api", v.Name)}
}

// Prefix is where this version's routes are mounted.
func (h *Handler) Prefix() string {
	return "/api/" + h.version.Name + "/viirs-active-fires"
}

// Routes registers the version's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.observe)
	r.Use(forwardAPIKey)

	r.Get("/admin/{iso}", h.admin)
	r.Get("/admin/{iso}/{id1}", h.admin)
	r.Get("/admin/{iso}/{id1}/{id2}", h.admin)
	r.Get("/use/{name}/{id}", h.use)
	r.Get("/wdpa/{id}", h.wdpa)
	r.Get("/latest", h.latest)
	r.Get("/", h.world)
	r.Post("/", h.worldWithGeoJSON)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	p, err := parseAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "obtaining admin data", "iso", p.ISO, "id1", p.ID1, "id2", p.ID2)
	res, err := h.svc.Admin(r.Context(), p.ISO, p.ID1, p.ID2, opts)
	h.respond(w, r, res, err)
}

func (h *Handler) wdpa(w http.ResponseWriter, r *http.Request) {
	p := wdpaParams{ID: chi.URLParam(r, "id")}
	if err := check(p); err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "obtaining wdpa data", "id", p.ID)
	res, err := h.svc.Wdpa(r.Context(), p.ID, opts)
	h.respond(w, r, res, err)
}

func (h *Handler) use(w http.ResponseWriter, r *http.Request) {
	p := useParams{Name: chi.URLParam(r, "name"), ID: chi.URLParam(r, "id")}
	if err := check(p); err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "obtaining use data", "name", p.Name, "id", p.ID)
	res, err := h.svc.Use(r.Context(), p.Name, p.ID, opts)
	h.respond(w, r, res, err)
}

func (h *Handler) world(w http.ResponseWriter, r *http.Request) {
	p := worldParams{Geostore: strings.TrimSpace(r.URL.Query().Get("geostore"))}
	if err := check(p); err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "obtaining world data", "geostore", p.Geostore)
	res, err := h.svc.World(r.Context(), p.Geostore, opts)
	h.respond(w, r, res, err)
}

func (h *Handler) worldWithGeoJSON(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	raw, err := readGeoJSON(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "obtaining world data with geojson", "bytes", len(raw))
	res, err := h.svc.WorldWithGeoJSON(r.Context(), raw, opts)
	h.respond(w, r, res, err)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	p, err := parseLatest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.svc.Latest(r.Context(), p.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.version.serializeLatest(l))
}

func readGeoJSON(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &errBadParam{Param: "body"}
		}
		return nil, err
	}
	var in struct {
		GeoJSON json.RawMessage `json:"geojson"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			return nil, &errBadParam{Param: "body"}
		}
	}
	if g := strings.TrimSpace(string(in.GeoJSON)); g == "" || g == "null" {
		return nil, errGeoJSONRequired
	}
	return in.GeoJSON, nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res *model.Result, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.version.serialize(res))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	middleware.WriteError(w, status, detail)
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &middleware.StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(sw, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.ObserveHTTP(r.Method, route, sw.Status, time.Since(start).Seconds())
	})
}

func forwardAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("x-api-key"); key != "" {
			r = r.WithContext(httpclient.ContextWithAPIKey(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}
