// Package alerts answers alert count questions for a spatial scope and
// period by composing dataset queries with geostore lookups.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/executor"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
	"github.com/mohammed-shakir/viirs-active-fires/internal/download"
	"github.com/mohammed-shakir/viirs-active-fires/internal/geostore"
	"github.com/mohammed-shakir/viirs-active-fires/internal/mapper"
	"github.com/mohammed-shakir/viirs-active-fires/internal/period"
	"github.com/mohammed-shakir/viirs-active-fires/internal/query"
)

// Datasets are the dataset ids of each table variant.
type Datasets struct {
	GadmDaily   string
	GadmAll     string
	GadmSummary string
	WdpaDaily   string
	WdpaSummary string
}

// GeometryPolicy decides what a missing geometry means for admin,
// protected-area and land-use scopes. World scopes always fail.
type GeometryPolicy string

const (
	GeometryDegrade GeometryPolicy = "degrade"
	GeometryFail    GeometryPolicy = "fail"
)

func ParseGeometryPolicy(s string) GeometryPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(GeometryFail)) {
		return GeometryFail
	}
	return GeometryDegrade
}

type Config struct {
	Datasets        Datasets
	LabelStyle      period.Style
	StrictModeFlags bool
	MissingGeometry GeometryPolicy
	Confidence      query.Confidence
}

// Options are the per-request knobs shared by every scope.
type Options struct {
	ForSubscription bool
	Group           bool
	Period          string
}

type Engine struct {
	logger    *slog.Logger
	exec      executor.Interface
	geo       geostore.Resolver
	downloads *download.Deriver
	annotator mapper.Interface
	cfg       Config
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithFeedAnnotator indexes every subscription feed point with m.
func WithFeedAnnotator(m mapper.Interface) EngineOption {
	return func(e *Engine) { e.annotator = m }
}

// WithClock replaces time.Now for default periods.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func New(logger *slog.Logger, exec executor.Interface, geo geostore.Resolver, downloads *download.Deriver, cfg Config, opts ...EngineOption) *Engine {
	if len(cfg.Confidence) == 0 {
		cfg.Confidence = query.ConfidenceCurrent
	}
	if cfg.MissingGeometry == "" {
		cfg.MissingGeometry = GeometryDegrade
	}
	if cfg.LabelStyle == "" {
		cfg.LabelStyle = period.StyleWeek
	}
	e := &Engine{
		logger:    logger,
		exec:      exec,
		geo:       geo,
		downloads: downloads,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// plan is everything needed to run one scope in any mode.
type plan struct {
	scope    model.Scope
	tpl      query.Scoped
	params   query.Params
	period   period.Period
	mode     Mode
	daily    string
	all      string
	summary  string
	geostore string
	// areaHa is the geostore area, used when the scope has no area template.
	areaHa            *float64
	areaOnlyOnFailure bool
}

func (e *Engine) prepare(opts Options) (period.Period, Mode, error) {
	p, err := period.Parse(opts.Period, e.now())
	if err != nil {
		return period.Period{}, 0, err
	}
	m, err := ResolveMode(opts.ForSubscription, opts.Group, e.cfg.StrictModeFlags)
	if err != nil {
		return period.Period{}, 0, err
	}
	return p, m, nil
}

// Admin answers for a country or one of its subdivisions. adm2 is ignored
// without adm1.
func (e *Engine) Admin(ctx context.Context, iso, adm1, adm2 string, opts Options) (*model.Result, error) {
	p, mode, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	if adm1 == "" {
		adm2 = ""
	}
	s := model.AdminScope(iso, adm1, adm2)
	g, err := e.lookupDegradable(ctx, s)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	return e.run(ctx, plan{
		scope:             s,
		tpl:               query.Admin(e.cfg.Confidence, adm1 != "", adm2 != ""),
		params:            query.Bind(p.BeginString(), p.EndString(), map[string]string{"iso": iso, "adm1": adm1, "adm2": adm2}),
		period:            p,
		mode:              mode,
		daily:             e.cfg.Datasets.GadmDaily,
		all:               e.cfg.Datasets.GadmAll,
		summary:           e.cfg.Datasets.GadmSummary,
		areaOnlyOnFailure: true,
	})
}

// Wdpa answers for a protected area.
func (e *Engine) Wdpa(ctx context.Context, wdpaID string, opts Options) (*model.Result, error) {
	p, mode, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	s := model.ProtectedAreaScope(wdpaID)
	g, err := e.lookupDegradable(ctx, s)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	return e.run(ctx, plan{
		scope:             s,
		tpl:               query.ProtectedArea(e.cfg.Confidence),
		params:            query.Bind(p.BeginString(), p.EndString(), map[string]string{"wdpaid": wdpaID}),
		period:            p,
		mode:              mode,
		daily:             e.cfg.Datasets.WdpaDaily,
		all:               e.cfg.Datasets.GadmAll,
		summary:           e.cfg.Datasets.WdpaSummary,
		geostore:          g.Hash,
		areaOnlyOnFailure: true,
	})
}

// Use answers for a land-use concession. It has no dedicated tables, so it
// resolves to a geostore and queries the all-points dataset through it.
func (e *Engine) Use(ctx context.Context, category, featureID string, opts Options) (*model.Result, error) {
	s, ok := model.LandUseScope(category, featureID)
	if !ok {
		return nil, fmt.Errorf("%w: land use category %q", ErrUnsupportedScope, category)
	}
	p, mode, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	g, err := e.geo.Resolve(ctx, s)
	if err != nil {
		if errors.Is(err, geostore.ErrGeometryNotFound) {
			return e.onMissing(s, err)
		}
		return nil, fmt.Errorf("resolve %s: %w", s, err)
	}
	return e.run(ctx, e.worldPlan(s, g, p, mode, true))
}

// World answers for an already registered geostore.
func (e *Engine) World(ctx context.Context, hash string, opts Options) (*model.Result, error) {
	p, mode, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	s := model.WorldScope(hash)
	if strings.TrimSpace(hash) == "" {
		return nil, fmt.Errorf("%w: empty geostore", ErrGeometryNotFound)
	}
	g, err := e.geo.Resolve(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s, err)
	}
	return e.run(ctx, e.worldPlan(s, g, p, mode, false))
}

// WorldWithGeoJSON registers geojson as a new geostore and answers for it.
func (e *Engine) WorldWithGeoJSON(ctx context.Context, raw []byte, opts Options) (*model.Result, error) {
	p, mode, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	s := model.WorldGeoJSONScope(raw)
	g, err := e.geo.Resolve(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s, err)
	}
	e.logger.Debug("registered geostore", "hash", g.Hash)
	return e.run(ctx, e.worldPlan(model.WorldScope(g.Hash), g, p, mode, false))
}

// Latest returns the newest alert dates, newest first. nil means the
// dataset has no rows.
func (e *Engine) Latest(ctx context.Context, limit int) (*model.Latest, error) {
	if limit <= 0 {
		limit = 1
	}
	sql, err := query.Latest().Render(query.Aggregate, query.LimitParams(limit))
	if err != nil {
		return nil, err
	}
	rows, err := e.exec.Query(ctx, e.cfg.Datasets.GadmAll, sql, "")
	if err != nil {
		return nil, fmt.Errorf("%w: latest: %w", ErrDownstreamQuery, err)
	}
	latest, err := executor.Decode[model.Latest](rows)
	if err != nil {
		return nil, fmt.Errorf("%w: latest: %w", ErrDownstreamQuery, err)
	}
	if len(latest) == 0 {
		return nil, nil
	}
	return &latest[0], nil
}

func (e *Engine) worldPlan(s model.Scope, g geostore.Geometry, p period.Period, mode Mode, areaOnly bool) plan {
	return plan{
		scope:             s,
		tpl:               query.World(e.cfg.Confidence),
		params:            query.Bind(p.BeginString(), p.EndString(), nil),
		period:            p,
		mode:              mode,
		all:               e.cfg.Datasets.GadmAll,
		geostore:          g.Hash,
		areaHa:            g.AreaHa,
		areaOnlyOnFailure: areaOnly,
	}
}

// lookupDegradable resolves geometry for scopes whose alert tables carry
// their own spatial key. A missing geometry is handled by the configured
// policy and comes back as (nil, nil) when degrading. Other lookup failures
// are logged and the request continues without a geostore.
func (e *Engine) lookupDegradable(ctx context.Context, s model.Scope) (*geostore.Geometry, error) {
	g, err := e.geo.Resolve(ctx, s)
	switch {
	case err == nil:
		return &g, nil
	case errors.Is(err, geostore.ErrGeometryNotFound):
		_, ferr := e.onMissing(s, err)
		return nil, ferr
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		e.logger.Warn("geostore lookup failed, continuing without geometry", "scope", s.String(), "err", err)
		return &geostore.Geometry{}, nil
	}
}

func (e *Engine) onMissing(s model.Scope, err error) (*model.Result, error) {
	if e.cfg.MissingGeometry == GeometryFail {
		return nil, fmt.Errorf("resolve %s: %w", s, err)
	}
	e.logger.Info("geometry not found, returning no data", "scope", s.String())
	return nil, nil
}

func (e *Engine) run(ctx context.Context, pl plan) (*model.Result, error) {
	switch pl.mode {
	case ModeSubscription:
		return e.runFeed(ctx, pl)
	case ModeGrouped:
		return e.runSeries(ctx, pl)
	default:
		return e.runAggregate(ctx, pl)
	}
}

func (e *Engine) runFeed(ctx context.Context, pl plan) (*model.Result, error) {
	sql, err := pl.tpl.Alerts.Render(query.Rows, pl.params)
	if err != nil {
		return nil, err
	}
	rows, err := e.exec.Query(ctx, pl.all, sql, pl.geostore)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.degraded(pl, "feed", err)
		return feedResult(nil), nil
	}
	points, err := executor.Decode[model.AlertPoint](rows)
	if err != nil {
		e.degraded(pl, "feed", err)
		return feedResult(nil), nil
	}
	if e.annotator != nil {
		if err := e.annotator.Annotate(points); err != nil {
			e.logger.Warn("feed annotation incomplete", "scope", pl.scope.String(), "err", err)
		}
	}
	return feedResult(points), nil
}

func (e *Engine) runSeries(ctx context.Context, pl plan) (*model.Result, error) {
	sql, err := pl.tpl.Alerts.Render(query.Grouped, pl.params)
	if err != nil {
		return nil, err
	}
	dataset, geo := pl.all, pl.geostore
	if pl.daily != "" {
		dataset, geo = pl.daily, ""
	}
	rows, err := e.exec.Query(ctx, dataset, sql, geo)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.degraded(pl, "series", err)
		return seriesResult(nil), nil
	}
	series, err := executor.Decode[model.DayValue](rows)
	if err != nil {
		e.degraded(pl, "series", err)
		return seriesResult(nil), nil
	}
	return seriesResult(series), nil
}

type valueRow struct {
	Value *float64 `json:"value"`
}

func firstValue(rows []valueRow) float64 {
	if len(rows) == 0 || rows[0].Value == nil {
		return 0
	}
	return *rows[0].Value
}

func (e *Engine) runAggregate(ctx context.Context, pl plan) (*model.Result, error) {
	alertSQL, err := pl.tpl.Alerts.Render(query.Aggregate, pl.params)
	if err != nil {
		return nil, err
	}
	var areaSQL string
	if pl.tpl.Area != nil {
		if areaSQL, err = pl.tpl.Area.Render(query.Aggregate, pl.params); err != nil {
			return nil, err
		}
	}

	parts := aggregateParts{
		label:             period.Label(pl.period, e.cfg.LabelStyle),
		areaHa:            pl.areaHa,
		areaOnlyOnFailure: pl.areaOnlyOnFailure,
	}

	// Query failures degrade in place. Only a cancelled request ctx is
	// returned, so an abandoned request never yields a degraded result.
	var g errgroup.Group
	g.Go(func() error {
		dataset, geo := pl.all, pl.geostore
		if pl.daily != "" {
			dataset, geo = pl.daily, ""
		}
		rows, err := e.exec.Query(ctx, dataset, alertSQL, geo)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.degraded(pl, "alerts", err)
			return nil
		}
		values, err := executor.Decode[valueRow](rows)
		if err != nil {
			e.degraded(pl, "alerts", err)
			return nil
		}
		parts.alertsOK = true
		parts.value = firstValue(values)
		return nil
	})
	if areaSQL != "" {
		parts.areaHa = nil
		g.Go(func() error {
			rows, err := e.exec.Query(ctx, pl.summary, areaSQL, "")
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.degraded(pl, "area", err)
				return nil
			}
			values, err := executor.Decode[valueRow](rows)
			if err != nil {
				e.degraded(pl, "area", err)
				return nil
			}
			if len(values) > 0 {
				parts.areaHa = values[0].Value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.downloads != nil {
		urls, err := e.downloads.Derive(pl.tpl.Alerts, pl.params, pl.all, pl.geostore)
		if err != nil {
			e.logger.Error("derive download urls", "scope", pl.scope.String(), "err", err)
		} else {
			parts.urls = urls
		}
	}
	return compose(parts), nil
}

func (e *Engine) degraded(pl plan, stage string, err error) {
	observability.IncDegraded(pl.scope.Kind.String(), stage)
	e.logger.Error("dataset query failed, degrading",
		"scope", pl.scope.String(),
		"stage", stage,
		"mode", pl.mode.String(),
		"err", fmt.Errorf("%w: %w", ErrDownstreamQuery, err))
}
