// Package geostore resolves spatial scopes to registered geometries through
// the geostore service.
package geostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/geojson"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

var (
	ErrGeometryNotFound = errors.New("geometry not found")
	// ErrGeometryRejected is a 4xx from geostore registration.
	ErrGeometryRejected = errors.New("geometry rejected")
)

// Geometry is a registered geostore entry.
type Geometry struct {
	Hash    string
	AreaHa  *float64
	GeoJSON json.RawMessage
}

type Resolver interface {
	Resolve(ctx context.Context, s model.Scope) (Geometry, error)
}

type Client struct {
	logger   *slog.Logger
	upstream *httpclient.Upstream
}

func New(logger *slog.Logger, upstream *httpclient.Upstream) *Client {
	return &Client{logger: logger, upstream: upstream}
}

type document struct {
	Data *struct {
		ID         string `json:"id"`
		Attributes struct {
			GeoJSON json.RawMessage `json:"geojson"`
			AreaHa  *float64        `json:"areaHa"`
			Hash    string          `json:"hash"`
		} `json:"attributes"`
	} `json:"data"`
}

func decode(b []byte) (Geometry, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Geometry{}, fmt.Errorf("decode geostore: %w", err)
	}
	if doc.Data == nil {
		return Geometry{}, ErrGeometryNotFound
	}
	g := Geometry{
		Hash:    doc.Data.ID,
		AreaHa:  doc.Data.Attributes.AreaHa,
		GeoJSON: doc.Data.Attributes.GeoJSON,
	}
	if g.Hash == "" {
		g.Hash = doc.Data.Attributes.Hash
	}
	return g, nil
}

// Get fetches geostore/{path}. A 404 or an entry without geojson is
// ErrGeometryNotFound.
func (c *Client) Get(ctx context.Context, path string) (Geometry, error) {
	c.logger.Debug("obtaining geostore", "path", path)
	b, err := c.upstream.Get(ctx, "geostore/"+strings.TrimLeft(path, "/"), "")
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return Geometry{}, fmt.Errorf("%w: %s", ErrGeometryNotFound, path)
		}
		return Geometry{}, fmt.Errorf("get geostore %s: %w", path, err)
	}
	g, err := decode(b)
	if err != nil {
		return Geometry{}, err
	}
	if isEmptyJSON(g.GeoJSON) {
		return Geometry{}, fmt.Errorf("%w: %s has no geojson", ErrGeometryNotFound, path)
	}
	return g, nil
}

// Create registers geojson and returns the new entry.
func (c *Client) Create(ctx context.Context, raw json.RawMessage) (Geometry, error) {
	body, err := json.Marshal(struct {
		GeoJSON json.RawMessage `json:"geojson"`
	}{raw})
	if err != nil {
		return Geometry{}, fmt.Errorf("encode geostore body: %w", err)
	}
	b, err := c.upstream.PostJSON(ctx, "geostore", body)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
			return Geometry{}, fmt.Errorf("%w: %w", ErrGeometryRejected, err)
		}
		return Geometry{}, fmt.Errorf("create geostore: %w", err)
	}
	g, err := decode(b)
	if err != nil {
		return Geometry{}, err
	}
	if g.Hash == "" {
		return Geometry{}, errors.New("create geostore: response has no id")
	}
	c.logger.Debug("created geostore", "hash", g.Hash)
	return g, nil
}

// Resolve maps a scope to its geometry. WorldGeoJSON scopes are promoted to
// a FeatureCollection, registered, and then looked up by the new hash.
func (c *Client) Resolve(ctx context.Context, s model.Scope) (Geometry, error) {
	switch s.Kind {
	case model.ScopeAdmin, model.ScopeProtectedArea, model.ScopeLandUse, model.ScopeWorld:
		return c.Get(ctx, s.GeostorePath())
	case model.ScopeWorldGeoJSON:
		promoted, err := geojson.Promote(s.GeoJSON)
		if err != nil {
			return Geometry{}, fmt.Errorf("%w: %w", ErrGeometryRejected, err)
		}
		created, err := c.Create(ctx, promoted)
		if err != nil {
			return Geometry{}, err
		}
		return c.Get(ctx, created.Hash)
	default:
		return Geometry{}, fmt.Errorf("resolve %s: unsupported scope", s.Kind)
	}
}

func isEmptyJSON(r json.RawMessage) bool {
	t := strings.TrimSpace(string(r))
	return t == "" || t == "null" || t == "{}"
}
