// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type ScopeKind int

const (
	ScopeAdmin ScopeKind = iota
	ScopeProtectedArea
	ScopeLandUse
	ScopeWorld
	ScopeWorldGeoJSON
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAdmin:
		return "admin"
	case ScopeProtectedArea:
		return "wdpa"
	case ScopeLandUse:
		return "use"
	case ScopeWorld:
		return "world"
	case ScopeWorldGeoJSON:
		return "world_geojson"
	default:
		return "unknown"
	}
}

// Scope is the spatial unit a request is filtered to. Exactly one of the
// variant fields is meaningful, selected by Kind.
type Scope struct {
	Kind ScopeKind

	ISO  string
	Adm1 string
	Adm2 string

	WdpaID string

	UseTable  string
	FeatureID string

	GeostoreHash string
	GeoJSON      json.RawMessage
}

func AdminScope(iso, adm1, adm2 string) Scope {
	return Scope{Kind: ScopeAdmin, ISO: iso, Adm1: adm1, Adm2: adm2}
}

func ProtectedAreaScope(wdpaID string) Scope {
	return Scope{Kind: ScopeProtectedArea, WdpaID: wdpaID}
}

// LandUseScope maps category to its table; ok is false when no table name
// can be derived.
func LandUseScope(category, featureID string) (Scope, bool) {
	table, ok := UseTable(category)
	if !ok {
		return Scope{}, false
	}
	return Scope{Kind: ScopeLandUse, UseTable: table, FeatureID: featureID}, true
}

func WorldScope(hash string) Scope {
	return Scope{Kind: ScopeWorld, GeostoreHash: hash}
}

func WorldGeoJSONScope(geojson json.RawMessage) Scope {
	return Scope{Kind: ScopeWorldGeoJSON, GeoJSON: geojson}
}

var useTables = map[string]string{
	"mining":  "gfw_mining",
	"oilpalm": "gfw_oil_palm",
	"fiber":   "gfw_wood_fiber",
	"logging": "gfw_logging",
}

// UseTable resolves a land-use category to its table name. Unmapped names
// pass through unchanged; only an empty name fails.
func UseTable(category string) (string, bool) {
	c := strings.TrimSpace(category)
	if t, ok := useTables[c]; ok {
		return t, true
	}
	if c == "" {
		return "", false
	}
	return c, true
}

// GeostorePath is the geostore lookup path for scopes resolved by path.
func (s Scope) GeostorePath() string {
	switch s.Kind {
	case ScopeAdmin:
		p := "admin/" + s.ISO
		if s.Adm1 != "" {
			p += "/" + s.Adm1
			if s.Adm2 != "" {
				p += "/" + s.Adm2
			}
		}
		return p
	case ScopeProtectedArea:
		return "wdpa/" + s.WdpaID
	case ScopeLandUse:
		return "use/" + s.UseTable + "/" + s.FeatureID
	case ScopeWorld:
		return s.GeostoreHash
	default:
		return ""
	}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeWorldGeoJSON:
		return s.Kind.String()
	default:
		return fmt.Sprintf("%s:%s", s.Kind, s.GeostorePath())
	}
}

// AlertPoint is one row of the raw subscription feed.
type AlertPoint struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	AcqDate   string      `json:"acq_date"`
	AcqTime   json.Number `json:"acq_time"`
	Cell      string      `json:"cell,omitempty"`
}

// DayValue is one row of a grouped daily series. Day is nil when the
// dataset engine reported a null day key.
type DayValue struct {
	Day   *string  `json:"day"`
	Value *float64 `json:"value"`
}

// Aggregate is the single-number result. Value is nil for the area-only
// shape.
type Aggregate struct {
	Value        *float64          `json:"value,omitempty"`
	AreaHa       *float64          `json:"area_ha"`
	Period       string            `json:"period,omitempty"`
	DownloadURLs map[string]string `json:"downloadUrls,omitempty"`
}

type ResultKind int

const (
	ResultAggregate ResultKind = iota
	ResultFeed
	ResultSeries
)

// Result is the engine output; the field matching Kind is populated.
// A nil *Result means "no data" for degraded scopes.
type Result struct {
	Kind      ResultKind
	Aggregate *Aggregate
	Feed      []AlertPoint
	Series    []DayValue
}

// Latest is the newest alert date known to the dataset.
type Latest struct {
	Date string `json:"date"`
}
