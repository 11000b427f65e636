// Package geojson normalizes user supplied GeoJSON before it is registered
// with the geostore.
package geojson

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var ErrInvalid = errors.New("invalid geojson")

// Promote wraps a bare Polygon into Feature then FeatureCollection, and a
// Feature into a FeatureCollection. Any other object is returned unchanged.
func Promote(raw json.RawMessage) (json.RawMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch strings.ToLower(strings.TrimSpace(head.Type)) {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalid)
	case "polygon":
		feature := feature{Type: "Feature", Geometry: raw}
		fb, err := json.Marshal(feature)
		if err != nil {
			return nil, fmt.Errorf("encode feature: %w", err)
		}
		return collection(fb)
	case "feature":
		return collection(raw)
	default:
		return raw, nil
	}
}

type feature struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
}

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

func collection(f json.RawMessage) (json.RawMessage, error) {
	b, err := json.Marshal(featureCollection{Type: "FeatureCollection", Features: []json.RawMessage{f}})
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return b, nil
}
