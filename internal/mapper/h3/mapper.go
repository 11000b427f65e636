package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

// Mapper assigns H3 cells at a fixed resolution.
type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

func (m *Mapper) CellForPoint(lat, lng float64) (string, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("point out of range: lat=%v lng=%v", lat, lng)
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

// Annotate sets Cell on every point in place. Points that cannot be indexed
// keep an empty cell; the first such error is returned after the pass.
func (m *Mapper) Annotate(points []model.AlertPoint) error {
	var first error
	for i := range points {
		cell, err := m.CellForPoint(points[i].Latitude, points[i].Longitude)
		if err != nil {
			if first == nil {
				first = fmt.Errorf("point %d: %w", i, err)
			}
			continue
		}
		points[i].Cell = cell
	}
	return first
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
