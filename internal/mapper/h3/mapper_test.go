package h3mapper

import (
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

func TestNew_InvalidRes(t *testing.T) {
	for _, r := range []int{-1, 16} {
		if _, err := New(r); err == nil {
			t.Fatalf("New(%d) should fail", r)
		}
	}
}

func TestCellForPoint_ResolutionAndDeterminism(t *testing.T) {
	m, err := New(7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := m.CellForPoint(6.4281, -9.4295)
	if err != nil {
		t.Fatalf("CellForPoint: %v", err)
	}
	b, _ := m.CellForPoint(6.4281, -9.4295)
	if a != b {
		t.Fatalf("non-deterministic cell: %s vs %s", a, b)
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(a)); err != nil {
		t.Fatalf("parse cell: %v", err)
	}
	if !c.IsValid() || c.Resolution() != 7 {
		t.Fatalf("cell %s invalid or wrong resolution", a)
	}
}

func TestAnnotate_SkipsBadPoints(t *testing.T) {
	m, _ := New(5)
	pts := []model.AlertPoint{
		{Latitude: 6.4, Longitude: -9.4},
		{Latitude: 123, Longitude: 0},
		{Latitude: -3.1, Longitude: 28.2},
	}
	err := m.Annotate(pts)
	if err == nil {
		t.Fatalf("expected error for out of range point")
	}
	if pts[0].Cell == "" || pts[2].Cell == "" {
		t.Fatalf("valid points not annotated: %+v", pts)
	}
	if pts[1].Cell != "" {
		t.Fatalf("invalid point got a cell: %+v", pts[1])
	}
}
