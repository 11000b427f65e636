// Package mapper indexes alert points into spatial cells.
package mapper

import (
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

type Interface interface {
	CellForPoint(lat, lng float64) (string, error)
	Annotate(points []model.AlertPoint) error
}
