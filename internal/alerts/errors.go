package alerts

import (
	"errors"

	"github.com/mohammed-shakir/viirs-active-fires/internal/geostore"
	"github.com/mohammed-shakir/viirs-active-fires/internal/period"
)

var (
	ErrInvalidPeriod    = period.ErrInvalidPeriod
	ErrGeometryNotFound = geostore.ErrGeometryNotFound
	ErrInvalidGeometry  = geostore.ErrGeometryRejected
	// ErrDownstreamQuery marks a failed dataset query. The engine absorbs it
	// for aggregate scopes; it only escapes from Latest.
	ErrDownstreamQuery  = errors.New("downstream query failed")
	ErrUnsupportedScope = errors.New("unsupported scope")
	ErrConflictingModes = errors.New("forSubscription and group are mutually exclusive")
)
