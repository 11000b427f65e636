package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/viirs-active-fires/internal/alerts"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
)

var errGeoJSONRequired = errors.New("GeoJSON param required")

// statusFor maps an error to the HTTP status and detail sent to the client.
func statusFor(err error) (int, string) {
	var bad *errBadParam
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.Error()
	case errors.Is(err, errGeoJSONRequired):
		return http.StatusBadRequest, errGeoJSONRequired.Error()
	case errors.Is(err, alerts.ErrInvalidPeriod):
		return http.StatusBadRequest, "Invalid period"
	case errors.Is(err, alerts.ErrConflictingModes):
		return http.StatusBadRequest, alerts.ErrConflictingModes.Error()
	case errors.Is(err, alerts.ErrInvalidGeometry):
		return http.StatusBadRequest, "Invalid GeoJSON"
	case errors.Is(err, alerts.ErrGeometryNotFound):
		return http.StatusNotFound, "Geostore not found"
	case errors.Is(err, alerts.ErrUnsupportedScope):
		return http.StatusNotFound, "Unsupported scope"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "Upstream temporarily unavailable"
	case errors.Is(err, alerts.ErrDownstreamQuery):
		return http.StatusBadGateway, "Dataset query failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Upstream timeout"
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return http.StatusBadGateway, "Upstream " + se.Upstream + " error"
	}
	return http.StatusInternalServerError, "Internal server error"
}
