package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
)

// Breaker trips after a sustained failure ratio against one upstream.
// Only 5xx answers and transport errors count as failures; a 404 from the
// geostore is a normal answer and a cancelled caller is not counted.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[[]byte]
}

func NewBreaker(name string, logger *slog.Logger) *Breaker {
	observability.SetBreakerState(name, 0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < 10 {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A caller hanging up says nothing about the upstream.
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "upstream", name, "from", from.String(), "to", to.String())
			observability.SetBreakerState(name, stateToFloat(to))
		},
	})
	return &Breaker{name: name, cb: cb}
}

func (b *Breaker) Execute(fn func() ([]byte, error)) ([]byte, error) {
	out, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		observability.IncBreakerRequest(b.name, "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.IncBreakerRequest(b.name, "rejected")
	case errors.Is(err, context.Canceled):
		observability.IncBreakerRequest(b.name, "cancelled")
	default:
		observability.IncBreakerRequest(b.name, "failure")
	}
	return out, err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
