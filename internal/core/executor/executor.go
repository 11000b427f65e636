// Package executor runs rendered queries against the dataset query engine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
	"github.com/mohammed-shakir/viirs-active-fires/internal/download"
)

var ErrMalformedResponse = errors.New("malformed query response")

type Interface interface {
	Query(ctx context.Context, datasetID, sql, geostore string) ([]json.RawMessage, error)
}

type Executor struct {
	logger   *slog.Logger
	upstream *httpclient.Upstream
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, upstream *httpclient.Upstream) *Executor {
	return &Executor{
		logger:   logger,
		upstream: upstream,
		startNow: time.Now,
	}
}

type queryResponse struct {
	Data []json.RawMessage `json:"data"`
}

// Query issues GET query/{datasetID}?sql=...[&geostore=...] and returns the
// raw rows of the data array. A missing data array is an empty result.
func (e *Executor) Query(ctx context.Context, datasetID, sql, geostore string) ([]json.RawMessage, error) {
	var q strings.Builder
	q.WriteString("sql=")
	q.WriteString(download.EncodeComponent(sql))
	if geostore != "" {
		q.WriteString("&geostore=")
		q.WriteString(download.EncodeComponent(geostore))
	}

	start := e.startNow()
	b, err := e.upstream.Get(ctx, "query/"+datasetID, q.String())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", datasetID, err)
	}

	var resp queryResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	e.logger.Debug("query done",
		"dataset", datasetID,
		"rows", len(resp.Data),
		"geostore", geostore,
		"duration", time.Since(start).String())
	return resp.Data, nil
}

// Decode unmarshals every row into T.
func Decode[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, r := range rows {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedResponse, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
