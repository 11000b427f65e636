// Package invalidation defines the dataset update events that expire cached
// responses.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// DatasetEvent announces that a dataset has been refreshed upstream.
type DatasetEvent struct {
	Version int       `json:"version"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e DatasetEvent) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return fmt.Errorf("dataset is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Watchlist decides which datasets affect cached responses. An empty list
// matches every dataset.
type Watchlist map[string]struct{}

func NewWatchlist(ids ...string) Watchlist {
	w := Watchlist{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			w[id] = struct{}{}
		}
	}
	return w
}

func (w Watchlist) Matches(dataset string) bool {
	if len(w) == 0 {
		return true
	}
	_, ok := w[dataset]
	return ok
}
