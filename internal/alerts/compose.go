package alerts

import (
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

// aggregateParts are the independent pieces of an aggregate answer.
type aggregateParts struct {
	// alertsOK is false when no alert row set was obtained at all.
	alertsOK bool
	value    float64
	areaHa   *float64
	label    string
	urls     map[string]string
	// areaOnlyOnFailure selects the area-only shape when alertsOK is false.
	areaOnlyOnFailure bool
}

// compose merges the parts. A scope with confirmed geometry whose alert
// query produced nothing yields the area-only shape; everything else gets a
// numeric value, zero when there were no rows.
func compose(p aggregateParts) *model.Result {
	if !p.alertsOK && p.areaOnlyOnFailure {
		return &model.Result{
			Kind:      model.ResultAggregate,
			Aggregate: &model.Aggregate{AreaHa: p.areaHa},
		}
	}
	v := 0.0
	if p.alertsOK {
		v = p.value
	}
	return &model.Result{
		Kind: model.ResultAggregate,
		Aggregate: &model.Aggregate{
			Value:        &v,
			AreaHa:       p.areaHa,
			Period:       p.label,
			DownloadURLs: p.urls,
		},
	}
}

// IsEmptySeriesSentinel reports the dataset engine's way of saying "no
// data" for grouped queries: exactly one row whose day is null.
func IsEmptySeriesSentinel(rows []model.DayValue) bool {
	return len(rows) == 1 && rows[0].Day == nil
}

func feedResult(rows []model.AlertPoint) *model.Result {
	if rows == nil {
		rows = []model.AlertPoint{}
	}
	return &model.Result{Kind: model.ResultFeed, Feed: rows}
}

func seriesResult(rows []model.DayValue) *model.Result {
	if rows == nil || IsEmptySeriesSentinel(rows) {
		rows = []model.DayValue{}
	}
	return &model.Result{Kind: model.ResultSeries, Series: rows}
}
