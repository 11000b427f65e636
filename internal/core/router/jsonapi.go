package router

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/viirs-active-fires/internal/core/model"
)

// Version names the JSON:API flavour served under one URL prefix.
type Version struct {
	Name         string
	ResourceType string
	LatestType   string
	// LatestAttr is the attribute carrying the newest alert date.
	LatestAttr string
}

var (
	V1 = Version{Name: "v1", ResourceType: "viirs-fires", LatestType: "viirs-latest", LatestAttr: "date"}
	V2 = Version{Name: "v2", ResourceType: "viirs-active-fires", LatestType: "viirs-latest", LatestAttr: "latest"}
)

type resource struct {
	Type       string `json:"type"`
	Attributes any    `json:"attributes"`
}

type document struct {
	Data any `json:"data"`
}

type aggregateAttrs struct {
	Value        *float64          `json:"value,omitempty"`
	Period       string            `json:"period,omitempty"`
	DownloadURLs map[string]string `json:"downloadUrls,omitempty"`
	AreaHa       *float64          `json:"areaHa"`
}

type pointAttrs struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	AcqDate   string      `json:"acqDate"`
	AcqTime   json.Number `json:"acqTime"`
	Cell      string      `json:"cell,omitempty"`
}

type dayAttrs struct {
	Day   *string  `json:"day"`
	Value *float64 `json:"value"`
}

// serialize renders res as a JSON:API document. nil becomes {"data":null};
// feeds and series become arrays of resources.
func (v Version) serialize(res *model.Result) document {
	if res == nil {
		return document{}
	}
	switch res.Kind {
	case model.ResultFeed:
		out := make([]resource, 0, len(res.Feed))
		for _, p := range res.Feed {
			out = append(out, resource{Type: v.ResourceType, Attributes: pointAttrs{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				AcqDate:   p.AcqDate,
				AcqTime:   p.AcqTime,
				Cell:      p.Cell,
			}})
		}
		return document{Data: out}
	case model.ResultSeries:
		out := make([]resource, 0, len(res.Series))
		for _, d := range res.Series {
			out = append(out, resource{Type: v.ResourceType, Attributes: dayAttrs(d)})
		}
		return document{Data: out}
	default:
		if res.Aggregate == nil {
			return document{}
		}
		a := res.Aggregate
		return document{Data: resource{Type: v.ResourceType, Attributes: aggregateAttrs{
			Value:        a.Value,
			Period:       a.Period,
			DownloadURLs: a.DownloadURLs,
			AreaHa:       a.AreaHa,
		}}}
	}
}

func (v Version) serializeLatest(l *model.Latest) document {
	if l == nil {
		return document{}
	}
	return document{Data: resource{
		Type:       v.LatestType,
		Attributes: map[string]string{v.LatestAttr: l.Date},
	}}
}

func writeJSON(w http.ResponseWriter, status int, doc document) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}
