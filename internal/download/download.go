// Package download derives export links for the row set behind an aggregate.
package download

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/viirs-active-fires/internal/query"
)

var (
	// FormatsV1 are the export formats offered by the v1 API.
	FormatsV1 = []string{"csv", "geojson", "kml", "shp", "svg"}
	// FormatsV2 are the export formats offered by the v2 API.
	FormatsV2 = []string{"csv", "json", "kml", "shp", "svg"}
)

// Deriver builds download links against a dataset service base URI.
type Deriver struct {
	base    string
	formats []string
}

func NewDeriver(baseURI string, formats []string) *Deriver {
	return &Deriver{base: strings.TrimRight(baseURI, "/"), formats: formats}
}

// Derive renders tpl's Download projection with params and returns one URL per
// format. params must be the same set that produced the aggregate.
func (d *Deriver) Derive(tpl query.Template, params query.Params, datasetID, geostore string) (map[string]string, error) {
	sql, err := tpl.Render(query.Download, params)
	if err != nil {
		return nil, fmt.Errorf("render download query: %w", err)
	}
	enc := EncodeComponent(sql)
	out := make(map[string]string, len(d.formats))
	for _, f := range d.formats {
		var b strings.Builder
		b.WriteString(d.base)
		b.WriteString("/download/")
		b.WriteString(url.PathEscape(datasetID))
		b.WriteString("?sql=")
		b.WriteString(enc)
		b.WriteString("&format=")
		b.WriteString(f)
		if geostore != "" {
			b.WriteString("&geostore=")
			b.WriteString(EncodeComponent(geostore))
		}
		out[f] = b.String()
	}
	return out, nil
}

// EncodeComponent percent-encodes s leaving only A-Z a-z 0-9 and -_.!~*'()
// unescaped, which keeps links identical to the ones consumers already hold.
func EncodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
