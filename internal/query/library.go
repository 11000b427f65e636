package query

import (
	"strconv"
	"strings"
)

// Confidence is a set of category codes that mean "high confidence" for one
// dataset generation. It always renders as a single OR group.
type Confidence []string

var (
	// ConfidenceCurrent is used by the gadm/wdpa alert tables.
	ConfidenceCurrent = Confidence{"h", "n"}
	// ConfidenceLegacy is used by the raw NRT point tables.
	ConfidenceLegacy = Confidence{"normal", "nominal"}
)

func (c Confidence) clause(column string) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = column + " = '" + v + "'"
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

const table = "table"

var alertVariants = map[Projection]variant{
	Aggregate: {selectList: "SUM(alert__count) AS value"},
	Rows:      {selectList: "latitude, longitude, alert__date as acq_date, alert__time_utc as acq_time"},
	Grouped:   {selectList: "alert__date as day, SUM(alert__count) as value", suffix: " GROUP BY alert__date"},
	Download:  {selectList: "*"},
}

var areaVariants = map[Projection]variant{
	Aggregate: {selectList: "SUM(area__ha) AS value"},
}

// Alerts is the base alert template: confidence and date range only. The
// spatial predicate is added per scope, or supplied server side through a
// geostore parameter.
func Alerts(c Confidence) Template {
	return Template{
		name:  "alerts",
		table: table,
		filters: []string{
			c.clause("confidence__cat"),
			"alert__date >= '{{begin}}'",
			"alert__date <= '{{end}}'",
		},
		variants: alertVariants,
	}
}

func area() Template {
	return Template{name: "area", table: table, variants: areaVariants}
}

// Scoped is an alert template paired with its area template. Area is nil
// when the area must come from the geostore instead.
type Scoped struct {
	Alerts Template
	Area   *Template
}

// National, Subnational1 and Subnational2 are the admin scopes.
func National(c Confidence) Scoped {
	return adminScoped(c, "national", "iso = '{{iso}}'")
}

func Subnational1(c Confidence) Scoped {
	return adminScoped(c, "subnational1", "iso = '{{iso}}'", "adm1 = '{{adm1}}'")
}

func Subnational2(c Confidence) Scoped {
	return adminScoped(c, "subnational2", "iso = '{{iso}}'", "adm1 = '{{adm1}}'", "adm2 = '{{adm2}}'")
}

func adminScoped(c Confidence, name string, clauses ...string) Scoped {
	a := area().Where(clauses...).Named(name + "_area")
	return Scoped{
		Alerts: Alerts(c).Where(clauses...).Named(name),
		Area:   &a,
	}
}

// Admin picks the admin template by depth. adm2 is ignored without adm1.
func Admin(c Confidence, adm1, adm2 bool) Scoped {
	switch {
	case adm1 && adm2:
		return Subnational2(c)
	case adm1:
		return Subnational1(c)
	default:
		return National(c)
	}
}

func ProtectedArea(c Confidence) Scoped {
	clause := "wdpa_protected_area__id = '{{wdpaid}}'"
	a := area().Where(clause).Named("wdpa_area")
	return Scoped{
		Alerts: Alerts(c).Where(clause).Named("wdpa"),
		Area:   &a,
	}
}

// World filters by geometry through the geostore parameter of the query
// call; land-use scopes resolve to a geostore and use it as well.
func World(c Confidence) Scoped {
	return Scoped{Alerts: Alerts(c).Named("world")}
}

// Latest selects the newest alert dates.
func Latest() Template {
	return Template{
		name:     "latest",
		table:    table,
		tail:     " ORDER BY alert__date DESC LIMIT {{limit}}",
		variants: map[Projection]variant{Aggregate: {selectList: "alert__date as date"}},
	}
}

// Bind builds the parameter set shared by the alert, area and download
// renders of one request.
func Bind(begin, end string, extra map[string]string) Params {
	p := Params{"begin": begin, "end": end}
	for k, v := range extra {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

func LimitParams(limit int) Params {
	return Params{"limit": strconv.Itoa(limit)}
}
