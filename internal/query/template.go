// Package query holds the parameterized alert and area query templates sent
// to the dataset engine and renders them per projection.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Projection int

const (
	// Aggregate sums alert counts into a single value.
	Aggregate Projection = iota
	// Rows returns one row per alert (subscription feed).
	Rows
	// Grouped sums alert counts per day.
	Grouped
	// Download returns every column of the filtered row set.
	Download
)

func (p Projection) String() string {
	switch p {
	case Aggregate:
		return "aggregate"
	case Rows:
		return "rows"
	case Grouped:
		return "grouped"
	case Download:
		return "download"
	default:
		return "unknown"
	}
}

var (
	ErrNoProjection       = errors.New("template has no such projection")
	ErrUnboundPlaceholder = errors.New("unbound placeholder")
)

type variant struct {
	selectList string
	suffix     string
}

// Template is a query skeleton plus its projection variants. Filters are
// joined with AND in order; placeholders are written as {{name}}.
type Template struct {
	name     string
	table    string
	filters  []string
	tail     string
	variants map[Projection]variant
}

func (t Template) Name() string { return t.name }

func (t Template) Has(p Projection) bool {
	_, ok := t.variants[p]
	return ok
}

// Where returns a copy of t with extra filter clauses appended.
func (t Template) Where(clauses ...string) Template {
	cp := t
	cp.filters = append(append([]string(nil), t.filters...), clauses...)
	return cp
}

// Named returns a copy of t with a different name.
func (t Template) Named(name string) Template {
	cp := t
	cp.name = name
	return cp
}

// Text is the unrendered query for projection p.
func (t Template) Text(p Projection) (string, error) {
	v, ok := t.variants[p]
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s projection", ErrNoProjection, t.name, p)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(v.selectList)
	b.WriteString(" FROM ")
	b.WriteString(t.table)
	if len(t.filters) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(t.filters, " AND "))
	}
	b.WriteString(t.tail)
	b.WriteString(v.suffix)
	return b.String(), nil
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Placeholders lists the distinct placeholder names of projection p, sorted.
func (t Template) Placeholders(p Projection) ([]string, error) {
	text, err := t.Text(p)
	if err != nil {
		return nil, err
	}
	return placeholdersOf(text), nil
}

func placeholdersOf(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	sort.Strings(out)
	return out
}

// Render substitutes params into projection p. Substitution is textual;
// values must be validated by whoever builds Params.
func (t Template) Render(p Projection, params Params) (string, error) {
	text, err := t.Text(p)
	if err != nil {
		return "", err
	}
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w in %s: %s", ErrUnboundPlaceholder, t.name, strings.Join(missing, ","))
	}
	return out, nil
}

// Params are the bound placeholder values for one request.
type Params map[string]string

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
