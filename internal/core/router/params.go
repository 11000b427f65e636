package router

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/viirs-active-fires/internal/alerts"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	segmentRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("param"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		// segment: a single path element, no dots or separators.
		_ = validate.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
			return segmentRe.MatchString(fl.Field().String())
		})
	})
	return validate
}

// errBadParam is a request parameter that failed validation.
type errBadParam struct {
	Param string
}

func (e *errBadParam) Error() string { return "Invalid " + e.Param }

func check(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &errBadParam{Param: verrs[0].Field()}
	}
	return fmt.Errorf("validate: %w", err)
}

// Segment values are spliced into dataset queries, so they are restricted to
// characters that cannot break out of a quoted literal.
type adminParams struct {
	ISO string `param:"iso" validate:"required,alpha,min=2,max=3"`
	ID1 string `param:"id1" validate:"omitempty,numeric,max=10"`
	ID2 string `param:"id2" validate:"omitempty,numeric,max=10"`
}

type wdpaParams struct {
	ID string `param:"id" validate:"required,numeric,max=12"`
}

type useParams struct {
	Name string `param:"name" validate:"required,max=64,segment"`
	ID   string `param:"id" validate:"required,max=64,segment"`
}

type worldParams struct {
	Geostore string `param:"geostore" validate:"omitempty,alphanum,max=64"`
}

type modeParams struct {
	Period          string `param:"period" validate:"omitempty,max=32"`
	ForSubscription string `param:"forSubscription" validate:"omitempty,max=16"`
	Group           string `param:"group" validate:"omitempty,max=16"`
}

type latestParams struct {
	Limit int `param:"limit" validate:"min=1,max=100"`
}

func parseOptions(r *http.Request) (alerts.Options, error) {
	q := r.URL.Query()
	p := modeParams{
		Period:          strings.TrimSpace(q.Get("period")),
		ForSubscription: q.Get("forSubscription"),
		Group:           q.Get("group"),
	}
	if err := check(p); err != nil {
		return alerts.Options{}, err
	}
	return alerts.Options{
		Period:          p.Period,
		ForSubscription: alerts.ParseFlag(p.ForSubscription),
		Group:           alerts.ParseFlag(p.Group),
	}, nil
}

func parseAdmin(r *http.Request) (adminParams, error) {
	p := adminParams{
		ISO: chi.URLParam(r, "iso"),
		ID1: chi.URLParam(r, "id1"),
		ID2: chi.URLParam(r, "id2"),
	}
	return p, check(p)
}

func parseLatest(r *http.Request) (latestParams, error) {
	p := latestParams{Limit: 1}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, &errBadParam{Param: "limit"}
		}
		p.Limit = n
	}
	return p, check(p)
}
