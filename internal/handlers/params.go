package handlers

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/starfederation/datastar-go/datastar"

	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("param"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// rangeQuery is the REST form of a date range: ?start=YYYY-MM-DD&end=YYYY-MM-DD.
type rangeQuery struct {
	Start string `param:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `param:"end" validate:"omitempty,datetime=2006-01-02"`
}

// rangeSignals is the same range as sent by the dashboard's date inputs.
type rangeSignals struct {
	StartDate string `json:"startDate" param:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"endDate" param:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

type limitQuery struct {
	Limit int `param:"limit" validate:"min=1,max=1000"`
}

func queryRange(r *http.Request, analytics *services.Analytics) (models.DateRange, error) {
	q := rangeQuery{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
	if err := validate.Struct(q); err != nil {
		return models.DateRange{}, validationError(err)
	}
	return resolveRange(analytics, q.Start, q.End)
}

func signalRange(r *http.Request, analytics *services.Analytics) (models.DateRange, error) {
	var s rangeSignals
	if err := datastar.ReadSignals(r, &s); err != nil {
		return models.DateRange{}, errors.InvalidParam("datastar", err)
	}
	if err := validate.Struct(s); err != nil {
		return models.DateRange{}, validationError(err)
	}
	return resolveRange(analytics, s.StartDate, s.EndDate)
}

// resolveRange fills missing bounds from the dataset and clamps the result
// to it. A start after end stays that way and selects nothing.
func resolveRange(analytics *services.Analytics, start, end string) (models.DateRange, error) {
	r := analytics.DefaultRange()
	if start != "" {
		t, err := models.ParseDate(start)
		if err != nil {
			return models.DateRange{}, errors.InvalidParam("start", err)
		}
		r.Start = t
	}
	if end != "" {
		t, err := models.ParseDate(end)
		if err != nil {
			return models.DateRange{}, errors.InvalidParam("end", err)
		}
		r.End = t
	}

	if bounds, ok := analytics.Bounds(); ok {
		r = r.Clamp(bounds.Start, bounds.End)
	}
	return r, nil
}

// queryLimit returns 0 when no limit was given.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidParam("limit", err)
	}
	if err := validate.Struct(limitQuery{Limit: n}); err != nil {
		return 0, validationError(err)
	}
	return n, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		return errors.InvalidParam(verrs[0].Field(), err)
	}
	return errors.Validation(err.Error())
}
