package templates

import "encoding/json"

const Title = "Brazilian E-Commerce Dashboard"

// Page is the initial state of the dashboard shell. Dates are YYYY-MM-DD.
type Page struct {
	Title   string
	MinDate string
	MaxDate string
	Start   string
	End     string
}

// Signals is the initial datastar signal object for the page.
func (p Page) Signals() string {
	b, _ := json.Marshal(map[string]any{
		"startDate": p.Start,
		"endDate":   p.End,
		"dailyData": []any{},
		"stateData": []any{},
		"cityData":  []any{},
	})
	return string(b)
}
