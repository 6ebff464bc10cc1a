package dataset

import (
	"database/sql"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"olist-dashboard/internal/models"
)

// Column names of the Olist all_data export.
const (
	ColOrderID           = "order_id"
	ColCustomerID        = "customer_id"
	ColCustomerState     = "customer_state"
	ColCustomerCity      = "customer_city"
	ColPrice             = "price"
	ColPurchaseTimestamp = "order_purchase_timestamp"
	ColApprovedAt        = "order_approved_at"
	ColDeliveredCarrier  = "order_delivered_carrier_date"
	ColDeliveredCustomer = "order_delivered_customer_date"
	ColEstimatedDelivery = "order_estimated_delivery_date"
)

var requiredColumns = []string{
	ColOrderID,
	ColCustomerID,
	ColPrice,
	ColPurchaseTimestamp,
	ColCustomerState,
	ColCustomerCity,
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	models.DateLayout,
}

// Decode reads a whole table in the given format.
func Decode(r io.Reader, format Format) (*models.Table, error) {
	var df dataframe.DataFrame
	parse := ParseTimestamp
	switch format {
	case FormatXLSX:
		records, date1904, err := readSheet(r)
		if err != nil {
			return nil, err
		}
		df = dataframe.LoadRecords(records, frameOptions()...)
		parse = func(s string) sql.NullTime { return parseSheetTimestamp(s, date1904) }
	default:
		df = dataframe.ReadCSV(r, frameOptions()...)
	}
	if df.Err != nil {
		if df.Nrow() == 0 {
			return nil, fmt.Errorf("%w: %w", ErrEmptySource, df.Err)
		}
		return nil, fmt.Errorf("read frame: %w", df.Err)
	}
	return fromFrame(df, parse)
}

// Every column stays a string; coercion happens per column in fromFrame.
// No cell text is treated as missing, so "NA" stays a city name.
func frameOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	}
}

// readSheet returns the first sheet as raw cell values. Date cells come back
// as Excel serial numbers.
func readSheet(r io.Reader) ([][]string, bool, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, false, ErrEmptySource
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, false, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, false, ErrEmptySource
	}

	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	// GetRows drops trailing empty cells, the frame needs a rectangle.
	width := len(rows[0])
	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]string, width-len(row))...)
		} else if len(row) > width {
			rows[i] = row[:width]
		}
	}
	return rows, date1904, nil
}

func fromFrame(df dataframe.DataFrame, parse func(string) sql.NullTime) (*models.Table, error) {
	names := df.Names()
	for _, col := range requiredColumns {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	n := df.Nrow()
	if n == 0 {
		return nil, ErrEmptySource
	}

	column := func(name string) []string {
		if !slices.Contains(names, name) {
			return make([]string, n)
		}
		return df.Col(name).Records()
	}

	orderIDs := column(ColOrderID)
	customerIDs := column(ColCustomerID)
	states := column(ColCustomerState)
	cities := column(ColCustomerCity)
	prices := column(ColPrice)
	purchased := column(ColPurchaseTimestamp)
	approved := column(ColApprovedAt)
	carrier := column(ColDeliveredCarrier)
	customer := column(ColDeliveredCustomer)
	estimated := column(ColEstimatedDelivery)

	rows := make([]models.Transaction, n)
	for i := range n {
		rows[i] = models.Transaction{
			OrderID:             orderIDs[i],
			CustomerID:          customerIDs[i],
			CustomerState:       states[i],
			CustomerCity:        cities[i],
			Price:               ParsePrice(prices[i]),
			PurchasedAt:         parse(purchased[i]),
			ApprovedAt:          parse(approved[i]),
			DeliveredCarrierAt:  parse(carrier[i]),
			DeliveredCustomerAt: parse(customer[i]),
			EstimatedDeliveryAt: parse(estimated[i]),
		}
	}

	return models.NewTable(rows), nil
}

// ParseTimestamp coerces a timestamp cell. Anything unparsable is absent.
func ParseTimestamp(s string) sql.NullTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullTime{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	return sql.NullTime{}
}

// parseSheetTimestamp also accepts the serial numbers spreadsheets store
// date cells as.
func parseSheetTimestamp(s string, date1904 bool) sql.NullTime {
	if ts := ParseTimestamp(s); ts.Valid {
		return ts
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return sql.NullTime{}
	}
	t, err := excelize.ExcelDateToTime(v, date1904)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ParsePrice coerces a price cell. Missing, NaN and negative values count as zero.
func ParsePrice(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
