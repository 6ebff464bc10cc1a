package services

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olist-dashboard/internal/models"
)

func ts(s string) sql.NullTime {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return sql.NullTime{Time: t, Valid: true}
}

func day(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dateRange(t *testing.T, start, end string) models.DateRange {
	t.Helper()
	r, err := models.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

// exampleTable is the three-row example used throughout the dashboard docs.
func exampleTable() *models.Table {
	return models.NewTable([]models.Transaction{
		{OrderID: "O1", CustomerID: "C1", CustomerState: "SP", CustomerCity: "Sao Paulo", Price: 100, PurchasedAt: ts("2018-01-05 00:00:00")},
		{OrderID: "O1", CustomerID: "C1", CustomerState: "SP", CustomerCity: "Sao Paulo", Price: 50, PurchasedAt: ts("2018-01-05 00:00:00")},
		{OrderID: "O2", CustomerID: "C2", CustomerState: "RJ", CustomerCity: "Rio", Price: 200, PurchasedAt: ts("2018-01-06 00:00:00")},
	})
}

func wideTable() *models.Table {
	return models.NewTable([]models.Transaction{
		{OrderID: "A", CustomerID: "C1", CustomerState: "SP", CustomerCity: "sao paulo", Price: 10, PurchasedAt: ts("2017-03-01 08:15:00")},
		{OrderID: "A", CustomerID: "C1", CustomerState: "SP", CustomerCity: "sao paulo", Price: 15.5, PurchasedAt: ts("2017-03-01 08:15:00")},
		{OrderID: "B", CustomerID: "C2", CustomerState: "SP", CustomerCity: "campinas", Price: 99.9, PurchasedAt: ts("2017-03-01 21:40:00")},
		{OrderID: "C", CustomerID: "C3", CustomerState: "MG", CustomerCity: "belo horizonte", Price: 45, PurchasedAt: ts("2017-03-04 11:00:00")},
		{OrderID: "D", CustomerID: "C4", CustomerState: "RJ", CustomerCity: "rio de janeiro", Price: 80, PurchasedAt: ts("2017-03-05 23:59:59")},
		{OrderID: "E", CustomerID: "C5", CustomerState: "SP", CustomerCity: "sao paulo", Price: 12, PurchasedAt: ts("2017-03-06 00:00:00")},
		{OrderID: "F", CustomerID: "C6", CustomerState: "SP", CustomerCity: "Sao Paulo", Price: 7, PurchasedAt: ts("2017-03-06 13:00:00")},
		{OrderID: "G", CustomerID: "C7", CustomerState: "RJ", CustomerCity: "rio de janeiro", Price: 33},
	})
}

func TestEndToEndExample(t *testing.T) {
	filtered := FilterByRange(exampleTable(), dateRange(t, "2018-01-05", "2018-01-06"))
	require.Equal(t, 3, filtered.Len())

	daily := DailyOrders(filtered)
	assert.Equal(t, []models.DailyOrders{
		{Date: day("2018-01-05"), OrderCount: 1, Revenue: 150},
		{Date: day("2018-01-06"), OrderCount: 1, Revenue: 200},
	}, daily)

	byState := CustomersByState(filtered)
	assert.ElementsMatch(t, []models.GeoCount{{Key: "SP", CustomerCount: 1}, {Key: "RJ", CustomerCount: 1}}, byState)

	totalOrders, totalRevenue := Summarize(daily)
	assert.Equal(t, 2, totalOrders)
	assert.InDelta(t, 350.0, totalRevenue, 1e-9)
}

func TestFilterByRange_Subsequence(t *testing.T) {
	table := wideTable()

	ranges := [][2]string{
		{"2017-03-01", "2017-03-06"},
		{"2017-03-02", "2017-03-05"},
		{"2017-03-05", "2017-03-05"},
		{"2017-02-01", "2017-03-01"},
		{"2017-03-06", "2017-04-01"},
	}

	for _, rr := range ranges {
		t.Run(rr[0]+".."+rr[1], func(t *testing.T) {
			r := dateRange(t, rr[0], rr[1])
			filtered := FilterByRange(table, r)

			// every row is in range and the rows keep their source order
			j := 0
			for _, tx := range filtered.All() {
				require.True(t, tx.PurchasedAt.Valid)
				assert.True(t, r.Contains(tx.PurchasedAt.Time), "row %s outside %s", tx.OrderID, r)
				for j < table.Len() && table.Row(j) != tx {
					j++
				}
				require.Less(t, j, table.Len(), "row %s not found in order", tx.OrderID)
				j++
			}

			// no in-range row is dropped
			want := 0
			for _, tx := range table.All() {
				if tx.PurchasedAt.Valid && r.Contains(tx.PurchasedAt.Time) {
					want++
				}
			}
			assert.Equal(t, want, filtered.Len())
		})
	}
}

func TestFilterByRange_EndDayIsInclusive(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2017-03-05", "2017-03-05"))

	require.Equal(t, 1, filtered.Len())
	assert.Equal(t, "D", filtered.Row(0).OrderID)
}

func TestFilterByRange_SingleDaySingleOrder(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2017-03-04", "2017-03-04"))

	require.Equal(t, 1, filtered.Len())
	assert.Equal(t, "C", filtered.Row(0).OrderID)
}

func TestFilterByRange_OutsideDataset(t *testing.T) {
	table := wideTable()

	for _, r := range []models.DateRange{
		dateRange(t, "2019-01-01", "2019-12-31"),
		dateRange(t, "2010-01-01", "2017-02-28"),
		dateRange(t, "2017-03-06", "2017-03-01"),
	} {
		t.Run(r.String(), func(t *testing.T) {
			filtered := FilterByRange(table, r)
			assert.Equal(t, 0, filtered.Len())
			assert.Empty(t, DailyOrders(filtered))
			assert.Empty(t, CustomersByState(filtered))
			assert.Empty(t, CustomersByCity(filtered))

			totalOrders, totalRevenue := Summarize(DailyOrders(filtered))
			assert.Zero(t, totalOrders)
			assert.Zero(t, totalRevenue)
		})
	}
}

func TestFilterByRange_DoesNotMutateSource(t *testing.T) {
	table := wideTable()
	before := table.Rows()

	filtered := FilterByRange(table, dateRange(t, "2017-03-01", "2017-03-04"))
	require.NotZero(t, filtered.Len())

	assert.Equal(t, before, table.Rows())
}

func TestFilterByRange_SkipsRowsWithoutPurchase(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2000-01-01", "2100-01-01"))

	assert.Equal(t, 7, filtered.Len())
	for _, tx := range filtered.All() {
		assert.NotEqual(t, "G", tx.OrderID)
	}
}

func TestDailyOrders_FillsGapDays(t *testing.T) {
	daily := DailyOrders(FilterByRange(wideTable(), dateRange(t, "2017-03-01", "2017-03-06")))

	require.Len(t, daily, 6)
	for i, d := range daily {
		assert.Equal(t, day("2017-03-01").AddDate(0, 0, i), d.Date)
	}

	assert.Equal(t, 2, daily[0].OrderCount)
	assert.InDelta(t, 125.4, daily[0].Revenue, 1e-9)

	// 2017-03-02 and 2017-03-03 have no rows but sit inside the series
	assert.Zero(t, daily[1].OrderCount)
	assert.Zero(t, daily[1].Revenue)
	assert.Zero(t, daily[2].OrderCount)

	assert.Equal(t, 1, daily[3].OrderCount)
	assert.Equal(t, 1, daily[4].OrderCount)
	assert.Equal(t, 2, daily[5].OrderCount)
}

func TestDailyOrders_GapsOnlyBetweenPopulatedDays(t *testing.T) {
	// the range is wider than the data; the series still spans only populated days
	daily := DailyOrders(FilterByRange(wideTable(), dateRange(t, "2017-02-01", "2017-03-04")))

	require.Len(t, daily, 4)
	assert.Equal(t, day("2017-03-01"), daily[0].Date)
	assert.Equal(t, day("2017-03-04"), daily[3].Date)
}

func TestDailyOrders_EarliestRepresentableDay(t *testing.T) {
	table := models.NewTable([]models.Transaction{
		{OrderID: "A", CustomerID: "C1", Price: 1, PurchasedAt: ts("0001-01-01 08:00:00")},
		{OrderID: "B", CustomerID: "C2", Price: 2, PurchasedAt: ts("0001-01-03 08:00:00")},
	})

	daily := DailyOrders(table)

	require.Len(t, daily, 3)
	assert.Equal(t, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), daily[0].Date)
	assert.Equal(t, 1, daily[0].OrderCount)
	assert.Zero(t, daily[1].OrderCount)
	assert.Equal(t, 1, daily[2].OrderCount)
}

func TestDailyOrders_SumChecks(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2017-03-01", "2017-03-31"))
	daily := DailyOrders(filtered)

	orders := make(map[string]struct{})
	var revenue float64
	for _, tx := range filtered.All() {
		orders[tx.OrderID] = struct{}{}
		revenue += tx.Price
	}

	totalOrders, totalRevenue := Summarize(daily)
	assert.Equal(t, len(orders), totalOrders)
	assert.InDelta(t, revenue, totalRevenue, 1e-9)
}

func TestDailyOrders_Deterministic(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2017-03-01", "2017-03-31"))

	assert.Equal(t, DailyOrders(filtered), DailyOrders(filtered))
}

func TestDailyOrders_EmptyInput(t *testing.T) {
	daily := DailyOrders(models.NewTable(nil))

	assert.NotNil(t, daily)
	assert.Empty(t, daily)
}

func TestGeoAggregators_PerGroupDistinctCustomers(t *testing.T) {
	filtered := FilterByRange(wideTable(), dateRange(t, "2017-01-01", "2017-12-31"))

	check := func(rows []models.GeoCount, key func(models.Transaction) string) {
		t.Helper()
		for _, g := range rows {
			customers := make(map[string]struct{})
			for _, tx := range filtered.All() {
				if key(tx) == g.Key {
					customers[tx.CustomerID] = struct{}{}
				}
			}
			assert.Equal(t, len(customers), g.CustomerCount, "group %q", g.Key)
		}
	}

	byState := CustomersByState(filtered)
	check(byState, func(tx models.Transaction) string { return tx.CustomerState })
	assert.Equal(t, []models.GeoCount{
		{Key: "MG", CustomerCount: 1},
		{Key: "RJ", CustomerCount: 1},
		{Key: "SP", CustomerCount: 4},
	}, byState)

	byCity := CustomersByCity(filtered)
	check(byCity, func(tx models.Transaction) string { return tx.CustomerCity })
}

func TestCustomersByCity_CaseSensitive(t *testing.T) {
	byCity := CustomersByCity(wideTable())

	counts := make(map[string]int)
	for _, g := range byCity {
		counts[g.Key] = g.CustomerCount
	}
	assert.Equal(t, 2, counts["sao paulo"])
	assert.Equal(t, 1, counts["Sao Paulo"])
}

func TestCustomersByState_CustomerInSeveralStates(t *testing.T) {
	table := models.NewTable([]models.Transaction{
		{OrderID: "O1", CustomerID: "C1", CustomerState: "SP", PurchasedAt: ts("2018-01-05 10:00:00")},
		{OrderID: "O2", CustomerID: "C1", CustomerState: "RJ", PurchasedAt: ts("2018-01-05 11:00:00")},
	})

	byState := CustomersByState(table)

	// one distinct customer, counted once in each state
	sum := 0
	for _, g := range byState {
		sum += g.CustomerCount
	}
	assert.Equal(t, 2, sum)
}

func TestGeoAggregators_EmptyInput(t *testing.T) {
	assert.Empty(t, CustomersByState(models.NewTable(nil)))
	assert.NotNil(t, CustomersByCity(models.NewTable(nil)))
}

func TestTopN(t *testing.T) {
	rows := []models.GeoCount{
		{Key: "AC", CustomerCount: 1},
		{Key: "MG", CustomerCount: 5},
		{Key: "RJ", CustomerCount: 7},
		{Key: "BA", CustomerCount: 5},
		{Key: "SP", CustomerCount: 40},
		{Key: "RS", CustomerCount: 3},
	}
	original := append([]models.GeoCount(nil), rows...)

	top := TopN(rows, 5)

	assert.Equal(t, []models.GeoCount{
		{Key: "SP", CustomerCount: 40},
		{Key: "RJ", CustomerCount: 7},
		{Key: "BA", CustomerCount: 5},
		{Key: "MG", CustomerCount: 5},
		{Key: "RS", CustomerCount: 3},
	}, top)
	assert.Equal(t, original, rows, "input must not be reordered")

	assert.Len(t, TopN(rows, 100), len(rows))
	assert.Empty(t, TopN(rows, 0))
	assert.Empty(t, TopN(rows, -1))
	assert.NotNil(t, TopN(nil, 5))
}

func BenchmarkDashboardPipeline(b *testing.B) {
	rows := make([]models.Transaction, 20000)
	base := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = models.Transaction{
			OrderID:       fmt.Sprintf("O%d", i/2),
			CustomerID:    fmt.Sprintf("C%d", i%5000),
			CustomerState: fmt.Sprintf("S%d", i%27),
			CustomerCity:  fmt.Sprintf("City%d", i%400),
			Price:         float64(i%300) + 0.99,
			PurchasedAt:   sql.NullTime{Time: base.Add(time.Duration(i) * 37 * time.Minute), Valid: true},
		}
	}
	table := models.NewTable(rows)
	r := models.NewDateRange(base, base.AddDate(0, 6, 0))

	b.ResetTimer()
	for b.Loop() {
		filtered := FilterByRange(table, r)
		_ = DailyOrders(filtered)
		_ = CustomersByState(filtered)
		_ = CustomersByCity(filtered)
	}
}
