package services

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"olist-dashboard/internal/models"
)

// FilterByRange returns a new table with the rows purchased inside r. The
// end day is included up to 23:59:59.999. The source table is not modified.
func FilterByRange(table *models.Table, r models.DateRange) *models.Table {
	if r.Empty() || table.Len() == 0 {
		return table.Slice(0, 0)
	}

	n := table.Purchased()
	from := sort.Search(n, func(i int) bool {
		return !table.Row(i).PurchasedAt.Time.Before(r.Start)
	})
	until := r.Until()
	to := sort.Search(n, func(i int) bool {
		return !table.Row(i).PurchasedAt.Time.Before(until)
	})
	return table.Slice(from, to)
}

// DailyOrders buckets rows by purchase day. Every day between the first and
// the last populated day is emitted, empty days with zero values.
func DailyOrders(table *models.Table) []models.DailyOrders {
	type bucket struct {
		orders  map[string]struct{}
		revenue float64
	}

	buckets := make(map[time.Time]*bucket)
	var first, last time.Time
	for _, tx := range table.All() {
		if !tx.PurchasedAt.Valid {
			continue
		}
		day := models.Day(tx.PurchasedAt.Time)
		b := buckets[day]
		if b == nil {
			b = &bucket{orders: make(map[string]struct{})}
			buckets[day] = b
			switch {
			case len(buckets) == 1:
				first, last = day, day
			case day.Before(first):
				first = day
			case day.After(last):
				last = day
			}
		}
		b.orders[tx.OrderID] = struct{}{}
		b.revenue += tx.Price
	}

	if len(buckets) == 0 {
		return []models.DailyOrders{}
	}

	result := make([]models.DailyOrders, 0, int(last.Sub(first).Hours()/24)+1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		row := models.DailyOrders{Date: day}
		if b := buckets[day]; b != nil {
			row.OrderCount = len(b.orders)
			row.Revenue = b.revenue
		}
		result = append(result, row)
	}
	return result
}

// CustomersByState counts distinct customers per customer_state.
func CustomersByState(table *models.Table) []models.GeoCount {
	return customersBy(table, func(tx models.Transaction) string { return tx.CustomerState })
}

// CustomersByCity counts distinct customers per customer_city.
func CustomersByCity(table *models.Table) []models.GeoCount {
	return customersBy(table, func(tx models.Transaction) string { return tx.CustomerCity })
}

func customersBy(table *models.Table, key func(models.Transaction) string) []models.GeoCount {
	groups := make(map[string]map[string]struct{})
	for _, tx := range table.All() {
		k := key(tx)
		customers := groups[k]
		if customers == nil {
			customers = make(map[string]struct{})
			groups[k] = customers
		}
		customers[tx.CustomerID] = struct{}{}
	}

	result := make([]models.GeoCount, 0, len(groups))
	for k, customers := range groups {
		result = append(result, models.GeoCount{Key: k, CustomerCount: len(customers)})
	}
	slices.SortFunc(result, func(a, b models.GeoCount) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return result
}

// TopN returns the n groups with the most customers, ties broken by key.
// The input slice is left untouched.
func TopN(rows []models.GeoCount, n int) []models.GeoCount {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b models.GeoCount) int {
		if c := cmp.Compare(b.CustomerCount, a.CustomerCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if n < 0 {
		n = 0
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		return []models.GeoCount{}
	}
	return sorted
}

// Summarize totals the daily rows.
func Summarize(daily []models.DailyOrders) (totalOrders int, totalRevenue float64) {
	for _, d := range daily {
		totalOrders += d.OrderCount
		totalRevenue += d.Revenue
	}
	return totalOrders, totalRevenue
}
