package models

import (
	"database/sql"
	"iter"
	"slices"
	"time"
)

// Transaction is one order line of the e-commerce dataset. An order with
// several items appears as several transactions sharing OrderID.
type Transaction struct {
	OrderID             string
	CustomerID          string
	CustomerState       string
	CustomerCity        string
	Price               float64
	PurchasedAt         sql.NullTime
	ApprovedAt          sql.NullTime
	DeliveredCarrierAt  sql.NullTime
	DeliveredCustomerAt sql.NullTime
	EstimatedDeliveryAt sql.NullTime
}

// Table is an immutable, purchase-time ordered sequence of transactions.
// Rows without a purchase timestamp sort last.
type Table struct {
	rows []Transaction
}

// NewTable sorts a copy of rows by purchase time and wraps it.
func NewTable(rows []Transaction) *Table {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, ComparePurchase)
	return &Table{rows: sorted}
}

// newSortedTable wraps rows that are already in purchase order without copying.
func newSortedTable(rows []Transaction) *Table {
	return &Table{rows: rows}
}

// ComparePurchase orders transactions by purchase time, absent values last.
func ComparePurchase(a, b Transaction) int {
	switch {
	case !a.PurchasedAt.Valid && !b.PurchasedAt.Valid:
		return 0
	case !a.PurchasedAt.Valid:
		return 1
	case !b.PurchasedAt.Valid:
		return -1
	}
	return a.PurchasedAt.Time.Compare(b.PurchasedAt.Time)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns the transaction at index i.
func (t *Table) Row(i int) Transaction {
	return t.rows[i]
}

// Rows returns a copy of the table contents.
func (t *Table) Rows() []Transaction {
	if t == nil {
		return []Transaction{}
	}
	return slices.Clone(t.rows)
}

// All iterates over the rows in order without copying.
func (t *Table) All() iter.Seq2[int, Transaction] {
	return func(yield func(int, Transaction) bool) {
		if t == nil {
			return
		}
		for i, tx := range t.rows {
			if !yield(i, tx) {
				return
			}
		}
	}
}

// Purchased returns the number of leading rows with a valid purchase timestamp.
func (t *Table) Purchased() int {
	if t == nil {
		return 0
	}
	n, _ := slices.BinarySearchFunc(t.rows, struct{}{}, func(tx Transaction, _ struct{}) int {
		if tx.PurchasedAt.Valid {
			return -1
		}
		return 0
	})
	return n
}

// Slice returns a new table holding a copy of rows [from, to).
func (t *Table) Slice(from, to int) *Table {
	if t == nil || from >= to {
		return newSortedTable([]Transaction{})
	}
	return newSortedTable(slices.Clone(t.rows[from:to]))
}

// Bounds reports the earliest and latest purchase timestamps. ok is false
// when no row has a purchase timestamp.
func (t *Table) Bounds() (first, last time.Time, ok bool) {
	n := t.Purchased()
	if n == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.rows[0].PurchasedAt.Time, t.rows[n-1].PurchasedAt.Time, true
}

// DailyOrders is one calendar day of order activity.
type DailyOrders struct {
	Date       time.Time `json:"order_date"`
	OrderCount int       `json:"order_count"`
	Revenue    float64   `json:"revenue"`
}

// GeoCount is the number of distinct customers in one state or city.
type GeoCount struct {
	Key           string `json:"key"`
	CustomerCount int    `json:"customer_count"`
}

// Dashboard bundles every aggregate computed for one date range.
type Dashboard struct {
	Range        DateRange     `json:"range"`
	Daily        []DailyOrders `json:"daily_orders"`
	ByState      []GeoCount    `json:"by_state"`
	ByCity       []GeoCount    `json:"by_city"`
	TotalOrders  int           `json:"total_orders"`
	TotalRevenue float64       `json:"total_revenue"`
}
