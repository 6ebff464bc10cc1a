package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) sql.NullTime {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return sql.NullTime{Time: t, Valid: true}
}

func TestNewTable_SortsByPurchaseAbsentLast(t *testing.T) {
	rows := []Transaction{
		{OrderID: "late", PurchasedAt: at("2018-03-01 10:00:00")},
		{OrderID: "none"},
		{OrderID: "early", PurchasedAt: at("2017-01-01 08:00:00")},
	}

	table := NewTable(rows)

	require.Equal(t, 3, table.Len())
	assert.Equal(t, "early", table.Row(0).OrderID)
	assert.Equal(t, "late", table.Row(1).OrderID)
	assert.Equal(t, "none", table.Row(2).OrderID)
	assert.Equal(t, 2, table.Purchased())

	// the caller's slice is left untouched
	assert.Equal(t, "late", rows[0].OrderID)
}

func TestTable_RowsIsACopy(t *testing.T) {
	table := NewTable([]Transaction{{OrderID: "O1", PurchasedAt: at("2018-01-05 10:00:00")}})

	rows := table.Rows()
	rows[0].OrderID = "mutated"

	assert.Equal(t, "O1", table.Row(0).OrderID)
}

func TestTable_Bounds(t *testing.T) {
	table := NewTable([]Transaction{
		{PurchasedAt: at("2018-01-06 09:00:00")},
		{PurchasedAt: at("2018-01-05 23:59:59")},
		{},
	})

	first, last, ok := table.Bounds()
	require.True(t, ok)
	assert.Equal(t, at("2018-01-05 23:59:59").Time, first)
	assert.Equal(t, at("2018-01-06 09:00:00").Time, last)

	_, _, ok = NewTable(nil).Bounds()
	assert.False(t, ok)
}

func TestTable_NilSafe(t *testing.T) {
	var table *Table
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Rows())
	assert.Equal(t, 0, table.Slice(0, 0).Len())
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2018-01-05", "2018-01-06")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2018, 1, 7, 0, 0, 0, 0, time.UTC), r.Until())
	assert.False(t, r.Empty())

	_, err = ParseDateRange("2018-13-01", "2018-01-06")
	assert.Error(t, err)

	_, err = ParseDateRange("2018-01-05", "")
	assert.Error(t, err)

	reversed, err := ParseDateRange("2018-02-01", "2018-01-01")
	require.NoError(t, err)
	assert.True(t, reversed.Empty())
}

func TestDateRange_ContainsWholeEndDay(t *testing.T) {
	r, err := ParseDateRange("2018-01-05", "2018-01-05")
	require.NoError(t, err)

	assert.True(t, r.Contains(at("2018-01-05 00:00:00").Time))
	assert.True(t, r.Contains(at("2018-01-05 23:59:59").Time))
	assert.False(t, r.Contains(at("2018-01-06 00:00:00").Time))
	assert.False(t, r.Contains(at("2018-01-04 23:59:59").Time))
}

func TestDateRange_Clamp(t *testing.T) {
	min := time.Date(2017, 1, 1, 13, 0, 0, 0, time.UTC)
	max := time.Date(2018, 8, 31, 18, 0, 0, 0, time.UTC)

	r := NewDateRange(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
	clamped := r.Clamp(min, max)
	assert.Equal(t, Day(min), clamped.Start)
	assert.Equal(t, Day(max), clamped.End)

	outside := NewDateRange(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, outside.Clamp(min, max).Empty())
}

func TestDateRange_MarshalJSON(t *testing.T) {
	r, err := ParseDateRange("2018-01-05", "2018-01-06")
	require.NoError(t, err)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2018-01-05","end":"2018-01-06"}`, string(b))
}
