// Package tabular holds the flat-table exchange format the engine consumes and
// produces. Tables arrive as CSV files, one per reference feed, with headers
// normalized before any column lookup happens.
package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is an in-memory tabular snapshot: ordered columns plus string cells.
// Cells keep their raw text; numeric coercion happens at read sites so that a
// single bad cell never poisons a whole column.
type Table struct {
	Name    string
	Columns []string
	Rows    []map[string]string
}

// New creates an empty table with the given name and column order.
func New(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// Append adds one row. Unknown keys are ignored on write-out; missing keys
// read as empty cells.
func (t *Table) Append(row map[string]string) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns an error naming the table and every missing column, so a
// fatal missing-input abort tells the operator exactly what to fix.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %q missing required columns: %s", t.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Rename replaces a column header in place, preserving cell values.
func (t *Table) Rename(from, to string) {
	for i, c := range t.Columns {
		if c == from {
			t.Columns[i] = to
		}
	}
	for _, row := range t.Rows {
		if v, ok := row[from]; ok {
			delete(row, from)
			row[to] = v
		}
	}
}

// NormalizeHeaders rewrites every column header through transform (for example
// strings.ToLower composed with strings.TrimSpace) and remaps row keys.
func (t *Table) NormalizeHeaders(transform func(string) string) {
	mapping := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		nc := transform(c)
		mapping[c] = nc
		t.Columns[i] = nc
	}
	for _, row := range t.Rows {
		for from, to := range mapping {
			if from == to {
				continue
			}
			if v, ok := row[from]; ok {
				delete(row, from)
				row[to] = v
			}
		}
	}
}

// LowerHeaders trims and lowercases all column headers.
func (t *Table) LowerHeaders() {
	t.NormalizeHeaders(func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
}

// UpperHeaders trims and uppercases all column headers.
func (t *Table) UpperHeaders() {
	t.NormalizeHeaders(func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
}

// TrimHeaders trims whitespace from all column headers.
func (t *Table) TrimHeaders() {
	t.NormalizeHeaders(strings.TrimSpace)
}

// Str returns the trimmed cell at (row, col), empty when absent.
func Str(row map[string]string, col string) string {
	return strings.TrimSpace(row[col])
}

// Float parses the cell at (row, col) as a float. The second return is false
// for empty, absent, or unparseable cells and for non-finite values.
func Float(row map[string]string, col string) (float64, bool) {
	s := Str(row, col)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FloatOr parses the cell at (row, col), falling back to def when missing.
func FloatOr(row map[string]string, col string, def float64) float64 {
	if v, ok := Float(row, col); ok {
		return v
	}
	return def
}

// ColumnStats computes the mean and sample standard deviation of a numeric
// column, skipping cells that fail to parse. A column whose std is zero or
// undefined reports ok=false for std, which callers treat as zero-effect.
func (t *Table) ColumnStats(col string) (mean, std float64, n int) {
	var sum float64
	var vals []float64
	for _, row := range t.Rows {
		if v, ok := Float(row, col); ok {
			sum += v
			vals = append(vals, v)
		}
	}
	n = len(vals)
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0, n
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n-1))
	return mean, std, n
}
