// Package frame provides a small column-labeled table of float64 values.
//
// It stands between raw input (CSV files, JSON request bodies) and the
// numeric types model components work on. It is deliberately minimal:
// ordered column names, dense rows, and the handful of operations dataset
// pipelines need (select, head, sample, split).
package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var ErrNoSuchColumn = errors.New("no such column")

type Frame struct {
	columns []string
	rows    [][]float64
}

// New creates a Frame with the given column names and rows.
//
// Every row must have exactly one value per column.
func New(columns []string, rows [][]float64) (Frame, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return Frame{}, fmt.Errorf(
				"row %d has %d values, but %d columns are declared", i, len(r), len(columns),
			)
		}
	}

	cols := make([]string, len(columns))
	copy(cols, columns)
	rs := make([][]float64, len(rows))
	for i, r := range rows {
		rs[i] = make([]float64, len(r))
		copy(rs[i], r)
	}
	return Frame{columns: cols, rows: rs}, nil
}

// Columns returns the column names, in order.
func (f Frame) Columns() []string {
	cols := make([]string, len(f.columns))
	copy(cols, f.columns)
	return cols
}

// Len returns the number of rows.
func (f Frame) Len() int {
	return len(f.rows)
}

// Row returns a copy of the i-th row.
func (f Frame) Row(i int) []float64 {
	row := make([]float64, len(f.rows[i]))
	copy(row, f.rows[i])
	return row
}

// HasColumn tells whether the Frame has a column named name.
func (f Frame) HasColumn(name string) bool {
	for _, c := range f.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of the named column, in row order.
func (f Frame) Column(name string) ([]float64, error) {
	at := -1
	for i, c := range f.columns {
		if c == name {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchColumn, name)
	}

	values := make([]float64, len(f.rows))
	for i, r := range f.rows {
		values[i] = r[at]
	}
	return values, nil
}

// Select returns a new Frame holding only the named columns, in the given order.
func (f Frame) Select(names ...string) (Frame, error) {
	at := make([]int, len(names))
	for i, name := range names {
		at[i] = -1
		for j, c := range f.columns {
			if c == name {
				at[i] = j
				break
			}
		}
		if at[i] < 0 {
			return Frame{}, fmt.Errorf("%w: %s", ErrNoSuchColumn, name)
		}
	}

	rows := make([][]float64, len(f.rows))
	for i, r := range f.rows {
		row := make([]float64, len(at))
		for j, a := range at {
			row[j] = r[a]
		}
		rows[i] = row
	}

	cols := make([]string, len(names))
	copy(cols, names)
	return Frame{columns: cols, rows: rows}, nil
}

// Head returns a new Frame holding at most n leading rows.
// Non-positive n means all rows.
func (f Frame) Head(n int) Frame {
	if n <= 0 || n >= len(f.rows) {
		n = len(f.rows)
	}
	return f.take(seqence(n))
}

// Sample returns a new Frame holding round(frac * Len()) rows, chosen
// pseudo-randomly with the given seed. Chosen rows keep their relative order.
//
// frac outside (0, 1) means all rows.
func (f Frame) Sample(frac float64, seed int64) Frame {
	n := len(f.rows)
	if frac <= 0 || 1 <= frac {
		return f.take(seqence(n))
	}

	k := int(frac*float64(n) + 0.5)
	chosen := rand.New(rand.NewSource(seed)).Perm(n)[:k]
	sort.Ints(chosen)
	return f.take(chosen)
}

// Split partitions the rows into a leading part and a trailing part of
// round(testSize * Len()) rows. When shuffle is true, rows are permuted
// pseudo-randomly with the given seed before partitioning.
func (f Frame) Split(testSize float64, shuffle bool, seed int64) (Frame, Frame) {
	n := len(f.rows)
	if testSize < 0 {
		testSize = 0
	}
	if 1 < testSize {
		testSize = 1
	}
	nTest := int(testSize*float64(n) + 0.5)

	idx := seqence(n)
	if shuffle {
		idx = rand.New(rand.NewSource(seed)).Perm(n)
	}

	return f.take(idx[:n-nTest]), f.take(idx[n-nTest:])
}

// Equal tells whether f and other have same columns and same rows in same order.
func (f Frame) Equal(other Frame) bool {
	if len(f.columns) != len(other.columns) || len(f.rows) != len(other.rows) {
		return false
	}
	for i := range f.columns {
		if f.columns[i] != other.columns[i] {
			return false
		}
	}
	for i := range f.rows {
		for j := range f.rows[i] {
			if f.rows[i][j] != other.rows[i][j] {
				return false
			}
		}
	}
	return true
}

func (f Frame) take(idx []int) Frame {
	rows := make([][]float64, len(idx))
	for i, at := range idx {
		row := make([]float64, len(f.rows[at]))
		copy(row, f.rows[at])
		rows[i] = row
	}
	return Frame{columns: f.Columns(), rows: rows}
}

func seqence(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

type frameJSON struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

// MarshalJSON implements the json.Marshaler interface.
//
// The wire form is {"columns": [...], "data": [[...], ...]}.
func (f Frame) MarshalJSON() ([]byte, error) {
	data := f.rows
	if data == nil {
		data = [][]float64{}
	}
	cols := f.columns
	if cols == nil {
		cols = []string{}
	}
	return json.Marshal(frameJSON{Columns: cols, Data: data})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var w frameJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	nf, err := New(w.Columns, w.Data)
	if err != nil {
		return err
	}
	*f = nf
	return nil
}
