// Package panel implements the quarter-indexed tables that flow through the
// stress test: macro panels, loss-rate panels and regression matrices.
//
// A Frame is immutable from the caller's point of view. Every transformation
// returns a new Frame and accessors hand out copies. Missing values are NaN.
package panel

import (
	"math"
	"sort"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

// Frame is a table of named float64 columns indexed by strictly increasing quarters.
type Frame struct {
	index   []quarter.Quarter
	columns []string
	data    map[string][]float64
}

// New builds a Frame. Columns are kept in the order given; every column must
// have one value per index entry and the index must be strictly increasing.
func New(index []quarter.Quarter, columns []string, values map[string][]float64) (*Frame, error) {
	for i := 1; i < len(index); i++ {
		if !index[i-1].Before(index[i]) {
			return nil, apperrors.NewValidationError("quarter index must be strictly increasing: %s then %s", index[i-1], index[i])
		}
	}

	f := &Frame{
		index:   append([]quarter.Quarter(nil), index...),
		columns: make([]string, 0, len(columns)),
		data:    make(map[string][]float64, len(columns)),
	}
	for _, col := range columns {
		if _, dup := f.data[col]; dup {
			return nil, apperrors.NewValidationError("duplicate column %q", col)
		}
		vals, ok := values[col]
		if !ok {
			return nil, apperrors.NewLookupError("column values", col)
		}
		if len(vals) != len(index) {
			return nil, apperrors.NewValidationError("column %q has %d values for %d quarters", col, len(vals), len(index))
		}
		f.columns = append(f.columns, col)
		f.data[col] = append([]float64(nil), vals...)
	}
	return f, nil
}

// Constant builds a Frame where every column holds a single value for all quarters.
func Constant(index []quarter.Quarter, columns []string, levels map[string]float64) (*Frame, error) {
	values := make(map[string][]float64, len(columns))
	for _, col := range columns {
		level, ok := levels[col]
		if !ok {
			return nil, apperrors.NewLookupError("column level", col)
		}
		vals := make([]float64, len(index))
		for i := range vals {
			vals[i] = level
		}
		values[col] = vals
	}
	return New(index, columns, values)
}

// Len returns the number of quarters.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.index)
}

// Empty reports whether the frame has no rows or no columns.
func (f *Frame) Empty() bool {
	return f == nil || len(f.index) == 0 || len(f.columns) == 0
}

// Index returns a copy of the quarter index.
func (f *Frame) Index() []quarter.Quarter {
	return append([]quarter.Quarter(nil), f.index...)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// HasColumn reports whether name is a column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Require returns a Lookup error enumerating every name that is not a column.
func (f *Frame) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !f.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewLookupError("columns", missing...)
	}
	return nil
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	vals, ok := f.data[name]
	if !ok {
		return nil, apperrors.NewLookupError("columns", name)
	}
	return append([]float64(nil), vals...), nil
}

// At returns the value of column name at row i. It panics on a bad row or column,
// like slice indexing.
func (f *Frame) At(i int, name string) float64 {
	vals, ok := f.data[name]
	if !ok {
		panic("panel: unknown column " + name)
	}
	return vals[i]
}

// Series returns the named column as a Series sharing the frame's index.
func (f *Frame) Series(name string) (Series, error) {
	vals, err := f.Column(name)
	if err != nil {
		return Series{}, err
	}
	return Series{Name: name, Index: f.Index(), Values: vals}, nil
}

// Select returns a frame with only the given columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if err := f.Require(names...); err != nil {
		return nil, err
	}
	return New(f.index, names, f.data)
}

// WithColumn returns a copy with name set to values, appended if new.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	cols := f.Columns()
	data := make(map[string][]float64, len(f.data)+1)
	for k, v := range f.data {
		data[k] = v
	}
	if !f.HasColumn(name) {
		cols = append(cols, name)
	}
	data[name] = values
	return New(f.index, cols, data)
}

// Map returns a copy with fn applied to every value of the named columns.
// No names means all columns.
func (f *Frame) Map(fn func(float64) float64, names ...string) (*Frame, error) {
	if len(names) == 0 {
		names = f.columns
	}
	if err := f.Require(names...); err != nil {
		return nil, err
	}
	out := f.Clone()
	for _, name := range names {
		vals := out.data[name]
		for i, v := range vals {
			vals[i] = fn(v)
		}
	}
	return out, nil
}

// Clip bounds every value into [lo, hi]. NaN stays NaN.
func (f *Frame) Clip(lo, hi float64) *Frame {
	out, _ := f.Map(func(v float64) float64 { return Clip(v, lo, hi) })
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		index:   f.Index(),
		columns: f.Columns(),
		data:    make(map[string][]float64, len(f.data)),
	}
	for k, v := range f.data {
		out.data[k] = append([]float64(nil), v...)
	}
	return out
}

// HasNA reports whether any value is NaN.
func (f *Frame) HasNA() bool {
	for _, vals := range f.data {
		for _, v := range vals {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// HasNonFinite reports whether any value is NaN or ±Inf.
func (f *Frame) HasNonFinite() bool {
	for _, vals := range f.data {
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// DropNA removes every row holding a NaN in any column.
func (f *Frame) DropNA() *Frame {
	keep := make([]int, 0, len(f.index))
	for i := range f.index {
		ok := true
		for _, col := range f.columns {
			if math.IsNaN(f.data[col][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return f.rows(keep)
}

// CheckQuarterly returns a Validation error unless the index is contiguous.
func (f *Frame) CheckQuarterly() error {
	if !quarter.IsContiguous(f.index) {
		return apperrors.NewValidationError("quarter index is not contiguous")
	}
	return nil
}

func (f *Frame) rows(positions []int) *Frame {
	out := &Frame{
		index:   make([]quarter.Quarter, len(positions)),
		columns: f.Columns(),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for j, pos := range positions {
		out.index[j] = f.index[pos]
	}
	for _, col := range f.columns {
		src := f.data[col]
		dst := make([]float64, len(positions))
		for j, pos := range positions {
			dst[j] = src[pos]
		}
		out.data[col] = dst
	}
	return out
}

// InnerJoin combines two frames on the quarters present in both. Column names
// must not overlap.
func (f *Frame) InnerJoin(other *Frame) (*Frame, error) {
	if err := checkDisjoint(f, other); err != nil {
		return nil, err
	}
	pos := other.positions()
	var index []quarter.Quarter
	var left, right []int
	for i, q := range f.index {
		if j, ok := pos[q]; ok {
			index = append(index, q)
			left = append(left, i)
			right = append(right, j)
		}
	}
	l, r := f.rows(left), other.rows(right)
	return merge(index, l, r)
}

// OuterJoin combines frames on the union of their quarters, filling gaps with NaN.
func OuterJoin(frames ...*Frame) (*Frame, error) {
	seen := make(map[quarter.Quarter]struct{})
	var cols []string
	colSeen := make(map[string]struct{})
	for _, fr := range frames {
		for _, q := range fr.index {
			seen[q] = struct{}{}
		}
		for _, c := range fr.columns {
			if _, dup := colSeen[c]; dup {
				return nil, apperrors.NewValidationError("duplicate column %q in join", c)
			}
			colSeen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	index := make([]quarter.Quarter, 0, len(seen))
	for q := range seen {
		index = append(index, q)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	data := make(map[string][]float64, len(cols))
	for _, fr := range frames {
		pos := fr.positions()
		for _, c := range fr.columns {
			vals := make([]float64, len(index))
			for i, q := range index {
				if p, ok := pos[q]; ok {
					vals[i] = fr.data[c][p]
				} else {
					vals[i] = math.NaN()
				}
			}
			data[c] = vals
		}
	}
	return New(index, cols, data)
}

func (f *Frame) positions() map[quarter.Quarter]int {
	pos := make(map[quarter.Quarter]int, len(f.index))
	for i, q := range f.index {
		pos[q] = i
	}
	return pos
}

func checkDisjoint(a, b *Frame) error {
	for _, c := range b.columns {
		if a.HasColumn(c) {
			return apperrors.NewValidationError("duplicate column %q in join", c)
		}
	}
	return nil
}

func merge(index []quarter.Quarter, l, r *Frame) (*Frame, error) {
	cols := append(l.Columns(), r.columns...)
	data := make(map[string][]float64, len(cols))
	for k, v := range l.data {
		data[k] = v
	}
	for k, v := range r.data {
		data[k] = v
	}
	return New(index, cols, data)
}

// Clip bounds v into [lo, hi]; NaN is returned unchanged.
func Clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Min(math.Max(v, lo), hi)
}
