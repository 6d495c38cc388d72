package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
)

// Column is a typed columnar buffer. Exactly one dense slice is active,
// selected by the column's type kind; nulls tracks validity alongside it. A
// null slot's data is a type-appropriate placeholder, so readers consult the
// bitmap before the data.
type Column struct {
	typ   DataType
	nulls NullBitmap

	bools     []bool
	ints      []int64 // INT64 and TIME (nanos since midnight)
	floats    []float64
	decs      []decimal.Decimal // NUMERIC and BIGNUMERIC
	strs      []string          // STRING and GEOGRAPHY
	byteVals  [][]byte
	times     []time.Time // DATE, DATETIME, TIMESTAMP
	jsons     []any
	intervals []Interval
	arrays    [][]Value // ARRAY elements and STRUCT field values
	ranges    []RangeValue
}

// NewColumn returns an empty column of the requested type.
func NewColumn(dt DataType) *Column {
	return &Column{typ: dt}
}

// Broadcast returns a length-n column repeating v. A null v yields an
// all-null INT64 column.
func Broadcast(v Value, n int) *Column {
	dt := v.DataType()
	if v.IsNull() {
		dt = Int64Type()
	}
	col := NewColumn(dt)
	for i := 0; i < n; i++ {
		// Broadcast only fails on a type mismatch, which cannot happen
		// for a type derived from the value itself.
		_ = col.Push(v)
	}
	return col
}

// FromValues infers the column type from the first non-null value and pushes
// every value in sequence. An all-null input becomes INT64.
func FromValues(values []Value) *Column {
	dt := Int64Type()
	for _, v := range values {
		if !v.IsNull() && !v.IsDefault() {
			dt = v.DataType()
			break
		}
	}
	col := NewColumn(dt)
	for _, v := range values {
		if err := col.Push(v); err != nil {
			col.pushNullPlaceholder()
		}
	}
	return col
}

// Type returns the column's data type.
func (c *Column) Type() DataType {
	return c.typ
}

// Len returns the row count.
func (c *Column) Len() int {
	return c.nulls.Len()
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.nulls.IsNull(i)
}

// Nulls exposes the validity bitmap.
func (c *Column) Nulls() *NullBitmap {
	return &c.nulls
}

// GetValue materializes row i as a Value. Null slots yield the null value.
func (c *Column) GetValue(i int) Value {
	if i < 0 || i >= c.Len() || c.nulls.IsNull(i) {
		return NewNull()
	}
	switch c.typ.Kind {
	case KindBool:
		return NewBool(c.bools[i])
	case KindInt64:
		return NewInt64(c.ints[i])
	case KindFloat64:
		return NewFloat64(c.floats[i])
	case KindNumeric:
		return NewNumeric(c.decs[i])
	case KindBigNumeric:
		return NewBigNumeric(c.decs[i])
	case KindString:
		return NewString(c.strs[i])
	case KindGeography:
		return NewGeography(c.strs[i])
	case KindBytes:
		return NewBytes(c.byteVals[i])
	case KindDate:
		return NewDate(c.times[i])
	case KindTime:
		return NewTime(c.ints[i])
	case KindDateTime:
		return NewDateTime(c.times[i])
	case KindTimestamp:
		return NewTimestamp(c.times[i])
	case KindJSON:
		return NewJSON(c.jsons[i])
	case KindInterval:
		return NewInterval(c.intervals[i])
	case KindArray:
		elem := UnknownType()
		if c.typ.Elem != nil {
			elem = *c.typ.Elem
		}
		return NewArray(c.arrays[i], elem)
	case KindStruct:
		names := make([]string, len(c.typ.Fields))
		for j, f := range c.typ.Fields {
			names[j] = f.Name
		}
		return NewStruct(names, c.arrays[i])
	case KindRange:
		r := c.ranges[i]
		return NewRange(r.Start, r.End, r.Elem)
	default:
		return NewNull()
	}
}

// Values materializes every row.
func (c *Column) Values() []Value {
	out := make([]Value, c.Len())
	for i := range out {
		out[i] = c.GetValue(i)
	}
	return out
}

// Clone returns an independent copy of the column.
func (c *Column) Clone() *Column {
	out := NewColumn(c.typ)
	out.nulls = c.nulls.Clone()
	out.bools = append([]bool(nil), c.bools...)
	out.ints = append([]int64(nil), c.ints...)
	out.floats = append([]float64(nil), c.floats...)
	out.decs = append([]decimal.Decimal(nil), c.decs...)
	out.strs = append([]string(nil), c.strs...)
	out.byteVals = append([][]byte(nil), c.byteVals...)
	out.times = append([]time.Time(nil), c.times...)
	out.jsons = append([]any(nil), c.jsons...)
	out.intervals = append([]Interval(nil), c.intervals...)
	out.arrays = append([][]Value(nil), c.arrays...)
	out.ranges = append([]RangeValue(nil), c.ranges...)
	return out
}

// checkSameLength validates the paired-column length invariant.
func (c *Column) checkSameLength(other *Column) error {
	if c.Len() != other.Len() {
		return common.NewLengthMismatchError(c.Len(), other.Len())
	}
	return nil
}

// boolResult allocates an output BOOL column sized for n appends.
func boolResult(n int) *Column {
	col := NewColumn(BoolType())
	col.bools = make([]bool, 0, n)
	return col
}

// appendBool pushes a non-null bool row.
func (c *Column) appendBool(v bool) {
	c.bools = append(c.bools, v)
	c.nulls.Push(false)
}

// appendNullBool pushes a null bool row with a false placeholder.
func (c *Column) appendNullBool() {
	c.bools = append(c.bools, false)
	c.nulls.Push(true)
}
