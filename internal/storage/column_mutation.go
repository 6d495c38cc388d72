package storage

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
)

// Push appends a value, coercing it into the column's type where the fixed
// coercion table allows. Null and DEFAULT append a null slot with a
// type-appropriate placeholder. Mismatched pairs outside the table fail with
// a type mismatch error.
func (c *Column) Push(v Value) error {
	if v.IsNull() || v.IsDefault() {
		c.pushNullPlaceholder()
		return nil
	}
	switch c.typ.Kind {
	case KindBool:
		return c.pushBool(v)
	case KindInt64:
		return c.pushInt64(v)
	case KindFloat64:
		return c.pushFloat64(v)
	case KindNumeric, KindBigNumeric:
		return c.pushDecimal(v)
	case KindString:
		// Any value coerces into STRING through its canonical text.
		c.strs = append(c.strs, v.String())
		c.nulls.Push(false)
		return nil
	case KindGeography:
		if v.Kind() != KindGeography && v.Kind() != KindString {
			return c.typeMismatch(v)
		}
		c.strs = append(c.strs, v.AsString())
		c.nulls.Push(false)
		return nil
	case KindBytes:
		switch v.Kind() {
		case KindBytes:
			c.byteVals = append(c.byteVals, v.AsBytes())
		case KindString:
			c.byteVals = append(c.byteVals, []byte(v.AsString()))
		default:
			return c.typeMismatch(v)
		}
		c.nulls.Push(false)
		return nil
	case KindDate:
		if v.Kind() != KindDate && v.Kind() != KindDateTime && v.Kind() != KindTimestamp {
			return c.typeMismatch(v)
		}
		y, m, d := v.AsTime().Date()
		c.times = append(c.times, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		c.nulls.Push(false)
		return nil
	case KindTime:
		if v.Kind() != KindTime {
			return c.typeMismatch(v)
		}
		c.ints = append(c.ints, v.AsTimeOfDay())
		c.nulls.Push(false)
		return nil
	case KindDateTime:
		if v.Kind() != KindDateTime && v.Kind() != KindDate && v.Kind() != KindTimestamp {
			return c.typeMismatch(v)
		}
		c.times = append(c.times, v.AsTime())
		c.nulls.Push(false)
		return nil
	case KindTimestamp:
		if v.Kind() != KindTimestamp && v.Kind() != KindDateTime && v.Kind() != KindDate {
			return c.typeMismatch(v)
		}
		c.times = append(c.times, v.AsTime().UTC())
		c.nulls.Push(false)
		return nil
	case KindJSON:
		return c.pushJSON(v)
	case KindInterval:
		if v.Kind() != KindInterval {
			return c.typeMismatch(v)
		}
		c.intervals = append(c.intervals, v.AsInterval())
		c.nulls.Push(false)
		return nil
	case KindArray:
		if v.Kind() != KindArray {
			return c.typeMismatch(v)
		}
		c.arrays = append(c.arrays, v.AsArray())
		c.nulls.Push(false)
		return nil
	case KindStruct:
		if v.Kind() != KindStruct {
			return c.typeMismatch(v)
		}
		c.arrays = append(c.arrays, v.AsStructValues())
		c.nulls.Push(false)
		return nil
	case KindRange:
		if v.Kind() != KindRange {
			return c.typeMismatch(v)
		}
		c.ranges = append(c.ranges, *v.AsRange())
		c.nulls.Push(false)
		return nil
	default:
		return c.typeMismatch(v)
	}
}

func (c *Column) pushBool(v Value) error {
	switch v.Kind() {
	case KindBool:
		c.bools = append(c.bools, v.AsBool())
	case KindString:
		s := strings.ToUpper(strings.TrimSpace(v.AsString()))
		c.bools = append(c.bools, s == "TRUE" || s == "1" || s == "YES")
	case KindInt64:
		c.bools = append(c.bools, v.AsInt64() != 0)
	default:
		return c.typeMismatch(v)
	}
	c.nulls.Push(false)
	return nil
}

func (c *Column) pushInt64(v Value) error {
	switch v.Kind() {
	case KindInt64:
		c.ints = append(c.ints, v.AsInt64())
	case KindFloat64:
		c.ints = append(c.ints, int64(v.AsFloat64()))
	case KindNumeric, KindBigNumeric:
		c.ints = append(c.ints, v.AsDecimal().IntPart())
	case KindString:
		// Non-parseable strings insert a non-null zero. Observed source
		// behavior, kept for compatibility.
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
		if err != nil {
			parsed = 0
		}
		c.ints = append(c.ints, parsed)
	default:
		return c.typeMismatch(v)
	}
	c.nulls.Push(false)
	return nil
}

func (c *Column) pushFloat64(v Value) error {
	switch v.Kind() {
	case KindFloat64:
		c.floats = append(c.floats, v.AsFloat64())
	case KindInt64:
		c.floats = append(c.floats, float64(v.AsInt64()))
	case KindNumeric, KindBigNumeric:
		f, _ := v.AsDecimal().Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			f = 0.0
		}
		c.floats = append(c.floats, f)
	case KindString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err != nil {
			parsed = 0.0
		}
		c.floats = append(c.floats, parsed)
	default:
		return c.typeMismatch(v)
	}
	c.nulls.Push(false)
	return nil
}

func (c *Column) pushDecimal(v Value) error {
	switch v.Kind() {
	case KindNumeric, KindBigNumeric:
		c.decs = append(c.decs, v.AsDecimal())
	case KindInt64:
		c.decs = append(c.decs, decimal.NewFromInt(v.AsInt64()))
	case KindFloat64:
		f := v.AsFloat64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			c.decs = append(c.decs, decimal.Zero)
		} else {
			c.decs = append(c.decs, decimal.NewFromFloat(f))
		}
	case KindString:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v.AsString()))
		if err != nil {
			parsed = decimal.Zero
		}
		c.decs = append(c.decs, parsed)
	default:
		return c.typeMismatch(v)
	}
	c.nulls.Push(false)
	return nil
}

func (c *Column) pushJSON(v Value) error {
	switch v.Kind() {
	case KindJSON:
		c.jsons = append(c.jsons, v.AsJSON())
	case KindString:
		c.jsons = append(c.jsons, ParseJSONString(v.AsString()))
	default:
		return c.typeMismatch(v)
	}
	c.nulls.Push(false)
	return nil
}

// pushNullPlaceholder appends a null slot with the type's zero placeholder.
func (c *Column) pushNullPlaceholder() {
	switch c.typ.Kind {
	case KindBool:
		c.bools = append(c.bools, false)
	case KindInt64, KindTime:
		c.ints = append(c.ints, 0)
	case KindFloat64:
		c.floats = append(c.floats, 0)
	case KindNumeric, KindBigNumeric:
		c.decs = append(c.decs, decimal.Zero)
	case KindString, KindGeography:
		c.strs = append(c.strs, "")
	case KindBytes:
		c.byteVals = append(c.byteVals, nil)
	case KindDate, KindDateTime, KindTimestamp:
		c.times = append(c.times, time.Unix(0, 0).UTC())
	case KindJSON:
		c.jsons = append(c.jsons, nil)
	case KindInterval:
		c.intervals = append(c.intervals, Interval{})
	case KindArray, KindStruct:
		c.arrays = append(c.arrays, nil)
	case KindRange:
		c.ranges = append(c.ranges, RangeValue{Elem: c.rangeElem()})
	}
	c.nulls.Push(true)
}

func (c *Column) rangeElem() DataType {
	if c.typ.Elem != nil {
		return *c.typ.Elem
	}
	return UnknownType()
}

func (c *Column) typeMismatch(v Value) error {
	return common.NewTypeMismatchError(c.typ.String(), v.DataType().String())
}

// Remove drops row i.
func (c *Column) Remove(i int) error {
	if i < 0 || i >= c.Len() {
		return common.NewOutOfBoundsError(i, c.Len())
	}
	switch c.typ.Kind {
	case KindBool:
		c.bools = append(c.bools[:i], c.bools[i+1:]...)
	case KindInt64, KindTime:
		c.ints = append(c.ints[:i], c.ints[i+1:]...)
	case KindFloat64:
		c.floats = append(c.floats[:i], c.floats[i+1:]...)
	case KindNumeric, KindBigNumeric:
		c.decs = append(c.decs[:i], c.decs[i+1:]...)
	case KindString, KindGeography:
		c.strs = append(c.strs[:i], c.strs[i+1:]...)
	case KindBytes:
		c.byteVals = append(c.byteVals[:i], c.byteVals[i+1:]...)
	case KindDate, KindDateTime, KindTimestamp:
		c.times = append(c.times[:i], c.times[i+1:]...)
	case KindJSON:
		c.jsons = append(c.jsons[:i], c.jsons[i+1:]...)
	case KindInterval:
		c.intervals = append(c.intervals[:i], c.intervals[i+1:]...)
	case KindArray, KindStruct:
		c.arrays = append(c.arrays[:i], c.arrays[i+1:]...)
	case KindRange:
		c.ranges = append(c.ranges[:i], c.ranges[i+1:]...)
	}
	c.nulls.Remove(i)
	return nil
}

// Clear removes all rows, keeping the type.
func (c *Column) Clear() {
	c.bools = c.bools[:0]
	c.ints = c.ints[:0]
	c.floats = c.floats[:0]
	c.decs = c.decs[:0]
	c.strs = c.strs[:0]
	c.byteVals = c.byteVals[:0]
	c.times = c.times[:0]
	c.jsons = c.jsons[:0]
	c.intervals = c.intervals[:0]
	c.arrays = c.arrays[:0]
	c.ranges = c.ranges[:0]
	c.nulls.Clear()
}
