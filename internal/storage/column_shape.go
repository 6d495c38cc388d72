package storage

import (
	"github.com/lychee-technology/yachtsql/internal/common"
)

// Gather selects rows by index, in the listed order. An out-of-range index is
// an error.
func (c *Column) Gather(indices []int) (*Column, error) {
	out := NewColumn(c.typ)
	n := c.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, common.NewOutOfBoundsError(idx, n)
		}
		c.copyRowTo(out, idx)
	}
	return out, nil
}

// FilterByMask keeps rows where the BOOL mask is non-null and true. Null mask
// slots exclude the row.
func (c *Column) FilterByMask(mask *Column) (*Column, error) {
	if mask.Type().Kind != KindBool {
		return nil, common.NewTypeMismatchError("BOOL", mask.Type().String())
	}
	if err := c.checkSameLength(mask); err != nil {
		return nil, err
	}
	out := NewColumn(c.typ)
	for i := 0; i < c.Len(); i++ {
		if mask.nulls.IsNull(i) || !mask.bools[i] {
			continue
		}
		c.copyRowTo(out, i)
	}
	return out, nil
}

// Extend appends every row of other. The columns must share the same variant
// tag; element and field types are not structurally checked beyond that.
func (c *Column) Extend(other *Column) error {
	if c.typ.Kind != other.typ.Kind {
		return common.NewTypeMismatchError(c.typ.String(), other.typ.String())
	}
	switch c.typ.Kind {
	case KindBool:
		c.bools = append(c.bools, other.bools...)
	case KindInt64, KindTime:
		c.ints = append(c.ints, other.ints...)
	case KindFloat64:
		c.floats = append(c.floats, other.floats...)
	case KindNumeric, KindBigNumeric:
		c.decs = append(c.decs, other.decs...)
	case KindString, KindGeography:
		c.strs = append(c.strs, other.strs...)
	case KindBytes:
		c.byteVals = append(c.byteVals, other.byteVals...)
	case KindDate, KindDateTime, KindTimestamp:
		c.times = append(c.times, other.times...)
	case KindJSON:
		c.jsons = append(c.jsons, other.jsons...)
	case KindInterval:
		c.intervals = append(c.intervals, other.intervals...)
	case KindArray, KindStruct:
		c.arrays = append(c.arrays, other.arrays...)
	case KindRange:
		c.ranges = append(c.ranges, other.ranges...)
	}
	c.nulls.Extend(&other.nulls)
	return nil
}

// copyRowTo appends row idx of c onto out, which shares c's variant.
func (c *Column) copyRowTo(out *Column, idx int) {
	switch c.typ.Kind {
	case KindBool:
		out.bools = append(out.bools, c.bools[idx])
	case KindInt64, KindTime:
		out.ints = append(out.ints, c.ints[idx])
	case KindFloat64:
		out.floats = append(out.floats, c.floats[idx])
	case KindNumeric, KindBigNumeric:
		out.decs = append(out.decs, c.decs[idx])
	case KindString, KindGeography:
		out.strs = append(out.strs, c.strs[idx])
	case KindBytes:
		out.byteVals = append(out.byteVals, c.byteVals[idx])
	case KindDate, KindDateTime, KindTimestamp:
		out.times = append(out.times, c.times[idx])
	case KindJSON:
		out.jsons = append(out.jsons, c.jsons[idx])
	case KindInterval:
		out.intervals = append(out.intervals, c.intervals[idx])
	case KindArray, KindStruct:
		out.arrays = append(out.arrays, c.arrays[idx])
	case KindRange:
		out.ranges = append(out.ranges, c.ranges[idx])
	}
	out.nulls.Push(c.nulls.IsNull(idx))
}
