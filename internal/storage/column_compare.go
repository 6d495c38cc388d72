package storage

import (
	"bytes"

	"github.com/lychee-technology/yachtsql/internal/common"
)

// cmpOp selects the comparison kernel.
type cmpOp int

const (
	cmpEq cmpOp = iota
	cmpLt
	cmpLe
)

// BinaryEq compares element-wise equality. Any null input yields null.
func (c *Column) BinaryEq(other *Column) (*Column, error) {
	return c.binaryCompare(other, cmpEq, false)
}

// BinaryNe is NOT BinaryEq.
func (c *Column) BinaryNe(other *Column) (*Column, error) {
	eq, err := c.BinaryEq(other)
	if err != nil {
		return nil, err
	}
	return eq.UnaryNot()
}

// BinaryLt compares element-wise less-than.
func (c *Column) BinaryLt(other *Column) (*Column, error) {
	return c.binaryCompare(other, cmpLt, false)
}

// BinaryLe compares element-wise less-or-equal.
func (c *Column) BinaryLe(other *Column) (*Column, error) {
	return c.binaryCompare(other, cmpLe, false)
}

// BinaryGt is BinaryLt with the operands flipped.
func (c *Column) BinaryGt(other *Column) (*Column, error) {
	return other.binaryCompare(c, cmpLt, true)
}

// BinaryGe is BinaryLe with the operands flipped.
func (c *Column) BinaryGe(other *Column) (*Column, error) {
	return other.binaryCompare(c, cmpLe, true)
}

// binaryCompare runs the comparison kernel. When flipped is set the receiver
// is the logical right operand; the null handling is symmetric so only error
// reporting cares.
func (c *Column) binaryCompare(other *Column, op cmpOp, flipped bool) (*Column, error) {
	if err := c.checkSameLength(other); err != nil {
		return nil, err
	}
	if !comparableKind(c.typ.Kind) || c.typ.Kind != other.typ.Kind {
		left, right := c.typ.String(), other.typ.String()
		if flipped {
			left, right = right, left
		}
		return nil, common.NewTypeMismatchError(left, right)
	}
	n := c.Len()
	out := boolResult(n)
	for i := 0; i < n; i++ {
		if c.nulls.IsNull(i) || other.nulls.IsNull(i) {
			out.appendNullBool()
			continue
		}
		cmp := c.compareRow(other, i)
		switch op {
		case cmpEq:
			out.appendBool(cmp == 0)
		case cmpLt:
			out.appendBool(cmp < 0)
		case cmpLe:
			out.appendBool(cmp <= 0)
		}
	}
	return out, nil
}

// comparableKind reports whether the comparison kernels are defined for a
// column kind.
func comparableKind(k TypeKind) bool {
	switch k {
	case KindBool, KindInt64, KindFloat64, KindString, KindBytes, KindNumeric,
		KindBigNumeric, KindDate, KindTime, KindDateTime, KindTimestamp, KindInterval:
		return true
	default:
		return false
	}
}

// compareRow compares row i of two same-variant columns without
// materializing values.
func (c *Column) compareRow(other *Column, i int) int {
	switch c.typ.Kind {
	case KindBool:
		l, r := c.bools[i], other.bools[i]
		switch {
		case l == r:
			return 0
		case !l:
			return -1
		default:
			return 1
		}
	case KindInt64, KindTime:
		return compareOrdered(c.ints[i], other.ints[i])
	case KindFloat64:
		return compareFloats(c.floats[i], other.floats[i])
	case KindNumeric, KindBigNumeric:
		return c.decs[i].Cmp(other.decs[i])
	case KindString, KindGeography:
		switch {
		case c.strs[i] < other.strs[i]:
			return -1
		case c.strs[i] > other.strs[i]:
			return 1
		default:
			return 0
		}
	case KindBytes:
		return bytes.Compare(c.byteVals[i], other.byteVals[i])
	case KindDate, KindDateTime, KindTimestamp:
		return c.times[i].Compare(other.times[i])
	case KindInterval:
		return c.intervals[i].Compare(other.intervals[i])
	default:
		return 0
	}
}
