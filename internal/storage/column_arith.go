package storage

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
)

// arithOp selects the arithmetic kernel applied per row pair.
type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
)

// BinaryAdd adds two columns element-wise. Nulls propagate; INT64 overflow
// and division by zero yield null.
func (c *Column) BinaryAdd(other *Column) (*Column, error) {
	return c.binaryArith(other, opAdd)
}

// BinarySub subtracts other from c element-wise.
func (c *Column) BinarySub(other *Column) (*Column, error) {
	return c.binaryArith(other, opSub)
}

// BinaryMul multiplies two columns element-wise.
func (c *Column) BinaryMul(other *Column) (*Column, error) {
	return c.binaryArith(other, opMul)
}

// BinaryDiv divides c by other element-wise. Division by zero yields null.
func (c *Column) BinaryDiv(other *Column) (*Column, error) {
	return c.binaryArith(other, opDiv)
}

func (c *Column) binaryArith(other *Column, op arithOp) (*Column, error) {
	if err := c.checkSameLength(other); err != nil {
		return nil, err
	}
	if c.typ.Kind != other.typ.Kind || !c.typ.IsNumericKind() {
		return nil, common.NewTypeMismatchError(c.typ.String(), other.typ.String())
	}
	n := c.Len()
	out := NewColumn(c.typ)
	for i := 0; i < n; i++ {
		if c.nulls.IsNull(i) || other.nulls.IsNull(i) {
			out.pushNullPlaceholder()
			continue
		}
		switch c.typ.Kind {
		case KindInt64:
			r, ok := intArith(c.ints[i], other.ints[i], op)
			if !ok {
				out.pushNullPlaceholder()
				continue
			}
			out.ints = append(out.ints, r)
			out.nulls.Push(false)
		case KindFloat64:
			out.floats = append(out.floats, floatArith(c.floats[i], other.floats[i], op))
			out.nulls.Push(false)
		case KindNumeric, KindBigNumeric:
			r, ok := decimalArith(c.decs[i], other.decs[i], op)
			if !ok {
				out.pushNullPlaceholder()
				continue
			}
			out.decs = append(out.decs, r)
			out.nulls.Push(false)
		}
	}
	return out, nil
}

// intArith applies checked 64-bit arithmetic. Overflow and division by zero
// report not-ok, which the caller turns into a null slot.
func intArith(l, r int64, op arithOp) (int64, bool) {
	switch op {
	case opAdd:
		sum := l + r
		if (l > 0 && r > 0 && sum < 0) || (l < 0 && r < 0 && sum >= 0) {
			return 0, false
		}
		return sum, true
	case opSub:
		diff := l - r
		if (l >= 0 && r < 0 && diff < 0) || (l < 0 && r > 0 && diff >= 0) {
			return 0, false
		}
		return diff, true
	case opMul:
		if l == 0 || r == 0 {
			return 0, true
		}
		prod := l * r
		if prod/r != l || (l == math.MinInt64 && r == -1) {
			return 0, false
		}
		return prod, true
	case opDiv:
		if r == 0 {
			return 0, false
		}
		if l == math.MinInt64 && r == -1 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func floatArith(l, r float64, op arithOp) float64 {
	switch op {
	case opAdd:
		return l + r
	case opSub:
		return l - r
	case opMul:
		return l * r
	default:
		return l / r
	}
}

func decimalArith(l, r decimal.Decimal, op arithOp) (decimal.Decimal, bool) {
	switch op {
	case opAdd:
		return l.Add(r), true
	case opSub:
		return l.Sub(r), true
	case opMul:
		return l.Mul(r), true
	default:
		if r.IsZero() {
			return decimal.Zero, false
		}
		return l.DivRound(r, 38), true
	}
}

// UnaryNeg negates a signed numeric column, preserving nulls.
func (c *Column) UnaryNeg() (*Column, error) {
	if !c.typ.IsNumericKind() {
		return nil, common.NewTypeMismatchError("numeric", c.typ.String())
	}
	out := NewColumn(c.typ)
	for i := 0; i < c.Len(); i++ {
		if c.nulls.IsNull(i) {
			out.pushNullPlaceholder()
			continue
		}
		switch c.typ.Kind {
		case KindInt64:
			if c.ints[i] == math.MinInt64 {
				out.pushNullPlaceholder()
				continue
			}
			out.ints = append(out.ints, -c.ints[i])
			out.nulls.Push(false)
		case KindFloat64:
			out.floats = append(out.floats, -c.floats[i])
			out.nulls.Push(false)
		case KindNumeric, KindBigNumeric:
			out.decs = append(out.decs, c.decs[i].Neg())
			out.nulls.Push(false)
		}
	}
	return out, nil
}
