package storage

import (
	"github.com/lychee-technology/yachtsql/internal/common"
)

// BinaryAnd applies Kleene AND: a definite false wins over null, both-null is
// null. A mixed-type pair is accepted when one side is entirely null, which
// covers predicates over an all-null filter column.
func (c *Column) BinaryAnd(other *Column) (*Column, error) {
	left, right, err := c.logicOperands(other)
	if err != nil {
		return nil, err
	}
	n := c.Len()
	out := boolResult(n)
	for i := 0; i < n; i++ {
		lNull, rNull := left.isLogicNull(i), right.isLogicNull(i)
		lVal, rVal := left.logicValue(i), right.logicValue(i)
		switch {
		case !lNull && !lVal, !rNull && !rVal:
			out.appendBool(false)
		case lNull || rNull:
			out.appendNullBool()
		default:
			out.appendBool(lVal && rVal)
		}
	}
	return out, nil
}

// BinaryOr applies Kleene OR: a definite true wins over null, both-null is
// null.
func (c *Column) BinaryOr(other *Column) (*Column, error) {
	left, right, err := c.logicOperands(other)
	if err != nil {
		return nil, err
	}
	n := c.Len()
	out := boolResult(n)
	for i := 0; i < n; i++ {
		lNull, rNull := left.isLogicNull(i), right.isLogicNull(i)
		lVal, rVal := left.logicValue(i), right.logicValue(i)
		switch {
		case !lNull && lVal, !rNull && rVal:
			out.appendBool(true)
		case lNull || rNull:
			out.appendNullBool()
		default:
			out.appendBool(lVal || rVal)
		}
	}
	return out, nil
}

// logicOperands validates a Kleene pair. Non-BOOL sides are only tolerated
// when every slot is null.
func (c *Column) logicOperands(other *Column) (*Column, *Column, error) {
	if err := c.checkSameLength(other); err != nil {
		return nil, nil, err
	}
	lOk := c.typ.Kind == KindBool || c.nulls.AllNull() || c.Len() == 0
	rOk := other.typ.Kind == KindBool || other.nulls.AllNull() || other.Len() == 0
	if !lOk || !rOk {
		return nil, nil, common.NewTypeMismatchError("BOOL", c.describeNonBool(other))
	}
	return c, other, nil
}

func (c *Column) describeNonBool(other *Column) string {
	if c.typ.Kind != KindBool {
		return c.typ.String()
	}
	return other.typ.String()
}

// isLogicNull treats a non-BOOL (all-null) operand slot as null.
func (c *Column) isLogicNull(i int) bool {
	if c.typ.Kind != KindBool {
		return true
	}
	return c.nulls.IsNull(i)
}

func (c *Column) logicValue(i int) bool {
	if c.typ.Kind != KindBool {
		return false
	}
	return c.bools[i]
}

// UnaryNot inverts a BOOL column, preserving nulls.
func (c *Column) UnaryNot() (*Column, error) {
	if c.typ.Kind != KindBool {
		return nil, common.NewTypeMismatchError("BOOL", c.typ.String())
	}
	out := boolResult(c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.nulls.IsNull(i) {
			out.appendNullBool()
			continue
		}
		out.appendBool(!c.bools[i])
	}
	return out, nil
}

// IsNullMask returns a non-null BOOL column that is true where the row is
// null.
func (c *Column) IsNullMask() *Column {
	out := boolResult(c.Len())
	for i := 0; i < c.Len(); i++ {
		out.appendBool(c.nulls.IsNull(i))
	}
	return out
}

// IsNotNullMask returns a non-null BOOL column that is true where the row is
// valid.
func (c *Column) IsNotNullMask() *Column {
	out := boolResult(c.Len())
	for i := 0; i < c.Len(); i++ {
		out.appendBool(!c.nulls.IsNull(i))
	}
	return out
}
