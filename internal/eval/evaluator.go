package eval

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// SubqueryRunner is the executor callback the evaluator uses for subquery
// expressions, with the outer row bound.
type SubqueryRunner interface {
	RunScalar(plan ir.LogicalPlan, outer storage.Record) (storage.Value, error)
	RunColumn(plan ir.LogicalPlan, outer storage.Record) ([]storage.Value, error)
	RunExists(plan ir.LogicalPlan, outer storage.Record) (bool, error)
}

// Evaluator interprets a scalar expression over a single record. The three
// registries are captured by reference and immutable for the query.
type Evaluator struct {
	Funcs    *FunctionRegistry
	Vars     *VariableRegistry
	SysVars  *VariableRegistry
	Subquery SubqueryRunner
}

// NewEvaluator wires an evaluator with its registries.
func NewEvaluator(funcs *FunctionRegistry, vars, sysVars *VariableRegistry) *Evaluator {
	return &Evaluator{Funcs: funcs, Vars: vars, SysVars: sysVars}
}

// Eval evaluates e over rec.
func (ev *Evaluator) Eval(e ir.Expr, rec storage.Record) (storage.Value, error) {
	switch n := e.(type) {
	case *ir.ColumnRef:
		return ev.evalColumn(n, rec)
	case *ir.Literal:
		return n.Value, nil
	case *ir.Binary:
		return ev.evalBinary(n, rec)
	case *ir.Unary:
		return ev.evalUnary(n, rec)
	case *ir.IsNull:
		v, err := ev.Eval(n.Operand, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		return storage.NewBool(v.IsNull() != n.Negated), nil
	case *ir.IsDistinctFrom:
		return ev.evalIsDistinctFrom(n, rec)
	case *ir.Cast:
		v, err := ev.Eval(n.Operand, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		return castValue(v, n.Target, n.Safe)
	case *ir.Alias:
		return ev.Eval(n.Operand, rec)
	case *ir.Like:
		return ev.evalLike(n, rec)
	case *ir.InList:
		return ev.evalInList(n, rec)
	case *ir.Between:
		return ev.evalBetween(n, rec)
	case *ir.Case:
		return ev.evalCase(n, rec)
	case *ir.ScalarFunc:
		return ev.evalScalarFunc(n, rec)
	case *ir.Aggregate:
		return storage.NewNull(), common.NewInternalError(
			fmt.Sprintf("aggregate %s reached the scalar evaluator", n.Func))
	case *ir.WindowFunc:
		return storage.NewNull(), common.NewInternalError(
			fmt.Sprintf("window function %s reached the scalar evaluator", n.Func))
	case *ir.Lambda:
		return storage.NewNull(), common.NewInternalError("bare lambda reached the scalar evaluator")
	case *ir.ScalarSubquery:
		if ev.Subquery == nil {
			return storage.NewNull(), common.NewInternalError("no subquery runner bound")
		}
		return ev.Subquery.RunScalar(n.Plan, rec)
	case *ir.ExistsSubquery:
		if ev.Subquery == nil {
			return storage.NewNull(), common.NewInternalError("no subquery runner bound")
		}
		exists, err := ev.Subquery.RunExists(n.Plan, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		return storage.NewBool(exists), nil
	case *ir.InSubquery:
		return ev.evalInSubquery(n, rec)
	case *ir.ArraySubquery:
		if ev.Subquery == nil {
			return storage.NewNull(), common.NewInternalError("no subquery runner bound")
		}
		values, err := ev.Subquery.RunColumn(n.Plan, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		return storage.NewArray(values, arrayElemType(values)), nil
	case *ir.ArrayLit:
		return ev.evalArrayLit(n, rec)
	case *ir.StructLit:
		return ev.evalStructLit(n, rec)
	case *ir.ArrayIndex:
		return ev.evalArrayIndex(n, rec)
	case *ir.FieldAccess:
		return ev.evalFieldAccess(n, rec)
	case *ir.JSONAccess:
		return ev.evalJSONAccess(n, rec)
	case *ir.Param:
		return ev.evalParam(n)
	default:
		return storage.NewNull(), common.NewInternalError(fmt.Sprintf("unhandled expression %T", e))
	}
}

// evalColumn reads a column from the record. A resolved index is the fast
// path; otherwise the name is looked up on the enclosing schema.
func (ev *Evaluator) evalColumn(n *ir.ColumnRef, rec storage.Record) (storage.Value, error) {
	if n.Index != nil {
		idx := *n.Index
		if idx < 0 || idx >= len(rec.Values) {
			return storage.NewNull(), common.NewOutOfBoundsError(idx, len(rec.Values))
		}
		return rec.Values[idx], nil
	}
	v, ok := rec.GetByName(n.Table, n.Name)
	if !ok {
		return storage.NewNull(), common.NewUnresolvedColumnError(n.String())
	}
	return v, nil
}

func (ev *Evaluator) evalParam(n *ir.Param) (storage.Value, error) {
	reg := ev.Vars
	if n.System {
		reg = ev.SysVars
	}
	if reg == nil {
		return storage.NewNull(), common.NewError(common.ErrorKindUnresolvedName,
			common.ErrCodeUnknownVariable, fmt.Sprintf("variable '%s' not bound", n.Name))
	}
	v, ok := reg.Get(n.Name)
	if !ok {
		return storage.NewNull(), common.NewError(common.ErrorKindUnresolvedName,
			common.ErrCodeUnknownVariable, fmt.Sprintf("variable '%s' not bound", n.Name))
	}
	return v, nil
}

func (ev *Evaluator) evalBinary(n *ir.Binary, rec storage.Record) (storage.Value, error) {
	// AND/OR must not short-circuit evaluation errors away, but they do
	// tolerate a null side per Kleene semantics.
	if n.Op == ir.OpAnd || n.Op == ir.OpOr {
		left, err := ev.Eval(n.Left, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		right, err := ev.Eval(n.Right, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		return kleene(n.Op, left, right)
	}
	left, err := ev.Eval(n.Left, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	right, err := ev.Eval(n.Right, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	return ApplyBinary(n.Op, left, right)
}

// kleene applies three-valued AND/OR to scalar bools.
func kleene(op ir.BinaryOp, left, right storage.Value) (storage.Value, error) {
	lNull, rNull := left.IsNull(), right.IsNull()
	if !lNull && left.Kind() != storage.KindBool {
		return storage.NewNull(), common.NewTypeMismatchError("BOOL", left.DataType().String())
	}
	if !rNull && right.Kind() != storage.KindBool {
		return storage.NewNull(), common.NewTypeMismatchError("BOOL", right.DataType().String())
	}
	if op == ir.OpAnd {
		if (!lNull && !left.AsBool()) || (!rNull && !right.AsBool()) {
			return storage.NewBool(false), nil
		}
		if lNull || rNull {
			return storage.NewNull(), nil
		}
		return storage.NewBool(left.AsBool() && right.AsBool()), nil
	}
	if (!lNull && left.AsBool()) || (!rNull && right.AsBool()) {
		return storage.NewBool(true), nil
	}
	if lNull || rNull {
		return storage.NewNull(), nil
	}
	return storage.NewBool(left.AsBool() || right.AsBool()), nil
}

// ApplyBinary applies a non-logical binary operator to two scalars with SQL
// null propagation and numeric promotion.
func ApplyBinary(op ir.BinaryOp, left, right storage.Value) (storage.Value, error) {
	if left.IsNull() || right.IsNull() {
		return storage.NewNull(), nil
	}
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
		return applyArith(op, left, right)
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return applyComparison(op, left, right)
	case ir.OpConcat:
		return applyConcat(left, right)
	default:
		return storage.NewNull(), common.NewInternalError(fmt.Sprintf("unhandled binary op %s", op))
	}
}

func applyArith(op ir.BinaryOp, left, right storage.Value) (storage.Value, error) {
	// Interval arithmetic on date-ish values is handled before numeric
	// promotion.
	if v, ok, err := applyIntervalArith(op, left, right); ok {
		return v, err
	}
	lk, rk := left.Kind(), right.Kind()
	switch {
	case lk == storage.KindFloat64 || rk == storage.KindFloat64:
		l, lok := toFloat(left)
		r, rok := toFloat(right)
		if !lok || !rok {
			return storage.NewNull(), arithTypeError(left, right)
		}
		if op == ir.OpDiv && r == 0 {
			return storage.NewNull(), nil
		}
		return storage.NewFloat64(floatArithScalar(op, l, r)), nil
	case lk == storage.KindNumeric || rk == storage.KindNumeric ||
		lk == storage.KindBigNumeric || rk == storage.KindBigNumeric:
		l, lok := toDecimal(left)
		r, rok := toDecimal(right)
		if !lok || !rok {
			return storage.NewNull(), arithTypeError(left, right)
		}
		big := lk == storage.KindBigNumeric || rk == storage.KindBigNumeric
		out, ok := decimalArithScalar(op, l, r)
		if !ok {
			return storage.NewNull(), nil
		}
		if big {
			return storage.NewBigNumeric(out), nil
		}
		return storage.NewNumeric(out), nil
	case lk == storage.KindInt64 && rk == storage.KindInt64:
		out, ok := intArithScalar(op, left.AsInt64(), right.AsInt64())
		if !ok {
			return storage.NewNull(), nil
		}
		return storage.NewInt64(out), nil
	default:
		return storage.NewNull(), arithTypeError(left, right)
	}
}

func arithTypeError(left, right storage.Value) error {
	return common.NewTypeMismatchError(left.DataType().String(), right.DataType().String())
}

func floatArithScalar(op ir.BinaryOp, l, r float64) float64 {
	switch op {
	case ir.OpAdd:
		return l + r
	case ir.OpSub:
		return l - r
	case ir.OpMul:
		return l * r
	default:
		return l / r
	}
}

func intArithScalar(op ir.BinaryOp, l, r int64) (int64, bool) {
	switch op {
	case ir.OpAdd:
		sum := l + r
		if (l > 0 && r > 0 && sum < 0) || (l < 0 && r < 0 && sum >= 0) {
			return 0, false
		}
		return sum, true
	case ir.OpSub:
		diff := l - r
		if (l >= 0 && r < 0 && diff < 0) || (l < 0 && r > 0 && diff >= 0) {
			return 0, false
		}
		return diff, true
	case ir.OpMul:
		if l == 0 || r == 0 {
			return 0, true
		}
		prod := l * r
		if prod/r != l {
			return 0, false
		}
		return prod, true
	default:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	}
}

func decimalArithScalar(op ir.BinaryOp, l, r decimal.Decimal) (decimal.Decimal, bool) {
	switch op {
	case ir.OpAdd:
		return l.Add(r), true
	case ir.OpSub:
		return l.Sub(r), true
	case ir.OpMul:
		return l.Mul(r), true
	default:
		if r.IsZero() {
			return decimal.Zero, false
		}
		return l.DivRound(r, 38), true
	}
}

// applyIntervalArith handles interval +/- over dates, datetimes and
// timestamps, plus interval +/- interval.
func applyIntervalArith(op ir.BinaryOp, left, right storage.Value) (storage.Value, bool, error) {
	if op != ir.OpAdd && op != ir.OpSub {
		return storage.Value{}, false, nil
	}
	lk, rk := left.Kind(), right.Kind()
	if lk == storage.KindInterval && rk == storage.KindInterval {
		l, r := left.AsInterval(), right.AsInterval()
		if op == ir.OpSub {
			r = storage.Interval{Months: -r.Months, Days: -r.Days, Nanos: -r.Nanos}
		}
		return storage.NewInterval(storage.Interval{
			Months: l.Months + r.Months,
			Days:   l.Days + r.Days,
			Nanos:  l.Nanos + r.Nanos,
		}), true, nil
	}
	if rk != storage.KindInterval {
		return storage.Value{}, false, nil
	}
	iv := right.AsInterval()
	if op == ir.OpSub {
		iv = storage.Interval{Months: -iv.Months, Days: -iv.Days, Nanos: -iv.Nanos}
	}
	switch lk {
	case storage.KindDate, storage.KindDateTime, storage.KindTimestamp:
		t := left.AsTime().AddDate(0, int(iv.Months), int(iv.Days)).
			Add(timeDuration(iv.Nanos))
		switch lk {
		case storage.KindDate:
			return storage.NewDate(t), true, nil
		case storage.KindDateTime:
			return storage.NewDateTime(t), true, nil
		default:
			return storage.NewTimestamp(t), true, nil
		}
	default:
		return storage.Value{}, false, nil
	}
}

func applyComparison(op ir.BinaryOp, left, right storage.Value) (storage.Value, error) {
	left, right = promoteNumericPair(left, right)
	cmp, ok := left.Compare(right)
	if !ok {
		return storage.NewNull(), common.NewTypeMismatchError(
			left.DataType().String(), right.DataType().String())
	}
	switch op {
	case ir.OpEq:
		// Equality goes through Compare, not structural Equal, so it
		// agrees with the ordering operators.
		return storage.NewBool(cmp == 0), nil
	case ir.OpNe:
		return storage.NewBool(cmp != 0), nil
	case ir.OpLt:
		return storage.NewBool(cmp < 0), nil
	case ir.OpLe:
		return storage.NewBool(cmp <= 0), nil
	case ir.OpGt:
		return storage.NewBool(cmp > 0), nil
	default:
		return storage.NewBool(cmp >= 0), nil
	}
}

func applyConcat(left, right storage.Value) (storage.Value, error) {
	switch {
	case left.Kind() == storage.KindString && right.Kind() == storage.KindString:
		return storage.NewString(left.AsString() + right.AsString()), nil
	case left.Kind() == storage.KindBytes && right.Kind() == storage.KindBytes:
		out := append(append([]byte{}, left.AsBytes()...), right.AsBytes()...)
		return storage.NewBytes(out), nil
	case left.Kind() == storage.KindArray && right.Kind() == storage.KindArray:
		elems := append(append([]storage.Value{}, left.AsArray()...), right.AsArray()...)
		return storage.NewArray(elems, arrayElemType(elems)), nil
	default:
		return storage.NewNull(), common.NewTypeMismatchError(
			left.DataType().String(), right.DataType().String())
	}
}

func (ev *Evaluator) evalUnary(n *ir.Unary, rec storage.Record) (storage.Value, error) {
	v, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if v.IsNull() {
		return storage.NewNull(), nil
	}
	switch n.Op {
	case ir.OpNot:
		if v.Kind() != storage.KindBool {
			return storage.NewNull(), common.NewTypeMismatchError("BOOL", v.DataType().String())
		}
		return storage.NewBool(!v.AsBool()), nil
	case ir.OpNeg:
		switch v.Kind() {
		case storage.KindInt64:
			return storage.NewInt64(-v.AsInt64()), nil
		case storage.KindFloat64:
			return storage.NewFloat64(-v.AsFloat64()), nil
		case storage.KindNumeric:
			return storage.NewNumeric(v.AsDecimal().Neg()), nil
		case storage.KindBigNumeric:
			return storage.NewBigNumeric(v.AsDecimal().Neg()), nil
		default:
			return storage.NewNull(), common.NewTypeMismatchError("numeric", v.DataType().String())
		}
	default:
		return v, nil
	}
}

func (ev *Evaluator) evalIsDistinctFrom(n *ir.IsDistinctFrom, rec storage.Record) (storage.Value, error) {
	left, err := ev.Eval(n.Left, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	right, err := ev.Eval(n.Right, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	var distinct bool
	switch {
	case left.IsNull() && right.IsNull():
		distinct = false
	case left.IsNull() != right.IsNull():
		distinct = true
	default:
		l, r := promoteNumericPair(left, right)
		distinct = !l.Equal(r)
	}
	return storage.NewBool(distinct != n.Negated), nil
}

func (ev *Evaluator) evalInList(n *ir.InList, rec storage.Record) (storage.Value, error) {
	operand, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if operand.IsNull() {
		return storage.NewNull(), nil
	}
	sawNull := false
	for _, item := range n.List {
		v, err := ev.Eval(item, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		if v.IsNull() {
			sawNull = true
			continue
		}
		l, r := promoteNumericPair(operand, v)
		if l.Equal(r) {
			return storage.NewBool(!n.Negated), nil
		}
	}
	if sawNull {
		return storage.NewNull(), nil
	}
	return storage.NewBool(n.Negated), nil
}

func (ev *Evaluator) evalInSubquery(n *ir.InSubquery, rec storage.Record) (storage.Value, error) {
	if ev.Subquery == nil {
		return storage.NewNull(), common.NewInternalError("no subquery runner bound")
	}
	operand, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if operand.IsNull() {
		return storage.NewNull(), nil
	}
	values, err := ev.Subquery.RunColumn(n.Plan, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	sawNull := false
	for _, v := range values {
		if v.IsNull() {
			sawNull = true
			continue
		}
		l, r := promoteNumericPair(operand, v)
		if l.Equal(r) {
			return storage.NewBool(!n.Negated), nil
		}
	}
	if sawNull {
		return storage.NewNull(), nil
	}
	return storage.NewBool(n.Negated), nil
}

func (ev *Evaluator) evalBetween(n *ir.Between, rec storage.Record) (storage.Value, error) {
	operand, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	low, err := ev.Eval(n.Low, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	high, err := ev.Eval(n.High, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	ge, err := ApplyBinary(ir.OpGe, operand, low)
	if err != nil {
		return storage.NewNull(), err
	}
	le, err := ApplyBinary(ir.OpLe, operand, high)
	if err != nil {
		return storage.NewNull(), err
	}
	within, err := kleene(ir.OpAnd, ge, le)
	if err != nil {
		return storage.NewNull(), err
	}
	if within.IsNull() {
		return storage.NewNull(), nil
	}
	return storage.NewBool(within.AsBool() != n.Negated), nil
}

func (ev *Evaluator) evalCase(n *ir.Case, rec storage.Record) (storage.Value, error) {
	var operand storage.Value
	simple := n.Operand != nil
	if simple {
		var err error
		operand, err = ev.Eval(n.Operand, rec)
		if err != nil {
			return storage.NewNull(), err
		}
	}
	for _, when := range n.Whens {
		cond, err := ev.Eval(when.Condition, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		matched := false
		if simple {
			if !operand.IsNull() && !cond.IsNull() {
				l, r := promoteNumericPair(operand, cond)
				matched = l.Equal(r)
			}
		} else {
			matched = !cond.IsNull() && cond.Kind() == storage.KindBool && cond.AsBool()
		}
		if matched {
			return ev.Eval(when.Result, rec)
		}
	}
	if n.Else != nil {
		return ev.Eval(n.Else, rec)
	}
	return storage.NewNull(), nil
}

func (ev *Evaluator) evalScalarFunc(n *ir.ScalarFunc, rec storage.Record) (storage.Value, error) {
	// Lambda-taking builtins get the lambda applied here, where the
	// record is in scope.
	if v, handled, err := ev.evalLambdaFunc(n, rec); handled {
		return v, err
	}
	args := make([]storage.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.Eval(a, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		args[i] = v
	}
	if ev.Funcs == nil {
		return storage.NewNull(), common.NewUnknownFunctionError(n.Name)
	}
	return ev.Funcs.Call(n.Name, args)
}

func (ev *Evaluator) evalArrayLit(n *ir.ArrayLit, rec storage.Record) (storage.Value, error) {
	elems := make([]storage.Value, len(n.Elems))
	for i, e := range n.Elems {
		v, err := ev.Eval(e, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		elems[i] = v
	}
	if n.Elem != nil {
		return storage.NewArray(elems, *n.Elem), nil
	}
	return storage.NewArray(elems, arrayElemType(elems)), nil
}

func (ev *Evaluator) evalStructLit(n *ir.StructLit, rec storage.Record) (storage.Value, error) {
	values := make([]storage.Value, len(n.Exprs))
	for i, e := range n.Exprs {
		v, err := ev.Eval(e, rec)
		if err != nil {
			return storage.NewNull(), err
		}
		values[i] = v
	}
	return storage.NewStruct(n.Names, values), nil
}

func (ev *Evaluator) evalArrayIndex(n *ir.ArrayIndex, rec storage.Record) (storage.Value, error) {
	arr, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	idx, err := ev.Eval(n.Index, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if arr.IsNull() || idx.IsNull() {
		return storage.NewNull(), nil
	}
	if arr.Kind() != storage.KindArray {
		return storage.NewNull(), common.NewTypeMismatchError("ARRAY", arr.DataType().String())
	}
	if idx.Kind() != storage.KindInt64 {
		return storage.NewNull(), common.NewTypeMismatchError("INT64", idx.DataType().String())
	}
	elems := arr.AsArray()
	offset := idx.AsInt64()
	if n.Mode == ir.IndexOrdinal || n.Mode == ir.IndexSafeOrdinal {
		offset--
	}
	if offset < 0 || offset >= int64(len(elems)) {
		if n.Mode == ir.IndexSafeOffset || n.Mode == ir.IndexSafeOrdinal {
			return storage.NewNull(), nil
		}
		return storage.NewNull(), common.NewOutOfBoundsError(int(offset), len(elems))
	}
	return elems[offset], nil
}

func (ev *Evaluator) evalFieldAccess(n *ir.FieldAccess, rec storage.Record) (storage.Value, error) {
	v, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if v.IsNull() {
		return storage.NewNull(), nil
	}
	if v.Kind() != storage.KindStruct {
		return storage.NewNull(), common.NewTypeMismatchError("STRUCT", v.DataType().String())
	}
	field, ok := v.StructField(n.Field)
	if !ok {
		return storage.NewNull(), common.NewUnresolvedColumnError(n.Field)
	}
	return field, nil
}

func (ev *Evaluator) evalJSONAccess(n *ir.JSONAccess, rec storage.Record) (storage.Value, error) {
	v, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	key, err := ev.Eval(n.Key, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if v.IsNull() || key.IsNull() {
		return storage.NewNull(), nil
	}
	if v.Kind() != storage.KindJSON {
		return storage.NewNull(), common.NewTypeMismatchError("JSON", v.DataType().String())
	}
	switch doc := v.AsJSON().(type) {
	case map[string]any:
		if key.Kind() != storage.KindString {
			return storage.NewNull(), nil
		}
		child, ok := doc[key.AsString()]
		if !ok {
			return storage.NewNull(), nil
		}
		return storage.NewJSON(child), nil
	case []any:
		if key.Kind() != storage.KindInt64 {
			return storage.NewNull(), nil
		}
		i := key.AsInt64()
		if i < 0 || i >= int64(len(doc)) {
			return storage.NewNull(), nil
		}
		return storage.NewJSON(doc[i]), nil
	default:
		return storage.NewNull(), nil
	}
}

// promoteNumericPair widens INT64/NUMERIC/FLOAT64 pairs to a common kind so
// comparisons see matching variants.
func promoteNumericPair(left, right storage.Value) (storage.Value, storage.Value) {
	lk, rk := left.Kind(), right.Kind()
	if lk == rk {
		return left, right
	}
	if lk == storage.KindFloat64 || rk == storage.KindFloat64 {
		if l, ok := toFloat(left); ok {
			if r, ok := toFloat(right); ok {
				return storage.NewFloat64(l), storage.NewFloat64(r)
			}
		}
		return left, right
	}
	numeric := func(k storage.TypeKind) bool {
		return k == storage.KindNumeric || k == storage.KindBigNumeric
	}
	if numeric(lk) || numeric(rk) {
		if l, ok := toDecimal(left); ok {
			if r, ok := toDecimal(right); ok {
				return storage.NewNumeric(l), storage.NewNumeric(r)
			}
		}
	}
	return left, right
}

func toFloat(v storage.Value) (float64, bool) {
	switch v.Kind() {
	case storage.KindFloat64:
		return v.AsFloat64(), true
	case storage.KindInt64:
		return float64(v.AsInt64()), true
	case storage.KindNumeric, storage.KindBigNumeric:
		f, _ := v.AsDecimal().Float64()
		return f, true
	default:
		return 0, false
	}
}

func toDecimal(v storage.Value) (decimal.Decimal, bool) {
	switch v.Kind() {
	case storage.KindNumeric, storage.KindBigNumeric:
		return v.AsDecimal(), true
	case storage.KindInt64:
		return decimal.NewFromInt(v.AsInt64()), true
	case storage.KindFloat64:
		return decimal.NewFromFloat(v.AsFloat64()), true
	default:
		return decimal.Zero, false
	}
}

// arrayElemType infers the element type from the first non-null element.
func arrayElemType(elems []storage.Value) storage.DataType {
	for _, e := range elems {
		if !e.IsNull() {
			return e.DataType()
		}
	}
	return storage.UnknownType()
}
