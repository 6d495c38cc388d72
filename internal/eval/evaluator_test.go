package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(NewFunctionRegistry(), NewVariableRegistry(), NewVariableRegistry())
}

func testRecord() storage.Record {
	schema := storage.NewSchema([]storage.Field{
		{Name: "a", Type: storage.Int64Type()},
		{Name: "b", Type: storage.Int64Type()},
		{Name: "s", Type: storage.StringType()},
	})
	return storage.NewRecord(&schema, []storage.Value{
		storage.NewInt64(10),
		storage.NewNull(),
		storage.NewString("hello"),
	})
}

func evalExpr(t *testing.T, e ir.Expr) storage.Value {
	t.Helper()
	v, err := testEvaluator().Eval(e, testRecord())
	require.NoError(t, err)
	return v
}

func TestColumnByResolvedIndex(t *testing.T) {
	v := evalExpr(t, ir.ColIndex("a", 0))
	assert.Equal(t, int64(10), v.AsInt64())
}

func TestColumnByNameLookup(t *testing.T) {
	v := evalExpr(t, ir.Col("s"))
	assert.Equal(t, "hello", v.AsString())
}

func TestUnresolvedColumnErrors(t *testing.T) {
	_, err := testEvaluator().Eval(ir.Col("missing"), testRecord())
	assert.Error(t, err)
}

func TestArithmeticNullPropagation(t *testing.T) {
	v := evalExpr(t, ir.NewBinary(ir.OpAdd, ir.ColIndex("a", 0), ir.ColIndex("b", 1)))
	assert.True(t, v.IsNull())
}

func TestArithmeticPromotion(t *testing.T) {
	v := evalExpr(t, ir.NewBinary(ir.OpMul, ir.Lit(storage.NewInt64(3)), ir.Lit(storage.NewFloat64(2.5))))
	assert.Equal(t, storage.KindFloat64, v.Kind())
	assert.InDelta(t, 7.5, v.AsFloat64(), 1e-9)
}

func TestDivisionByZeroIsNull(t *testing.T) {
	v := evalExpr(t, ir.NewBinary(ir.OpDiv, ir.Lit(storage.NewInt64(5)), ir.Lit(storage.NewInt64(0))))
	assert.True(t, v.IsNull())
}

func TestKleeneScalarAnd(t *testing.T) {
	null := ir.Lit(storage.NewNull())
	f := ir.Lit(storage.NewBool(false))
	tr := ir.Lit(storage.NewBool(true))

	v := evalExpr(t, ir.NewBinary(ir.OpAnd, f, null))
	require.False(t, v.IsNull())
	assert.False(t, v.AsBool())

	v = evalExpr(t, ir.NewBinary(ir.OpAnd, tr, null))
	assert.True(t, v.IsNull())

	v = evalExpr(t, ir.NewBinary(ir.OpOr, tr, null))
	require.False(t, v.IsNull())
	assert.True(t, v.AsBool())

	v = evalExpr(t, ir.NewBinary(ir.OpOr, f, null))
	assert.True(t, v.IsNull())
}

func TestIsNull(t *testing.T) {
	v := evalExpr(t, &ir.IsNull{Operand: ir.ColIndex("b", 1)})
	assert.True(t, v.AsBool())
	v = evalExpr(t, &ir.IsNull{Operand: ir.ColIndex("a", 0), Negated: true})
	assert.True(t, v.AsBool())
}

func TestIsDistinctFrom(t *testing.T) {
	null := ir.Lit(storage.NewNull())
	v := evalExpr(t, &ir.IsDistinctFrom{Left: null, Right: null})
	require.False(t, v.IsNull())
	assert.False(t, v.AsBool())

	v = evalExpr(t, &ir.IsDistinctFrom{Left: ir.Lit(storage.NewInt64(1)), Right: null})
	assert.True(t, v.AsBool())
}

func TestCastStringToInt64(t *testing.T) {
	v := evalExpr(t, &ir.Cast{Operand: ir.Lit(storage.NewString("42")), Target: storage.Int64Type()})
	assert.Equal(t, int64(42), v.AsInt64())
}

func TestSafeCastFailureIsNull(t *testing.T) {
	v := evalExpr(t, &ir.Cast{Operand: ir.Lit(storage.NewString("nope")), Target: storage.Int64Type(), Safe: true})
	assert.True(t, v.IsNull())
}

func TestCastFailureErrors(t *testing.T) {
	_, err := testEvaluator().Eval(
		&ir.Cast{Operand: ir.Lit(storage.NewString("nope")), Target: storage.Int64Type()}, testRecord())
	assert.Error(t, err)
}

func TestLike(t *testing.T) {
	v := evalExpr(t, &ir.Like{
		Operand: ir.Lit(storage.NewString("hello world")),
		Pattern: ir.Lit(storage.NewString("hello%")),
	})
	assert.True(t, v.AsBool())

	v = evalExpr(t, &ir.Like{
		Operand: ir.Lit(storage.NewString("hat")),
		Pattern: ir.Lit(storage.NewString("h_t")),
	})
	assert.True(t, v.AsBool())

	v = evalExpr(t, &ir.Like{
		Operand: ir.Lit(storage.NewString("hello")),
		Pattern: ir.Lit(storage.NewString("h_t")),
		Negated: true,
	})
	assert.True(t, v.AsBool())
}

func TestInListNullSemantics(t *testing.T) {
	// 1 IN (2, NULL) is NULL, 1 IN (1, NULL) is TRUE.
	v := evalExpr(t, &ir.InList{
		Operand: ir.Lit(storage.NewInt64(1)),
		List:    []ir.Expr{ir.Lit(storage.NewInt64(2)), ir.Lit(storage.NewNull())},
	})
	assert.True(t, v.IsNull())

	v = evalExpr(t, &ir.InList{
		Operand: ir.Lit(storage.NewInt64(1)),
		List:    []ir.Expr{ir.Lit(storage.NewInt64(1)), ir.Lit(storage.NewNull())},
	})
	assert.True(t, v.AsBool())
}

func TestBetween(t *testing.T) {
	v := evalExpr(t, &ir.Between{
		Operand: ir.ColIndex("a", 0),
		Low:     ir.Lit(storage.NewInt64(5)),
		High:    ir.Lit(storage.NewInt64(15)),
	})
	assert.True(t, v.AsBool())
}

func TestCaseSearched(t *testing.T) {
	v := evalExpr(t, &ir.Case{
		Whens: []ir.When{
			{
				Condition: ir.NewBinary(ir.OpGt, ir.ColIndex("a", 0), ir.Lit(storage.NewInt64(5))),
				Result:    ir.Lit(storage.NewString("big")),
			},
		},
		Else: ir.Lit(storage.NewString("small")),
	})
	assert.Equal(t, "big", v.AsString())
}

func TestCaseSimple(t *testing.T) {
	v := evalExpr(t, &ir.Case{
		Operand: ir.ColIndex("a", 0),
		Whens: []ir.When{
			{Condition: ir.Lit(storage.NewInt64(10)), Result: ir.Lit(storage.NewString("ten"))},
		},
	})
	assert.Equal(t, "ten", v.AsString())
}

func TestScalarFunctions(t *testing.T) {
	v := evalExpr(t, ir.Func("IFNULL", ir.ColIndex("b", 1), ir.Lit(storage.NewInt64(-1))))
	assert.Equal(t, int64(-1), v.AsInt64())

	v = evalExpr(t, ir.Func("UPPER", ir.ColIndex("s", 2)))
	assert.Equal(t, "HELLO", v.AsString())

	v = evalExpr(t, ir.Func("SUBSTR", ir.Lit(storage.NewString("abcdef")), ir.Lit(storage.NewInt64(2)), ir.Lit(storage.NewInt64(3))))
	assert.Equal(t, "bcd", v.AsString())

	v = evalExpr(t, ir.Func("COALESCE", ir.Lit(storage.NewNull()), ir.Lit(storage.NewInt64(9))))
	assert.Equal(t, int64(9), v.AsInt64())

	v = evalExpr(t, ir.Func("SAFE_DIVIDE", ir.Lit(storage.NewInt64(1)), ir.Lit(storage.NewInt64(0))))
	assert.True(t, v.IsNull())
}

func TestUnknownFunctionErrors(t *testing.T) {
	_, err := testEvaluator().Eval(ir.Func("NOT_A_FUNCTION"), testRecord())
	assert.Error(t, err)
}

func TestUserDefinedFunction(t *testing.T) {
	ev := testEvaluator()
	ev.Funcs.Register("ADD_ONE", func(args []storage.Value) (storage.Value, error) {
		return storage.NewInt64(args[0].AsInt64() + 1), nil
	})
	v, err := ev.Eval(ir.Func("add_one", ir.ColIndex("a", 0)), testRecord())
	require.NoError(t, err)
	assert.Equal(t, int64(11), v.AsInt64())
}

func TestParamLookup(t *testing.T) {
	ev := testEvaluator()
	ev.Vars.Set("limit", storage.NewInt64(3))
	v, err := ev.Eval(&ir.Param{Name: "limit"}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.AsInt64())

	_, err = ev.Eval(&ir.Param{Name: "missing"}, testRecord())
	assert.Error(t, err)
}

func TestArrayIndexModes(t *testing.T) {
	arr := ir.Lit(storage.NewArray([]storage.Value{
		storage.NewInt64(10), storage.NewInt64(20),
	}, storage.Int64Type()))

	v := evalExpr(t, &ir.ArrayIndex{Operand: arr, Index: ir.Lit(storage.NewInt64(0)), Mode: ir.IndexOffset})
	assert.Equal(t, int64(10), v.AsInt64())

	v = evalExpr(t, &ir.ArrayIndex{Operand: arr, Index: ir.Lit(storage.NewInt64(1)), Mode: ir.IndexOrdinal})
	assert.Equal(t, int64(10), v.AsInt64())

	_, err := testEvaluator().Eval(
		&ir.ArrayIndex{Operand: arr, Index: ir.Lit(storage.NewInt64(5)), Mode: ir.IndexOffset}, testRecord())
	assert.Error(t, err)

	v = evalExpr(t, &ir.ArrayIndex{Operand: arr, Index: ir.Lit(storage.NewInt64(5)), Mode: ir.IndexSafeOffset})
	assert.True(t, v.IsNull())
}

func TestStructAccess(t *testing.T) {
	s := ir.Lit(storage.NewStruct([]string{"x", "y"}, []storage.Value{
		storage.NewInt64(1), storage.NewString("two"),
	}))
	v := evalExpr(t, &ir.FieldAccess{Operand: s, Field: "y"})
	assert.Equal(t, "two", v.AsString())
}

func TestJSONAccess(t *testing.T) {
	doc := ir.Lit(storage.NewJSON(map[string]any{"k": "v", "n": float64(3)}))
	v := evalExpr(t, &ir.JSONAccess{Operand: doc, Key: ir.Lit(storage.NewString("k"))})
	require.Equal(t, storage.KindJSON, v.Kind())
	assert.Equal(t, "v", v.AsJSON())
}

func TestArrayTransformLambda(t *testing.T) {
	arr := ir.Lit(storage.NewArray([]storage.Value{
		storage.NewInt64(1), storage.NewInt64(2), storage.NewInt64(3),
	}, storage.Int64Type()))
	v := evalExpr(t, ir.Func("ARRAY_TRANSFORM", arr, &ir.Lambda{
		Params: []string{"x"},
		Body:   ir.NewBinary(ir.OpMul, ir.Col("x"), ir.Lit(storage.NewInt64(2))),
	}))
	elems := v.AsArray()
	require.Len(t, elems, 3)
	assert.Equal(t, int64(2), elems[0].AsInt64())
	assert.Equal(t, int64(6), elems[2].AsInt64())
}

func TestAggregateAtScalarLayerIsInternalError(t *testing.T) {
	_, err := testEvaluator().Eval(&ir.Aggregate{Func: "SUM"}, testRecord())
	assert.Error(t, err)
}
