package executor

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/eval"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// mapCatalog is the test catalog.
type mapCatalog map[string]*storage.Table

func (c mapCatalog) GetTable(name string) (*storage.Table, bool) {
	t, ok := c[name]
	return t, ok
}

func newTestExecutor(catalog mapCatalog, opts ...Option) *Executor {
	return New(catalog, eval.NewFunctionRegistry(), eval.NewVariableRegistry(), eval.NewVariableRegistry(), opts...)
}

func int64Table(t *testing.T, names []string, rows [][]any) *storage.Table {
	t.Helper()
	fields := make([]storage.Field, len(names))
	for i, name := range names {
		fields[i] = storage.Field{Name: name, Type: storage.Int64Type()}
	}
	table := storage.EmptyTable(storage.NewSchema(fields))
	for _, row := range rows {
		values := make([]storage.Value, len(row))
		for i, cell := range row {
			if cell == nil {
				values[i] = storage.NewNull()
			} else {
				values[i] = storage.NewInt64(int64(cell.(int)))
			}
		}
		require.NoError(t, table.PushRow(values))
	}
	return table
}

func planSchemaOf(table *storage.Table) ir.PlanSchema {
	return ir.FromStorageSchema(table.Schema())
}

func scanOf(name string, table *storage.Table) *physical.TableScan {
	return &physical.TableScan{Table: name, TableSchema: planSchemaOf(table)}
}

// rowKeys renders every row of a table as an encoded key, for multiset
// comparison.
func rowKeys(table *storage.Table) []string {
	keys := make([]string, 0, table.RowCount())
	for i := 0; i < table.RowCount(); i++ {
		keys = append(keys, storage.EncodeKey(table.Record(i).Values))
	}
	sort.Strings(keys)
	return keys
}

func execute(t *testing.T, ex *Executor, plan physical.Plan) *storage.Table {
	t.Helper()
	out, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	return out
}

func hashJoinPlan(left, right *physical.TableScan, joinType ir.JoinType, leftKey, rightKey int) *physical.HashJoin {
	out := left.Schema().Concat(right.Schema())
	switch joinType {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		out = left.Schema()
	case ir.JoinRightSemi, ir.JoinRightAnti:
		out = right.Schema()
	}
	return &physical.HashJoin{
		Left:      left,
		Right:     right,
		Type:      joinType,
		LeftKeys:  []ir.Expr{ir.ColIndex("", leftKey)},
		RightKeys: []ir.Expr{ir.ColIndex("", rightKey)},
		OutSchema: out,
	}
}

func nestedLoopPlan(left, right *physical.TableScan, joinType ir.JoinType, leftKey, rightKey int) *physical.NestedLoopJoin {
	out := left.Schema().Concat(right.Schema())
	switch joinType {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		out = left.Schema()
	case ir.JoinRightSemi, ir.JoinRightAnti:
		out = right.Schema()
	}
	rightIdx := left.Schema().Len() + rightKey
	return &physical.NestedLoopJoin{
		Left:      left,
		Right:     right,
		Type:      joinType,
		Condition: ir.Eq(ir.ColIndex("", leftKey), ir.ColIndex("", rightIdx)),
		OutSchema: out,
	}
}

func joinFixture(t *testing.T) (mapCatalog, *physical.TableScan, *physical.TableScan) {
	left := int64Table(t, []string{"lk", "lv"}, [][]any{
		{1, 100}, {2, 200}, {nil, 300}, {2, 400},
	})
	right := int64Table(t, []string{"rk", "rv"}, [][]any{
		{2, 20}, {3, 30}, {nil, 40},
	})
	catalog := mapCatalog{"left": left, "right": right}
	return catalog, scanOf("left", left), scanOf("right", right)
}

// TestHashJoinMatchesNestedLoop checks that both join strategies
// produce the same multiset for every join type.
func TestHashJoinMatchesNestedLoop(t *testing.T) {
	catalog, left, right := joinFixture(t)
	ex := newTestExecutor(catalog)
	joinTypes := []ir.JoinType{
		ir.JoinInner, ir.JoinLeft, ir.JoinRight, ir.JoinFull,
		ir.JoinLeftSemi, ir.JoinLeftAnti, ir.JoinRightSemi, ir.JoinRightAnti,
	}
	for _, joinType := range joinTypes {
		hashed := execute(t, ex, hashJoinPlan(left, right, joinType, 0, 0))
		looped := execute(t, ex, nestedLoopPlan(left, right, joinType, 0, 0))
		assert.Equal(t, rowKeys(looped), rowKeys(hashed), joinType.String())
	}
}

// TestHashJoinSerialMatchesParallel checks the round-trip law: a threshold
// of 1 forces the parallel path, which must match the serial row set and
// order.
func TestHashJoinSerialMatchesParallel(t *testing.T) {
	catalog, left, right := joinFixture(t)
	serial := newTestExecutor(catalog)
	parallel := newTestExecutor(catalog, WithParallelThreshold(1), WithWorkers(4))

	for _, joinType := range []ir.JoinType{ir.JoinInner, ir.JoinLeft, ir.JoinRight, ir.JoinLeftSemi, ir.JoinLeftAnti} {
		a := execute(t, serial, hashJoinPlan(left, right, joinType, 0, 0))
		b := execute(t, parallel, hashJoinPlan(left, right, joinType, 0, 0))
		require.Equal(t, a.RowCount(), b.RowCount(), joinType.String())
		for i := 0; i < a.RowCount(); i++ {
			assert.Equal(t,
				storage.EncodeKey(a.Record(i).Values),
				storage.EncodeKey(b.Record(i).Values),
				"row order must match the serial path")
		}
	}
}

func TestNestedLoopSerialMatchesParallel(t *testing.T) {
	catalog, left, right := joinFixture(t)
	serial := newTestExecutor(catalog)
	parallel := newTestExecutor(catalog, WithParallelThreshold(1), WithWorkers(4))
	for _, joinType := range []ir.JoinType{ir.JoinInner, ir.JoinLeft, ir.JoinRight} {
		a := execute(t, serial, nestedLoopPlan(left, right, joinType, 0, 0))
		b := execute(t, parallel, nestedLoopPlan(left, right, joinType, 0, 0))
		require.Equal(t, a.RowCount(), b.RowCount())
		for i := 0; i < a.RowCount(); i++ {
			assert.Equal(t,
				storage.EncodeKey(a.Record(i).Values),
				storage.EncodeKey(b.Record(i).Values))
		}
	}
}

// TestFullOuterJoinWithNullKeys checks null-key handling in full joins: left
// keys [1, null, 2], right keys [2, null] produce exactly four rows.
func TestFullOuterJoinWithNullKeys(t *testing.T) {
	left := int64Table(t, []string{"lk"}, [][]any{{1}, {nil}, {2}})
	right := int64Table(t, []string{"rk"}, [][]any{{2}, {nil}})
	catalog := mapCatalog{"left": left, "right": right}
	ex := newTestExecutor(catalog)

	out := execute(t, ex, hashJoinPlan(scanOf("left", left), scanOf("right", right), ir.JoinFull, 0, 0))
	require.Equal(t, 4, out.RowCount())

	matched, onePadded, allNull := 0, 0, 0
	for i := 0; i < out.RowCount(); i++ {
		rec := out.Record(i)
		switch {
		case !rec.Get(0).IsNull() && !rec.Get(1).IsNull():
			matched++
			assert.Equal(t, int64(2), rec.Get(0).AsInt64())
		case !rec.Get(0).IsNull() && rec.Get(1).IsNull():
			onePadded++
			assert.Equal(t, int64(1), rec.Get(0).AsInt64())
		default:
			// The null-key rows of both sides come back padded with
			// nulls on the other side.
			allNull++
		}
	}
	assert.Equal(t, 1, matched, "the 2 = 2 pair matches")
	assert.Equal(t, 1, onePadded, "left key 1 emits right-null padding")
	assert.Equal(t, 2, allNull, "null keys on each side emit padded rows")
}

// TestJoinEmptySides checks the boundary behaviors for empty inputs.
func TestJoinEmptySides(t *testing.T) {
	filled := int64Table(t, []string{"k"}, [][]any{{1}, {2}})
	empty := int64Table(t, []string{"k"}, nil)
	catalog := mapCatalog{"filled": filled, "empty": empty}
	ex := newTestExecutor(catalog)

	fs := scanOf("filled", filled)
	es := scanOf("empty", empty)

	inner := execute(t, ex, hashJoinPlan(fs, es, ir.JoinInner, 0, 0))
	assert.Equal(t, 0, inner.RowCount())

	left := execute(t, ex, hashJoinPlan(fs, es, ir.JoinLeft, 0, 0))
	require.Equal(t, 2, left.RowCount())
	assert.True(t, left.Record(0).Get(1).IsNull(), "left rows padded")

	right := execute(t, ex, hashJoinPlan(es, fs, ir.JoinRight, 0, 0))
	require.Equal(t, 2, right.RowCount())
	assert.True(t, right.Record(0).Get(0).IsNull(), "right rows padded")

	full := execute(t, ex, hashJoinPlan(fs, es, ir.JoinFull, 0, 0))
	assert.Equal(t, 2, full.RowCount())

	semi := execute(t, ex, hashJoinPlan(fs, es, ir.JoinLeftSemi, 0, 0))
	assert.Equal(t, 0, semi.RowCount())

	anti := execute(t, ex, hashJoinPlan(fs, es, ir.JoinLeftAnti, 0, 0))
	assert.Equal(t, 2, anti.RowCount(), "anti keeps all rows of the anti side")
}

// TestAllNullJoinKeys checks that an all-null key column produces no
// matches.
func TestAllNullJoinKeys(t *testing.T) {
	left := int64Table(t, []string{"k", "v"}, [][]any{{nil, 1}, {nil, 2}})
	right := int64Table(t, []string{"k", "v"}, [][]any{{nil, 3}})
	catalog := mapCatalog{"left": left, "right": right}
	ex := newTestExecutor(catalog)

	inner := execute(t, ex, hashJoinPlan(scanOf("left", left), scanOf("right", right), ir.JoinInner, 0, 0))
	assert.Equal(t, 0, inner.RowCount())

	leftJoin := execute(t, ex, hashJoinPlan(scanOf("left", left), scanOf("right", right), ir.JoinLeft, 0, 0))
	assert.Equal(t, 2, leftJoin.RowCount(), "equivalent to outer padding")
}

func TestCrossJoinLeftMajorOrder(t *testing.T) {
	left := int64Table(t, []string{"l"}, [][]any{{1}, {2}})
	right := int64Table(t, []string{"r"}, [][]any{{10}, {20}})
	catalog := mapCatalog{"left": left, "right": right}
	ex := newTestExecutor(catalog)

	ls, rs := scanOf("left", left), scanOf("right", right)
	out := execute(t, ex, &physical.CrossJoin{Left: ls, Right: rs, OutSchema: ls.Schema().Concat(rs.Schema())})
	require.Equal(t, 4, out.RowCount())
	assert.Equal(t, int64(1), out.Record(0).Get(0).AsInt64())
	assert.Equal(t, int64(10), out.Record(0).Get(1).AsInt64())
	assert.Equal(t, int64(1), out.Record(1).Get(0).AsInt64())
	assert.Equal(t, int64(20), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(2), out.Record(2).Get(0).AsInt64())
}

func TestScanWithProjection(t *testing.T) {
	table := int64Table(t, []string{"a", "b", "c"}, [][]any{{1, 2, 3}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, &physical.TableScan{
		Table:       "t",
		TableSchema: planSchemaOf(table),
		Projection:  []int{2, 0},
	})
	require.Equal(t, 2, out.ColumnCount())
	assert.Equal(t, int64(3), out.Record(0).Get(0).AsInt64())
	assert.Equal(t, int64(1), out.Record(0).Get(1).AsInt64())
}

func TestMissingTableErrors(t *testing.T) {
	ex := newTestExecutor(mapCatalog{})
	_, err := ex.Execute(context.Background(), &physical.TableScan{Table: "nope"})
	assert.Error(t, err)
}

func TestFilterExcludesNullAndFalse(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {nil}, {0}, {5}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, &physical.Filter{
		Input:     scanOf("t", table),
		Predicate: ir.NewBinary(ir.OpGt, ir.ColIndex("v", 0), ir.Lit(storage.NewInt64(0))),
	})
	// The null row evaluates to null and the 0 row to false; both are
	// excluded.
	require.Equal(t, 2, out.RowCount())
}

func TestSortStableWithNullPlacement(t *testing.T) {
	table := int64Table(t, []string{"v", "tag"}, [][]any{
		{2, 1}, {nil, 2}, {1, 3}, {2, 4},
	})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	asc := execute(t, ex, &physical.Sort{
		Input: scanOf("t", table),
		Keys:  []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
	})
	// Default ascending order puts nulls first.
	assert.True(t, asc.Record(0).Get(0).IsNull())
	assert.Equal(t, int64(1), asc.Record(1).Get(0).AsInt64())
	// Stability: the two v=2 rows keep input order.
	assert.Equal(t, int64(1), asc.Record(2).Get(1).AsInt64())
	assert.Equal(t, int64(4), asc.Record(3).Get(1).AsInt64())

	nullsLast := false
	desc := execute(t, ex, &physical.Sort{
		Input: scanOf("t", table),
		Keys:  []ir.SortKey{{Expr: ir.ColIndex("v", 0), Desc: true, NullsFirst: &nullsLast}},
	})
	assert.True(t, desc.Record(3).Get(0).IsNull())
	assert.Equal(t, int64(2), desc.Record(0).Get(0).AsInt64())
}

func TestTopNEqualsSortLimit(t *testing.T) {
	rows := make([][]any, 0, 10)
	for _, v := range []int{5, 3, 9, 1, 7, 2, 8, 4, 6, 0} {
		rows = append(rows, []any{v})
	}
	table := int64Table(t, []string{"v"}, rows)
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	keys := []ir.SortKey{{Expr: ir.ColIndex("v", 0), Desc: true}}
	topn := execute(t, ex, &physical.TopN{Input: scanOf("t", table), Keys: keys, Limit: 3})
	require.Equal(t, 3, topn.RowCount())
	assert.Equal(t, int64(9), topn.Record(0).Get(0).AsInt64())
	assert.Equal(t, int64(8), topn.Record(1).Get(0).AsInt64())
	assert.Equal(t, int64(7), topn.Record(2).Get(0).AsInt64())
}

func TestLimitAndOffset(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {3}, {4}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	limit, offset := int64(2), int64(1)
	out := execute(t, ex, &physical.Limit{Input: scanOf("t", table), Limit: &limit, Offset: &offset})
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, int64(2), out.Record(0).Get(0).AsInt64())
	assert.Equal(t, int64(3), out.Record(1).Get(0).AsInt64())
}

func TestDistinct(t *testing.T) {
	table := int64Table(t, []string{"a", "b"}, [][]any{
		{1, 1}, {1, 1}, {1, 2}, {nil, nil}, {nil, nil},
	})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, &physical.Distinct{Input: scanOf("t", table)})
	assert.Equal(t, 3, out.RowCount())
}

func TestUnionAllAndDistinct(t *testing.T) {
	a := int64Table(t, []string{"v"}, [][]any{{1}, {2}})
	b := int64Table(t, []string{"v"}, [][]any{{2}, {3}})
	catalog := mapCatalog{"a": a, "b": b}
	ex := newTestExecutor(catalog)

	all := execute(t, ex, &physical.Union{Inputs: []physical.Plan{scanOf("a", a), scanOf("b", b)}, All: true})
	assert.Equal(t, 4, all.RowCount())

	distinct := execute(t, ex, &physical.Union{Inputs: []physical.Plan{scanOf("a", a), scanOf("b", b)}})
	assert.Equal(t, 3, distinct.RowCount())
}

func TestIntersectAndExcept(t *testing.T) {
	a := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {2}, {3}})
	b := int64Table(t, []string{"v"}, [][]any{{2}, {2}, {4}})
	catalog := mapCatalog{"a": a, "b": b}
	ex := newTestExecutor(catalog)

	intersectAll := execute(t, ex, &physical.Intersect{Left: scanOf("a", a), Right: scanOf("b", b), All: true})
	assert.Equal(t, 2, intersectAll.RowCount(), "INTERSECT ALL honors multiplicity")

	intersect := execute(t, ex, &physical.Intersect{Left: scanOf("a", a), Right: scanOf("b", b)})
	assert.Equal(t, 1, intersect.RowCount())

	exceptAll := execute(t, ex, &physical.Except{Left: scanOf("a", a), Right: scanOf("b", b), All: true})
	assert.Equal(t, 2, exceptAll.RowCount(), "1 and 3 survive EXCEPT ALL")

	except := execute(t, ex, &physical.Except{Left: scanOf("a", a), Right: scanOf("b", b)})
	assert.Equal(t, 2, except.RowCount())
}

func TestUnnestWithOffset(t *testing.T) {
	table := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "id", Type: storage.Int64Type()},
		{Name: "arr", Type: storage.ArrayType(storage.Int64Type())},
	}))
	require.NoError(t, table.PushRow([]storage.Value{
		storage.NewInt64(1),
		storage.NewArray([]storage.Value{storage.NewInt64(10), storage.NewInt64(20)}, storage.Int64Type()),
	}))
	require.NoError(t, table.PushRow([]storage.Value{
		storage.NewInt64(2),
		storage.NewNull(),
	}))
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	outSchema := planSchemaOf(table)
	outSchema.Fields = append(outSchema.Fields,
		ir.PlanField{Name: "elem", Type: storage.Int64Type()},
		ir.PlanField{Name: "offset", Type: storage.Int64Type()},
	)
	out := execute(t, ex, &physical.Unnest{
		Input:      scanOf("t", table),
		Expr:       ir.ColIndex("arr", 1),
		WithOffset: true,
		OutSchema:  outSchema,
	})
	require.Equal(t, 2, out.RowCount(), "null arrays produce no rows")
	assert.Equal(t, int64(10), out.Record(0).Get(2).AsInt64())
	assert.Equal(t, int64(0), out.Record(0).Get(3).AsInt64())
	assert.Equal(t, int64(20), out.Record(1).Get(2).AsInt64())
	assert.Equal(t, int64(1), out.Record(1).Get(3).AsInt64())
}

func TestWithCteBindsLaterScans(t *testing.T) {
	base := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {3}})
	catalog := mapCatalog{"base": base}
	ex := newTestExecutor(catalog)

	cteSchema := planSchemaOf(base)
	out := execute(t, ex, &physical.WithCte{
		Ctes: []physical.Cte{
			{
				Name: "filtered",
				Plan: &physical.Filter{
					Input:     scanOf("base", base),
					Predicate: ir.NewBinary(ir.OpGt, ir.ColIndex("v", 0), ir.Lit(storage.NewInt64(1))),
				},
			},
		},
		Body: &physical.TableScan{Table: "filtered", TableSchema: cteSchema},
	})
	assert.Equal(t, 2, out.RowCount())
}

func TestSampleRows(t *testing.T) {
	rows := make([][]any, 100)
	for i := range rows {
		rows[i] = []any{i}
	}
	table := int64Table(t, []string{"v"}, rows)
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	out := execute(t, ex, &physical.Sample{Input: scanOf("t", table), Method: ir.SampleRows, Amount: 10})
	assert.Equal(t, 10, out.RowCount())

	all := execute(t, ex, &physical.Sample{Input: scanOf("t", table), Method: ir.SampleRows, Amount: 1000})
	assert.Equal(t, 100, all.RowCount())
}
