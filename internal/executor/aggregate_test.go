package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func aggPlan(input *physical.TableScan, groupBy []ir.Expr, aggs []ir.Expr, out ir.PlanSchema) *physical.HashAggregate {
	return &physical.HashAggregate{Input: input, GroupBy: groupBy, Aggregates: aggs, OutSchema: out}
}

func aggOutSchema(names ...string) ir.PlanSchema {
	fields := make([]ir.PlanField, len(names))
	for i, name := range names {
		fields[i] = ir.PlanField{Name: name, Type: storage.Int64Type()}
	}
	return ir.NewPlanSchema(fields)
}

func TestCountStarAndColumn(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {nil}, {3}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "COUNT"},
		&ir.Aggregate{Func: "COUNT", Args: []ir.Expr{ir.ColIndex("v", 0)}},
	}, aggOutSchema("count_star", "count_v")))
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, int64(3), out.Record(0).Get(0).AsInt64())
	assert.Equal(t, int64(2), out.Record(0).Get(1).AsInt64(), "COUNT(col) skips nulls")
}

func TestSumAvgMinMaxWithNulls(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{10}, {nil}, {20}, {30}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 0)}},
		&ir.Aggregate{Func: "AVG", Args: []ir.Expr{ir.ColIndex("v", 0)}},
		&ir.Aggregate{Func: "MIN", Args: []ir.Expr{ir.ColIndex("v", 0)}},
		&ir.Aggregate{Func: "MAX", Args: []ir.Expr{ir.ColIndex("v", 0)}},
	}, ir.NewPlanSchema([]ir.PlanField{
		{Name: "sum", Type: storage.Int64Type()},
		{Name: "avg", Type: storage.Float64Type()},
		{Name: "min", Type: storage.Int64Type()},
		{Name: "max", Type: storage.Int64Type()},
	})))
	rec := out.Record(0)
	assert.Equal(t, int64(60), rec.Get(0).AsInt64())
	assert.InDelta(t, 20.0, rec.Get(1).AsFloat64(), 1e-9)
	assert.Equal(t, int64(10), rec.Get(2).AsInt64())
	assert.Equal(t, int64(30), rec.Get(3).AsInt64())
}

func TestSumAllNullsIsNull(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{nil}, {nil}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 0)}},
	}, aggOutSchema("sum")))
	assert.True(t, out.Record(0).Get(0).IsNull())
}

func TestAggregateEmptyInputEmitsOneRow(t *testing.T) {
	table := int64Table(t, []string{"v"}, nil)
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "COUNT"},
		&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 0)}},
	}, aggOutSchema("count", "sum")))
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, int64(0), out.Record(0).Get(0).AsInt64())
	assert.True(t, out.Record(0).Get(1).IsNull())
}

func TestGroupByWithNullKeyGroup(t *testing.T) {
	table := int64Table(t, []string{"g", "v"}, [][]any{
		{1, 10}, {nil, 20}, {1, 30}, {nil, 40}, {2, 50},
	})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table),
		[]ir.Expr{ir.ColIndex("g", 0)},
		[]ir.Expr{&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 1)}}},
		aggOutSchema("g", "sum")))
	require.Equal(t, 3, out.RowCount(), "null keys form their own group")

	sums := map[string]int64{}
	for i := 0; i < out.RowCount(); i++ {
		rec := out.Record(i)
		key := "null"
		if !rec.Get(0).IsNull() {
			key = rec.Get(0).String()
		}
		sums[key] = rec.Get(1).AsInt64()
	}
	assert.Equal(t, int64(40), sums["1"])
	assert.Equal(t, int64(60), sums["null"])
	assert.Equal(t, int64(50), sums["2"])
}

func TestCountDistinct(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {1}, {2}, {nil}, {2}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "COUNT", Args: []ir.Expr{ir.ColIndex("v", 0)}, Distinct: true},
	}, aggOutSchema("count")))
	assert.Equal(t, int64(2), out.Record(0).Get(0).AsInt64())
}

func TestCountIfAndSumIf(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {5}, {10}, {nil}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	cond := ir.NewBinary(ir.OpGt, ir.ColIndex("v", 0), ir.Lit(storage.NewInt64(3)))
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "COUNTIF", Args: []ir.Expr{cond}},
		&ir.Aggregate{Func: "SUMIF", Args: []ir.Expr{ir.ColIndex("v", 0), cond}},
	}, aggOutSchema("countif", "sumif")))
	rec := out.Record(0)
	assert.Equal(t, int64(2), rec.Get(0).AsInt64())
	assert.Equal(t, int64(15), rec.Get(1).AsInt64())
}

func TestLogicalAndOr(t *testing.T) {
	table := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "b", Type: storage.BoolType()},
	}))
	for _, v := range []any{true, nil, false} {
		if v == nil {
			require.NoError(t, table.PushRow([]storage.Value{storage.NewNull()}))
		} else {
			require.NoError(t, table.PushRow([]storage.Value{storage.NewBool(v.(bool))}))
		}
	}
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "LOGICAL_AND", Args: []ir.Expr{ir.ColIndex("b", 0)}},
		&ir.Aggregate{Func: "LOGICAL_OR", Args: []ir.Expr{ir.ColIndex("b", 0)}},
	}, ir.NewPlanSchema([]ir.PlanField{
		{Name: "and", Type: storage.BoolType()},
		{Name: "or", Type: storage.BoolType()},
	})))
	rec := out.Record(0)
	assert.False(t, rec.Get(0).AsBool(), "nulls ignored, false dominates AND")
	assert.True(t, rec.Get(1).AsBool())
}

func TestBitAggregates(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{0b1100}, {0b1010}, {nil}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "BIT_AND", Args: []ir.Expr{ir.ColIndex("v", 0)}},
		&ir.Aggregate{Func: "BIT_OR", Args: []ir.Expr{ir.ColIndex("v", 0)}},
		&ir.Aggregate{Func: "BIT_XOR", Args: []ir.Expr{ir.ColIndex("v", 0)}},
	}, aggOutSchema("and", "or", "xor")))
	rec := out.Record(0)
	assert.Equal(t, int64(0b1000), rec.Get(0).AsInt64())
	assert.Equal(t, int64(0b1110), rec.Get(1).AsInt64())
	assert.Equal(t, int64(0b0110), rec.Get(2).AsInt64())
}

func TestArrayAggOrderByLimitIgnoreNulls(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{3}, {nil}, {1}, {2}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	limit := int64(2)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{
			Func:        "ARRAY_AGG",
			Args:        []ir.Expr{ir.ColIndex("v", 0)},
			IgnoreNulls: true,
			OrderBy:     []ir.SortKey{{Expr: ir.ColIndex("v", 0), Desc: true}},
			Limit:       &limit,
		},
	}, ir.NewPlanSchema([]ir.PlanField{
		{Name: "arr", Type: storage.ArrayType(storage.Int64Type())},
	})))
	arr := out.Record(0).Get(0).AsArray()
	require.Len(t, arr, 2)
	assert.Equal(t, int64(3), arr[0].AsInt64())
	assert.Equal(t, int64(2), arr[1].AsInt64())
}

func TestStringAgg(t *testing.T) {
	table := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "s", Type: storage.StringType()},
	}))
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, table.PushRow([]storage.Value{storage.NewString(s)}))
	}
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table), nil, []ir.Expr{
		&ir.Aggregate{Func: "STRING_AGG", Args: []ir.Expr{
			ir.ColIndex("s", 0), ir.Lit(storage.NewString("-")),
		}},
	}, ir.NewPlanSchema([]ir.PlanField{
		{Name: "joined", Type: storage.StringType()},
	})))
	assert.Equal(t, "a-b-c", out.Record(0).Get(0).AsString())
}

func TestAggregateFilterClause(t *testing.T) {
	table := int64Table(t, []string{"g", "v"}, [][]any{{1, 10}, {1, 20}, {1, 5}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, aggPlan(scanOf("t", table),
		[]ir.Expr{ir.ColIndex("g", 0)},
		[]ir.Expr{&ir.Aggregate{
			Func:   "SUM",
			Args:   []ir.Expr{ir.ColIndex("v", 1)},
			Filter: ir.NewBinary(ir.OpGe, ir.ColIndex("v", 1), ir.Lit(storage.NewInt64(10))),
		}},
		aggOutSchema("g", "sum")))
	assert.Equal(t, int64(30), out.Record(0).Get(1).AsInt64())
}

// TestGroupingSetsWithIndicators checks ROLLUP-style expansion with GROUPING
// markers and NULL placeholders.
func TestGroupingSetsWithIndicators(t *testing.T) {
	table := int64Table(t, []string{"g", "v"}, [][]any{{1, 10}, {1, 20}, {2, 5}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)

	plan := &physical.HashAggregate{
		Input:   scanOf("t", table),
		GroupBy: []ir.Expr{ir.ColIndex("g", 0)},
		Aggregates: []ir.Expr{
			&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 1)}},
			&ir.Aggregate{Func: "GROUPING", Args: []ir.Expr{ir.ColIndex("g", 0)}},
		},
		GroupingSets: [][]int{{0}, {}},
		OutSchema:    aggOutSchema("g", "sum", "grouping"),
	}
	out := execute(t, ex, plan)
	require.Equal(t, 3, out.RowCount(), "two groups plus the grand total")

	grandTotalSeen := false
	for i := 0; i < out.RowCount(); i++ {
		rec := out.Record(i)
		if rec.Get(0).IsNull() && rec.Get(2).AsInt64() == 1 {
			grandTotalSeen = true
			assert.Equal(t, int64(35), rec.Get(1).AsInt64())
		} else {
			assert.Equal(t, int64(0), rec.Get(2).AsInt64())
		}
	}
	assert.True(t, grandTotalSeen)
}
