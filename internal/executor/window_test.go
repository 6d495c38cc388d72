package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func windowPlan(input *physical.TableScan, exprs ...ir.Expr) *physical.Window {
	out := input.Schema()
	fields := append([]ir.PlanField{}, out.Fields...)
	for _, e := range exprs {
		fields = append(fields, ir.PlanField{Name: ir.OutputName(e), Type: storage.Int64Type()})
	}
	return &physical.Window{Input: input, Exprs: exprs, OutSchema: ir.NewPlanSchema(fields)}
}

func windowFixture(t *testing.T) (mapCatalog, *physical.TableScan) {
	// (part, val): two partitions with in-partition ordering by val.
	table := int64Table(t, []string{"part", "val"}, [][]any{
		{1, 30}, {1, 10}, {2, 5}, {1, 20}, {2, 5},
	})
	return mapCatalog{"t": table}, scanOf("t", table)
}

func TestRowNumberPerPartition(t *testing.T) {
	catalog, scan := windowFixture(t)
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scan, &ir.WindowFunc{
		Func:        "ROW_NUMBER",
		PartitionBy: []ir.Expr{ir.ColIndex("part", 0)},
		OrderBy:     []ir.SortKey{{Expr: ir.ColIndex("val", 1)}},
	}))
	require.Equal(t, 5, out.RowCount())
	// Row order is preserved; the appended column holds the rank within
	// the partition ordering.
	assert.Equal(t, int64(3), out.Record(0).Get(2).AsInt64(), "30 is third in partition 1")
	assert.Equal(t, int64(1), out.Record(1).Get(2).AsInt64(), "10 is first in partition 1")
	assert.Equal(t, int64(1), out.Record(2).Get(2).AsInt64(), "first 5 in partition 2")
	assert.Equal(t, int64(2), out.Record(3).Get(2).AsInt64())
	assert.Equal(t, int64(2), out.Record(4).Get(2).AsInt64(), "second 5 in partition 2")
}

func TestRankAndDenseRankWithTies(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{10}, {20}, {20}, {30}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{Func: "RANK", OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}}},
		&ir.WindowFunc{Func: "DENSE_RANK", OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}}},
	))
	assert.Equal(t, int64(1), out.Record(0).Get(1).AsInt64())
	assert.Equal(t, int64(2), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(2), out.Record(2).Get(1).AsInt64())
	assert.Equal(t, int64(4), out.Record(3).Get(1).AsInt64(), "RANK skips after ties")
	assert.Equal(t, int64(3), out.Record(3).Get(2).AsInt64(), "DENSE_RANK does not skip")
}

func TestLagLeadWithDefault(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {3}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{
			Func:    "LAG",
			Args:    []ir.Expr{ir.ColIndex("v", 0)},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
		},
		&ir.WindowFunc{
			Func: "LEAD",
			Args: []ir.Expr{
				ir.ColIndex("v", 0),
				ir.Lit(storage.NewInt64(1)),
				ir.Lit(storage.NewInt64(-1)),
			},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
		},
	))
	assert.True(t, out.Record(0).Get(1).IsNull(), "no LAG for the first row")
	assert.Equal(t, int64(1), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(2), out.Record(0).Get(2).AsInt64())
	assert.Equal(t, int64(-1), out.Record(2).Get(2).AsInt64(), "LEAD default past the end")
}

// TestRunningSumDefaultFrame checks the default RANGE UNBOUNDED PRECEDING
// TO CURRENT ROW frame, including peer rows.
func TestRunningSumDefaultFrame(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {2}, {3}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{
			Func:    "SUM",
			Args:    []ir.Expr{ir.ColIndex("v", 0)},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
		},
	))
	assert.Equal(t, int64(1), out.Record(0).Get(1).AsInt64())
	// Peers share the frame: both 2s see 1+2+2.
	assert.Equal(t, int64(5), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(5), out.Record(2).Get(1).AsInt64())
	assert.Equal(t, int64(8), out.Record(3).Get(1).AsInt64())
}

func TestRowsFrameSlidingWindow(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {3}, {4}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{
			Func:    "SUM",
			Args:    []ir.Expr{ir.ColIndex("v", 0)},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
			Frame: &ir.WindowFrame{
				Unit:  ir.FrameRows,
				Start: ir.FrameBound{Kind: ir.BoundPreceding, Offset: 1},
				End:   ir.FrameBound{Kind: ir.BoundCurrentRow},
			},
		},
	))
	assert.Equal(t, int64(1), out.Record(0).Get(1).AsInt64())
	assert.Equal(t, int64(3), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(5), out.Record(2).Get(1).AsInt64())
	assert.Equal(t, int64(7), out.Record(3).Get(1).AsInt64())
}

func TestFirstLastValue(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{3}, {1}, {2}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{
			Func:    "FIRST_VALUE",
			Args:    []ir.Expr{ir.ColIndex("v", 0)},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
		},
		&ir.WindowFunc{
			Func:    "LAST_VALUE",
			Args:    []ir.Expr{ir.ColIndex("v", 0)},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
			Frame: &ir.WindowFrame{
				Unit:  ir.FrameRows,
				Start: ir.FrameBound{Kind: ir.BoundUnboundedPreceding},
				End:   ir.FrameBound{Kind: ir.BoundUnboundedFollowing},
			},
		},
	))
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(1), out.Record(i).Get(1).AsInt64())
		assert.Equal(t, int64(3), out.Record(i).Get(2).AsInt64())
	}
}

func TestNtileBuckets(t *testing.T) {
	table := int64Table(t, []string{"v"}, [][]any{{1}, {2}, {3}, {4}, {5}})
	catalog := mapCatalog{"t": table}
	ex := newTestExecutor(catalog)
	out := execute(t, ex, windowPlan(scanOf("t", table),
		&ir.WindowFunc{
			Func:    "NTILE",
			Args:    []ir.Expr{ir.Lit(storage.NewInt64(2))},
			OrderBy: []ir.SortKey{{Expr: ir.ColIndex("v", 0)}},
		},
	))
	assert.Equal(t, int64(1), out.Record(0).Get(1).AsInt64())
	assert.Equal(t, int64(1), out.Record(1).Get(1).AsInt64())
	assert.Equal(t, int64(1), out.Record(2).Get(1).AsInt64(), "first bucket takes the remainder")
	assert.Equal(t, int64(2), out.Record(3).Get(1).AsInt64())
	assert.Equal(t, int64(2), out.Record(4).Get(1).AsInt64())
}
