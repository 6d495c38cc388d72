package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func makeSchema(table string, names ...string) ir.PlanSchema {
	fields := make([]ir.PlanField, len(names))
	for i, name := range names {
		fields[i] = ir.PlanField{Name: name, Type: storage.Int64Type(), Table: table}
	}
	return ir.NewPlanSchema(fields)
}

func makeScan(table string, schema ir.PlanSchema) *ir.Scan {
	return &ir.Scan{Table: table, TableSchema: schema}
}

func eqIdx(leftName string, leftIdx int, rightName string, rightIdx int) ir.Expr {
	return ir.Eq(ir.ColIndex(leftName, leftIdx), ir.ColIndex(rightName, rightIdx))
}

func innerJoin(left, right ir.LogicalPlan, condition ir.Expr) *ir.Join {
	return &ir.Join{
		Left:      left,
		Right:     right,
		Type:      ir.JoinInner,
		Condition: condition,
		OutSchema: left.Schema().Concat(right.Schema()),
	}
}

func optimize(t *testing.T, plan ir.LogicalPlan, stats *TableStats) physical.Plan {
	t.Helper()
	out, err := New(stats, nil).Optimize(plan)
	require.NoError(t, err)
	return out
}

// TestFilterPushdownThroughInnerJoin checks that a single-side predicate
// above an inner join migrates below it:
// the country predicate lands below the hash join on the customers side.
func TestFilterPushdownThroughInnerJoin(t *testing.T) {
	orders := makeScan("orders", makeSchema("orders", "id", "customer_id", "amount", "status"))
	customers := makeScan("customers", makeSchema("customers", "id", "name", "country"))
	join := innerJoin(orders, customers, eqIdx("customer_id", 1, "id", 4))
	filter := &ir.Filter{
		Input:     join,
		Predicate: ir.Eq(ir.ColIndex("country", 6), ir.Lit(storage.NewString("USA"))),
	}
	plan := &ir.Project{
		Input: filter,
		Exprs: []ir.Expr{ir.ColIndex("id", 0), ir.ColIndex("name", 5)},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{
			{Name: "id", Type: storage.Int64Type()},
			{Name: "name", Type: storage.Int64Type()},
		}),
	}

	optimized := optimize(t, plan, nil)

	project, ok := optimized.(*physical.Project)
	require.True(t, ok, "root should stay a projection")
	hashJoin, ok := project.Input.(*physical.HashJoin)
	require.True(t, ok, "join should become a hash join with no post-filter above it")

	// The right input must be a filter over the customers scan.
	rightFilter, ok := hashJoin.Right.(*physical.Filter)
	require.True(t, ok, "country predicate should sit on the customers side")
	_, ok = rightFilter.Input.(*physical.TableScan)
	require.True(t, ok)

	// The pushed predicate is rewritten to right-relative indices.
	indices := make(map[int]struct{})
	require.True(t, ir.CollectColumnIndices(rightFilter.Predicate, indices))
	_, has := indices[2]
	assert.True(t, has, "country is offset 2 within customers")
}

// TestTopNFusion checks that ORDER BY + LIMIT fuses into TopN, and that an
// offset defeats the fusion.
func TestTopNFusion(t *testing.T) {
	scan := makeScan("t", makeSchema("t", "x"))
	limit := int64(3)
	fused := &ir.Limit{
		Input: &ir.Sort{Input: scan, Keys: []ir.SortKey{{Expr: ir.ColIndex("x", 0), Desc: true}}},
		Limit: &limit,
	}
	optimized := optimize(t, fused, nil)
	topn, ok := optimized.(*physical.TopN)
	require.True(t, ok, "root must be TopN")
	assert.Equal(t, int64(3), topn.Limit)
	_, ok = topn.Input.(*physical.TableScan)
	assert.True(t, ok, "no standalone sort below TopN")

	offset := int64(2)
	blocked := &ir.Limit{
		Input:  &ir.Sort{Input: scan, Keys: []ir.SortKey{{Expr: ir.ColIndex("x", 0), Desc: true}}},
		Limit:  &limit,
		Offset: &offset,
	}
	optimized = optimize(t, blocked, nil)
	limitNode, ok := optimized.(*physical.Limit)
	require.True(t, ok, "offset blocks fusion")
	require.NotNil(t, limitNode.Offset)
	assert.Equal(t, int64(2), *limitNode.Offset)
	_, ok = limitNode.Input.(*physical.Sort)
	assert.True(t, ok)
}

// TestJoinStrategySelection checks equijoin AND-trees become hash joins and
// everything else a nested loop.
func TestJoinStrategySelection(t *testing.T) {
	left := makeScan("l", makeSchema("l", "a", "b"))
	right := makeScan("r", makeSchema("r", "c", "d"))

	equi := innerJoin(left, right, ir.And(
		eqIdx("a", 0, "c", 2),
		eqIdx("b", 1, "d", 3),
	))
	optimized := optimize(t, equi, nil)
	hashJoin, ok := optimized.(*physical.HashJoin)
	require.True(t, ok)
	require.Len(t, hashJoin.LeftKeys, 2)
	require.Len(t, hashJoin.RightKeys, 2)
	// Right keys are stored relative to the right schema.
	rightKey := hashJoin.RightKeys[0].(*ir.ColumnRef)
	assert.Equal(t, 0, *rightKey.Index)

	nonEqui := innerJoin(left, right,
		ir.NewBinary(ir.OpLt, ir.ColIndex("a", 0), ir.ColIndex("c", 2)))
	optimized = optimize(t, nonEqui, nil)
	_, ok = optimized.(*physical.NestedLoopJoin)
	assert.True(t, ok, "non-equi condition takes the nested loop")

	cross := &ir.Join{
		Left:      left,
		Right:     right,
		Type:      ir.JoinCross,
		OutSchema: left.Schema().Concat(right.Schema()),
	}
	optimized = optimize(t, cross, nil)
	_, ok = optimized.(*physical.CrossJoin)
	assert.True(t, ok, "cross joins always take the dedicated operator")
}

// TestHashJoinRoundTrip checks that IntoLogical restores the join
// condition with right indices offset by the left schema width.
func TestHashJoinRoundTrip(t *testing.T) {
	left := makeScan("l", makeSchema("l", "a", "b"))
	right := makeScan("r", makeSchema("r", "c"))
	join := innerJoin(left, right, eqIdx("b", 1, "c", 2))

	optimized := optimize(t, join, nil)
	hashJoin, ok := optimized.(*physical.HashJoin)
	require.True(t, ok)

	restored := hashJoin.IntoLogical()
	logicalJoin, ok := restored.(*ir.Join)
	require.True(t, ok)
	binary, ok := logicalJoin.Condition.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.OpEq, binary.Op)
	leftRef := binary.Left.(*ir.ColumnRef)
	rightRef := binary.Right.(*ir.ColumnRef)
	assert.Equal(t, 1, *leftRef.Index)
	assert.Equal(t, 2, *rightRef.Index, "right index restored to pre-optimization position")
}

func stats(pairs map[string]int) *TableStats {
	s := NewTableStats()
	for name, rows := range pairs {
		s.SetRowCount(name, rows)
	}
	return s
}

// TestJoinReorderingStartsWithSmallest checks that a chain of
// 10000/100/10-row tables scans the 10-row relation first.
func TestJoinReorderingStartsWithSmallest(t *testing.T) {
	big := makeScan("big", makeSchema("big", "b1", "b2"))
	mid := makeScan("mid", makeSchema("mid", "m1", "m2"))
	small := makeScan("small", makeSchema("small", "s1", "s2"))

	// big JOIN mid ON big.b2 = mid.m1 JOIN small ON mid.m2 = small.s1
	j1 := innerJoin(big, mid, eqIdx("b2", 1, "m1", 2))
	j2 := innerJoin(j1, small, eqIdx("m2", 3, "s1", 4))

	tableStats := stats(map[string]int{"big": 10000, "mid": 100, "small": 10})
	model := &CostModel{Stats: tableStats}
	reordered := reorderJoins(j2, model)

	names := scanOrder(reordered)
	require.NotEmpty(t, names)
	assert.Equal(t, "small", names[0], "scan order starts with the smallest relation")
}

// scanOrder walks a plan left-deep collecting scan table names in join
// order.
func scanOrder(plan ir.LogicalPlan) []string {
	switch n := plan.(type) {
	case *ir.Scan:
		return []string{n.Table}
	case *ir.Filter:
		return scanOrder(n.Input)
	case *ir.Project:
		return scanOrder(n.Input)
	case *ir.Join:
		return append(scanOrder(n.Left), scanOrder(n.Right)...)
	default:
		return nil
	}
}

// TestReorderOriginalOrderNoProjection checks that a plan already in the
// cheapest order comes back without a schema-restoring projection.
func TestReorderOriginalOrderNoProjection(t *testing.T) {
	small := makeScan("small", makeSchema("small", "s1"))
	big := makeScan("big", makeSchema("big", "b1"))
	join := innerJoin(small, big, eqIdx("s1", 0, "b1", 1))

	tableStats := stats(map[string]int{"small": 10, "big": 10000})
	reordered := reorderJoins(join, &CostModel{Stats: tableStats})
	_, isProject := reordered.(*ir.Project)
	assert.False(t, isProject)
	assert.Equal(t, []string{"small", "big"}, scanOrder(reordered))
}

// TestReorderAddsSchemaRestorationProjection checks that a changed order is
// wrapped in a projection restoring the caller's column order.
func TestReorderAddsSchemaRestorationProjection(t *testing.T) {
	big := makeScan("big", makeSchema("big", "b1"))
	small := makeScan("small", makeSchema("small", "s1"))
	join := innerJoin(big, small, eqIdx("b1", 0, "s1", 1))

	tableStats := stats(map[string]int{"big": 10000, "small": 10})
	reordered := reorderJoins(join, &CostModel{Stats: tableStats})
	project, isProject := reordered.(*ir.Project)
	require.True(t, isProject)
	assert.Equal(t, []string{"small", "big"}, scanOrder(project.Input))

	// First output expression restores big.b1, which now sits at offset 1.
	first := project.Exprs[0].(*ir.ColumnRef)
	assert.Equal(t, 1, *first.Index)
}

func TestBuildJoinGraphTwoTables(t *testing.T) {
	left := makeScan("users", makeSchema("users", "id", "name"))
	right := makeScan("orders", makeSchema("orders", "user_id", "total"))
	join := innerJoin(left, right, eqIdx("id", 0, "user_id", 2))

	collector := &predicateCollector{model: &CostModel{Stats: NewTableStats()}}
	graph := collector.BuildJoinGraph(join)
	require.NotNil(t, graph)
	assert.Len(t, graph.Relations, 2)
	assert.Len(t, graph.Edges, 1)
	assert.Equal(t, DefaultEquijoinSelectivity, graph.Edges[0].Selectivity)
}

func TestBuildJoinGraphReturnsNilForOuterJoins(t *testing.T) {
	left := makeScan("a", makeSchema("a", "x"))
	right := makeScan("b", makeSchema("b", "y"))
	for _, joinType := range []ir.JoinType{ir.JoinLeft, ir.JoinRight, ir.JoinFull} {
		join := &ir.Join{
			Left:      left,
			Right:     right,
			Type:      joinType,
			Condition: eqIdx("x", 0, "y", 1),
			OutSchema: left.Schema().Concat(right.Schema()),
		}
		collector := &predicateCollector{model: &CostModel{Stats: NewTableStats()}}
		assert.Nil(t, collector.BuildJoinGraph(join), joinType.String())
	}
}

func TestBuildJoinGraphReturnsNilForSingleRelation(t *testing.T) {
	collector := &predicateCollector{model: &CostModel{Stats: NewTableStats()}}
	assert.Nil(t, collector.BuildJoinGraph(makeScan("t", makeSchema("t", "x"))))
}

func TestBuildJoinGraphReturnsNilForProject(t *testing.T) {
	scan := makeScan("t", makeSchema("t", "x"))
	project := &ir.Project{Input: scan, Exprs: []ir.Expr{ir.ColIndex("x", 0)}, OutSchema: scan.Schema()}
	other := makeScan("u", makeSchema("u", "y"))
	join := innerJoin(project, other, eqIdx("x", 0, "y", 1))
	collector := &predicateCollector{model: &CostModel{Stats: NewTableStats()}}
	assert.Nil(t, collector.BuildJoinGraph(join))
}

func TestBuildJoinGraphWithFilterPredicates(t *testing.T) {
	left := makeScan("a", makeSchema("a", "x"))
	filtered := &ir.Filter{
		Input:     left,
		Predicate: ir.NewBinary(ir.OpGt, ir.ColIndex("x", 0), ir.Lit(storage.NewInt64(5))),
	}
	right := makeScan("b", makeSchema("b", "y"))
	join := innerJoin(filtered, right, eqIdx("x", 0, "y", 1))
	collector := &predicateCollector{model: &CostModel{Stats: NewTableStats()}}
	graph := collector.BuildJoinGraph(join)
	require.NotNil(t, graph)
	assert.Len(t, graph.Relations, 2)
	_, isFilter := graph.Relations[0].Plan.(*ir.Filter)
	assert.True(t, isFilter, "interior filter stays with its relation")
}

func TestEstimateBaseCardinality(t *testing.T) {
	model := &CostModel{Stats: stats(map[string]int{"users": 500})}
	assert.Equal(t, 500, model.EstimateBaseCardinality("USERS"))
	assert.Equal(t, DefaultTableCardinality, model.EstimateBaseCardinality("unknown"))
}

func TestEstimateJoinCostWithEdges(t *testing.T) {
	model := &CostModel{Stats: NewTableStats()}
	edges := []JoinEdge{{Selectivity: 0.1}}
	cost, rows := model.EstimateJoinCost(100, 200, edges)
	assert.Equal(t, 2000.0, rows)
	assert.Equal(t, 100.0+200.0+2000.0, cost)
}

func TestEstimateJoinCostCrossPenalty(t *testing.T) {
	model := &CostModel{Stats: NewTableStats()}
	cost, rows := model.EstimateJoinCost(10, 10, nil)
	assert.Equal(t, 100.0, rows)
	assert.Equal(t, (10.0+10.0+100.0)*1000.0, cost)
}

func TestEstimateJoinCostOutputAtLeastOne(t *testing.T) {
	model := &CostModel{Stats: NewTableStats()}
	edges := []JoinEdge{{Selectivity: 0.1}, {Selectivity: 0.1}}
	_, rows := model.EstimateJoinCost(1, 1, edges)
	assert.Equal(t, 1.0, rows)
}

func TestEstimateJoinCostMultipleEdgesCombineSelectivity(t *testing.T) {
	model := &CostModel{Stats: NewTableStats()}
	edges := []JoinEdge{{Selectivity: 0.1}, {Selectivity: 0.1}}
	_, rows := model.EstimateJoinCost(1000, 1000, edges)
	assert.Equal(t, 10000.0, rows)
}

// TestProjectionPushdownOnUnion checks that selecting one column over a
// three-way UNION ALL projects [0] into every scan.
func TestProjectionPushdownOnUnion(t *testing.T) {
	schema := makeSchema("", "a", "b", "c")
	union := &ir.Union{
		Inputs: []ir.LogicalPlan{
			makeScan("t1", schema), makeScan("t2", schema), makeScan("t3", schema),
		},
		All: true,
	}
	plan := &ir.Project{
		Input:     union,
		Exprs:     []ir.Expr{ir.ColIndex("a", 0)},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{{Name: "a", Type: storage.Int64Type()}}),
	}

	optimized := optimize(t, plan, nil)
	project, ok := optimized.(*physical.Project)
	require.True(t, ok)
	unionNode, ok := project.Input.(*physical.Union)
	require.True(t, ok)
	require.Len(t, unionNode.Inputs, 3)
	for _, input := range unionNode.Inputs {
		scan, ok := input.(*physical.TableScan)
		require.True(t, ok)
		assert.Equal(t, []int{0}, scan.Projection)
	}
}

// TestProjectionPushdownKeepsJoinKeys checks that pruning always retains the
// join key columns on each side.
func TestProjectionPushdownKeepsJoinKeys(t *testing.T) {
	left := makeScan("l", makeSchema("l", "a", "b", "junk"))
	right := makeScan("r", makeSchema("r", "c", "d", "junk2"))
	join := innerJoin(left, right, eqIdx("b", 1, "c", 3))
	plan := &ir.Project{
		Input:     join,
		Exprs:     []ir.Expr{ir.ColIndex("a", 0)},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{{Name: "a", Type: storage.Int64Type()}}),
	}

	optimized := optimize(t, plan, nil)
	project := optimized.(*physical.Project)
	hashJoin, ok := project.Input.(*physical.HashJoin)
	require.True(t, ok)

	leftScan := hashJoin.Left.(*physical.TableScan)
	assert.Equal(t, []int{0, 1}, leftScan.Projection, "a is selected, b is the join key")
	rightScan := hashJoin.Right.(*physical.TableScan)
	assert.Equal(t, []int{0}, rightScan.Projection, "only the key survives on the right")

	// The projection's column reference survives remapping.
	ref := project.Exprs[0].(*ir.ColumnRef)
	assert.Equal(t, 0, *ref.Index)
}

func TestProjectionPushdownAllColumnsLeavesScanUntouched(t *testing.T) {
	scan := makeScan("t", makeSchema("t", "a", "b"))
	optimized := optimize(t, scan, nil)
	tableScan, ok := optimized.(*physical.TableScan)
	require.True(t, ok)
	assert.Nil(t, tableScan.Projection)
}

// TestPushdownThroughAggregate checks that predicates over group-by columns
// push below the aggregate while aggregate-output predicates stay as HAVING.
func TestPushdownThroughAggregate(t *testing.T) {
	scan := makeScan("t", makeSchema("t", "g", "v"))
	agg := &ir.AggregatePlan{
		Input:   scan,
		GroupBy: []ir.Expr{ir.ColIndex("g", 0)},
		Aggregates: []ir.Expr{
			&ir.Aggregate{Func: "SUM", Args: []ir.Expr{ir.ColIndex("v", 1)}},
		},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{
			{Name: "g", Type: storage.Int64Type()},
			{Name: "sum", Type: storage.Int64Type()},
		}),
	}
	// Filter on the group-by output column pushes through.
	onGroup := &ir.Filter{
		Input:     agg,
		Predicate: ir.Eq(ir.ColIndex("g", 0), ir.Lit(storage.NewInt64(1))),
	}
	pushed := pushDownPredicates(onGroup, nil)
	aggNode, ok := pushed.(*ir.AggregatePlan)
	require.True(t, ok, "filter no longer sits above the aggregate")
	_, ok = aggNode.Input.(*ir.Filter)
	assert.True(t, ok, "filter moved below the aggregate")

	// Filter on the aggregate output stays above.
	onAgg := &ir.Filter{
		Input:     agg,
		Predicate: ir.NewBinary(ir.OpGt, ir.ColIndex("sum", 1), ir.Lit(storage.NewInt64(10))),
	}
	kept := pushDownPredicates(onAgg, nil)
	_, ok = kept.(*ir.Filter)
	assert.True(t, ok, "aggregate-output predicate stays as a HAVING filter")
}

// TestPushdownThroughWindow checks the input-prefix rule for window nodes.
func TestPushdownThroughWindow(t *testing.T) {
	scan := makeScan("t", makeSchema("t", "a"))
	window := &ir.Window{
		Input: scan,
		Exprs: []ir.Expr{&ir.WindowFunc{Func: "ROW_NUMBER"}},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{
			{Name: "a", Type: storage.Int64Type()},
			{Name: "row_number", Type: storage.Int64Type()},
		}),
	}
	onInput := &ir.Filter{
		Input:     window,
		Predicate: ir.Eq(ir.ColIndex("a", 0), ir.Lit(storage.NewInt64(1))),
	}
	pushed := pushDownPredicates(onInput, nil)
	windowNode, ok := pushed.(*ir.Window)
	require.True(t, ok)
	_, ok = windowNode.Input.(*ir.Filter)
	assert.True(t, ok)

	onWindow := &ir.Filter{
		Input:     window,
		Predicate: ir.Eq(ir.ColIndex("row_number", 1), ir.Lit(storage.NewInt64(1))),
	}
	kept := pushDownPredicates(onWindow, nil)
	_, ok = kept.(*ir.Filter)
	assert.True(t, ok, "predicate on the appended column stays above")
}

// TestLeftJoinPushdownRules checks that only left-side predicates push below
// a left join.
func TestLeftJoinPushdownRules(t *testing.T) {
	preds := []ir.Expr{
		ir.Eq(ir.ColIndex("a", 0), ir.Lit(storage.NewInt64(1))),
		ir.Eq(ir.ColIndex("y", 2), ir.Lit(storage.NewInt64(2))),
	}
	left, right, post := classifyPredicatesForJoin(ir.JoinLeft, preds, 2)
	assert.Len(t, left, 1)
	assert.Empty(t, right)
	assert.Len(t, post, 1, "right-side predicate must not change null padding")

	left, right, post = classifyPredicatesForJoin(ir.JoinFull, preds, 2)
	assert.Empty(t, left)
	assert.Empty(t, right)
	assert.Len(t, post, 2, "nothing pushes through a full join")

	left, right, post = classifyPredicatesForJoin(ir.JoinInner, preds, 2)
	assert.Len(t, left, 1)
	require.Len(t, right, 1)
	assert.Empty(t, post)
	indices := make(map[int]struct{})
	require.True(t, ir.CollectColumnIndices(right[0], indices))
	_, has := indices[0]
	assert.True(t, has, "right predicate indices are rewritten relative to the right schema")
}

func TestRequiredColumns(t *testing.T) {
	r := NewRequiredColumns()
	r.Add(2)
	r.Add(0)
	assert.True(t, r.Contains(0))
	assert.False(t, r.Contains(1))
	assert.Equal(t, []int{0, 2}, r.Sorted())
	assert.False(t, r.IsAll(3))

	all := AllColumns(3)
	assert.True(t, all.IsAll(3))
	assert.Equal(t, []int{0, 1, 2}, all.Sorted())
}
