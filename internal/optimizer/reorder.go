package optimizer

import (
	"math"

	"github.com/lychee-technology/yachtsql/internal/ir"
)

// DefaultEquijoinSelectivity is the assumed fraction of pairs surviving one
// equijoin edge.
const DefaultEquijoinSelectivity = 0.1

// crossJoinPenalty multiplies the cost of joining two relations with no
// connecting edge.
const crossJoinPenalty = 1000.0

// JoinRelation is one base input of an inner-join chain.
type JoinRelation struct {
	ID        int
	Name      string
	Position  int
	Plan      ir.LogicalPlan
	Schema    ir.PlanSchema
	RowCount  int
}

// JoinEdge is one equijoin predicate between two relations. The relation
// pair is stored sorted so the adjacency list has one canonical key per
// pair; LeftCol/RightCol are offsets within the respective relation.
type JoinEdge struct {
	LeftRel     int
	RightRel    int
	LeftCol     int
	RightCol    int
	Selectivity float64
}

// JoinGraph is the relations and equijoin edges discovered in an inner-join
// chain.
type JoinGraph struct {
	Relations []JoinRelation
	Edges     []JoinEdge
}

// AddRelation appends a relation, assigning its id and original position.
func (g *JoinGraph) AddRelation(name string, plan ir.LogicalPlan, schema ir.PlanSchema, rowCount int) int {
	id := len(g.Relations)
	g.Relations = append(g.Relations, JoinRelation{
		ID:       id,
		Name:     name,
		Position: id,
		Plan:     plan,
		Schema:   schema,
		RowCount: rowCount,
	})
	return id
}

// Relation returns the relation with the given id.
func (g *JoinGraph) Relation(id int) (JoinRelation, bool) {
	if id < 0 || id >= len(g.Relations) {
		return JoinRelation{}, false
	}
	return g.Relations[id], true
}

// AddEdge connects two relations with an equijoin predicate.
func (g *JoinGraph) AddEdge(leftRel, leftCol, rightRel, rightCol int, selectivity float64) {
	if rightRel < leftRel {
		leftRel, rightRel = rightRel, leftRel
		leftCol, rightCol = rightCol, leftCol
	}
	g.Edges = append(g.Edges, JoinEdge{
		LeftRel:     leftRel,
		RightRel:    rightRel,
		LeftCol:     leftCol,
		RightCol:    rightCol,
		Selectivity: selectivity,
	})
}

// EdgesBetween returns the edges connecting any relation in the joined set
// with the candidate.
func (g *JoinGraph) EdgesBetween(joined map[int]bool, candidate int) []JoinEdge {
	var out []JoinEdge
	for _, e := range g.Edges {
		if (joined[e.LeftRel] && e.RightRel == candidate) ||
			(joined[e.RightRel] && e.LeftRel == candidate) {
			out = append(out, e)
		}
	}
	return out
}

// CostModel estimates join costs from cardinalities and edge selectivities.
type CostModel struct {
	Stats *TableStats
}

// EstimateBaseCardinality returns the estimated row count of a base table.
func (m *CostModel) EstimateBaseCardinality(table string) int {
	return m.Stats.RowCount(table)
}

// EstimateJoinCost returns (cost, outputRows) for joining two inputs of the
// given cardinalities under the connecting edges. Output rows are the scaled
// Cartesian product clamped to at least one; edge-less joins pay the
// cross-product penalty.
func (m *CostModel) EstimateJoinCost(lcard, rcard float64, edges []JoinEdge) (float64, float64) {
	outputRows := lcard * rcard
	for _, e := range edges {
		outputRows *= e.Selectivity
	}
	outputRows = math.Ceil(outputRows)
	if outputRows < 1 {
		outputRows = 1
	}
	penalty := 1.0
	if len(edges) == 0 {
		penalty = crossJoinPenalty
	}
	return (lcard + rcard + outputRows) * penalty, outputRows
}

// predicateCollector discovers a JoinGraph in a sub-tree of inner joins over
// simple scans (with interior filters).
type predicateCollector struct {
	model *CostModel
}

// BuildJoinGraph walks the plan and returns its join graph, or nil when the
// sub-tree contains a join other than inner or cross, a non-scan input, or
// only a single relation.
func (c *predicateCollector) BuildJoinGraph(plan ir.LogicalPlan) *JoinGraph {
	graph := &JoinGraph{}
	if !c.collect(plan, 0, graph) {
		return nil
	}
	if len(graph.Relations) < 2 {
		return nil
	}
	return graph
}

// collect recursively gathers relations and predicates. globalStart is the
// offset of this sub-tree's first column in the chain's concatenated schema.
func (c *predicateCollector) collect(plan ir.LogicalPlan, globalStart int, graph *JoinGraph) bool {
	switch n := plan.(type) {
	case *ir.Scan:
		rowCount := c.model.EstimateBaseCardinality(n.Table)
		graph.AddRelation(n.Table, n, n.TableSchema, rowCount)
		return true
	case *ir.Filter:
		// A filter over a single relation is part of that relation's
		// access plan.
		before := len(graph.Relations)
		if !c.collect(n.Input, globalStart, graph) {
			return false
		}
		if len(graph.Relations) != before+1 {
			return false
		}
		rel := &graph.Relations[before]
		rel.Plan = &ir.Filter{Input: rel.Plan, Predicate: n.Predicate}
		return true
	case *ir.Join:
		if n.Type != ir.JoinInner && n.Type != ir.JoinCross {
			return false
		}
		leftWidth := n.Left.Schema().Len()
		if !c.collect(n.Left, globalStart, graph) {
			return false
		}
		if !c.collect(n.Right, globalStart+leftWidth, graph) {
			return false
		}
		if n.Condition == nil {
			return true
		}
		condition := ir.ResolveColumns(n.Condition, n.Left.Schema().Concat(n.Right.Schema()))
		for _, conjunct := range ir.SplitConjunction(condition) {
			global, ok := ir.RewriteColumnIndices(conjunct, func(idx int) (int, bool) {
				return idx + globalStart, true
			})
			if !ok {
				return false
			}
			if !c.addEdge(global, graph) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// addEdge records an equality between columns of two different relations.
// Anything else vetoes the graph.
func (c *predicateCollector) addEdge(pred ir.Expr, graph *JoinGraph) bool {
	binary, ok := pred.(*ir.Binary)
	if !ok || binary.Op != ir.OpEq {
		return false
	}
	left, lok := binary.Left.(*ir.ColumnRef)
	right, rok := binary.Right.(*ir.ColumnRef)
	if !lok || !rok || left.Index == nil || right.Index == nil {
		return false
	}
	lRel, lCol, lok := c.relationOf(*left.Index, graph)
	rRel, rCol, rok := c.relationOf(*right.Index, graph)
	if !lok || !rok || lRel == rRel {
		return false
	}
	graph.AddEdge(lRel, lCol, rRel, rCol, DefaultEquijoinSelectivity)
	return true
}

// relationOf maps a global column offset to (relation id, offset within the
// relation).
func (c *predicateCollector) relationOf(globalIdx int, graph *JoinGraph) (int, int, bool) {
	offset := 0
	for _, rel := range graph.Relations {
		width := rel.Schema.Len()
		if globalIdx < offset+width {
			return rel.ID, globalIdx - offset, true
		}
		offset += width
	}
	return 0, 0, false
}

// greedyJoinReorderer emits a left-deep inner join tree ordered by estimated
// cost.
type greedyJoinReorderer struct {
	model *CostModel
}

// Reorder rebuilds the join chain starting from the smallest relation,
// greedily appending the cheapest next relation. When the resulting order
// differs from the original, the tree is wrapped in a projection restoring
// the caller's expected column order.
func (r *greedyJoinReorderer) Reorder(graph *JoinGraph, outSchema ir.PlanSchema) ir.LogicalPlan {
	n := len(graph.Relations)
	order := make([]int, 0, n)
	joined := make(map[int]bool, n)

	start := 0
	for i := 1; i < n; i++ {
		cand, best := graph.Relations[i], graph.Relations[start]
		if cand.RowCount < best.RowCount ||
			(cand.RowCount == best.RowCount && cand.Position < best.Position) {
			start = i
		}
	}
	order = append(order, start)
	joined[start] = true
	currentCard := float64(graph.Relations[start].RowCount)

	for len(order) < n {
		bestID, bestCost, bestRows := -1, math.Inf(1), 0.0
		for _, rel := range graph.Relations {
			if joined[rel.ID] {
				continue
			}
			edges := graph.EdgesBetween(joined, rel.ID)
			cost, rows := r.model.EstimateJoinCost(currentCard, float64(rel.RowCount), edges)
			if cost < bestCost ||
				(cost == bestCost && bestID >= 0 && rel.Position < graph.Relations[bestID].Position) {
				bestID, bestCost, bestRows = rel.ID, cost, rows
			}
		}
		order = append(order, bestID)
		joined[bestID] = true
		currentCard = bestRows
	}

	tree := r.buildTree(graph, order)
	if orderUnchanged(order) {
		return tree
	}
	return r.restoreSchema(graph, order, tree, outSchema)
}

func orderUnchanged(order []int) bool {
	for i, id := range order {
		if id != i {
			return false
		}
	}
	return true
}

// buildTree emits the left-deep join tree for the chosen order, attaching
// each step's equijoin edges as the join condition.
func (r *greedyJoinReorderer) buildTree(graph *JoinGraph, order []int) ir.LogicalPlan {
	// relStart[id] is the column offset of the relation inside the new
	// accumulated schema.
	relStart := make(map[int]int, len(order))

	first := graph.Relations[order[0]]
	relStart[first.ID] = 0
	var tree ir.LogicalPlan = first.Plan
	schema := first.Schema
	joined := map[int]bool{first.ID: true}

	for _, id := range order[1:] {
		rel := graph.Relations[id]
		edges := graph.EdgesBetween(joined, rel.ID)
		leftWidth := schema.Len()

		var condition ir.Expr
		for _, e := range edges {
			joinedRel, joinedCol := e.LeftRel, e.LeftCol
			candCol := e.RightCol
			if e.RightRel != rel.ID {
				joinedRel, joinedCol = e.RightRel, e.RightCol
				candCol = e.LeftCol
			}
			leftIdx := relStart[joinedRel] + joinedCol
			rightIdx := leftWidth + candCol
			eq := ir.Eq(
				&ir.ColumnRef{Name: columnName(graph, joinedRel, joinedCol), Index: &leftIdx},
				&ir.ColumnRef{Name: columnName(graph, rel.ID, candCol), Index: &rightIdx},
			)
			if condition == nil {
				condition = eq
			} else {
				condition = ir.And(condition, eq)
			}
		}

		joinType := ir.JoinInner
		if condition == nil {
			joinType = ir.JoinCross
		}
		schema = schema.Concat(rel.Schema)
		tree = &ir.Join{
			Left:      tree,
			Right:     rel.Plan,
			Type:      joinType,
			Condition: condition,
			OutSchema: schema,
		}
		relStart[rel.ID] = leftWidth
		joined[rel.ID] = true
	}
	return tree
}

func columnName(graph *JoinGraph, relID, col int) string {
	rel, ok := graph.Relation(relID)
	if !ok || col >= rel.Schema.Len() {
		return ""
	}
	return rel.Schema.Fields[col].Name
}

// restoreSchema wraps the reordered tree in a projection that emits columns
// in the original relation order.
func (r *greedyJoinReorderer) restoreSchema(graph *JoinGraph, order []int, tree ir.LogicalPlan, outSchema ir.PlanSchema) ir.LogicalPlan {
	relStart := make(map[int]int, len(order))
	offset := 0
	for _, id := range order {
		relStart[id] = offset
		offset += graph.Relations[id].Schema.Len()
	}
	var exprs []ir.Expr
	for _, rel := range graph.Relations {
		for col := 0; col < rel.Schema.Len(); col++ {
			idx := relStart[rel.ID] + col
			exprs = append(exprs, &ir.ColumnRef{
				Table: rel.Schema.Fields[col].Table,
				Name:  rel.Schema.Fields[col].Name,
				Index: &idx,
			})
		}
	}
	return &ir.Project{Input: tree, Exprs: exprs, OutSchema: outSchema}
}

// reorderJoins walks the plan top-down, replacing every maximal inner-join
// chain whose graph can be built with its greedy reordering.
func reorderJoins(plan ir.LogicalPlan, model *CostModel) ir.LogicalPlan {
	collector := &predicateCollector{model: model}
	if graph := collector.BuildJoinGraph(plan); graph != nil {
		reorderer := &greedyJoinReorderer{model: model}
		return reorderer.Reorder(graph, plan.Schema())
	}
	switch n := plan.(type) {
	case *ir.Filter:
		return &ir.Filter{Input: reorderJoins(n.Input, model), Predicate: n.Predicate}
	case *ir.Project:
		return &ir.Project{Input: reorderJoins(n.Input, model), Exprs: n.Exprs, OutSchema: n.OutSchema}
	case *ir.Join:
		return &ir.Join{
			Left:      reorderJoins(n.Left, model),
			Right:     reorderJoins(n.Right, model),
			Type:      n.Type,
			Condition: n.Condition,
			OutSchema: n.OutSchema,
		}
	case *ir.AggregatePlan:
		return &ir.AggregatePlan{
			Input:        reorderJoins(n.Input, model),
			GroupBy:      n.GroupBy,
			Aggregates:   n.Aggregates,
			GroupingSets: n.GroupingSets,
			OutSchema:    n.OutSchema,
		}
	case *ir.Window:
		return &ir.Window{Input: reorderJoins(n.Input, model), Exprs: n.Exprs, OutSchema: n.OutSchema}
	case *ir.Sort:
		return &ir.Sort{Input: reorderJoins(n.Input, model), Keys: n.Keys}
	case *ir.Limit:
		return &ir.Limit{Input: reorderJoins(n.Input, model), Limit: n.Limit, Offset: n.Offset}
	case *ir.Distinct:
		return &ir.Distinct{Input: reorderJoins(n.Input, model)}
	case *ir.Union:
		inputs := make([]ir.LogicalPlan, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = reorderJoins(in, model)
		}
		return &ir.Union{Inputs: inputs, All: n.All}
	case *ir.Intersect:
		return &ir.Intersect{Left: reorderJoins(n.Left, model), Right: reorderJoins(n.Right, model), All: n.All}
	case *ir.Except:
		return &ir.Except{Left: reorderJoins(n.Left, model), Right: reorderJoins(n.Right, model), All: n.All}
	case *ir.Qualify:
		return &ir.Qualify{Input: reorderJoins(n.Input, model), Predicate: n.Predicate}
	case *ir.Sample:
		return &ir.Sample{Input: reorderJoins(n.Input, model), Method: n.Method, Amount: n.Amount}
	case *ir.Unnest:
		return &ir.Unnest{Input: reorderJoins(n.Input, model), Expr: n.Expr, WithOffset: n.WithOffset, OutSchema: n.OutSchema}
	case *ir.WithCte:
		ctes := make([]ir.Cte, len(n.Ctes))
		for i, cte := range n.Ctes {
			ctes[i] = ir.Cte{Name: cte.Name, Plan: reorderJoins(cte.Plan, model)}
		}
		return &ir.WithCte{Ctes: ctes, Body: reorderJoins(n.Body, model)}
	default:
		return plan
	}
}
