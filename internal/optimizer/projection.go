package optimizer

import (
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
)

// pushProjection restricts table scans to the columns the operators above
// actually read. required covers the node's output columns the ancestors
// need. The returned mapping translates old output offsets to the narrowed
// ones (-1 for dropped columns); nil means the output shape is unchanged.
func pushProjection(p physical.Plan, required *RequiredColumns) (physical.Plan, []int) {
	switch n := p.(type) {
	case *physical.TableScan:
		return pushScanProjection(n, required)
	case *physical.Filter:
		need := requireFor(cloneRequired(required), n.Input.Schema().Len(), n.Predicate)
		input, m := pushProjection(n.Input, need)
		return &physical.Filter{Input: input, Predicate: remapExpr(n.Predicate, m)}, m
	case *physical.Project:
		need := requireFor(NewRequiredColumns(), n.Input.Schema().Len(), n.Exprs...)
		input, m := pushProjection(n.Input, need)
		return &physical.Project{Input: input, Exprs: remapExprs(n.Exprs, m), OutSchema: n.OutSchema}, nil
	case *physical.HashJoin:
		return pushJoinProjection(n, required)
	case *physical.NestedLoopJoin:
		return pushNestedLoopProjection(n, required)
	case *physical.CrossJoin:
		return pushCrossProjection(n, required)
	case *physical.HashAggregate:
		need := requireFor(NewRequiredColumns(), n.Input.Schema().Len(), n.GroupBy...)
		need = requireFor(need, n.Input.Schema().Len(), n.Aggregates...)
		input, m := pushProjection(n.Input, need)
		return &physical.HashAggregate{
			Input:        input,
			GroupBy:      remapExprs(n.GroupBy, m),
			Aggregates:   remapExprs(n.Aggregates, m),
			GroupingSets: n.GroupingSets,
			OutSchema:    n.OutSchema,
		}, nil
	case *physical.Window:
		return pushWindowProjection(n, required)
	case *physical.Sort:
		need := cloneRequired(required)
		for _, k := range n.Keys {
			need = requireFor(need, n.Input.Schema().Len(), k.Expr)
		}
		input, m := pushProjection(n.Input, need)
		return &physical.Sort{Input: input, Keys: remapKeys(n.Keys, m)}, m
	case *physical.TopN:
		need := cloneRequired(required)
		for _, k := range n.Keys {
			need = requireFor(need, n.Input.Schema().Len(), k.Expr)
		}
		input, m := pushProjection(n.Input, need)
		return &physical.TopN{Input: input, Keys: remapKeys(n.Keys, m), Limit: n.Limit}, m
	case *physical.Limit:
		input, m := pushProjection(n.Input, cloneRequired(required))
		return &physical.Limit{Input: input, Limit: n.Limit, Offset: n.Offset}, m
	case *physical.Sample:
		input, m := pushProjection(n.Input, cloneRequired(required))
		return &physical.Sample{Input: input, Method: n.Method, Amount: n.Amount}, m
	case *physical.Distinct:
		// Row-level dedup reads every column.
		input, _ := pushProjection(n.Input, AllColumns(n.Input.Schema().Len()))
		return &physical.Distinct{Input: input}, nil
	case *physical.Union:
		if !n.All {
			inputs := make([]physical.Plan, len(n.Inputs))
			for i, in := range n.Inputs {
				inputs[i], _ = pushProjection(in, AllColumns(in.Schema().Len()))
			}
			return &physical.Union{Inputs: inputs, All: n.All}, nil
		}
		// The same required set forwards to every branch; equal schemas
		// yield equal mappings.
		inputs := make([]physical.Plan, len(n.Inputs))
		var m []int
		for i, in := range n.Inputs {
			inputs[i], m = pushProjection(in, cloneRequired(required))
		}
		return &physical.Union{Inputs: inputs, All: n.All}, m
	case *physical.Intersect:
		left, _ := pushProjection(n.Left, AllColumns(n.Left.Schema().Len()))
		right, _ := pushProjection(n.Right, AllColumns(n.Right.Schema().Len()))
		return &physical.Intersect{Left: left, Right: right, All: n.All}, nil
	case *physical.Except:
		left, _ := pushProjection(n.Left, AllColumns(n.Left.Schema().Len()))
		right, _ := pushProjection(n.Right, AllColumns(n.Right.Schema().Len()))
		return &physical.Except{Left: left, Right: right, All: n.All}, nil
	case *physical.Unnest:
		return pushUnnestProjection(n, required)
	case *physical.WithCte:
		ctes := make([]physical.Cte, len(n.Ctes))
		for i, cte := range n.Ctes {
			plan, _ := pushProjection(cte.Plan, AllColumns(cte.Plan.Schema().Len()))
			ctes[i] = physical.Cte{Name: cte.Name, Plan: plan}
		}
		body, m := pushProjection(n.Body, cloneRequired(required))
		return &physical.WithCte{Ctes: ctes, Body: body}, m
	default:
		return p, nil
	}
}

func pushScanProjection(n *physical.TableScan, required *RequiredColumns) (physical.Plan, []int) {
	width := n.TableSchema.Len()
	if required.IsAll(width) {
		return n, nil
	}
	projection := required.Sorted()
	mapping := make([]int, width)
	for i := range mapping {
		mapping[i] = -1
	}
	for pos, old := range projection {
		mapping[old] = pos
	}
	return &physical.TableScan{Table: n.Table, TableSchema: n.TableSchema, Projection: projection}, mapping
}

func pushJoinProjection(n *physical.HashJoin, required *RequiredColumns) (physical.Plan, []int) {
	oldLeftWidth := n.Left.Schema().Len()
	oldRightWidth := n.Right.Schema().Len()
	needLeft, needRight := NewRequiredColumns(), NewRequiredColumns()

	switch n.Type {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		copyRequired(needLeft, required, 0, oldLeftWidth)
	case ir.JoinRightSemi, ir.JoinRightAnti:
		copyRequired(needRight, required, 0, oldRightWidth)
	default:
		copyRequired(needLeft, required, 0, oldLeftWidth)
		for i := 0; i < oldRightWidth; i++ {
			if required.Contains(oldLeftWidth + i) {
				needRight.Add(i)
			}
		}
	}
	// Join keys are always required on each side.
	for _, k := range n.LeftKeys {
		addExprColumns(needLeft, k)
	}
	for _, k := range n.RightKeys {
		addExprColumns(needRight, k)
	}

	left, lm := pushProjection(n.Left, needLeft)
	right, rm := pushProjection(n.Right, needRight)
	newLeftWidth := left.Schema().Len()

	out := &physical.HashJoin{
		Left:      left,
		Right:     right,
		Type:      n.Type,
		LeftKeys:  remapExprs(n.LeftKeys, lm),
		RightKeys: remapExprs(n.RightKeys, rm),
		OutSchema: joinOutSchema(n.Type, left, right),
	}
	return out, combineJoinMapping(n.Type, lm, rm, oldLeftWidth, oldRightWidth, newLeftWidth)
}

func pushNestedLoopProjection(n *physical.NestedLoopJoin, required *RequiredColumns) (physical.Plan, []int) {
	oldLeftWidth := n.Left.Schema().Len()
	oldRightWidth := n.Right.Schema().Len()
	needLeft, needRight := NewRequiredColumns(), NewRequiredColumns()

	switch n.Type {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		copyRequired(needLeft, required, 0, oldLeftWidth)
	case ir.JoinRightSemi, ir.JoinRightAnti:
		copyRequired(needRight, required, 0, oldRightWidth)
	default:
		copyRequired(needLeft, required, 0, oldLeftWidth)
		for i := 0; i < oldRightWidth; i++ {
			if required.Contains(oldLeftWidth + i) {
				needRight.Add(i)
			}
		}
	}
	condCols := make(map[int]struct{})
	if !ir.CollectColumnIndices(n.Condition, condCols) {
		// Unanalyzable condition: keep every column on both sides.
		needLeft = AllColumns(oldLeftWidth)
		needRight = AllColumns(oldRightWidth)
		condCols = nil
	}
	for idx := range condCols {
		if idx < oldLeftWidth {
			needLeft.Add(idx)
		} else {
			needRight.Add(idx - oldLeftWidth)
		}
	}

	left, lm := pushProjection(n.Left, needLeft)
	right, rm := pushProjection(n.Right, needRight)
	newLeftWidth := left.Schema().Len()

	condition := n.Condition
	if condition != nil && (lm != nil || rm != nil) {
		combined := make([]int, oldLeftWidth+oldRightWidth)
		for i := range combined {
			if i < oldLeftWidth {
				combined[i] = applyMapping(lm, i)
			} else {
				mapped := applyMapping(rm, i-oldLeftWidth)
				if mapped >= 0 {
					mapped += newLeftWidth
				}
				combined[i] = mapped
			}
		}
		condition = remapExpr(condition, combined)
	}

	out := &physical.NestedLoopJoin{
		Left:      left,
		Right:     right,
		Type:      n.Type,
		Condition: condition,
		OutSchema: joinOutSchema(n.Type, left, right),
	}
	return out, combineJoinMapping(n.Type, lm, rm, oldLeftWidth, oldRightWidth, newLeftWidth)
}

func pushCrossProjection(n *physical.CrossJoin, required *RequiredColumns) (physical.Plan, []int) {
	oldLeftWidth := n.Left.Schema().Len()
	oldRightWidth := n.Right.Schema().Len()
	needLeft, needRight := NewRequiredColumns(), NewRequiredColumns()
	copyRequired(needLeft, required, 0, oldLeftWidth)
	for i := 0; i < oldRightWidth; i++ {
		if required.Contains(oldLeftWidth + i) {
			needRight.Add(i)
		}
	}
	left, lm := pushProjection(n.Left, needLeft)
	right, rm := pushProjection(n.Right, needRight)
	newLeftWidth := left.Schema().Len()
	out := &physical.CrossJoin{
		Left:      left,
		Right:     right,
		OutSchema: left.Schema().Concat(right.Schema()),
	}
	return out, combineJoinMapping(ir.JoinCross, lm, rm, oldLeftWidth, oldRightWidth, newLeftWidth)
}

func pushWindowProjection(n *physical.Window, required *RequiredColumns) (physical.Plan, []int) {
	inputWidth := n.Input.Schema().Len()
	need := NewRequiredColumns()
	copyRequired(need, required, 0, inputWidth)
	need = requireFor(need, inputWidth, n.Exprs...)
	input, m := pushProjection(n.Input, need)
	newWidth := input.Schema().Len()

	appended := n.OutSchema.Fields[inputWidth:]
	outSchema := input.Schema()
	outSchema.Fields = append(append([]ir.PlanField{}, outSchema.Fields...), appended...)

	out := &physical.Window{Input: input, Exprs: remapExprs(n.Exprs, m), OutSchema: outSchema}
	if m == nil {
		return out, nil
	}
	mapping := make([]int, len(n.OutSchema.Fields))
	for i := range mapping {
		if i < inputWidth {
			mapping[i] = m[i]
		} else {
			mapping[i] = newWidth + (i - inputWidth)
		}
	}
	return out, mapping
}

func pushUnnestProjection(n *physical.Unnest, required *RequiredColumns) (physical.Plan, []int) {
	inputWidth := n.Input.Schema().Len()
	need := NewRequiredColumns()
	copyRequired(need, required, 0, inputWidth)
	need = requireFor(need, inputWidth, n.Expr)
	input, m := pushProjection(n.Input, need)
	newWidth := input.Schema().Len()

	appended := n.OutSchema.Fields[inputWidth:]
	outSchema := input.Schema()
	outSchema.Fields = append(append([]ir.PlanField{}, outSchema.Fields...), appended...)

	out := &physical.Unnest{
		Input:      input,
		Expr:       remapExpr(n.Expr, m),
		WithOffset: n.WithOffset,
		OutSchema:  outSchema,
	}
	if m == nil {
		return out, nil
	}
	mapping := make([]int, len(n.OutSchema.Fields))
	for i := range mapping {
		if i < inputWidth {
			mapping[i] = m[i]
		} else {
			mapping[i] = newWidth + (i - inputWidth)
		}
	}
	return out, mapping
}

// joinOutSchema recomputes a join's output schema from its narrowed inputs.
func joinOutSchema(joinType ir.JoinType, left, right physical.Plan) ir.PlanSchema {
	switch joinType {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		return left.Schema()
	case ir.JoinRightSemi, ir.JoinRightAnti:
		return right.Schema()
	default:
		return left.Schema().Concat(right.Schema())
	}
}

// combineJoinMapping merges the child mappings into the join's output
// mapping. A nil child mapping means that side kept its shape, but the
// right side still shifts when the left narrowed.
func combineJoinMapping(joinType ir.JoinType, lm, rm []int, oldLeftWidth, oldRightWidth, newLeftWidth int) []int {
	switch joinType {
	case ir.JoinLeftSemi, ir.JoinLeftAnti:
		return lm
	case ir.JoinRightSemi, ir.JoinRightAnti:
		return rm
	}
	if lm == nil && rm == nil {
		return nil
	}
	mapping := make([]int, oldLeftWidth+oldRightWidth)
	for i := range mapping {
		if i < oldLeftWidth {
			mapping[i] = applyMapping(lm, i)
		} else {
			mapped := applyMapping(rm, i-oldLeftWidth)
			if mapped >= 0 {
				mapped += newLeftWidth
			}
			mapping[i] = mapped
		}
	}
	return mapping
}

func applyMapping(m []int, idx int) int {
	if m == nil {
		return idx
	}
	if idx < 0 || idx >= len(m) {
		return -1
	}
	return m[idx]
}

func remapExpr(e ir.Expr, m []int) ir.Expr {
	if e == nil || m == nil {
		return e
	}
	rewritten, ok := ir.RewriteColumnIndices(e, func(idx int) (int, bool) {
		mapped := applyMapping(m, idx)
		return mapped, mapped >= 0
	})
	if !ok {
		return e
	}
	return rewritten
}

func remapExprs(exprs []ir.Expr, m []int) []ir.Expr {
	if m == nil {
		return exprs
	}
	out := make([]ir.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = remapExpr(e, m)
	}
	return out
}

func remapKeys(keys []ir.SortKey, m []int) []ir.SortKey {
	if m == nil {
		return keys
	}
	out := make([]ir.SortKey, len(keys))
	for i, k := range keys {
		out[i] = ir.SortKey{Expr: remapExpr(k.Expr, m), Desc: k.Desc, NullsFirst: k.NullsFirst}
	}
	return out
}

func cloneRequired(r *RequiredColumns) *RequiredColumns {
	out := NewRequiredColumns()
	for _, i := range r.Sorted() {
		out.Add(i)
	}
	return out
}

// copyRequired copies the required offsets within [start, start+width) into
// dst, shifted down by start.
func copyRequired(dst, src *RequiredColumns, start, width int) {
	for i := 0; i < width; i++ {
		if src.Contains(start + i) {
			dst.Add(i)
		}
	}
}

// addExprColumns adds every column offset the expression reads. It reports
// false for expressions whose column usage cannot be analyzed (subqueries,
// lambdas, unresolved names); callers then fall back to requiring every
// input column.
func addExprColumns(r *RequiredColumns, e ir.Expr) bool {
	if e == nil {
		return true
	}
	indices := make(map[int]struct{})
	ok := ir.CollectColumnIndices(e, indices)
	for idx := range indices {
		r.Add(idx)
	}
	return ok
}

// requireFor gathers the columns of every expression, falling back to the
// full input width when any expression is unanalyzable.
func requireFor(base *RequiredColumns, width int, exprs ...ir.Expr) *RequiredColumns {
	need := base
	for _, e := range exprs {
		if !addExprColumns(need, e) {
			return AllColumns(width)
		}
	}
	return need
}
