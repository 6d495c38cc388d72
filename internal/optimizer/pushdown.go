package optimizer

import (
	"github.com/lychee-technology/yachtsql/internal/ir"
)

// predSide classifies which side of a join a predicate touches.
type predSide int

const (
	sideNone predSide = iota
	sideLeft
	sideRight
	sideBoth
)

// pushDownPredicates rewrites the plan so filters sit as low as legality
// allows. preds are predicates accumulated from enclosing filters, expressed
// against plan's output schema.
func pushDownPredicates(plan ir.LogicalPlan, preds []ir.Expr) ir.LogicalPlan {
	switch n := plan.(type) {
	case *ir.Filter:
		conjuncts := ir.SplitConjunction(ir.ResolveColumns(n.Predicate, n.Input.Schema()))
		return pushDownPredicates(n.Input, append(preds, conjuncts...))
	case *ir.Join:
		return pushThroughJoin(n, preds)
	case *ir.AggregatePlan:
		return pushThroughAggregate(n, preds)
	case *ir.Window:
		return pushThroughWindow(n, preds)
	case *ir.Sort:
		// A filter commutes with sorting.
		return &ir.Sort{Input: pushDownPredicates(n.Input, preds), Keys: n.Keys}
	case *ir.Distinct:
		return &ir.Distinct{Input: pushDownPredicates(n.Input, preds)}
	case *ir.Project:
		rewritten := &ir.Project{Input: pushDownPredicates(n.Input, nil), Exprs: n.Exprs, OutSchema: n.OutSchema}
		return wrapWithFilters(rewritten, preds)
	case *ir.Limit:
		// Filtering below a limit changes which rows survive; stop here.
		rewritten := &ir.Limit{Input: pushDownPredicates(n.Input, nil), Limit: n.Limit, Offset: n.Offset}
		return wrapWithFilters(rewritten, preds)
	case *ir.Union:
		inputs := make([]ir.LogicalPlan, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = pushDownPredicates(in, nil)
		}
		return wrapWithFilters(&ir.Union{Inputs: inputs, All: n.All}, preds)
	case *ir.Intersect:
		return wrapWithFilters(&ir.Intersect{
			Left:  pushDownPredicates(n.Left, nil),
			Right: pushDownPredicates(n.Right, nil),
			All:   n.All,
		}, preds)
	case *ir.Except:
		return wrapWithFilters(&ir.Except{
			Left:  pushDownPredicates(n.Left, nil),
			Right: pushDownPredicates(n.Right, nil),
			All:   n.All,
		}, preds)
	case *ir.Qualify:
		return wrapWithFilters(&ir.Qualify{
			Input:     pushDownPredicates(n.Input, nil),
			Predicate: n.Predicate,
		}, preds)
	case *ir.Sample:
		return wrapWithFilters(&ir.Sample{
			Input:  pushDownPredicates(n.Input, nil),
			Method: n.Method,
			Amount: n.Amount,
		}, preds)
	case *ir.Unnest:
		return wrapWithFilters(&ir.Unnest{
			Input:      pushDownPredicates(n.Input, nil),
			Expr:       n.Expr,
			WithOffset: n.WithOffset,
			OutSchema:  n.OutSchema,
		}, preds)
	case *ir.WithCte:
		ctes := make([]ir.Cte, len(n.Ctes))
		for i, cte := range n.Ctes {
			ctes[i] = ir.Cte{Name: cte.Name, Plan: pushDownPredicates(cte.Plan, nil)}
		}
		return wrapWithFilters(&ir.WithCte{Ctes: ctes, Body: pushDownPredicates(n.Body, nil)}, preds)
	default:
		// Scan, Empty and anything unrecognized absorb the remaining
		// predicates as a filter directly above.
		return wrapWithFilters(plan, preds)
	}
}

// wrapWithFilters applies the predicates as one conjunctive filter on top of
// plan.
func wrapWithFilters(plan ir.LogicalPlan, preds []ir.Expr) ir.LogicalPlan {
	combined := ir.CombineConjunction(preds)
	if combined == nil {
		return plan
	}
	return &ir.Filter{Input: plan, Predicate: combined}
}

// classifyPredicate determines which join side a predicate touches.
func classifyPredicate(pred ir.Expr, leftWidth int) predSide {
	indices := make(map[int]struct{})
	if !ir.CollectColumnIndices(pred, indices) {
		return sideBoth
	}
	if len(indices) == 0 {
		return sideNone
	}
	touchesLeft, touchesRight := false, false
	for idx := range indices {
		if idx < leftWidth {
			touchesLeft = true
		} else {
			touchesRight = true
		}
	}
	switch {
	case touchesLeft && touchesRight:
		return sideBoth
	case touchesLeft:
		return sideLeft
	default:
		return sideRight
	}
}

// classifyPredicatesForJoin splits predicates into left-pushable,
// right-pushable (rewritten to right-relative indices) and post-join sets,
// honoring outer join null-padding semantics.
func classifyPredicatesForJoin(joinType ir.JoinType, preds []ir.Expr, leftWidth int) (left, right, post []ir.Expr) {
	for _, pred := range preds {
		side := classifyPredicate(pred, leftWidth)
		switch side {
		case sideLeft:
			if joinType == ir.JoinInner || joinType == ir.JoinLeft {
				left = append(left, pred)
			} else {
				post = append(post, pred)
			}
		case sideRight:
			if joinType == ir.JoinInner || joinType == ir.JoinRight {
				rewritten, ok := ir.RewriteColumnIndices(pred, func(idx int) (int, bool) {
					if idx < leftWidth {
						return 0, false
					}
					return idx - leftWidth, true
				})
				if ok {
					right = append(right, rewritten)
					continue
				}
			}
			post = append(post, pred)
		default:
			post = append(post, pred)
		}
	}
	return left, right, post
}

func pushThroughJoin(n *ir.Join, preds []ir.Expr) ir.LogicalPlan {
	leftWidth := n.Left.Schema().Len()

	// The join's own condition keeps equijoin conjuncts in place, but
	// single-side conjuncts of an inner join migrate below it.
	condition := n.Condition
	if condition != nil {
		condition = ir.ResolveColumns(condition, n.Left.Schema().Concat(n.Right.Schema()))
	}
	var condPreds []ir.Expr
	if n.Type == ir.JoinInner && condition != nil {
		kept := make([]ir.Expr, 0)
		for _, conjunct := range ir.SplitConjunction(condition) {
			if classifyPredicate(conjunct, leftWidth) == sideBoth {
				kept = append(kept, conjunct)
			} else {
				condPreds = append(condPreds, conjunct)
			}
		}
		condition = ir.CombineConjunction(kept)
	}

	all := append(append([]ir.Expr{}, preds...), condPreds...)
	left, right, post := classifyPredicatesForJoin(n.Type, all, leftWidth)

	join := &ir.Join{
		Left:      pushDownPredicates(n.Left, left),
		Right:     pushDownPredicates(n.Right, right),
		Type:      n.Type,
		Condition: condition,
		OutSchema: n.OutSchema,
	}
	return wrapWithFilters(join, post)
}

// remapPredicateIndices rewrites column references on the aggregate's
// group-by output back to input offsets. Output column i (i < group count)
// corresponds to group-by expression i, which must itself be a bare column
// reference for the remap to succeed.
func remapPredicateIndices(pred ir.Expr, groupBy []ir.Expr) (ir.Expr, bool) {
	return ir.RewriteColumnIndices(pred, func(idx int) (int, bool) {
		if idx >= len(groupBy) {
			return 0, false
		}
		col, ok := groupBy[idx].(*ir.ColumnRef)
		if !ok || col.Index == nil {
			return 0, false
		}
		return *col.Index, true
	})
}

func pushThroughAggregate(n *ir.AggregatePlan, preds []ir.Expr) ir.LogicalPlan {
	numGroups := len(n.GroupBy)
	var pushed, having []ir.Expr
	for _, pred := range preds {
		indices := make(map[int]struct{})
		pushable := ir.CollectColumnIndices(pred, indices)
		if pushable {
			for idx := range indices {
				if idx >= numGroups {
					pushable = false
					break
				}
			}
		}
		if pushable {
			if remapped, ok := remapPredicateIndices(pred, n.GroupBy); ok {
				pushed = append(pushed, remapped)
				continue
			}
		}
		having = append(having, pred)
	}
	agg := &ir.AggregatePlan{
		Input:        pushDownPredicates(n.Input, pushed),
		GroupBy:      n.GroupBy,
		Aggregates:   n.Aggregates,
		GroupingSets: n.GroupingSets,
		OutSchema:    n.OutSchema,
	}
	return wrapWithFilters(agg, having)
}

func pushThroughWindow(n *ir.Window, preds []ir.Expr) ir.LogicalPlan {
	inputWidth := n.Input.Schema().Len()
	var pushed, kept []ir.Expr
	for _, pred := range preds {
		indices := make(map[int]struct{})
		pushable := ir.CollectColumnIndices(pred, indices)
		if pushable {
			for idx := range indices {
				if idx >= inputWidth {
					pushable = false
					break
				}
			}
		}
		if pushable {
			pushed = append(pushed, pred)
		} else {
			kept = append(kept, pred)
		}
	}
	window := &ir.Window{
		Input:     pushDownPredicates(n.Input, pushed),
		Exprs:     n.Exprs,
		OutSchema: n.OutSchema,
	}
	return wrapWithFilters(window, kept)
}
