package optimizer

import (
	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
)

// toPhysical converts a logical plan to its physical shape, selecting join
// strategies and fusing Sort+Limit into TopN.
func toPhysical(plan ir.LogicalPlan) (physical.Plan, error) {
	switch n := plan.(type) {
	case *ir.Scan:
		return &physical.TableScan{Table: n.Table, TableSchema: n.TableSchema}, nil
	case *ir.Project:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		exprs := resolveAll(n.Exprs, n.Input.Schema())
		return &physical.Project{Input: input, Exprs: exprs, OutSchema: n.OutSchema}, nil
	case *ir.Filter:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Filter{
			Input:     input,
			Predicate: ir.ResolveColumns(n.Predicate, n.Input.Schema()),
		}, nil
	case *ir.Join:
		return joinStrategy(n)
	case *ir.AggregatePlan:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.HashAggregate{
			Input:        input,
			GroupBy:      resolveAll(n.GroupBy, n.Input.Schema()),
			Aggregates:   resolveAll(n.Aggregates, n.Input.Schema()),
			GroupingSets: n.GroupingSets,
			OutSchema:    n.OutSchema,
		}, nil
	case *ir.Window:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Window{
			Input:     input,
			Exprs:     resolveAll(n.Exprs, n.Input.Schema()),
			OutSchema: n.OutSchema,
		}, nil
	case *ir.Sort:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Sort{Input: input, Keys: resolveKeys(n.Keys, n.Input.Schema())}, nil
	case *ir.Limit:
		return limitStrategy(n)
	case *ir.Distinct:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Distinct{Input: input}, nil
	case *ir.Union:
		inputs := make([]physical.Plan, len(n.Inputs))
		for i, in := range n.Inputs {
			converted, err := toPhysical(in)
			if err != nil {
				return nil, err
			}
			inputs[i] = converted
		}
		return &physical.Union{Inputs: inputs, All: n.All}, nil
	case *ir.Intersect:
		left, err := toPhysical(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := toPhysical(n.Right)
		if err != nil {
			return nil, err
		}
		return &physical.Intersect{Left: left, Right: right, All: n.All}, nil
	case *ir.Except:
		left, err := toPhysical(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := toPhysical(n.Right)
		if err != nil {
			return nil, err
		}
		return &physical.Except{Left: left, Right: right, All: n.All}, nil
	case *ir.Qualify:
		// Window columns already exist below a qualify, so it executes as
		// a plain filter.
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Filter{
			Input:     input,
			Predicate: ir.ResolveColumns(n.Predicate, n.Input.Schema()),
		}, nil
	case *ir.Sample:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Sample{Input: input, Method: n.Method, Amount: n.Amount}, nil
	case *ir.Unnest:
		input, err := toPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &physical.Unnest{
			Input:      input,
			Expr:       ir.ResolveColumns(n.Expr, n.Input.Schema()),
			WithOffset: n.WithOffset,
			OutSchema:  n.OutSchema,
		}, nil
	case *ir.WithCte:
		ctes := make([]physical.Cte, len(n.Ctes))
		for i, cte := range n.Ctes {
			converted, err := toPhysical(cte.Plan)
			if err != nil {
				return nil, err
			}
			ctes[i] = physical.Cte{Name: cte.Name, Plan: converted}
		}
		body, err := toPhysical(n.Body)
		if err != nil {
			return nil, err
		}
		return &physical.WithCte{Ctes: ctes, Body: body}, nil
	case *ir.Empty:
		return &physical.Empty{OutSchema: n.OutSchema}, nil
	default:
		return nil, common.NewError(common.ErrorKindInternal, common.ErrCodeInvalidPlan,
			"unhandled logical plan node")
	}
}

// limitStrategy fuses Limit{limit, no offset} over Sort into TopN. Any
// offset, or a missing limit, blocks the fusion.
func limitStrategy(n *ir.Limit) (physical.Plan, error) {
	if sort, ok := n.Input.(*ir.Sort); ok && n.Limit != nil && n.Offset == nil {
		input, err := toPhysical(sort.Input)
		if err != nil {
			return nil, err
		}
		return &physical.TopN{
			Input: input,
			Keys:  resolveKeys(sort.Keys, sort.Input.Schema()),
			Limit: *n.Limit,
		}, nil
	}
	input, err := toPhysical(n.Input)
	if err != nil {
		return nil, err
	}
	return &physical.Limit{Input: input, Limit: n.Limit, Offset: n.Offset}, nil
}

// joinStrategy picks the physical join operator. Cross joins always take the
// dedicated operator; an AND-tree of pure single-column equalities becomes a
// HashJoin; anything else runs as a nested loop.
func joinStrategy(n *ir.Join) (physical.Plan, error) {
	left, err := toPhysical(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := toPhysical(n.Right)
	if err != nil {
		return nil, err
	}
	if n.Type == ir.JoinCross {
		if n.Condition != nil {
			return nil, common.NewInternalError("cross join carries a condition")
		}
		return &physical.CrossJoin{Left: left, Right: right, OutSchema: n.OutSchema}, nil
	}

	leftWidth := n.Left.Schema().Len()
	var condition ir.Expr
	if n.Condition != nil {
		condition = ir.ResolveColumns(n.Condition, n.Left.Schema().Concat(n.Right.Schema()))
	}

	if leftKeys, rightKeys, ok := extractEquiKeys(condition, leftWidth); ok {
		return &physical.HashJoin{
			Left:      left,
			Right:     right,
			Type:      n.Type,
			LeftKeys:  leftKeys,
			RightKeys: rightKeys,
			OutSchema: n.OutSchema,
		}, nil
	}
	return &physical.NestedLoopJoin{
		Left:      left,
		Right:     right,
		Type:      n.Type,
		Condition: condition,
		OutSchema: n.OutSchema,
	}, nil
}

// extractEquiKeys decomposes an AND-tree of column equalities referencing
// exactly one column from each side. Right keys come back rewritten relative
// to the right schema.
func extractEquiKeys(condition ir.Expr, leftWidth int) (leftKeys, rightKeys []ir.Expr, ok bool) {
	if condition == nil {
		return nil, nil, false
	}
	for _, conjunct := range ir.SplitConjunction(condition) {
		binary, isBinary := conjunct.(*ir.Binary)
		if !isBinary || binary.Op != ir.OpEq {
			return nil, nil, false
		}
		a, aok := binary.Left.(*ir.ColumnRef)
		b, bok := binary.Right.(*ir.ColumnRef)
		if !aok || !bok || a.Index == nil || b.Index == nil {
			return nil, nil, false
		}
		switch {
		case *a.Index < leftWidth && *b.Index >= leftWidth:
			leftKeys = append(leftKeys, a)
			rightKeys = append(rightKeys, shiftRight(b, leftWidth))
		case *b.Index < leftWidth && *a.Index >= leftWidth:
			leftKeys = append(leftKeys, b)
			rightKeys = append(rightKeys, shiftRight(a, leftWidth))
		default:
			return nil, nil, false
		}
	}
	return leftKeys, rightKeys, len(leftKeys) > 0
}

func shiftRight(col *ir.ColumnRef, leftWidth int) *ir.ColumnRef {
	shifted := *col.Index - leftWidth
	return &ir.ColumnRef{Table: col.Table, Name: col.Name, Index: &shifted}
}

func resolveAll(exprs []ir.Expr, schema ir.PlanSchema) []ir.Expr {
	out := make([]ir.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = ir.ResolveColumns(e, schema)
	}
	return out
}

func resolveKeys(keys []ir.SortKey, schema ir.PlanSchema) []ir.SortKey {
	out := make([]ir.SortKey, len(keys))
	for i, k := range keys {
		out[i] = ir.SortKey{Expr: ir.ResolveColumns(k.Expr, schema), Desc: k.Desc, NullsFirst: k.NullsFirst}
	}
	return out
}
