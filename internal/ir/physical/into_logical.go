package physical

import (
	"github.com/lychee-technology/yachtsql/internal/ir"
)

func (p *TableScan) IntoLogical() ir.LogicalPlan {
	// The projection is an access-path detail; the logical scan always
	// exposes the full table schema. Callers that need the narrowed shape
	// wrap it in a Project.
	return &ir.Scan{Table: p.Table, TableSchema: p.TableSchema}
}

func (p *Project) IntoLogical() ir.LogicalPlan {
	return &ir.Project{Input: p.Input.IntoLogical(), Exprs: p.Exprs, OutSchema: p.OutSchema}
}

func (p *Filter) IntoLogical() ir.LogicalPlan {
	return &ir.Filter{Input: p.Input.IntoLogical(), Predicate: p.Predicate}
}

// IntoLogical restores the join condition as ANDed equijoin equalities.
// Right-side column indices come back offset by the left schema width,
// undoing the right-relative storage used during execution.
func (p *HashJoin) IntoLogical() ir.LogicalPlan {
	leftWidth := p.Left.Schema().Len()
	var condition ir.Expr
	for i := range p.LeftKeys {
		right := offsetExprIndices(p.RightKeys[i], leftWidth)
		eq := ir.Eq(p.LeftKeys[i], right)
		if condition == nil {
			condition = eq
		} else {
			condition = ir.And(condition, eq)
		}
	}
	return &ir.Join{
		Left:      p.Left.IntoLogical(),
		Right:     p.Right.IntoLogical(),
		Type:      p.Type,
		Condition: condition,
		OutSchema: p.OutSchema,
	}
}

func (p *NestedLoopJoin) IntoLogical() ir.LogicalPlan {
	return &ir.Join{
		Left:      p.Left.IntoLogical(),
		Right:     p.Right.IntoLogical(),
		Type:      p.Type,
		Condition: p.Condition,
		OutSchema: p.OutSchema,
	}
}

func (p *CrossJoin) IntoLogical() ir.LogicalPlan {
	return &ir.Join{
		Left:      p.Left.IntoLogical(),
		Right:     p.Right.IntoLogical(),
		Type:      ir.JoinCross,
		OutSchema: p.OutSchema,
	}
}

func (p *HashAggregate) IntoLogical() ir.LogicalPlan {
	return &ir.AggregatePlan{
		Input:        p.Input.IntoLogical(),
		GroupBy:      p.GroupBy,
		Aggregates:   p.Aggregates,
		GroupingSets: p.GroupingSets,
		OutSchema:    p.OutSchema,
	}
}

func (p *Window) IntoLogical() ir.LogicalPlan {
	return &ir.Window{Input: p.Input.IntoLogical(), Exprs: p.Exprs, OutSchema: p.OutSchema}
}

func (p *Sort) IntoLogical() ir.LogicalPlan {
	return &ir.Sort{Input: p.Input.IntoLogical(), Keys: p.Keys}
}

// IntoLogical splits TopN back into Sort below Limit.
func (p *TopN) IntoLogical() ir.LogicalPlan {
	limit := p.Limit
	return &ir.Limit{
		Input: &ir.Sort{Input: p.Input.IntoLogical(), Keys: p.Keys},
		Limit: &limit,
	}
}

func (p *Limit) IntoLogical() ir.LogicalPlan {
	return &ir.Limit{Input: p.Input.IntoLogical(), Limit: p.Limit, Offset: p.Offset}
}

func (p *Distinct) IntoLogical() ir.LogicalPlan {
	return &ir.Distinct{Input: p.Input.IntoLogical()}
}

func (p *Union) IntoLogical() ir.LogicalPlan {
	inputs := make([]ir.LogicalPlan, len(p.Inputs))
	for i, in := range p.Inputs {
		inputs[i] = in.IntoLogical()
	}
	return &ir.Union{Inputs: inputs, All: p.All}
}

func (p *Intersect) IntoLogical() ir.LogicalPlan {
	return &ir.Intersect{Left: p.Left.IntoLogical(), Right: p.Right.IntoLogical(), All: p.All}
}

func (p *Except) IntoLogical() ir.LogicalPlan {
	return &ir.Except{Left: p.Left.IntoLogical(), Right: p.Right.IntoLogical(), All: p.All}
}

func (p *Sample) IntoLogical() ir.LogicalPlan {
	return &ir.Sample{Input: p.Input.IntoLogical(), Method: p.Method, Amount: p.Amount}
}

func (p *Unnest) IntoLogical() ir.LogicalPlan {
	return &ir.Unnest{Input: p.Input.IntoLogical(), Expr: p.Expr, WithOffset: p.WithOffset, OutSchema: p.OutSchema}
}

func (p *WithCte) IntoLogical() ir.LogicalPlan {
	ctes := make([]ir.Cte, len(p.Ctes))
	for i, cte := range p.Ctes {
		ctes[i] = ir.Cte{Name: cte.Name, Plan: cte.Plan.IntoLogical()}
	}
	return &ir.WithCte{Ctes: ctes, Body: p.Body.IntoLogical()}
}

func (p *Empty) IntoLogical() ir.LogicalPlan {
	return &ir.Empty{OutSchema: p.OutSchema}
}

// offsetExprIndices shifts every resolved column index in the expression by
// delta, returning a rewritten copy.
func offsetExprIndices(e ir.Expr, delta int) ir.Expr {
	switch n := e.(type) {
	case *ir.ColumnRef:
		if n.Index == nil {
			return n
		}
		shifted := *n.Index + delta
		return &ir.ColumnRef{Table: n.Table, Name: n.Name, Index: &shifted}
	case *ir.Binary:
		return &ir.Binary{Op: n.Op, Left: offsetExprIndices(n.Left, delta), Right: offsetExprIndices(n.Right, delta)}
	case *ir.Unary:
		return &ir.Unary{Op: n.Op, Operand: offsetExprIndices(n.Operand, delta)}
	case *ir.Cast:
		return &ir.Cast{Operand: offsetExprIndices(n.Operand, delta), Target: n.Target, Safe: n.Safe}
	case *ir.Alias:
		return &ir.Alias{Operand: offsetExprIndices(n.Operand, delta), Name: n.Name}
	case *ir.ScalarFunc:
		args := make([]ir.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = offsetExprIndices(a, delta)
		}
		return &ir.ScalarFunc{Name: n.Name, Args: args}
	default:
		return e
	}
}
