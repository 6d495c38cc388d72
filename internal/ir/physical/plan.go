// Package physical holds the optimized plan the executor walks. It mirrors
// the logical operator set, replacing Scan with a projected TableScan, Join
// with an explicit strategy, and Sort+Limit with TopN where fused.
package physical

import (
	"github.com/lychee-technology/yachtsql/internal/ir"
)

// Plan is an optimized plan node.
type Plan interface {
	Schema() ir.PlanSchema
	// IntoLogical restores the logical shape, reversing every optimizer
	// rewrite that is reversible (notably hash join key offsets).
	IntoLogical() ir.LogicalPlan
	physicalPlan()
}

// TableScan reads a catalog table, optionally restricted to a projection.
// A nil Projection reads every column.
type TableScan struct {
	Table       string
	TableSchema ir.PlanSchema
	Projection  []int
}

// Project evaluates one expression per output column.
type Project struct {
	Input     Plan
	Exprs     []ir.Expr
	OutSchema ir.PlanSchema
}

// Filter keeps rows whose predicate evaluates to true.
type Filter struct {
	Input     Plan
	Predicate ir.Expr
}

// HashJoin is an equijoin executed by build/probe. Right key indices are
// stored relative to the right schema.
type HashJoin struct {
	Left      Plan
	Right     Plan
	Type      ir.JoinType
	LeftKeys  []ir.Expr
	RightKeys []ir.Expr
	OutSchema ir.PlanSchema
}

// NestedLoopJoin evaluates an arbitrary condition over every row pair.
type NestedLoopJoin struct {
	Left      Plan
	Right     Plan
	Type      ir.JoinType
	Condition ir.Expr
	OutSchema ir.PlanSchema
}

// CrossJoin is the dedicated Cartesian product operator.
type CrossJoin struct {
	Left      Plan
	Right     Plan
	OutSchema ir.PlanSchema
}

// HashAggregate groups by hashed key vectors.
type HashAggregate struct {
	Input        Plan
	GroupBy      []ir.Expr
	Aggregates   []ir.Expr
	GroupingSets [][]int
	OutSchema    ir.PlanSchema
}

// Window appends window function results as new columns.
type Window struct {
	Input     Plan
	Exprs     []ir.Expr
	OutSchema ir.PlanSchema
}

// Sort stably orders the whole input.
type Sort struct {
	Input Plan
	Keys  []ir.SortKey
}

// TopN is Sort+Limit fused into a bounded priority queue.
type TopN struct {
	Input Plan
	Keys  []ir.SortKey
	Limit int64
}

// Limit applies offset then limit.
type Limit struct {
	Input  Plan
	Limit  *int64
	Offset *int64
}

// Distinct deduplicates full rows.
type Distinct struct {
	Input Plan
}

// Union concatenates inputs; all=false deduplicates afterwards.
type Union struct {
	Inputs []Plan
	All    bool
}

// Intersect keeps rows present in both inputs.
type Intersect struct {
	Left  Plan
	Right Plan
	All   bool
}

// Except keeps left rows absent from the right input.
type Except struct {
	Left  Plan
	Right Plan
	All   bool
}

// Sample takes a row or percentage sample.
type Sample struct {
	Input  Plan
	Method ir.SampleMethod
	Amount float64
}

// Unnest expands an array expression per row.
type Unnest struct {
	Input      Plan
	Expr       ir.Expr
	WithOffset bool
	OutSchema  ir.PlanSchema
}

// Cte is one materialized common table expression.
type Cte struct {
	Name string
	Plan Plan
}

// WithCte materializes CTEs top to bottom, then runs the body.
type WithCte struct {
	Ctes []Cte
	Body Plan
}

// Empty produces zero rows of the given schema.
type Empty struct {
	OutSchema ir.PlanSchema
}

func (p *TableScan) Schema() ir.PlanSchema {
	if p.Projection == nil {
		return p.TableSchema
	}
	return p.TableSchema.Project(p.Projection)
}
func (p *Project) Schema() ir.PlanSchema        { return p.OutSchema }
func (p *Filter) Schema() ir.PlanSchema         { return p.Input.Schema() }
func (p *HashJoin) Schema() ir.PlanSchema       { return p.OutSchema }
func (p *NestedLoopJoin) Schema() ir.PlanSchema { return p.OutSchema }
func (p *CrossJoin) Schema() ir.PlanSchema      { return p.OutSchema }
func (p *HashAggregate) Schema() ir.PlanSchema  { return p.OutSchema }
func (p *Window) Schema() ir.PlanSchema         { return p.OutSchema }
func (p *Sort) Schema() ir.PlanSchema           { return p.Input.Schema() }
func (p *TopN) Schema() ir.PlanSchema           { return p.Input.Schema() }
func (p *Limit) Schema() ir.PlanSchema          { return p.Input.Schema() }
func (p *Distinct) Schema() ir.PlanSchema       { return p.Input.Schema() }
func (p *Union) Schema() ir.PlanSchema {
	if len(p.Inputs) == 0 {
		return ir.PlanSchema{}
	}
	return p.Inputs[0].Schema()
}
func (p *Intersect) Schema() ir.PlanSchema { return p.Left.Schema() }
func (p *Except) Schema() ir.PlanSchema    { return p.Left.Schema() }
func (p *Sample) Schema() ir.PlanSchema    { return p.Input.Schema() }
func (p *Unnest) Schema() ir.PlanSchema    { return p.OutSchema }
func (p *WithCte) Schema() ir.PlanSchema   { return p.Body.Schema() }
func (p *Empty) Schema() ir.PlanSchema     { return p.OutSchema }

func (*TableScan) physicalPlan()      {}
func (*Project) physicalPlan()        {}
func (*Filter) physicalPlan()         {}
func (*HashJoin) physicalPlan()       {}
func (*NestedLoopJoin) physicalPlan() {}
func (*CrossJoin) physicalPlan()      {}
func (*HashAggregate) physicalPlan()  {}
func (*Window) physicalPlan()         {}
func (*Sort) physicalPlan()           {}
func (*TopN) physicalPlan()           {}
func (*Limit) physicalPlan()          {}
func (*Distinct) physicalPlan()       {}
func (*Union) physicalPlan()          {}
func (*Intersect) physicalPlan()      {}
func (*Except) physicalPlan()         {}
func (*Sample) physicalPlan()         {}
func (*Unnest) physicalPlan()         {}
func (*WithCte) physicalPlan()        {}
func (*Empty) physicalPlan()          {}
