package ir

// JoinType enumerates the supported join shapes.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinLeftSemi
	JoinLeftAnti
	JoinRightSemi
	JoinRightAnti
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinFull:
		return "FULL"
	case JoinCross:
		return "CROSS"
	case JoinLeftSemi:
		return "LEFT SEMI"
	case JoinLeftAnti:
		return "LEFT ANTI"
	case JoinRightSemi:
		return "RIGHT SEMI"
	case JoinRightAnti:
		return "RIGHT ANTI"
	default:
		return "UNKNOWN"
	}
}

// IsOuter reports whether the join pads non-matching rows with nulls.
func (t JoinType) IsOuter() bool {
	return t == JoinLeft || t == JoinRight || t == JoinFull
}

// SampleMethod selects TABLESAMPLE semantics.
type SampleMethod int

const (
	SampleRows SampleMethod = iota
	SamplePercent
)

// LogicalPlan is the relational operator tree the resolver hands to the
// optimizer. Every node carries its output schema.
type LogicalPlan interface {
	Schema() PlanSchema
	logicalPlan()
}

// Scan reads a whole catalog table.
type Scan struct {
	Table       string
	TableSchema PlanSchema
}

// Project evaluates one expression per output column.
type Project struct {
	Input     LogicalPlan
	Exprs     []Expr
	OutSchema PlanSchema
}

// Filter keeps rows whose predicate evaluates to true.
type Filter struct {
	Input     LogicalPlan
	Predicate Expr
}

// Join combines two inputs under a join type and optional condition.
type Join struct {
	Left      LogicalPlan
	Right     LogicalPlan
	Type      JoinType
	Condition Expr
	OutSchema PlanSchema
}

// AggregatePlan groups rows and evaluates aggregate expressions. The output lays
// group-by columns first, aggregates after. GroupingSets, when present, lists
// subsets of group-by offsets to union over.
type AggregatePlan struct {
	Input        LogicalPlan
	GroupBy      []Expr
	Aggregates   []Expr
	GroupingSets [][]int
	OutSchema    PlanSchema
}

// Window appends one output column per window expression.
type Window struct {
	Input     LogicalPlan
	Exprs     []Expr
	OutSchema PlanSchema
}

// Sort orders the whole input by the key tuple. The sort is stable.
type Sort struct {
	Input LogicalPlan
	Keys  []SortKey
}

// Limit applies offset then limit.
type Limit struct {
	Input  LogicalPlan
	Limit  *int64
	Offset *int64
}

// Distinct deduplicates full rows.
type Distinct struct {
	Input LogicalPlan
}

// Union concatenates inputs; all=false deduplicates afterwards.
type Union struct {
	Inputs []LogicalPlan
	All    bool
}

// Intersect keeps rows present in both inputs.
type Intersect struct {
	Left  LogicalPlan
	Right LogicalPlan
	All   bool
}

// Except keeps left rows absent from the right input.
type Except struct {
	Left  LogicalPlan
	Right LogicalPlan
	All   bool
}

// Qualify filters on window function results.
type Qualify struct {
	Input     LogicalPlan
	Predicate Expr
}

// Sample takes a row or percentage sample.
type Sample struct {
	Input  LogicalPlan
	Method SampleMethod
	Amount float64
}

// Unnest expands an array-typed expression per input row; WithOffset appends
// the element index.
type Unnest struct {
	Input      LogicalPlan
	Expr       Expr
	WithOffset bool
	OutSchema  PlanSchema
}

// Cte is one named common table expression.
type Cte struct {
	Name string
	Plan LogicalPlan
}

// WithCte materializes CTEs top to bottom, then runs the body.
type WithCte struct {
	Ctes []Cte
	Body LogicalPlan
}

// Empty produces zero rows of the given schema.
type Empty struct {
	OutSchema PlanSchema
}

func (p *Scan) Schema() PlanSchema      { return p.TableSchema }
func (p *Project) Schema() PlanSchema   { return p.OutSchema }
func (p *Filter) Schema() PlanSchema    { return p.Input.Schema() }
func (p *Join) Schema() PlanSchema      { return p.OutSchema }
func (p *AggregatePlan) Schema() PlanSchema { return p.OutSchema }
func (p *Window) Schema() PlanSchema    { return p.OutSchema }
func (p *Sort) Schema() PlanSchema      { return p.Input.Schema() }
func (p *Limit) Schema() PlanSchema     { return p.Input.Schema() }
func (p *Distinct) Schema() PlanSchema  { return p.Input.Schema() }
func (p *Union) Schema() PlanSchema {
	if len(p.Inputs) == 0 {
		return PlanSchema{}
	}
	return p.Inputs[0].Schema()
}
func (p *Intersect) Schema() PlanSchema { return p.Left.Schema() }
func (p *Except) Schema() PlanSchema    { return p.Left.Schema() }
func (p *Qualify) Schema() PlanSchema   { return p.Input.Schema() }
func (p *Sample) Schema() PlanSchema    { return p.Input.Schema() }
func (p *Unnest) Schema() PlanSchema    { return p.OutSchema }
func (p *WithCte) Schema() PlanSchema   { return p.Body.Schema() }
func (p *Empty) Schema() PlanSchema     { return p.OutSchema }

func (*Scan) logicalPlan()      {}
func (*Project) logicalPlan()   {}
func (*Filter) logicalPlan()    {}
func (*Join) logicalPlan()      {}
func (*AggregatePlan) logicalPlan() {}
func (*Window) logicalPlan()    {}
func (*Sort) logicalPlan()      {}
func (*Limit) logicalPlan()     {}
func (*Distinct) logicalPlan()  {}
func (*Union) logicalPlan()     {}
func (*Intersect) logicalPlan() {}
func (*Except) logicalPlan()    {}
func (*Qualify) logicalPlan()   {}
func (*Sample) logicalPlan()    {}
func (*Unnest) logicalPlan()    {}
func (*WithCte) logicalPlan()   {}
func (*Empty) logicalPlan()     {}
