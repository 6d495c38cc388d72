package ir

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/yachtsql/internal/storage"
)

// Expr is the logical expression tree. The node set is closed; consumers
// dispatch with exhaustive type switches.
type Expr interface {
	exprNode()
	String() string
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpConcat
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpConcat:
		return "||"
	default:
		return "?"
	}
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpPlus
)

// ColumnRef references an input column. Index, once resolved by the
// optimizer, is the offset within the input schema and becomes the
// executor's fast path.
type ColumnRef struct {
	Table string
	Name  string
	Index *int
}

// Col builds an unresolved column reference.
func Col(name string) *ColumnRef {
	return &ColumnRef{Name: name}
}

// ColTable builds a table-qualified column reference.
func ColTable(table, name string) *ColumnRef {
	return &ColumnRef{Table: table, Name: name}
}

// ColIndex builds a resolved column reference.
func ColIndex(name string, index int) *ColumnRef {
	return &ColumnRef{Name: name, Index: &index}
}

// Literal wraps a constant value.
type Literal struct {
	Value storage.Value
}

// Lit builds a literal expression.
func Lit(v storage.Value) *Literal {
	return &Literal{Value: v}
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// NewBinary builds a binary expression.
func NewBinary(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Eq builds an equality expression.
func Eq(left, right Expr) *Binary {
	return NewBinary(OpEq, left, right)
}

// And builds a conjunction.
func And(left, right Expr) *Binary {
	return NewBinary(OpAnd, left, right)
}

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// IsNull tests a value for null; Negated flips to IS NOT NULL.
type IsNull struct {
	Operand Expr
	Negated bool
}

// IsDistinctFrom is null-safe inequality; Negated flips to IS NOT DISTINCT FROM.
type IsDistinctFrom struct {
	Left    Expr
	Right   Expr
	Negated bool
}

// Cast converts to a target type. Safe casts yield null instead of erroring.
type Cast struct {
	Operand Expr
	Target  storage.DataType
	Safe    bool
}

// Alias names an expression in a projection.
type Alias struct {
	Operand Expr
	Name    string
}

// Like matches a SQL LIKE pattern with % and _ wildcards.
type Like struct {
	Operand Expr
	Pattern Expr
	Negated bool
}

// InList tests membership of a literal list.
type InList struct {
	Operand Expr
	List    []Expr
	Negated bool
}

// Between tests low <= operand <= high.
type Between struct {
	Operand Expr
	Low     Expr
	High    Expr
	Negated bool
}

// When is one arm of a CASE expression.
type When struct {
	Condition Expr
	Result    Expr
}

// Case evaluates searched or simple CASE. A non-nil Operand makes it simple
// CASE: each When condition is compared for equality against the operand.
type Case struct {
	Operand Expr
	Whens   []When
	Else    Expr
}

// ScalarFunc calls a named scalar function through the registry.
type ScalarFunc struct {
	Name string
	Args []Expr
}

// Func builds a scalar function call.
func Func(name string, args ...Expr) *ScalarFunc {
	return &ScalarFunc{Name: name, Args: args}
}

// SortKey orders rows by one expression.
type SortKey struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// NullsOrderFirst reports the effective null placement: default is NULLS
// FIRST for ascending and NULLS LAST for descending.
func (k SortKey) NullsOrderFirst() bool {
	if k.NullsFirst != nil {
		return *k.NullsFirst
	}
	return !k.Desc
}

// Aggregate is an aggregate function call with the optional modifiers
// BigQuery supports inside the call.
type Aggregate struct {
	Func        string
	Args        []Expr
	Distinct    bool
	Filter      Expr
	OrderBy     []SortKey
	Limit       *int64
	IgnoreNulls bool
}

// FrameUnit selects ROWS or RANGE framing.
type FrameUnit int

const (
	FrameRows FrameUnit = iota
	FrameRange
)

// BoundKind enumerates window frame bound shapes.
type BoundKind int

const (
	BoundUnboundedPreceding BoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// FrameBound is one end of a window frame.
type FrameBound struct {
	Kind   BoundKind
	Offset int64
}

// WindowFrame is an explicit frame clause.
type WindowFrame struct {
	Unit  FrameUnit
	Start FrameBound
	End   FrameBound
}

// WindowFunc is a window function call over a partition/order/frame spec.
type WindowFunc struct {
	Func        string
	Args        []Expr
	PartitionBy []Expr
	OrderBy     []SortKey
	Frame       *WindowFrame
	IgnoreNulls bool
}

// Lambda is an inline function literal for array higher-order builtins.
type Lambda struct {
	Params []string
	Body   Expr
}

// ScalarSubquery yields the single value of a one-row one-column subquery.
type ScalarSubquery struct {
	Plan LogicalPlan
}

// ExistsSubquery yields whether the subquery produces any row.
type ExistsSubquery struct {
	Plan LogicalPlan
}

// InSubquery tests membership of the subquery's single output column.
type InSubquery struct {
	Operand Expr
	Plan    LogicalPlan
	Negated bool
}

// ArraySubquery packs the subquery's single output column into an array.
type ArraySubquery struct {
	Plan LogicalPlan
}

// ArrayLit constructs an array from element expressions.
type ArrayLit struct {
	Elems []Expr
	Elem  *storage.DataType
}

// StructLit constructs a struct from named field expressions.
type StructLit struct {
	Names []string
	Exprs []Expr
}

// IndexMode selects array access semantics.
type IndexMode int

const (
	IndexOffset IndexMode = iota
	IndexOrdinal
	IndexSafeOffset
	IndexSafeOrdinal
)

// ArrayIndex accesses one array element. OFFSET is zero-based, ORDINAL
// one-based; SAFE variants yield null instead of an out-of-bounds error.
type ArrayIndex struct {
	Operand Expr
	Index   Expr
	Mode    IndexMode
}

// FieldAccess reads a named struct field.
type FieldAccess struct {
	Operand Expr
	Field   string
}

// JSONAccess reads a JSON object key or array position.
type JSONAccess struct {
	Operand Expr
	Key     Expr
}

// Param references a query parameter, or a system variable when System is
// set. Resolved through the evaluator's variable registries.
type Param struct {
	Name   string
	System bool
}

func (*ColumnRef) exprNode()      {}
func (*Literal) exprNode()        {}
func (*Binary) exprNode()         {}
func (*Unary) exprNode()          {}
func (*IsNull) exprNode()         {}
func (*IsDistinctFrom) exprNode() {}
func (*Cast) exprNode()           {}
func (*Alias) exprNode()          {}
func (*Like) exprNode()           {}
func (*InList) exprNode()         {}
func (*Between) exprNode()        {}
func (*Case) exprNode()           {}
func (*ScalarFunc) exprNode()     {}
func (*Aggregate) exprNode()      {}
func (*WindowFunc) exprNode()     {}
func (*Lambda) exprNode()         {}
func (*ScalarSubquery) exprNode() {}
func (*ExistsSubquery) exprNode() {}
func (*InSubquery) exprNode()     {}
func (*ArraySubquery) exprNode()  {}
func (*ArrayLit) exprNode()       {}
func (*StructLit) exprNode()      {}
func (*ArrayIndex) exprNode()     {}
func (*FieldAccess) exprNode()    {}
func (*JSONAccess) exprNode()     {}
func (*Param) exprNode()          {}

func (e *ColumnRef) String() string {
	name := e.Name
	if e.Table != "" {
		name = e.Table + "." + name
	}
	if e.Index != nil {
		return fmt.Sprintf("%s#%d", name, *e.Index)
	}
	return name
}

func (e *Literal) String() string {
	return e.Value.String()
}

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left.String(), e.Op.String(), e.Right.String())
}

func (e *Unary) String() string {
	switch e.Op {
	case OpNot:
		return "NOT " + e.Operand.String()
	case OpNeg:
		return "-" + e.Operand.String()
	default:
		return "+" + e.Operand.String()
	}
}

func (e *IsNull) String() string {
	if e.Negated {
		return e.Operand.String() + " IS NOT NULL"
	}
	return e.Operand.String() + " IS NULL"
}

func (e *IsDistinctFrom) String() string {
	op := "IS DISTINCT FROM"
	if e.Negated {
		op = "IS NOT DISTINCT FROM"
	}
	return fmt.Sprintf("%s %s %s", e.Left.String(), op, e.Right.String())
}

func (e *Cast) String() string {
	name := "CAST"
	if e.Safe {
		name = "SAFE_CAST"
	}
	return fmt.Sprintf("%s(%s AS %s)", name, e.Operand.String(), e.Target.String())
}

func (e *Alias) String() string {
	return fmt.Sprintf("%s AS %s", e.Operand.String(), e.Name)
}

func (e *Like) String() string {
	op := "LIKE"
	if e.Negated {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s %s", e.Operand.String(), op, e.Pattern.String())
}

func (e *InList) String() string {
	parts := make([]string, len(e.List))
	for i, item := range e.List {
		parts[i] = item.String()
	}
	op := "IN"
	if e.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", e.Operand.String(), op, strings.Join(parts, ", "))
}

func (e *Between) String() string {
	op := "BETWEEN"
	if e.Negated {
		op = "NOT BETWEEN"
	}
	return fmt.Sprintf("%s %s %s AND %s", e.Operand.String(), op, e.Low.String(), e.High.String())
}

func (e *Case) String() string {
	return "CASE"
}

func (e *ScalarFunc) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(parts, ", "))
}

func (e *Aggregate) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	inner := strings.Join(parts, ", ")
	if e.Distinct {
		inner = "DISTINCT " + inner
	}
	return fmt.Sprintf("%s(%s)", e.Func, inner)
}

func (e *WindowFunc) String() string {
	return fmt.Sprintf("%s(...) OVER (...)", e.Func)
}

func (e *Lambda) String() string {
	return fmt.Sprintf("(%s) -> %s", strings.Join(e.Params, ", "), e.Body.String())
}

func (e *ScalarSubquery) String() string { return "(subquery)" }
func (e *ExistsSubquery) String() string { return "EXISTS(subquery)" }
func (e *InSubquery) String() string     { return e.Operand.String() + " IN (subquery)" }
func (e *ArraySubquery) String() string  { return "ARRAY(subquery)" }

func (e *ArrayLit) String() string {
	parts := make([]string, len(e.Elems))
	for i, el := range e.Elems {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (e *StructLit) String() string {
	parts := make([]string, len(e.Exprs))
	for i, el := range e.Exprs {
		parts[i] = el.String()
	}
	return "STRUCT(" + strings.Join(parts, ", ") + ")"
}

func (e *ArrayIndex) String() string {
	return fmt.Sprintf("%s[%s]", e.Operand.String(), e.Index.String())
}

func (e *FieldAccess) String() string {
	return e.Operand.String() + "." + e.Field
}

func (e *JSONAccess) String() string {
	return fmt.Sprintf("%s[%s]", e.Operand.String(), e.Key.String())
}

func (e *Param) String() string {
	if e.System {
		return "@@" + e.Name
	}
	return "@" + e.Name
}

// OutputName reports the column name an expression produces in a projection.
func OutputName(e Expr) string {
	switch n := e.(type) {
	case *Alias:
		return n.Name
	case *ColumnRef:
		return n.Name
	case *FieldAccess:
		return n.Field
	case *ScalarFunc:
		return strings.ToLower(n.Name)
	case *Aggregate:
		return strings.ToLower(n.Func)
	case *WindowFunc:
		return strings.ToLower(n.Func)
	default:
		return "expr"
	}
}
