// Package executor walks an optimized plan bottom-up, producing a
// materialized table. Operators are synchronous; the only parallelism is the
// explicit fan-out inside joins and across independent binary inputs.
package executor

import (
	"context"
	"runtime"

	"go.uber.org/zap"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/eval"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/optimizer"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// Catalog resolves table names to materialized tables. Tables are read-only
// for the duration of a query.
type Catalog interface {
	GetTable(name string) (*storage.Table, bool)
}

// DefaultParallelThreshold is the work-unit count above which joins fan out
// across workers.
const DefaultParallelThreshold = 100_000

// Executor runs optimized plans against a catalog.
type Executor struct {
	catalog           Catalog
	evaluator         *eval.Evaluator
	parallelThreshold int
	workers           int
	logger            *zap.Logger
}

// Option tweaks executor construction.
type Option func(*Executor)

// WithParallelThreshold overrides the work-unit threshold for parallel
// joins.
func WithParallelThreshold(threshold int) Option {
	return func(ex *Executor) {
		if threshold > 0 {
			ex.parallelThreshold = threshold
		}
	}
}

// WithWorkers overrides the worker pool size.
func WithWorkers(workers int) Option {
	return func(ex *Executor) {
		if workers > 0 {
			ex.workers = workers
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(ex *Executor) {
		if logger != nil {
			ex.logger = logger
		}
	}
}

// New constructs an executor. The registries are captured by reference and
// must stay unchanged while a query runs.
func New(catalog Catalog, funcs *eval.FunctionRegistry, vars, sysVars *eval.VariableRegistry, opts ...Option) *Executor {
	ex := &Executor{
		catalog:           catalog,
		evaluator:         eval.NewEvaluator(funcs, vars, sysVars),
		parallelThreshold: DefaultParallelThreshold,
		workers:           runtime.NumCPU(),
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// execState carries per-query bindings: materialized CTEs visible to scans
// below a WithCte node.
type execState struct {
	ctx  context.Context
	ctes map[string]*storage.Table
}

// Execute runs the plan to completion and returns the result table.
func (ex *Executor) Execute(ctx context.Context, plan physical.Plan) (*storage.Table, error) {
	state := &execState{ctx: ctx, ctes: make(map[string]*storage.Table)}
	ex.evaluator.Subquery = &subqueryRunner{ex: ex, state: state}
	return ex.execute(plan, state)
}

func (ex *Executor) execute(plan physical.Plan, state *execState) (*storage.Table, error) {
	switch n := plan.(type) {
	case *physical.TableScan:
		return ex.executeScan(n, state)
	case *physical.Project:
		return ex.executeProject(n, state)
	case *physical.Filter:
		return ex.executeFilter(n, state)
	case *physical.HashJoin:
		return ex.executeHashJoin(n, state)
	case *physical.NestedLoopJoin:
		return ex.executeNestedLoopJoin(n, state)
	case *physical.CrossJoin:
		return ex.executeCrossJoin(n, state)
	case *physical.HashAggregate:
		return ex.executeAggregate(n, state)
	case *physical.Window:
		return ex.executeWindow(n, state)
	case *physical.Sort:
		return ex.executeSort(n, state)
	case *physical.TopN:
		return ex.executeTopN(n, state)
	case *physical.Limit:
		return ex.executeLimit(n, state)
	case *physical.Distinct:
		return ex.executeDistinct(n, state)
	case *physical.Union:
		return ex.executeUnion(n, state)
	case *physical.Intersect:
		return ex.executeIntersect(n, state)
	case *physical.Except:
		return ex.executeExcept(n, state)
	case *physical.Sample:
		return ex.executeSample(n, state)
	case *physical.Unnest:
		return ex.executeUnnest(n, state)
	case *physical.WithCte:
		return ex.executeWithCte(n, state)
	case *physical.Empty:
		return storage.EmptyTable(n.OutSchema.ToStorageSchema()), nil
	default:
		return nil, common.NewError(common.ErrorKindInternal, common.ErrCodeInvalidPlan,
			"unhandled physical plan node")
	}
}

// executeBinaryInputs evaluates the two inputs of a binary operator
// concurrently.
func (ex *Executor) executeBinaryInputs(left, right physical.Plan, state *execState) (*storage.Table, *storage.Table, error) {
	return ex.runBothInputs(left, right, state)
}

func (ex *Executor) executeScan(n *physical.TableScan, state *execState) (*storage.Table, error) {
	table, ok := state.ctes[n.Table]
	if !ok {
		table, ok = ex.catalog.GetTable(n.Table)
	}
	if !ok {
		return nil, common.NewTableNotFoundError(n.Table)
	}
	schema := n.Schema().ToStorageSchema()
	if n.Projection == nil {
		cols := make([]*storage.Column, table.ColumnCount())
		for i := range cols {
			col, err := table.Column(i)
			if err != nil {
				return nil, err
			}
			cols[i] = col.Clone()
		}
		return storage.NewTable(schema, cols)
	}
	cols := make([]*storage.Column, 0, len(n.Projection))
	for _, idx := range n.Projection {
		col, err := table.Column(idx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col.Clone())
	}
	return storage.NewTable(schema, cols)
}

func (ex *Executor) executeProject(n *physical.Project, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	schema := n.OutSchema.ToStorageSchema()
	out := storage.EmptyTable(schema)
	cols := out.Columns()
	for row := 0; row < input.RowCount(); row++ {
		rec := input.Record(row)
		for i, expr := range n.Exprs {
			v, err := ex.evaluator.Eval(expr, rec)
			if err != nil {
				return nil, err
			}
			if err := cols[i].Push(v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (ex *Executor) executeFilter(n *physical.Filter, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	indices, err := ex.filterIndices(n.Predicate, input)
	if err != nil {
		return nil, err
	}
	return input.Gather(indices)
}

// filterIndices evaluates the predicate per row and returns the indices that
// evaluate to true. Null and false both exclude.
func (ex *Executor) filterIndices(predicate ir.Expr, input *storage.Table) ([]int, error) {
	indices := make([]int, 0, input.RowCount())
	for row := 0; row < input.RowCount(); row++ {
		keep, err := ex.evalPredicate(predicate, input.Record(row))
		if err != nil {
			return nil, err
		}
		if keep {
			indices = append(indices, row)
		}
	}
	return indices, nil
}

// evalPredicate evaluates a predicate to its include/exclude decision.
func (ex *Executor) evalPredicate(predicate ir.Expr, rec storage.Record) (bool, error) {
	if predicate == nil {
		return true, nil
	}
	v, err := ex.evaluator.Eval(predicate, rec)
	if err != nil {
		return false, err
	}
	return !v.IsNull() && v.Kind() == storage.KindBool && v.AsBool(), nil
}

func (ex *Executor) executeLimit(n *physical.Limit, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	start := 0
	if n.Offset != nil {
		start = int(*n.Offset)
		if start > input.RowCount() {
			start = input.RowCount()
		}
	}
	end := input.RowCount()
	if n.Limit != nil && start+int(*n.Limit) < end {
		end = start + int(*n.Limit)
	}
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return input.Gather(indices)
}

func (ex *Executor) executeDistinct(n *physical.Distinct, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	return distinctTable(input)
}

// distinctTable deduplicates full rows, keeping first occurrences in order.
func distinctTable(input *storage.Table) (*storage.Table, error) {
	seen := make(map[string]struct{}, input.RowCount())
	indices := make([]int, 0, input.RowCount())
	for row := 0; row < input.RowCount(); row++ {
		key := storage.EncodeKey(input.Record(row).Values)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		indices = append(indices, row)
	}
	return input.Gather(indices)
}

func (ex *Executor) executeUnion(n *physical.Union, state *execState) (*storage.Table, error) {
	if len(n.Inputs) == 0 {
		return storage.EmptyTable(storage.Schema{}), nil
	}
	results, err := ex.runAllInputs(n.Inputs, state)
	if err != nil {
		return nil, err
	}
	out := results[0]
	for _, next := range results[1:] {
		for i, col := range out.Columns() {
			other, err := next.Column(i)
			if err != nil {
				return nil, err
			}
			if err := col.Extend(other.CoerceToType(col.Type())); err != nil {
				return nil, err
			}
		}
	}
	if n.All {
		return out, nil
	}
	return distinctTable(out)
}

func (ex *Executor) executeIntersect(n *physical.Intersect, state *execState) (*storage.Table, error) {
	left, right, err := ex.executeBinaryInputs(n.Left, n.Right, state)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, right.RowCount())
	for row := 0; row < right.RowCount(); row++ {
		counts[storage.EncodeKey(right.Record(row).Values)]++
	}
	indices := make([]int, 0)
	emitted := make(map[string]struct{})
	for row := 0; row < left.RowCount(); row++ {
		key := storage.EncodeKey(left.Record(row).Values)
		if counts[key] <= 0 {
			continue
		}
		if n.All {
			counts[key]--
			indices = append(indices, row)
			continue
		}
		if _, dup := emitted[key]; dup {
			continue
		}
		emitted[key] = struct{}{}
		indices = append(indices, row)
	}
	return left.Gather(indices)
}

func (ex *Executor) executeExcept(n *physical.Except, state *execState) (*storage.Table, error) {
	left, right, err := ex.executeBinaryInputs(n.Left, n.Right, state)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, right.RowCount())
	for row := 0; row < right.RowCount(); row++ {
		counts[storage.EncodeKey(right.Record(row).Values)]++
	}
	indices := make([]int, 0)
	emitted := make(map[string]struct{})
	for row := 0; row < left.RowCount(); row++ {
		key := storage.EncodeKey(left.Record(row).Values)
		if n.All {
			if counts[key] > 0 {
				counts[key]--
				continue
			}
			indices = append(indices, row)
			continue
		}
		if counts[key] > 0 {
			continue
		}
		if _, dup := emitted[key]; dup {
			continue
		}
		emitted[key] = struct{}{}
		indices = append(indices, row)
	}
	return left.Gather(indices)
}

func (ex *Executor) executeWithCte(n *physical.WithCte, state *execState) (*storage.Table, error) {
	// CTEs materialize once, top to bottom; later CTEs and the body see
	// earlier bindings.
	for _, cte := range n.Ctes {
		table, err := ex.execute(cte.Plan, state)
		if err != nil {
			return nil, err
		}
		state.ctes[cte.Name] = table
	}
	return ex.execute(n.Body, state)
}

// subqueryRunner lets the evaluator call back into the executor for
// subquery expressions.
type subqueryRunner struct {
	ex    *Executor
	state *execState
}

func (r *subqueryRunner) run(plan ir.LogicalPlan) (*storage.Table, error) {
	opt := optimizer.New(nil, r.ex.logger)
	converted, err := opt.Optimize(plan)
	if err != nil {
		return nil, err
	}
	return r.ex.execute(converted, r.state)
}

// RunScalar executes the subquery and returns its single value. More than
// one row or column is a shape error; zero rows yield null.
func (r *subqueryRunner) RunScalar(plan ir.LogicalPlan, _ storage.Record) (storage.Value, error) {
	table, err := r.run(plan)
	if err != nil {
		return storage.NewNull(), err
	}
	if table.ColumnCount() != 1 {
		return storage.NewNull(), common.NewError(common.ErrorKindArity, common.ErrCodeSubqueryShape,
			"scalar subquery must produce exactly one column")
	}
	if table.RowCount() == 0 {
		return storage.NewNull(), nil
	}
	if table.RowCount() > 1 {
		return storage.NewNull(), common.NewError(common.ErrorKindArity, common.ErrCodeSubqueryShape,
			"scalar subquery produced more than one row")
	}
	col, err := table.Column(0)
	if err != nil {
		return storage.NewNull(), err
	}
	return col.GetValue(0), nil
}

// RunColumn executes the subquery and returns its first column's values.
func (r *subqueryRunner) RunColumn(plan ir.LogicalPlan, _ storage.Record) ([]storage.Value, error) {
	table, err := r.run(plan)
	if err != nil {
		return nil, err
	}
	if table.ColumnCount() != 1 {
		return nil, common.NewError(common.ErrorKindArity, common.ErrCodeSubqueryShape,
			"subquery must produce exactly one column")
	}
	col, err := table.Column(0)
	if err != nil {
		return nil, err
	}
	return col.Values(), nil
}

// RunExists executes the subquery and reports whether any row came back.
func (r *subqueryRunner) RunExists(plan ir.LogicalPlan, _ storage.Record) (bool, error) {
	table, err := r.run(plan)
	if err != nil {
		return false, err
	}
	return table.RowCount() > 0, nil
}
