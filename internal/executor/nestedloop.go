package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/lychee-technology/yachtsql/internal/collections"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// nestedLoopRun sweeps every (left, right) pair, evaluating the condition on
// the concatenated record.
type nestedLoopRun struct {
	ex         *Executor
	joinType   ir.JoinType
	condition  ir.Expr
	left       *storage.Table
	right      *storage.Table
	outSchema  storage.Schema
	evalSchema *storage.Schema
}

func (ex *Executor) executeNestedLoopJoin(n *physical.NestedLoopJoin, state *execState) (*storage.Table, error) {
	left, right, err := ex.runBothInputs(n.Left, n.Right, state)
	if err != nil {
		return nil, err
	}
	run := &nestedLoopRun{
		ex:        ex,
		joinType:  n.Type,
		condition: n.Condition,
		left:      left,
		right:     right,
		outSchema: n.OutSchema.ToStorageSchema(),
	}
	return run.run()
}

func (ex *Executor) executeCrossJoin(n *physical.CrossJoin, state *execState) (*storage.Table, error) {
	left, right, err := ex.runBothInputs(n.Left, n.Right, state)
	if err != nil {
		return nil, err
	}
	run := &nestedLoopRun{
		ex:        ex,
		joinType:  ir.JoinCross,
		left:      left,
		right:     right,
		outSchema: n.OutSchema.ToStorageSchema(),
	}
	return run.run()
}

// outerIsLeft reports whether the outer sweep drives the left side.
func (r *nestedLoopRun) outerIsLeft() bool {
	switch r.joinType {
	case ir.JoinRight, ir.JoinRightSemi, ir.JoinRightAnti:
		return false
	default:
		return true
	}
}

func (r *nestedLoopRun) run() (*storage.Table, error) {
	out := storage.EmptyTable(r.outSchema)
	// Materialize the eval schema before any worker can race on it.
	r.outSchemaForEval()
	work := saturatingMul(r.left.RowCount(), r.right.RowCount())
	parallel := work >= r.ex.parallelThreshold && r.joinType != ir.JoinFull

	if parallel {
		if err := r.sweepParallel(out); err != nil {
			return nil, err
		}
		return out, nil
	}

	matchedInner := collections.NewSet[int]()
	outerN := r.left.RowCount()
	if !r.outerIsLeft() {
		outerN = r.right.RowCount()
	}
	for outer := 0; outer < outerN; outer++ {
		rows, err := r.sweepOuterRow(outer, matchedInner, false)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := out.PushRow(row); err != nil {
				return nil, err
			}
		}
	}

	// Full join fixup: inner (right) rows never matched come back with
	// left-null padding.
	if r.joinType == ir.JoinFull {
		for row := 0; row < r.right.RowCount(); row++ {
			if matchedInner.Contains(row) {
				continue
			}
			values := make([]storage.Value, 0, r.left.ColumnCount()+r.right.ColumnCount())
			for i := 0; i < r.left.ColumnCount(); i++ {
				values = append(values, storage.NewNull())
			}
			values = append(values, r.right.Record(row).Values...)
			if err := out.PushRow(values); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// sweepOuterRow emits the output rows for one outer row. In lenient mode
// (parallel path) condition errors count as non-matches instead of bubbling.
func (r *nestedLoopRun) sweepOuterRow(outer int, matchedInner *collections.Set[int], lenient bool) ([][]storage.Value, error) {
	outerIsLeft := r.outerIsLeft()
	innerTable := r.right
	outerTable := r.left
	if !outerIsLeft {
		innerTable, outerTable = r.left, r.right
	}
	outerValues := outerTable.Record(outer).Values

	var out [][]storage.Value
	matched := false
	for inner := 0; inner < innerTable.RowCount(); inner++ {
		var leftRow, rightRow []storage.Value
		if outerIsLeft {
			leftRow, rightRow = outerValues, innerTable.Record(inner).Values
		} else {
			leftRow, rightRow = innerTable.Record(inner).Values, outerValues
		}
		keep := true
		if r.condition != nil {
			combined := append(append([]storage.Value{}, leftRow...), rightRow...)
			schema := r.outSchemaForEval()
			ok, err := r.ex.evalPredicate(r.condition, storage.NewRecord(schema, combined))
			if err != nil {
				if !lenient {
					return nil, err
				}
				ok = false
			}
			keep = ok
		}
		if !keep {
			continue
		}
		matched = true
		if matchedInner != nil && r.joinType == ir.JoinFull {
			matchedInner.Add(inner)
		}
		switch r.joinType {
		case ir.JoinLeftSemi, ir.JoinRightSemi:
			return [][]storage.Value{outerValues}, nil
		case ir.JoinLeftAnti, ir.JoinRightAnti:
			return nil, nil
		default:
			out = append(out, append(append([]storage.Value{}, leftRow...), rightRow...))
		}
	}

	if !matched {
		switch r.joinType {
		case ir.JoinLeftAnti, ir.JoinRightAnti:
			return [][]storage.Value{outerValues}, nil
		case ir.JoinLeft, ir.JoinRight, ir.JoinFull:
			padding := make([]storage.Value, innerTable.ColumnCount())
			for i := range padding {
				padding[i] = storage.NewNull()
			}
			if outerIsLeft {
				return [][]storage.Value{append(append([]storage.Value{}, outerValues...), padding...)}, nil
			}
			return [][]storage.Value{append(padding, outerValues...)}, nil
		}
	}
	return out, nil
}

// outSchemaForEval returns the concatenated (left, right) schema the join
// condition is resolved against.
func (r *nestedLoopRun) outSchemaForEval() *storage.Schema {
	if r.evalSchema == nil {
		leftSchema := r.left.Schema()
		rightSchema := r.right.Schema()
		combined := leftSchema.Concat(&rightSchema)
		r.evalSchema = &combined
	}
	return r.evalSchema
}

// sweepParallel partitions the outer driver across workers. Worker-id-order
// merge preserves the serial outer iteration order exactly; full joins never
// take this path.
func (r *nestedLoopRun) sweepParallel(out *storage.Table) error {
	outerN := r.left.RowCount()
	if !r.outerIsLeft() {
		outerN = r.right.RowCount()
	}
	parts := partitionRows(outerN, r.ex.workers)
	workerRows := make([][][]storage.Value, len(parts))

	eg := errgroup.Group{}
	eg.SetLimit(r.ex.workers)
	for i, part := range parts {
		worker, span := i, part
		eg.Go(func() error {
			local := make([][]storage.Value, 0, span[1]-span[0])
			for outer := span[0]; outer < span[1]; outer++ {
				rows, err := r.sweepOuterRow(outer, nil, true)
				if err != nil {
					continue
				}
				local = append(local, rows...)
			}
			workerRows[worker] = local
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return mergeWorkerRows(out, workerRows)
}
