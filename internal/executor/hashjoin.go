package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/lychee-technology/yachtsql/internal/collections"
	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// keyExtractor evaluates a join key vector for one side. When every key is a
// bare column reference the values are read directly by index, skipping the
// evaluator.
type keyExtractor struct {
	ex      *Executor
	exprs   []ir.Expr
	table   *storage.Table
	direct  []int
	columns []*storage.Column
}

func newKeyExtractor(ex *Executor, exprs []ir.Expr, table *storage.Table) (*keyExtractor, error) {
	ke := &keyExtractor{ex: ex, exprs: exprs, table: table}
	direct := make([]int, 0, len(exprs))
	for _, e := range exprs {
		col, ok := e.(*ir.ColumnRef)
		if !ok {
			direct = nil
			break
		}
		idx := -1
		if col.Index != nil {
			idx = *col.Index
		} else {
			schema := table.Schema()
			if resolved, ok := schema.FieldIndex(col.Table, col.Name); ok {
				idx = resolved
			}
		}
		if idx < 0 || idx >= table.ColumnCount() {
			direct = nil
			break
		}
		direct = append(direct, idx)
	}
	if direct != nil {
		ke.direct = direct
		ke.columns = make([]*storage.Column, len(direct))
		for i, idx := range direct {
			col, err := table.Column(idx)
			if err != nil {
				return nil, err
			}
			ke.columns[i] = col
		}
	}
	return ke, nil
}

// keyAt returns the key vector for a row and whether every component is
// non-null. A null component means the row cannot match an equijoin.
func (ke *keyExtractor) keyAt(row int) ([]storage.Value, bool, error) {
	values := make([]storage.Value, len(ke.exprs))
	if ke.direct != nil {
		for i, col := range ke.columns {
			values[i] = col.GetValue(row)
			if values[i].IsNull() {
				return values, false, nil
			}
		}
		return values, true, nil
	}
	rec := ke.table.Record(row)
	for i, e := range ke.exprs {
		v, err := ke.ex.evaluator.Eval(e, rec)
		if err != nil {
			return nil, false, err
		}
		if v.IsNull() {
			return values, false, nil
		}
		values[i] = v
	}
	return values, true, nil
}

func (ex *Executor) executeHashJoin(n *physical.HashJoin, state *execState) (*storage.Table, error) {
	left, right, err := ex.runBothInputs(n.Left, n.Right, state)
	if err != nil {
		return nil, err
	}
	if len(n.LeftKeys) == 0 || len(n.LeftKeys) != len(n.RightKeys) {
		return nil, common.NewInternalError("hash join requires matching key lists")
	}

	buildIsLeft := chooseBuildSide(n.Type, left.RowCount(), right.RowCount())

	buildTable, probeTable := right, left
	buildKeys, probeKeys := n.RightKeys, n.LeftKeys
	if buildIsLeft {
		buildTable, probeTable = left, right
		buildKeys, probeKeys = n.LeftKeys, n.RightKeys
	}

	buildExtractor, err := newKeyExtractor(ex, buildKeys, buildTable)
	if err != nil {
		return nil, err
	}
	probeExtractor, err := newKeyExtractor(ex, probeKeys, probeTable)
	if err != nil {
		return nil, err
	}

	// Build phase: hash every non-null key vector; collisions chain in the
	// per-key row list.
	buildMap := make(map[string][]int, buildTable.RowCount())
	for row := 0; row < buildTable.RowCount(); row++ {
		key, ok, err := buildExtractor.keyAt(row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		encoded := storage.EncodeKey(key)
		buildMap[encoded] = append(buildMap[encoded], row)
	}

	join := &hashJoinRun{
		ex:         ex,
		node:       n,
		left:       left,
		right:      right,
		build:      buildTable,
		probe:      probeTable,
		buildLeft:  buildIsLeft,
		buildMap:   buildMap,
		probeKeyer: probeExtractor,
	}
	return join.run()
}

// chooseBuildSide picks the materialized side. Inner joins take the smaller
// table; outer joins keep the preserving side streaming past the build.
func chooseBuildSide(joinType ir.JoinType, leftN, rightN int) bool {
	switch joinType {
	case ir.JoinLeft, ir.JoinFull, ir.JoinLeftSemi, ir.JoinLeftAnti:
		return false
	case ir.JoinRight, ir.JoinRightSemi, ir.JoinRightAnti:
		return true
	default:
		return leftN <= rightN
	}
}

type hashJoinRun struct {
	ex         *Executor
	node       *physical.HashJoin
	left       *storage.Table
	right      *storage.Table
	build      *storage.Table
	probe      *storage.Table
	buildLeft  bool
	buildMap   map[string][]int
	probeKeyer *keyExtractor
}

func (j *hashJoinRun) run() (*storage.Table, error) {
	out := storage.EmptyTable(j.node.OutSchema.ToStorageSchema())
	matchedBuild := collections.NewSet[int]()

	probeN := j.probe.RowCount()
	parallel := probeN >= j.ex.parallelThreshold && j.node.Type != ir.JoinFull
	if parallel {
		if err := j.probeParallel(out); err != nil {
			return nil, err
		}
	} else {
		for row := 0; row < probeN; row++ {
			rows, err := j.probeRow(row, matchedBuild)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				if err := out.PushRow(r); err != nil {
					return nil, err
				}
			}
		}
	}

	// Full join fixup: every unmatched build-side (right) row comes back
	// padded with left nulls.
	if j.node.Type == ir.JoinFull {
		leftWidth := j.left.ColumnCount()
		for row := 0; row < j.build.RowCount(); row++ {
			if matchedBuild.Contains(row) {
				continue
			}
			values := make([]storage.Value, 0, leftWidth+j.build.ColumnCount())
			for i := 0; i < leftWidth; i++ {
				values = append(values, storage.NewNull())
			}
			values = append(values, j.build.Record(row).Values...)
			if err := out.PushRow(values); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// probeRow emits the output rows for one probe row. matchedBuild tracks
// build rows hit during a full join.
func (j *hashJoinRun) probeRow(row int, matchedBuild *collections.Set[int]) ([][]storage.Value, error) {
	key, keyOK, err := j.probeKeyer.keyAt(row)
	if err != nil {
		return nil, err
	}
	var matches []int
	if keyOK {
		matches = j.buildMap[storage.EncodeKey(key)]
	}

	switch j.node.Type {
	case ir.JoinLeftSemi, ir.JoinRightSemi:
		if len(matches) > 0 {
			return [][]storage.Value{j.probe.Record(row).Values}, nil
		}
		return nil, nil
	case ir.JoinLeftAnti, ir.JoinRightAnti:
		// Null keys cannot match, so they emit in ANTI.
		if len(matches) == 0 {
			return [][]storage.Value{j.probe.Record(row).Values}, nil
		}
		return nil, nil
	}

	if len(matches) == 0 {
		switch j.node.Type {
		case ir.JoinLeft, ir.JoinFull:
			return [][]storage.Value{j.padProbeRow(row)}, nil
		case ir.JoinRight:
			return [][]storage.Value{j.padProbeRow(row)}, nil
		default:
			return nil, nil
		}
	}

	out := make([][]storage.Value, 0, len(matches))
	probeValues := j.probe.Record(row).Values
	for _, buildRow := range matches {
		if j.node.Type == ir.JoinFull {
			matchedBuild.Add(buildRow)
		}
		out = append(out, j.combineRow(probeValues, buildRow))
	}
	return out, nil
}

// combineRow assembles the output row in canonical (left, right) column
// order regardless of which side was built.
func (j *hashJoinRun) combineRow(probeValues []storage.Value, buildRow int) []storage.Value {
	buildValues := j.build.Record(buildRow).Values
	if j.buildLeft {
		return append(append([]storage.Value{}, buildValues...), probeValues...)
	}
	return append(append([]storage.Value{}, probeValues...), buildValues...)
}

// padProbeRow pads an unmatched probe row with nulls for the build side, in
// canonical column order.
func (j *hashJoinRun) padProbeRow(row int) []storage.Value {
	probeValues := j.probe.Record(row).Values
	padding := make([]storage.Value, j.build.ColumnCount())
	for i := range padding {
		padding[i] = storage.NewNull()
	}
	if j.buildLeft {
		return append(padding, probeValues...)
	}
	return append(append([]storage.Value{}, probeValues...), padding...)
}

// probeParallel fans the probe side out across workers. Each worker fills a
// local row buffer; the serial merge by worker id reproduces the serial
// probe order exactly. A probe row whose key evaluation fails is treated as
// having no match; the serial path returns the error instead.
func (j *hashJoinRun) probeParallel(out *storage.Table) error {
	parts := partitionRows(j.probe.RowCount(), j.ex.workers)
	workerRows := make([][][]storage.Value, len(parts))

	eg := errgroup.Group{}
	eg.SetLimit(j.ex.workers)
	for i, part := range parts {
		worker, span := i, part
		eg.Go(func() error {
			local := make([][]storage.Value, 0, span[1]-span[0])
			for row := span[0]; row < span[1]; row++ {
				rows, err := j.probeRow(row, nil)
				if err != nil {
					switch j.node.Type {
					case ir.JoinLeftAnti, ir.JoinRightAnti:
						rows = [][]storage.Value{j.probe.Record(row).Values}
					case ir.JoinLeft, ir.JoinRight:
						rows = [][]storage.Value{j.padProbeRow(row)}
					default:
						rows = nil
					}
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
