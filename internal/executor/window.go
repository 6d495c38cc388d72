package executor

import (
	"sort"
	"strings"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func (ex *Executor) executeWindow(n *physical.Window, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	cols := make([]*storage.Column, 0, input.ColumnCount()+len(n.Exprs))
	cols = append(cols, input.Columns()...)
	for _, expr := range n.Exprs {
		values, err := ex.computeWindowColumn(expr, input)
		if err != nil {
			return nil, err
		}
		cols = append(cols, storage.FromValues(values))
	}
	return storage.NewTable(n.OutSchema.ToStorageSchema(), cols)
}

// computeWindowColumn evaluates one window expression for every input row.
func (ex *Executor) computeWindowColumn(expr ir.Expr, input *storage.Table) ([]storage.Value, error) {
	if alias, ok := expr.(*ir.Alias); ok {
		return ex.computeWindowColumn(alias.Operand, input)
	}
	w, ok := expr.(*ir.WindowFunc)
	if !ok {
		return nil, common.NewInternalError("window list holds a non-window expression")
	}

	// Partition rows by key, keeping first-seen partition order and input
	// order inside each partition.
	partitions := make(map[string][]int)
	order := make([]string, 0)
	for row := 0; row < input.RowCount(); row++ {
		rec := input.Record(row)
		keyValues := make([]storage.Value, len(w.PartitionBy))
		for i, p := range w.PartitionBy {
			v, err := ex.evaluator.Eval(p, rec)
			if err != nil {
				return nil, err
			}
			keyValues[i] = v
		}
		key := storage.EncodeKey(keyValues)
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], row)
	}

	result := make([]storage.Value, input.RowCount())
	for _, key := range order {
		rows := partitions[key]
		if err := ex.computePartition(w, input, rows, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (ex *Executor) computePartition(w *ir.WindowFunc, input *storage.Table, rows []int, result []storage.Value) error {
	// Stable sort within the partition by the ORDER BY tuple.
	sorted := append([]int{}, rows...)
	var orderTuples map[int][]storage.Value
	if len(w.OrderBy) > 0 {
		orderTuples = make(map[int][]storage.Value, len(rows))
		for _, row := range rows {
			rec := input.Record(row)
			tuple := make([]storage.Value, len(w.OrderBy))
			for i, k := range w.OrderBy {
				v, err := ex.evaluator.Eval(k.Expr, rec)
				if err != nil {
					return err
				}
				tuple[i] = v
			}
			orderTuples[row] = tuple
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareKeyTuples(orderTuples[sorted[i]], orderTuples[sorted[j]], w.OrderBy) < 0
		})
	}

	peersWith := func(i, j int) bool {
		if orderTuples == nil {
			return true
		}
		return compareKeyTuples(orderTuples[sorted[i]], orderTuples[sorted[j]], w.OrderBy) == 0
	}

	name := strings.ToUpper(w.Func)
	switch name {
	case "ROW_NUMBER":
		for pos, row := range sorted {
			result[row] = storage.NewInt64(int64(pos + 1))
		}
		return nil
	case "RANK":
		rank := int64(1)
		for pos, row := range sorted {
			if pos > 0 && !peersWith(pos, pos-1) {
				rank = int64(pos + 1)
			}
			result[row] = storage.NewInt64(rank)
		}
		return nil
	case "DENSE_RANK":
		rank := int64(1)
		for pos, row := range sorted {
			if pos > 0 && !peersWith(pos, pos-1) {
				rank++
			}
			result[row] = storage.NewInt64(rank)
		}
		return nil
	case "PERCENT_RANK":
		n := len(sorted)
		rank := int64(1)
		for pos, row := range sorted {
			if pos > 0 && !peersWith(pos, pos-1) {
				rank = int64(pos + 1)
			}
			if n <= 1 {
				result[row] = storage.NewFloat64(0)
			} else {
				result[row] = storage.NewFloat64(float64(rank-1) / float64(n-1))
			}
		}
		return nil
	case "NTILE":
		return ex.computeNtile(w, input, sorted, result)
	case "LAG", "LEAD":
		return ex.computeLagLead(w, input, sorted, result, name == "LEAD")
	}

	// Value and aggregate functions operate over the resolved frame.
	for pos, row := range sorted {
		start, end, err := ex.frameBounds(w, sorted, pos, orderTuples, peersWith)
		if err != nil {
			return err
		}
		v, err := ex.computeFrameValue(name, w, input, sorted[start:end], pos-start)
		if err != nil {
			return err
		}
		result[row] = v
	}
	return nil
}

func (ex *Executor) computeNtile(w *ir.WindowFunc, input *storage.Table, sorted []int, result []storage.Value) error {
	if len(w.Args) != 1 {
		return common.NewArityError("NTILE", 1, len(w.Args))
	}
	v, err := ex.evaluator.Eval(w.Args[0], input.Record(sorted[0]))
	if err != nil {
		return err
	}
	buckets := int(v.AsInt64())
	if buckets <= 0 {
		return common.NewInternalError("NTILE bucket count must be positive")
	}
	n := len(sorted)
	base := n / buckets
	extra := n % buckets
	pos := 0
	for bucket := 1; bucket <= buckets && pos < n; bucket++ {
		size := base
		if bucket <= extra {
			size++
		}
		for i := 0; i < size && pos < n; i++ {
			result[sorted[pos]] = storage.NewInt64(int64(bucket))
			pos++
		}
	}
	return nil
}

func (ex *Executor) computeLagLead(w *ir.WindowFunc, input *storage.Table, sorted []int, result []storage.Value, lead bool) error {
	if len(w.Args) < 1 || len(w.Args) > 3 {
		return common.NewArityError("LAG", 1, len(w.Args))
	}
	offset := int64(1)
	if len(w.Args) >= 2 {
		v, err := ex.evaluator.Eval(w.Args[1], input.Record(sorted[0]))
		if err != nil {
			return err
		}
		offset = v.AsInt64()
	}
	if lead {
		offset = -offset
	}
	for pos, row := range sorted {
		target := pos - int(offset)
		if target >= 0 && target < len(sorted) {
			v, err := ex.evaluator.Eval(w.Args[0], input.Record(sorted[target]))
			if err != nil {
				return err
			}
			result[row] = v
			continue
		}
		if len(w.Args) == 3 {
			v, err := ex.evaluator.Eval(w.Args[2], input.Record(row))
			if err != nil {
				return err
			}
			result[row] = v
			continue
		}
		result[row] = storage.NewNull()
	}
	return nil
}

// frameBounds resolves the window frame to a [start, end) span over the
// sorted partition. The default frame is RANGE UNBOUNDED PRECEDING TO
// CURRENT ROW when an ORDER BY is present, and the whole partition
// otherwise.
func (ex *Executor) frameBounds(w *ir.WindowFunc, sorted []int, pos int, orderTuples map[int][]storage.Value, peersWith func(i, j int) bool) (int, int, error) {
	n := len(sorted)
	frame := w.Frame
	if frame == nil {
		if len(w.OrderBy) == 0 {
			return 0, n, nil
		}
		frame = &ir.WindowFrame{
			Unit:  ir.FrameRange,
			Start: ir.FrameBound{Kind: ir.BoundUnboundedPreceding},
			End:   ir.FrameBound{Kind: ir.BoundCurrentRow},
		}
	}

	resolve := func(b ir.FrameBound, isStart bool) (int, error) {
		switch b.Kind {
		case ir.BoundUnboundedPreceding:
			return 0, nil
		case ir.BoundUnboundedFollowing:
			return n, nil
		case ir.BoundCurrentRow:
			if frame.Unit == ir.FrameRows {
				if isStart {
					return pos, nil
				}
				return pos + 1, nil
			}
			// RANGE current row spans the peer group.
			if isStart {
				start := pos
				for start > 0 && peersWith(start-1, pos) {
					start--
				}
				return start, nil
			}
			end := pos + 1
			for end < n && peersWith(end, pos) {
				end++
			}
			return end, nil
		case ir.BoundPreceding:
			if frame.Unit == ir.FrameRows {
				target := pos - int(b.Offset)
				if !isStart {
					target++
				}
				return clampBound(target, n), nil
			}
			return ex.rangeOffsetBound(sorted, pos, orderTuples, w, -b.Offset, isStart)
		case ir.BoundFollowing:
			if frame.Unit == ir.FrameRows {
				target := pos + int(b.Offset)
				if !isStart {
					target++
				}
				return clampBound(target, n), nil
			}
			return ex.rangeOffsetBound(sorted, pos, orderTuples, w, b.Offset, isStart)
		}
		return 0, common.NewInternalError("unhandled frame bound")
	}

	start, err := resolve(frame.Start, true)
	if err != nil {
		return 0, 0, err
	}
	end, err := resolve(frame.End, false)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		end = start
	}
	return start, end, nil
}

func clampBound(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// rangeOffsetBound resolves a numeric RANGE offset bound over a single
// numeric order key.
func (ex *Executor) rangeOffsetBound(sorted []int, pos int, orderTuples map[int][]storage.Value, w *ir.WindowFunc, delta int64, isStart bool) (int, error) {
	if len(w.OrderBy) != 1 || orderTuples == nil {
		return 0, common.NewInternalError("RANGE offset frames require a single numeric ORDER BY key")
	}
	cur := orderTuples[sorted[pos]][0]
	if cur.IsNull() || (cur.Kind() != storage.KindInt64 && cur.Kind() != storage.KindFloat64) {
		return 0, common.NewInternalError("RANGE offset frames require a single numeric ORDER BY key")
	}
	curF := float64(cur.AsInt64())
	if cur.Kind() == storage.KindFloat64 {
		curF = cur.AsFloat64()
	}
	sign := 1.0
	if w.OrderBy[0].Desc {
		sign = -1.0
	}
	bound := curF + sign*float64(delta)
	inRange := func(i int) bool {
		v := orderTuples[sorted[i]][0]
		if v.IsNull() {
			return false
		}
		f := float64(v.AsInt64())
		if v.Kind() == storage.KindFloat64 {
			f = v.AsFloat64()
		}
		if delta < 0 {
			if sign > 0 {
				return f >= bound
			}
			return f <= bound
		}
		if sign > 0 {
			return f <= bound
		}
		return f >= bound
	}
	if isStart {
		start := pos
		for start > 0 && inRange(start-1) {
			start--
		}
		return start, nil
	}
	end := pos + 1
	for end < len(sorted) && inRange(end) {
		end++
	}
	return end, nil
}

// computeFrameValue evaluates a value or aggregate window function over the
// frame rows. posInFrame is the current row's offset within the frame.
func (ex *Executor) computeFrameValue(name string, w *ir.WindowFunc, input *storage.Table, frameRows []int, posInFrame int) (storage.Value, error) {
	evalArg := func(row int) (storage.Value, error) {
		if len(w.Args) == 0 {
			return storage.NewNull(), common.NewArityError(name, 1, 0)
		}
		return ex.evaluator.Eval(w.Args[0], input.Record(row))
	}

	switch name {
	case "FIRST_VALUE", "LAST_VALUE", "NTH_VALUE":
		indices := frameRows
		if name == "LAST_VALUE" {
			indices = reverseRows(frameRows)
		}
		nth := 1
		if name == "NTH_VALUE" {
			if len(w.Args) != 2 {
				return storage.NewNull(), common.NewArityError("NTH_VALUE", 2, len(w.Args))
			}
			v, err := ex.evaluator.Eval(w.Args[1], input.Record(frameRows[0]))
			if err != nil {
				return storage.NewNull(), err
			}
			nth = int(v.AsInt64())
			if nth < 1 {
				return storage.NewNull(), common.NewOutOfBoundsError(nth, len(frameRows))
			}
		}
		seen := 0
		for _, row := range indices {
			v, err := evalArg(row)
			if err != nil {
				return storage.NewNull(), err
			}
			if w.IgnoreNulls && v.IsNull() {
				continue
			}
			seen++
			if seen == nth {
				return v, nil
			}
		}
		return storage.NewNull(), nil
	}

	// Aggregate-over-window: fold the frame's argument tuples with the
	// shared aggregate kernels.
	tuples := make([][]storage.Value, 0, len(frameRows))
	for _, row := range frameRows {
		rec := input.Record(row)
		tuple := make([]storage.Value, len(w.Args))
		for i, a := range w.Args {
			v, err := ex.evaluator.Eval(a, rec)
			if err != nil {
				return storage.NewNull(), err
			}
			tuple[i] = v
		}
		tuples = append(tuples, tuple)
	}
	agg := &ir.Aggregate{Func: name, Args: w.Args, IgnoreNulls: w.IgnoreNulls}
	return foldAggregate(name, agg, tuples)
}

func reverseRows(rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
