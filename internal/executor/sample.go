package executor

import (
	"math/rand"
	"sort"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// executeSample takes a reservoir sample for ROWS and a Bernoulli sample for
// PERCENT.
func (ex *Executor) executeSample(n *physical.Sample, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	switch n.Method {
	case ir.SampleRows:
		k := int(n.Amount)
		if k >= input.RowCount() {
			return input, nil
		}
		reservoir := make([]int, 0, k)
		for row := 0; row < input.RowCount(); row++ {
			if len(reservoir) < k {
				reservoir = append(reservoir, row)
				continue
			}
			j := rand.Intn(row + 1)
			if j < k {
				reservoir[j] = row
			}
		}
		sort.Ints(reservoir)
		return input.Gather(reservoir)
	case ir.SamplePercent:
		p := n.Amount / 100.0
		indices := make([]int, 0)
		for row := 0; row < input.RowCount(); row++ {
			if rand.Float64() < p {
				indices = append(indices, row)
			}
		}
		return input.Gather(indices)
	default:
		return nil, common.NewInternalError("unknown sample method")
	}
}

// executeUnnest expands an array-typed expression per input row, optionally
// appending the element offset.
func (ex *Executor) executeUnnest(n *physical.Unnest, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	out := storage.EmptyTable(n.OutSchema.ToStorageSchema())
	for row := 0; row < input.RowCount(); row++ {
		rec := input.Record(row)
		v, err := ex.evaluator.Eval(n.Expr, rec)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			continue
		}
		if v.Kind() != storage.KindArray {
			return nil, common.NewTypeMismatchError("ARRAY", v.DataType().String())
		}
		for offset, elem := range v.AsArray() {
			values := append(append([]storage.Value{}, rec.Values...), elem)
			if n.WithOffset {
				values = append(values, storage.NewInt64(int64(offset)))
			}
			if err := out.PushRow(values); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
