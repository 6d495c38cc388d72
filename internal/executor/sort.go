package executor

import (
	"container/heap"
	"sort"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// sortKeyValues evaluates the sort key tuple for every row.
func (ex *Executor) sortKeyValues(keys []ir.SortKey, input *storage.Table) ([][]storage.Value, error) {
	out := make([][]storage.Value, input.RowCount())
	for row := 0; row < input.RowCount(); row++ {
		rec := input.Record(row)
		tuple := make([]storage.Value, len(keys))
		for i, k := range keys {
			v, err := ex.evaluator.Eval(k.Expr, rec)
			if err != nil {
				return nil, err
			}
			tuple[i] = v
		}
		out[row] = tuple
	}
	return out, nil
}

// compareKeyTuples orders two key tuples under the sort spec, honoring
// direction and null placement.
func compareKeyTuples(a, b []storage.Value, keys []ir.SortKey) int {
	for i, k := range keys {
		av, bv := a[i], b[i]
		if av.IsNull() || bv.IsNull() {
			switch {
			case av.IsNull() && bv.IsNull():
				continue
			case av.IsNull():
				if k.NullsOrderFirst() {
					return -1
				}
				return 1
			default:
				if k.NullsOrderFirst() {
					return 1
				}
				return -1
			}
		}
		cmp, ok := av.Compare(bv)
		if !ok {
			continue
		}
		if k.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func (ex *Executor) executeSort(n *physical.Sort, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	tuples, err := ex.sortKeyValues(n.Keys, input)
	if err != nil {
		return nil, err
	}
	indices := make([]int, input.RowCount())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return compareKeyTuples(tuples[indices[i]], tuples[indices[j]], n.Keys) < 0
	})
	return input.Gather(indices)
}

// topNHeap is a bounded max-heap over sort tuples: the root is the worst
// kept row, evicted when a better one arrives.
type topNHeap struct {
	indices []int
	tuples  [][]storage.Value
	keys    []ir.SortKey
}

func (h *topNHeap) Len() int { return len(h.indices) }

func (h *topNHeap) Less(i, j int) bool {
	cmp := compareKeyTuples(h.tuples[h.indices[i]], h.tuples[h.indices[j]], h.keys)
	if cmp != 0 {
		return cmp > 0
	}
	// Later input rows evict first so ties keep the earliest rows.
	return h.indices[i] > h.indices[j]
}

func (h *topNHeap) Swap(i, j int) {
	h.indices[i], h.indices[j] = h.indices[j], h.indices[i]
}

func (h *topNHeap) Push(x any) {
	h.indices = append(h.indices, x.(int))
}

func (h *topNHeap) Pop() any {
	last := h.indices[len(h.indices)-1]
	h.indices = h.indices[:len(h.indices)-1]
	return last
}

// executeTopN keeps the k best rows under the sort tuple in O(n log k).
func (ex *Executor) executeTopN(n *physical.TopN, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}
	tuples, err := ex.sortKeyValues(n.Keys, input)
	if err != nil {
		return nil, err
	}
	k := int(n.Limit)
	h := &topNHeap{tuples: tuples, keys: n.Keys}
	heap.Init(h)
	for row := 0; row < input.RowCount(); row++ {
		if h.Len() < k {
			heap.Push(h, row)
			continue
		}
		if k == 0 {
			break
		}
		worst := h.indices[0]
		cmp := compareKeyTuples(tuples[row], tuples[worst], n.Keys)
		if cmp < 0 || (cmp == 0 && row < worst) {
			heap.Pop(h)
			heap.Push(h, row)
		}
	}
	kept := append([]int{}, h.indices...)
	sort.Slice(kept, func(i, j int) bool {
		cmp := compareKeyTuples(tuples[kept[i]], tuples[kept[j]], n.Keys)
		if cmp != 0 {
			return cmp < 0
		}
		return kept[i] < kept[j]
	})
	return input.Gather(kept)
}
