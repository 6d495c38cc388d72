package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// runBothInputs executes the two inputs of a binary operator concurrently.
// The group joins before returning, so each result is owned by the caller.
func (ex *Executor) runBothInputs(left, right physical.Plan, state *execState) (*storage.Table, *storage.Table, error) {
	var leftTable, rightTable *storage.Table
	eg := errgroup.Group{}
	eg.Go(func() error {
		var err error
		leftTable, err = ex.execute(left, state)
		return err
	})
	eg.Go(func() error {
		var err error
		rightTable, err = ex.execute(right, state)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return leftTable, rightTable, nil
}

// runAllInputs executes every input concurrently, preserving input order in
// the results.
func (ex *Executor) runAllInputs(inputs []physical.Plan, state *execState) ([]*storage.Table, error) {
	results := make([]*storage.Table, len(inputs))
	eg := errgroup.Group{}
	eg.SetLimit(ex.workers)
	for i := range inputs {
		idx := i
		eg.Go(func() error {
			table, err := ex.execute(inputs[idx], state)
			if err != nil {
				return err
			}
			results[idx] = table
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// partitionRows splits [0, n) into at most workers contiguous chunks.
func partitionRows(n, workers int) [][2]int {
	if n == 0 || workers < 1 {
		return nil
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// saturatingMul multiplies without overflowing, clamping to MaxInt.
func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	const maxInt = int(^uint(0) >> 1)
	if a > maxInt/b {
		return maxInt
	}
	return a * b
}

// mergeWorkerRows appends per-worker row buffers into the output table in
// worker order, preserving each worker's emission order. The combined order
// matches the serial sweep exactly.
func mergeWorkerRows(out *storage.Table, workerRows [][][]storage.Value) error {
	for _, rows := range workerRows {
		for _, row := range rows {
			if err := out.PushRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}
