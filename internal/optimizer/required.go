package optimizer

import (
	"sort"

	"github.com/lychee-technology/yachtsql/internal/collections"
)

// RequiredColumns tracks the input column offsets an operator chain needs.
// The zero-argument constructor starts empty; All marks every column of a
// width-n schema required.
type RequiredColumns struct {
	set *collections.Set[int]
	all bool
	n   int
}

// NewRequiredColumns returns an empty requirement set.
func NewRequiredColumns() *RequiredColumns {
	return &RequiredColumns{set: collections.NewSet[int]()}
}

// AllColumns returns a requirement set covering every column of a width-n
// schema.
func AllColumns(n int) *RequiredColumns {
	return &RequiredColumns{set: collections.NewSet[int](), all: true, n: n}
}

// Add marks one column required.
func (r *RequiredColumns) Add(i int) {
	r.set.Add(i)
}

// Contains reports whether the column is required.
func (r *RequiredColumns) Contains(i int) bool {
	if r.all {
		return i < r.n
	}
	return r.set.Contains(i)
}

// IsAll reports whether every column of a width-n schema is required.
func (r *RequiredColumns) IsAll(n int) bool {
	if r.all && r.n >= n {
		return true
	}
	for i := 0; i < n; i++ {
		if !r.set.Contains(i) {
			return false
		}
	}
	return true
}

// Iter visits the required offsets in ascending order.
func (r *RequiredColumns) Iter(fn func(int)) {
	for _, i := range r.Sorted() {
		fn(i)
	}
}

// Sorted returns the required offsets ascending. An all-columns set expands
// to 0..n-1.
func (r *RequiredColumns) Sorted() []int {
	if r.all {
		out := make([]int, r.n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := r.set.ToSlice()
	sort.Ints(out)
	return out
}
