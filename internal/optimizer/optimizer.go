// Package optimizer rewrites logical plans into executable physical plans:
// predicate pushdown, cost-based inner-join reordering, join strategy
// selection with TopN fusion, and projection pushdown, in that order.
package optimizer

import (
	"go.uber.org/zap"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
)

// Optimizer coordinates the rewrite passes.
type Optimizer struct {
	stats  *TableStats
	logger *zap.Logger
}

// New constructs an optimizer over the given table statistics. A nil logger
// disables debug output.
func New(stats *TableStats, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{stats: stats, logger: logger}
}

// Optimize runs the full pass pipeline.
func (o *Optimizer) Optimize(plan ir.LogicalPlan) (physical.Plan, error) {
	pushed := pushDownPredicates(plan, nil)

	model := &CostModel{Stats: o.stats}
	reordered := reorderJoins(pushed, model)

	converted, err := toPhysical(reordered)
	if err != nil {
		return nil, err
	}

	width := converted.Schema().Len()
	projected, _ := pushProjection(converted, AllColumns(width))

	o.logger.Debug("plan optimized",
		zap.Int("output_columns", width))
	return projected, nil
}
