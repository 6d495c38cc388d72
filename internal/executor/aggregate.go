package executor

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// groupState is one hash-aggregate bucket: the group key values and the
// member row indices in input order.
type groupState struct {
	keyValues []storage.Value
	rows      []int
}

func (ex *Executor) executeAggregate(n *physical.HashAggregate, state *execState) (*storage.Table, error) {
	input, err := ex.execute(n.Input, state)
	if err != nil {
		return nil, err
	}

	groupingSets := n.GroupingSets
	if groupingSets == nil {
		all := make([]int, len(n.GroupBy))
		for i := range all {
			all[i] = i
		}
		groupingSets = [][]int{all}
	}

	out := storage.EmptyTable(n.OutSchema.ToStorageSchema())
	for _, set := range groupingSets {
		included := make(map[int]bool, len(set))
		for _, idx := range set {
			included[idx] = true
		}
		if err := ex.aggregateOneGrouping(n, input, included, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// aggregateOneGrouping hashes rows into groups for one grouping set and
// appends one output row per group. Excluded group-by columns materialize as
// NULL placeholders. Null keys form their own group.
func (ex *Executor) aggregateOneGrouping(n *physical.HashAggregate, input *storage.Table, included map[int]bool, out *storage.Table) error {
	groups := make(map[string]*groupState)
	order := make([]string, 0)

	for row := 0; row < input.RowCount(); row++ {
		rec := input.Record(row)
		keyValues := make([]storage.Value, len(n.GroupBy))
		for i, expr := range n.GroupBy {
			if !included[i] {
				keyValues[i] = storage.NewNull()
				continue
			}
			v, err := ex.evaluator.Eval(expr, rec)
			if err != nil {
				return err
			}
			keyValues[i] = v
		}
		key := storage.EncodeKey(keyValues)
		g, ok := groups[key]
		if !ok {
			g = &groupState{keyValues: keyValues}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	// A global aggregate over an empty input still emits one row.
	if len(n.GroupBy) == 0 && len(order) == 0 {
		groups[""] = &groupState{}
		order = append(order, "")
	}

	for _, key := range order {
		g := groups[key]
		values := append([]storage.Value{}, g.keyValues...)
		for _, aggExpr := range n.Aggregates {
			v, err := ex.computeAggregate(aggExpr, input, g.rows, included, n.GroupBy)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		if err := out.PushRow(values); err != nil {
			return err
		}
	}
	return nil
}

// computeAggregate evaluates one aggregate expression over a group's rows.
func (ex *Executor) computeAggregate(expr ir.Expr, input *storage.Table, rows []int, included map[int]bool, groupBy []ir.Expr) (storage.Value, error) {
	if alias, ok := expr.(*ir.Alias); ok {
		return ex.computeAggregate(alias.Operand, input, rows, included, groupBy)
	}
	agg, ok := expr.(*ir.Aggregate)
	if !ok {
		return storage.NewNull(), common.NewInternalError("aggregate list holds a non-aggregate expression")
	}

	name := strings.ToUpper(agg.Func)
	if name == "GROUPING" || name == "GROUPING_ID" {
		return groupingIndicator(name, agg.Args, included, groupBy)
	}

	tuples, err := ex.collectAggregateInput(agg, input, rows)
	if err != nil {
		return storage.NewNull(), err
	}
	return foldAggregate(name, agg, tuples)
}

// collectAggregateInput materializes the argument tuples for an aggregate,
// honoring FILTER, IGNORE NULLS, ORDER BY, DISTINCT and LIMIT in that order.
func (ex *Executor) collectAggregateInput(agg *ir.Aggregate, input *storage.Table, rows []int) ([][]storage.Value, error) {
	type entry struct {
		tuple   []storage.Value
		sortKey []storage.Value
	}
	entries := make([]entry, 0, len(rows))

	for _, row := range rows {
		rec := input.Record(row)
		if agg.Filter != nil {
			keep, err := ex.evalPredicate(agg.Filter, rec)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		tuple := make([]storage.Value, len(agg.Args))
		for i, arg := range agg.Args {
			v, err := ex.evaluator.Eval(arg, rec)
			if err != nil {
				return nil, err
			}
			tuple[i] = v
		}
		if agg.IgnoreNulls && len(tuple) > 0 && tuple[0].IsNull() {
			continue
		}
		var sortKey []storage.Value
		for _, k := range agg.OrderBy {
			v, err := ex.evaluator.Eval(k.Expr, rec)
			if err != nil {
				return nil, err
			}
			sortKey = append(sortKey, v)
		}
		entries = append(entries, entry{tuple: tuple, sortKey: sortKey})
	}

	if len(agg.OrderBy) > 0 {
		sort.SliceStable(entries, func(i, j int) bool {
			return compareKeyTuples(entries[i].sortKey, entries[j].sortKey, agg.OrderBy) < 0
		})
	}

	tuples := make([][]storage.Value, 0, len(entries))
	if agg.Distinct {
		seen := make(map[string]struct{})
		for _, e := range entries {
			key := storage.EncodeKey(e.tuple)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tuples = append(tuples, e.tuple)
		}
	} else {
		for _, e := range entries {
			tuples = append(tuples, e.tuple)
		}
	}

	if agg.Limit != nil && int64(len(tuples)) > *agg.Limit {
		tuples = tuples[:*agg.Limit]
	}
	return tuples, nil
}

// groupingIndicator computes GROUPING / GROUPING_ID over the current
// grouping set: 1 marks a group-by column collapsed to its placeholder.
func groupingIndicator(name string, args []ir.Expr, included map[int]bool, groupBy []ir.Expr) (storage.Value, error) {
	positions := make([]int, 0, len(args))
	for _, arg := range args {
		col, ok := arg.(*ir.ColumnRef)
		if !ok || col.Index == nil {
			return storage.NewNull(), common.NewTypeMismatchError("column reference", "expression")
		}
		found := -1
		for i, g := range groupBy {
			if gcol, ok := g.(*ir.ColumnRef); ok && gcol.Index != nil && *gcol.Index == *col.Index {
				found = i
				break
			}
		}
		if found < 0 {
			return storage.NewNull(), common.NewUnresolvedColumnError(col.Name)
		}
		positions = append(positions, found)
	}
	if name == "GROUPING" {
		if len(positions) != 1 {
			return storage.NewNull(), common.NewArityError("GROUPING", 1, len(positions))
		}
		if included[positions[0]] {
			return storage.NewInt64(0), nil
		}
		return storage.NewInt64(1), nil
	}
	var id int64
	for _, pos := range positions {
		id <<= 1
		if !included[pos] {
			id |= 1
		}
	}
	return storage.NewInt64(id), nil
}

// foldAggregate reduces the collected tuples for one aggregate function.
func foldAggregate(name string, agg *ir.Aggregate, tuples [][]storage.Value) (storage.Value, error) {
	switch name {
	case "COUNT":
		if len(agg.Args) == 0 {
			return storage.NewInt64(int64(len(tuples))), nil
		}
		count := int64(0)
		for _, t := range tuples {
			if !t[0].IsNull() {
				count++
			}
		}
		return storage.NewInt64(count), nil
	case "COUNTIF", "COUNT_IF":
		count := int64(0)
		for _, t := range tuples {
			if isTrue(t[0]) {
				count++
			}
		}
		return storage.NewInt64(count), nil
	case "SUM":
		return foldSum(firstArgs(tuples))
	case "SUMIF", "SUM_IF":
		return foldSum(conditionalArgs(tuples))
	case "AVG":
		return foldAvg(firstArgs(tuples))
	case "AVGIF", "AVG_IF":
		return foldAvg(conditionalArgs(tuples))
	case "MIN":
		return foldExtremum(firstArgs(tuples), -1)
	case "MAX":
		return foldExtremum(firstArgs(tuples), 1)
	case "LOGICAL_AND":
		return foldLogical(firstArgs(tuples), true)
	case "LOGICAL_OR":
		return foldLogical(firstArgs(tuples), false)
	case "BIT_AND":
		return foldBits(firstArgs(tuples), func(a, b int64) int64 { return a & b })
	case "BIT_OR":
		return foldBits(firstArgs(tuples), func(a, b int64) int64 { return a | b })
	case "BIT_XOR":
		return foldBits(firstArgs(tuples), func(a, b int64) int64 { return a ^ b })
	case "ARRAY_AGG":
		values := firstArgs(tuples)
		elem := storage.UnknownType()
		for _, v := range values {
			if !v.IsNull() {
				elem = v.DataType()
				break
			}
		}
		return storage.NewArray(values, elem), nil
	case "STRING_AGG", "LISTAGG":
		return foldStringAgg(tuples)
	case "ANY_VALUE":
		for _, v := range firstArgs(tuples) {
			if !v.IsNull() {
				return v, nil
			}
		}
		return storage.NewNull(), nil
	default:
		return storage.NewNull(), common.NewUnknownFunctionError(name)
	}
}

func firstArgs(tuples [][]storage.Value) []storage.Value {
	out := make([]storage.Value, 0, len(tuples))
	for _, t := range tuples {
		if len(t) == 0 {
			continue
		}
		out = append(out, t[0])
	}
	return out
}

// conditionalArgs keeps the first argument of rows whose second argument is
// true, implementing the *IF aggregate family.
func conditionalArgs(tuples [][]storage.Value) []storage.Value {
	out := make([]storage.Value, 0, len(tuples))
	for _, t := range tuples {
		if len(t) >= 2 && isTrue(t[1]) {
			out = append(out, t[0])
		}
	}
	return out
}

func isTrue(v storage.Value) bool {
	return !v.IsNull() && v.Kind() == storage.KindBool && v.AsBool()
}

// foldSum skips nulls; an all-null (or empty) input yields null. The result
// kind follows the first non-null operand, except that an INT64 start widens
// to the kind of the first FLOAT64 or NUMERIC operand that follows.
func foldSum(values []storage.Value) (storage.Value, error) {
	var intSum int64
	var floatSum float64
	decSum := decimal.Zero
	kind := storage.KindUnknown
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if kind == storage.KindUnknown {
			kind = v.Kind()
		}
		switch v.Kind() {
		case storage.KindInt64:
			intSum += v.AsInt64()
			floatSum += float64(v.AsInt64())
			decSum = decSum.Add(decimal.NewFromInt(v.AsInt64()))
		case storage.KindFloat64:
			if kind == storage.KindInt64 {
				kind = storage.KindFloat64
			}
			floatSum += v.AsFloat64()
		case storage.KindNumeric, storage.KindBigNumeric:
			if kind == storage.KindInt64 {
				kind = v.Kind()
			}
			decSum = decSum.Add(v.AsDecimal())
		default:
			return storage.NewNull(), common.NewTypeMismatchError("numeric", v.DataType().String())
		}
	}
	switch kind {
	case storage.KindUnknown:
		return storage.NewNull(), nil
	case storage.KindInt64:
		return storage.NewInt64(intSum), nil
	case storage.KindFloat64:
		return storage.NewFloat64(floatSum), nil
	case storage.KindBigNumeric:
		return storage.NewBigNumeric(decSum), nil
	default:
		return storage.NewNumeric(decSum), nil
	}
}

func foldAvg(values []storage.Value) (storage.Value, error) {
	count := 0
	var sum float64
	decSum := decimal.Zero
	decimalKind := false
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		count++
		switch v.Kind() {
		case storage.KindInt64:
			sum += float64(v.AsInt64())
			decSum = decSum.Add(decimal.NewFromInt(v.AsInt64()))
		case storage.KindFloat64:
			sum += v.AsFloat64()
		case storage.KindNumeric, storage.KindBigNumeric:
			decimalKind = true
			decSum = decSum.Add(v.AsDecimal())
		default:
			return storage.NewNull(), common.NewTypeMismatchError("numeric", v.DataType().String())
		}
	}
	if count == 0 {
		return storage.NewNull(), nil
	}
	if decimalKind {
		return storage.NewNumeric(decSum.DivRound(decimal.NewFromInt(int64(count)), 38)), nil
	}
	return storage.NewFloat64(sum / float64(count)), nil
}

func foldExtremum(values []storage.Value, sign int) (storage.Value, error) {
	best := storage.NewNull()
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if best.IsNull() {
			best = v
			continue
		}
		cmp, ok := v.Compare(best)
		if !ok {
			return storage.NewNull(), common.NewTypeMismatchError(
				best.DataType().String(), v.DataType().String())
		}
		if cmp*sign > 0 {
			best = v
		}
	}
	return best, nil
}

// foldLogical implements LOGICAL_AND / LOGICAL_OR: nulls are ignored, an
// all-null input yields null, and a definite false (AND) or true (OR)
// dominates.
func foldLogical(values []storage.Value, isAnd bool) (storage.Value, error) {
	sawValue := false
	result := isAnd
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind() != storage.KindBool {
			return storage.NewNull(), common.NewTypeMismatchError("BOOL", v.DataType().String())
		}
		sawValue = true
		if isAnd {
			result = result && v.AsBool()
		} else {
			result = result || v.AsBool()
		}
	}
	if !sawValue {
		return storage.NewNull(), nil
	}
	return storage.NewBool(result), nil
}

func foldBits(values []storage.Value, fn func(a, b int64) int64) (storage.Value, error) {
	acc := storage.NewNull()
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind() != storage.KindInt64 {
			return storage.NewNull(), common.NewTypeMismatchError("INT64", v.DataType().String())
		}
		if acc.IsNull() {
			acc = v
			continue
		}
		acc = storage.NewInt64(fn(acc.AsInt64(), v.AsInt64()))
	}
	return acc, nil
}

// foldStringAgg joins non-null values with the separator given as a constant
// second argument (default ",").
func foldStringAgg(tuples [][]storage.Value) (storage.Value, error) {
	sep := ","
	parts := make([]string, 0, len(tuples))
	for _, t := range tuples {
		if len(t) >= 2 && !t[1].IsNull() {
			sep = t[1].AsString()
		}
		if len(t) == 0 || t[0].IsNull() {
			continue
		}
		parts = append(parts, t[0].String())
	}
	if len(parts) == 0 {
		return storage.NewNull(), nil
	}
	return storage.NewString(strings.Join(parts, sep)), nil
}
