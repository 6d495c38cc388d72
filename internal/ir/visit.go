package ir

// CollectColumnIndices gathers the resolved column offsets an expression
// reads into out. It reports false when the expression contains an
// unresolved column reference, a lambda or a subquery, in which case the
// caller must treat the expression as reading unknown columns.
func CollectColumnIndices(e Expr, out map[int]struct{}) bool {
	if e == nil {
		return true
	}
	switch n := e.(type) {
	case *ColumnRef:
		if n.Index == nil {
			return false
		}
		out[*n.Index] = struct{}{}
		return true
	case *Literal, *Param:
		return true
	case *Binary:
		return CollectColumnIndices(n.Left, out) && CollectColumnIndices(n.Right, out)
	case *Unary:
		return CollectColumnIndices(n.Operand, out)
	case *IsNull:
		return CollectColumnIndices(n.Operand, out)
	case *IsDistinctFrom:
		return CollectColumnIndices(n.Left, out) && CollectColumnIndices(n.Right, out)
	case *Cast:
		return CollectColumnIndices(n.Operand, out)
	case *Alias:
		return CollectColumnIndices(n.Operand, out)
	case *Like:
		return CollectColumnIndices(n.Operand, out) && CollectColumnIndices(n.Pattern, out)
	case *InList:
		if !CollectColumnIndices(n.Operand, out) {
			return false
		}
		for _, item := range n.List {
			if !CollectColumnIndices(item, out) {
				return false
			}
		}
		return true
	case *Between:
		return CollectColumnIndices(n.Operand, out) &&
			CollectColumnIndices(n.Low, out) &&
			CollectColumnIndices(n.High, out)
	case *Case:
		if !CollectColumnIndices(n.Operand, out) {
			return false
		}
		for _, w := range n.Whens {
			if !CollectColumnIndices(w.Condition, out) || !CollectColumnIndices(w.Result, out) {
				return false
			}
		}
		return CollectColumnIndices(n.Else, out)
	case *ScalarFunc:
		for _, a := range n.Args {
			if !CollectColumnIndices(a, out) {
				return false
			}
		}
		return true
	case *Aggregate:
		for _, a := range n.Args {
			if !CollectColumnIndices(a, out) {
				return false
			}
		}
		if !CollectColumnIndices(n.Filter, out) {
			return false
		}
		for _, k := range n.OrderBy {
			if !CollectColumnIndices(k.Expr, out) {
				return false
			}
		}
		return true
	case *WindowFunc:
		for _, a := range n.Args {
			if !CollectColumnIndices(a, out) {
				return false
			}
		}
		for _, p := range n.PartitionBy {
			if !CollectColumnIndices(p, out) {
				return false
			}
		}
		for _, k := range n.OrderBy {
			if !CollectColumnIndices(k.Expr, out) {
				return false
			}
		}
		return true
	case *ArrayLit:
		for _, el := range n.Elems {
			if !CollectColumnIndices(el, out) {
				return false
			}
		}
		return true
	case *StructLit:
		for _, el := range n.Exprs {
			if !CollectColumnIndices(el, out) {
				return false
			}
		}
		return true
	case *ArrayIndex:
		return CollectColumnIndices(n.Operand, out) && CollectColumnIndices(n.Index, out)
	case *FieldAccess:
		return CollectColumnIndices(n.Operand, out)
	case *JSONAccess:
		return CollectColumnIndices(n.Operand, out) && CollectColumnIndices(n.Key, out)
	case *Lambda, *ScalarSubquery, *ExistsSubquery, *InSubquery, *ArraySubquery:
		return false
	default:
		return false
	}
}

// RewriteColumnIndices returns a copy of e with every resolved column index
// mapped through fn. It reports false when the expression contains a node
// whose columns cannot be rewritten, or when fn rejects an index.
func RewriteColumnIndices(e Expr, fn func(int) (int, bool)) (Expr, bool) {
	if e == nil {
		return nil, true
	}
	switch n := e.(type) {
	case *ColumnRef:
		if n.Index == nil {
			return nil, false
		}
		mapped, ok := fn(*n.Index)
		if !ok {
			return nil, false
		}
		return &ColumnRef{Table: n.Table, Name: n.Name, Index: &mapped}, true
	case *Literal, *Param:
		return e, true
	case *Binary:
		left, ok := RewriteColumnIndices(n.Left, fn)
		if !ok {
			return nil, false
		}
		right, ok := RewriteColumnIndices(n.Right, fn)
		if !ok {
			return nil, false
		}
		return &Binary{Op: n.Op, Left: left, Right: right}, true
	case *Unary:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		return &Unary{Op: n.Op, Operand: operand}, true
	case *IsNull:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		return &IsNull{Operand: operand, Negated: n.Negated}, true
	case *IsDistinctFrom:
		left, ok := RewriteColumnIndices(n.Left, fn)
		if !ok {
			return nil, false
		}
		right, ok := RewriteColumnIndices(n.Right, fn)
		if !ok {
			return nil, false
		}
		return &IsDistinctFrom{Left: left, Right: right, Negated: n.Negated}, true
	case *Cast:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		return &Cast{Operand: operand, Target: n.Target, Safe: n.Safe}, true
	case *Alias:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		return &Alias{Operand: operand, Name: n.Name}, true
	case *Like:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		pattern, ok := RewriteColumnIndices(n.Pattern, fn)
		if !ok {
			return nil, false
		}
		return &Like{Operand: operand, Pattern: pattern, Negated: n.Negated}, true
	case *InList:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		list := make([]Expr, len(n.List))
		for i, item := range n.List {
			rewritten, ok := RewriteColumnIndices(item, fn)
			if !ok {
				return nil, false
			}
			list[i] = rewritten
		}
		return &InList{Operand: operand, List: list, Negated: n.Negated}, true
	case *Between:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		low, ok := RewriteColumnIndices(n.Low, fn)
		if !ok {
			return nil, false
		}
		high, ok := RewriteColumnIndices(n.High, fn)
		if !ok {
			return nil, false
		}
		return &Between{Operand: operand, Low: low, High: high, Negated: n.Negated}, true
	case *Case:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		whens := make([]When, len(n.Whens))
		for i, w := range n.Whens {
			cond, ok := RewriteColumnIndices(w.Condition, fn)
			if !ok {
				return nil, false
			}
			result, ok := RewriteColumnIndices(w.Result, fn)
			if !ok {
				return nil, false
			}
			whens[i] = When{Condition: cond, Result: result}
		}
		elseExpr, ok := RewriteColumnIndices(n.Else, fn)
		if !ok {
			return nil, false
		}
		return &Case{Operand: operand, Whens: whens, Else: elseExpr}, true
	case *ScalarFunc:
		args, ok := rewriteExprList(n.Args, fn)
		if !ok {
			return nil, false
		}
		return &ScalarFunc{Name: n.Name, Args: args}, true
	case *Aggregate:
		args, ok := rewriteExprList(n.Args, fn)
		if !ok {
			return nil, false
		}
		filter, ok := RewriteColumnIndices(n.Filter, fn)
		if !ok {
			return nil, false
		}
		orderBy, ok := rewriteSortKeys(n.OrderBy, fn)
		if !ok {
			return nil, false
		}
		return &Aggregate{
			Func: n.Func, Args: args, Distinct: n.Distinct, Filter: filter,
			OrderBy: orderBy, Limit: n.Limit, IgnoreNulls: n.IgnoreNulls,
		}, true
	case *WindowFunc:
		args, ok := rewriteExprList(n.Args, fn)
		if !ok {
			return nil, false
		}
		partitionBy, ok := rewriteExprList(n.PartitionBy, fn)
		if !ok {
			return nil, false
		}
		orderBy, ok := rewriteSortKeys(n.OrderBy, fn)
		if !ok {
			return nil, false
		}
		return &WindowFunc{
			Func: n.Func, Args: args, PartitionBy: partitionBy, OrderBy: orderBy,
			Frame: n.Frame, IgnoreNulls: n.IgnoreNulls,
		}, true
	case *ArrayLit:
		elems, ok := rewriteExprList(n.Elems, fn)
		if !ok {
			return nil, false
		}
		return &ArrayLit{Elems: elems, Elem: n.Elem}, true
	case *StructLit:
		exprs, ok := rewriteExprList(n.Exprs, fn)
		if !ok {
			return nil, false
		}
		return &StructLit{Names: n.Names, Exprs: exprs}, true
	case *ArrayIndex:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		index, ok := RewriteColumnIndices(n.Index, fn)
		if !ok {
			return nil, false
		}
		return &ArrayIndex{Operand: operand, Index: index, Mode: n.Mode}, true
	case *FieldAccess:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		return &FieldAccess{Operand: operand, Field: n.Field}, true
	case *JSONAccess:
		operand, ok := RewriteColumnIndices(n.Operand, fn)
		if !ok {
			return nil, false
		}
		key, ok := RewriteColumnIndices(n.Key, fn)
		if !ok {
			return nil, false
		}
		return &JSONAccess{Operand: operand, Key: key}, true
	default:
		return nil, false
	}
}

func rewriteExprList(exprs []Expr, fn func(int) (int, bool)) ([]Expr, bool) {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		rewritten, ok := RewriteColumnIndices(e, fn)
		if !ok {
			return nil, false
		}
		out[i] = rewritten
	}
	return out, true
}

func rewriteSortKeys(keys []SortKey, fn func(int) (int, bool)) ([]SortKey, bool) {
	out := make([]SortKey, len(keys))
	for i, k := range keys {
		rewritten, ok := RewriteColumnIndices(k.Expr, fn)
		if !ok {
			return nil, false
		}
		out[i] = SortKey{Expr: rewritten, Desc: k.Desc, NullsFirst: k.NullsFirst}
	}
	return out, true
}

// SplitConjunction flattens an AND tree into its conjuncts.
func SplitConjunction(e Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == OpAnd {
		return append(SplitConjunction(b.Left), SplitConjunction(b.Right)...)
	}
	if e == nil {
		return nil
	}
	return []Expr{e}
}

// CombineConjunction folds predicates back into an AND tree.
func CombineConjunction(preds []Expr) Expr {
	var out Expr
	for _, p := range preds {
		if out == nil {
			out = p
		} else {
			out = And(out, p)
		}
	}
	return out
}

// ResolveColumns sets the index on unresolved column references in e
// against the given schema, returning a rewritten copy. Unresolvable names
// are left untouched. It descends only through Binary, Unary, IsNull, Cast,
// Alias, Like and ScalarFunc nodes; column references under any other node
// kind are not resolved.
func ResolveColumns(e Expr, schema PlanSchema) Expr {
	switch n := e.(type) {
	case *ColumnRef:
		if n.Index != nil {
			return n
		}
		if idx, ok := schema.FieldIndex(n.Table, n.Name); ok {
			return &ColumnRef{Table: n.Table, Name: n.Name, Index: &idx}
		}
		return n
	case *Binary:
		return &Binary{Op: n.Op, Left: ResolveColumns(n.Left, schema), Right: ResolveColumns(n.Right, schema)}
	case *Unary:
		return &Unary{Op: n.Op, Operand: ResolveColumns(n.Operand, schema)}
	case *IsNull:
		return &IsNull{Operand: ResolveColumns(n.Operand, schema), Negated: n.Negated}
	case *Cast:
		return &Cast{Operand: ResolveColumns(n.Operand, schema), Target: n.Target, Safe: n.Safe}
	case *Alias:
		return &Alias{Operand: ResolveColumns(n.Operand, schema), Name: n.Name}
	case *Like:
		return &Like{Operand: ResolveColumns(n.Operand, schema), Pattern: ResolveColumns(n.Pattern, schema), Negated: n.Negated}
	case *ScalarFunc:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = ResolveColumns(a, schema)
		}
		return &ScalarFunc{Name: n.Name, Args: args}
	default:
		return e
	}
}
