package eval

import (
	"regexp"
	"strings"
	"sync"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// likeCache memoizes compiled LIKE patterns; queries tend to reuse a handful
// of patterns across every row.
var likeCache sync.Map

func (ev *Evaluator) evalLike(n *ir.Like, rec storage.Record) (storage.Value, error) {
	operand, err := ev.Eval(n.Operand, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	pattern, err := ev.Eval(n.Pattern, rec)
	if err != nil {
		return storage.NewNull(), err
	}
	if operand.IsNull() || pattern.IsNull() {
		return storage.NewNull(), nil
	}
	if operand.Kind() != storage.KindString || pattern.Kind() != storage.KindString {
		return storage.NewNull(), common.NewTypeMismatchError("STRING", operand.DataType().String())
	}
	re, err := compileLike(pattern.AsString())
	if err != nil {
		return storage.NewNull(), err
	}
	return storage.NewBool(re.MatchString(operand.AsString()) != n.Negated), nil
}

// compileLike translates a SQL LIKE pattern (% and _ wildcards, backslash
// escapes) into an anchored regexp.
func compileLike(pattern string) (*regexp.Regexp, error) {
	if cached, ok := likeCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	var sb strings.Builder
	sb.WriteString("(?s)^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, common.NewInternalError("invalid LIKE pattern: " + pattern).WithCause(err)
	}
	likeCache.Store(pattern, re)
	return re, nil
}
