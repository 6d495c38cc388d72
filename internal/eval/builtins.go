package eval

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// registerBuiltins installs the builtin scalar function library.
func registerBuiltins(r *FunctionRegistry) {
	registerConditional(r)
	registerMath(r)
	registerString(r)
	registerDateTime(r)
	registerArray(r)
	registerJSON(r)
}

func exactArgs(name string, args []storage.Value, n int) error {
	if len(args) != n {
		return common.NewArityError(name, n, len(args))
	}
	return nil
}

func registerConditional(r *FunctionRegistry) {
	r.Register("IF", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("IF", args, 3); err != nil {
			return storage.NewNull(), err
		}
		if !args[0].IsNull() && args[0].Kind() == storage.KindBool && args[0].AsBool() {
			return args[1], nil
		}
		return args[2], nil
	})
	r.Register("IFNULL", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("IFNULL", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return args[1], nil
		}
		return args[0], nil
	})
	r.Register("NULLIF", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("NULLIF", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if !args[0].IsNull() && !args[1].IsNull() {
			l, rv := promoteNumericPair(args[0], args[1])
			if l.Equal(rv) {
				return storage.NewNull(), nil
			}
		}
		return args[0], nil
	})
	r.Register("COALESCE", func(args []storage.Value) (storage.Value, error) {
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return storage.NewNull(), nil
	})
	r.Register("SAFE_DIVIDE", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("SAFE_DIVIDE", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		l, lok := toFloat(args[0])
		d, dok := toFloat(args[1])
		if !lok || !dok {
			return storage.NewNull(), common.NewTypeMismatchError("FLOAT64", args[0].DataType().String())
		}
		if d == 0 {
			return storage.NewNull(), nil
		}
		return storage.NewFloat64(l / d), nil
	})
	r.Register("GREATEST", func(args []storage.Value) (storage.Value, error) {
		return extremum(args, 1)
	})
	r.Register("LEAST", func(args []storage.Value) (storage.Value, error) {
		return extremum(args, -1)
	})
}

// extremum returns the max (sign=1) or min (sign=-1). Any null argument
// yields null.
func extremum(args []storage.Value, sign int) (storage.Value, error) {
	if len(args) == 0 {
		return storage.NewNull(), common.NewArityError("GREATEST", 1, 0)
	}
	best := args[0]
	if best.IsNull() {
		return storage.NewNull(), nil
	}
	for _, a := range args[1:] {
		if a.IsNull() {
			return storage.NewNull(), nil
		}
		l, rv := promoteNumericPair(a, best)
		cmp, ok := l.Compare(rv)
		if !ok {
			return storage.NewNull(), common.NewTypeMismatchError(
				best.DataType().String(), a.DataType().String())
		}
		if cmp*sign > 0 {
			best = a
		}
	}
	return best, nil
}

func float1(name string, fn func(float64) float64) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs(name, args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		f, ok := toFloat(args[0])
		if !ok {
			return storage.NewNull(), common.NewTypeMismatchError("FLOAT64", args[0].DataType().String())
		}
		return storage.NewFloat64(fn(f)), nil
	}
}

func registerMath(r *FunctionRegistry) {
	r.Register("ABS", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("ABS", args, 1); err != nil {
			return storage.NewNull(), err
		}
		v := args[0]
		if v.IsNull() {
			return storage.NewNull(), nil
		}
		switch v.Kind() {
		case storage.KindInt64:
			if v.AsInt64() < 0 {
				return storage.NewInt64(-v.AsInt64()), nil
			}
			return v, nil
		case storage.KindFloat64:
			return storage.NewFloat64(math.Abs(v.AsFloat64())), nil
		case storage.KindNumeric:
			return storage.NewNumeric(v.AsDecimal().Abs()), nil
		case storage.KindBigNumeric:
			return storage.NewBigNumeric(v.AsDecimal().Abs()), nil
		}
		return storage.NewNull(), common.NewTypeMismatchError("numeric", v.DataType().String())
	})
	r.Register("CEIL", float1("CEIL", math.Ceil))
	r.Register("CEILING", float1("CEILING", math.Ceil))
	r.Register("FLOOR", float1("FLOOR", math.Floor))
	r.Register("SQRT", float1("SQRT", math.Sqrt))
	r.Register("EXP", float1("EXP", math.Exp))
	r.Register("LN", float1("LN", math.Log))
	r.Register("LOG10", float1("LOG10", math.Log10))
	r.Register("SIGN", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("SIGN", args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		f, ok := toFloat(args[0])
		if !ok {
			return storage.NewNull(), common.NewTypeMismatchError("FLOAT64", args[0].DataType().String())
		}
		switch {
		case f > 0:
			return storage.NewInt64(1), nil
		case f < 0:
			return storage.NewInt64(-1), nil
		default:
			return storage.NewInt64(0), nil
		}
	})
	r.Register("ROUND", func(args []storage.Value) (storage.Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return storage.NewNull(), common.NewArityError("ROUND", 1, len(args))
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		digits := 0
		if len(args) == 2 {
			if args[1].IsNull() {
				return storage.NewNull(), nil
			}
			digits = int(args[1].AsInt64())
		}
		if args[0].Kind() == storage.KindNumeric || args[0].Kind() == storage.KindBigNumeric {
			return storage.NewNumeric(args[0].AsDecimal().Round(int32(digits))), nil
		}
		f, ok := toFloat(args[0])
		if !ok {
			return storage.NewNull(), common.NewTypeMismatchError("FLOAT64", args[0].DataType().String())
		}
		scale := math.Pow10(digits)
		return storage.NewFloat64(math.Round(f*scale) / scale), nil
	})
	r.Register("POW", powFn)
	r.Register("POWER", powFn)
	r.Register("MOD", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("MOD", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() != storage.KindInt64 || args[1].Kind() != storage.KindInt64 {
			return storage.NewNull(), common.NewTypeMismatchError("INT64", args[0].DataType().String())
		}
		if args[1].AsInt64() == 0 {
			return storage.NewNull(), nil
		}
		return storage.NewInt64(args[0].AsInt64() % args[1].AsInt64()), nil
	})
}

func powFn(args []storage.Value) (storage.Value, error) {
	if err := exactArgs("POW", args, 2); err != nil {
		return storage.NewNull(), err
	}
	if args[0].IsNull() || args[1].IsNull() {
		return storage.NewNull(), nil
	}
	base, bok := toFloat(args[0])
	exp, eok := toFloat(args[1])
	if !bok || !eok {
		return storage.NewNull(), common.NewTypeMismatchError("FLOAT64", args[0].DataType().String())
	}
	return storage.NewFloat64(math.Pow(base, exp)), nil
}

func string1(name string, fn func(string) storage.Value) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs(name, args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() != storage.KindString {
			return storage.NewNull(), common.NewTypeMismatchError("STRING", args[0].DataType().String())
		}
		return fn(args[0].AsString()), nil
	}
}

func registerString(r *FunctionRegistry) {
	r.Register("LOWER", string1("LOWER", func(s string) storage.Value {
		return storage.NewString(strings.ToLower(s))
	}))
	r.Register("UPPER", string1("UPPER", func(s string) storage.Value {
		return storage.NewString(strings.ToUpper(s))
	}))
	r.Register("LENGTH", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("LENGTH", args, 1); err != nil {
			return storage.NewNull(), err
		}
		v := args[0]
		if v.IsNull() {
			return storage.NewNull(), nil
		}
		switch v.Kind() {
		case storage.KindString:
			return storage.NewInt64(int64(len([]rune(v.AsString())))), nil
		case storage.KindBytes:
			return storage.NewInt64(int64(len(v.AsBytes()))), nil
		}
		return storage.NewNull(), common.NewTypeMismatchError("STRING", v.DataType().String())
	})
	r.Register("CONCAT", func(args []storage.Value) (storage.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
			sb.WriteString(a.String())
		}
		return storage.NewString(sb.String()), nil
	})
	r.Register("REVERSE", string1("REVERSE", func(s string) storage.Value {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return storage.NewString(string(runes))
	}))
	r.Register("TRIM", trimFn(strings.Trim, strings.TrimSpace))
	r.Register("LTRIM", trimFn(strings.TrimLeft, func(s string) string {
		return strings.TrimLeft(s, " \t\n\r")
	}))
	r.Register("RTRIM", trimFn(strings.TrimRight, func(s string) string {
		return strings.TrimRight(s, " \t\n\r")
	}))
	r.Register("SUBSTR", substrFn)
	r.Register("SUBSTRING", substrFn)
	r.Register("REPLACE", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("REPLACE", args, 3); err != nil {
			return storage.NewNull(), err
		}
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
		}
		return storage.NewString(strings.ReplaceAll(
			args[0].AsString(), args[1].AsString(), args[2].AsString())), nil
	})
	r.Register("SPLIT", func(args []storage.Value) (storage.Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return storage.NewNull(), common.NewArityError("SPLIT", 2, len(args))
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		sep := ","
		if len(args) == 2 {
			if args[1].IsNull() {
				return storage.NewNull(), nil
			}
			sep = args[1].AsString()
		}
		parts := strings.Split(args[0].AsString(), sep)
		elems := make([]storage.Value, len(parts))
		for i, p := range parts {
			elems[i] = storage.NewString(p)
		}
		return storage.NewArray(elems, storage.StringType()), nil
	})
	r.Register("STARTS_WITH", stringPairBool("STARTS_WITH", strings.HasPrefix))
	r.Register("ENDS_WITH", stringPairBool("ENDS_WITH", strings.HasSuffix))
	r.Register("STRPOS", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("STRPOS", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		idx := strings.Index(args[0].AsString(), args[1].AsString())
		return storage.NewInt64(int64(idx + 1)), nil
	})
	r.Register("LPAD", padFn(true))
	r.Register("RPAD", padFn(false))
	r.Register("REPEAT", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("REPEAT", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		n := args[1].AsInt64()
		if n < 0 {
			n = 0
		}
		return storage.NewString(strings.Repeat(args[0].AsString(), int(n))), nil
	})
	r.Register("FORMAT", func(args []storage.Value) (storage.Value, error) {
		if len(args) == 0 {
			return storage.NewNull(), common.NewArityError("FORMAT", 1, 0)
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		rest := make([]any, len(args)-1)
		for i, a := range args[1:] {
			rest[i] = a.String()
		}
		return storage.NewString(fmt.Sprintf(
			strings.ReplaceAll(args[0].AsString(), "%t", "%s"), rest...)), nil
	})
}

func trimFn(cutset func(string, string) string, space func(string) string) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return storage.NewNull(), common.NewArityError("TRIM", 1, len(args))
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if len(args) == 2 {
			if args[1].IsNull() {
				return storage.NewNull(), nil
			}
			return storage.NewString(cutset(args[0].AsString(), args[1].AsString())), nil
		}
		return storage.NewString(space(args[0].AsString())), nil
	}
}

func substrFn(args []storage.Value) (storage.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return storage.NewNull(), common.NewArityError("SUBSTR", 2, len(args))
	}
	for _, a := range args {
		if a.IsNull() {
			return storage.NewNull(), nil
		}
	}
	runes := []rune(args[0].AsString())
	start := args[1].AsInt64()
	// SUBSTR positions are one-based; negatives count from the end.
	switch {
	case start > 0:
		start--
	case start < 0:
		start = int64(len(runes)) + start
		if start < 0 {
			start = 0
		}
	}
	if start >= int64(len(runes)) {
		return storage.NewString(""), nil
	}
	end := int64(len(runes))
	if len(args) == 3 {
		length := args[2].AsInt64()
		if length < 0 {
			return storage.NewNull(), common.NewOutOfBoundsError(int(length), len(runes))
		}
		if start+length < end {
			end = start + length
		}
	}
	return storage.NewString(string(runes[start:end])), nil
}

func stringPairBool(name string, fn func(string, string) bool) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs(name, args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		return storage.NewBool(fn(args[0].AsString(), args[1].AsString())), nil
	}
}

func padFn(left bool) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return storage.NewNull(), common.NewArityError("LPAD", 2, len(args))
		}
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
		}
		s := args[0].AsString()
		target := int(args[1].AsInt64())
		pad := " "
		if len(args) == 3 {
			pad = args[2].AsString()
		}
		if len(s) >= target || pad == "" {
			if len(s) > target {
				return storage.NewString(s[:target]), nil
			}
			return storage.NewString(s), nil
		}
		fill := strings.Repeat(pad, (target-len(s))/len(pad)+1)[:target-len(s)]
		if left {
			return storage.NewString(fill + s), nil
		}
		return storage.NewString(s + fill), nil
	}
}

func registerDateTime(r *FunctionRegistry) {
	r.Register("CURRENT_DATE", func(args []storage.Value) (storage.Value, error) {
		return storage.NewDate(time.Now().UTC()), nil
	})
	r.Register("CURRENT_TIMESTAMP", func(args []storage.Value) (storage.Value, error) {
		return storage.NewTimestamp(time.Now()), nil
	})
	r.Register("EXTRACT", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("EXTRACT", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		part := strings.ToUpper(args[0].AsString())
		switch args[1].Kind() {
		case storage.KindDate, storage.KindDateTime, storage.KindTimestamp:
		default:
			return storage.NewNull(), common.NewTypeMismatchError("DATE", args[1].DataType().String())
		}
		t := args[1].AsTime()
		switch part {
		case "YEAR":
			return storage.NewInt64(int64(t.Year())), nil
		case "QUARTER":
			return storage.NewInt64(int64((int(t.Month())-1)/3 + 1)), nil
		case "MONTH":
			return storage.NewInt64(int64(t.Month())), nil
		case "DAY":
			return storage.NewInt64(int64(t.Day())), nil
		case "DAYOFWEEK":
			return storage.NewInt64(int64(t.Weekday()) + 1), nil
		case "DAYOFYEAR":
			return storage.NewInt64(int64(t.YearDay())), nil
		case "HOUR":
			return storage.NewInt64(int64(t.Hour())), nil
		case "MINUTE":
			return storage.NewInt64(int64(t.Minute())), nil
		case "SECOND":
			return storage.NewInt64(int64(t.Second())), nil
		case "MILLISECOND":
			return storage.NewInt64(int64(t.Nanosecond() / 1e6)), nil
		case "MICROSECOND":
			return storage.NewInt64(int64(t.Nanosecond() / 1e3)), nil
		default:
			return storage.NewNull(), common.NewError(common.ErrorKindUnresolvedName,
				common.ErrCodeUnknownFunction, "unknown date part "+part)
		}
	})
	r.Register("DATE_ADD", dateShift(1))
	r.Register("DATE_SUB", dateShift(-1))
	r.Register("DATE_DIFF", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("DATE_DIFF", args, 3); err != nil {
			return storage.NewNull(), err
		}
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
		}
		a, b := args[0].AsTime(), args[1].AsTime()
		part := strings.ToUpper(args[2].AsString())
		switch part {
		case "DAY":
			return storage.NewInt64(int64(a.Sub(b).Hours() / 24)), nil
		case "YEAR":
			return storage.NewInt64(int64(a.Year() - b.Year())), nil
		case "MONTH":
			return storage.NewInt64(int64((a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month()))), nil
		default:
			return storage.NewNull(), common.NewError(common.ErrorKindUnresolvedName,
				common.ErrCodeUnknownFunction, "unknown date part "+part)
		}
	})
}

// dateShift implements DATE_ADD / DATE_SUB over (value, interval_count, part).
func dateShift(sign int) ScalarFn {
	return func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("DATE_ADD", args, 3); err != nil {
			return storage.NewNull(), err
		}
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
		}
		count := int(args[1].AsInt64()) * sign
		part := strings.ToUpper(args[2].AsString())
		t := args[0].AsTime()
		var shifted time.Time
		switch part {
		case "YEAR":
			shifted = t.AddDate(count, 0, 0)
		case "MONTH":
			shifted = t.AddDate(0, count, 0)
		case "DAY":
			shifted = t.AddDate(0, 0, count)
		case "HOUR":
			shifted = t.Add(time.Duration(count) * time.Hour)
		case "MINUTE":
			shifted = t.Add(time.Duration(count) * time.Minute)
		case "SECOND":
			shifted = t.Add(time.Duration(count) * time.Second)
		default:
			return storage.NewNull(), common.NewError(common.ErrorKindUnresolvedName,
				common.ErrCodeUnknownFunction, "unknown date part "+part)
		}
		switch args[0].Kind() {
		case storage.KindDate:
			return storage.NewDate(shifted), nil
		case storage.KindDateTime:
			return storage.NewDateTime(shifted), nil
		case storage.KindTimestamp:
			return storage.NewTimestamp(shifted), nil
		default:
			return storage.NewNull(), common.NewTypeMismatchError("DATE", args[0].DataType().String())
		}
	}
}

func registerArray(r *FunctionRegistry) {
	r.Register("ARRAY_LENGTH", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("ARRAY_LENGTH", args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() != storage.KindArray {
			return storage.NewNull(), common.NewTypeMismatchError("ARRAY", args[0].DataType().String())
		}
		return storage.NewInt64(int64(len(args[0].AsArray()))), nil
	})
	r.Register("ARRAY_CONCAT", func(args []storage.Value) (storage.Value, error) {
		var out []storage.Value
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
			if a.Kind() != storage.KindArray {
				return storage.NewNull(), common.NewTypeMismatchError("ARRAY", a.DataType().String())
			}
			out = append(out, a.AsArray()...)
		}
		return storage.NewArray(out, arrayElemType(out)), nil
	})
	r.Register("ARRAY_REVERSE", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("ARRAY_REVERSE", args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() != storage.KindArray {
			return storage.NewNull(), common.NewTypeMismatchError("ARRAY", args[0].DataType().String())
		}
		in := args[0].AsArray()
		out := make([]storage.Value, len(in))
		for i, e := range in {
			out[len(in)-1-i] = e
		}
		return storage.NewArray(out, arrayElemType(out)), nil
	})
	r.Register("GENERATE_ARRAY", func(args []storage.Value) (storage.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return storage.NewNull(), common.NewArityError("GENERATE_ARRAY", 2, len(args))
		}
		for _, a := range args {
			if a.IsNull() {
				return storage.NewNull(), nil
			}
		}
		step := int64(1)
		if len(args) == 3 {
			step = args[2].AsInt64()
		}
		if step == 0 {
			return storage.NewNull(), common.NewInternalError("GENERATE_ARRAY step cannot be zero")
		}
		var out []storage.Value
		start, end := args[0].AsInt64(), args[1].AsInt64()
		for i := start; (step > 0 && i <= end) || (step < 0 && i >= end); i += step {
			out = append(out, storage.NewInt64(i))
		}
		return storage.NewArray(out, storage.Int64Type()), nil
	})
}

func registerJSON(r *FunctionRegistry) {
	r.Register("TO_JSON_STRING", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("TO_JSON_STRING", args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() == storage.KindJSON {
			b, err := json.Marshal(args[0].AsJSON())
			if err != nil {
				return storage.NewNull(), common.NewInternalError("json marshal failed").WithCause(err)
			}
			return storage.NewString(string(b)), nil
		}
		return storage.NewString(args[0].String()), nil
	})
	r.Register("PARSE_JSON", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("PARSE_JSON", args, 1); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() {
			return storage.NewNull(), nil
		}
		if args[0].Kind() != storage.KindString {
			return storage.NewNull(), common.NewTypeMismatchError("STRING", args[0].DataType().String())
		}
		return storage.NewJSON(storage.ParseJSONString(args[0].AsString())), nil
	})
	r.Register("JSON_VALUE", func(args []storage.Value) (storage.Value, error) {
		if err := exactArgs("JSON_VALUE", args, 2); err != nil {
			return storage.NewNull(), err
		}
		if args[0].IsNull() || args[1].IsNull() {
			return storage.NewNull(), nil
		}
		doc := args[0].AsJSON()
		if args[0].Kind() == storage.KindString {
			doc = storage.ParseJSONString(args[0].AsString())
		}
		path := strings.TrimPrefix(args[1].AsString(), "$.")
		for _, seg := range strings.Split(path, ".") {
			obj, ok := doc.(map[string]any)
			if !ok {
				return storage.NewNull(), nil
			}
			doc, ok = obj[seg]
			if !ok {
				return storage.NewNull(), nil
			}
		}
		switch leaf := doc.(type) {
		case string:
			return storage.NewString(leaf), nil
		case float64:
			return storage.NewString(storage.NewFloat64(leaf).String()), nil
		case bool:
			return storage.NewString(storage.NewBool(leaf).String()), nil
		default:
			return storage.NewNull(), nil
		}
	})
}
