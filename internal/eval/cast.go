package eval

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func timeDuration(nanos int64) time.Duration {
	return time.Duration(nanos)
}

// castValue converts a scalar to a target type with SQL CAST semantics. When
// safe is set, conversion failures yield null instead of an error.
func castValue(v storage.Value, target storage.DataType, safe bool) (storage.Value, error) {
	out, err := castValueStrict(v, target)
	if err != nil && safe {
		return storage.NewNull(), nil
	}
	return out, err
}

func castValueStrict(v storage.Value, target storage.DataType) (storage.Value, error) {
	if v.IsNull() {
		return storage.NewNull(), nil
	}
	if v.DataType().Equal(target) {
		return v, nil
	}
	switch target.Kind {
	case storage.KindBool:
		return castToBool(v)
	case storage.KindInt64:
		return castToInt64(v)
	case storage.KindFloat64:
		return castToFloat64(v)
	case storage.KindNumeric:
		return castToDecimal(v, false)
	case storage.KindBigNumeric:
		return castToDecimal(v, true)
	case storage.KindString:
		return storage.NewString(v.String()), nil
	case storage.KindBytes:
		if v.Kind() == storage.KindString {
			return storage.NewBytes([]byte(v.AsString())), nil
		}
	case storage.KindDate:
		return castToDate(v)
	case storage.KindDateTime:
		return castToDateTime(v)
	case storage.KindTimestamp:
		return castToTimestamp(v)
	case storage.KindTime:
		return castToTime(v)
	case storage.KindJSON:
		switch v.Kind() {
		case storage.KindString:
			var decoded any
			if err := json.Unmarshal([]byte(v.AsString()), &decoded); err != nil {
				return storage.NewNull(), castError(v, target)
			}
			return storage.NewJSON(decoded), nil
		case storage.KindInt64:
			return storage.NewJSON(v.AsInt64()), nil
		case storage.KindFloat64:
			return storage.NewJSON(v.AsFloat64()), nil
		case storage.KindBool:
			return storage.NewJSON(v.AsBool()), nil
		}
	case storage.KindArray:
		if v.Kind() == storage.KindArray && target.Elem != nil {
			elems := v.AsArray()
			out := make([]storage.Value, len(elems))
			for i, e := range elems {
				conv, err := castValueStrict(e, *target.Elem)
				if err != nil {
					return storage.NewNull(), err
				}
				out[i] = conv
			}
			return storage.NewArray(out, *target.Elem), nil
		}
	}
	return storage.NewNull(), castError(v, target)
}

func castError(v storage.Value, target storage.DataType) error {
	return common.NewTypeMismatchError(target.String(), v.DataType().String())
}

func castToBool(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindBool:
		return v, nil
	case storage.KindInt64:
		return storage.NewBool(v.AsInt64() != 0), nil
	case storage.KindString:
		switch strings.ToLower(strings.TrimSpace(v.AsString())) {
		case "true":
			return storage.NewBool(true), nil
		case "false":
			return storage.NewBool(false), nil
		}
	}
	return storage.NewNull(), castError(v, storage.BoolType())
}

func castToInt64(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindInt64:
		return v, nil
	case storage.KindFloat64:
		// CAST rounds half away from zero, unlike column push which
		// truncates.
		f := v.AsFloat64()
		if f >= 0 {
			return storage.NewInt64(int64(f + 0.5)), nil
		}
		return storage.NewInt64(int64(f - 0.5)), nil
	case storage.KindNumeric, storage.KindBigNumeric:
		return storage.NewInt64(v.AsDecimal().Round(0).IntPart()), nil
	case storage.KindBool:
		if v.AsBool() {
			return storage.NewInt64(1), nil
		}
		return storage.NewInt64(0), nil
	case storage.KindString:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
		if err != nil {
			return storage.NewNull(), castError(v, storage.Int64Type())
		}
		return storage.NewInt64(parsed), nil
	}
	return storage.NewNull(), castError(v, storage.Int64Type())
}

func castToFloat64(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindFloat64:
		return v, nil
	case storage.KindInt64:
		return storage.NewFloat64(float64(v.AsInt64())), nil
	case storage.KindNumeric, storage.KindBigNumeric:
		f, _ := v.AsDecimal().Float64()
		return storage.NewFloat64(f), nil
	case storage.KindString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err != nil {
			return storage.NewNull(), castError(v, storage.Float64Type())
		}
		return storage.NewFloat64(parsed), nil
	}
	return storage.NewNull(), castError(v, storage.Float64Type())
}

func castToDecimal(v storage.Value, big bool) (storage.Value, error) {
	wrap := storage.NewNumeric
	if big {
		wrap = storage.NewBigNumeric
	}
	switch v.Kind() {
	case storage.KindNumeric, storage.KindBigNumeric:
		return wrap(v.AsDecimal()), nil
	case storage.KindInt64:
		return wrap(decimal.NewFromInt(v.AsInt64())), nil
	case storage.KindFloat64:
		return wrap(decimal.NewFromFloat(v.AsFloat64())), nil
	case storage.KindString:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v.AsString()))
		if err != nil {
			return storage.NewNull(), castError(v, storage.NumericType())
		}
		return wrap(parsed), nil
	}
	return storage.NewNull(), castError(v, storage.NumericType())
}

func castToDate(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindDate:
		return v, nil
	case storage.KindDateTime, storage.KindTimestamp:
		return storage.NewDate(v.AsTime()), nil
	case storage.KindString:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(v.AsString()))
		if err != nil {
			return storage.NewNull(), castError(v, storage.DateType())
		}
		return storage.NewDate(t), nil
	}
	return storage.NewNull(), castError(v, storage.DateType())
}

func castToDateTime(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindDateTime:
		return v, nil
	case storage.KindDate:
		return storage.NewDateTime(v.AsTime()), nil
	case storage.KindTimestamp:
		return storage.NewDateTime(v.AsTime()), nil
	case storage.KindString:
		s := strings.TrimSpace(v.AsString())
		for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return storage.NewDateTime(t), nil
			}
		}
	}
	return storage.NewNull(), castError(v, storage.DateTimeType())
}

func castToTimestamp(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindTimestamp:
		return v, nil
	case storage.KindDate, storage.KindDateTime:
		return storage.NewTimestamp(v.AsTime()), nil
	case storage.KindString:
		s := strings.TrimSpace(v.AsString())
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999 -0700", "2006-01-02 15:04:05.999999999", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return storage.NewTimestamp(t), nil
			}
		}
	}
	return storage.NewNull(), castError(v, storage.TimestampType())
}

func castToTime(v storage.Value) (storage.Value, error) {
	switch v.Kind() {
	case storage.KindTime:
		return v, nil
	case storage.KindString:
		s := strings.TrimSpace(v.AsString())
		if t, err := time.Parse("15:04:05.999999999", s); err == nil {
			nanos := int64(t.Hour())*3600*int64(time.Second) +
				int64(t.Minute())*60*int64(time.Second) +
				int64(t.Second())*int64(time.Second) +
				int64(t.Nanosecond())
			return storage.NewTime(nanos), nil
		}
	case storage.KindDateTime, storage.KindTimestamp:
		t := v.AsTime()
		nanos := int64(t.Hour())*3600*int64(time.Second) +
			int64(t.Minute())*60*int64(time.Second) +
			int64(t.Second())*int64(time.Second) +
			int64(t.Nanosecond())
		return storage.NewTime(nanos), nil
	}
	return storage.NewNull(), castError(v, storage.TimeType())
}
