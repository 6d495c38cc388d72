package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Interval is a BigQuery INTERVAL: months, days and sub-day nanoseconds are
// tracked independently and never normalized into each other.
type Interval struct {
	Months int32
	Days   int32
	Nanos  int64
}

// Compare orders intervals lexicographically over (months, days, nanos).
func (iv Interval) Compare(other Interval) int {
	if iv.Months != other.Months {
		if iv.Months < other.Months {
			return -1
		}
		return 1
	}
	if iv.Days != other.Days {
		if iv.Days < other.Days {
			return -1
		}
		return 1
	}
	if iv.Nanos != other.Nanos {
		if iv.Nanos < other.Nanos {
			return -1
		}
		return 1
	}
	return 0
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d-%d %d", iv.Months, iv.Days, iv.Nanos)
}

// RangeValue is a half-open range over an ordered element type. A nil bound
// is unbounded.
type RangeValue struct {
	Start *Value
	End   *Value
	Elem  DataType
}

// valueKind is the runtime discriminator of a Value. It extends TypeKind with
// the DEFAULT marker, which only exists at the value level.
const (
	kindDefault TypeKind = -1
)

// Value is the scalar sum type used at evaluator boundaries. Columns are the
// dense representation; a Value is a single slot pulled out of (or headed
// into) a column.
type Value struct {
	kind      TypeKind
	boolVal   bool
	intVal    int64
	floatVal  float64
	decVal    decimal.Decimal
	strVal    string
	bytesVal  []byte
	timeVal   time.Time
	jsonVal   any
	arrVal    []Value
	fieldName []string
	interval  Interval
	rangeVal  *RangeValue
	elemType  *DataType
}

// Constructors.

func NewNull() Value    { return Value{kind: KindUnknown} }
func NewDefault() Value { return Value{kind: kindDefault} }

func NewBool(b bool) Value       { return Value{kind: KindBool, boolVal: b} }
func NewInt64(i int64) Value     { return Value{kind: KindInt64, intVal: i} }
func NewFloat64(f float64) Value { return Value{kind: KindFloat64, floatVal: f} }

func NewNumeric(d decimal.Decimal) Value    { return Value{kind: KindNumeric, decVal: d} }
func NewBigNumeric(d decimal.Decimal) Value { return Value{kind: KindBigNumeric, decVal: d} }

func NewString(s string) Value    { return Value{kind: KindString, strVal: s} }
func NewBytes(b []byte) Value     { return Value{kind: KindBytes, bytesVal: b} }
func NewGeography(wkt string) Value { return Value{kind: KindGeography, strVal: wkt} }

// NewDate truncates the given time to a calendar day.
func NewDate(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, timeVal: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewTime stores a time of day as nanoseconds since midnight.
func NewTime(nanos int64) Value { return Value{kind: KindTime, intVal: nanos} }

func NewDateTime(t time.Time) Value { return Value{kind: KindDateTime, timeVal: t} }

// NewTimestamp normalizes to UTC.
func NewTimestamp(t time.Time) Value { return Value{kind: KindTimestamp, timeVal: t.UTC()} }

func NewJSON(v any) Value          { return Value{kind: KindJSON, jsonVal: v} }
func NewInterval(iv Interval) Value { return Value{kind: KindInterval, interval: iv} }

// NewArray builds an array value with an explicit element type.
func NewArray(elems []Value, elem DataType) Value {
	return Value{kind: KindArray, arrVal: elems, elemType: &elem}
}

// NewStruct builds a struct value from parallel name/value slices.
func NewStruct(names []string, values []Value) Value {
	return Value{kind: KindStruct, arrVal: values, fieldName: names}
}

// NewRange builds a range value; nil bounds are unbounded.
func NewRange(start, end *Value, elem DataType) Value {
	return Value{kind: KindRange, rangeVal: &RangeValue{Start: start, End: end, Elem: elem}}
}

// Predicates and accessors. Accessors are only meaningful for the matching
// kind; callers check the kind (or the enclosing column variant) first.

func (v Value) IsNull() bool    { return v.kind == KindUnknown }
func (v Value) IsDefault() bool { return v.kind == kindDefault }

func (v Value) Kind() TypeKind { return v.kind }

func (v Value) AsBool() bool               { return v.boolVal }
func (v Value) AsInt64() int64             { return v.intVal }
func (v Value) AsFloat64() float64         { return v.floatVal }
func (v Value) AsDecimal() decimal.Decimal { return v.decVal }
func (v Value) AsString() string           { return v.strVal }
func (v Value) AsBytes() []byte            { return v.bytesVal }
func (v Value) AsTime() time.Time          { return v.timeVal }
func (v Value) AsTimeOfDay() int64         { return v.intVal }
func (v Value) AsJSON() any                { return v.jsonVal }
func (v Value) AsInterval() Interval       { return v.interval }
func (v Value) AsArray() []Value           { return v.arrVal }
func (v Value) AsStructValues() []Value    { return v.arrVal }
func (v Value) AsStructNames() []string    { return v.fieldName }
func (v Value) AsRange() *RangeValue       { return v.rangeVal }

// StructField returns the value of the named struct field.
func (v Value) StructField(name string) (Value, bool) {
	for i, n := range v.fieldName {
		if strings.EqualFold(n, name) {
			return v.arrVal[i], true
		}
	}
	return NewNull(), false
}

// DataType reports the type of the value. Null reports Unknown.
func (v Value) DataType() DataType {
	switch v.kind {
	case KindUnknown, kindDefault:
		return UnknownType()
	case KindArray:
		if v.elemType != nil {
			return ArrayType(*v.elemType)
		}
		if len(v.arrVal) > 0 {
			return ArrayType(v.arrVal[0].DataType())
		}
		return ArrayType(UnknownType())
	case KindStruct:
		fields := make([]StructField, len(v.arrVal))
		for i := range v.arrVal {
			name := ""
			if i < len(v.fieldName) {
				name = v.fieldName[i]
			}
			fields[i] = StructField{Name: name, Type: v.arrVal[i].DataType()}
		}
		return StructType(fields)
	case KindRange:
		if v.rangeVal != nil {
			return RangeType(v.rangeVal.Elem)
		}
		return RangeType(UnknownType())
	default:
		return DataType{Kind: v.kind}
	}
}

// Equal reports structural equality. Nulls compare equal to nulls here; SQL
// three-valued semantics are applied by callers that need them.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUnknown, kindDefault:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindInt64, KindTime:
		return v.intVal == other.intVal
	case KindFloat64:
		return math.Float64bits(v.floatVal) == math.Float64bits(other.floatVal)
	case KindNumeric, KindBigNumeric:
		return v.decVal.Equal(other.decVal)
	case KindString, KindGeography:
		return v.strVal == other.strVal
	case KindBytes:
		return bytes.Equal(v.bytesVal, other.bytesVal)
	case KindDate, KindDateTime, KindTimestamp:
		return v.timeVal.Equal(other.timeVal)
	case KindJSON:
		return jsonEqual(v.jsonVal, other.jsonVal)
	case KindInterval:
		return v.interval == other.interval
	case KindArray, KindStruct:
		if len(v.arrVal) != len(other.arrVal) {
			return false
		}
		for i := range v.arrVal {
			if !v.arrVal[i].Equal(other.arrVal[i]) {
				return false
			}
		}
		return true
	case KindRange:
		return rangeBoundEqual(v.rangeVal.Start, other.rangeVal.Start) &&
			rangeBoundEqual(v.rangeVal.End, other.rangeVal.End)
	default:
		return false
	}
}

func rangeBoundEqual(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Compare orders two values of the same kind. Nulls order before everything;
// NULLS FIRST/LAST adjustments are applied by sort operators. The boolean
// result reports whether the pair is ordered at all.
func (v Value) Compare(other Value) (int, bool) {
	if v.IsNull() || other.IsNull() {
		switch {
		case v.IsNull() && other.IsNull():
			return 0, true
		case v.IsNull():
			return -1, true
		default:
			return 1, true
		}
	}
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindBool:
		switch {
		case v.boolVal == other.boolVal:
			return 0, true
		case !v.boolVal:
			return -1, true
		default:
			return 1, true
		}
	case KindInt64, KindTime:
		return compareOrdered(v.intVal, other.intVal), true
	case KindFloat64:
		return compareFloats(v.floatVal, other.floatVal), true
	case KindNumeric, KindBigNumeric:
		return v.decVal.Cmp(other.decVal), true
	case KindString, KindGeography:
		return strings.Compare(v.strVal, other.strVal), true
	case KindBytes:
		return bytes.Compare(v.bytesVal, other.bytesVal), true
	case KindDate, KindDateTime, KindTimestamp:
		return v.timeVal.Compare(other.timeVal), true
	case KindInterval:
		return v.interval.Compare(other.interval), true
	case KindArray:
		n := len(v.arrVal)
		if len(other.arrVal) < n {
			n = len(other.arrVal)
		}
		for i := 0; i < n; i++ {
			c, ok := v.arrVal[i].Compare(other.arrVal[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		return compareOrdered(len(v.arrVal), len(other.arrVal)), true
	default:
		return 0, false
	}
}

func compareOrdered[T int | int64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	// NaN sorts after every ordered float so that sorting stays total.
	case math.IsNaN(a) && !math.IsNaN(b):
		return 1
	case !math.IsNaN(a) && math.IsNaN(b):
		return -1
	default:
		return 0
	}
}

// AppendKey appends a canonical byte encoding of the value to key. Two values
// produce the same encoding iff they are Equal; floats contribute their bit
// patterns and composites recurse. Used for hash join, aggregate and distinct
// keys.
func (v Value) AppendKey(key []byte) []byte {
	key = append(key, byte(v.kind+2))
	switch v.kind {
	case KindUnknown, kindDefault:
		return key
	case KindBool:
		if v.boolVal {
			return append(key, 1)
		}
		return append(key, 0)
	case KindInt64, KindTime:
		return binary.BigEndian.AppendUint64(key, uint64(v.intVal))
	case KindFloat64:
		return binary.BigEndian.AppendUint64(key, math.Float64bits(v.floatVal))
	case KindNumeric, KindBigNumeric:
		s := v.decVal.String()
		key = binary.BigEndian.AppendUint32(key, uint32(len(s)))
		return append(key, s...)
	case KindString, KindGeography:
		key = binary.BigEndian.AppendUint32(key, uint32(len(v.strVal)))
		return append(key, v.strVal...)
	case KindBytes:
		key = binary.BigEndian.AppendUint32(key, uint32(len(v.bytesVal)))
		return append(key, v.bytesVal...)
	case KindDate, KindDateTime, KindTimestamp:
		return binary.BigEndian.AppendUint64(key, uint64(v.timeVal.UnixNano()))
	case KindJSON:
		b, err := json.Marshal(v.jsonVal)
		if err != nil {
			b = []byte("null")
		}
		key = binary.BigEndian.AppendUint32(key, uint32(len(b)))
		return append(key, b...)
	case KindInterval:
		key = binary.BigEndian.AppendUint32(key, uint32(v.interval.Months))
		key = binary.BigEndian.AppendUint32(key, uint32(v.interval.Days))
		return binary.BigEndian.AppendUint64(key, uint64(v.interval.Nanos))
	case KindArray, KindStruct:
		key = binary.BigEndian.AppendUint32(key, uint32(len(v.arrVal)))
		for _, e := range v.arrVal {
			key = e.AppendKey(key)
		}
		return key
	case KindRange:
		key = appendRangeBoundKey(key, v.rangeVal.Start)
		return appendRangeBoundKey(key, v.rangeVal.End)
	default:
		return key
	}
}

func appendRangeBoundKey(key []byte, bound *Value) []byte {
	if bound == nil {
		return append(key, 0)
	}
	key = append(key, 1)
	return bound.AppendKey(key)
}

// EncodeKey builds a standalone map key for the value vector.
func EncodeKey(values []Value) string {
	var key []byte
	for _, v := range values {
		key = v.AppendKey(key)
	}
	return string(key)
}

// String renders the canonical textual form used by string coercion.
func (v Value) String() string {
	switch v.kind {
	case KindUnknown:
		return "NULL"
	case kindDefault:
		return "DEFAULT"
	case KindBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case KindInt64:
		return fmt.Sprintf("%d", v.intVal)
	case KindFloat64:
		return formatFloat(v.floatVal)
	case KindNumeric, KindBigNumeric:
		return v.decVal.String()
	case KindString, KindGeography:
		return v.strVal
	case KindBytes:
		return string(bytes.ToValidUTF8(v.bytesVal, []byte("�")))
	case KindDate:
		return v.timeVal.Format("2006-01-02")
	case KindTime:
		return formatTimeOfDay(v.intVal)
	case KindDateTime:
		return v.timeVal.Format("2006-01-02 15:04:05")
	case KindTimestamp:
		return v.timeVal.UTC().Format("2006-01-02 15:04:05.999999999 -0700")
	case KindJSON:
		b, err := json.Marshal(v.jsonVal)
		if err != nil {
			return "null"
		}
		return string(b)
	case KindInterval:
		return v.interval.String()
	case KindArray:
		parts := make([]string, len(v.arrVal))
		for i, e := range v.arrVal {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindStruct:
		parts := make([]string, len(v.arrVal))
		for i, e := range v.arrVal {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindRange:
		start, end := "UNBOUNDED", "UNBOUNDED"
		if v.rangeVal.Start != nil {
			start = v.rangeVal.Start.String()
		}
		if v.rangeVal.End != nil {
			end = v.rangeVal.End.String()
		}
		return fmt.Sprintf("[%s, %s)", start, end)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("%g", f)
}

func formatTimeOfDay(nanos int64) string {
	sec := nanos / int64(time.Second)
	frac := nanos % int64(time.Second)
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if frac == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, frac)
}

// ParseJSONString decodes a JSON document into a Value payload. Failure wraps
// the original text as a JSON string.
func ParseJSONString(s string) any {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}
