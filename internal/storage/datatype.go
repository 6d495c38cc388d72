package storage

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the scalar and composite kinds a DataType can take.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindNumeric
	KindBigNumeric
	KindString
	KindBytes
	KindDate
	KindTime
	KindDateTime
	KindTimestamp
	KindJSON
	KindArray
	KindStruct
	KindGeography
	KindInterval
	KindRange
)

// NumericParams carries an optional precision/scale constraint for NUMERIC.
type NumericParams struct {
	Precision int32
	Scale     int32
}

// StructField is a single named field of a struct type.
type StructField struct {
	Name string
	Type DataType
}

// DataType describes the type of a Value or Column.
type DataType struct {
	Kind    TypeKind
	Numeric *NumericParams
	Elem    *DataType
	Fields  []StructField
}

// Convenience constructors for scalar types.
func UnknownType() DataType   { return DataType{Kind: KindUnknown} }
func BoolType() DataType      { return DataType{Kind: KindBool} }
func Int64Type() DataType     { return DataType{Kind: KindInt64} }
func Float64Type() DataType   { return DataType{Kind: KindFloat64} }
func NumericType() DataType   { return DataType{Kind: KindNumeric} }
func BigNumericType() DataType { return DataType{Kind: KindBigNumeric} }
func StringType() DataType    { return DataType{Kind: KindString} }
func BytesType() DataType     { return DataType{Kind: KindBytes} }
func DateType() DataType      { return DataType{Kind: KindDate} }
func TimeType() DataType      { return DataType{Kind: KindTime} }
func DateTimeType() DataType  { return DataType{Kind: KindDateTime} }
func TimestampType() DataType { return DataType{Kind: KindTimestamp} }
func JSONType() DataType      { return DataType{Kind: KindJSON} }
func GeographyType() DataType { return DataType{Kind: KindGeography} }
func IntervalType() DataType  { return DataType{Kind: KindInterval} }

// NumericTypeWith returns a NUMERIC type constrained to the given precision and scale.
func NumericTypeWith(precision, scale int32) DataType {
	return DataType{Kind: KindNumeric, Numeric: &NumericParams{Precision: precision, Scale: scale}}
}

// ArrayType returns an array type with the given element type.
func ArrayType(elem DataType) DataType {
	return DataType{Kind: KindArray, Elem: &elem}
}

// StructType returns a struct type with the given fields.
func StructType(fields []StructField) DataType {
	return DataType{Kind: KindStruct, Fields: fields}
}

// RangeType returns a range type over the given element type.
func RangeType(elem DataType) DataType {
	return DataType{Kind: KindRange, Elem: &elem}
}

// Equal reports structural equality of two data types. NUMERIC precision and
// scale are ignored: precision changes are identity at the column level.
func (t DataType) Equal(other DataType) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindArray, KindRange:
		if t.Elem == nil || other.Elem == nil {
			return t.Elem == other.Elem
		}
		return t.Elem.Equal(*other.Elem)
	case KindStruct:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != other.Fields[i].Name {
				return false
			}
			if !t.Fields[i].Type.Equal(other.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsNumericKind reports whether the type participates in arithmetic.
func (t DataType) IsNumericKind() bool {
	switch t.Kind {
	case KindInt64, KindFloat64, KindNumeric, KindBigNumeric:
		return true
	default:
		return false
	}
}

// String renders the type in BigQuery-flavored syntax.
func (t DataType) String() string {
	switch t.Kind {
	case KindUnknown:
		return "UNKNOWN"
	case KindBool:
		return "BOOL"
	case KindInt64:
		return "INT64"
	case KindFloat64:
		return "FLOAT64"
	case KindNumeric:
		if t.Numeric != nil {
			return fmt.Sprintf("NUMERIC(%d,%d)", t.Numeric.Precision, t.Numeric.Scale)
		}
		return "NUMERIC"
	case KindBigNumeric:
		return "BIGNUMERIC"
	case KindString:
		return "STRING"
	case KindBytes:
		return "BYTES"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindDateTime:
		return "DATETIME"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindJSON:
		return "JSON"
	case KindArray:
		if t.Elem != nil {
			return fmt.Sprintf("ARRAY<%s>", t.Elem.String())
		}
		return "ARRAY"
	case KindStruct:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, fmt.Sprintf("%s %s", f.Name, f.Type.String()))
		}
		return fmt.Sprintf("STRUCT<%s>", strings.Join(parts, ", "))
	case KindGeography:
		return "GEOGRAPHY"
	case KindInterval:
		return "INTERVAL"
	case KindRange:
		if t.Elem != nil {
			return fmt.Sprintf("RANGE<%s>", t.Elem.String())
		}
		return "RANGE"
	default:
		return "UNKNOWN"
	}
}
