// Package arrowconv converts result tables into Apache Arrow record
// batches, the session's public result format.
package arrowconv

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// ArrowType maps an engine data type to its Arrow equivalent.
func ArrowType(dt storage.DataType) (arrow.DataType, error) {
	switch dt.Kind {
	case storage.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case storage.KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case storage.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case storage.KindNumeric, storage.KindBigNumeric:
		precision, scale := int32(38), int32(9)
		if dt.Numeric != nil {
			precision, scale = dt.Numeric.Precision, dt.Numeric.Scale
		}
		return &arrow.Decimal128Type{Precision: precision, Scale: scale}, nil
	case storage.KindString, storage.KindGeography, storage.KindJSON:
		return arrow.BinaryTypes.String, nil
	case storage.KindBytes:
		return arrow.BinaryTypes.Binary, nil
	case storage.KindDate:
		return arrow.FixedWidthTypes.Date32, nil
	case storage.KindTime:
		return arrow.FixedWidthTypes.Time64ns, nil
	case storage.KindDateTime:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}, nil
	case storage.KindTimestamp:
		return &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}, nil
	case storage.KindArray:
		if dt.Elem == nil {
			return nil, common.NewInternalError("array type without element type")
		}
		elem, err := ArrowType(*dt.Elem)
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	case storage.KindStruct:
		fields := make([]arrow.Field, len(dt.Fields))
		for i, f := range dt.Fields {
			ft, err := ArrowType(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = arrow.Field{Name: f.Name, Type: ft, Nullable: true}
		}
		return arrow.StructOf(fields...), nil
	default:
		// Interval, range and unknown surface as their textual form.
		return arrow.BinaryTypes.String, nil
	}
}

// ArrowSchema maps an engine schema to an Arrow schema.
func ArrowSchema(schema storage.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(schema.Fields))
	for i, f := range schema.Fields {
		ft, err := ArrowType(f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: f.Name, Type: ft, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ToRecord converts a result table into a single Arrow record batch. The
// caller owns the returned record and must Release it.
func ToRecord(table *storage.Table) (arrow.Record, error) {
	schema, err := ArrowSchema(table.Schema())
	if err != nil {
		return nil, err
	}
	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for colIdx, col := range table.Columns() {
		if err := appendColumn(builder.Field(colIdx), col); err != nil {
			return nil, err
		}
	}
	return builder.NewRecord(), nil
}

func appendColumn(fb array.Builder, col *storage.Column) error {
	for row := 0; row < col.Len(); row++ {
		if col.IsNull(row) {
			fb.AppendNull()
			continue
		}
		if err := appendValue(fb, col.GetValue(row)); err != nil {
			return err
		}
	}
	return nil
}

func appendValue(fb array.Builder, v storage.Value) error {
	switch b := fb.(type) {
	case *array.BooleanBuilder:
		b.Append(v.AsBool())
	case *array.Int64Builder:
		b.Append(v.AsInt64())
	case *array.Float64Builder:
		b.Append(v.AsFloat64())
	case *array.Decimal128Builder:
		dt := b.Type().(*arrow.Decimal128Type)
		dec, err := decimal128.FromString(v.AsDecimal().StringFixed(dt.Scale), dt.Precision, dt.Scale)
		if err != nil {
			return err
		}
		b.Append(dec)
	case *array.StringBuilder:
		b.Append(v.String())
	case *array.BinaryBuilder:
		b.Append(v.AsBytes())
	case *array.Date32Builder:
		b.Append(arrow.Date32FromTime(v.AsTime()))
	case *array.Time64Builder:
		b.Append(arrow.Time64(v.AsTimeOfDay()))
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.AsTime().UnixNano()))
	case *array.ListBuilder:
		b.Append(true)
		for _, elem := range v.AsArray() {
			if elem.IsNull() {
				b.ValueBuilder().AppendNull()
				continue
			}
			if err := appendValue(b.ValueBuilder(), elem); err != nil {
				return err
			}
		}
	case *array.StructBuilder:
		b.Append(true)
		values := v.AsStructValues()
		for i := 0; i < b.NumField(); i++ {
			if i >= len(values) || values[i].IsNull() {
				b.FieldBuilder(i).AppendNull()
				continue
			}
			if err := appendValue(b.FieldBuilder(i), values[i]); err != nil {
				return err
			}
		}
	default:
		return common.NewInternalError("unsupported arrow builder for value")
	}
	return nil
}
