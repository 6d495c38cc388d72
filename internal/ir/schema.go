package ir

import (
	"strings"

	"github.com/lychee-technology/yachtsql/internal/storage"
)

// PlanField is the plan-level mirror of a storage field.
type PlanField struct {
	Name  string
	Type  storage.DataType
	Table string
}

// PlanSchema is the ordered field list a plan node produces.
type PlanSchema struct {
	Fields []PlanField
}

// NewPlanSchema builds a plan schema from fields.
func NewPlanSchema(fields []PlanField) PlanSchema {
	return PlanSchema{Fields: fields}
}

// Len returns the schema width.
func (s PlanSchema) Len() int {
	return len(s.Fields)
}

// FieldIndex resolves a column reference to its offset.
func (s PlanSchema) FieldIndex(table, name string) (int, bool) {
	for i, f := range s.Fields {
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		if table != "" && f.Table != "" && !strings.EqualFold(f.Table, table) {
			continue
		}
		return i, true
	}
	return 0, false
}

// Concat appends another schema's fields after this one's.
func (s PlanSchema) Concat(other PlanSchema) PlanSchema {
	fields := make([]PlanField, 0, len(s.Fields)+len(other.Fields))
	fields = append(fields, s.Fields...)
	fields = append(fields, other.Fields...)
	return PlanSchema{Fields: fields}
}

// Project restricts the schema to the listed offsets, in order.
func (s PlanSchema) Project(indices []int) PlanSchema {
	fields := make([]PlanField, 0, len(indices))
	for _, i := range indices {
		fields = append(fields, s.Fields[i])
	}
	return PlanSchema{Fields: fields}
}

// ToStorageSchema converts mechanically to the executor-side schema,
// preserving order.
func (s PlanSchema) ToStorageSchema() storage.Schema {
	fields := make([]storage.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = storage.Field{Name: f.Name, Type: f.Type, Table: f.Table}
	}
	return storage.NewSchema(fields)
}

// FromStorageSchema lifts a storage schema to the plan level.
func FromStorageSchema(s storage.Schema) PlanSchema {
	fields := make([]PlanField, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = PlanField{Name: f.Name, Type: f.Type, Table: f.Table}
	}
	return PlanSchema{Fields: fields}
}
