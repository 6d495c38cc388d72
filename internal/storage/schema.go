package storage

import "strings"

// Field is one named, typed slot of a schema, optionally qualified by the
// table it originated from.
type Field struct {
	Name  string
	Type  DataType
	Table string
}

// Schema is an ordered list of fields.
type Schema struct {
	Fields []Field
}

// NewSchema builds a schema from fields.
func NewSchema(fields []Field) Schema {
	return Schema{Fields: fields}
}

// Len returns the schema width.
func (s *Schema) Len() int {
	return len(s.Fields)
}

// FieldIndex resolves a column name, optionally table-qualified, to its
// offset. Lookup is linear; the optimizer resolves indices early so this is
// off the hot path.
func (s *Schema) FieldIndex(table, name string) (int, bool) {
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

// Project returns a schema restricted to the given field offsets, in order.
func (s *Schema) Project(indices []int) Schema {
	fields := make([]Field, 0, len(indices))
	for _, i := range indices {
		fields = append(fields, s.Fields[i])
	}
	return Schema{Fields: fields}
}

// Concat returns the schema of a joined row: left fields then right fields.
func (s *Schema) Concat(other *Schema) Schema {
	fields := make([]Field, 0, len(s.Fields)+len(other.Fields))
	fields = append(fields, s.Fields...)
	fields = append(fields, other.Fields...)
	return Schema{Fields: fields}
}
