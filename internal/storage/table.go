package storage

import (
	"fmt"

	"github.com/lychee-technology/yachtsql/internal/common"
)

// Table is an ordered sequence of named columns sharing a schema. Every
// column has the same length.
type Table struct {
	schema  Schema
	columns []*Column
}

// EmptyTable returns a schema-initialized table with empty columns.
func EmptyTable(schema Schema) *Table {
	cols := make([]*Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = NewColumn(f.Type)
	}
	return &Table{schema: schema, columns: cols}
}

// NewTable wraps pre-built columns. The equal-length invariant is validated.
func NewTable(schema Schema, columns []*Column) (*Table, error) {
	if len(schema.Fields) != len(columns) {
		return nil, common.NewInternalError(fmt.Sprintf(
			"schema width %d does not match column count %d", len(schema.Fields), len(columns)))
	}
	for i := 1; i < len(columns); i++ {
		if columns[i].Len() != columns[0].Len() {
			return nil, common.NewLengthMismatchError(columns[0].Len(), columns[i].Len())
		}
	}
	return &Table{schema: schema, columns: columns}, nil
}

// Schema returns the table schema.
func (t *Table) Schema() Schema {
	return t.schema
}

// RowCount returns the shared column length.
func (t *Table) RowCount() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// ColumnCount returns the schema width.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// Column returns the column at offset i.
func (t *Table) Column(i int) (*Column, error) {
	if i < 0 || i >= len(t.columns) {
		return nil, common.NewOutOfBoundsError(i, len(t.columns))
	}
	return t.columns[i], nil
}

// ColumnByName resolves a column by name. Lookup is linear over the schema.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	idx, ok := t.schema.FieldIndex("", name)
	if !ok {
		return nil, false
	}
	return t.columns[idx], true
}

// Columns exposes the backing column slice.
func (t *Table) Columns() []*Column {
	return t.columns
}

// PushRow appends one value into each column in order. Arity must match the
// schema.
func (t *Table) PushRow(values []Value) error {
	if len(values) != len(t.columns) {
		return common.NewArityError("push_row", len(t.columns), len(values))
	}
	for i, v := range values {
		if err := t.columns[i].Push(v); err != nil {
			return err
		}
	}
	return nil
}

// Record returns the row-view of row i.
func (t *Table) Record(i int) Record {
	values := make([]Value, len(t.columns))
	for j, col := range t.columns {
		values[j] = col.GetValue(i)
	}
	return Record{Schema: &t.schema, Values: values}
}

// Gather builds a new table holding the selected rows of every column.
func (t *Table) Gather(indices []int) (*Table, error) {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		gathered, err := col.Gather(indices)
		if err != nil {
			return nil, err
		}
		cols[i] = gathered
	}
	return &Table{schema: t.schema, columns: cols}, nil
}

// FilterByMask keeps the rows where mask is non-null and true across every
// column.
func (t *Table) FilterByMask(mask *Column) (*Table, error) {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		filtered, err := col.FilterByMask(mask)
		if err != nil {
			return nil, err
		}
		cols[i] = filtered
	}
	return &Table{schema: t.schema, columns: cols}, nil
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		cols[i] = col.Clone()
	}
	return &Table{schema: t.schema, columns: cols}
}
