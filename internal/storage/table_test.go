package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return NewSchema([]Field{
		{Name: "id", Type: Int64Type()},
		{Name: "name", Type: StringType()},
	})
}

func TestEmptyTable(t *testing.T) {
	table := EmptyTable(testSchema())
	assert.Equal(t, 0, table.RowCount())
	assert.Equal(t, 2, table.ColumnCount())
}

// TestPushRowKeepsColumnsAligned checks that every column matches
// the table row count.
func TestPushRowKeepsColumnsAligned(t *testing.T) {
	table := EmptyTable(testSchema())
	require.NoError(t, table.PushRow([]Value{NewInt64(1), NewString("a")}))
	require.NoError(t, table.PushRow([]Value{NewNull(), NewString("b")}))
	assert.Equal(t, 2, table.RowCount())
	for _, col := range table.Columns() {
		assert.Equal(t, table.RowCount(), col.Len())
	}
}

func TestPushRowArityMismatch(t *testing.T) {
	table := EmptyTable(testSchema())
	err := table.PushRow([]Value{NewInt64(1)})
	assert.Error(t, err)
}

func TestColumnByNameIsCaseInsensitive(t *testing.T) {
	table := EmptyTable(testSchema())
	_, ok := table.ColumnByName("NAME")
	assert.True(t, ok)
	_, ok = table.ColumnByName("missing")
	assert.False(t, ok)
}

func TestRecordView(t *testing.T) {
	table := EmptyTable(testSchema())
	require.NoError(t, table.PushRow([]Value{NewInt64(7), NewString("x")}))
	rec := table.Record(0)
	assert.Equal(t, int64(7), rec.Get(0).AsInt64())
	v, ok := rec.GetByName("", "name")
	require.True(t, ok)
	assert.Equal(t, "x", v.AsString())
}

func TestNewTableValidatesLengths(t *testing.T) {
	a := NewColumn(Int64Type())
	require.NoError(t, a.Push(NewInt64(1)))
	b := NewColumn(StringType())
	_, err := NewTable(testSchema(), []*Column{a, b})
	assert.Error(t, err)
}
