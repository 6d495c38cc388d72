package yachtsql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

func demoCatalog(t *testing.T) *MemoryCatalog {
	t.Helper()
	catalog := NewMemoryCatalog()

	orders := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "id", Type: storage.Int64Type()},
		{Name: "customer_id", Type: storage.Int64Type()},
		{Name: "amount", Type: storage.Int64Type()},
		{Name: "status", Type: storage.StringType()},
	}))
	require.NoError(t, orders.PushRow([]storage.Value{
		storage.NewInt64(1), storage.NewInt64(10), storage.NewInt64(50), storage.NewString("a"),
	}))
	require.NoError(t, orders.PushRow([]storage.Value{
		storage.NewInt64(2), storage.NewInt64(20), storage.NewInt64(150), storage.NewString("b"),
	}))

	customers := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "id", Type: storage.Int64Type()},
		{Name: "name", Type: storage.StringType()},
		{Name: "country", Type: storage.StringType()},
	}))
	require.NoError(t, customers.PushRow([]storage.Value{
		storage.NewInt64(10), storage.NewString("X"), storage.NewString("USA"),
	}))
	require.NoError(t, customers.PushRow([]storage.Value{
		storage.NewInt64(20), storage.NewString("Y"), storage.NewString("EU"),
	}))

	catalog.RegisterTable("orders", orders)
	catalog.RegisterTable("customers", customers)
	return catalog
}

func demoPlan() LogicalPlan {
	ordersSchema := ir.NewPlanSchema([]ir.PlanField{
		{Name: "id", Type: storage.Int64Type(), Table: "o"},
		{Name: "customer_id", Type: storage.Int64Type(), Table: "o"},
		{Name: "amount", Type: storage.Int64Type(), Table: "o"},
		{Name: "status", Type: storage.StringType(), Table: "o"},
	})
	customersSchema := ir.NewPlanSchema([]ir.PlanField{
		{Name: "id", Type: storage.Int64Type(), Table: "c"},
		{Name: "name", Type: storage.StringType(), Table: "c"},
		{Name: "country", Type: storage.StringType(), Table: "c"},
	})
	ordersScan := &ir.Scan{Table: "orders", TableSchema: ordersSchema}
	customersScan := &ir.Scan{Table: "customers", TableSchema: customersSchema}
	join := &ir.Join{
		Left:      ordersScan,
		Right:     customersScan,
		Type:      ir.JoinInner,
		Condition: ir.Eq(ir.ColIndex("customer_id", 1), ir.ColIndex("id", 4)),
		OutSchema: ordersSchema.Concat(customersSchema),
	}
	filter := &ir.Filter{
		Input:     join,
		Predicate: ir.Eq(ir.ColIndex("country", 6), ir.Lit(storage.NewString("USA"))),
	}
	return &ir.Project{
		Input: filter,
		Exprs: []ir.Expr{ir.ColIndex("id", 0), ir.ColIndex("name", 5)},
		OutSchema: ir.NewPlanSchema([]ir.PlanField{
			{Name: "id", Type: storage.Int64Type()},
			{Name: "name", Type: storage.StringType()},
		}),
	}
}

// TestSessionExecutesFilteredJoin runs a filtered equijoin through
// the whole pipeline: the USA filter lands below the join and the result is
// the single row (1, X).
func TestSessionExecutesFilteredJoin(t *testing.T) {
	session := NewSession(demoCatalog(t))
	table, err := session.ExecuteToTable(context.Background(), demoPlan())
	require.NoError(t, err)
	require.Equal(t, 1, table.RowCount())
	rec := table.Record(0)
	assert.Equal(t, int64(1), rec.Get(0).AsInt64())
	assert.Equal(t, "X", rec.Get(1).AsString())
}

func TestSessionReturnsArrowRecords(t *testing.T) {
	session := NewSession(demoCatalog(t))
	records, err := session.Execute(context.Background(), demoPlan())
	require.NoError(t, err)
	require.Len(t, records, 1)
	defer records[0].Release()

	assert.Equal(t, int64(1), records[0].NumRows())
	assert.Equal(t, int64(2), records[0].NumCols())
	assert.Equal(t, "id", records[0].ColumnName(0))
	assert.Equal(t, "name", records[0].ColumnName(1))
}

func TestSessionOptimizePlacesFilterBelowJoin(t *testing.T) {
	session := NewSession(demoCatalog(t))
	optimized, err := session.Optimize(demoPlan())
	require.NoError(t, err)

	project, ok := optimized.(*physical.Project)
	require.True(t, ok)
	_, ok = project.Input.(*physical.HashJoin)
	assert.True(t, ok, "no residual filter above the join")
}

func TestSessionWithoutPlannerRejectsSQL(t *testing.T) {
	session := NewSession(NewMemoryCatalog())
	_, err := session.ExecuteSQL(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestCatalogIsCaseInsensitive(t *testing.T) {
	catalog := demoCatalog(t)
	_, ok := catalog.GetTable("ORDERS")
	assert.True(t, ok)
	_, ok = catalog.GetTable("orders")
	assert.True(t, ok)
	_, ok = catalog.GetTable("missing")
	assert.False(t, ok)
}

func TestCatalogStats(t *testing.T) {
	stats := demoCatalog(t).Stats()
	assert.Equal(t, 2, stats.RowCount("orders"))
	assert.Equal(t, 1000, stats.RowCount("unknown"), "default cardinality for unknown tables")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.Parallel.Workers, 0)
	assert.Greater(t, cfg.Parallel.Threshold, 0)
	assert.Equal(t, "info", cfg.Logging.Level)
}
