package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lychee-technology/yachtsql"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// newDemoCommand builds a small orders/customers dataset and runs a
// filtered equijoin through the full optimize/execute pipeline.
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a canned join query against an in-memory dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	catalog := yachtsql.NewMemoryCatalog()

	orders := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "id", Type: storage.Int64Type()},
		{Name: "customer_id", Type: storage.Int64Type()},
		{Name: "amount", Type: storage.Int64Type()},
		{Name: "status", Type: storage.StringType()},
	}))
	for _, row := range [][]storage.Value{
		{storage.NewInt64(1), storage.NewInt64(10), storage.NewInt64(50), storage.NewString("a")},
		{storage.NewInt64(2), storage.NewInt64(20), storage.NewInt64(150), storage.NewString("b")},
	} {
		if err := orders.PushRow(row); err != nil {
			return err
		}
	}
	customers := storage.EmptyTable(storage.NewSchema([]storage.Field{
		{Name: "id", Type: storage.Int64Type()},
		{Name: "name", Type: storage.StringType()},
		{Name: "country", Type: storage.StringType()},
	}))
	for _, row := range [][]storage.Value{
		{storage.NewInt64(10), storage.NewString("X"), storage.NewString("USA")},
		{storage.NewInt64(20), storage.NewString("Y"), storage.NewString("EU")},
	} {
		if err := customers.PushRow(row); err != nil {
			return err
		}
	}
	catalog.RegisterTable("orders", orders)
	catalog.RegisterTable("customers", customers)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := yachtsql.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	session := yachtsql.NewSession(catalog,
		yachtsql.WithConfig(cfg),
		yachtsql.WithLogger(logger),
	)

	plan := demoJoinPlan(orders, customers)
	records, err := session.Execute(ctx, plan)
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Println(record)
		record.Release()
	}
	return nil
}

// demoJoinPlan is the resolved plan for:
//
//	SELECT o.id, c.name
//	FROM orders o JOIN customers c ON o.customer_id = c.id
//	WHERE c.country = 'USA'
func demoJoinPlan(orders, customers *storage.Table) ir.LogicalPlan {
	ordersScan := &ir.Scan{Table: "orders", TableSchema: scanSchema("o", orders)}
	customersScan := &ir.Scan{Table: "customers", TableSchema: scanSchema("c", customers)}

	join := &ir.Join{
		Left:  ordersScan,
		Right: customersScan,
		Type:  ir.JoinInner,
		Condition: ir.Eq(
			ir.ColIndex("customer_id", 1),
			ir.ColIndex("id", 4),
		),
		OutSchema: ordersScan.TableSchema.Concat(customersScan.TableSchema),
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

func scanSchema(qualifier string, table *storage.Table) ir.PlanSchema {
	schema := table.Schema()
	fields := make([]ir.PlanField, schema.Len())
	for i, f := range schema.Fields {
		fields[i] = ir.PlanField{Name: f.Name, Type: f.Type, Table: qualifier}
	}
	return ir.NewPlanSchema(fields)
}

func loadConfig() (*yachtsql.Config, error) {
	if configPath == "" {
		return yachtsql.DefaultConfig(), nil
	}
	return yachtsql.LoadConfig(configPath)
}
