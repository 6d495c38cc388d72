// Package yachtsql is an in-process analytical SQL engine executing
// BigQuery-flavored plans over column-oriented in-memory tables. The root
// package exposes the public surface: configuration, the catalog, the
// registries and the session. Name resolution and SQL parsing live outside
// the engine; a resolver hands the session a LogicalPlan.
package yachtsql

import (
	"github.com/lychee-technology/yachtsql/internal/eval"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/ir/physical"
	"github.com/lychee-technology/yachtsql/internal/optimizer"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// Core data model.
type (
	// Value is the scalar sum type used at evaluator boundaries.
	Value = storage.Value
	// DataType describes the type of a value or column.
	DataType = storage.DataType
	// Column is a typed columnar buffer with a null bitmap.
	Column = storage.Column
	// Table is an ordered sequence of named columns sharing a schema.
	Table = storage.Table
	// Schema is the ordered field list of a table.
	Schema = storage.Schema
	// Field is one named, typed slot of a schema.
	Field = storage.Field
	// Record is a row view over values.
	Record = storage.Record
	// Interval is the BigQuery INTERVAL payload.
	Interval = storage.Interval
)

// Plan surface consumed from the resolver and produced by the optimizer.
type (
	// LogicalPlan is the relational tree the resolver produces.
	LogicalPlan = ir.LogicalPlan
	// OptimizedPlan is the physical tree the executor walks.
	OptimizedPlan = physical.Plan
	// Expr is the logical expression tree.
	Expr = ir.Expr
	// PlanSchema is the plan-level schema.
	PlanSchema = ir.PlanSchema
	// PlanField is one plan-level schema slot.
	PlanField = ir.PlanField
	// SortKey orders rows by one expression.
	SortKey = ir.SortKey
	// JoinType enumerates the supported join shapes.
	JoinType = ir.JoinType
)

// Registries captured by reference at query start.
type (
	// FunctionRegistry resolves named scalar functions and UDFs.
	FunctionRegistry = eval.FunctionRegistry
	// VariableRegistry holds query parameters or session variables.
	VariableRegistry = eval.VariableRegistry
	// ScalarFn is a named scalar function implementation.
	ScalarFn = eval.ScalarFn
)

// TableStats carries per-table row count estimates for the cost model.
type TableStats = optimizer.TableStats

// NewFunctionRegistry creates a registry pre-populated with the builtins.
func NewFunctionRegistry() *FunctionRegistry {
	return eval.NewFunctionRegistry()
}

// NewVariableRegistry creates an empty variable registry.
func NewVariableRegistry() *VariableRegistry {
	return eval.NewVariableRegistry()
}

// NewTableStats creates an empty statistics set.
func NewTableStats() *TableStats {
	return optimizer.NewTableStats()
}
