package yachtsql

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/yachtsql/internal/arrowconv"
	"github.com/lychee-technology/yachtsql/internal/executor"
	"github.com/lychee-technology/yachtsql/internal/optimizer"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// Planner turns SQL text into a resolved logical plan. Parsing and name
// resolution live outside the engine; sessions receive a Planner from the
// embedding application.
type Planner interface {
	Plan(ctx context.Context, sql string) (LogicalPlan, error)
}

// Session is the query façade: it optimizes a logical plan, executes it and
// returns Arrow record batches. The variable and function registries are
// captured by reference at query start and must not change while a query
// runs.
type Session struct {
	catalog Catalog
	stats   *TableStats
	funcs   *FunctionRegistry
	vars    *VariableRegistry
	sysVars *VariableRegistry
	planner Planner
	config  *Config
	logger  *zap.Logger
}

// SessionOption configures session construction.
type SessionOption func(*Session)

// WithPlanner attaches the SQL planner collaborator.
func WithPlanner(planner Planner) SessionOption {
	return func(s *Session) { s.planner = planner }
}

// WithConfig overrides the default config.
func WithConfig(cfg *Config) SessionOption {
	return func(s *Session) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStats overrides the optimizer's table statistics. By default the
// session derives them from the catalog when it is a MemoryCatalog.
func WithStats(stats *TableStats) SessionOption {
	return func(s *Session) { s.stats = stats }
}

// NewSession wires a session over a catalog.
func NewSession(catalog Catalog, opts ...SessionOption) *Session {
	s := &Session{
		catalog: catalog,
		funcs:   NewFunctionRegistry(),
		vars:    NewVariableRegistry(),
		sysVars: NewVariableRegistry(),
		config:  DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		if mc, ok := catalog.(*MemoryCatalog); ok {
			s.stats = mc.Stats()
		} else {
			s.stats = NewTableStats()
		}
	}
	return s
}

// Functions exposes the scalar function registry for UDF registration.
func (s *Session) Functions() *FunctionRegistry {
	return s.funcs
}

// Variables exposes the query parameter registry.
func (s *Session) Variables() *VariableRegistry {
	return s.vars
}

// SystemVariables exposes the session state registry.
func (s *Session) SystemVariables() *VariableRegistry {
	return s.sysVars
}

// ExecuteSQL parses, plans, optimizes and executes a statement, returning
// the results as Arrow record batches.
func (s *Session) ExecuteSQL(ctx context.Context, sql string) ([]arrow.Record, error) {
	if s.planner == nil {
		return nil, NewError(ErrorKindInternal, "NO_PLANNER", "session has no planner bound")
	}
	plan, err := s.planner.Plan(ctx, sql)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, plan)
}

// Execute optimizes and runs a resolved logical plan.
func (s *Session) Execute(ctx context.Context, plan LogicalPlan) ([]arrow.Record, error) {
	table, err := s.ExecuteToTable(ctx, plan)
	if err != nil {
		return nil, err
	}
	record, err := arrowconv.ToRecord(table)
	if err != nil {
		return nil, err
	}
	return []arrow.Record{record}, nil
}

// ExecuteToTable runs a plan and returns the raw result table.
func (s *Session) ExecuteToTable(ctx context.Context, plan LogicalPlan) (*storage.Table, error) {
	queryID := uuid.New()
	started := time.Now()

	opt := optimizer.New(s.stats, s.logger)
	optimized, err := opt.Optimize(plan)
	if err != nil {
		s.logger.Error("optimization failed", zap.String("queryID", queryID.String()), zap.Error(err))
		return nil, err
	}

	ex := executor.New(s.catalog, s.funcs, s.vars, s.sysVars,
		executor.WithParallelThreshold(s.config.Parallel.Threshold),
		executor.WithWorkers(s.config.Parallel.Workers),
		executor.WithLogger(s.logger),
	)
	table, err := ex.Execute(ctx, optimized)
	if err != nil {
		s.logger.Error("execution failed", zap.String("queryID", queryID.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("query executed",
		zap.String("queryID", queryID.String()),
		zap.Int("rows", table.RowCount()),
		zap.Duration("elapsed", time.Since(started)))
	return table, nil
}

// Optimize exposes the optimizer pipeline without executing, for plan
// inspection.
func (s *Session) Optimize(plan LogicalPlan) (OptimizedPlan, error) {
	return optimizer.New(s.stats, s.logger).Optimize(plan)
}

// NewLogger builds a zap logger from the logging config.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}
