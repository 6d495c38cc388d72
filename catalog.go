package yachtsql

import (
	"strings"
	"sync"

	"github.com/lychee-technology/yachtsql/internal/storage"
)

// Catalog resolves qualified table names to materialized tables. Names are
// case-insensitive. Tables are read-only during a query; concurrent readers
// are safe.
type Catalog interface {
	GetTable(name string) (*storage.Table, bool)
}

// MemoryCatalog is the in-memory catalog implementation.
type MemoryCatalog struct {
	mu     sync.RWMutex
	tables map[string]*storage.Table
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tables: make(map[string]*storage.Table)}
}

// RegisterTable installs or replaces a table binding.
func (c *MemoryCatalog) RegisterTable(name string, table *storage.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[strings.ToUpper(name)] = table
}

// DropTable removes a table binding.
func (c *MemoryCatalog) DropTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, strings.ToUpper(name))
}

// GetTable resolves a table by name.
func (c *MemoryCatalog) GetTable(name string) (*storage.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.tables[strings.ToUpper(name)]
	return table, ok
}

// TableNames lists the registered table names.
func (c *MemoryCatalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// Stats derives a TableStats snapshot from the current catalog contents.
func (c *MemoryCatalog) Stats() *TableStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := NewTableStats()
	for name, table := range c.tables {
		stats.SetRowCount(name, table.RowCount())
	}
	return stats
}
