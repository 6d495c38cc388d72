package eval

import (
	"strings"
	"sync"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// ScalarFn is a named scalar function. Arity and argument types are validated
// inside the function itself.
type ScalarFn func(args []storage.Value) (storage.Value, error)

// FunctionRegistry maps upper-cased function names to implementations. It is
// captured by reference at query start and treated as immutable for the
// query's lifetime; the lock only guards registration.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]ScalarFn
}

// NewFunctionRegistry creates a registry pre-populated with the builtin
// scalar functions.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{funcs: make(map[string]ScalarFn)}
	registerBuiltins(r)
	return r
}

// Register installs or replaces a function.
func (r *FunctionRegistry) Register(name string, fn ScalarFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToUpper(name)] = fn
}

// Lookup resolves a function by name, case-insensitively.
func (r *FunctionRegistry) Lookup(name string) (ScalarFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[strings.ToUpper(name)]
	return fn, ok
}

// Call resolves and invokes a function.
func (r *FunctionRegistry) Call(name string, args []storage.Value) (storage.Value, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return storage.NewNull(), common.NewUnknownFunctionError(name)
	}
	return fn(args)
}

// VariableRegistry holds query parameters or session system variables.
type VariableRegistry struct {
	mu     sync.RWMutex
	values map[string]storage.Value
}

// NewVariableRegistry creates an empty registry.
func NewVariableRegistry() *VariableRegistry {
	return &VariableRegistry{values: make(map[string]storage.Value)}
}

// Set binds a variable.
func (r *VariableRegistry) Set(name string, v storage.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[strings.ToLower(name)] = v
}

// Get resolves a variable by name, case-insensitively.
func (r *VariableRegistry) Get(name string) (storage.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[strings.ToLower(name)]
	return v, ok
}
