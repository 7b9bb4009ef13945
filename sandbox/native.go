package sandbox

import (
	"sync"

	"github.com/intentloom/loom/types"
)

// NativeFn is a predicate module implemented in-process. It must be
// pure: its result may depend only on args and binding. Returning an
// error (or panicking) is a fault, reported as a trap — distinct from
// a deliberate false.
type NativeFn func(args []types.ResolvedArg, binding *types.Binding) (bool, error)

// Registry maps well-known account addresses to native modules. The
// standard predicate library registers here once at bootstrap; after
// that the registry is effectively read-only.
type Registry struct {
	mu  sync.RWMutex
	fns map[types.Address]NativeFn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[types.Address]NativeFn)}
}

// Register binds a native module to an address. Re-registering an
// address replaces the previous module.
func (r *Registry) Register(addr types.Address, fn NativeFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[addr] = fn
}

// Lookup returns the native module for addr, if registered.
func (r *Registry) Lookup(addr types.Address) (NativeFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[addr]
	return fn, ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}
