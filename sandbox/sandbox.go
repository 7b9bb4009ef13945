// Package sandbox executes predicate modules deterministically under
// hard resource bounds. It is the only place untrusted logic runs:
// every fault — budget exceeded, illegal operation, malformed return
// value — is caught at this boundary and reported as a trap outcome,
// never as a host-process fault and never as an implicit false.
//
// Two module backends share the contract: WASM bytecode executed via
// wasmer, and native Go routines registered for the standard
// predicate library's well-known addresses.
package sandbox

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Config configures a sandbox instance.
type Config struct {
	// Limits supplies the per-invocation resource bounds
	// (MaxModuleBytes, MaxMemoryPages).
	Limits types.Limits
	// CacheSize is the number of compiled modules kept in the LRU
	// cache. Zero means DefaultCacheSize.
	CacheSize int
	// Logger for fault diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// DefaultCacheSize is the compiled-module cache capacity used when
// Config.CacheSize is zero.
const DefaultCacheSize = 256

// Sandbox dispatches predicate invocations to the native registry or
// the WASM runtime. Safe for concurrent use.
type Sandbox struct {
	native *Registry
	limits types.Limits
	cache  *lru.Cache[types.Hash, []byte]
	log    *zap.Logger
}

// Compile-time interface check.
var _ loom.Invoker = (*Sandbox)(nil)

// New creates a sandbox with an empty native registry.
func New(cfg Config) *Sandbox {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[types.Hash, []byte](size) // size > 0, cannot fail
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Sandbox{
		native: NewRegistry(),
		limits: cfg.Limits,
		cache:  cache,
		log:    log,
	}
}

// Native returns the sandbox's native module registry.
func (s *Sandbox) Native() *Registry { return s.native }

// Invoke runs one predicate module invocation. The native registry
// takes precedence: an address registered there executes in-process
// regardless of the account's stored bytecode.
func (s *Sandbox) Invoke(ctx context.Context, mod loom.Module, args []types.ResolvedArg, binding *types.Binding) types.Outcome {
	if err := ctx.Err(); err != nil {
		return types.Trapped(fmt.Sprintf("invocation cancelled: %v", err))
	}

	if fn, ok := s.native.Lookup(mod.Address); ok {
		return s.invokeNative(fn, args, binding)
	}
	if len(mod.Bytecode) == 0 {
		return types.Trapped(fmt.Sprintf("account %s holds no executable module", mod.Address))
	}
	return s.invokeWasm(mod, args, binding)
}

// invokeNative runs a registered Go routine with panic containment.
func (s *Sandbox) invokeNative(fn NativeFn, args []types.ResolvedArg, binding *types.Binding) (out types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("native module panicked", zap.Any("panic", r))
			out = types.Trapped(fmt.Sprintf("module panic: %v", r))
		}
	}()
	ok, err := fn(args, binding)
	if err != nil {
		s.log.Debug("native module fault", zap.Error(err))
		return types.Trapped(err.Error())
	}
	return types.Bool(ok)
}
