package sandbox

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
	"go.uber.org/zap"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// wasmPageSize is the WASM linear memory page size in bytes.
const wasmPageSize = 64 * 1024

// WASM module ABI. A predicate module must export:
//
//	memory                                     — its linear memory
//	allocate(size u32) -> ptr u32              — host scratch allocation
//	validate(args_ptr, args_len,
//	         binding_ptr, binding_len) -> u32  — 0 false, 1 true
//
// Args and binding cross the boundary as cramberry documents, so
// modules can be produced by any toolchain that speaks the encoding.
const (
	exportMemory   = "memory"
	exportAllocate = "allocate"
	exportValidate = "validate"
)

// wireArgs wraps resolved arguments as a single cramberry document.
type wireArgs struct {
	Args []types.ResolvedArg `cramberry:"1"`
}

// invokeWasm compiles (or fetches from cache), instantiates and runs
// a bytecode module. Every failure path is a trap outcome.
func (s *Sandbox) invokeWasm(mod loom.Module, args []types.ResolvedArg, binding *types.Binding) (out types.Outcome) {
	// The wasmer runtime crosses a cgo boundary; contain anything it
	// throws at the sandbox edge.
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("wasm runtime panicked",
				zap.Stringer("module", mod.Address), zap.Any("panic", r))
			out = types.Trapped(fmt.Sprintf("wasm runtime fault: %v", r))
		}
	}()

	if uint64(len(mod.Bytecode)) > s.limits.MaxModuleBytes {
		return types.Trapped(fmt.Sprintf("module %s exceeds size budget: %d > %d bytes",
			mod.Address, len(mod.Bytecode), s.limits.MaxModuleBytes))
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)

	module, err := s.compile(store, mod.Bytecode)
	if err != nil {
		return types.Trapped(fmt.Sprintf("module compile: %v", err))
	}

	instance, err := wasmer.NewInstance(module, wasmer.NewImportObject())
	if err != nil {
		return types.Trapped(fmt.Sprintf("module instantiation: %v", err))
	}

	memory, err := instance.Exports.GetMemory(exportMemory)
	if err != nil {
		return types.Trapped(fmt.Sprintf("module exports no memory: %v", err))
	}
	allocate, err := instance.Exports.GetFunction(exportAllocate)
	if err != nil {
		return types.Trapped(fmt.Sprintf("module exports no allocator: %v", err))
	}
	validate, err := instance.Exports.GetFunction(exportValidate)
	if err != nil {
		return types.Trapped(fmt.Sprintf("module exports no validate entry point: %v", err))
	}

	argsDoc, err := cramberry.Marshal(&wireArgs{Args: args})
	if err != nil {
		return types.Trapped(fmt.Sprintf("args marshal: %v", err))
	}
	bindingDoc, err := cramberry.Marshal(binding)
	if err != nil {
		return types.Trapped(fmt.Sprintf("binding marshal: %v", err))
	}

	deliver := func(doc []byte) (int32, error) {
		raw, err := allocate(int32(len(doc)))
		if err != nil {
			return 0, fmt.Errorf("allocate: %w", err)
		}
		ptr, ok := raw.(int32)
		if !ok {
			return 0, fmt.Errorf("allocate returned %T, want i32", raw)
		}
		if exceeded := s.checkMemory(memory); exceeded != nil {
			return 0, exceeded
		}
		data := memory.Data()
		if int(ptr) < 0 || int(ptr)+len(doc) > len(data) {
			return 0, fmt.Errorf("allocation out of bounds: ptr=%d len=%d", ptr, len(doc))
		}
		copy(data[ptr:], doc)
		return ptr, nil
	}

	argsPtr, err := deliver(argsDoc)
	if err != nil {
		return types.Trapped(err.Error())
	}
	bindingPtr, err := deliver(bindingDoc)
	if err != nil {
		return types.Trapped(err.Error())
	}

	raw, err := validate(argsPtr, int32(len(argsDoc)), bindingPtr, int32(len(bindingDoc)))
	if err != nil {
		// Runtime traps (unreachable, out-of-bounds, stack overflow)
		// surface here.
		s.log.Debug("wasm module trapped",
			zap.Stringer("module", mod.Address), zap.Error(err))
		return types.Trapped(fmt.Sprintf("module execution: %v", err))
	}
	if exceeded := s.checkMemory(memory); exceeded != nil {
		return types.Trapped(exceeded.Error())
	}

	ret, ok := raw.(int32)
	if !ok {
		return types.Trapped(fmt.Sprintf("validate returned %T, want i32", raw))
	}
	switch ret {
	case 0:
		return types.False()
	case 1:
		return types.True()
	default:
		// Anything else is a malformed return value, not a boolean.
		return types.Trapped(fmt.Sprintf("validate returned %d, want 0 or 1", ret))
	}
}

// compile returns a module for bytecode, going through the serialized
// module cache keyed by the bytecode hash.
func (s *Sandbox) compile(store *wasmer.Store, bytecode []byte) (*wasmer.Module, error) {
	key := types.HashOf(bytecode)
	if serialized, ok := s.cache.Get(key); ok {
		if module, err := wasmer.DeserializeModule(store, serialized); err == nil {
			return module, nil
		}
		// A stale artifact falls through to a fresh compile.
	}

	module, err := wasmer.NewModule(store, bytecode)
	if err != nil {
		return nil, err
	}
	if serialized, err := module.Serialize(); err == nil {
		s.cache.Add(key, serialized)
	}
	return module, nil
}

// checkMemory enforces the linear-memory budget after module-driven
// growth.
func (s *Sandbox) checkMemory(memory *wasmer.Memory) error {
	max := uint64(s.limits.MaxMemoryPages) * wasmPageSize
	if used := uint64(len(memory.Data())); used > max {
		return fmt.Errorf("module memory %d bytes exceeds budget %d", used, max)
	}
	return nil
}
