// Package loomtest provides test utilities for loom development: a
// configurable sandbox mock, an engine harness with token fixtures,
// and a connection compliance suite shared by the in-process and gRPC
// transports.
package loomtest

import (
	"context"
	"sync"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Compile-time interface check.
var _ loom.Invoker = (*MockInvoker)(nil)

// MockInvoker is a configurable sandbox stand-in for evaluator and
// engine testing. Unconfigured invocations return true, so a bare
// mock accepts everything.
//
// Outcomes configures fixed results per module address; InvokeFn, when
// set, takes precedence over everything.
type MockInvoker struct {
	InvokeFn func(ctx context.Context, mod loom.Module, args []types.ResolvedArg, binding *types.Binding) types.Outcome
	Outcomes map[types.Address]types.Outcome

	mu    sync.Mutex
	calls int
	trace []types.Address
}

func (m *MockInvoker) Invoke(ctx context.Context, mod loom.Module, args []types.ResolvedArg, binding *types.Binding) types.Outcome {
	m.mu.Lock()
	m.calls++
	m.trace = append(m.trace, mod.Address)
	m.mu.Unlock()

	if m.InvokeFn != nil {
		return m.InvokeFn(ctx, mod, args, binding)
	}
	if out, ok := m.Outcomes[mod.Address]; ok {
		return out
	}
	return types.True()
}

// Calls returns the number of invocations so far.
func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Trace returns the module addresses invoked, in order.
func (m *MockInvoker) Trace() []types.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Address(nil), m.trace...)
}

// Reset clears counters and trace.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.trace = nil
}
