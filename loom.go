// Package loom defines the core contracts of an intent-centric
// ledger whose state-transition rule is a composable boolean
// expression over sandboxed, user-deployed predicate modules.
//
// The [Invoker] interface is the sandbox boundary: a single
// deterministic, resource-bounded, read-restricted call per predicate
// leaf. The [Connection] interface is the outward surface consumed by
// solvers and RPC clients. Concrete implementations live in the
// sandbox, engine, local and grpc packages.
package loom

import (
	"context"

	"github.com/intentloom/loom/types"
)

// Module identifies executable predicate logic: the account address
// it is stored under and, for bytecode modules, the bytecode itself.
// A nil Bytecode means the address is expected to resolve in the
// invoker's native registry (the standard predicate library).
type Module struct {
	Address  types.Address
	Bytecode []byte
}

// Invoker executes one predicate module invocation inside the
// sandbox. Implementations must guarantee:
//
//   - Determinism: no ambient clock, randomness or I/O; identical
//     inputs yield identical outcomes on every conforming host.
//   - Resource bounds: a fixed budget per invocation; exceeding it
//     aborts the call with a trap outcome.
//   - Read restriction: the module sees only the supplied args and
//     binding, nothing else.
//   - Fault containment: any module fault is returned as a trap
//     outcome, never as a host panic, and never silently coerced
//     into a deliberate false.
//
// Invoke MUST be safe for concurrent use: the scheduler runs
// statically non-conflicting invocations in parallel.
type Invoker interface {
	Invoke(ctx context.Context, mod Module, args []types.ResolvedArg, binding *types.Binding) types.Outcome
}

// Connection is the surface the ledger exposes to solvers and query
// clients. Both the in-process adapter (local) and the gRPC transport
// implement it.
type Connection interface {
	// SubmitTransaction hands a fully composed transaction to the
	// ledger's mempool. The returned status is the admission result;
	// the terminal outcome is available via Status after the
	// transaction's block position executes.
	SubmitTransaction(ctx context.Context, tx types.Transaction) (types.TxStatus, error)

	// SubmitIntent publishes a raw intent for solvers to pick up.
	SubmitIntent(ctx context.Context, intent types.Intent) error

	// PendingIntents lists published intents not yet composed into a
	// committed transaction, in publication order.
	PendingIntents(ctx context.Context) ([]types.Intent, error)

	// Account reads post-commit account state.
	Account(ctx context.Context, addr types.Address) (types.Account, bool, error)

	// Status reports the accept/reject/defer outcome and reason for
	// a transaction by hash.
	Status(ctx context.Context, tx types.Hash) (types.TxStatus, error)

	Close() error
}
