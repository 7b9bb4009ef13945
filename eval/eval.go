// Package eval implements the recursive predicate-tree evaluator.
//
// Semantics are fixed protocol constants: strict left-to-right
// evaluation with short-circuiting And/Or, Not propagating traps
// unchanged, and a trap anywhere on the necessarily-evaluated path
// failing the whole evaluation. Because leaves are pure, the final
// boolean (absent traps) is order-invariant; the order is pinned only
// so step accounting is identical on every validating node.
package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Evaluator evaluates predicate trees against a binding by invoking
// the sandbox for each leaf. Safe for concurrent use; per-transaction
// accounting lives in Run.
type Evaluator struct {
	inv    loom.Invoker
	limits types.Limits
	log    *zap.Logger
}

// New creates an evaluator. A nil logger disables logging.
func New(inv loom.Invoker, limits types.Limits, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{inv: inv, limits: limits, log: log}
}

// Run carries the invocation budget shared by every tree evaluated
// for one transaction. Not safe for concurrent use: all trees of one
// transaction evaluate sequentially in canonical order.
type Run struct {
	invocations uint32
}

// NewRun starts budget accounting for one transaction.
func (e *Evaluator) NewRun() *Run { return &Run{} }

// Invocations returns the number of sandbox invocations charged so far.
func (r *Run) Invocations() uint32 { return r.invocations }

// Evaluate evaluates tree under binding.
//
// Structural problems — nil or over-depth trees, undecodable params,
// references missing from the transaction's table — return an error
// (the transaction should have been rejected at ingress). Module
// faults and budget exhaustion return a trap outcome. The returned
// predicate, when non-nil, is the leaf that decided a false or trap
// outcome, for rejection reporting.
func (e *Evaluator) Evaluate(ctx context.Context, run *Run, tree *types.PredicateTree, binding *types.Binding) (types.Outcome, *types.Predicate, error) {
	if tree == nil {
		return types.Outcome{}, nil, loom.NewMalformed("tree", "nil tree")
	}
	if d := tree.Depth(); d > e.limits.MaxTreeDepth {
		return types.Outcome{}, nil, loom.NewMalformed("tree", "depth %d exceeds limit %d", d, e.limits.MaxTreeDepth)
	}
	return e.eval(ctx, run, tree, binding)
}

func (e *Evaluator) eval(ctx context.Context, run *Run, t *types.PredicateTree, b *types.Binding) (types.Outcome, *types.Predicate, error) {
	switch t.Kind {
	case types.KindId:
		if t.Pred == nil {
			return types.Outcome{}, nil, loom.NewMalformed("tree", "Id node without predicate")
		}
		o, err := e.leaf(ctx, run, t.Pred, b)
		if err != nil {
			return types.Outcome{}, nil, err
		}
		if o.IsTrue() {
			return o, nil, nil
		}
		return o, t.Pred, nil

	case types.KindNot:
		if t.Left == nil {
			return types.Outcome{}, nil, loom.NewMalformed("tree", "Not node without child")
		}
		o, pred, err := e.eval(ctx, run, t.Left, b)
		if err != nil {
			return o, pred, err
		}
		o = o.Negate()
		if o.IsTrue() {
			pred = nil
		}
		return o, pred, nil

	case types.KindAnd:
		if t.Left == nil || t.Right == nil {
			return types.Outcome{}, nil, loom.NewMalformed("tree", "And node without both children")
		}
		// Left first; False or Trap returns immediately without
		// touching the right branch.
		l, pred, err := e.eval(ctx, run, t.Left, b)
		if err != nil || !l.IsTrue() {
			return l, pred, err
		}
		return e.eval(ctx, run, t.Right, b)

	case types.KindOr:
		if t.Left == nil || t.Right == nil {
			return types.Outcome{}, nil, loom.NewMalformed("tree", "Or node without both children")
		}
		// Left first; True short-circuits. A trap on the left is NOT
		// masked by a later true on the right — only the
		// short-circuited branch is ever skipped.
		l, pred, err := e.eval(ctx, run, t.Left, b)
		if err != nil || l.IsTrue() || l.IsTrap() {
			return l, pred, err
		}
		return e.eval(ctx, run, t.Right, b)

	default:
		return types.Outcome{}, nil, loom.NewMalformed("tree", "unknown node kind %d", t.Kind)
	}
}

// leaf resolves and invokes a single predicate. A non-nil error is a
// structural failure; module faults come back as trap outcomes.
func (e *Evaluator) leaf(ctx context.Context, run *Run, pred *types.Predicate, b *types.Binding) (types.Outcome, error) {
	run.invocations++
	if run.invocations > e.limits.MaxInvocations {
		return types.Trapped(fmt.Sprintf("invocation budget exhausted (%d)", e.limits.MaxInvocations)), nil
	}

	codeAcc, ok := b.Tx.Refs.Account(pred.Code)
	if !ok {
		return types.Outcome{}, &loom.UnresolvedReferenceError{Kind: "code", Address: pred.Code}
	}

	args, err := e.resolveArgs(pred, b)
	if err != nil {
		return types.Outcome{}, err
	}

	out := e.inv.Invoke(ctx, loom.Module{Address: pred.Code, Bytecode: codeAcc.State}, args, b)
	if out.IsTrap() {
		e.log.Debug("predicate trapped",
			zap.Stringer("predicate", pred.Code),
			zap.String("reason", out.Reason))
	}
	return out, nil
}

// resolveArgs decodes the predicate's params and resolves every
// reference through the transaction's table. Resolution never reaches
// the account store: if it is not in the table, it does not resolve.
func (e *Evaluator) resolveArgs(pred *types.Predicate, b *types.Binding) ([]types.ResolvedArg, error) {
	args, err := types.DecodeArgs(pred.Params)
	if err != nil {
		return nil, loom.NewMalformed("transaction", "predicate %s params: %v", pred.Code, err)
	}

	resolved := make([]types.ResolvedArg, len(args))
	for i, arg := range args {
		r := types.ResolvedArg{Kind: arg.Kind, Addr: arg.Addr, Name: arg.Name}
		switch arg.Kind {
		case types.ArgInline:
			r.Data = arg.Data

		case types.ArgAccount:
			acc, ok := b.Tx.Refs.Account(arg.Addr)
			if !ok {
				return nil, &loom.UnresolvedReferenceError{Kind: "account", Address: arg.Addr}
			}
			r.Data = acc.State

		case types.ArgProposal:
			data, err := proposedState(b.Tx, arg.Addr)
			if err != nil {
				return nil, err
			}
			r.Data = data

		case types.ArgCalldata:
			// Calldata lives in the transaction itself, so an absent
			// name is not a dangling reference — it resolves to empty.
			// A signature predicate then simply fails verification.
			data, _ := b.Tx.Refs.Calldatum(arg.Name)
			r.Data = data

		default:
			return nil, loom.NewMalformed("transaction", "predicate %s: unknown arg kind %d", pred.Code, arg.Kind)
		}
		resolved[i] = r
	}
	return resolved, nil
}

// proposedState returns the state addr would hold after the
// transaction commits.
func proposedState(tx *types.Transaction, addr types.Address) ([]byte, error) {
	change, ok := tx.Proposal(addr)
	if !ok {
		return nil, &loom.UnresolvedReferenceError{Kind: "proposal", Address: addr}
	}
	switch change.Kind {
	case types.ChangeCreate:
		return change.Account.State, nil
	case types.ChangeReplaceState:
		return change.State, nil
	case types.ChangeReplacePredicates:
		// Predicates change, state does not: the proposed state is
		// the current one.
		acc, ok := tx.Refs.Account(addr)
		if !ok {
			return nil, &loom.UnresolvedReferenceError{Kind: "account", Address: addr}
		}
		return acc.State, nil
	case types.ChangeDelete:
		return nil, nil
	default:
		return nil, loom.NewMalformed("transaction", "unknown change kind %d for %s", change.Kind, addr)
	}
}
