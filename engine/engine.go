// Package engine is the transaction validity checker and block
// executor: ingress admission, conflict batching, parallel predicate
// evaluation within a batch, and atomic commit of the merged block
// diff.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/eval"
	"github.com/intentloom/loom/sched"
	"github.com/intentloom/loom/state"
	"github.com/intentloom/loom/types"
)

// Config configures an engine instance.
type Config struct {
	// Limits are the protocol resource bounds. Zero value means
	// types.DefaultLimits.
	Limits types.Limits
	// Workers bounds parallel evaluation within a batch. Zero means
	// GOMAXPROCS.
	Workers int
	// Logger for execution diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// TxResult is the outcome of one transaction within a block.
type TxResult struct {
	Index    int
	Hash     types.Hash
	Accepted bool
	// Reason identifies the failure for rejected transactions.
	Reason string
}

// BlockResult is the outcome of ExecuteBlock, held until Commit.
type BlockResult struct {
	Height  uint64
	Results []TxResult
	Batches int
	// Deferred transactions exceeded the batch budget for this block
	// and should be resubmitted for the next one. Deferral is not
	// rejection: nothing about their validity has been decided.
	Deferred []*types.Transaction
	// Diff is the merged state change of every accepted transaction.
	Diff *state.Diff
}

// Engine drives blocks through execute and commit against an account
// store. ExecuteBlock and Commit are sequential and guard-enforced;
// reads may run concurrently with either.
type Engine struct {
	store   state.State
	eval    *eval.Evaluator
	limits  types.Limits
	workers int
	guard   *PhaseGuard
	log     *zap.Logger

	mu      sync.Mutex
	height  uint64
	pending *BlockResult
}

// New creates an engine over store, evaluating predicates through inv.
func New(store state.State, inv loom.Invoker, cfg Config) *Engine {
	limits := cfg.Limits
	if limits == (types.Limits{}) {
		limits = types.DefaultLimits()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   store,
		eval:    eval.New(inv, limits, log),
		limits:  limits,
		workers: workers,
		guard:   NewPhaseGuard(),
		log:     log,
	}
}

// Limits returns the engine's protocol bounds.
func (e *Engine) Limits() types.Limits { return e.limits }

// Height returns the last committed height.
func (e *Engine) Height() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

// Account reads a committed account. Safe for concurrent use.
func (e *Engine) Account(addr types.Address) (types.Account, bool) {
	return e.store.Get(addr)
}

// CheckTx performs the ingress admission check against the engine's
// limits. Safe for concurrent use.
func (e *Engine) CheckTx(tx *types.Transaction) error {
	return CheckTransaction(tx, e.limits)
}

// ExecuteBlock validates every transaction of the block and stages the
// merged diff of the accepted ones. State is not modified until
// Commit.
//
// The result is deterministic in the block's transaction order: batch
// assignment depends only on declared access sets, every transaction
// of a batch evaluates against the same pre-batch view, and diffs
// merge batch by batch — conflicting transactions occupy strictly
// increasing batches in canonical order, and the diffs of
// non-conflicting transactions have disjoint write sets, so the merge
// commutes with canonical order.
func (e *Engine) ExecuteBlock(ctx context.Context, block *types.Block) (*BlockResult, error) {
	e.guard.AcquireExecute()

	res, err := e.executeBlock(ctx, block)
	if err != nil {
		e.guard.FailExecute()
		return nil, err
	}

	e.mu.Lock()
	e.pending = res
	e.mu.Unlock()

	e.guard.CompleteExecute()
	return res, nil
}

// Commit atomically applies the staged diff from the last
// ExecuteBlock and advances the height.
func (e *Engine) Commit() (*BlockResult, error) {
	e.guard.AcquireCommit()

	e.mu.Lock()
	res := e.pending
	e.pending = nil
	e.mu.Unlock()

	if res == nil {
		e.guard.CompleteCommit()
		return nil, fmt.Errorf("github.com/intentloom/loom: Commit with no staged block")
	}

	e.store.Apply(res.Diff)
	e.mu.Lock()
	e.height = res.Height
	e.mu.Unlock()

	e.guard.CompleteCommit()

	e.log.Info("block committed",
		zap.Uint64("height", res.Height),
		zap.Int("txs", len(res.Results)),
		zap.Int("batches", res.Batches),
		zap.Int("deferred", len(res.Deferred)),
		zap.Int("writes", res.Diff.Len()))
	return res, nil
}

func (e *Engine) executeBlock(ctx context.Context, block *types.Block) (*BlockResult, error) {
	res := &BlockResult{Height: block.Height, Diff: state.NewDiff()}

	// Ingress rejections never reach scheduling; accepted indexes keep
	// their block position for canonical merging.
	admitted := make([]*types.Transaction, 0, len(block.Txs))
	position := make([]int, 0, len(block.Txs))
	for i := range block.Txs {
		tx := &block.Txs[i]
		if err := CheckTransaction(tx, e.limits); err != nil {
			res.Results = append(res.Results, TxResult{
				Index: i, Hash: tx.Hash(), Reason: err.Error(),
			})
			continue
		}
		admitted = append(admitted, tx)
		position = append(position, i)
	}

	batches := sched.Partition(admitted)
	if n := uint32(len(batches)); n > e.limits.MaxBatchesPerBlock {
		for _, b := range batches[e.limits.MaxBatchesPerBlock:] {
			for _, entry := range b.Entries {
				res.Deferred = append(res.Deferred, entry.Tx)
			}
		}
		batches = batches[:e.limits.MaxBatchesPerBlock]
		e.log.Debug("batch budget exceeded, deferring overflow",
			zap.Uint32("limit", e.limits.MaxBatchesPerBlock),
			zap.Uint32("partitioned", n),
			zap.Int("deferred", len(res.Deferred)))
	}
	res.Batches = len(batches)

	for _, batch := range batches {
		// Every transaction of the batch evaluates against the same
		// view: committed state plus the staged diffs of all earlier
		// batches. Disjoint write sets make the internal order
		// irrelevant.
		view := &state.Overlay{Base: e.store, Diff: res.Diff}

		type slot struct {
			result TxResult
			diff   *state.Diff
		}
		slots := make([]slot, len(batch.Entries))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for si, entry := range batch.Entries {
			g.Go(func() error {
				// The submit-time hash, before Refresh touches the
				// table's snapshots.
				hash := entry.Tx.Hash()
				diff, rejectErr := e.runTx(gctx, view, entry.Tx)
				reason := ""
				if rejectErr != nil {
					reason = rejectErr.Error()
				}
				slots[si] = slot{
					result: TxResult{
						Index:    position[entry.Index],
						Hash:     hash,
						Accepted: diff != nil,
						Reason:   reason,
					},
					diff: diff,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, s := range slots {
			res.Results = append(res.Results, s.result)
			if s.diff != nil {
				res.Diff.Merge(s.diff)
			}
		}
	}
	return res, nil
}

// runTx validates one transaction against view and returns its diff,
// or a nil diff and the rejection error (a MalformedError,
// UnresolvedReferenceError, RejectedError or TrapError from the root
// package). All failure modes here are deterministic rejections, not
// engine faults.
func (e *Engine) runTx(ctx context.Context, view state.Reader, tx *types.Transaction) (*state.Diff, error) {
	// Re-resolve the reference table: the snapshots the submitter
	// packed may predate earlier batches of this block.
	if addr, ok := tx.Refs.Refresh(view.Get); !ok {
		return nil, &loom.UnresolvedReferenceError{Kind: "account", Address: addr}
	}

	run := e.eval.NewRun()

	// Guard tree of every mutation target first, in canonical
	// proposal order.
	for i := range tx.Proposals {
		prop := &tx.Proposals[i]
		guard, oldState, err := liveGuard(view, prop)
		if err != nil {
			return nil, err
		}
		newState, err := proposedState(view, prop)
		if err != nil {
			return nil, err
		}
		binding := &types.Binding{
			Trigger:  types.ProposalTrigger(prop.Address),
			Account:  prop.Address,
			OldState: oldState,
			NewState: newState,
			Tx:       tx,
		}
		out, pred, err := e.eval.Evaluate(ctx, run, guard, binding)
		if err != nil {
			return nil, err
		}
		if !out.IsTrue() {
			return nil, verdictError(loom.RejectedError{Account: prop.Address}, out, pred)
		}
	}

	// Then every intent's expectations.
	for i := range tx.Intents {
		in := &tx.Intents[i]
		binding := &types.Binding{
			Trigger: types.IntentTrigger(in.Hash()),
			Tx:      tx,
		}
		out, pred, err := e.eval.Evaluate(ctx, run, in.Expectations, binding)
		if err != nil {
			return nil, err
		}
		if !out.IsTrue() {
			return nil, verdictError(loom.RejectedError{Intent: in.Hash()}, out, pred)
		}
	}

	return buildDiff(view, tx), nil
}

// liveGuard resolves the tree that must authorize prop from the
// current view: the target's current guard, or the new account's own
// guard for a creation.
func liveGuard(view state.Reader, prop *types.Proposal) (*types.PredicateTree, []byte, error) {
	acc, exists := view.Get(prop.Address)
	if prop.Change.Kind == types.ChangeCreate {
		if exists {
			return nil, nil, loom.NewMalformed("transaction", "create proposal targets existing account %s", prop.Address)
		}
		return prop.Change.Account.Predicates, nil, nil
	}
	if !exists {
		return nil, nil, &loom.UnresolvedReferenceError{Kind: "account", Address: prop.Address}
	}
	return acc.Predicates, acc.State, nil
}

// proposedState computes the state prop's target holds if the
// transaction commits.
func proposedState(view state.Reader, prop *types.Proposal) ([]byte, error) {
	switch prop.Change.Kind {
	case types.ChangeCreate:
		return prop.Change.Account.State, nil
	case types.ChangeReplaceState:
		return prop.Change.State, nil
	case types.ChangeReplacePredicates:
		acc, ok := view.Get(prop.Address)
		if !ok {
			return nil, &loom.UnresolvedReferenceError{Kind: "account", Address: prop.Address}
		}
		return acc.State, nil
	case types.ChangeDelete:
		return nil, nil
	default:
		return nil, loom.NewMalformed("transaction", "unknown change kind %d for %s", prop.Change.Kind, prop.Address)
	}
}

// buildDiff materializes an accepted transaction's proposals. Callers
// have already validated every change against view.
func buildDiff(view state.Reader, tx *types.Transaction) *state.Diff {
	diff := state.NewDiff()
	for i := range tx.Proposals {
		prop := &tx.Proposals[i]
		switch prop.Change.Kind {
		case types.ChangeCreate:
			diff.Set(prop.Address, prop.Change.Account.Clone())
		case types.ChangeReplaceState:
			acc, _ := view.Get(prop.Address)
			acc = acc.Clone()
			acc.State = prop.Change.State
			diff.Set(prop.Address, acc)
		case types.ChangeReplacePredicates:
			acc, _ := view.Get(prop.Address)
			acc = acc.Clone()
			acc.Predicates = prop.Change.Predicates.Clone()
			diff.Set(prop.Address, acc)
		case types.ChangeDelete:
			diff.Remove(prop.Address)
		}
	}
	return diff
}

// verdictError maps a non-true evaluation outcome onto the exported
// taxonomy: a trap becomes a TrapError, a deliberate false the given
// RejectedError, each naming the deciding leaf predicate where the
// evaluator could determine it.
func verdictError(rej loom.RejectedError, out types.Outcome, pred *types.Predicate) error {
	if pred != nil {
		rej.Predicate = pred.Code
	}
	if out.IsTrap() {
		trap := &loom.TrapError{Predicate: rej.Predicate, Reason: out.Reason}
		if !rej.Intent.IsZero() {
			return fmt.Errorf("intent %s: %w", rej.Intent, trap)
		}
		return fmt.Errorf("account %s: %w", rej.Account, trap)
	}
	return &rej
}
