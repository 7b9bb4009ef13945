package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// ErrMergeConflict means two partial solutions propose different
// changes for the same account, so they cannot share a transaction.
var ErrMergeConflict = errors.New("solver: conflicting proposals for the same account")

// Compose builds one transaction from a set of intents and the
// partial solutions that discharge them.
//
// Proposals merge under the disjoint-or-identical rule: two solutions
// may target the same account only with byte-identical changes
// (deduplicated), otherwise composition fails with ErrMergeConflict.
// Reference entries and calldata merge by key with the same rule.
func Compose(intents []types.Intent, sols []*PartialSolution) (*types.Transaction, error) {
	tx := &types.Transaction{Intents: intents}

	props := make(map[types.Address][]byte)
	for _, sol := range sols {
		for _, p := range sol.Proposals {
			enc, err := cramberry.Marshal(&p.Change)
			if err != nil {
				return nil, fmt.Errorf("solver: proposal for %s: %w", p.Address, err)
			}
			if prev, seen := props[p.Address]; seen {
				if !bytes.Equal(prev, enc) {
					return nil, fmt.Errorf("%w: %s", ErrMergeConflict, p.Address)
				}
				continue
			}
			props[p.Address] = enc
			tx.Proposals = append(tx.Proposals, p)
		}
	}
	tx.SortProposals()

	accounts := make(map[types.Address]types.Account)
	for _, sol := range sols {
		for _, ref := range sol.Accounts {
			if _, seen := accounts[ref.Address]; seen {
				continue
			}
			accounts[ref.Address] = ref.Account
			tx.Refs.Accounts = append(tx.Refs.Accounts, ref)
		}
	}

	calldata := make(map[string][]byte)
	addCalldata := func(entries []types.CalldataEntry) error {
		for _, e := range entries {
			if prev, seen := calldata[e.Name]; seen {
				if !bytes.Equal(prev, e.Value) {
					return fmt.Errorf("%w: calldata %q", ErrMergeConflict, e.Name)
				}
				continue
			}
			calldata[e.Name] = e.Value
			tx.Refs.Calldata = append(tx.Refs.Calldata, e)
		}
		return nil
	}
	for i := range intents {
		if err := addCalldata(intents[i].Calldata); err != nil {
			return nil, err
		}
	}
	for _, sol := range sols {
		if err := addCalldata(sol.Calldata); err != nil {
			return nil, err
		}
	}

	for i := range tx.Proposals {
		tx.Refs.Proposals = append(tx.Refs.Proposals, tx.Proposals[i].Address)
	}
	tx.Refs.Sort()
	return tx, nil
}

// Config configures a solver worker.
type Config struct {
	// PollInterval is the pause between empty sweeps. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
	// MaxRetryInterval caps the submit backoff. Zero means
	// DefaultMaxRetryInterval.
	MaxRetryInterval time.Duration
	// Finalize, when set, runs on each composed transaction before
	// submission. The proposal set is final at that point, so this is
	// where a solver-held key signs the transaction's signing hash.
	Finalize func(tx *types.Transaction) error
	// Logger for solving diagnostics. Nil means no logging.
	Logger *zap.Logger
}

const (
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultMaxRetryInterval = 5 * time.Second
)

// solvedIntent pairs an intent with the partial solutions discharging
// its expectation tree.
type solvedIntent struct {
	intent types.Intent
	sols   []*PartialSolution
}

// Solver is a worker that polls a ledger connection for pending
// intents, solves and composes them, and submits the composed
// transactions.
type Solver struct {
	reg      *Registry
	conn     loom.Connection
	poll     time.Duration
	rmax     time.Duration
	finalize func(tx *types.Transaction) error
	log      *zap.Logger
}

// NewSolver creates a worker over conn using the given pattern
// registry.
func NewSolver(reg *Registry, conn loom.Connection, cfg Config) *Solver {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	rmax := cfg.MaxRetryInterval
	if rmax <= 0 {
		rmax = DefaultMaxRetryInterval
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{reg: reg, conn: conn, poll: poll, rmax: rmax, finalize: cfg.Finalize, log: log}
}

// Run polls until ctx is cancelled.
func (s *Solver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Warn("solver sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one pass: fetch pending intents, greedily group the
// solvable ones into merge-compatible sets, and submit one composed
// transaction per group. Unsolvable intents stay pending for a later
// sweep (new patterns, new counterparties).
func (s *Solver) Sweep(ctx context.Context) error {
	intents, err := s.conn.PendingIntents(ctx)
	if err != nil {
		return err
	}
	if len(intents) == 0 {
		return nil
	}

	var pool []solvedIntent
	for i := range intents {
		sols, err := s.reg.SolveIntent(ctx, &intents[i])
		if err != nil {
			s.log.Debug("intent not solvable this sweep",
				zap.Stringer("intent", intents[i].Hash()), zap.Error(err))
			continue
		}
		pool = append(pool, solvedIntent{intent: intents[i], sols: sols})
	}

	// Greedy grouping in publication order: an intent joins the first
	// group it composes with, so two counterparty intents sharing
	// identical proposals land in one transaction.
	for len(pool) > 0 {
		group := []solvedIntent{pool[0]}
		rest := pool[1:]
		remaining := rest[:0]
		for _, cand := range rest {
			if composes(append(group, cand)) {
				group = append(group, cand)
			} else {
				remaining = append(remaining, cand)
			}
		}
		pool = remaining

		gi := make([]types.Intent, 0, len(group))
		var gs []*PartialSolution
		for _, sv := range group {
			gi = append(gi, sv.intent)
			gs = append(gs, sv.sols...)
		}
		tx, err := Compose(gi, gs)
		if err != nil {
			s.log.Warn("composition failed", zap.Error(err))
			continue
		}
		if s.finalize != nil {
			if err := s.finalize(tx); err != nil {
				s.log.Warn("finalization failed", zap.Error(err))
				continue
			}
			tx.Refs.Sort()
		}
		if err := s.submit(ctx, tx); err != nil {
			s.log.Warn("submission failed",
				zap.Stringer("tx", tx.Hash()), zap.Error(err))
		}
	}
	return nil
}

func composes(group []solvedIntent) bool {
	var all []*PartialSolution
	var intents []types.Intent
	for _, sv := range group {
		intents = append(intents, sv.intent)
		all = append(all, sv.sols...)
	}
	_, err := Compose(intents, all)
	return err == nil
}

// submit hands the transaction to the ledger, retrying transient
// admission failures (a full mempool) with exponential backoff.
func (s *Solver) submit(ctx context.Context, tx *types.Transaction) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = s.rmax
	policy.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(func() error {
		status, err := s.conn.SubmitTransaction(ctx, *tx)
		if err != nil {
			return err
		}
		if status.Phase == types.StatusRejected {
			// Deterministic: retrying cannot help.
			return backoff.Permanent(fmt.Errorf("solver: composed transaction rejected: %s", status.Reason))
		}
		s.log.Info("composed transaction submitted",
			zap.Stringer("tx", tx.Hash()),
			zap.Int("intents", len(tx.Intents)),
			zap.Int("proposals", len(tx.Proposals)))
		return nil
	}, backoff.WithContext(policy, ctx))
}
