package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intentloom/loom/types"
)

func addr(tag string) types.Address {
	return types.Address{}.Derive(tag)
}

func leaf(code types.Address) *types.PredicateTree {
	return types.Id(types.NewPredicate(code))
}

// leafPattern recognizes Id nodes with the given code and solves them
// with a fixed solution.
func leafPattern(name string, code types.Address, sol *PartialSolution) Pattern {
	return Pattern{
		Name: name,
		Recognize: func(node *types.PredicateTree) bool {
			return node.Kind == types.KindId && node.Pred != nil && node.Pred.Code == code
		},
		Solve: func(context.Context, *types.Intent, Path, *types.PredicateTree) (*PartialSolution, error) {
			return sol, nil
		},
	}
}

func TestPathString(t *testing.T) {
	require.Equal(t, "root", Path(nil).String())
	require.Equal(t, "L", Path{StepLeft}.String())
	require.Equal(t, "L.R.L", Path{StepLeft, StepRight, StepLeft}.String())
}

func TestMatchIntentPaths(t *testing.T) {
	x, y, z := addr("x"), addr("y"), addr("z")
	reg := NewRegistry()
	reg.Register(leafPattern("x", x, &PartialSolution{}))
	reg.Register(leafPattern("y", y, &PartialSolution{}))

	intent := &types.Intent{
		Expectations: types.And(leaf(x), types.Or(leaf(y), leaf(z))),
	}
	matches := reg.MatchIntent(intent)
	require.Len(t, matches, 2)
	require.Equal(t, "L", matches[0].Path.String())
	require.Equal(t, "x", matches[0].Pattern.Name)
	require.Equal(t, "R.L", matches[1].Path.String())
	require.Equal(t, "y", matches[1].Pattern.Name)
}

func TestMatchOutermostStopsDescent(t *testing.T) {
	x := addr("x")
	reg := NewRegistry()
	reg.Register(Pattern{
		Name:      "whole-and",
		Recognize: func(node *types.PredicateTree) bool { return node.Kind == types.KindAnd },
		Solve: func(context.Context, *types.Intent, Path, *types.PredicateTree) (*PartialSolution, error) {
			return &PartialSolution{}, nil
		},
	})
	reg.Register(leafPattern("x", x, &PartialSolution{}))

	intent := &types.Intent{Expectations: types.And(leaf(x), leaf(x))}
	matches := reg.MatchIntent(intent)
	require.Len(t, matches, 1, "a matched subtree is not descended into")
	require.Equal(t, "whole-and", matches[0].Pattern.Name)
	require.Equal(t, "root", matches[0].Path.String())
}

func TestFirstRegisteredPatternWins(t *testing.T) {
	x := addr("x")
	reg := NewRegistry()
	reg.Register(leafPattern("first", x, &PartialSolution{}))
	reg.Register(leafPattern("second", x, &PartialSolution{}))

	matches := reg.MatchIntent(&types.Intent{Expectations: leaf(x)})
	require.Len(t, matches, 1)
	require.Equal(t, "first", matches[0].Pattern.Name)
}

func TestCovered(t *testing.T) {
	x, y := addr("x"), addr("y")
	reg := NewRegistry()
	reg.Register(leafPattern("x", x, &PartialSolution{}))

	// And needs both children; only the left is matched.
	tree := types.And(leaf(x), leaf(y))
	require.False(t, Covered(tree, reg.MatchIntent(&types.Intent{Expectations: tree})))

	// Or needs either.
	tree = types.Or(leaf(x), leaf(y))
	require.True(t, Covered(tree, reg.MatchIntent(&types.Intent{Expectations: tree})))

	// Not needs its child.
	tree = types.Not(leaf(x))
	require.True(t, Covered(tree, reg.MatchIntent(&types.Intent{Expectations: tree})))
	tree = types.Not(leaf(y))
	require.False(t, Covered(tree, reg.MatchIntent(&types.Intent{Expectations: tree})))
}

func TestSolveIntentUncovered(t *testing.T) {
	reg := NewRegistry()
	intent := &types.Intent{Expectations: leaf(addr("nobody"))}
	_, err := reg.SolveIntent(context.Background(), intent)
	require.ErrorContains(t, err, "not covered")
}

func TestSolveIntentRoutineDeclines(t *testing.T) {
	x := addr("x")
	reg := NewRegistry()
	reg.Register(leafPattern("declines", x, nil))

	_, err := reg.SolveIntent(context.Background(), &types.Intent{Expectations: leaf(x)})
	require.ErrorContains(t, err, "declined")
}

func TestSolveIntentRoutineError(t *testing.T) {
	x := addr("x")
	reg := NewRegistry()
	reg.Register(Pattern{
		Name: "faulty",
		Recognize: func(node *types.PredicateTree) bool {
			return node.Kind == types.KindId && node.Pred.Code == x
		},
		Solve: func(context.Context, *types.Intent, Path, *types.PredicateTree) (*PartialSolution, error) {
			return nil, errors.New("no inventory")
		},
	})
	_, err := reg.SolveIntent(context.Background(), &types.Intent{Expectations: leaf(x)})
	require.ErrorContains(t, err, "no inventory")
}

func TestComposeMergesIdenticalProposals(t *testing.T) {
	a, b := addr("a"), addr("b")
	change := types.ReplaceState([]byte{1})
	sols := []*PartialSolution{
		{Proposals: []types.Proposal{{Address: a, Change: change}, {Address: b, Change: change}}},
		{Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{1})}}},
	}

	tx, err := Compose(nil, sols)
	require.NoError(t, err)
	require.Len(t, tx.Proposals, 2, "byte-identical duplicate deduplicated")
	require.Equal(t, []types.Address{a, b}, tx.Refs.Proposals)
	for i := 1; i < len(tx.Proposals); i++ {
		require.True(t, tx.Proposals[i-1].Address.Less(tx.Proposals[i].Address))
	}
}

func TestComposeConflictingProposals(t *testing.T) {
	a := addr("a")
	sols := []*PartialSolution{
		{Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{1})}}},
		{Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{2})}}},
	}
	_, err := Compose(nil, sols)
	require.ErrorIs(t, err, ErrMergeConflict)
}

func TestComposeConflictingCalldata(t *testing.T) {
	sols := []*PartialSolution{
		{Calldata: []types.CalldataEntry{{Name: "quote", Value: []byte{1}}}},
		{Calldata: []types.CalldataEntry{{Name: "quote", Value: []byte{2}}}},
	}
	_, err := Compose(nil, sols)
	require.ErrorIs(t, err, ErrMergeConflict)
}

func TestComposeCarriesIntentCalldata(t *testing.T) {
	x := addr("x")
	intent := types.Intent{
		Expectations: leaf(x),
		Calldata:     []types.CalldataEntry{{Name: "sig", Value: []byte{9}}},
	}
	tx, err := Compose([]types.Intent{intent}, []*PartialSolution{{
		Accounts: []types.AccountRef{{Address: x}},
	}})
	require.NoError(t, err)
	v, ok := tx.Refs.Calldatum("sig")
	require.True(t, ok)
	require.Equal(t, []byte{9}, v)
	_, ok = tx.Refs.Account(x)
	require.True(t, ok)
}

// fakeConn is a minimal in-memory Connection for Sweep tests.
type fakeConn struct {
	intents   []types.Intent
	submitted []types.Transaction
	status    types.TxStatus
}

func (f *fakeConn) SubmitTransaction(_ context.Context, tx types.Transaction) (types.TxStatus, error) {
	f.submitted = append(f.submitted, tx)
	return f.status, nil
}

func (f *fakeConn) SubmitIntent(_ context.Context, in types.Intent) error {
	f.intents = append(f.intents, in)
	return nil
}

func (f *fakeConn) PendingIntents(context.Context) ([]types.Intent, error) {
	return f.intents, nil
}

func (f *fakeConn) Account(context.Context, types.Address) (types.Account, bool, error) {
	return types.Account{}, false, nil
}

func (f *fakeConn) Status(context.Context, types.Hash) (types.TxStatus, error) {
	return types.TxStatus{}, nil
}

func (f *fakeConn) Close() error { return nil }

func TestSweepComposesCompatibleIntents(t *testing.T) {
	x, y, a, b := addr("x"), addr("y"), addr("a"), addr("b")
	reg := NewRegistry()
	reg.Register(leafPattern("x", x, &PartialSolution{
		Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{1})}},
	}))
	reg.Register(leafPattern("y", y, &PartialSolution{
		Proposals: []types.Proposal{{Address: b, Change: types.ReplaceState([]byte{2})}},
	}))

	conn := &fakeConn{
		intents: []types.Intent{
			{Expectations: leaf(x)},
			{Expectations: leaf(y)},
			{Expectations: leaf(addr("unsolvable"))},
		},
		status: types.TxStatus{Phase: types.StatusPending},
	}
	s := NewSolver(reg, conn, Config{})

	require.NoError(t, s.Sweep(context.Background()))
	require.Len(t, conn.submitted, 1, "disjoint solutions share one transaction")
	tx := conn.submitted[0]
	require.Len(t, tx.Intents, 2)
	require.Len(t, tx.Proposals, 2)
}

func TestSweepSplitsConflictingIntents(t *testing.T) {
	x, y, a := addr("x"), addr("y"), addr("a")
	reg := NewRegistry()
	reg.Register(leafPattern("x", x, &PartialSolution{
		Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{1})}},
	}))
	reg.Register(leafPattern("y", y, &PartialSolution{
		Proposals: []types.Proposal{{Address: a, Change: types.ReplaceState([]byte{2})}},
	}))

	conn := &fakeConn{
		intents: []types.Intent{
			{Expectations: leaf(x)},
			{Expectations: leaf(y)},
		},
		status: types.TxStatus{Phase: types.StatusPending},
	}
	s := NewSolver(reg, conn, Config{})

	require.NoError(t, s.Sweep(context.Background()))
	require.Len(t, conn.submitted, 2, "conflicting proposals cannot share a transaction")
}

func TestSweepFinalizeHook(t *testing.T) {
	x := addr("x")
	reg := NewRegistry()
	reg.Register(leafPattern("x", x, &PartialSolution{}))

	conn := &fakeConn{
		intents: []types.Intent{{Expectations: leaf(x)}},
		status:  types.TxStatus{Phase: types.StatusPending},
	}
	s := NewSolver(reg, conn, Config{
		Finalize: func(tx *types.Transaction) error {
			tx.Refs.Calldata = append(tx.Refs.Calldata, types.CalldataEntry{
				Name: "solver-sig", Value: []byte{7},
			})
			return nil
		},
	})

	require.NoError(t, s.Sweep(context.Background()))
	require.Len(t, conn.submitted, 1)
	_, ok := conn.submitted[0].Refs.Calldatum("solver-sig")
	require.True(t, ok, "finalize runs before submission")
}
