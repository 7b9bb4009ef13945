package eval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/eval"
	loomtest "github.com/intentloom/loom/testing"
	"github.com/intentloom/loom/types"
)

func addr(tag string) types.Address {
	return types.Address{}.Derive(tag)
}

// binding returns an intent-trigger binding whose transaction carries a
// reference snapshot for every given code address, which is what lets
// the leaves resolve.
func binding(codes ...types.Address) *types.Binding {
	tx := &types.Transaction{}
	for _, c := range codes {
		tx.Refs.Accounts = append(tx.Refs.Accounts, types.AccountRef{Address: c})
	}
	tx.Refs.Sort()
	return &types.Binding{Trigger: types.IntentTrigger(types.Hash{}), Tx: tx}
}

func leaf(code types.Address) *types.PredicateTree {
	return types.Id(types.NewPredicate(code))
}

func newEvaluator(mock *loomtest.MockInvoker) *eval.Evaluator {
	return eval.New(mock, types.DefaultLimits(), nil)
}

func TestEvaluateLeaf(t *testing.T) {
	yes, no := addr("yes"), addr("no")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		no: types.False(),
	}}
	e := newEvaluator(mock)
	b := binding(yes, no)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(), leaf(yes), b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Nil(t, pred)

	out, pred, err = e.Evaluate(context.Background(), e.NewRun(), leaf(no), b)
	require.NoError(t, err)
	require.True(t, out.IsFalse())
	require.NotNil(t, pred)
	require.Equal(t, no, pred.Code)
}

func TestAndShortCircuits(t *testing.T) {
	no, unseen := addr("no"), addr("unseen")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		no: types.False(),
	}}
	e := newEvaluator(mock)
	b := binding(no, unseen)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(),
		types.And(leaf(no), leaf(unseen)), b)
	require.NoError(t, err)
	require.True(t, out.IsFalse())
	require.Equal(t, no, pred.Code)
	require.Equal(t, []types.Address{no}, mock.Trace(), "right branch must not run")
}

func TestAndTrapStops(t *testing.T) {
	trap, unseen := addr("trap"), addr("unseen")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		trap: types.Trapped("fault"),
	}}
	e := newEvaluator(mock)
	b := binding(trap, unseen)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(),
		types.And(leaf(trap), leaf(unseen)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrap())
	require.Equal(t, trap, pred.Code)
	require.Equal(t, 1, mock.Calls())
}

func TestOrShortCircuits(t *testing.T) {
	yes, unseen := addr("yes"), addr("unseen")
	mock := &loomtest.MockInvoker{}
	e := newEvaluator(mock)
	b := binding(yes, unseen)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(),
		types.Or(leaf(yes), leaf(unseen)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Nil(t, pred)
	require.Equal(t, 1, mock.Calls())
}

func TestOrFalseFallsThrough(t *testing.T) {
	no, yes := addr("no"), addr("yes")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		no: types.False(),
	}}
	e := newEvaluator(mock)
	b := binding(no, yes)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(),
		types.Or(leaf(no), leaf(yes)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Nil(t, pred)
	require.Equal(t, []types.Address{no, yes}, mock.Trace())
}

func TestOrTrapNotMaskedByRightTrue(t *testing.T) {
	trap, yes := addr("trap"), addr("yes")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		trap: types.Trapped("fault"),
	}}
	e := newEvaluator(mock)
	b := binding(trap, yes)

	// A trap on the necessarily-evaluated left branch fails the Or
	// even though the right branch would be true.
	out, pred, err := e.Evaluate(context.Background(), e.NewRun(),
		types.Or(leaf(trap), leaf(yes)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrap())
	require.Equal(t, trap, pred.Code)
	require.Equal(t, 1, mock.Calls())
}

func TestNotSemantics(t *testing.T) {
	yes, no, trap := addr("yes"), addr("no"), addr("trap")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		no:   types.False(),
		trap: types.Trapped("fault"),
	}}
	e := newEvaluator(mock)
	b := binding(yes, no, trap)

	out, pred, err := e.Evaluate(context.Background(), e.NewRun(), types.Not(leaf(no)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Nil(t, pred)

	out, pred, err = e.Evaluate(context.Background(), e.NewRun(), types.Not(leaf(yes)), b)
	require.NoError(t, err)
	require.True(t, out.IsFalse())
	require.Equal(t, yes, pred.Code)

	// Not never converts a trap into a boolean.
	out, pred, err = e.Evaluate(context.Background(), e.NewRun(), types.Not(leaf(trap)), b)
	require.NoError(t, err)
	require.True(t, out.IsTrap())
	require.Equal(t, "fault", out.Reason)
	require.Equal(t, trap, pred.Code)
}

func TestEvaluationOrderIsLeftToRight(t *testing.T) {
	a, b2, c, d := addr("a"), addr("b"), addr("c"), addr("d")
	mock := &loomtest.MockInvoker{Outcomes: map[types.Address]types.Outcome{
		a: types.False(),
	}}
	e := newEvaluator(mock)
	b := binding(a, b2, c, d)

	tree := types.And(types.Or(leaf(a), leaf(b2)), types.And(leaf(c), leaf(d)))
	out, _, err := e.Evaluate(context.Background(), e.NewRun(), tree, b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Equal(t, []types.Address{a, b2, c, d}, mock.Trace())
}

func TestInvocationBudgetExhaustionTraps(t *testing.T) {
	a := addr("a")
	mock := &loomtest.MockInvoker{}
	limits := types.DefaultLimits()
	limits.MaxInvocations = 2
	e := eval.New(mock, limits, nil)
	b := binding(a)

	tree := types.And(leaf(a), types.And(leaf(a), leaf(a)))
	out, _, err := e.Evaluate(context.Background(), e.NewRun(), tree, b)
	require.NoError(t, err)
	require.True(t, out.IsTrap())
	require.Contains(t, out.Reason, "budget")
	require.Equal(t, 2, mock.Calls(), "the over-budget leaf must not reach the sandbox")
}

func TestBudgetSharedAcrossTrees(t *testing.T) {
	a := addr("a")
	mock := &loomtest.MockInvoker{}
	limits := types.DefaultLimits()
	limits.MaxInvocations = 3
	e := eval.New(mock, limits, nil)
	b := binding(a)

	run := e.NewRun()
	for i := 0; i < 3; i++ {
		out, _, err := e.Evaluate(context.Background(), run, leaf(a), b)
		require.NoError(t, err)
		require.True(t, out.IsTrue())
	}
	require.Equal(t, uint32(3), run.Invocations())

	out, _, err := e.Evaluate(context.Background(), run, leaf(a), b)
	require.NoError(t, err)
	require.True(t, out.IsTrap())
}

func TestDepthLimitIsStructural(t *testing.T) {
	a := addr("a")
	mock := &loomtest.MockInvoker{}
	limits := types.DefaultLimits()
	limits.MaxTreeDepth = 2
	e := eval.New(mock, limits, nil)
	b := binding(a)

	tree := types.Not(types.Not(leaf(a)))
	_, _, err := e.Evaluate(context.Background(), e.NewRun(), tree, b)
	_, ok := loom.IsMalformed(err)
	require.True(t, ok)
	require.Zero(t, mock.Calls())
}

func TestNilTreeIsStructural(t *testing.T) {
	e := newEvaluator(&loomtest.MockInvoker{})
	_, _, err := e.Evaluate(context.Background(), e.NewRun(), nil, binding())
	_, ok := loom.IsMalformed(err)
	require.True(t, ok)
}

func TestUnresolvedCodeIsStructural(t *testing.T) {
	mock := &loomtest.MockInvoker{}
	e := newEvaluator(mock)

	// The code address is absent from the reference table.
	_, _, err := e.Evaluate(context.Background(), e.NewRun(), leaf(addr("ghost")), binding())
	uref, ok := loom.IsUnresolvedReference(err)
	require.True(t, ok)
	require.Equal(t, addr("ghost"), uref.Address)
	require.Zero(t, mock.Calls())
}

func TestAbsentCalldataResolvesEmpty(t *testing.T) {
	code := addr("code")
	var got []types.ResolvedArg
	mock := &loomtest.MockInvoker{
		InvokeFn: func(_ context.Context, _ loom.Module, args []types.ResolvedArg, _ *types.Binding) types.Outcome {
			got = args
			return types.True()
		},
	}
	e := newEvaluator(mock)
	b := binding(code)

	tree := types.Id(types.NewPredicate(code, types.CalldataArg("missing-sig")))
	out, _, err := e.Evaluate(context.Background(), e.NewRun(), tree, b)
	require.NoError(t, err)
	require.True(t, out.IsTrue())
	require.Len(t, got, 1)
	require.Empty(t, got[0].Data)
}
