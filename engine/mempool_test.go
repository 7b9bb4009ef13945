package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intentloom/loom/types"
)

func poolTx(tag string) *types.Transaction {
	return &types.Transaction{
		Intents: []types.Intent{{
			Expectations: types.Id(types.NewPredicate(types.Address{}.Derive(tag))),
		}},
	}
}

func TestMempoolFIFO(t *testing.T) {
	m := NewMempool(0)
	a, b, c := poolTx("a"), poolTx("b"), poolTx("c")
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	require.NoError(t, m.Add(c))
	require.Equal(t, 3, m.Len())

	out := m.Drain(2)
	require.Equal(t, []*types.Transaction{a, b}, out)
	require.Equal(t, 1, m.Len())

	out = m.Drain(0)
	require.Equal(t, []*types.Transaction{c}, out)
	require.Zero(t, m.Len())
}

func TestMempoolDedupes(t *testing.T) {
	m := NewMempool(0)
	a := poolTx("a")
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(a), "duplicate submission is silently dropped")
	require.Equal(t, 1, m.Len())

	// Once drained, the same transaction may be submitted again.
	m.Drain(0)
	require.NoError(t, m.Add(a))
	require.Equal(t, 1, m.Len())
}

func TestMempoolCap(t *testing.T) {
	m := NewMempool(2)
	require.NoError(t, m.Add(poolTx("a")))
	require.NoError(t, m.Add(poolTx("b")))
	require.Error(t, m.Add(poolTx("c")))
}

func TestMempoolRequeueGoesFirst(t *testing.T) {
	m := NewMempool(0)
	a, b, deferred := poolTx("a"), poolTx("b"), poolTx("d")
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))

	m.Requeue([]*types.Transaction{deferred})
	out := m.Drain(0)
	require.Equal(t, []*types.Transaction{deferred, a, b}, out)
}

func TestIntentPool(t *testing.T) {
	p := NewIntentPool()
	first := types.Intent{Expectations: types.Id(types.NewPredicate(types.Address{}.Derive("first")))}
	second := types.Intent{Expectations: types.Id(types.NewPredicate(types.Address{}.Derive("second")))}

	p.Add(first)
	p.Add(second)
	p.Add(first) // dup
	require.Equal(t, 2, p.Len())

	list := p.List()
	require.Len(t, list, 2)
	require.Equal(t, first.Hash(), list[0].Hash(), "publication order preserved")

	p.Remove(first.Hash())
	list = p.List()
	require.Len(t, list, 1)
	require.Equal(t, second.Hash(), list[0].Hash())
}
