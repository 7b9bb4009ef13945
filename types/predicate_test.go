package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func codeAddr(tag string) Address {
	return Address{}.Derive(tag)
}

func TestEncodeDecodeArgs(t *testing.T) {
	args := []Arg{
		InlineArg([]byte{1, 2, 3}),
		AccountArg(codeAddr("acct")),
		ProposalArg(codeAddr("prop")),
		CalldataArg("sig"),
	}
	blob, err := EncodeArgs(args)
	require.NoError(t, err)

	back, err := DecodeArgs(blob)
	require.NoError(t, err)
	require.Equal(t, args, back)
}

func TestDecodeArgsGarbage(t *testing.T) {
	_, err := DecodeArgs([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestTreeDepth(t *testing.T) {
	leaf := Id(NewPredicate(codeAddr("p")))
	require.Equal(t, uint32(1), leaf.Depth())
	require.Equal(t, uint32(2), Not(leaf).Depth())

	balanced := And(leaf, Or(leaf, leaf))
	require.Equal(t, uint32(3), balanced.Depth())

	var nilTree *PredicateTree
	require.Equal(t, uint32(0), nilTree.Depth())
}

func TestTreeWalkOrder(t *testing.T) {
	a := Id(NewPredicate(codeAddr("a")))
	b := Id(NewPredicate(codeAddr("b")))
	c := Id(NewPredicate(codeAddr("c")))
	tree := Or(And(a, b), Not(c))

	var visited []Address
	tree.Walk(func(p *Predicate) {
		visited = append(visited, p.Code)
	})
	require.Equal(t, []Address{codeAddr("a"), codeAddr("b"), codeAddr("c")}, visited)
}

func TestTreeEqualAndClone(t *testing.T) {
	a := Id(NewPredicate(codeAddr("a"), InlineArg([]byte{1})))
	b := Id(NewPredicate(codeAddr("b")))
	tree := And(Not(a), b)

	clone := tree.Clone()
	require.True(t, tree.Equal(clone))

	// Mutating the clone must not touch the original.
	clone.Right.Pred.Code = codeAddr("other")
	require.False(t, tree.Equal(clone))
	require.Equal(t, codeAddr("b"), tree.Right.Pred.Code)

	require.False(t, tree.Equal(Or(Not(a), b)))
	require.False(t, tree.Equal(nil))
}
