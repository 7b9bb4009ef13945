// Package stdpred is the standard predicate library: a set of native
// modules registered at well-known addresses derived from a single
// library root, covering the building blocks most guard and
// expectation trees are composed from — constants, immutability
// locks, unsigned-integer comparisons, signature verification and
// sum conservation.
//
// Library accounts carry no bytecode and an always-false guard tree,
// so they can never be mutated; the sandbox's native registry resolves
// their addresses in-process.
package stdpred

import (
	"github.com/intentloom/loom/sandbox"
	"github.com/intentloom/loom/types"
)

// Derivation tags of the library's modules, under the library root.
const (
	TagConstant            = "constant"
	TagImmutableState      = "immutable-state"
	TagImmutablePredicates = "immutable-predicates"
	TagNonDecreasing       = "state-non-decreasing"
	TagUintEqual           = "uint-equal"
	TagUintGreater         = "uint-greater"
	TagUintLess            = "uint-less"
	TagUintGreaterEqual    = "uint-greater-equal"
	TagUintLessEqual       = "uint-less-equal"
	TagUintGreaterBy       = "uint-greater-by"
	TagUintLessBy          = "uint-less-by"
	TagVerifyEd25519       = "verify-ed25519"
	TagConserveSum         = "conserve-sum"
)

// Library holds the derived address of every standard module.
type Library struct {
	Root types.Address

	Constant            types.Address
	ImmutableState      types.Address
	ImmutablePredicates types.Address
	NonDecreasing       types.Address
	UintEqual           types.Address
	UintGreater         types.Address
	UintLess            types.Address
	UintGreaterEqual    types.Address
	UintLessEqual       types.Address
	UintGreaterBy       types.Address
	UintLessBy          types.Address
	VerifyEd25519       types.Address
	ConserveSum         types.Address
}

// New derives the library's addresses from root.
func New(root types.Address) Library {
	return Library{
		Root:                root,
		Constant:            root.Derive(TagConstant),
		ImmutableState:      root.Derive(TagImmutableState),
		ImmutablePredicates: root.Derive(TagImmutablePredicates),
		NonDecreasing:       root.Derive(TagNonDecreasing),
		UintEqual:           root.Derive(TagUintEqual),
		UintGreater:         root.Derive(TagUintGreater),
		UintLess:            root.Derive(TagUintLess),
		UintGreaterEqual:    root.Derive(TagUintGreaterEqual),
		UintLessEqual:       root.Derive(TagUintLessEqual),
		UintGreaterBy:       root.Derive(TagUintGreaterBy),
		UintLessBy:          root.Derive(TagUintLessBy),
		VerifyEd25519:       root.Derive(TagVerifyEd25519),
		ConserveSum:         root.Derive(TagConserveSum),
	}
}

// Register binds every standard module into the sandbox's native
// registry.
func (l Library) Register(reg *sandbox.Registry) {
	reg.Register(l.Constant, constant)
	reg.Register(l.ImmutableState, immutableState)
	reg.Register(l.ImmutablePredicates, immutablePredicates)
	reg.Register(l.NonDecreasing, stateNonDecreasing)
	reg.Register(l.UintEqual, cmp(func(a, b uint64) bool { return a == b }))
	reg.Register(l.UintGreater, cmp(func(a, b uint64) bool { return a > b }))
	reg.Register(l.UintLess, cmp(func(a, b uint64) bool { return a < b }))
	reg.Register(l.UintGreaterEqual, cmp(func(a, b uint64) bool { return a >= b }))
	reg.Register(l.UintLessEqual, cmp(func(a, b uint64) bool { return a <= b }))
	reg.Register(l.UintGreaterBy, greaterBy)
	reg.Register(l.UintLessBy, lessBy)
	reg.Register(l.VerifyEd25519, verifyEd25519)
	reg.Register(l.ConserveSum, conserveSum)
}

// Addresses returns every module address, for reference tables.
func (l Library) Addresses() []types.Address {
	return []types.Address{
		l.Constant, l.ImmutableState, l.ImmutablePredicates,
		l.NonDecreasing,
		l.UintEqual, l.UintGreater, l.UintLess,
		l.UintGreaterEqual, l.UintLessEqual,
		l.UintGreaterBy, l.UintLessBy,
		l.VerifyEd25519, l.ConserveSum,
	}
}

// GenesisAccounts returns the library's account set: empty state,
// sealed forever behind an always-false guard.
func (l Library) GenesisAccounts() []types.GenesisAccount {
	sealed := types.Id(types.NewPredicate(l.Constant, types.InlineArg([]byte{0})))
	out := make([]types.GenesisAccount, 0, 13)
	for _, addr := range l.Addresses() {
		out = append(out, types.GenesisAccount{
			Address: addr,
			Account: types.Account{Predicates: sealed.Clone()},
		})
	}
	return out
}
