package loomtest

import (
	"context"
	"crypto/ed25519"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/intentloom/loom/engine"
	"github.com/intentloom/loom/sandbox"
	"github.com/intentloom/loom/state"
	"github.com/intentloom/loom/stdpred"
	"github.com/intentloom/loom/types"
)

// StdLibRoot is the library root address test ledgers use.
var StdLibRoot = types.Address{}.Derive("stdlib")

// Wallet is a funded test account guarded by the standard
// "balance may only decrease with the owner's signature" tree.
type Wallet struct {
	Address types.Address
	Pub     ed25519.PublicKey
	Priv    ed25519.PrivateKey
	// SigName is the calldata key the wallet's guard reads the
	// owner's signature from.
	SigName string
}

// Harness wires a complete in-memory ledger for tests: seeded store,
// sandbox with the standard predicate library, and an engine.
type Harness struct {
	t      *testing.T
	Store  *state.MemStore
	Box    *sandbox.Sandbox
	Lib    stdpred.Library
	Engine *engine.Engine

	last *types.Block
}

// NewHarness builds a fresh ledger with default limits and the
// standard library at StdLibRoot.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	limits := types.DefaultLimits()
	lib := stdpred.New(StdLibRoot)
	store := state.FromGenesis(&types.GenesisDoc{
		ChainID:  "loom-test",
		Limits:   limits,
		StdLib:   lib.Root,
		Accounts: lib.GenesisAccounts(),
	})
	box := sandbox.New(sandbox.Config{Limits: limits})
	lib.Register(box.Native())
	return &Harness{
		t:      t,
		Store:  store,
		Box:    box,
		Lib:    lib,
		Engine: engine.New(store, box, engine.Config{Limits: limits}),
		last:   types.ZeroBlock(),
	}
}

// NewNode wraps the harness engine in a devnode. The caller owns
// block production (call ProduceBlock; Start is not invoked).
func (h *Harness) NewNode() *engine.Node {
	h.t.Helper()
	return engine.NewNode(h.Engine, engine.NodeConfig{})
}

// NewWallet derives a deterministic keypair from seed and funds the
// wallet directly in the store, outside any block.
func (h *Harness) NewWallet(seed string, balance uint64) *Wallet {
	h.t.Helper()
	sum := sha3.Sum256([]byte("loomtest/wallet/" + seed))
	priv := ed25519.NewKeyFromSeed(sum[:])
	pub := priv.Public().(ed25519.PublicKey)
	w := &Wallet{
		Address: types.AddressFromPublicKey(pub),
		Pub:     pub,
		Priv:    priv,
	}
	w.SigName = "sig:" + w.Address.Hex()

	diff := state.NewDiff()
	diff.Set(w.Address, types.Account{
		State:      stdpred.EncodeUint(balance),
		Predicates: h.WalletGuard(w),
	})
	h.Store.Apply(diff)
	return w
}

// WalletGuard builds the wallet tree: any mutation that does not
// decrease the balance passes; decreases need the owner's signature
// over the transaction's signing hash.
func (h *Harness) WalletGuard(w *Wallet) *types.PredicateTree {
	return types.Or(
		types.Id(types.NewPredicate(h.Lib.NonDecreasing)),
		types.Id(types.NewPredicate(h.Lib.VerifyEd25519,
			types.InlineArg(w.Pub),
			types.CalldataArg(w.SigName),
		)),
	)
}

// Balance reads a wallet's committed balance.
func (h *Harness) Balance(addr types.Address) uint64 {
	h.t.Helper()
	acc, ok := h.Store.Get(addr)
	if !ok {
		return 0
	}
	v, err := stdpred.DecodeUint(acc.State)
	if err != nil {
		h.t.Fatalf("account %s state is not numeric: %v", addr, err)
	}
	return v
}

// BuildTransfer composes a signed transfer transaction: the sender's
// balance decreases by amount, the receiver's increases, one intent
// demands sum conservation across the pair, and the sender's
// signature rides in the reference table's calldata.
func (h *Harness) BuildTransfer(from, to *Wallet, amount uint64) types.Transaction {
	h.t.Helper()
	fromBal := h.Balance(from.Address)
	toBal := h.Balance(to.Address)
	if fromBal < amount {
		h.t.Fatalf("wallet %s holds %d, cannot send %d", from.Address, fromBal, amount)
	}

	intent := types.Intent{
		Expectations: types.Id(types.NewPredicate(h.Lib.ConserveSum,
			types.AccountArg(from.Address), types.ProposalArg(from.Address),
			types.AccountArg(to.Address), types.ProposalArg(to.Address),
		)),
	}

	tx := types.Transaction{
		Intents: []types.Intent{intent},
		Proposals: []types.Proposal{
			{Address: from.Address, Change: types.ReplaceState(stdpred.EncodeUint(fromBal - amount))},
			{Address: to.Address, Change: types.ReplaceState(stdpred.EncodeUint(toBal + amount))},
		},
	}
	tx.SortProposals()

	sh := tx.SigningHash()
	tx.Refs = types.ReferenceTable{
		Proposals: []types.Address{from.Address, to.Address},
		Calldata: []types.CalldataEntry{
			{Name: from.SigName, Value: ed25519.Sign(from.Priv, sh[:])},
		},
	}
	h.AddAccountRefs(&tx,
		from.Address, to.Address,
		h.Lib.NonDecreasing, h.Lib.VerifyEd25519, h.Lib.ConserveSum,
	)
	tx.Refs.Sort()
	return tx
}

// AddAccountRefs snapshots the given accounts from the store into the
// transaction's reference table.
func (h *Harness) AddAccountRefs(tx *types.Transaction, addrs ...types.Address) {
	h.t.Helper()
	for _, addr := range addrs {
		acc, ok := h.Store.Get(addr)
		if !ok {
			h.t.Fatalf("account %s not in store", addr)
		}
		tx.Refs.Accounts = append(tx.Refs.Accounts, types.AccountRef{Address: addr, Account: acc})
	}
}

// ExecuteAndCommit runs one block with the given transactions and
// commits it.
func (h *Harness) ExecuteAndCommit(txs ...types.Transaction) *engine.BlockResult {
	h.t.Helper()
	block := types.NewBlock(h.last, txs)
	res, err := h.Engine.ExecuteBlock(context.Background(), block)
	if err != nil {
		h.t.Fatalf("ExecuteBlock (height=%d) failed: %v", block.Height, err)
	}
	if _, err := h.Engine.Commit(); err != nil {
		h.t.Fatalf("Commit failed: %v", err)
	}
	h.last = block
	return res
}

// MustAccept asserts that the transaction at index was accepted.
func (h *Harness) MustAccept(res *engine.BlockResult, index int) {
	h.t.Helper()
	for _, r := range res.Results {
		if r.Index == index {
			if !r.Accepted {
				h.t.Fatalf("tx %d rejected: %s", index, r.Reason)
			}
			return
		}
	}
	h.t.Fatalf("tx %d has no result", index)
}

// MustReject asserts that the transaction at index was rejected and
// returns the reason.
func (h *Harness) MustReject(res *engine.BlockResult, index int) string {
	h.t.Helper()
	for _, r := range res.Results {
		if r.Index == index {
			if r.Accepted {
				h.t.Fatalf("tx %d unexpectedly accepted", index)
			}
			return r.Reason
		}
	}
	h.t.Fatalf("tx %d has no result", index)
	return ""
}
