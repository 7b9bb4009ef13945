// Package token shows how a fungible token lives on loom without any
// token-specific ledger code: wallets are ordinary accounts whose
// numeric state is a balance, guarded by standard-library trees, and
// conservation is demanded per transaction by a conserve-sum intent.
package token

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/stdpred"
	"github.com/intentloom/loom/types"
)

// Keypair is a wallet owner's signing identity.
type Keypair struct {
	Pub  ed25519.PublicKey
	Priv ed25519.PrivateKey
}

// Address returns the wallet address of the keypair.
func (k Keypair) Address() types.Address {
	return types.AddressFromPublicKey(k.Pub)
}

// SigName is the calldata key a wallet's guard reads the owner
// signature from.
func SigName(addr types.Address) string {
	return "sig:" + addr.Hex()
}

// Guard builds the standard wallet tree: increases pass freely,
// anything else needs the owner's signature over the transaction's
// signing hash.
func Guard(lib stdpred.Library, pub ed25519.PublicKey) *types.PredicateTree {
	addr := types.AddressFromPublicKey(pub)
	return types.Or(
		types.Id(types.NewPredicate(lib.NonDecreasing)),
		types.Id(types.NewPredicate(lib.VerifyEd25519,
			types.InlineArg(pub),
			types.CalldataArg(SigName(addr)),
		)),
	)
}

// Kit builds token transactions against a live ledger connection.
type Kit struct {
	Lib  stdpred.Library
	Conn loom.Connection
}

// Balance reads a wallet's committed balance; an absent account is an
// empty wallet.
func (k *Kit) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	acc, found, err := k.Conn.Account(ctx, addr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return stdpred.DecodeUint(acc.State)
}

// CreateWallet submits a transaction creating an empty wallet for
// pub. Creation needs no signature: the guard's non-decreasing branch
// admits going from nothing to zero.
func (k *Kit) CreateWallet(ctx context.Context, pub ed25519.PublicKey) (types.Hash, error) {
	addr := types.AddressFromPublicKey(pub)
	tx := types.Transaction{
		Intents: []types.Intent{{
			Expectations: types.Id(types.NewPredicate(k.Lib.Constant, types.InlineArg([]byte{1}))),
		}},
		Proposals: []types.Proposal{{
			Address: addr,
			Change: types.CreateAccount(types.Account{
				State:      stdpred.EncodeUint(0),
				Predicates: Guard(k.Lib, pub),
			}),
		}},
	}
	tx.Refs.Proposals = []types.Address{addr}
	if err := k.addCodeRefs(ctx, &tx, k.Lib.Constant, k.Lib.NonDecreasing, k.Lib.VerifyEd25519); err != nil {
		return types.Hash{}, err
	}
	tx.Refs.Sort()
	return k.submit(ctx, tx)
}

// Transfer moves amount from the sender's wallet to addr, with a
// conserve-sum intent ruling out mint and burn.
func (k *Kit) Transfer(ctx context.Context, from Keypair, to types.Address, amount uint64) (types.Hash, error) {
	fromAddr := from.Address()
	fromBal, err := k.Balance(ctx, fromAddr)
	if err != nil {
		return types.Hash{}, err
	}
	if fromBal < amount {
		return types.Hash{}, fmt.Errorf("token: wallet %s holds %d, cannot send %d", fromAddr, fromBal, amount)
	}
	toBal, err := k.Balance(ctx, to)
	if err != nil {
		return types.Hash{}, err
	}

	tx := types.Transaction{
		Intents: []types.Intent{{
			Expectations: types.Id(types.NewPredicate(k.Lib.ConserveSum,
				types.AccountArg(fromAddr), types.ProposalArg(fromAddr),
				types.AccountArg(to), types.ProposalArg(to),
			)),
		}},
		Proposals: []types.Proposal{
			{Address: fromAddr, Change: types.ReplaceState(stdpred.EncodeUint(fromBal - amount))},
			{Address: to, Change: types.ReplaceState(stdpred.EncodeUint(toBal + amount))},
		},
	}
	tx.SortProposals()

	sh := tx.SigningHash()
	tx.Refs.Proposals = []types.Address{fromAddr, to}
	tx.Refs.Calldata = []types.CalldataEntry{
		{Name: SigName(fromAddr), Value: ed25519.Sign(from.Priv, sh[:])},
	}
	if err := k.addAccountRefs(ctx, &tx, fromAddr, to); err != nil {
		return types.Hash{}, err
	}
	if err := k.addCodeRefs(ctx, &tx, k.Lib.NonDecreasing, k.Lib.VerifyEd25519, k.Lib.ConserveSum); err != nil {
		return types.Hash{}, err
	}
	tx.Refs.Sort()
	return k.submit(ctx, tx)
}

func (k *Kit) submit(ctx context.Context, tx types.Transaction) (types.Hash, error) {
	hash := tx.Hash()
	status, err := k.Conn.SubmitTransaction(ctx, tx)
	if err != nil {
		return types.Hash{}, err
	}
	if status.Phase == types.StatusRejected {
		return types.Hash{}, fmt.Errorf("token: rejected at admission: %s", status.Reason)
	}
	return hash, nil
}

func (k *Kit) addAccountRefs(ctx context.Context, tx *types.Transaction, addrs ...types.Address) error {
	for _, addr := range addrs {
		acc, found, err := k.Conn.Account(ctx, addr)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("token: account %s does not exist", addr)
		}
		tx.Refs.Accounts = append(tx.Refs.Accounts, types.AccountRef{Address: addr, Account: acc})
	}
	return nil
}

// addCodeRefs snapshots standard-library accounts so guard and intent
// leaves resolve.
func (k *Kit) addCodeRefs(ctx context.Context, tx *types.Transaction, addrs ...types.Address) error {
	return k.addAccountRefs(ctx, tx, addrs...)
}
