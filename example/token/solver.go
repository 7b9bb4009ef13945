package token

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/solver"
	"github.com/intentloom/loom/stdpred"
	"github.com/intentloom/loom/types"
)

// PaymentIntent expresses "my balance grows by at least amount"
// without naming a payer: any solver holding funds can discharge it.
func PaymentIntent(lib stdpred.Library, recipient types.Address, amount uint64) types.Intent {
	return types.Intent{
		Expectations: types.Id(types.NewPredicate(lib.UintGreaterBy,
			types.ProposalArg(recipient),
			types.AccountArg(recipient),
			types.InlineArg(stdpred.EncodeUint(amount)),
		)),
	}
}

// payment is a decoded PaymentIntent leaf.
type payment struct {
	Recipient types.Address
	Amount    uint64
}

// recognizePayment decodes a node if it has the PaymentIntent shape.
func recognizePayment(lib stdpred.Library, node *types.PredicateTree) (payment, bool) {
	if node.Kind != types.KindId || node.Pred == nil || node.Pred.Code != lib.UintGreaterBy {
		return payment{}, false
	}
	args, err := types.DecodeArgs(node.Pred.Params)
	if err != nil || len(args) != 3 {
		return payment{}, false
	}
	if args[0].Kind != types.ArgProposal || args[1].Kind != types.ArgAccount ||
		args[2].Kind != types.ArgInline || args[0].Addr != args[1].Addr {
		return payment{}, false
	}
	amount, err := stdpred.DecodeUint(args[2].Data)
	if err != nil {
		return payment{}, false
	}
	return payment{Recipient: args[0].Addr, Amount: amount}, true
}

// TreasuryPattern builds a solver pattern discharging PaymentIntents
// from a treasury wallet the solver operator controls. The routine
// prices against committed balances; the operator's signature is
// attached by TreasuryFinalizer once the composed proposal set is
// final.
func TreasuryPattern(lib stdpred.Library, treasury Keypair, conn loom.Connection) solver.Pattern {
	kit := &Kit{Lib: lib, Conn: conn}
	taddr := treasury.Address()
	return solver.Pattern{
		Name: "token-treasury-payment",
		Recognize: func(node *types.PredicateTree) bool {
			_, ok := recognizePayment(lib, node)
			return ok
		},
		Solve: func(ctx context.Context, _ *types.Intent, _ solver.Path, node *types.PredicateTree) (*solver.PartialSolution, error) {
			pay, ok := recognizePayment(lib, node)
			if !ok {
				return nil, fmt.Errorf("token: node lost its payment shape")
			}
			tbal, err := kit.Balance(ctx, taddr)
			if err != nil {
				return nil, err
			}
			if tbal < pay.Amount {
				return nil, fmt.Errorf("token: treasury holds %d, cannot pay %d", tbal, pay.Amount)
			}
			rbal, err := kit.Balance(ctx, pay.Recipient)
			if err != nil {
				return nil, err
			}

			sol := &solver.PartialSolution{
				Proposals: []types.Proposal{
					{Address: taddr, Change: types.ReplaceState(stdpred.EncodeUint(tbal - pay.Amount))},
					{Address: pay.Recipient, Change: types.ReplaceState(stdpred.EncodeUint(rbal + pay.Amount))},
				},
			}
			if err := snapshotInto(ctx, conn, sol,
				taddr, pay.Recipient,
				lib.NonDecreasing, lib.VerifyEd25519, lib.UintGreaterBy,
			); err != nil {
				return nil, err
			}
			return sol, nil
		},
	}
}

// TreasuryFinalizer signs composed transactions with the treasury key
// so the treasury's debit passes its wallet guard.
func TreasuryFinalizer(treasury Keypair) func(tx *types.Transaction) error {
	taddr := treasury.Address()
	return func(tx *types.Transaction) error {
		sh := tx.SigningHash()
		tx.Refs.Calldata = append(tx.Refs.Calldata, types.CalldataEntry{
			Name:  SigName(taddr),
			Value: ed25519.Sign(treasury.Priv, sh[:]),
		})
		return nil
	}
}

func snapshotInto(ctx context.Context, conn loom.Connection, sol *solver.PartialSolution, addrs ...types.Address) error {
	for _, addr := range addrs {
		acc, found, err := conn.Account(ctx, addr)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("token: account %s does not exist", addr)
		}
		sol.Accounts = append(sol.Accounts, types.AccountRef{Address: addr, Account: acc})
	}
	return nil
}
