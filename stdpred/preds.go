package stdpred

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/intentloom/loom/types"
)

// EncodeUint encodes a balance-style value as 8 big-endian bytes, the
// layout every numeric standard module expects.
func EncodeUint(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

// DecodeUint parses a standard numeric value. Empty (absent account,
// deleted account, unset state) decodes as zero; any other length is a
// fault.
func DecodeUint(data []byte) (uint64, error) {
	switch len(data) {
	case 0:
		return 0, nil
	case 8:
		return binary.BigEndian.Uint64(data), nil
	default:
		return 0, fmt.Errorf("stdpred: numeric value must be 0 or 8 bytes, got %d", len(data))
	}
}

// constant(flag) ignores the binding and returns its inline argument:
// a single byte, 0 or 1.
func constant(args []types.ResolvedArg, _ *types.Binding) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("stdpred: constant wants 1 arg, got %d", len(args))
	}
	if len(args[0].Data) != 1 || args[0].Data[0] > 1 {
		return false, fmt.Errorf("stdpred: constant flag must be one byte 0 or 1")
	}
	return args[0].Data[0] == 1, nil
}

// immutableState() holds iff the mutation leaves the account's state
// byte-identical.
func immutableState(args []types.ResolvedArg, b *types.Binding) (bool, error) {
	if len(args) != 0 {
		return false, fmt.Errorf("stdpred: immutable-state wants no args, got %d", len(args))
	}
	if b.Trigger.Kind != types.TriggerProposal {
		return false, fmt.Errorf("stdpred: immutable-state outside a proposal trigger")
	}
	return bytes.Equal(b.OldState, b.NewState), nil
}

// immutablePredicates() holds iff the mutation leaves the account's
// guard tree in place. Creations pass (there is no prior tree);
// deletions fail (the tree is destroyed with the account).
func immutablePredicates(args []types.ResolvedArg, b *types.Binding) (bool, error) {
	if len(args) != 0 {
		return false, fmt.Errorf("stdpred: immutable-predicates wants no args, got %d", len(args))
	}
	if b.Trigger.Kind != types.TriggerProposal {
		return false, fmt.Errorf("stdpred: immutable-predicates outside a proposal trigger")
	}
	change, ok := b.Tx.Proposal(b.Account)
	if !ok {
		return false, fmt.Errorf("stdpred: no proposal for account %s under evaluation", b.Account)
	}
	switch change.Kind {
	case types.ChangeCreate:
		return true, nil
	case types.ChangeDelete:
		return false, nil
	case types.ChangeReplacePredicates:
		current, ok := b.Tx.Refs.Account(b.Account)
		if !ok {
			return false, fmt.Errorf("stdpred: account %s not in reference table", b.Account)
		}
		return change.Predicates.Equal(current.Predicates), nil
	default:
		return true, nil
	}
}

// stateNonDecreasing() holds iff the account's numeric state does not
// shrink. Absent state (creations, and deletions' nil new state)
// counts as zero, so it admits creating a wallet but not deleting a
// funded one.
func stateNonDecreasing(args []types.ResolvedArg, b *types.Binding) (bool, error) {
	if len(args) != 0 {
		return false, fmt.Errorf("stdpred: state-non-decreasing wants no args, got %d", len(args))
	}
	if b.Trigger.Kind != types.TriggerProposal {
		return false, fmt.Errorf("stdpred: state-non-decreasing outside a proposal trigger")
	}
	oldV, err := DecodeUint(b.OldState)
	if err != nil {
		return false, err
	}
	newV, err := DecodeUint(b.NewState)
	if err != nil {
		return false, err
	}
	return newV >= oldV, nil
}

// cmp lifts a binary uint64 relation into a two-argument module.
func cmp(rel func(a, b uint64) bool) func([]types.ResolvedArg, *types.Binding) (bool, error) {
	return func(args []types.ResolvedArg, _ *types.Binding) (bool, error) {
		a, b, err := twoUints(args)
		if err != nil {
			return false, err
		}
		return rel(a, b), nil
	}
}

// greaterBy(a, b, delta) holds iff a >= b + delta, without overflow.
func greaterBy(args []types.ResolvedArg, _ *types.Binding) (bool, error) {
	a, b, d, err := threeUints(args)
	if err != nil {
		return false, err
	}
	return a >= b && a-b >= d, nil
}

// lessBy(a, b, delta) holds iff a + delta <= b, without overflow.
func lessBy(args []types.ResolvedArg, _ *types.Binding) (bool, error) {
	a, b, d, err := threeUints(args)
	if err != nil {
		return false, err
	}
	return b >= a && b-a >= d, nil
}

// verifyEd25519(pubkey, signature) checks the signature over the
// governing digest: the triggering intent's hash under an intent
// trigger, the transaction's signing hash under a proposal trigger. A
// bad signature is a deliberate false; a malformed key is a fault.
func verifyEd25519(args []types.ResolvedArg, b *types.Binding) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("stdpred: verify-ed25519 wants 2 args, got %d", len(args))
	}
	pub := args[0].Data
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("stdpred: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	var msg types.Hash
	switch b.Trigger.Kind {
	case types.TriggerIntent:
		msg = b.Trigger.Intent
	case types.TriggerProposal:
		msg = b.Tx.SigningHash()
	default:
		return false, fmt.Errorf("stdpred: unknown trigger kind %d", b.Trigger.Kind)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg[:], args[1].Data), nil
}

// conserveSum(old1, new1, old2, new2, ...) holds iff the numeric sum
// over the old column equals the sum over the new column. Token
// guards use it to rule out mint and burn across a transfer set.
func conserveSum(args []types.ResolvedArg, _ *types.Binding) (bool, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return false, fmt.Errorf("stdpred: conserve-sum wants old/new pairs, got %d args", len(args))
	}
	var oldSum, newSum uint64
	for i := 0; i < len(args); i += 2 {
		o, err := DecodeUint(args[i].Data)
		if err != nil {
			return false, err
		}
		n, err := DecodeUint(args[i+1].Data)
		if err != nil {
			return false, err
		}
		if oldSum+o < oldSum || newSum+n < newSum {
			return false, fmt.Errorf("stdpred: conserve-sum overflow")
		}
		oldSum += o
		newSum += n
	}
	return oldSum == newSum, nil
}

func twoUints(args []types.ResolvedArg) (uint64, uint64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("stdpred: comparison wants 2 args, got %d", len(args))
	}
	a, err := DecodeUint(args[0].Data)
	if err != nil {
		return 0, 0, err
	}
	b, err := DecodeUint(args[1].Data)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func threeUints(args []types.ResolvedArg) (uint64, uint64, uint64, error) {
	if len(args) != 3 {
		return 0, 0, 0, fmt.Errorf("stdpred: delta comparison wants 3 args, got %d", len(args))
	}
	a, err := DecodeUint(args[0].Data)
	if err != nil {
		return 0, 0, 0, err
	}
	b, err := DecodeUint(args[1].Data)
	if err != nil {
		return 0, 0, 0, err
	}
	d, err := DecodeUint(args[2].Data)
	if err != nil {
		return 0, 0, 0, err
	}
	return a, b, d, nil
}
