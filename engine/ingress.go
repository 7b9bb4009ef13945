package engine

import (
	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// CheckTransaction performs the full structural admission check: shape
// and size limits first, then reference completeness for every
// predicate tree the transaction can possibly evaluate. A transaction
// that passes resolves entirely from its own table; evaluation never
// needs a dynamic lookup.
//
// Account snapshots in the table are NOT checked against live state
// here — they are re-resolved at execution time. Ingress only
// guarantees the table's shape.
func CheckTransaction(tx *types.Transaction, limits types.Limits) error {
	if tx == nil {
		return loom.NewMalformed("transaction", "nil transaction")
	}
	if len(tx.Intents) == 0 {
		return loom.NewMalformed("transaction", "no intents")
	}
	if n := uint32(len(tx.Intents)); n > limits.MaxIntents {
		return loom.NewMalformed("transaction", "%d intents exceeds limit %d", n, limits.MaxIntents)
	}
	if n := uint32(len(tx.Proposals)); n > limits.MaxProposals {
		return loom.NewMalformed("transaction", "%d proposals exceeds limit %d", n, limits.MaxProposals)
	}

	if err := checkProposals(tx); err != nil {
		return err
	}
	if err := checkRefs(&tx.Refs); err != nil {
		return err
	}

	// Every tree that may run: guards of all mutation targets, plus
	// the expectation tree of every intent.
	for i := range tx.Proposals {
		prop := &tx.Proposals[i]
		guard, err := guardTree(tx, prop)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := checkTree(tx, guard, limits); err != nil {
				return err
			}
		}
	}
	for i := range tx.Intents {
		if tx.Intents[i].Expectations == nil {
			return loom.NewMalformed("transaction", "intent %d has no expectation tree", i)
		}
		if err := checkTree(tx, tx.Intents[i].Expectations, limits); err != nil {
			return err
		}
	}
	return nil
}

// checkProposals verifies canonical ordering, uniqueness, and change
// payload consistency.
func checkProposals(tx *types.Transaction) error {
	for i := range tx.Proposals {
		prop := &tx.Proposals[i]
		if i > 0 {
			prev := tx.Proposals[i-1].Address
			if !prev.Less(prop.Address) {
				return loom.NewMalformed("transaction", "proposals not in canonical order at %s", prop.Address)
			}
		}
		switch prop.Change.Kind {
		case types.ChangeCreate:
			if prop.Change.Account == nil {
				return loom.NewMalformed("transaction", "create proposal for %s carries no account", prop.Address)
			}
			if prop.Change.Account.Predicates == nil {
				return loom.NewMalformed("transaction", "create proposal for %s carries no guard tree", prop.Address)
			}
		case types.ChangeReplaceState:
			// Nil state is a legal replacement value.
		case types.ChangeReplacePredicates:
			if prop.Change.Predicates == nil {
				return loom.NewMalformed("transaction", "predicate replacement for %s carries no tree", prop.Address)
			}
		case types.ChangeDelete:
		default:
			return loom.NewMalformed("transaction", "unknown change kind %d for %s", prop.Change.Kind, prop.Address)
		}
		if !tx.Refs.AllowsProposal(prop.Address) {
			return &loom.UnresolvedReferenceError{Kind: "proposal", Address: prop.Address}
		}
	}
	return nil
}

// checkRefs verifies the table itself is canonically sorted with
// unique keys.
func checkRefs(refs *types.ReferenceTable) error {
	for i := 1; i < len(refs.Accounts); i++ {
		if !refs.Accounts[i-1].Address.Less(refs.Accounts[i].Address) {
			return loom.NewMalformed("transaction", "reference table accounts not in canonical order at %s", refs.Accounts[i].Address)
		}
	}
	for i := 1; i < len(refs.Proposals); i++ {
		if !refs.Proposals[i-1].Less(refs.Proposals[i]) {
			return loom.NewMalformed("transaction", "reference table proposals not in canonical order at %s", refs.Proposals[i])
		}
	}
	seen := make(map[string]struct{}, len(refs.Calldata))
	for i := range refs.Calldata {
		name := refs.Calldata[i].Name
		if name == "" {
			return loom.NewMalformed("transaction", "calldata entry %d has empty name", i)
		}
		if _, dup := seen[name]; dup {
			return loom.NewMalformed("transaction", "duplicate calldata entry %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// checkTree walks one predicate tree: depth bound, well-formed nodes,
// and a table entry for every code address and every referenced
// argument.
func checkTree(tx *types.Transaction, tree *types.PredicateTree, limits types.Limits) error {
	if d := tree.Depth(); d > limits.MaxTreeDepth {
		return loom.NewMalformed("transaction", "tree depth %d exceeds limit %d", d, limits.MaxTreeDepth)
	}
	return checkNode(tx, tree)
}

func checkNode(tx *types.Transaction, t *types.PredicateTree) error {
	switch t.Kind {
	case types.KindId:
		if t.Pred == nil {
			return loom.NewMalformed("transaction", "Id node without predicate")
		}
		return checkLeaf(tx, t.Pred)
	case types.KindNot:
		if t.Left == nil {
			return loom.NewMalformed("transaction", "Not node without child")
		}
		return checkNode(tx, t.Left)
	case types.KindAnd, types.KindOr:
		if t.Left == nil || t.Right == nil {
			return loom.NewMalformed("transaction", "%s node without both children", t.Kind)
		}
		if err := checkNode(tx, t.Left); err != nil {
			return err
		}
		return checkNode(tx, t.Right)
	default:
		return loom.NewMalformed("transaction", "unknown node kind %d", t.Kind)
	}
}

// checkLeaf verifies one predicate's code reference and every
// reference its params carry.
func checkLeaf(tx *types.Transaction, pred *types.Predicate) error {
	if _, ok := tx.Refs.Account(pred.Code); !ok {
		return &loom.UnresolvedReferenceError{Kind: "code", Address: pred.Code}
	}
	args, err := types.DecodeArgs(pred.Params)
	if err != nil {
		return loom.NewMalformed("transaction", "predicate %s params: %v", pred.Code, err)
	}
	for _, arg := range args {
		switch arg.Kind {
		case types.ArgInline:
		case types.ArgAccount:
			if _, ok := tx.Refs.Account(arg.Addr); !ok {
				return &loom.UnresolvedReferenceError{Kind: "account", Address: arg.Addr}
			}
		case types.ArgProposal:
			if _, ok := tx.Proposal(arg.Addr); !ok {
				return &loom.UnresolvedReferenceError{Kind: "proposal", Address: arg.Addr}
			}
		case types.ArgCalldata:
			// Absent calldata resolves to empty, never dangles.
			if arg.Name == "" {
				return loom.NewMalformed("transaction", "predicate %s: calldata arg without a name", pred.Code)
			}
		default:
			return loom.NewMalformed("transaction", "predicate %s: unknown arg kind %d", pred.Code, arg.Kind)
		}
	}
	return nil
}

// guardTree returns the predicate tree that must authorize prop: the
// target's current guard, or the new account's guard for a creation.
// Creating over an existing account, or mutating a missing one, is
// malformed.
func guardTree(tx *types.Transaction, prop *types.Proposal) (*types.PredicateTree, error) {
	acc, exists := tx.Refs.Account(prop.Address)
	if prop.Change.Kind == types.ChangeCreate {
		if exists {
			return nil, loom.NewMalformed("transaction", "create proposal targets existing account %s", prop.Address)
		}
		return prop.Change.Account.Predicates, nil
	}
	if !exists {
		return nil, &loom.UnresolvedReferenceError{Kind: "account", Address: prop.Address}
	}
	return acc.Predicates, nil
}
