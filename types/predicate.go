package types

import (
	"bytes"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// ArgKind discriminates the encodings a predicate argument can take.
type ArgKind uint8

const (
	// ArgInline carries its payload verbatim.
	ArgInline ArgKind = 1
	// ArgAccount resolves to the current state of a referenced
	// account. The account must appear in the transaction's
	// reference table.
	ArgAccount ArgKind = 2
	// ArgProposal resolves to the state an account would have after
	// the transaction commits. The address must be proposed by the
	// transaction.
	ArgProposal ArgKind = 3
	// ArgCalldata resolves to a named blob from the transaction's
	// resolved calldata (signatures, solver hints).
	ArgCalldata ArgKind = 4
)

// Arg is one argument to a predicate instance. Arguments are the only
// channel through which a predicate module can see data beyond the
// account under evaluation, and every non-inline argument must
// pre-resolve through the transaction's reference table.
type Arg struct {
	Kind ArgKind `cramberry:"1"`
	Data []byte  `cramberry:"2"`
	Addr Address `cramberry:"3"`
	Name string  `cramberry:"4"`
}

// InlineArg builds a verbatim argument.
func InlineArg(data []byte) Arg { return Arg{Kind: ArgInline, Data: data} }

// AccountArg builds an argument resolving to an account's current state.
func AccountArg(addr Address) Arg { return Arg{Kind: ArgAccount, Addr: addr} }

// ProposalArg builds an argument resolving to an account's proposed state.
func ProposalArg(addr Address) Arg { return Arg{Kind: ArgProposal, Addr: addr} }

// CalldataArg builds an argument resolving to a named calldata blob.
func CalldataArg(name string) Arg { return Arg{Kind: ArgCalldata, Name: name} }

// ResolvedArg is an Arg with its payload resolved by the host. This is
// what actually crosses the sandbox boundary.
type ResolvedArg struct {
	Kind ArgKind `cramberry:"1"`
	Data []byte  `cramberry:"2"`
	Addr Address `cramberry:"3"`
	Name string  `cramberry:"4"`
}

// argList wraps the argument slice so the params blob is a single
// cramberry document.
type argList struct {
	Args []Arg `cramberry:"1"`
}

// EncodeArgs serializes predicate arguments into a params blob.
func EncodeArgs(args []Arg) ([]byte, error) {
	return cramberry.Marshal(&argList{Args: args})
}

// DecodeArgs parses a params blob back into predicate arguments.
func DecodeArgs(params []byte) ([]Arg, error) {
	var l argList
	if err := cramberry.Unmarshal(params, &l); err != nil {
		return nil, err
	}
	return l.Args, nil
}

// Predicate references an executable module by account address plus
// an opaque argument blob interpreted by that module. At evaluation
// time Code must resolve, through the transaction's reference table,
// to an account whose state holds a module satisfying the sandbox
// contract.
type Predicate struct {
	Code   Address `cramberry:"1"`
	Params []byte  `cramberry:"2"`
}

// NewPredicate builds a predicate instance over the module at code
// with the given arguments.
func NewPredicate(code Address, args ...Arg) Predicate {
	params, _ := EncodeArgs(args) // args are always serializable
	return Predicate{Code: code, Params: params}
}

// Equal reports deep equality of two predicates.
func (p *Predicate) Equal(o *Predicate) bool {
	return p.Code == o.Code && bytes.Equal(p.Params, o.Params)
}

// TreeKind discriminates the four shapes of a predicate tree node.
type TreeKind uint8

const (
	KindId  TreeKind = 1
	KindNot TreeKind = 2
	KindAnd TreeKind = 3
	KindOr  TreeKind = 4
)

func (k TreeKind) String() string {
	switch k {
	case KindId:
		return "Id"
	case KindNot:
		return "Not"
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	default:
		return "invalid"
	}
}

// PredicateTree is a finite boolean combinator tree over predicates.
// It is a tagged union: Kind selects which of the remaining fields
// are populated (Pred for Id, Left for Not, Left+Right for And/Or).
// Finiteness and acyclicity are structural — children are owned, so
// no back-references are possible.
//
// Trees are immutable once attached to a transaction for evaluation.
type PredicateTree struct {
	Kind  TreeKind       `cramberry:"1"`
	Pred  *Predicate     `cramberry:"2"`
	Left  *PredicateTree `cramberry:"3"`
	Right *PredicateTree `cramberry:"4"`
}

// Id builds a leaf node evaluating a single predicate.
func Id(p Predicate) *PredicateTree {
	return &PredicateTree{Kind: KindId, Pred: &p}
}

// Not builds a negation node.
func Not(t *PredicateTree) *PredicateTree {
	return &PredicateTree{Kind: KindNot, Left: t}
}

// And builds a conjunction node. Evaluation order is left to right.
func And(l, r *PredicateTree) *PredicateTree {
	return &PredicateTree{Kind: KindAnd, Left: l, Right: r}
}

// Or builds a disjunction node. Evaluation order is left to right.
func Or(l, r *PredicateTree) *PredicateTree {
	return &PredicateTree{Kind: KindOr, Left: l, Right: r}
}

// Depth returns the height of the tree. A single leaf has depth 1.
func (t *PredicateTree) Depth() uint32 {
	if t == nil {
		return 0
	}
	l, r := t.Left.Depth(), t.Right.Depth()
	if r > l {
		l = r
	}
	return l + 1
}

// Walk visits every predicate leaf in canonical (left-to-right) order.
func (t *PredicateTree) Walk(fn func(*Predicate)) {
	if t == nil {
		return
	}
	if t.Kind == KindId && t.Pred != nil {
		fn(t.Pred)
	}
	t.Left.Walk(fn)
	t.Right.Walk(fn)
}

// Equal reports deep structural equality.
func (t *PredicateTree) Equal(o *PredicateTree) bool {
	if t == nil || o == nil {
		return t == nil && o == nil
	}
	if t.Kind != o.Kind {
		return false
	}
	if (t.Pred == nil) != (o.Pred == nil) {
		return false
	}
	if t.Pred != nil && !t.Pred.Equal(o.Pred) {
		return false
	}
	return t.Left.Equal(o.Left) && t.Right.Equal(o.Right)
}

// Clone returns a deep copy of the tree.
func (t *PredicateTree) Clone() *PredicateTree {
	if t == nil {
		return nil
	}
	c := &PredicateTree{Kind: t.Kind}
	if t.Pred != nil {
		p := Predicate{Code: t.Pred.Code, Params: append([]byte(nil), t.Pred.Params...)}
		c.Pred = &p
	}
	c.Left = t.Left.Clone()
	c.Right = t.Right.Clone()
	return c
}
