// Package solver matches published intents against a registry of
// recognizable predicate patterns and composes fully covered intents
// into candidate transactions. Solvers are untrusted accelerators: a
// composed transaction is validated by the engine like any other, so
// nothing here is load-bearing for safety — only for liveness.
package solver

import (
	"context"
	"fmt"

	"github.com/intentloom/loom/types"
)

// Step is one branch choice on the way to a subtree.
type Step uint8

const (
	StepLeft  Step = 0
	StepRight Step = 1
)

// Path locates a subtree within an expectation tree, root-down.
type Path []Step

// String renders a path like "L.R.L"; the root is the empty string.
func (p Path) String() string {
	if len(p) == 0 {
		return "root"
	}
	out := make([]byte, 0, 2*len(p)-1)
	for i, s := range p {
		if i > 0 {
			out = append(out, '.')
		}
		if s == StepLeft {
			out = append(out, 'L')
		} else {
			out = append(out, 'R')
		}
	}
	return string(out)
}

// PartialSolution is what a routine contributes for one matched
// subtree: the proposals that would satisfy it, the reference entries
// those proposals and the intent's predicates need, and any calldata
// (counterparty signatures, quotes) the routine supplies.
type PartialSolution struct {
	Proposals []types.Proposal
	Accounts  []types.AccountRef
	Calldata  []types.CalldataEntry
}

// Routine produces a partial solution for a matched subtree, or nil
// if the routine cannot serve this particular instance.
type Routine func(ctx context.Context, intent *types.Intent, path Path, node *types.PredicateTree) (*PartialSolution, error)

// Pattern pairs a structural recognizer with the routine that can
// discharge what it recognizes.
type Pattern struct {
	// Name identifies the pattern in logs.
	Name string
	// Recognize reports whether the subtree is one this pattern's
	// routine knows how to satisfy.
	Recognize func(node *types.PredicateTree) bool
	// Solve produces the subtree's contribution.
	Solve Routine
}

// Registry is an ordered pattern collection. Earlier registrations
// win when several patterns recognize the same subtree.
type Registry struct {
	patterns []Pattern
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends a pattern.
func (r *Registry) Register(p Pattern) {
	r.patterns = append(r.patterns, p)
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int { return len(r.patterns) }

// Match is one recognized subtree of an intent.
type Match struct {
	Pattern *Pattern
	Path    Path
	Node    *types.PredicateTree
}

// MatchIntent walks the expectation tree depth-first and returns the
// outermost matches: once a pattern recognizes a subtree the walk
// does not descend into it, since the routine is responsible for the
// whole subtree.
func (r *Registry) MatchIntent(intent *types.Intent) []Match {
	var out []Match
	r.matchNode(intent.Expectations, nil, &out)
	return out
}

func (r *Registry) matchNode(node *types.PredicateTree, path Path, out *[]Match) {
	if node == nil {
		return
	}
	for i := range r.patterns {
		p := &r.patterns[i]
		if p.Recognize(node) {
			*out = append(*out, Match{
				Pattern: p,
				Path:    append(Path(nil), path...),
				Node:    node,
			})
			return
		}
	}
	r.matchNode(node.Left, append(path, StepLeft), out)
	r.matchNode(node.Right, append(path, StepRight), out)
}

// Covered reports whether the matches are sufficient for the whole
// tree to evaluate true once every matched subtree is discharged:
// a matched node is covered; And needs both children covered, Or
// needs either, Not needs its child. An intent that is not fully
// covered must not be composed — a partially solved transaction
// would be rejected wholesale by the engine.
func Covered(tree *types.PredicateTree, matches []Match) bool {
	return covered(tree, nil, matches)
}

func covered(node *types.PredicateTree, path Path, matches []Match) bool {
	if node == nil {
		return false
	}
	for i := range matches {
		if samePath(matches[i].Path, path) {
			return true
		}
	}
	switch node.Kind {
	case types.KindNot:
		return covered(node.Left, append(path, StepLeft), matches)
	case types.KindAnd:
		return covered(node.Left, append(path, StepLeft), matches) &&
			covered(node.Right, append(path, StepRight), matches)
	case types.KindOr:
		return covered(node.Left, append(path, StepLeft), matches) ||
			covered(node.Right, append(path, StepRight), matches)
	default:
		// An unmatched leaf is uncovered.
		return false
	}
}

func samePath(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SolveIntent matches an intent and runs every matched routine. It
// fails when the matches do not cover the tree or any routine
// declines.
func (r *Registry) SolveIntent(ctx context.Context, intent *types.Intent) ([]*PartialSolution, error) {
	matches := r.MatchIntent(intent)
	if !Covered(intent.Expectations, matches) {
		return nil, fmt.Errorf("solver: intent %s not covered by registered patterns", intent.Hash())
	}
	sols := make([]*PartialSolution, 0, len(matches))
	for _, m := range matches {
		sol, err := m.Pattern.Solve(ctx, intent, m.Path, m.Node)
		if err != nil {
			return nil, fmt.Errorf("solver: pattern %s at %s: %w", m.Pattern.Name, m.Path, err)
		}
		if sol == nil {
			return nil, fmt.Errorf("solver: pattern %s declined intent %s at %s", m.Pattern.Name, intent.Hash(), m.Path)
		}
		sols = append(sols, sol)
	}
	return sols, nil
}
