package loom

import (
	"errors"
	"fmt"

	"github.com/intentloom/loom/types"
)

// MalformedError reports a deserialization or structural-limit
// violation: an ill-shaped tree, a transaction over its size bounds,
// or a proposal list out of canonical order. Malformed input is
// rejected at ingress and never reaches evaluation.
type MalformedError struct {
	// What names the malformed object: "tree", "transaction", "block".
	What   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.What, e.Reason)
}

// NewMalformed creates a new MalformedError.
func NewMalformed(what, format string, args ...any) *MalformedError {
	return &MalformedError{What: what, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed checks whether an error is a MalformedError.
func IsMalformed(err error) (*MalformedError, bool) {
	var m *MalformedError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}

// UnresolvedReferenceError reports a code address, account read or
// calldata name that does not appear, pre-resolved, in a
// transaction's reference table. Rejected at ingress: evaluation may
// never trigger a dynamic account lookup.
type UnresolvedReferenceError struct {
	// Kind names the reference class: "code", "account", "proposal",
	// "calldata".
	Kind    string
	Address types.Address
	Name    string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Kind == "calldata" {
		return fmt.Sprintf("unresolved calldata reference %q", e.Name)
	}
	return fmt.Sprintf("unresolved %s reference %s", e.Kind, e.Address)
}

// IsUnresolvedReference checks whether an error is an
// UnresolvedReferenceError.
func IsUnresolvedReference(err error) (*UnresolvedReferenceError, bool) {
	var u *UnresolvedReferenceError
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}

// TrapError reports a sandbox fault surfaced as an error by callers
// that cannot return an Outcome. The predicate address identifies the
// module that faulted, to aid debugging and solver refinement.
type TrapError struct {
	Predicate types.Address
	Reason    string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("predicate %s trapped: %s", e.Predicate, e.Reason)
}

// IsTrap checks whether an error is a TrapError.
func IsTrap(err error) (*TrapError, bool) {
	var t *TrapError
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// RejectedError reports a deliberate predicate rejection: evaluation
// completed and returned false. Where determinable it names the
// account whose validity tree (or the intent whose expectations)
// failed, and the leaf predicate.
type RejectedError struct {
	Account   types.Address
	Intent    types.Hash
	Predicate types.Address
}

func (e *RejectedError) Error() string {
	if !e.Intent.IsZero() {
		return fmt.Sprintf("rejected by intent %s (predicate %s)", e.Intent, e.Predicate)
	}
	return fmt.Sprintf("rejected by account %s (predicate %s)", e.Account, e.Predicate)
}

// IsRejected checks whether an error is a RejectedError.
func IsRejected(err error) (*RejectedError, bool) {
	var r *RejectedError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
