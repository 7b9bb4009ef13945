package types

// Account is the basic unit of storage and state verification.
//
// State is an opaque byte sequence with no chain-enforced schema: a
// token balance, predicate module bytecode, or any app-specific
// value. Access control is expressed entirely through the attached
// predicate tree — a committed transaction may replace State or
// Predicates only if the account's current tree (and every intent in
// the transaction) evaluates to true against the proposed change.
type Account struct {
	State      []byte         `cramberry:"1"`
	Predicates *PredicateTree `cramberry:"2"`
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	c := Account{Predicates: a.Predicates.Clone()}
	if a.State != nil {
		c.State = make([]byte, len(a.State))
		copy(c.State, a.State)
	}
	return c
}
