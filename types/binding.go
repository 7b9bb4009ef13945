package types

// TriggerKind says why a predicate is being invoked.
type TriggerKind uint8

const (
	// TriggerIntent: the predicate is part of an intent's
	// expectations tree included in the transaction.
	TriggerIntent TriggerKind = 1
	// TriggerProposal: the predicate guards an account the
	// transaction proposes to mutate.
	TriggerProposal TriggerKind = 2
)

// Trigger identifies the evaluation context of a predicate: which
// intent or which account proposal caused it to run. Signature
// predicates use it to locate the hash a signature must cover.
type Trigger struct {
	Kind    TriggerKind `cramberry:"1"`
	Intent  Hash        `cramberry:"2"`
	Account Address     `cramberry:"3"`
}

// IntentTrigger builds the trigger for an intent expectations tree.
func IntentTrigger(h Hash) Trigger {
	return Trigger{Kind: TriggerIntent, Intent: h}
}

// ProposalTrigger builds the trigger for an account's validity tree.
func ProposalTrigger(addr Address) Trigger {
	return Trigger{Kind: TriggerProposal, Account: addr}
}

// Binding is everything the host supplies to a predicate invocation.
// Nothing outside the binding is reachable from inside the sandbox:
// the account under evaluation's old/new state, the transaction (with
// its pre-resolved reference table), and the trigger. This is a
// read-restriction by construction, not convention.
type Binding struct {
	Trigger Trigger `cramberry:"1"`
	// Account under evaluation; zero for intent triggers.
	Account  Address `cramberry:"2"`
	OldState []byte  `cramberry:"3"`
	NewState []byte  `cramberry:"4"`

	// Tx is the enclosing transaction. Marshalled separately across
	// the sandbox boundary.
	Tx *Transaction `cramberry:"5"`
}
