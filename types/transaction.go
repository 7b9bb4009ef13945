package types

import (
	"crypto/ed25519"
	"sort"
)

// CalldataEntry is a named auxiliary blob attached to an intent or
// pre-resolved into a reference table: signatures, solver hints, or
// any other data predicates want to inspect without it being account
// state.
type CalldataEntry struct {
	Name  string `cramberry:"1"`
	Value []byte `cramberry:"2"`
}

// Intent is a partial, not-yet-fulfilled transaction request: a
// predicate tree describing the state transition its author wants,
// plus calldata carrying authorizations.
//
// The intent hash covers the expectations tree only — calldata is
// where signatures over that hash live, so it is excluded from the
// preimage.
type Intent struct {
	Expectations *PredicateTree  `cramberry:"1"`
	Calldata     []CalldataEntry `cramberry:"2"`
}

// Hash returns the content hash of the intent's expectations. This is
// the preimage signed by signature calldata.
func (in *Intent) Hash() Hash {
	return hashValue(in.Expectations)
}

// Calldatum returns the named calldata value.
func (in *Intent) Calldatum(name string) ([]byte, bool) {
	for _, e := range in.Calldata {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// AttachSignature signs the intent hash with priv and appends the
// signature as calldata under name.
func (in *Intent) AttachSignature(priv ed25519.PrivateKey, name string) {
	h := in.Hash()
	in.Calldata = append(in.Calldata, CalldataEntry{
		Name:  name,
		Value: ed25519.Sign(priv, h[:]),
	})
}

// ChangeKind discriminates the mutations a transaction can propose
// for one account.
type ChangeKind uint8

const (
	ChangeCreate            ChangeKind = 1
	ChangeReplaceState      ChangeKind = 2
	ChangeReplacePredicates ChangeKind = 3
	ChangeDelete            ChangeKind = 4
)

// AccountChange is a proposed mutation of a single account. It is a
// tagged union: Kind selects which field is populated.
type AccountChange struct {
	Kind       ChangeKind     `cramberry:"1"`
	Account    *Account       `cramberry:"2"`
	State      []byte         `cramberry:"3"`
	Predicates *PredicateTree `cramberry:"4"`
}

// CreateAccount proposes creating a new account.
func CreateAccount(acc Account) AccountChange {
	return AccountChange{Kind: ChangeCreate, Account: &acc}
}

// ReplaceState proposes replacing an existing account's state.
func ReplaceState(state []byte) AccountChange {
	return AccountChange{Kind: ChangeReplaceState, State: state}
}

// ReplacePredicates proposes replacing an existing account's
// predicate tree. The replacement must satisfy the account's current
// tree, like any other mutation.
func ReplacePredicates(tree *PredicateTree) AccountChange {
	return AccountChange{Kind: ChangeReplacePredicates, Predicates: tree}
}

// DeleteAccount proposes removing an account.
func DeleteAccount() AccountChange {
	return AccountChange{Kind: ChangeDelete}
}

// Proposal binds a proposed change to its target address.
type Proposal struct {
	Address Address       `cramberry:"1"`
	Change  AccountChange `cramberry:"2"`
}

// AccountRef is a pre-resolved snapshot of an account a transaction's
// predicates are permitted to read.
type AccountRef struct {
	Address Address `cramberry:"1"`
	Account Account `cramberry:"2"`
}

// ReferenceTable enumerates, up front, everything a transaction's
// predicates may read beyond the account under evaluation: account
// snapshots, proposal targets whose proposed value may be inspected,
// and named calldata. This table is what makes read sets statically
// knowable — evaluation never performs a dynamic lookup.
//
// All three sections are kept in canonical (sorted) order.
type ReferenceTable struct {
	Accounts  []AccountRef    `cramberry:"1"`
	Proposals []Address       `cramberry:"2"`
	Calldata  []CalldataEntry `cramberry:"3"`
}

// Account returns the resolved snapshot for addr.
func (r *ReferenceTable) Account(addr Address) (Account, bool) {
	i := sort.Search(len(r.Accounts), func(i int) bool {
		return !r.Accounts[i].Address.Less(addr)
	})
	if i < len(r.Accounts) && r.Accounts[i].Address == addr {
		return r.Accounts[i].Account, true
	}
	return Account{}, false
}

// AllowsProposal reports whether predicates may read the proposed
// value for addr.
func (r *ReferenceTable) AllowsProposal(addr Address) bool {
	i := sort.Search(len(r.Proposals), func(i int) bool {
		return !r.Proposals[i].Less(addr)
	})
	return i < len(r.Proposals) && r.Proposals[i] == addr
}

// Calldatum returns the named resolved calldata value.
func (r *ReferenceTable) Calldatum(name string) ([]byte, bool) {
	for _, e := range r.Calldata {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Sort puts all sections into canonical order. Builders call this
// once before the table is attached to a transaction.
func (r *ReferenceTable) Sort() {
	sort.Slice(r.Accounts, func(i, j int) bool {
		return r.Accounts[i].Address.Less(r.Accounts[j].Address)
	})
	sort.Slice(r.Proposals, func(i, j int) bool {
		return r.Proposals[i].Less(r.Proposals[j])
	})
	sort.Slice(r.Calldata, func(i, j int) bool {
		return r.Calldata[i].Name < r.Calldata[j].Name
	})
}

// Refresh re-resolves every account snapshot through get, so that a
// table populated against an older committed state reflects the state
// the transaction will actually be evaluated under. Returns the first
// address that no longer resolves.
func (r *ReferenceTable) Refresh(get func(Address) (Account, bool)) (Address, bool) {
	for i := range r.Accounts {
		acc, ok := get(r.Accounts[i].Address)
		if !ok {
			return r.Accounts[i].Address, false
		}
		r.Accounts[i].Account = acc
	}
	return Address{}, true
}

// Transaction is a bundle of intents, proposed account mutations and
// the reference table enumerating everything its predicates may read.
type Transaction struct {
	Intents   []Intent       `cramberry:"1"`
	Proposals []Proposal     `cramberry:"2"`
	Refs      ReferenceTable `cramberry:"3"`
}

// Hash returns the content hash of the transaction.
func (tx *Transaction) Hash() Hash {
	return hashValue(tx)
}

// signingBody is the SigningHash preimage.
type signingBody struct {
	Intents   []Hash     `cramberry:"1"`
	Proposals []Proposal `cramberry:"2"`
}

// SigningHash returns the digest account-guard signatures cover: the
// intent hashes plus the proposed mutations. It deliberately excludes
// the reference table, whose snapshots are re-resolved at execution
// time — a signer cannot predict them, and they carry no authority.
func (tx *Transaction) SigningHash() Hash {
	body := signingBody{Proposals: tx.Proposals}
	for i := range tx.Intents {
		body.Intents = append(body.Intents, tx.Intents[i].Hash())
	}
	return hashValue(&body)
}

// Proposal returns the proposed change for addr, if any.
func (tx *Transaction) Proposal(addr Address) (*AccountChange, bool) {
	for i := range tx.Proposals {
		if tx.Proposals[i].Address == addr {
			return &tx.Proposals[i].Change, true
		}
	}
	return nil, false
}

// SortProposals puts proposals into canonical address order.
func (tx *Transaction) SortProposals() {
	sort.Slice(tx.Proposals, func(i, j int) bool {
		return tx.Proposals[i].Address.Less(tx.Proposals[j].Address)
	})
}

// TxPhase is the processing phase of a submitted transaction.
type TxPhase uint8

const (
	StatusUnknown   TxPhase = 0
	StatusPending   TxPhase = 1
	StatusDeferred  TxPhase = 2
	StatusRejected  TxPhase = 3
	StatusCommitted TxPhase = 4
)

func (p TxPhase) String() string {
	switch p {
	case StatusPending:
		return "pending"
	case StatusDeferred:
		return "deferred"
	case StatusRejected:
		return "rejected"
	case StatusCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// TxStatus is the externally visible outcome of a transaction.
type TxStatus struct {
	Phase TxPhase `cramberry:"1"`
	// Reason identifies the failing predicate/account for rejections
	// where determinable. Debugging aid, not part of consensus.
	Reason string `cramberry:"2"`
	// Height of the block that committed or rejected the transaction.
	Height uint64 `cramberry:"3"`
}
