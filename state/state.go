// Package state holds the ledger's account store: a read interface,
// an in-memory implementation, and the Diff type that is the unit of
// atomic commit. The store is read-only during a batch's evaluation
// phase and mutated only by Apply during the commit phase.
package state

import (
	"sort"
	"sync"

	"github.com/intentloom/loom/types"
)

// Reader is read-only access to committed account state. Get must be
// safe for concurrent use: a whole batch evaluates against one Reader
// in parallel.
type Reader interface {
	Get(addr types.Address) (types.Account, bool)
}

// State is the full account store contract.
type State interface {
	Reader
	// Apply commits a diff atomically: all of its writes become
	// visible together.
	Apply(diff *Diff)
}

// Diff is a proposed change set over the account store: upserts and
// deletes. A transaction produces a diff, a block's diffs merge in
// canonical order, and logically the entire ledger state is the
// cumulative application of consecutive diffs.
type Diff struct {
	upserts map[types.Address]types.Account
	deletes map[types.Address]struct{}
}

// NewDiff returns an empty diff.
func NewDiff() *Diff {
	return &Diff{
		upserts: make(map[types.Address]types.Account),
		deletes: make(map[types.Address]struct{}),
	}
}

// Set records an account upsert, superseding any prior delete of the
// same address within this diff.
func (d *Diff) Set(addr types.Address, acc types.Account) {
	delete(d.deletes, addr)
	d.upserts[addr] = acc
}

// Remove records an account deletion.
func (d *Diff) Remove(addr types.Address) {
	delete(d.upserts, addr)
	d.deletes[addr] = struct{}{}
}

// Get returns the upserted account for addr, if this diff carries one.
func (d *Diff) Get(addr types.Address) (types.Account, bool) {
	acc, ok := d.upserts[addr]
	return acc, ok
}

// Deleted reports whether this diff deletes addr.
func (d *Diff) Deleted(addr types.Address) bool {
	_, ok := d.deletes[addr]
	return ok
}

// Len returns the number of addresses the diff touches.
func (d *Diff) Len() int {
	return len(d.upserts) + len(d.deletes)
}

// Merge folds a newer diff into this one. Applying the result equals
// applying the two diffs consecutively.
func (d *Diff) Merge(newer *Diff) {
	for addr, acc := range newer.upserts {
		d.Set(addr, acc)
	}
	for addr := range newer.deletes {
		d.Remove(addr)
	}
}

// Addresses returns every touched address in canonical order.
func (d *Diff) Addresses() []types.Address {
	addrs := make([]types.Address, 0, d.Len())
	for addr := range d.upserts {
		addrs = append(addrs, addr)
	}
	for addr := range d.deletes {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return addrs
}

// Iter visits every change in canonical address order. A nil account
// means deletion.
func (d *Diff) Iter(fn func(addr types.Address, acc *types.Account)) {
	for _, addr := range d.Addresses() {
		if acc, ok := d.upserts[addr]; ok {
			fn(addr, &acc)
		} else {
			fn(addr, nil)
		}
	}
}

// MemStore is the in-memory account store used by devnodes and tests.
type MemStore struct {
	mu   sync.RWMutex
	data map[types.Address]types.Account
}

// Compile-time interface check.
var _ State = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[types.Address]types.Account)}
}

// FromGenesis creates a store seeded with the genesis account set.
func FromGenesis(doc *types.GenesisDoc) *MemStore {
	s := NewMemStore()
	for _, ga := range doc.Accounts {
		s.data[ga.Address] = ga.Account
	}
	return s
}

func (s *MemStore) Get(addr types.Address) (types.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.data[addr]
	return acc, ok
}

func (s *MemStore) Apply(diff *Diff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	diff.Iter(func(addr types.Address, acc *types.Account) {
		if acc == nil {
			delete(s.data, addr)
		} else {
			s.data[addr] = *acc
		}
	})
}

// Len returns the number of stored accounts.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Overlay is a Reader layering a pending diff over a base. Batch N+1
// evaluates against an overlay carrying batch N's staged commits, so
// canonical ordering is preserved before anything reaches the durable
// store.
type Overlay struct {
	Base Reader
	Diff *Diff
}

// Compile-time interface check.
var _ Reader = (*Overlay)(nil)

func (o *Overlay) Get(addr types.Address) (types.Account, bool) {
	if o.Diff != nil {
		if o.Diff.Deleted(addr) {
			return types.Account{}, false
		}
		if acc, ok := o.Diff.Get(addr); ok {
			return acc, true
		}
	}
	return o.Base.Get(addr)
}
