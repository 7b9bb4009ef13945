// Package sched computes per-transaction access sets and partitions a
// pending set of transactions into conflict-free batches. The
// partition depends only on the statically declared read/write sets —
// never on runtime thread scheduling — so it is identical on every
// node, which is what makes parallel execution within a batch safe
// without locks.
package sched

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/intentloom/loom/types"
)

// AccessSet is the statically known footprint of one transaction.
//
// An address that is both read and written belongs to the write set:
// writes are what matter for conflict detection.
type AccessSet struct {
	Reads  mapset.Set[types.Address]
	Writes mapset.Set[types.Address]
}

// Resolve derives a transaction's access set.
//
// Writes are the proposal targets. Reads are every account in the
// resolved-reference table — a superset of anything any leaf
// predicate may touch, by the ingress completeness invariant — plus
// the write set itself, since a mutation target's old state is always
// read.
func Resolve(tx *types.Transaction) AccessSet {
	writes := mapset.NewThreadUnsafeSet[types.Address]()
	for i := range tx.Proposals {
		writes.Add(tx.Proposals[i].Address)
	}

	reads := mapset.NewThreadUnsafeSet[types.Address]()
	for i := range tx.Refs.Accounts {
		if addr := tx.Refs.Accounts[i].Address; !writes.Contains(addr) {
			reads.Add(addr)
		}
	}

	return AccessSet{Reads: reads, Writes: writes}
}

// ConflictsWith reports whether two transactions may not share a
// batch: the write set of either intersects the read or write set of
// the other. Two pure readers never conflict.
func (a AccessSet) ConflictsWith(b AccessSet) bool {
	if a.Writes.ContainsAnyElement(b.Writes) {
		return true
	}
	if a.Writes.ContainsAnyElement(b.Reads) {
		return true
	}
	return b.Writes.ContainsAnyElement(a.Reads)
}

// Entry pairs a transaction with its canonical position and access set.
type Entry struct {
	// Index is the transaction's position in the block, assigned by
	// the ordering layer.
	Index  int
	Tx     *types.Transaction
	Access AccessSet
}

// Batch is a set of transactions with pairwise-disjoint access sets,
// safe to evaluate and commit concurrently.
type Batch struct {
	Entries []Entry
}

// Partition splits transactions into ordered conflict-free batches,
// deterministically, in canonical order. A transaction lands in the
// batch right after the last one holding anything it conflicts with,
// so conflicting transactions execute in canonical order across
// strictly increasing batches. A conflicting transaction is deferred
// to a later batch, never hoisted ahead of a conflicting predecessor
// and never dropped.
func Partition(txs []*types.Transaction) []Batch {
	var batches []Batch
	for i, tx := range txs {
		entry := Entry{Index: i, Tx: tx, Access: Resolve(tx)}

		floor := 0
		for bi := range batches {
			if conflictsWithBatch(entry.Access, &batches[bi]) {
				floor = bi + 1
			}
		}
		if floor == len(batches) {
			batches = append(batches, Batch{Entries: []Entry{entry}})
		} else {
			batches[floor].Entries = append(batches[floor].Entries, entry)
		}
	}
	return batches
}

func conflictsWithBatch(a AccessSet, b *Batch) bool {
	for i := range b.Entries {
		if a.ConflictsWith(b.Entries[i].Access) {
			return true
		}
	}
	return false
}
