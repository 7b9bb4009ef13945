package engine

import (
	"sync"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Mempool is the FIFO admission queue feeding the block producer.
// Transactions keep arrival order; deferred transactions re-enter at
// the front so a deferral never starves.
type Mempool struct {
	mu    sync.Mutex
	queue []*types.Transaction
	known map[types.Hash]struct{}
	cap   int
}

// DefaultMempoolCap bounds the queue when no capacity is configured.
const DefaultMempoolCap = 4096

// NewMempool creates a mempool. A non-positive cap means
// DefaultMempoolCap.
func NewMempool(cap int) *Mempool {
	if cap <= 0 {
		cap = DefaultMempoolCap
	}
	return &Mempool{
		known: make(map[types.Hash]struct{}),
		cap:   cap,
	}
}

// Add enqueues a transaction. Duplicates (by hash) are dropped
// silently; a full queue is an error.
func (m *Mempool) Add(tx *types.Transaction) error {
	hash := tx.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.known[hash]; dup {
		return nil
	}
	if len(m.queue) >= m.cap {
		return loom.NewMalformed("mempool", "queue full (%d)", m.cap)
	}
	m.known[hash] = struct{}{}
	m.queue = append(m.queue, tx)
	return nil
}

// Requeue puts deferred transactions back at the front, preserving
// their relative order.
func (m *Mempool) Requeue(txs []*types.Transaction) {
	if len(txs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(append(make([]*types.Transaction, 0, len(txs)+len(m.queue)), txs...), m.queue...)
	for _, tx := range txs {
		m.known[tx.Hash()] = struct{}{}
	}
}

// Drain removes and returns up to max transactions in queue order.
func (m *Mempool) Drain(max int) []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	if max > 0 && max < n {
		n = max
	}
	out := m.queue[:n:n]
	m.queue = m.queue[n:]
	for _, tx := range out {
		delete(m.known, tx.Hash())
	}
	return out
}

// Len returns the number of queued transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// IntentPool holds published intents awaiting a solver. Intents are
// deduplicated by hash and removed once a solver claims them.
type IntentPool struct {
	mu      sync.Mutex
	intents map[types.Hash]types.Intent
	order   []types.Hash
}

// NewIntentPool creates an empty pool.
func NewIntentPool() *IntentPool {
	return &IntentPool{intents: make(map[types.Hash]types.Intent)}
}

// Add publishes an intent. Duplicates are dropped silently.
func (p *IntentPool) Add(in types.Intent) {
	hash := in.Hash()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.intents[hash]; dup {
		return
	}
	p.intents[hash] = in
	p.order = append(p.order, hash)
}

// List returns all pending intents in publication order.
func (p *IntentPool) List() []types.Intent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Intent, 0, len(p.order))
	for _, h := range p.order {
		out = append(out, p.intents[h])
	}
	return out
}

// Remove drops intents that have been composed into a transaction.
func (p *IntentPool) Remove(hashes ...types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		delete(p.intents, h)
	}
	kept := p.order[:0]
	for _, h := range p.order {
		if _, ok := p.intents[h]; ok {
			kept = append(kept, h)
		}
	}
	p.order = kept
}

// Len returns the number of pending intents.
func (p *IntentPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.intents)
}
