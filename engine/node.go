package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// NodeConfig configures a devnode.
type NodeConfig struct {
	// BlockInterval is the block production period. Zero means
	// DefaultBlockInterval.
	BlockInterval time.Duration
	// MaxBlockTxs caps transactions per block. Zero means no cap.
	MaxBlockTxs int
	// MempoolCap bounds the admission queue. Zero means
	// DefaultMempoolCap.
	MempoolCap int
	// Logger for node diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// DefaultBlockInterval is the production period used when
// NodeConfig.BlockInterval is zero.
const DefaultBlockInterval = time.Second

// Node is a single-process ledger node: mempool, interval block
// producer, intent pool and status index over an Engine. It is the
// in-process implementation of the ledger's client surface; the local
// and grpc packages adapt it outward.
type Node struct {
	engine   *Engine
	mempool  *Mempool
	intents  *IntentPool
	interval time.Duration
	maxTxs   int
	log      *zap.Logger

	mu       sync.Mutex
	last     *types.Block
	statuses map[types.Hash]types.TxStatus

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Compile-time interface check.
var _ loom.Connection = (*Node)(nil)

// NewNode creates a node over eng. Call Start to begin producing
// blocks.
func NewNode(eng *Engine, cfg NodeConfig) *Node {
	interval := cfg.BlockInterval
	if interval <= 0 {
		interval = DefaultBlockInterval
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		engine:   eng,
		mempool:  NewMempool(cfg.MempoolCap),
		intents:  NewIntentPool(),
		interval: interval,
		maxTxs:   cfg.MaxBlockTxs,
		log:      log,
		last:     types.ZeroBlock(),
		statuses: make(map[types.Hash]types.TxStatus),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Engine returns the underlying engine.
func (n *Node) Engine() *Engine { return n.engine }

// Intents returns the node's pending-intent pool.
func (n *Node) Intents() *IntentPool { return n.intents }

// Start launches the block production loop. It returns immediately;
// production stops when Close is called.
func (n *Node) Start(ctx context.Context) {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-n.stop:
				return
			case <-ticker.C:
				if err := n.ProduceBlock(ctx); err != nil {
					n.log.Error("block production failed", zap.Error(err))
				}
			}
		}
	}()
}

// ProduceBlock drains the mempool into one block, executes and
// commits it, and records per-transaction outcomes. A tick with an
// empty mempool produces no block.
func (n *Node) ProduceBlock(ctx context.Context) error {
	drained := n.mempool.Drain(n.maxTxs)
	if len(drained) == 0 {
		return nil
	}

	txs := make([]types.Transaction, len(drained))
	hashes := make([]types.Hash, len(drained))
	for i, tx := range drained {
		txs[i] = *tx
		hashes[i] = tx.Hash()
	}

	n.mu.Lock()
	block := types.NewBlock(n.last, txs)
	n.mu.Unlock()

	res, err := n.engine.ExecuteBlock(ctx, block)
	if err != nil {
		n.mempool.Requeue(drained)
		return err
	}
	if _, err := n.engine.Commit(); err != nil {
		return err
	}

	n.mu.Lock()
	n.last = block
	var discharged []types.Hash
	for _, r := range res.Results {
		status := types.TxStatus{Phase: types.StatusCommitted, Height: res.Height}
		if !r.Accepted {
			status = types.TxStatus{Phase: types.StatusRejected, Reason: r.Reason, Height: res.Height}
		} else {
			for i := range block.Txs[r.Index].Intents {
				discharged = append(discharged, block.Txs[r.Index].Intents[i].Hash())
			}
		}
		n.statuses[r.Hash] = status
	}
	for _, tx := range res.Deferred {
		n.statuses[tx.Hash()] = types.TxStatus{Phase: types.StatusDeferred}
	}
	n.mu.Unlock()

	// A committed transaction has fulfilled every intent it carried:
	// drop them from the pending pool so no solver discharges them
	// again.
	n.intents.Remove(discharged...)

	n.mempool.Requeue(res.Deferred)
	return nil
}

// SubmitTransaction admits a transaction to the mempool. A structural
// rejection is reported in the returned status, not as an error.
func (n *Node) SubmitTransaction(ctx context.Context, tx types.Transaction) (types.TxStatus, error) {
	hash := tx.Hash()
	if err := n.engine.CheckTx(&tx); err != nil {
		status := types.TxStatus{Phase: types.StatusRejected, Reason: err.Error()}
		n.setStatus(hash, status)
		return status, nil
	}
	if err := n.mempool.Add(&tx); err != nil {
		return types.TxStatus{}, err
	}
	status := types.TxStatus{Phase: types.StatusPending}
	n.setStatus(hash, status)
	return status, nil
}

// SubmitIntent publishes an intent to the pending pool.
func (n *Node) SubmitIntent(ctx context.Context, intent types.Intent) error {
	if intent.Expectations == nil {
		return loom.NewMalformed("intent", "no expectation tree")
	}
	n.intents.Add(intent)
	return nil
}

// PendingIntents lists published intents awaiting a solver.
func (n *Node) PendingIntents(ctx context.Context) ([]types.Intent, error) {
	return n.intents.List(), nil
}

// Account reads committed account state.
func (n *Node) Account(ctx context.Context, addr types.Address) (types.Account, bool, error) {
	acc, ok := n.engine.Account(addr)
	return acc, ok, nil
}

// Status reports a transaction's outcome by submit-time hash.
func (n *Node) Status(ctx context.Context, tx types.Hash) (types.TxStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.statuses[tx], nil
}

// Close stops block production and waits for the loop to exit.
func (n *Node) Close() error {
	n.stopOnce.Do(func() { close(n.stop) })
	n.mu.Lock()
	started := n.started
	n.mu.Unlock()
	if started {
		<-n.done
	}
	return nil
}

func (n *Node) setStatus(hash types.Hash, status types.TxStatus) {
	n.mu.Lock()
	n.statuses[hash] = status
	n.mu.Unlock()
}
