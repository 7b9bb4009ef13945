// Package local provides a zero-copy, in-process ledger connection.
//
// For solvers and tools compiled into the same binary as the node,
// this adapter exposes the node directly — with no serialization
// overhead. Closing the connection does not stop the node: the
// process that started it owns its lifecycle.
package local

import (
	"context"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/engine"
	"github.com/intentloom/loom/types"
)

// Compile-time interface check.
var _ loom.Connection = (*Connection)(nil)

// Connection adapts an in-process node to the ledger's client
// surface.
type Connection struct {
	node *engine.Node
}

// NewConnection creates an in-process connection to node.
func NewConnection(node *engine.Node) *Connection {
	return &Connection{node: node}
}

func (c *Connection) SubmitTransaction(ctx context.Context, tx types.Transaction) (types.TxStatus, error) {
	return c.node.SubmitTransaction(ctx, tx)
}

func (c *Connection) SubmitIntent(ctx context.Context, intent types.Intent) error {
	return c.node.SubmitIntent(ctx, intent)
}

func (c *Connection) PendingIntents(ctx context.Context) ([]types.Intent, error) {
	return c.node.PendingIntents(ctx)
}

func (c *Connection) Account(ctx context.Context, addr types.Address) (types.Account, bool, error) {
	return c.node.Account(ctx, addr)
}

func (c *Connection) Status(ctx context.Context, tx types.Hash) (types.TxStatus, error) {
	return c.node.Status(ctx, tx)
}

func (c *Connection) Close() error { return nil }

// Node returns the underlying node for advanced use cases.
func (c *Connection) Node() *engine.Node {
	return c.node
}
