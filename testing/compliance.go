package loomtest

import (
	"context"
	"testing"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/engine"
	"github.com/intentloom/loom/types"
)

// RunConnectionSuite verifies a Connection implementation behaves
// like the ledger it fronts. connect must return a Connection bound
// to the given node; the suite drives block production itself, so the
// node's ticker is never started.
func RunConnectionSuite(t *testing.T, connect func(t *testing.T, node *engine.Node) loom.Connection) {
	t.Helper()
	ctx := context.Background()

	t.Run("transfer_commits", func(t *testing.T) {
		h := NewHarness(t)
		alice := h.NewWallet("alice", 100)
		bob := h.NewWallet("bob", 10)
		node := h.NewNode()
		conn := connect(t, node)
		defer conn.Close()

		tx := h.BuildTransfer(alice, bob, 30)
		hash := tx.Hash()

		status, err := conn.SubmitTransaction(ctx, tx)
		if err != nil {
			t.Fatalf("SubmitTransaction failed: %v", err)
		}
		if status.Phase != types.StatusPending {
			t.Fatalf("admission phase = %s, want pending (%s)", status.Phase, status.Reason)
		}

		if err := node.ProduceBlock(ctx); err != nil {
			t.Fatalf("ProduceBlock failed: %v", err)
		}

		status, err = conn.Status(ctx, hash)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.Phase != types.StatusCommitted {
			t.Fatalf("phase = %s, want committed (%s)", status.Phase, status.Reason)
		}

		acc, found, err := conn.Account(ctx, alice.Address)
		if err != nil || !found {
			t.Fatalf("Account(alice) = found=%v err=%v", found, err)
		}
		if got := h.Balance(alice.Address); got != 70 {
			t.Fatalf("alice balance = %d, want 70", got)
		}
		if len(acc.State) == 0 {
			t.Fatal("Account returned empty state")
		}
		if got := h.Balance(bob.Address); got != 40 {
			t.Fatalf("bob balance = %d, want 40", got)
		}
	})

	t.Run("malformed_rejected_at_admission", func(t *testing.T) {
		h := NewHarness(t)
		node := h.NewNode()
		conn := connect(t, node)
		defer conn.Close()

		status, err := conn.SubmitTransaction(ctx, types.Transaction{})
		if err != nil {
			t.Fatalf("SubmitTransaction failed: %v", err)
		}
		if status.Phase != types.StatusRejected {
			t.Fatalf("phase = %s, want rejected", status.Phase)
		}
		if status.Reason == "" {
			t.Fatal("rejection carries no reason")
		}
	})

	t.Run("intent_roundtrip", func(t *testing.T) {
		h := NewHarness(t)
		node := h.NewNode()
		conn := connect(t, node)
		defer conn.Close()

		intent := types.Intent{
			Expectations: types.Id(types.NewPredicate(h.Lib.Constant, types.InlineArg([]byte{1}))),
		}
		if err := conn.SubmitIntent(ctx, intent); err != nil {
			t.Fatalf("SubmitIntent failed: %v", err)
		}

		pending, err := conn.PendingIntents(ctx)
		if err != nil {
			t.Fatalf("PendingIntents failed: %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("pending = %d intents, want 1", len(pending))
		}
		if pending[0].Hash() != intent.Hash() {
			t.Fatal("pending intent hash does not match submitted intent")
		}
	})

	t.Run("missing_account", func(t *testing.T) {
		h := NewHarness(t)
		node := h.NewNode()
		conn := connect(t, node)
		defer conn.Close()

		_, found, err := conn.Account(ctx, types.Address{}.Derive("nobody"))
		if err != nil {
			t.Fatalf("Account failed: %v", err)
		}
		if found {
			t.Fatal("missing account reported as found")
		}
	})

	t.Run("unknown_status", func(t *testing.T) {
		h := NewHarness(t)
		node := h.NewNode()
		conn := connect(t, node)
		defer conn.Close()

		status, err := conn.Status(ctx, types.HashOf([]byte("never submitted")))
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.Phase != types.StatusUnknown {
			t.Fatalf("phase = %s, want unknown", status.Phase)
		}
	})
}
