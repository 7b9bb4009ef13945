package token_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/intentloom/loom/example/token"
	"github.com/intentloom/loom/local"
	"github.com/intentloom/loom/solver"
	loomtest "github.com/intentloom/loom/testing"
	"github.com/intentloom/loom/types"
)

// keypairOf adapts a funded harness wallet into a token keypair; the
// harness guard is the same standard wallet tree the token package
// builds.
func keypairOf(w *loomtest.Wallet) token.Keypair {
	return token.Keypair{Pub: w.Pub, Priv: w.Priv}
}

// newKeypair derives a keypair the ledger has never seen.
func newKeypair(seed string) token.Keypair {
	sum := sha3.Sum256([]byte("token-test/" + seed))
	priv := ed25519.NewKeyFromSeed(sum[:])
	return token.Keypair{Pub: priv.Public().(ed25519.PublicKey), Priv: priv}
}

func TestCreateWalletAndTransfer(t *testing.T) {
	ctx := context.Background()
	h := loomtest.NewHarness(t)
	alice := h.NewWallet("alice", 100)
	node := h.NewNode()
	conn := local.NewConnection(node)
	kit := &token.Kit{Lib: h.Lib, Conn: conn}

	// A brand-new wallet, created without any signature.
	fresh := newKeypair("fresh")
	wallet := types.AddressFromPublicKey(fresh.Pub)
	_, found, err := conn.Account(ctx, wallet)
	require.NoError(t, err)
	require.False(t, found)

	hash, err := kit.CreateWallet(ctx, fresh.Pub)
	require.NoError(t, err)
	require.NoError(t, node.ProduceBlock(ctx))

	status, err := conn.Status(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, types.StatusCommitted, status.Phase, status.Reason)

	bal, err := kit.Balance(ctx, wallet)
	require.NoError(t, err)
	require.Zero(t, bal)

	// Fund it from alice.
	hash, err = kit.Transfer(ctx, keypairOf(alice), wallet, 40)
	require.NoError(t, err)
	require.NoError(t, node.ProduceBlock(ctx))

	status, err = conn.Status(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, types.StatusCommitted, status.Phase, status.Reason)

	bal, err = kit.Balance(ctx, wallet)
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal)
	bal, err = kit.Balance(ctx, alice.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal)
}

func TestTransferNeedsFunds(t *testing.T) {
	ctx := context.Background()
	h := loomtest.NewHarness(t)
	alice := h.NewWallet("alice", 10)
	bob := h.NewWallet("bob", 0)
	node := h.NewNode()
	kit := &token.Kit{Lib: h.Lib, Conn: local.NewConnection(node)}

	_, err := kit.Transfer(ctx, keypairOf(alice), bob.Address, 11)
	require.ErrorContains(t, err, "cannot send")
}

func TestTreasurySolvesPaymentIntent(t *testing.T) {
	ctx := context.Background()
	h := loomtest.NewHarness(t)
	treasury := h.NewWallet("treasury", 1000)
	bob := h.NewWallet("bob", 10)
	node := h.NewNode()
	conn := local.NewConnection(node)
	kit := &token.Kit{Lib: h.Lib, Conn: conn}
	tkey := keypairOf(treasury)

	// Bob publishes "pay me 25" without naming a payer.
	intent := token.PaymentIntent(h.Lib, bob.Address, 25)
	require.NoError(t, conn.SubmitIntent(ctx, intent))

	reg := solver.NewRegistry()
	reg.Register(token.TreasuryPattern(h.Lib, tkey, conn))
	s := solver.NewSolver(reg, conn, solver.Config{
		Finalize: token.TreasuryFinalizer(tkey),
	})

	require.NoError(t, s.Sweep(ctx))
	require.NoError(t, node.ProduceBlock(ctx))

	bal, err := kit.Balance(ctx, bob.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(35), bal)
	bal, err = kit.Balance(ctx, treasury.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(975), bal)

	// The commit discharged the intent; a second sweep must not pay
	// it again.
	pending, err := conn.PendingIntents(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, s.Sweep(ctx))
	require.NoError(t, node.ProduceBlock(ctx))

	bal, err = kit.Balance(ctx, bob.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(35), bal)
	bal, err = kit.Balance(ctx, treasury.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(975), bal)
}

func TestTreasuryDeclinesWhenBroke(t *testing.T) {
	ctx := context.Background()
	h := loomtest.NewHarness(t)
	treasury := h.NewWallet("treasury", 5)
	bob := h.NewWallet("bob", 0)
	node := h.NewNode()
	conn := local.NewConnection(node)

	require.NoError(t, conn.SubmitIntent(ctx, token.PaymentIntent(h.Lib, bob.Address, 25)))

	reg := solver.NewRegistry()
	reg.Register(token.TreasuryPattern(h.Lib, keypairOf(treasury), conn))
	s := solver.NewSolver(reg, conn, solver.Config{
		Finalize: token.TreasuryFinalizer(keypairOf(treasury)),
	})

	// The sweep itself succeeds; the unaffordable intent just stays
	// pending.
	require.NoError(t, s.Sweep(ctx))
	require.NoError(t, node.ProduceBlock(ctx))

	kit := &token.Kit{Lib: h.Lib, Conn: conn}
	bal, err := kit.Balance(ctx, bob.Address)
	require.NoError(t, err)
	require.Zero(t, bal)

	pending, err := conn.PendingIntents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
