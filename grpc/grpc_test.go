package loomgrpc_test

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/engine"
	loomgrpc "github.com/intentloom/loom/grpc"
	"github.com/intentloom/loom/local"
	loomtest "github.com/intentloom/loom/testing"
)

// connectBuf serves the node over an in-memory bufconn transport and
// dials it back, so the full wire path (codec included) is exercised
// without a TCP socket.
func connectBuf(t *testing.T, node *engine.Node) loom.Connection {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	loomgrpc.NewGRPCServer(local.NewConnection(node)).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := loomgrpc.Dial(context.Background(), "bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return client
}

func TestGRPCConnectionCompliance(t *testing.T) {
	loomtest.RunConnectionSuite(t, connectBuf)
}
