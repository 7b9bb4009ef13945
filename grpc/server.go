package loomgrpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Compile-time interface check.
var _ LedgerServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a ledger connection (normally an engine.Node)
// over gRPC. No type conversion is needed — domain types are
// serialized directly via cramberry.
type GRPCServer struct {
	conn loom.Connection
}

// NewGRPCServer creates a gRPC server front for conn.
func NewGRPCServer(conn loom.Connection) *GRPCServer {
	return &GRPCServer{conn: conn}
}

// Register adds the ledger service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterLedgerServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// --- Ledger RPCs ---

func (s *GRPCServer) SubmitTransaction(ctx context.Context, req *SubmitTransactionRequest) (*types.TxStatus, error) {
	status, err := s.conn.SubmitTransaction(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *GRPCServer) SubmitIntent(ctx context.Context, req *SubmitIntentRequest) (*SubmitIntentResponse, error) {
	if err := s.conn.SubmitIntent(ctx, req.Intent); err != nil {
		return nil, err
	}
	return &SubmitIntentResponse{}, nil
}

func (s *GRPCServer) PendingIntents(ctx context.Context, _ *PendingIntentsRequest) (*PendingIntentsResponse, error) {
	intents, err := s.conn.PendingIntents(ctx)
	if err != nil {
		return nil, err
	}
	return &PendingIntentsResponse{Intents: intents}, nil
}

func (s *GRPCServer) Account(ctx context.Context, req *AccountRequest) (*AccountResponse, error) {
	acc, found, err := s.conn.Account(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	return &AccountResponse{Account: acc, Found: found}, nil
}

func (s *GRPCServer) Status(ctx context.Context, req *StatusRequest) (*types.TxStatus, error) {
	status, err := s.conn.Status(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
