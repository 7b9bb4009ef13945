package loomgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/intentloom/loom/types"
)

const serviceName = "loom.v1.LedgerService"

// LedgerServiceServer is the server-side interface for the ledger
// gRPC service.
type LedgerServiceServer interface {
	SubmitTransaction(context.Context, *SubmitTransactionRequest) (*types.TxStatus, error)
	SubmitIntent(context.Context, *SubmitIntentRequest) (*SubmitIntentResponse, error)
	PendingIntents(context.Context, *PendingIntentsRequest) (*PendingIntentsResponse, error)
	Account(context.Context, *AccountRequest) (*AccountResponse, error)
	Status(context.Context, *StatusRequest) (*types.TxStatus, error)
}

// RegisterLedgerServiceServer registers the LedgerServiceServer on a
// gRPC server.
func RegisterLedgerServiceServer(s *grpc.Server, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerSubmitTransaction(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitTransactionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).SubmitTransaction(ctx, req)
}

func handlerSubmitIntent(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitIntentRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).SubmitIntent(ctx, req)
}

func handlerPendingIntents(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PendingIntentsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).PendingIntents(ctx, req)
}

func handlerAccount(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(AccountRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).Account(ctx, req)
}

func handlerStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(StatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).Status(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the ledger.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitTransaction", Handler: handlerSubmitTransaction},
		{MethodName: "SubmitIntent", Handler: handlerSubmitIntent},
		{MethodName: "PendingIntents", Handler: handlerPendingIntents},
		{MethodName: "Account", Handler: handlerAccount},
		{MethodName: "Status", Handler: handlerStatus},
	},
	Metadata: "github.com/intentloom/loom/v1/service.cram",
}
