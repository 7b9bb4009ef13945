package loomgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/intentloom/loom"
	"github.com/intentloom/loom/types"
)

// Compile-time interface check.
var _ loom.Connection = (*Client)(nil)

// Client implements loom.Connection against a remote ledger node over
// gRPC using cramberry serialization. No protobuf types or conversion
// layer required.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote ledger node.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("loom client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) SubmitTransaction(ctx context.Context, tx types.Transaction) (types.TxStatus, error) {
	req := &SubmitTransactionRequest{Tx: tx}
	resp := new(types.TxStatus)
	if err := c.cc.Invoke(ctx, fullMethod("SubmitTransaction"), req, resp); err != nil {
		return types.TxStatus{}, err
	}
	return *resp, nil
}

func (c *Client) SubmitIntent(ctx context.Context, intent types.Intent) error {
	req := &SubmitIntentRequest{Intent: intent}
	resp := new(SubmitIntentResponse)
	return c.cc.Invoke(ctx, fullMethod("SubmitIntent"), req, resp)
}

func (c *Client) PendingIntents(ctx context.Context) ([]types.Intent, error) {
	req := &PendingIntentsRequest{}
	resp := new(PendingIntentsResponse)
	if err := c.cc.Invoke(ctx, fullMethod("PendingIntents"), req, resp); err != nil {
		return nil, err
	}
	return resp.Intents, nil
}

func (c *Client) Account(ctx context.Context, addr types.Address) (types.Account, bool, error) {
	req := &AccountRequest{Address: addr}
	resp := new(AccountResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Account"), req, resp); err != nil {
		return types.Account{}, false, err
	}
	return resp.Account, resp.Found, nil
}

func (c *Client) Status(ctx context.Context, tx types.Hash) (types.TxStatus, error) {
	req := &StatusRequest{Tx: tx}
	resp := new(types.TxStatus)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), req, resp); err != nil {
		return types.TxStatus{}, err
	}
	return *resp, nil
}
