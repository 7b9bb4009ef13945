package loomgrpc

import "github.com/intentloom/loom/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// SubmitTransactionRequest wraps the parameter for
// Connection.SubmitTransaction.
type SubmitTransactionRequest struct {
	Tx types.Transaction `cramberry:"1"`
}

// SubmitIntentRequest wraps the parameter for Connection.SubmitIntent.
type SubmitIntentRequest struct {
	Intent types.Intent `cramberry:"1"`
}

// SubmitIntentResponse is the (empty) response for SubmitIntent.
type SubmitIntentResponse struct{}

// PendingIntentsRequest is the (empty) request for
// Connection.PendingIntents.
type PendingIntentsRequest struct{}

// PendingIntentsResponse wraps the return value of PendingIntents.
type PendingIntentsResponse struct {
	Intents []types.Intent `cramberry:"1"`
}

// AccountRequest wraps the parameter for Connection.Account.
type AccountRequest struct {
	Address types.Address `cramberry:"1"`
}

// AccountResponse wraps the return values of Connection.Account.
type AccountResponse struct {
	Account types.Account `cramberry:"1"`
	Found   bool          `cramberry:"2"`
}

// StatusRequest wraps the parameter for Connection.Status.
type StatusRequest struct {
	Tx types.Hash `cramberry:"1"`
}
