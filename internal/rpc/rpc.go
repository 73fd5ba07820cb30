// Package rpc defines the narrow "broadcast hex" contract the server
// session engine depends on, and a concrete implementation against a
// Bitcoin Core JSON-RPC endpoint.
package rpc

import "context"

// Error carries the concise, human-readable diagnostic a failed broadcast
// returns, e.g. "txn-mempool-conflict" or "bad-txns-inputs-missingorspent".
// It is surfaced verbatim in the terminal NACK's detail field.
type Error struct {
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// Broadcaster is the contract the server session engine depends on.
// Implementations may use connection pools, Tor, retries, etc. internally;
// from the engine's perspective Broadcast is a single synchronous call.
type Broadcaster interface {
	// Broadcast submits hexTx to the connected Bitcoin Core node and
	// returns the resulting txid, or an *Error describing why it was
	// rejected.
	Broadcast(ctx context.Context, hexTx string) (txid string, err error)
}
