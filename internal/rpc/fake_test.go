package rpc

import (
	"context"
	"testing"
)

// fakeBroadcaster is a minimal in-package Broadcaster that checks the
// interface contract without a real Bitcoin Core node.
type fakeBroadcaster struct {
	txid string
	err  error
	n    int
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, hexTx string) (string, error) {
	f.n++
	if f.err != nil {
		return "", f.err
	}
	return f.txid, nil
}

func TestFakeBroadcasterSatisfiesInterface(t *testing.T) {
	var _ Broadcaster = (*fakeBroadcaster)(nil)
	f := &fakeBroadcaster{txid: "deadbeef"}
	txid, err := f.Broadcast(context.Background(), "aabb")
	if err != nil || txid != "deadbeef" {
		t.Fatalf("unexpected result: %q, %v", txid, err)
	}
	if f.n != 1 {
		t.Fatalf("expected 1 call, got %d", f.n)
	}
}

func TestErrorImplementsError(t *testing.T) {
	var err error = &Error{Detail: "txn-mempool-conflict"}
	if err.Error() != "txn-mempool-conflict" {
		t.Fatalf("unexpected error string: %q", err.Error())
	}
}
