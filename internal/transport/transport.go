// Package transport defines the narrow contract both session engines
// depend on for moving text messages across the mesh. The radio driver
// itself — a Meshtastic node, a LoRa modem, whatever sits underneath — is
// an external collaborator and is never referenced here; this package only
// states what both engines require of it.
package transport

import (
	"context"
	"errors"
)

// ErrSendFailed wraps any failure to hand a message to the radio. The
// client engine treats it as retryable up to MAX_RETRIES; the relay logs
// it and otherwise proceeds (an ACK the peer never receives is recovered
// by the client's own retransmission).
var ErrSendFailed = errors.New("transport: send failed")

// InboundHandler is invoked once per inbound text message, with the text
// itself and the sender's node id. The server session engine's handler runs
// the RPC broadcast inline, holding that session's lock, so it returns only
// once the broadcast has finished. Loopback calls every handler on its own
// goroutine; LineTransport.Run calls handlers one after another, so while a
// broadcast is in progress it delivers no further messages.
type InboundHandler func(ctx context.Context, sender, text string)

// Transport is the contract the client and server engines require of the
// mesh radio. Implementations present no delivery, ordering, or duplication
// guarantees; the protocol above this interface is designed to tolerate
// all three within its retry budget.
type Transport interface {
	// Send transmits text to destination. It returns ErrSendFailed (wrapped)
	// on failure; a nil error does not guarantee the peer received it.
	Send(ctx context.Context, destination, text string) error

	// SetInboundHandler installs the single handler invoked for every
	// inbound text message. Implementations call it from whatever goroutine
	// delivers the underlying radio event; callers must not assume a
	// particular goroutine or ordering across senders.
	SetInboundHandler(handler InboundHandler)

	// LocalNodeID returns this transport's own node identifier, for
	// logging only.
	LocalNodeID() string
}
