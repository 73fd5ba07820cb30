package clientengine

import (
	"context"
	"sync"

	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/wire"
)

// Dispatcher is the explicit routing table the redesign in spec §9 calls
// for in place of a process-wide publish/subscribe registry: it is a
// plain, explicitly-constructed object that the caller wires as the
// transport's single InboundHandler, and each in-flight Engine registers
// itself with it for the duration of one Send call. There is no global
// mutable subscription state outside of what this struct owns.
type Dispatcher struct {
	mu      sync.RWMutex
	inboxes map[string]chan wire.Message
	logger  *observability.Logger
}

// NewDispatcher creates an empty Dispatcher. logger may be nil.
func NewDispatcher(logger *observability.Logger) *Dispatcher {
	return &Dispatcher{
		inboxes: make(map[string]chan wire.Message),
		logger:  logger,
	}
}

// Handle matches transport.InboundHandler. It parses the inbound text and,
// if it names a session id with a registered engine, forwards it; anything
// else is dropped, never surfaced as an error to the sender. Malformed text
// is logged at debug level; a session id this process has no engine waiting
// on is dropped without logging.
func (d *Dispatcher) Handle(ctx context.Context, sender, text string) {
	msg, err := wire.Parse(text)
	if err != nil {
		if d.logger != nil {
			d.logger.Debug("dropping malformed inbound message from " + sender)
		}
		return
	}

	sid := sessionIDOf(msg)
	if sid == "" {
		return
	}

	d.mu.RLock()
	ch, ok := d.inboxes[sid]
	d.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case ch <- msg:
	default:
		// A full inbox means the engine is not currently waiting (or is
		// already terminal); dropping here is safe because the server only
		// advances on the client's own retransmission/timeout cadence.
	}
}

func sessionIDOf(msg wire.Message) string {
	switch msg.Kind {
	case wire.KindChunkAck:
		return msg.ChunkAck.SessionID
	case wire.KindAck:
		return msg.Ack.SessionID
	case wire.KindNack:
		return msg.Nack.SessionID
	default:
		return ""
	}
}

func (d *Dispatcher) register(sid string) chan wire.Message {
	ch := make(chan wire.Message, 8)
	d.mu.Lock()
	d.inboxes[sid] = ch
	d.mu.Unlock()
	return ch
}

func (d *Dispatcher) unregister(sid string) {
	d.mu.Lock()
	delete(d.inboxes, sid)
	d.mu.Unlock()
}
