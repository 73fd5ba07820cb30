package transport

import (
	"context"
	"sync"
)

// Loopback is an in-process Transport implementation that delivers
// messages directly to other Loopback instances registered on the same
// Bus. It has no concept of range, loss, or latency; integration tests and
// local demos use it in place of a real mesh radio.
type Loopback struct {
	nodeID  string
	bus     *Bus
	mu      sync.RWMutex
	handler InboundHandler
}

// Bus is a shared registry of Loopback nodes, standing in for the mesh's
// physical broadcast medium.
type Bus struct {
	mu    sync.RWMutex
	nodes map[string]*Loopback
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{nodes: make(map[string]*Loopback)}
}

// NewNode creates a Loopback transport for nodeID and registers it on bus.
func (b *Bus) NewNode(nodeID string) *Loopback {
	l := &Loopback{nodeID: nodeID, bus: b}
	b.mu.Lock()
	b.nodes[nodeID] = l
	b.mu.Unlock()
	return l
}

func (l *Loopback) LocalNodeID() string { return l.nodeID }

func (l *Loopback) SetInboundHandler(handler InboundHandler) {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
}

// Send delivers text to destination's handler asynchronously, in its own
// goroutine, so a slow handler on one node never blocks the sender.
func (l *Loopback) Send(ctx context.Context, destination, text string) error {
	l.bus.mu.RLock()
	target, ok := l.bus.nodes[destination]
	l.bus.mu.RUnlock()
	if !ok {
		return ErrSendFailed
	}

	target.mu.RLock()
	handler := target.handler
	target.mu.RUnlock()
	if handler == nil {
		return nil
	}

	go handler(ctx, l.nodeID, text)
	return nil
}
