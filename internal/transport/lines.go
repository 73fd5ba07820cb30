package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LineTransport is a Transport implementation over any newline-delimited
// byte stream: "<node-id> <text>" per line, in both directions. It exists
// to give cmd/btcmesh-relay and cmd/btcmesh-client something concrete to
// run against a serial-attached LoRa modem's AT-style text interface
// without this module taking on the mesh radio driver itself, which spec
// §1 places firmly out of scope. Framing, retries, and addressing at the
// radio level are the real driver's job; this type only turns an
// io.ReadWriter into the narrow Transport contract both engines depend on.
type LineTransport struct {
	nodeID string
	w      io.Writer
	wmu    sync.Mutex

	hmu     sync.RWMutex
	handler InboundHandler
}

// NewLineTransport wraps rw as a Transport for nodeID.
func NewLineTransport(nodeID string, rw io.ReadWriter) *LineTransport {
	return &LineTransport{nodeID: nodeID, w: rw}
}

func (l *LineTransport) LocalNodeID() string { return l.nodeID }

func (l *LineTransport) SetInboundHandler(handler InboundHandler) {
	l.hmu.Lock()
	l.handler = handler
	l.hmu.Unlock()
}

// Send writes one line addressed to destination. Concurrent Send calls
// are serialized so lines never interleave.
func (l *LineTransport) Send(ctx context.Context, destination, text string) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s %s\n", destination, text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Run reads lines from r until it is closed or ctx is cancelled, parsing
// each as "<sender> <text>" and invoking the registered handler. It
// blocks until the stream ends; callers typically run it in its own
// goroutine.
func (l *LineTransport) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		sender, text, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		l.hmu.RLock()
		handler := l.handler
		l.hmu.RUnlock()
		if handler != nil {
			handler(ctx, sender, text)
		}
	}
	return scanner.Err()
}
