package reassembly

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/rpc"
	"github.com/btcmesh/relay/internal/transport"
	"github.com/btcmesh/relay/internal/wire"
)

// Engine is the server session engine from spec §4.5: it exposes a single
// operation, OnMessage, that implements the eight-step on_message
// algorithm — lookup/create, sender and total_chunks consistency,
// duplicate detection, storage, per-chunk ACK emission, and the
// completion → broadcast → terminal ACK/NACK sequence.
type Engine struct {
	table       *Table
	transport   transport.Transport
	broadcaster rpc.Broadcaster
	logger      *observability.Logger
	metrics     *observability.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an Engine. logger and metrics may be nil.
func New(table *Table, t transport.Transport, broadcaster rpc.Broadcaster, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		table:       table,
		transport:   t,
		broadcaster: broadcaster,
		logger:      logger,
		metrics:     metrics,
		locks:       make(map[string]*sync.Mutex),
	}
}

// OnMessage matches transport.InboundHandler. Only chunk messages are
// inputs here; per-chunk ACKs and terminal messages are outputs the
// engine itself emits and are ignored if received (spec §4.5 step 1).
func (e *Engine) OnMessage(ctx context.Context, sender, text string) {
	msg, err := wire.Parse(text)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("dropping malformed inbound message from " + sender)
		}
		return
	}
	if msg.Kind != wire.KindChunk {
		return
	}

	ctx, span := otel.Tracer("btcmesh-relay").Start(ctx, "reassembly.on_message")
	defer span.End()

	sid := msg.Chunk.SessionID
	lock := e.lockFor(sid)
	lock.Lock()
	defer lock.Unlock()

	e.handleChunk(ctx, sender, msg.Chunk)
}

func (e *Engine) lockFor(sid string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[sid]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sid] = l
	}
	return l
}

func (e *Engine) handleChunk(ctx context.Context, sender string, c wire.Chunk) {
	now := time.Now()

	if e.logger != nil {
		e.logger.ChunkReceived(c.SessionID, c.N, c.Total, sender)
	}
	if e.metrics != nil {
		e.metrics.ChunksReceivedTotal.Inc()
	}

	session, existed := e.table.Get(c.SessionID)
	if !existed {
		if replayMsg, ok := e.table.ReplayTerminal(c.SessionID); ok {
			e.send(ctx, sender, replayMsg)
			return
		}
		session = NewSession(c.SessionID, sender, c.Total, now)
		if err := e.table.Add(session); err != nil {
			// Lost a race with a duplicate create; fall through and
			// re-fetch so this call still makes forward progress.
			session, existed = e.table.Get(c.SessionID)
			if !existed {
				return
			}
		} else if e.metrics != nil {
			e.metrics.SessionsActive.Inc()
		}
	}

	_, hadChunk := session.fragments[c.N]

	err := session.Store(sender, c.Total, c.N, c.Payload, now)
	switch err {
	case nil:
		// duplicate with identical payload, or freshly stored fragment
		if hadChunk && e.metrics != nil {
			e.metrics.ChunksDuplicateTotal.Inc()
		}
	case ErrSenderMismatch:
		// Do not leak whether a session exists to an unpinned sender.
		return
	case ErrTotalMismatch:
		e.evictWithNack(ctx, session, "inconsistent total_chunks")
		return
	case ErrChunkOutOfRange:
		e.evictWithNack(ctx, session, "chunk number out of range")
		return
	case ErrDuplicateMismatch:
		e.evictWithNack(ctx, session, "duplicate chunk mismatch")
		return
	case ErrNotCollecting:
		return
	default:
		e.evictWithNack(ctx, session, "internal error")
		return
	}

	next := session.NextMissing()
	ack := wire.FormatChunkAck(wire.ChunkAck{SessionID: session.SessionID, N: c.N, Next: next})
	e.send(ctx, sender, ack)
	if e.logger != nil {
		e.logger.ChunkAckSent(session.SessionID, c.N, next)
	}
	if e.metrics != nil {
		e.metrics.ChunkAcksSentTotal.Inc()
	}

	if next <= session.TotalChunks {
		return
	}

	e.completeSession(ctx, session)
}

func (e *Engine) completeSession(ctx context.Context, session *Session) {
	session.Status = Broadcasting
	hexTx := session.Concat()

	start := time.Now()
	txid, err := e.broadcaster.Broadcast(ctx, hexTx)
	elapsed := time.Since(start)

	session.Status = Terminal
	e.table.Remove(session.SessionID)
	if e.metrics != nil {
		e.metrics.SessionsActive.Dec()
	}

	var out string
	if err != nil {
		detail := err.Error()
		if rpcErr, ok := err.(*rpc.Error); ok {
			detail = rpcErr.Detail
		}
		out = wire.FormatNack(wire.Nack{SessionID: session.SessionID, Detail: detail})
		if e.logger != nil {
			e.logger.BroadcastResult(session.SessionID, false, detail, elapsed)
		}
		if e.metrics != nil {
			e.metrics.BroadcastsTotal.WithLabelValues("failure").Inc()
			e.metrics.SessionsTotal.WithLabelValues("failure").Inc()
		}
	} else {
		out = wire.FormatAck(wire.Ack{SessionID: session.SessionID, TXID: txid})
		if e.logger != nil {
			e.logger.BroadcastResult(session.SessionID, true, txid, elapsed)
		}
		if e.metrics != nil {
			e.metrics.BroadcastsTotal.WithLabelValues("success").Inc()
			e.metrics.SessionsTotal.WithLabelValues("success").Inc()
		}
	}
	if e.metrics != nil {
		e.metrics.BroadcastDuration.Observe(elapsed.Seconds())
	}

	e.table.RememberTerminal(session.SessionID, out)
	e.send(ctx, session.Sender, out)
}

func (e *Engine) evictWithNack(ctx context.Context, session *Session, detail string) {
	session.Status = Terminal
	e.table.Remove(session.SessionID)
	if e.metrics != nil {
		e.metrics.SessionsActive.Dec()
		e.metrics.SessionsTotal.WithLabelValues("inconsistent").Inc()
	}
	out := wire.FormatNack(wire.Nack{SessionID: session.SessionID, Detail: detail})
	e.table.RememberTerminal(session.SessionID, out)
	e.send(ctx, session.Sender, out)
	if e.logger != nil {
		e.logger.SessionEvicted(session.SessionID, detail)
	}
}

func (e *Engine) send(ctx context.Context, destination, text string) {
	if err := e.transport.Send(ctx, destination, text); err != nil && e.logger != nil {
		e.logger.Warn("transport send failed: " + err.Error())
	}
}
