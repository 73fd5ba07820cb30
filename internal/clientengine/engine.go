// Package clientengine implements the client-side session state machine
// from spec §4.4: one send is exactly one chunk in flight at a time,
// advanced or retransmitted strictly according to the per-chunk ACK the
// server returns.
package clientengine

import (
	"context"
	"strings"
	"time"

	"github.com/btcmesh/relay/internal/chunker"
	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/sessionid"
	"github.com/btcmesh/relay/internal/transport"
	"github.com/btcmesh/relay/internal/wire"
)

// Reason classifies a failed send. ReasonNone is only ever seen paired
// with Success.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonValidation
	ReasonTimeout
	ReasonRetryExhausted
	ReasonAborted
	ReasonPeerNack
	ReasonTransport
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonValidation:
		return "validation"
	case ReasonTimeout:
		return "timeout"
	case ReasonRetryExhausted:
		return "retry_exhausted"
	case ReasonAborted:
		return "aborted"
	case ReasonPeerNack:
		return "peer_nack"
	case ReasonTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// SendResult is the terminal outcome of one Send call: either Success is
// true and TXID is populated, or Success is false and Reason/Detail
// explain why.
type SendResult struct {
	Success bool
	TXID    string
	Reason  Reason
	Detail  string
}

// Config holds the client engine's tunables (spec §4.4 defaults).
type Config struct {
	ChunkSize       int
	AckTimeout      time.Duration
	MaxRetries      int
	TerminalTimeout time.Duration
}

// DefaultConfig returns the defaults named in spec §4.4.
func DefaultConfig() Config {
	return Config{
		ChunkSize:       chunker.DefaultChunkSize,
		AckTimeout:      30 * time.Second,
		MaxRetries:      3,
		TerminalTimeout: 300 * time.Second,
	}
}

// Engine drives one send session at a time against a shared transport and
// Dispatcher. It holds no state between calls to Send; all session state
// lives on the stack of the Send goroutine, matching spec §3's "owned
// exclusively by the client session engine for the lifetime of one send."
type Engine struct {
	transport  transport.Transport
	dispatcher *Dispatcher
	cfg        Config
	logger     *observability.Logger
}

// New creates an Engine. dispatcher must already be installed as the
// transport's InboundHandler by the caller (see Dispatcher.Handle).
func New(t transport.Transport, dispatcher *Dispatcher, cfg Config, logger *observability.Logger) *Engine {
	return &Engine{transport: t, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Send chunks txHex, transmits it to destination, and drives the session
// to a terminal result. It blocks until Success, a terminal NACK, retry
// exhaustion, a terminal timeout, or ctx cancellation.
func (e *Engine) Send(ctx context.Context, txHex, destination string) SendResult {
	hexLower := strings.ToLower(strings.TrimSpace(txHex))

	fragments, err := chunker.Split(hexLower, e.cfg.ChunkSize)
	if err != nil {
		return SendResult{Reason: ReasonValidation, Detail: err.Error()}
	}

	sid, err := sessionid.New()
	if err != nil {
		return SendResult{Reason: ReasonValidation, Detail: err.Error()}
	}

	total := len(fragments)
	if e.logger != nil {
		e.logger.SendStarted(sid, destination, total)
	}

	inbox := e.dispatcher.register(sid)
	defer e.dispatcher.unregister(sid)

	var lastSendErr error
	sendChunk := func(n int) error {
		text := wire.FormatChunk(wire.Chunk{SessionID: sid, N: n, Total: total, Payload: fragments[n-1]})
		lastSendErr = e.transport.Send(ctx, destination, text)
		return lastSendErr
	}

	// A failed send is retried on the ACK_TIMEOUT cadence, like a lost chunk.
	_ = sendChunk(1)

	n := 1
	retries := 0
	awaitingTerminal := false

	timer := time.NewTimer(e.cfg.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			result := SendResult{Reason: ReasonAborted}
			e.logResult(sid, result)
			return result

		case <-timer.C:
			if awaitingTerminal {
				result := SendResult{Reason: ReasonTimeout}
				e.logResult(sid, result)
				return result
			}
			if retries >= e.cfg.MaxRetries {
				result := SendResult{Reason: ReasonRetryExhausted}
				if lastSendErr != nil {
					result = SendResult{Reason: ReasonTransport, Detail: lastSendErr.Error()}
				}
				e.logResult(sid, result)
				return result
			}
			retries++
			_ = sendChunk(n) // a failed retransmit is absorbed by the next timeout tick
			resetTimer(timer, e.cfg.AckTimeout)

		case msg, ok := <-inbox:
			if !ok {
				continue
			}
			switch msg.Kind {
			case wire.KindChunkAck:
				ack := msg.ChunkAck
				if ack.N != n {
					continue // tolerate acks for chunk numbers outside the expected window
				}
				switch {
				case ack.Next == n+1 && n < total:
					n++
					retries = 0
					_ = sendChunk(n)
					resetTimer(timer, e.cfg.AckTimeout)
				case ack.Next == n:
					retries = 0
					_ = sendChunk(n)
					resetTimer(timer, e.cfg.AckTimeout)
				case ack.Next > total && n == total:
					awaitingTerminal = true
					resetTimer(timer, e.cfg.TerminalTimeout)
				default:
					// out-of-window request; ignore per spec tolerance
				}

			case wire.KindAck:
				result := SendResult{Success: true, TXID: msg.Ack.TXID}
				e.logResult(sid, result)
				return result

			case wire.KindNack:
				result := SendResult{Reason: ReasonPeerNack, Detail: msg.Nack.Detail}
				e.logResult(sid, result)
				return result
			}
		}
	}
}

func (e *Engine) logResult(sid string, r SendResult) {
	if e.logger == nil {
		return
	}
	e.logger.SendResult(sid, r.Success, r.Reason.String())
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
