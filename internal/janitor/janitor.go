// Package janitor implements the periodic sweep described in spec §4.6:
// it evicts reassembly sessions that have sat in Collecting past
// REASSEMBLY_TIMEOUT and delivers a synthetic timeout NACK to the pinned
// sender, best-effort. It never touches Broadcasting or Terminal sessions.
package janitor

import (
	"context"
	"time"

	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/reassembly"
	"github.com/btcmesh/relay/internal/transport"
	"github.com/btcmesh/relay/internal/wire"
)

// DefaultInterval is the sweep period named in spec §4.6 ("≤ every 1s").
const DefaultInterval = 1 * time.Second

// DefaultReassemblyTimeout is the Collecting-state deadline named in spec
// §4.6 and used as the client's TERMINAL_TIMEOUT floor in spec §4.4.
const DefaultReassemblyTimeout = 300 * time.Second

// Janitor periodically sweeps a Table for stale Collecting sessions.
type Janitor struct {
	table     *reassembly.Table
	transport transport.Transport
	logger    *observability.Logger
	metrics   *observability.Metrics

	interval time.Duration
	timeout  time.Duration

	stop chan struct{}
	done chan struct{}
}

// New creates a Janitor. logger and metrics may be nil.
func New(table *reassembly.Table, t transport.Transport, interval, timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Janitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}
	return &Janitor{
		table:     table,
		transport: t,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
		timeout:   timeout,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop in its own goroutine until Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-j.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Janitor) sweep(ctx context.Context) {
	now := time.Now()
	for _, s := range j.table.StaleCollecting(now, j.timeout) {
		j.evict(ctx, s)
	}
}

func (j *Janitor) evict(ctx context.Context, s *reassembly.Session) {
	j.table.Remove(s.SessionID)
	if j.metrics != nil {
		j.metrics.SessionsActive.Dec()
		j.metrics.JanitorEvictionsTotal.Inc()
		j.metrics.SessionsTotal.WithLabelValues("timeout").Inc()
	}

	text := wire.FormatNack(wire.Nack{SessionID: s.SessionID, Detail: "reassembly timeout"})
	j.table.RememberTerminal(s.SessionID, text)

	if err := j.transport.Send(ctx, s.Sender, text); err != nil && j.logger != nil {
		j.logger.Warn("janitor: failed to deliver timeout nack: " + err.Error())
	}
	if j.logger != nil {
		j.logger.SessionEvicted(s.SessionID, "reassembly timeout")
	}
}
