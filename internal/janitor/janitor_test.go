package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/btcmesh/relay/internal/reassembly"
	"github.com/btcmesh/relay/internal/transport"
	"github.com/btcmesh/relay/internal/wire"
)

func TestJanitorEvictsStaleCollectingSession(t *testing.T) {
	bus := transport.NewBus()
	relayNode := bus.NewNode("relay")
	clientNode := bus.NewNode("client")

	inbox := make(chan wire.Message, 1)
	clientNode.SetInboundHandler(func(ctx context.Context, sender, text string) {
		msg, err := wire.Parse(text)
		if err != nil {
			t.Errorf("malformed nack: %v", err)
			return
		}
		inbox <- msg
	})

	table := reassembly.NewTable()
	stale := reassembly.NewSession("abcde", "client", 2, time.Now().Add(-time.Hour))
	if err := table.Add(stale); err != nil {
		t.Fatalf("Add: %v", err)
	}

	j := New(table, relayNode, 10*time.Millisecond, time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Start(ctx)
	defer j.Stop()

	select {
	case msg := <-inbox:
		if msg.Kind != wire.KindNack || msg.Nack.Detail != "reassembly timeout" {
			t.Fatalf("msg = %+v, want reassembly timeout nack", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for janitor eviction")
	}

	if _, ok := table.Get("abcde"); ok {
		t.Errorf("session still present in active table after eviction")
	}
}

func TestJanitorNeverTouchesBroadcastingOrTerminal(t *testing.T) {
	bus := transport.NewBus()
	relayNode := bus.NewNode("relay")
	bus.NewNode("client")

	table := reassembly.NewTable()
	broadcasting := reassembly.NewSession("bcast", "client", 1, time.Now().Add(-time.Hour))
	broadcasting.Status = reassembly.Broadcasting
	terminal := reassembly.NewSession("term", "client", 1, time.Now().Add(-time.Hour))
	terminal.Status = reassembly.Terminal
	_ = table.Add(broadcasting)
	_ = table.Add(terminal)

	j := New(table, relayNode, 10*time.Millisecond, time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	j.Stop()

	if _, ok := table.Get("bcast"); !ok {
		t.Errorf("broadcasting session was evicted by the janitor")
	}
	if _, ok := table.Get("term"); !ok {
		t.Errorf("terminal session was evicted by the janitor")
	}
}
