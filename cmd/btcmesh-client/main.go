// Command btcmesh-client chunks a raw Bitcoin transaction and drives a
// client session engine send to a mesh relay node, printing the terminal
// outcome and exiting with a reason-specific code.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcmesh/relay/internal/chunker"
	"github.com/btcmesh/relay/internal/clientengine"
	"github.com/btcmesh/relay/internal/config"
	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/sessionid"
	"github.com/btcmesh/relay/internal/transport"
)

// Exit codes distinguish the failure kinds spec §6 requires ("distinct
// codes at least distinguishing validation failure, timeout/retry
// exhaustion, and peer NACK").
const (
	exitSuccess          = 0
	exitValidation       = 1
	exitTimeoutOrRetry   = 2
	exitPeerNack         = 3
	exitTransportOrOther = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("btcmesh-client", flag.ContinueOnError)
	destination := fs.String("to", "", "destination mesh node id, e.g. !abcdef12")
	txHex := fs.String("tx", "", "raw transaction hex to send")
	dryRun := fs.Bool("dry-run", false, "split the transaction and print the chunk plan without sending")
	devicePath := fs.String("device", "", "path to the mesh modem's serial device; empty runs an in-process loopback for local testing")
	nodeID := fs.String("node-id", "!client0001", "local mesh node id")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	logger := observability.NewLogger("btcmesh-client", version, os.Stdout)

	if *destination == "" || *txHex == "" {
		fmt.Fprintln(os.Stderr, "usage: btcmesh-client -to <node-id> -tx <hex> [-dry-run] [-device <path>]")
		return exitValidation
	}

	if *dryRun {
		return runDryRun(*txHex)
	}

	cfg := config.DefaultClientConfig()
	cfg.MeshDevicePath = *devicePath

	t, closeTransport, err := buildTransport(*nodeID, cfg.MeshDevicePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize mesh transport: %v\n", err)
		return exitTransportOrOther
	}
	defer closeTransport()

	dispatcher := clientengine.NewDispatcher(logger)
	t.SetInboundHandler(dispatcher.Handle)

	engineCfg := clientengine.Config{
		ChunkSize:       cfg.ChunkSize,
		AckTimeout:      cfg.AckTimeout,
		MaxRetries:      cfg.MaxRetries,
		TerminalTimeout: cfg.TerminalTimeout,
	}
	engine := clientengine.New(t, dispatcher, engineCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result := engine.Send(ctx, *txHex, *destination)
	return reportResult(result)
}

func runDryRun(txHex string) int {
	fragments, err := chunker.Split(txHex, chunker.DefaultChunkSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
		return exitValidation
	}
	plan := chunker.DescribePlan(sessionid.MustNew(), fragments)
	fmt.Println(plan.String())
	return exitSuccess
}

func reportResult(result clientengine.SendResult) int {
	if result.Success {
		fmt.Printf("SUCCESS txid=%s\n", result.TXID)
		return exitSuccess
	}

	fmt.Fprintf(os.Stderr, "FAILURE reason=%s detail=%s\n", result.Reason, result.Detail)
	switch result.Reason {
	case clientengine.ReasonValidation:
		return exitValidation
	case clientengine.ReasonTimeout, clientengine.ReasonRetryExhausted:
		return exitTimeoutOrRetry
	case clientengine.ReasonPeerNack:
		return exitPeerNack
	default:
		return exitTransportOrOther
	}
}

// version is overridden at build time via -ldflags.
var version = "dev"

func buildTransport(nodeID, devicePath string, logger *observability.Logger) (transport.Transport, func(), error) {
	if devicePath == "" {
		bus := transport.NewBus()
		node := bus.NewNode(nodeID)
		return node, func() {}, nil
	}

	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open mesh device %s: %w", devicePath, err)
	}
	lt := transport.NewLineTransport(nodeID, f)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := lt.Run(ctx, f); err != nil {
			logger.Error(err, "mesh device read loop exited")
		}
	}()

	return lt, func() {
		cancel()
		_ = f.Close()
	}, nil
}
