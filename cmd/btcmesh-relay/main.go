// Command btcmesh-relay runs the server session engine: it reassembles
// chunked transactions arriving over a mesh transport, broadcasts
// completed transactions via Bitcoin Core RPC, and drives the timeout
// janitor and ambient metrics/health endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcmesh/relay/internal/config"
	"github.com/btcmesh/relay/internal/janitor"
	"github.com/btcmesh/relay/internal/observability"
	"github.com/btcmesh/relay/internal/reassembly"
	"github.com/btcmesh/relay/internal/rpc"
	"github.com/btcmesh/relay/internal/transport"
)

func main() {
	defaults := config.DefaultRelayConfig()

	nodeID := flag.String("node-id", "!relay0001", "local mesh node id used for logging and the transport health check")
	devicePath := flag.String("device", "", "path to the mesh modem's serial device (reads/writes newline-framed text); empty runs an in-process loopback for local testing")
	rpcHost := flag.String("rpc-host", defaults.RPC.Host, "Bitcoin Core RPC host:port")
	rpcUser := flag.String("rpc-user", defaults.RPC.User, "Bitcoin Core RPC username")
	rpcPass := flag.String("rpc-pass", defaults.RPC.Pass, "Bitcoin Core RPC password")
	rpcDisableTLS := flag.Bool("rpc-disable-tls", defaults.RPC.DisableTLS, "connect to Bitcoin Core over plain HTTP")
	reassemblyTimeout := flag.Duration("reassembly-timeout", defaults.ReassemblyTimeout, "how long a session may sit in Collecting before the janitor evicts it, e.g. 300s")
	healthAddr := flag.String("health-addr", defaults.HealthAddr, "address to serve /health on")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "address to serve /metrics on")
	rateLimitPerSecond := flag.Float64("rate-limit", defaults.RateLimitPerSecond, "max inbound messages per second per sending node")
	rateLimitBurst := flag.Int("rate-limit-burst", defaults.RateLimitBurst, "token bucket burst size per sending node")
	flag.Parse()

	cfg := defaults
	cfg.RPC.Host = *rpcHost
	cfg.RPC.User = *rpcUser
	cfg.RPC.Pass = *rpcPass
	cfg.RPC.DisableTLS = *rpcDisableTLS
	cfg.MeshDevicePath = *devicePath
	cfg.ReassemblyTimeout = *reassemblyTimeout
	cfg.HealthAddr = *healthAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.RateLimitPerSecond = *rateLimitPerSecond
	cfg.RateLimitBurst = *rateLimitBurst

	logger := observability.NewLogger("btcmesh-relay", version, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Fatal(err, "invalid configuration")
	}

	if shutdown, err := observability.InitTracing(context.Background(), "btcmesh-relay"); err == nil {
		defer shutdown(context.Background())
	}

	broadcaster, err := rpc.NewBitcoindBroadcaster(cfg.RPC)
	if err != nil {
		logger.Fatal(err, "failed to construct bitcoind RPC client")
	}
	defer broadcaster.Shutdown()

	meshTransport, closeTransport, err := buildTransport(*nodeID, cfg.MeshDevicePath, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialize mesh transport")
	}
	defer closeTransport()

	table := reassembly.NewTable()
	metrics := observability.NewMetrics()
	engine := reassembly.New(table, meshTransport, broadcaster, logger, metrics)

	handler := transport.RateLimited(engine.OnMessage, cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	meshTransport.SetInboundHandler(handler)

	healthChecker := observability.NewHealthChecker(version)
	healthChecker.RegisterCheck("transport", observability.TransportCheck(meshTransport.LocalNodeID()))
	healthChecker.RegisterCheck("sessions", observability.SessionTableCheck(table.Len, 1000))
	healthChecker.RegisterCheck("rpc", observability.RPCCheck(func(ctx context.Context) error {
		_, err := broadcaster.Broadcast(ctx, "")
		if err == nil {
			return nil
		}
		// An empty-hex probe always fails at Core; any response at all
		// (even a structured rejection) proves the connection is up.
		if _, ok := err.(*rpc.Error); ok {
			return nil
		}
		return err
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := janitor.New(table, meshTransport, cfg.JanitorInterval, cfg.ReassemblyTimeout, logger, metrics)
	j.Start(ctx)
	defer j.Stop()

	go serveObservability(cfg.HealthAddr, cfg.MetricsAddr, healthChecker, metrics, logger)

	logger.Info(fmt.Sprintf("btcmesh-relay listening as %s", meshTransport.LocalNodeID()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
}

// version is overridden at build time via -ldflags.
var version = "dev"

func buildTransport(nodeID, devicePath string, logger *observability.Logger) (transport.Transport, func(), error) {
	if devicePath == "" {
		logger.Warn("no --device given; running an isolated in-process loopback transport")
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

func serveObservability(healthAddr, metricsAddr string, health *observability.HealthChecker, metrics *observability.Metrics, logger *observability.Logger) {
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health.Handler())
	go func() {
		if err := http.ListenAndServe(healthAddr, healthMux); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "health server exited")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "metrics server exited")
	}
}

